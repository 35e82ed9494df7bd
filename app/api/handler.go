package api

import (
	"context"
	"errors"
	"time"

	"coursebot/types"

	"github.com/gofiber/fiber/v2"
)

type Answerer interface {
	Answer(ctx context.Context, question string, subjectID *int64, topK int) types.AnswerResult
}

type RequestHandler struct {
	pipeline    Answerer
	defaultTopK int
}

func NewRequestHandler(pipeline Answerer, defaultTopK int) *RequestHandler {
	return &RequestHandler{
		pipeline:    pipeline,
		defaultTopK: defaultTopK,
	}
}

// HandleAsk always answers 200 once the request is valid; pipeline failures
// come back as a low-confidence answer.
func (h *RequestHandler) HandleAsk(c *fiber.Ctx) error {
	var params types.AskParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	topK := params.TopK
	if topK == 0 {
		topK = h.defaultTopK
	}

	res := h.pipeline.Answer(c.UserContext(), params.Question, params.SubjectID, topK)
	return c.JSON(&types.AnswerResponse{
		AnswerResult: res,
		Timestamp:    time.Now(),
	})
}

type Ingester interface {
	IngestMaterial(ctx context.Context, materialID int64) (types.IngestResult, error)
}

type MaterialHandler struct {
	ingester Ingester
}

func NewMaterialHandler(ingester Ingester) *MaterialHandler {
	return &MaterialHandler{ingester: ingester}
}

// HandleIngest runs ingestion synchronously so the admin sees extraction
// failures directly.
func (h *MaterialHandler) HandleIngest(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return ErrInvalidID()
	}

	res, err := h.ingester.IngestMaterial(c.UserContext(), int64(id))
	if err != nil {
		if errors.Is(err, types.ErrMaterialNotFound) {
			return ErrNotFound(id, "material")
		}
		return err
	}
	return c.JSON(&types.IngestResponse{
		MaterialID:   int64(id),
		IngestResult: res,
	})
}

type SubjectLister interface {
	ListSubjects(ctx context.Context) ([]types.Subject, error)
}

type SubjectHandler struct {
	store SubjectLister
}

func NewSubjectHandler(store SubjectLister) *SubjectHandler {
	return &SubjectHandler{store: store}
}

func (h *SubjectHandler) HandleList(c *fiber.Ctx) error {
	subjects, err := h.store.ListSubjects(c.UserContext())
	if err != nil {
		return err
	}
	if subjects == nil {
		subjects = []types.Subject{}
	}
	return c.JSON(subjects)
}
