package internal

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"coursebot/types"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

type TextExtractor interface {
	ExtractText(ctx context.Context, path string) ([]types.PageText, error)
}

// PageImage is one embedded image as it comes out of the PDF. Data is only
// valid inside the visit callback.
type PageImage struct {
	Page int
	Ext  string
	Data io.Reader
}

type ImageExtractor interface {
	ExtractImages(ctx context.Context, path string, visit func(PageImage) error) error
}

// PDFTextExtractor reads plain text page by page. Pages without text are
// left out.
type PDFTextExtractor struct{}

func (PDFTextExtractor) ExtractText(ctx context.Context, path string) (pages []types.PageText, err error) {
	// ledongthuc/pdf panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("%w: %s: %v", types.ErrExtraction, path, r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", types.ErrExtraction, path, err)
	}
	defer f.Close()

	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %s page %d: %w", types.ErrExtraction, path, i, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		pages = append(pages, types.PageText{Page: i, Text: text})
	}
	return pages, nil
}

// PDFImageExtractor walks the embedded image objects of every page.
type PDFImageExtractor struct{}

func (PDFImageExtractor) ExtractImages(ctx context.Context, path string, visit func(PageImage) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("image extraction panicked: %v", r)
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	conf := pdfmodel.NewDefaultConfiguration()
	return api.ExtractImages(f, nil, func(img pdfmodel.Image, _ bool, _ int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return visit(PageImage{
			Page: img.PageNr,
			Ext:  img.FileType,
			Data: img,
		})
	}, conf)
}
