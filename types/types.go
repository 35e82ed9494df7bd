package types

import (
	"time"
)

type Subject struct {
	ID         int64  `json:"id"`
	Code       string `json:"code"`
	Name       string `json:"name"`
	Semester   int    `json:"semester"`
	Department string `json:"department"`
}

// Material is one uploaded course document. Rows are created by the upload
// flow; ingestion only flips IsProcessed.
type Material struct {
	ID          int64
	SubjectID   int64
	Title       string
	Description string
	FilePath    string
	FileType    string
	FileSize    int64
	UploadDate  time.Time
	IsProcessed bool
}

// PageText is the extracted text of a single page, numbered from 1.
type PageText struct {
	Page int
	Text string
}

// Chunk is a bounded span of one page's text. Index is the ordinal within
// the whole material.
type Chunk struct {
	MaterialID int64
	Index      int
	Page       int
	Text       string
}

// EmbeddingRecord is a persisted chunk together with its vector and the
// identifier of the model that produced it.
type EmbeddingRecord struct {
	ID         int64
	MaterialID int64
	ChunkText  string
	ChunkIndex int
	PageNumber int
	Vector     []float32
	Model      string
	CreatedAt  time.Time
}

// RetrievedChunk lives for a single query only.
type RetrievedChunk struct {
	EmbeddingRecord
	MaterialTitle string
	Similarity    float64
}

type ExtractedImage struct {
	ID         int64
	MaterialID int64
	Path       string
	Page       int
	Type       string
}

type IngestResult struct {
	ChunkCount int `json:"chunk_count"`
	ImageCount int `json:"image_count"`
}

type Source struct {
	MaterialID int64  `json:"material_id"`
	Material   string `json:"material"`
	Page       int    `json:"page"`
}

type AnswerResult struct {
	Answer     string   `json:"answer"`
	Sources    []Source `json:"sources"`
	Confidence float64  `json:"confidence"`
}
