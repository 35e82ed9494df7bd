package types

import "errors"

var (
	ErrExtraction        = errors.New("pdf extraction failed")
	ErrEmbeddingService  = errors.New("embedding service failed")
	ErrGeneration        = errors.New("generation failed")
	ErrStorage           = errors.New("storage failure")
	ErrMaterialNotFound  = errors.New("material not found")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
