package embeddings

import "context"

// Provider turns text into a fixed-dimension vector. ModelName is persisted
// next to every stored vector so searches against an index built by a
// different model can be rejected instead of returning garbage neighbors.
type Provider interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	ModelName() string
}
