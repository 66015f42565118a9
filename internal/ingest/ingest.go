package ingest

import (
	"context"
	"path"
	"strings"

	"github.com/fincopilot/fincopilot/internal/core"
	"go.uber.org/zap"
)

// Source is a read-only document location the ingest command walks.
type Source interface {
	// List returns all file paths under the prefix.
	List(ctx context.Context, prefix string) ([]string, error)
	// Read retrieves one file's contents.
	Read(ctx context.Context, path string) ([]byte, error)
}

// Indexer is the retriever surface ingestion feeds.
type Indexer interface {
	Ingest(ctx context.Context, doc core.Document) (string, error)
}

// Stats summarizes one ingestion run.
type Stats struct {
	Ingested int
	Skipped  int
	Failed   int
}

// Run walks a source and indexes every readable text file. One bad file
// does not stop the run; failures are counted and logged.
func Run(ctx context.Context, src Source, idx Indexer, prefix, ownerID string, log *zap.Logger) (Stats, error) {
	if log == nil {
		log = zap.NewNop()
	}

	var stats Stats
	paths, err := src.List(ctx, prefix)
	if err != nil {
		return stats, err
	}

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		data, err := src.Read(ctx, p)
		if err != nil {
			stats.Failed++
			log.Warn("reading document failed", zap.String("path", p), zap.Error(err))
			continue
		}
		content := strings.TrimSpace(string(data))
		if content == "" {
			stats.Skipped++
			continue
		}

		_, err = idx.Ingest(ctx, core.Document{
			OwnerID: ownerID,
			Title:   titleFromPath(p),
			Source:  p,
			Content: content,
		})
		if err != nil {
			stats.Failed++
			log.Warn("indexing document failed", zap.String("path", p), zap.Error(err))
			continue
		}
		stats.Ingested++
	}

	log.Info("ingestion finished",
		zap.Int("ingested", stats.Ingested),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
	)
	return stats, nil
}

func titleFromPath(p string) string {
	base := path.Base(p)
	return strings.TrimSuffix(base, path.Ext(base))
}
