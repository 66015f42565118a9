package main

import (
	"context"
	"fmt"

	"github.com/fincopilot/fincopilot/internal/config"
	"github.com/fincopilot/fincopilot/internal/ingest"
	"github.com/fincopilot/fincopilot/internal/logger"
	"github.com/spf13/cobra"
)

var (
	ingestPrefix string
	ingestOwner  string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest documents into the retrieval index",
	Long: `Ingest walks the configured document source (local directory or S3
bucket), embeds every text file and stores it in the vector index.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestPrefix, "prefix", "p", "", "only ingest paths under this prefix")
	ingestCmd.Flags().StringVarP(&ingestOwner, "owner", "o", "", "owner id for ingested documents (empty = public)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	ctx := context.Background()

	ret, cleanup, err := buildRetriever(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	src, err := buildSource(cfg)
	if err != nil {
		return err
	}

	stats, err := ingest.Run(ctx, src, ret, ingestPrefix, ingestOwner, log)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Printf("ingested %d, skipped %d, failed %d\n", stats.Ingested, stats.Skipped, stats.Failed)
	return nil
}

func buildSource(cfg *config.Config) (ingest.Source, error) {
	docs := cfg.Storage.Documents
	switch docs.Type {
	case "s3":
		return ingest.NewS3(ingest.S3Config{
			Bucket:    docs.S3.Bucket,
			Endpoint:  docs.S3.Endpoint,
			Region:    docs.S3.Region,
			AccessKey: docs.S3.AccessKey,
			SecretKey: docs.S3.SecretKey,
			Prefix:    docs.S3.Prefix,
		})
	case "localfs":
		return ingest.NewLocalFS(docs.Path)
	default:
		return nil, fmt.Errorf("unknown document source type %q", docs.Type)
	}
}
