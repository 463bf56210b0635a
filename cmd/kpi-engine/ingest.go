package main

import (
	"context"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/spherical-ai/kpi-engine/internal/corpus"
	"github.com/spherical-ai/kpi-engine/internal/embedding"
)

var ingestCSVPath string

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load a CSV corpus, embed every row, and persist the snapshot",
	Long: `Ingest reads the tabular knowledge base from CSV, computes one embedding
per row, and stores rows plus vectors in the SQLite snapshot. ask, chat,
and serve start from the snapshot without re-embedding.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestCSVPath, "csv", "", "CSV file to ingest (default: corpus.csv_path from config)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	path := ingestCSVPath
	if path == "" {
		path = cfg.Corpus.CSVPath
	}

	c, err := corpus.LoadCSV(path)
	if err != nil {
		return fmt.Errorf("load corpus: %w", err)
	}
	logger.Info().Str("path", path).Int("rows", c.Len()).Int("columns", len(c.Columns())).Msg("corpus loaded")

	encoder, err := embedding.NewClient(embedding.Config{
		APIKey:    cfg.Embedding.APIKey,
		Model:     cfg.Embedding.Model,
		BaseURL:   cfg.Embedding.BaseURL,
		BatchSize: cfg.Embedding.BatchSize,
		Timeout:   cfg.Embedding.Timeout,
	})
	if err != nil {
		return fmt.Errorf("create embedding client: %w", err)
	}

	texts := c.Flatten()
	bar := progressbar.Default(int64(len(texts)), "embedding rows")

	batchSize := cfg.Embedding.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := encoder.EncodeBatch(ctx, texts[start:end])
		if err != nil {
			return fmt.Errorf("embed rows %d-%d: %w", start, end, err)
		}
		vectors = append(vectors, batch...)
		_ = bar.Add(end - start)
	}

	store, err := corpus.OpenStore(cfg.Corpus.StorePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	if err := store.SaveCorpus(ctx, c, encoder.Model(), vectors); err != nil {
		return fmt.Errorf("save corpus: %w", err)
	}

	logger.Info().
		Str("store", cfg.Corpus.StorePath).
		Str("model", encoder.Model()).
		Int("rows", c.Len()).
		Msg("corpus ingested")
	return nil
}
