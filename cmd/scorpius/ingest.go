package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/scorpius/internal/domain"
	domcol "github.com/kailas-cloud/scorpius/internal/domain/collection"
	"github.com/kailas-cloud/scorpius/internal/domain/search/request"
	"github.com/kailas-cloud/scorpius/internal/ingest"
	documentuc "github.com/kailas-cloud/scorpius/internal/usecase/document"
)

type documentAdder interface {
	AddDocuments(
		ctx context.Context, collectionName string,
		contents []string, metadatas []map[string]any, ids []string,
	) (documentuc.Report, error)
}

type ingestSummary struct {
	JobID            string        `json:"job_id"`
	Collection       string        `json:"collection"`
	Files            int           `json:"files"`
	Rows             int           `json:"rows"`
	Skipped          int           `json:"skipped"`
	Added            int           `json:"added"`
	Failed           int           `json:"failed"`
	EstimatedCostUSD float64       `json:"estimated_cost_usd"`
	Duration         time.Duration `json:"duration_ns"`
}

func newIngestCmd() *cobra.Command {
	var (
		collection string
		batchSize  int
	)
	cmd := &cobra.Command{
		Use:   "ingest <file.parquet|dir>",
		Short: "Bulk-load tender notices from parquet files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := ingest.Files(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), 0, func(ctx context.Context, a *app) error {
				if _, _, err := a.collections.Ensure(ctx, collection, domcol.DescriptionOf(collection)); err != nil {
					return err
				}
				summary, err := ingestFiles(ctx, a.documents, files, collection, batchSize, a.logger)
				if jsonOutput {
					printJSON(cmd.OutOrStdout(), summary)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(),
						"job %s: %d file(s), %d row(s), %d added, %d failed, %d skipped, ~$%.4f in %s\n",
						summary.JobID, summary.Files, summary.Rows, summary.Added, summary.Failed,
						summary.Skipped, summary.EstimatedCostUSD, summary.Duration.Round(time.Millisecond))
				}
				return err
			})
		},
	}
	cmd.Flags().StringVar(&collection, "collection", request.DefaultCollection, "target collection")
	cmd.Flags().IntVar(&batchSize, "batch-size", 100, "documents per AddDocuments call")
	return cmd
}

// ingestFiles feeds every notice to docs batch by batch. Item failures are
// counted and logged; only call-level errors stop the job.
func ingestFiles(
	ctx context.Context, docs documentAdder, files []string,
	collection string, batchSize int, logger *zap.Logger,
) (ingestSummary, error) {
	start := time.Now()
	summary := ingestSummary{JobID: uuid.NewString(), Collection: collection}
	logger = logger.With(zap.String("job_id", summary.JobID), zap.String("collection", collection))

	for _, path := range files {
		stats, err := ingest.ReadFile(path, batchSize, func(batch []ingest.Notice) error {
			contents := make([]string, len(batch))
			metas := make([]map[string]any, len(batch))
			ids := make([]string, len(batch))
			for i, n := range batch {
				contents[i], metas[i], ids[i] = n.Content, n.Metadata, n.ID
			}

			report, err := docs.AddDocuments(ctx, collection, contents, metas, ids)
			var allFailed *domain.AllFailedError
			if err != nil && !errors.As(err, &allFailed) {
				return err
			}
			summary.Added += report.Added
			summary.EstimatedCostUSD += report.EstimatedCostUSD
			for _, f := range report.Failed() {
				summary.Failed++
				logger.Warn("Notice not ingested", zap.String("id", f.ID()), zap.Error(f.Err()))
			}
			return nil
		})
		summary.Files++
		summary.Rows += stats.Rows
		summary.Skipped += stats.Skipped
		if err != nil {
			summary.Duration = time.Since(start)
			return summary, fmt.Errorf("ingest %s: %w", filepath.Base(path), err)
		}
		logger.Info("File ingested", zap.String("file", filepath.Base(path)),
			zap.Int("rows", stats.Rows), zap.Int("skipped", stats.Skipped))
	}

	summary.Duration = time.Since(start)
	return summary, nil
}
