package document

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kailas-cloud/scorpius/internal/clock"
	"github.com/kailas-cloud/scorpius/internal/domain"
	"github.com/kailas-cloud/scorpius/internal/domain/batch"
	"github.com/kailas-cloud/scorpius/internal/domain/collection/field"
	domdoc "github.com/kailas-cloud/scorpius/internal/domain/document"
	"github.com/kailas-cloud/scorpius/internal/domain/procurement"
)

// Metadata keys set on every stored document.
const (
	MetaAddedAt        = "added_at"
	MetaCollection     = "collection"
	MetaDocumentLength = "document_length"
)

// Report describes the outcome of one AddDocuments call.
type Report struct {
	Collection string
	// Results has one entry per input, in input order.
	Results          []batch.Result
	IDs              []string
	Added            int
	EstimatedCostUSD float64
	Duration         time.Duration
}

// Failed returns the inputs that were not stored.
func (r Report) Failed() []batch.Result { return batch.Failed(r.Results) }

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the wall clock used for ids and timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithTracker attaches a document counter.
func WithTracker(t Tracker) Option {
	return func(s *Service) { s.tracker = t }
}

// Service ingests documents with automatic vectorization.
type Service struct {
	repo    Repository
	colls   CollectionReader
	embed   Embedder
	tracker Tracker
	clock   clock.Clock
	logger  *zap.Logger
}

// New creates a document service.
func New(repo Repository, colls CollectionReader, embed Embedder, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		colls:   colls,
		embed:   embed,
		tracker: nopTracker{},
		clock:   clock.Real(),
		logger:  logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// AddDocuments embeds and stores contents in collectionName. metadatas and ids
// are optional; when given they must match contents in length. Missing ids are
// generated as {collection}_{unixmillis}_{i}.
//
// Invalid input fails the whole call. Embedding or storage failures are
// reported per item; the error is *domain.AllFailedError only when nothing
// was stored.
func (s *Service) AddDocuments(
	ctx context.Context, collectionName string,
	contents []string, metadatas []map[string]any, ids []string,
) (Report, error) {
	start := s.clock.Now()

	if err := validateInput(contents, metadatas, ids); err != nil {
		return Report{}, err
	}
	col, err := s.colls.Get(ctx, collectionName)
	if err != nil {
		return Report{}, fmt.Errorf("get collection: %w", err)
	}

	if len(ids) == 0 {
		ids = generateIDs(collectionName, start, len(contents))
	}
	addedAt := start.UTC().Format(time.RFC3339)

	docs := make([]domdoc.Document, len(contents))
	for i, content := range contents {
		var meta map[string]any
		if len(metadatas) > 0 {
			meta = metadatas[i]
		}
		doc, derr := domdoc.New(ids[i], content, enrich(meta, collectionName, addedAt, content))
		if derr != nil {
			return Report{}, domain.NewValidationError(fmt.Sprintf("documents[%d]", i), ids[i], derr.Error())
		}
		docs[i] = doc
	}

	model := col.Model()
	if model == "" {
		model = s.embed.DefaultModel()
	}

	report := Report{
		Collection:       collectionName,
		Results:          make([]batch.Result, len(docs)),
		IDs:              ids,
		EstimatedCostUSD: estimateCost(contents, model),
	}

	vectors, err := s.embed.EmbedMany(ctx, contents, model)
	var allFailed *domain.AllFailedError
	if err != nil && !errors.As(err, &allFailed) {
		return Report{}, fmt.Errorf("vectorize documents: %w", err)
	}

	ready := make([]domdoc.Document, 0, len(docs))
	pos := make([]int, 0, len(docs))
	for i, v := range vectors {
		switch {
		case !v.OK():
			report.Results[i] = batch.NewError(i, ids[i], v.Err())
		case col.VectorDim() > 0 && len(v.Vector()) != col.VectorDim():
			report.Results[i] = batch.NewError(i, ids[i], fmt.Errorf(
				"vector dimension mismatch: got %d, want %d: %w",
				len(v.Vector()), col.VectorDim(), domain.ErrProviderMalformed,
			))
		default:
			ready = append(ready, docs[i].WithVector(v.Vector()))
			pos = append(pos, i)
		}
	}

	if len(ready) > 0 {
		for j, serr := range s.repo.AddMany(ctx, collectionName, ready) {
			i := pos[j]
			if serr != nil {
				report.Results[i] = batch.NewError(i, ids[i], &domain.BackendUnavailableError{Op: "add " + ids[i], Err: serr})
				continue
			}
			report.Results[i] = batch.NewOK(i, ids[i])
			report.Added++
		}
	}

	report.Duration = s.clock.Now().Sub(start)
	if report.Added > 0 {
		s.tracker.OnDocumentsAdded(report.Added)
	}

	failed := report.Failed()
	if len(failed) > 0 {
		s.logger.Warn("Some documents were not stored",
			zap.String("collection", collectionName),
			zap.Int("failed", len(failed)),
			zap.Int("total", len(docs)),
			zap.Error(failed[0].Err()),
		)
	}
	if report.Added == 0 {
		return report, &domain.AllFailedError{Count: len(docs), First: failed[0].Err()}
	}

	s.logger.Info("Documents added",
		zap.String("collection", collectionName),
		zap.Int("added", report.Added),
		zap.Float64("estimated_cost_usd", report.EstimatedCostUSD),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

func validateInput(contents []string, metadatas []map[string]any, ids []string) error {
	if len(contents) == 0 {
		return domain.NewValidationError("documents", nil, "at least one document is required")
	}
	for i, c := range contents {
		if strings.TrimSpace(c) == "" {
			return domain.NewValidationError(fmt.Sprintf("documents[%d]", i), nil, "must not be blank")
		}
	}
	if len(metadatas) > 0 && len(metadatas) != len(contents) {
		return domain.NewValidationError("metadatas", len(metadatas),
			fmt.Sprintf("expected %d entries to match documents", len(contents)))
	}
	if len(ids) > 0 && len(ids) != len(contents) {
		return domain.NewValidationError("ids", len(ids),
			fmt.Sprintf("expected %d entries to match documents", len(contents)))
	}
	return nil
}

func generateIDs(collectionName string, at time.Time, n int) []string {
	ids := make([]string, n)
	ms := at.UnixMilli()
	for i := range ids {
		ids[i] = fmt.Sprintf("%s_%d_%d", collectionName, ms, i)
	}
	return ids
}

var amountField = field.Reconstruct(procurement.MetaAmount, field.Numeric)

// enrich copies meta and adds the bookkeeping keys. Caller values for those
// keys are overwritten. A montant without fourchette_montant gets its bucket
// so amount-range filters see the document.
func enrich(meta map[string]any, collectionName, addedAt, content string) map[string]any {
	out := make(map[string]any, len(meta)+4)
	maps.Copy(out, meta)
	out[MetaAddedAt] = addedAt
	out[MetaCollection] = collectionName
	out[MetaDocumentLength] = utf8.RuneCountInString(content)

	if _, ok := out[procurement.MetaAmountRange]; !ok {
		if s, ok := amountField.Encode(out[procurement.MetaAmount]); ok {
			if amount, err := strconv.ParseFloat(s, 64); err == nil && amount >= 0 {
				out[procurement.MetaAmountRange] = procurement.AmountRange(int64(amount))
			}
		}
	}
	return out
}

func estimateCost(contents []string, model string) float64 {
	tokens := 0
	for _, c := range contents {
		tokens += domain.EstimateTokens(c)
	}
	return domain.ModelOrDefault(model).EstimateCost(tokens)
}
