package main

import (
	"context"
	"errors"

	"github.com/kailas-cloud/scorpius/internal/domain"
	"github.com/kailas-cloud/scorpius/internal/domain/batch"
	documentuc "github.com/kailas-cloud/scorpius/internal/usecase/document"
)

// fakeAdder stores every document except ids listed in failIDs.
type fakeAdder struct {
	calls   int
	ids     []string
	metas   []map[string]any
	failIDs map[string]bool
	err     error
}

func (f *fakeAdder) AddDocuments(
	_ context.Context, collectionName string,
	contents []string, metadatas []map[string]any, ids []string,
) (documentuc.Report, error) {
	f.calls++
	if f.err != nil {
		return documentuc.Report{}, f.err
	}
	r := documentuc.Report{Collection: collectionName, IDs: ids, EstimatedCostUSD: 0.001}
	for i, id := range ids {
		f.ids = append(f.ids, id)
		f.metas = append(f.metas, metadatas[i])
		if f.failIDs[id] {
			r.Results = append(r.Results, batch.NewError(i, id, domain.ErrProviderMalformed))
			continue
		}
		r.Results = append(r.Results, batch.NewOK(i, id))
		r.Added++
	}
	if r.Added == 0 {
		return r, &domain.AllFailedError{Count: len(contents), First: errors.New("all failed")}
	}
	return r, nil
}
