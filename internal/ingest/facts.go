package ingest

import (
	"context"

	"github.com/23atomist/electrion-PA/internal/metrics"
	"github.com/23atomist/electrion-PA/internal/model"
	"github.com/23atomist/electrion-PA/internal/store"
)

// FactWriter appends fact rows. A composite key that already exists is
// left as is and reported as not inserted; measures are never updated.
type FactWriter struct {
	tx store.Tx
}

// NewFactWriter returns a FactWriter bound to tx.
func NewFactWriter(tx store.Tx) *FactWriter {
	return &FactWriter{tx: tx}
}

func (w *FactWriter) WriteResult(ctx context.Context, r model.Result) (bool, error) {
	inserted, err := w.tx.InsertResult(ctx, r)
	if err != nil {
		return false, err
	}
	countFact(KindResults, inserted)
	return inserted, nil
}

func (w *FactWriter) WriteRegistration(ctx context.Context, r model.Registration) (bool, error) {
	inserted, err := w.tx.InsertRegistration(ctx, r)
	if err != nil {
		return false, err
	}
	countFact(KindRegistration, inserted)
	return inserted, nil
}

func countFact(kind Kind, inserted bool) {
	result := "inserted"
	if !inserted {
		result = "duplicate"
	}
	metrics.FactsTotal.WithLabelValues(string(kind), result).Inc()
}
