// Package journal persists write-pipeline runs for operator reconciliation.
//
// The pipeline accepts that content can be stored while the matching ledger
// call fails; the journal makes those orphaned content addresses visible.
// Recording is best-effort and never fails a pipeline.
package journal

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Terminal stages of a recorded pipeline run.
const (
	StageValidate  = "validate"
	StageStore     = "store"
	StageEstimate  = "estimate"
	StageSubmit    = "submit"
	StageConfirmed = "confirmed"
)

// Entry is one recorded pipeline run.
type Entry struct {
	RunID          string
	Method         string
	Owner          string
	ContentAddress string
	TxHash         string
	Stage          string
	ErrorKind      string
	FeeEther       decimal.Decimal
	CreatedAt      time.Time
}

// Orphaned reports whether the run stored content but produced no receipt.
func (e *Entry) Orphaned() bool {
	return e.ContentAddress != "" && e.TxHash == ""
}

// Store is the journal's persistence interface.
type Store interface {
	Record(ctx context.Context, entry *Entry) error
	ListOrphaned(ctx context.Context) ([]*Entry, error)
}
