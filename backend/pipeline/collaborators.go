package pipeline

import (
	"context"

	"vukamap/backend/vision"
)

// Store persists report records.
type Store interface {
	CreateReport(ctx context.Context, r *ReportRecord) (int64, error)
	// GetReport returns ErrReportNotFound for unknown ids.
	GetReport(ctx context.Context, id int64) (*ReportRecord, error)
	// ResolveReport must flip resolved from false to true as one conditional
	// write and return ErrAlreadyResolved when the record was already resolved.
	ResolveReport(ctx context.Context, id int64, res *Resolution) error
}

// CreditingStore resolves a report and credits the claimant in one
// transaction: either both happen or neither does. Credit failures wrap
// ErrRewardTransfer. When the Store implements it the Ledger is not called.
type CreditingStore interface {
	Store
	ResolveAndCredit(ctx context.Context, id int64, res *Resolution, amount int) error
}

// Ledger holds claimants' eco-credit balances.
type Ledger interface {
	CreditUser(ctx context.Context, userID string, amount int) error
}

type ContentAnalyzer interface {
	AnalyzeDirtiness(ctx context.Context, image []byte) vision.Assessment
	AnalyzeCleanliness(ctx context.Context, image []byte) vision.Assessment
}

// Publisher fans report lifecycle events out to other services.
type Publisher interface {
	PublishWithRoutingKey(routingKey string, message interface{}) error
}
