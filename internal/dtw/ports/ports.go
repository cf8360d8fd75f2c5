// Package ports declares the interfaces the scheduler consumes from its
// external collaborators. Services depend on these rather than on concrete
// clients.
package ports

import (
	"context"
	"time"

	"github.com/icclab/loadshift/internal/dtw"
)

// WorkflowEngine starts workflow executions on the downstream engine.
// Identity is conveyed through the context installed by the caller.
type WorkflowEngine interface {
	StartWorkflow(ctx context.Context, workflowName string, input, params map[string]any, description string) error
}

// TrustIssuer issues delegated identity tokens and builds scoped identity
// contexts for the runner loops.
type TrustIssuer interface {
	// AddTrustID issues a trust token for the identity in ctx and stores it
	// under the "trust_id" key, mutating values in place.
	AddTrustID(ctx context.Context, values map[string]any) error
	// CreateContext returns a child context carrying the identity delegated
	// by trustID within projectID.
	CreateContext(ctx context.Context, trustID, projectID string) context.Context
}

// PriceSource supplies the hourly energy price curve. A nil curve means the
// source is unavailable or returned unusable data; callers fall back.
type PriceSource interface {
	GetPrices(ctx context.Context) *dtw.PriceCurve
}

// Clock abstracts time.Now for deterministic scheduling tests.
type Clock func() time.Time
