package repository

import (
	"context"
	"time"

	"github.com/icclab/loadshift/internal/dtw"
)

// TriggerRepository abstracts persistence for cron triggers.
//
// Advance is the multi-worker race guard: it applies the new execution
// details only where next_execution_time still equals its value in t, so at
// most one of several racing advancers commits a given transition.
type TriggerRepository interface {
	Create(ctx context.Context, t *dtw.CronTrigger) error
	Get(ctx context.Context, name string) (*dtw.CronTrigger, error)
	ListDue(ctx context.Context, now time.Time) ([]*dtw.CronTrigger, error)
	Advance(ctx context.Context, t *dtw.CronTrigger, next time.Time, remaining *int) (bool, error)
	DeleteByID(ctx context.Context, id string) (int64, error)
	Delete(ctx context.Context, name string) error
}
