package service

import (
	"context"
	"time"

	"imperio/internal/infra"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// runTx executes fn inside a DB transaction. If db is nil (unit-test mode
// with in-memory repositories), fn is called with tx=nil.
//
// A transaction that fails on a transient store error (lost connection,
// serialization failure) is replayed from scratch, up to
// infra.MaxStoreAttempts times. fn must therefore rebuild any state it
// writes. Domain errors are returned on the first attempt.
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return infra.WithRetry(ctx, infra.MaxStoreAttempts, func(attempt int) error {
		if attempt > 0 {
			log.Warn().Int("attempt", attempt+1).Msg("store: retrying transaction after transient error")
		}
		return db.WithContext(ctx).Transaction(fn)
	})
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}
