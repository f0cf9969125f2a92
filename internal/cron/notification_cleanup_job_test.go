package cron

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/hvalleo/storefront-backend/pkg/logger"
)

type fakeCleanupRepo struct {
	deleted    int64
	lastCutoff time.Time
}

func (f *fakeCleanupRepo) DeleteReadBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	f.lastCutoff = cutoff
	return f.deleted, nil
}

type passthroughTxRunner struct{}

func (passthroughTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func TestNotificationCleanupUsesRetentionCutoff(t *testing.T) {
	t.Parallel()

	repo := &fakeCleanupRepo{deleted: 4}
	job, err := NewNotificationCleanupJob(NotificationCleanupJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "cron-test"}),
		DB:         passthroughTxRunner{},
		Repository: repo,
		Retention:  7,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run job: %v", err)
	}

	expected := time.Now().UTC().Add(-7 * 24 * time.Hour)
	if repo.lastCutoff.Before(expected.Add(-time.Minute)) || repo.lastCutoff.After(expected.Add(time.Minute)) {
		t.Fatalf("unexpected cutoff %v", repo.lastCutoff)
	}
}

func TestNotificationCleanupDefaultsRetention(t *testing.T) {
	t.Parallel()

	repo := &fakeCleanupRepo{}
	job, err := NewNotificationCleanupJob(NotificationCleanupJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "cron-test"}),
		DB:         passthroughTxRunner{},
		Repository: repo,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run job: %v", err)
	}

	expected := time.Now().UTC().Add(-notificationRetentionDays * 24 * time.Hour)
	if repo.lastCutoff.Before(expected.Add(-time.Minute)) || repo.lastCutoff.After(expected.Add(time.Minute)) {
		t.Fatalf("unexpected default cutoff %v", repo.lastCutoff)
	}
}
