package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agamariel/crowdfund/internal/models"
	"github.com/agamariel/crowdfund/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeper_RunOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(0)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	expired := f.campaign
	expired.EndDate = now.Add(-time.Minute)
	f.ledger.SeedCampaign(expired)

	var cutoff time.Time
	purger := &storage.MockNotificationStorage{
		PurgeOlderThanFunc: func(ctx context.Context, c time.Time) (int64, error) {
			cutoff = c
			return 3, nil
		},
	}
	s := NewSweeper(f.ledger, purger, time.Hour, 48*time.Hour, nil)
	s.now = func() time.Time { return now }

	require.NoError(t, s.RunOnce(ctx))

	c, err := f.ledger.GetCampaign(ctx, f.campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusCompleted, c.Status)
	assert.Equal(t, now.Add(-48*time.Hour), cutoff)
}

func TestSweeper_PurgeErrorDoesNotStopCampaigns(t *testing.T) {
	ctx := context.Background()
	f := newFixture(0)
	expired := f.campaign
	expired.EndDate = time.Now().Add(-time.Hour)
	f.ledger.SeedCampaign(expired)

	purger := &storage.MockNotificationStorage{
		PurgeOlderThanFunc: func(context.Context, time.Time) (int64, error) {
			return 0, errors.New("db down")
		},
	}
	err := NewSweeper(f.ledger, purger, time.Hour, time.Hour, nil).RunOnce(ctx)
	assert.ErrorContains(t, err, "purge notifications")

	c, err := f.ledger.GetCampaign(ctx, f.campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusCompleted, c.Status)
}

func TestSweeper_StartStopsOnCancel(t *testing.T) {
	f := newFixture(0)
	runs := make(chan struct{}, 10)
	purger := &storage.MockNotificationStorage{
		PurgeOlderThanFunc: func(context.Context, time.Time) (int64, error) {
			select {
			case runs <- struct{}{}:
			default:
			}
			return 0, nil
		},
	}
	ctx, cancel := context.WithCancel(context.Background())
	NewSweeper(f.ledger, purger, 10*time.Millisecond, time.Hour, nil).Start(ctx)

	for i := 0; i < 2; i++ {
		select {
		case <-runs:
		case <-time.After(time.Second):
			t.Fatal("sweeper did not run")
		}
	}
	cancel()
}
