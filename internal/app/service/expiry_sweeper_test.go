package service

import (
	"context"
	"testing"
	"time"
)

func TestExpirySweeper_DeletesOnTick(t *testing.T) {
	swept := make(chan time.Time, 1)
	repo := &mockLinkRepository{
		deleteExpFn: func(ctx context.Context, now time.Time) (int64, error) {
			select {
			case swept <- now:
			default:
			}
			return 1, nil
		},
	}

	sweeper := NewExpirySweeper(nil, repo, 10*time.Millisecond)
	sweeper.Start()
	defer sweeper.Stop()

	select {
	case <-swept:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a sweep")
	}
}
