package service

import (
	"context"

	"github.com/shrinkray-io/shrinkray/internal/app/model"
	"github.com/shrinkray-io/shrinkray/internal/app/repository"
)

// DirectClickSink writes click events straight to the store. It is the
// fallback ClickSink when no broker is configured; behavior is identical to
// the streamed path apart from losing the buffering.
type DirectClickSink struct {
	repo repository.ClickEventRepository
}

// NewDirectClickSink creates a sink writing through the given repository.
func NewDirectClickSink(repo repository.ClickEventRepository) *DirectClickSink {
	return &DirectClickSink{repo: repo}
}

// Record persists the event. Callers already run Record off the request path.
func (s *DirectClickSink) Record(event *model.ClickEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), asyncOpTimeout)
	defer cancel()
	return s.repo.Insert(ctx, event)
}
