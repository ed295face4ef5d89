package service

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/shrinkray-io/shrinkray/internal/app/model"
)

// ClickPublisher publishes click events to NATS JetStream. It is the default
// ClickSink when a broker is configured.
type ClickPublisher struct {
	js nats.JetStreamContext
}

// NewClickPublisher creates a new click event publisher.
func NewClickPublisher(js nats.JetStreamContext) *ClickPublisher {
	return &ClickPublisher{js: js}
}

// Record publishes the event to the click stream.
func (p *ClickPublisher) Record(event *model.ClickEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal click event: %w", err)
	}

	if _, err := p.js.Publish(model.ClickStreamSubject, data); err != nil {
		return fmt.Errorf("publish click event: %w", err)
	}
	return nil
}
