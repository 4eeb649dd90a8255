package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/platform/logger"
)

const (
	ListingSavedSubject   = "listing.saved"
	ListingDeletedSubject = "listing.deleted"
)

// ListingEvent is the payload of listing write events and of invalidation
// requests.
type ListingEvent struct {
	Permalink string   `json:"permalink"`
	Keywords  []string `json:"keywords"`
}

type msgPublisher interface {
	Publish(subject string, data []byte) error
}

type Publisher struct {
	nc     msgPublisher
	logger *logger.Logger
}

func NewPublisher(nc *nats.Conn, log *logger.Logger) *Publisher {
	return &Publisher{nc: nc, logger: log}
}

func (p *Publisher) PublishSaved(ctx context.Context, permalink string, keywords []string) error {
	return p.publish(ctx, ListingSavedSubject, ListingEvent{Permalink: permalink, Keywords: keywords})
}

func (p *Publisher) PublishDeleted(ctx context.Context, permalink string, keywords []string) error {
	return p.publish(ctx, ListingDeletedSubject, ListingEvent{Permalink: permalink, Keywords: keywords})
}

func (p *Publisher) publish(_ context.Context, subject string, event ListingEvent) error {
	if event.Keywords == nil {
		event.Keywords = []string{}
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event for %s: %w", subject, err)
	}
	if err := p.nc.Publish(subject, data); err != nil {
		p.logger.Error("Failed to publish NATS message", "subject", subject, "permalink", event.Permalink, "error", err)
		return fmt.Errorf("failed to publish NATS message for %s: %w", subject, err)
	}
	p.logger.Debug("Published NATS message", "subject", subject, "permalink", event.Permalink)
	return nil
}
