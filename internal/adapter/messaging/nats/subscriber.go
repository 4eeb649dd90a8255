package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/platform/logger"
)

// handleTimeout bounds the cache work done for one invalidation message.
const handleTimeout = 5 * time.Second

// WriteInvalidator evicts the cache entries affected by a listing write.
type WriteInvalidator interface {
	OnWrite(ctx context.Context, permalink string, keywords []string) error
}

// Subscriber applies invalidation requests from writers outside this service,
// such as bulk importers, that change storage directly.
type Subscriber struct {
	nc          *nats.Conn
	subject     string
	queue       string
	invalidator WriteInvalidator
	logger      *logger.Logger
	sub         *nats.Subscription
}

func NewSubscriber(nc *nats.Conn, subject, queue string, inv WriteInvalidator, log *logger.Logger) *Subscriber {
	return &Subscriber{
		nc:          nc,
		subject:     subject,
		queue:       queue,
		invalidator: inv,
		logger:      log.With("subject", subject, "queue", queue),
	}
}

// Start subscribes to the invalidation subject. With a queue group each
// message is handled by one instance only.
func (s *Subscriber) Start() error {
	cb := func(msg *nats.Msg) {
		ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
		defer cancel()
		if err := s.Handle(ctx, msg.Data); err != nil {
			s.logger.Error("Subscriber: invalidation failed", "subject", msg.Subject, "error", err)
		}
	}

	var (
		sub *nats.Subscription
		err error
	)
	if s.queue != "" {
		sub, err = s.nc.QueueSubscribe(s.subject, s.queue, cb)
	} else {
		sub, err = s.nc.Subscribe(s.subject, cb)
	}
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.subject, err)
	}
	s.sub = sub
	s.logger.Info("Subscriber: listening")
	return nil
}

// Handle decodes one ListingEvent and evicts what it names.
func (s *Subscriber) Handle(ctx context.Context, data []byte) error {
	var event ListingEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("invalid invalidation message: %w", err)
	}
	if event.Permalink == "" {
		return errors.New("invalid invalidation message: permalink is required")
	}
	return s.invalidator.OnWrite(ctx, event.Permalink, event.Keywords)
}

func (s *Subscriber) Stop() {
	if s.sub == nil {
		return
	}
	if err := s.sub.Unsubscribe(); err != nil {
		s.logger.Warn("Subscriber: unsubscribe failed", "error", err)
	}
	s.sub = nil
}
