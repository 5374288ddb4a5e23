// Package pipeline turns raw chat messages into stored spend records.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"spendbot/internal/backend"
	"spendbot/internal/core"
	"spendbot/internal/metrics"
)

// Tagger assigns a cluster label to a message text.
type Tagger interface {
	Tag(text string) (string, bool)
}

// EventPublisher announces stored spends for the mirror worker.
type EventPublisher interface {
	PublishSpendStored(ctx context.Context, spendID int64) error
}

// Service orchestrates message ingestion across filtering, parsing,
// storage and AMQP.
type Service struct {
	store        backend.Store
	tagger       Tagger
	publisher    EventPublisher
	sourceChatID int64
	loc          *time.Location
}

func NewService(store backend.Store, tagger Tagger, publisher EventPublisher, sourceChatID int64, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		store:        store,
		tagger:       tagger,
		publisher:    publisher,
		sourceChatID: sourceChatID,
		loc:          loc,
	}
}

// Message is one inbound chat message.
type Message struct {
	ChatID    int64
	MessageID int64
	Text      string
	SentAt    time.Time
}

// Process classifies and stores a message. Filtered messages report their
// outcome without an error; an error means storage failed and the message
// may be retried.
func (s *Service) Process(ctx context.Context, msg Message) (core.Outcome, error) {
	start := time.Now()
	outcome, err := s.process(ctx, msg)
	metrics.ProcessDuration.Observe(time.Since(start).Seconds())
	if err == nil {
		metrics.MessagesTotal.WithLabelValues(outcome.String()).Inc()
	}
	return outcome, err
}

func (s *Service) process(ctx context.Context, msg Message) (core.Outcome, error) {
	if s.sourceChatID != 0 && msg.ChatID != s.sourceChatID {
		return core.OutcomeWrongOrigin, nil
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return core.OutcomeEmptyText, nil
	}

	cluster, ok := s.tagger.Tag(text)
	if !ok {
		return core.OutcomeNoCluster, nil
	}

	amount, err := core.ParseAmount(text)
	if err != nil {
		slog.DebugContext(ctx, "No usable amount in message",
			"chat_id", msg.ChatID, "message_id", msg.MessageID, "error", err)
		return core.OutcomeNoAmount, nil
	}

	money, err := core.MoneyFromDecimal(amount)
	if err != nil {
		return core.OutcomeNoAmount, nil
	}
	if money.Cents <= 0 {
		return core.OutcomeNonPositive, nil
	}

	record := core.SpendRecord{
		OriginID:  msg.ChatID,
		MessageID: msg.MessageID,
		Day:       core.NewDay(msg.SentAt, s.loc),
		Cluster:   cluster,
		Amount:    money,
	}
	if err := record.Validate(); err != nil {
		return "", fmt.Errorf("validate spend record: %w", err)
	}

	// Save locally first (fast, reliable)
	id, inserted, err := s.store.InsertIfAbsent(ctx, record)
	if err != nil {
		return "", fmt.Errorf("save spend: %w", err)
	}
	if !inserted {
		slog.DebugContext(ctx, "Duplicate message ignored",
			"chat_id", msg.ChatID, "message_id", msg.MessageID)
		return core.OutcomeDuplicate, nil
	}

	// Publish async mirror message (non-blocking)
	if err := s.publishStored(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish mirror message",
			"id", id, "error", err)
		// Don't fail ingestion - the spend is saved locally and the
		// pending sweep picks it up later.
	}

	return core.OutcomeStored, nil
}

func (s *Service) publishStored(ctx context.Context, id int64) error {
	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP publisher not available, skipping mirror message")
		return nil
	}
	return s.publisher.PublishSpendStored(ctx, id)
}
