// Package alert consumes scoring events and surfaces high-risk activity.
package alert

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/metrics"
)

// Listener subscribes to the scoring topics and turns events into operator
// signal: structured log lines and alert counters. It never feeds anything
// back into scoring.
type Listener struct {
	bus domain.EventBus

	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewListener creates a listener on the given bus.
func NewListener(bus domain.EventBus) *Listener {
	ctx, cancel := context.WithCancel(context.Background())
	return &Listener{bus: bus, ctx: ctx, cancel: cancel}
}

// Start subscribes to the batch and alert topics.
func (l *Listener) Start() error {
	sub, err := l.bus.Subscribe(l.ctx, domain.TopicBatchScored, l.handleBatchScored)
	if err != nil {
		return err
	}
	l.subscriptions = append(l.subscriptions, sub)

	sub, err = l.bus.Subscribe(l.ctx, domain.TopicHighRiskAlert, l.handleHighRisk)
	if err != nil {
		return err
	}
	l.subscriptions = append(l.subscriptions, sub)

	slog.Info("alert listener started",
		"topics", []string{domain.TopicBatchScored, domain.TopicHighRiskAlert},
	)
	return nil
}

func (l *Listener) handleBatchScored(ctx context.Context, msg *domain.Message) error {
	var event domain.BatchScoredEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		slog.Error("failed to parse batch event",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	slog.Info("batch scored",
		"batch_id", event.BatchID,
		"total_records", event.TotalRecords,
		"high_risk", event.HighRisk,
		"mean_score", event.MeanScore,
		"duration_ms", event.DurationMs,
	)
	return nil
}

func (l *Listener) handleHighRisk(ctx context.Context, msg *domain.Message) error {
	var event domain.HighRiskAlertEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		slog.Error("failed to parse alert event",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	metrics.HighRiskAlerts.Inc()
	slog.Warn("high risk transaction",
		"batch_id", event.BatchID,
		"txn_id", event.TxnID,
		"score", event.Score,
		"category", event.Category,
		"corridor", event.Corridor,
	)
	return nil
}

// Stop cancels all subscriptions.
func (l *Listener) Stop() error {
	l.cancel()

	for _, sub := range l.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	l.subscriptions = nil

	slog.Info("alert listener stopped")
	return nil
}
