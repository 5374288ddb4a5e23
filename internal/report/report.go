// Package report renders the daily spend summary and pushes it to a sink.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"spendbot/internal/backend"
	"spendbot/internal/core"
	"spendbot/internal/metrics"
)

// Triggers for the reports metric.
const (
	TriggerSchedule = "schedule"
	TriggerCommand  = "command"
)

const deliverAttempts = 3

// Sink delivers a rendered report to its destination chat.
type Sink interface {
	SendReport(ctx context.Context, chatID int64, text string) error
}

// Renderer builds the summary text for a day.
type Renderer struct {
	store backend.Store
}

func NewRenderer(store backend.Store) *Renderer {
	return &Renderer{store: store}
}

// Render reads one consistent snapshot of the day and formats it.
func (r *Renderer) Render(ctx context.Context, day core.Day) (string, error) {
	summary, err := r.store.SummaryForDay(ctx, day)
	if err != nil {
		return "", fmt.Errorf("summarize %s: %w", day, err)
	}
	return Format(summary), nil
}

// Format renders a summary. Separate from storage access so it can be
// exercised without a database.
func Format(summary core.DaySummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Сводка спенда за %s\n", summary.Day)

	if len(summary.Clusters) == 0 {
		b.WriteString("Данных нет.")
	} else {
		lines := make([]string, 0, len(summary.Clusters))
		for _, c := range summary.Clusters {
			lines = append(lines, fmt.Sprintf("• %s: $%s (%d записей)", c.Cluster, FormatUSD(c.Total), c.Count))
		}
		b.WriteString(strings.Join(lines, "\n"))
	}

	fmt.Fprintf(&b, "\n\nИТОГО: $%s", FormatUSD(summary.Total))
	return b.String()
}

// FormatUSD renders money with comma grouping and fixed two decimals.
func FormatUSD(m core.Money) string {
	return humanize.FormatFloat("#,###.##", m.Decimal().InexactFloat64())
}

// Reporter renders the summary for a day and delivers it. Delivery is
// retried with a bounded budget and never re-runs the aggregation.
type Reporter struct {
	renderer *Renderer
	sink     Sink
	chatID   int64
	loc      *time.Location
}

func NewReporter(renderer *Renderer, sink Sink, chatID int64, loc *time.Location) *Reporter {
	if loc == nil {
		loc = time.UTC
	}
	return &Reporter{
		renderer: renderer,
		sink:     sink,
		chatID:   chatID,
		loc:      loc,
	}
}

// Today returns the current day in the reporter's timezone.
func (r *Reporter) Today() core.Day {
	return core.NewDay(time.Now(), r.loc)
}

// Run renders the summary for day and delivers it to the sink.
func (r *Reporter) Run(ctx context.Context, day core.Day, trigger string) error {
	text, err := r.renderer.Render(ctx, day)
	if err != nil {
		metrics.ReportFailures.Inc()
		return err
	}

	if err := r.deliver(ctx, text); err != nil {
		metrics.ReportFailures.Inc()
		return fmt.Errorf("deliver report for %s: %w", day, err)
	}

	metrics.ReportsTotal.WithLabelValues(trigger).Inc()
	slog.InfoContext(ctx, "Report posted", "day", day, "trigger", trigger)
	return nil
}

func (r *Reporter) deliver(ctx context.Context, text string) error {
	var lastErr error
	for attempt := 1; attempt <= deliverAttempts; attempt++ {
		lastErr = r.sink.SendReport(ctx, r.chatID, text)
		if lastErr == nil {
			return nil
		}
		slog.WarnContext(ctx, "Report delivery failed",
			"attempt", attempt, "error", lastErr)

		if attempt == deliverAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}
	return lastErr
}
