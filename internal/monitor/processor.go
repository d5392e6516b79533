package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/fuomag9/checkpulse/internal/metrics"
	"github.com/fuomag9/checkpulse/internal/models"
	"github.com/fuomag9/checkpulse/internal/store"
)

// Processor turns a probe outcome into a state update, a log entry and,
// on a transition, an alert.
type Processor struct {
	store     store.Store
	logs      LogAppender
	alerter   Alerter
	publisher Publisher
	message   *template.Template
	now       func() time.Time
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// ProcessorOption customizes a Processor
type ProcessorOption func(*Processor)

// WithClock overrides the time source
func WithClock(now func() time.Time) ProcessorOption {
	return func(p *Processor) { p.now = now }
}

// WithPublisher attaches a live observer for log entries and transitions
func WithPublisher(pub Publisher) ProcessorOption {
	return func(p *Processor) { p.publisher = pub }
}

// NewProcessor creates a processor. alertTemplate is a text/template
// rendered against the updated check.
func NewProcessor(s store.Store, logs LogAppender, alerter Alerter, alertTemplate string, logger *zap.Logger, m *metrics.Metrics, opts ...ProcessorOption) (*Processor, error) {
	tmpl, err := template.New("alert").Parse(alertTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse alert template: %w", err)
	}

	p := &Processor{
		store:   s,
		logs:    logs,
		alerter: alerter,
		message: tmpl,
		now:     time.Now,
		logger:  logger.Named("processor"),
		metrics: m,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Process records one outcome for check. The caller's check is left
// untouched; the returned entry carries the updated copy.
func (p *Processor) Process(ctx context.Context, check *models.Check, outcome models.Outcome) models.LogEntry {
	newState := models.StateDown
	if check.IsHealthy(outcome) {
		newState = models.StateUp
	}
	alert := check.LastCheckedAt != 0 && newState != check.State

	now := p.now().UnixMilli()
	updated := check.Clone()
	updated.State = newState
	updated.LastCheckedAt = now

	entry := models.LogEntry{
		Check:   *updated,
		Outcome: outcome,
		State:   newState,
		Alert:   alert,
		Time:    now,
	}

	log := p.logger.With(zap.String("check_id", check.ID))
	p.metrics.ProbesTotal.WithLabelValues(string(newState)).Inc()

	if err := p.store.Update(ctx, models.ChecksCollection, check.ID, updated); err != nil {
		log.Error("Failed to save check update", zap.Error(err))
		p.metrics.StoreWriteFailures.Inc()
	}

	if line, err := json.Marshal(entry); err != nil {
		log.Error("Failed to encode log entry", zap.Error(err))
	} else if err := p.logs.Append(ctx, check.ID, string(line)); err != nil {
		log.Error("Failed to append log entry", zap.Error(err))
		p.metrics.LogAppendFailures.Inc()
	} else {
		log.Debug("Log entry appended")
	}

	if alert {
		p.metrics.StateTransitions.WithLabelValues(string(newState)).Inc()
		msg, err := p.render(updated)
		if err != nil {
			log.Error("Failed to render alert", zap.Error(err))
		} else {
			p.alerter.Dispatch(updated.OwnerID, msg)
		}
	} else {
		log.Debug("Check outcome has not changed, no alert needed", zap.String("state", string(newState)))
	}

	p.publish(entry)

	return entry
}

func (p *Processor) render(check *models.Check) (string, error) {
	var buf bytes.Buffer
	if err := p.message.Execute(&buf, check); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (p *Processor) publish(entry models.LogEntry) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Broadcast(EventLogEntry, entry); err != nil {
		p.logger.Warn("Failed to publish log entry", zap.Error(err))
	}
	if entry.Alert {
		if err := p.publisher.Broadcast(EventTransition, entry); err != nil {
			p.logger.Warn("Failed to publish transition", zap.Error(err))
		}
	}
}
