package monitor

import (
	"context"

	"github.com/fuomag9/checkpulse/internal/models"
)

// Prober performs exactly one probe of a check
type Prober interface {
	Probe(ctx context.Context, check *models.Check) models.Outcome
}

// Alerter hands an alert off for background delivery
type Alerter interface {
	Dispatch(recipient, message string)
}

// LogAppender appends one line to a check's live log
type LogAppender interface {
	Append(ctx context.Context, logID, line string) error
}

// Publisher fans events out to live observers
type Publisher interface {
	Broadcast(msgType string, payload interface{}) error
}

// Event types published to observers
const (
	EventLogEntry   = "log_entry"
	EventTransition = "state_change"
)
