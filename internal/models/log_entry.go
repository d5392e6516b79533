package models

// TimeoutMessage is the error recorded when a probe exceeds its deadline
const TimeoutMessage = "Timeout"

// Outcome is the result of one probe: a status code or an error, never both
type Outcome struct {
	StatusCode int    `json:"statusCode,omitempty"`
	Error      string `json:"error,omitempty"`
}

// OutcomeStatus builds an outcome for a received response
func OutcomeStatus(code int) Outcome {
	return Outcome{StatusCode: code}
}

// OutcomeError builds an outcome for a failed probe
func OutcomeError(msg string) Outcome {
	return Outcome{Error: msg}
}

// IsTimeout reports whether the probe hit its deadline
func (o Outcome) IsTimeout() bool {
	return o.Error == TimeoutMessage
}

// LogEntry is one line of a check's activity log
type LogEntry struct {
	Check   Check   `json:"check"`
	Outcome Outcome `json:"outcome"`
	State   State   `json:"state"`
	Alert   bool    `json:"alert"`
	Time    int64   `json:"time"` // epoch milliseconds
}
