package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
)

// CheckIDLength is the length of generated check identifiers
const CheckIDLength = 20

// ChecksCollection is the record store collection holding checks
const ChecksCollection = "checks"

// State is the health state of a check
type State string

const (
	StateUp   State = "UP"
	StateDown State = "DOWN"
)

// Protocol is the scheme used to probe a check
type Protocol string

const (
	ProtocolHTTP  Protocol = "http"
	ProtocolHTTPS Protocol = "https"
)

// Timeout bounds in seconds, both exclusive
const (
	MinTimeoutSeconds = 1
	MaxTimeoutSeconds = 5
)

var allowedMethods = []string{"GET", "POST", "PUT", "DELETE"}

// Check represents a monitored target
type Check struct {
	ID             string   `json:"id"`
	OwnerID        string   `json:"ownerId"`
	Protocol       Protocol `json:"protocol"`
	URL            string   `json:"url"`
	Method         string   `json:"method"`
	SuccessCodes   []int    `json:"successCodes"`
	TimeoutSeconds int      `json:"timeoutSeconds"`
	State          State    `json:"state"`
	LastCheckedAt  int64    `json:"lastCheckedAt"` // epoch milliseconds, 0 if never probed
}

// Target returns the absolute URL probed for this check
func (c *Check) Target() string {
	return string(c.Protocol) + "://" + c.URL
}

// IsHealthy reports whether an outcome counts as healthy for this check
func (c *Check) IsHealthy(o Outcome) bool {
	if o.Error != "" || o.StatusCode == 0 {
		return false
	}
	return slices.Contains(c.SuccessCodes, o.StatusCode)
}

// Clone returns a deep copy of the check
func (c *Check) Clone() *Check {
	cp := *c
	cp.SuccessCodes = slices.Clone(c.SuccessCodes)
	return &cp
}

// ValidationError describes why a stored check was rejected
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid check field %s: %s", e.Field, e.Reason)
}

// rawCheck mirrors Check with optional fields so absence can be detected
type rawCheck struct {
	ID             *string          `json:"id"`
	OwnerID        *string          `json:"ownerId"`
	Protocol       *string          `json:"protocol"`
	URL            *string          `json:"url"`
	Method         *string          `json:"method"`
	SuccessCodes   *[]int           `json:"successCodes"`
	TimeoutSeconds *json.RawMessage `json:"timeoutSeconds"`
	State          *string          `json:"state"`
	LastCheckedAt  *json.RawMessage `json:"lastCheckedAt"`
}

// ValidateCheck decodes a raw stored document and returns a typed check or
// a *ValidationError describing the first offending field.
func ValidateCheck(raw []byte) (*Check, error) {
	var rc rawCheck
	if err := json.Unmarshal(raw, &rc); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, &ValidationError{Field: typeErr.Field, Reason: "invalid type"}
		}
		return nil, &ValidationError{Field: "document", Reason: err.Error()}
	}

	c := &Check{}

	if rc.ID == nil || len(strings.TrimSpace(*rc.ID)) != CheckIDLength {
		return nil, &ValidationError{Field: "id", Reason: fmt.Sprintf("must be %d characters", CheckIDLength)}
	}
	c.ID = strings.TrimSpace(*rc.ID)

	if rc.OwnerID == nil || strings.TrimSpace(*rc.OwnerID) == "" {
		return nil, &ValidationError{Field: "ownerId", Reason: "required"}
	}
	c.OwnerID = strings.TrimSpace(*rc.OwnerID)

	if rc.Protocol == nil {
		return nil, &ValidationError{Field: "protocol", Reason: "required"}
	}
	switch p := Protocol(*rc.Protocol); p {
	case ProtocolHTTP, ProtocolHTTPS:
		c.Protocol = p
	default:
		return nil, &ValidationError{Field: "protocol", Reason: "must be http or https"}
	}

	if rc.URL == nil || strings.TrimSpace(*rc.URL) == "" {
		return nil, &ValidationError{Field: "url", Reason: "required"}
	}
	c.URL = strings.TrimSpace(*rc.URL)

	if rc.Method == nil || !slices.Contains(allowedMethods, *rc.Method) {
		return nil, &ValidationError{Field: "method", Reason: "must be one of " + strings.Join(allowedMethods, ", ")}
	}
	c.Method = *rc.Method

	if rc.SuccessCodes == nil || *rc.SuccessCodes == nil {
		return nil, &ValidationError{Field: "successCodes", Reason: "required"}
	}
	c.SuccessCodes = *rc.SuccessCodes

	timeout, err := parseTimeout(rc.TimeoutSeconds)
	if err != nil {
		return nil, err
	}
	c.TimeoutSeconds = timeout

	c.State = StateDown
	if rc.State != nil && *rc.State != "" {
		switch s := State(*rc.State); s {
		case StateUp, StateDown:
			c.State = s
		default:
			return nil, &ValidationError{Field: "state", Reason: "must be UP or DOWN"}
		}
	}

	if rc.LastCheckedAt != nil && string(*rc.LastCheckedAt) != "null" {
		var ts int64
		if err := json.Unmarshal(*rc.LastCheckedAt, &ts); err != nil {
			return nil, &ValidationError{Field: "lastCheckedAt", Reason: "must be an integer timestamp"}
		}
		c.LastCheckedAt = ts
	}

	return c, nil
}

func parseTimeout(raw *json.RawMessage) (int, error) {
	if raw == nil || string(*raw) == "null" {
		return 0, &ValidationError{Field: "timeoutSeconds", Reason: "required"}
	}
	var f float64
	if err := json.Unmarshal(*raw, &f); err != nil {
		return 0, &ValidationError{Field: "timeoutSeconds", Reason: "must be a number"}
	}
	if f != math.Trunc(f) || f <= MinTimeoutSeconds || f >= MaxTimeoutSeconds {
		return 0, &ValidationError{
			Field:  "timeoutSeconds",
			Reason: fmt.Sprintf("must be a whole number between %d and %d exclusive", MinTimeoutSeconds, MaxTimeoutSeconds),
		}
	}
	return int(f), nil
}
