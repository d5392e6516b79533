package uptime

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fuomag9/checkpulse/internal/logstore"
	"github.com/fuomag9/checkpulse/internal/models"
)

// LogReader is the read side of log storage
type LogReader interface {
	ReadAll(ctx context.Context, logID string) ([]byte, error)
	ReadStaged(ctx context.Context, logID string) ([]byte, error)
	ListArchives(ctx context.Context) ([]string, error)
	ReadArchive(ctx context.Context, archiveID string) ([]byte, error)
}

// Calculator calculates uptime statistics for checks from their activity logs
type Calculator struct {
	logs LogReader
	now  func() time.Time
}

// NewCalculator creates a new uptime calculator
func NewCalculator(logs LogReader) *Calculator {
	return &Calculator{logs: logs, now: time.Now}
}

// UptimeStats represents uptime statistics for a check
type UptimeStats struct {
	CheckID          string  `json:"checkId"`
	UptimePercentage float64 `json:"uptimePercentage"`
	TotalChecks      int     `json:"totalChecks"`
	UpChecks         int     `json:"upChecks"`
	DownChecks       int     `json:"downChecks"`
	Timeouts         int     `json:"timeouts"`
	Transitions      int     `json:"transitions"`
	StartTime        string  `json:"startTime"`
	EndTime          string  `json:"endTime"`
}

// Calculate24HourUptime calculates uptime for the last 24 hours
func (c *Calculator) Calculate24HourUptime(ctx context.Context, checkID string) (*UptimeStats, error) {
	return c.CalculateUptimeForPeriod(ctx, checkID, 24*time.Hour)
}

// Calculate7DayUptime calculates uptime for the last 7 days
func (c *Calculator) Calculate7DayUptime(ctx context.Context, checkID string) (*UptimeStats, error) {
	return c.CalculateUptimeForPeriod(ctx, checkID, 7*24*time.Hour)
}

// CalculateUptimeForPeriod scans the live log, any staged copy and every
// archive of the check for entries inside the period. Identical lines,
// which an interrupted rotation or a re-appended write can duplicate, are
// counted once.
func (c *Calculator) CalculateUptimeForPeriod(ctx context.Context, checkID string, duration time.Duration) (*UptimeStats, error) {
	endTime := c.now()
	startTime := endTime.Add(-duration)
	from, to := startTime.UnixMilli(), endTime.UnixMilli()

	stats := &UptimeStats{
		CheckID:   checkID,
		StartTime: startTime.UTC().Format(time.RFC3339),
		EndTime:   endTime.UTC().Format(time.RFC3339),
	}
	seen := make(map[string]bool)

	count := func(data []byte) error {
		sc := bufio.NewScanner(bytes.NewReader(data))
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			line := bytes.TrimSpace(sc.Bytes())
			if len(line) == 0 || seen[string(line)] {
				continue
			}
			var entry models.LogEntry
			if err := json.Unmarshal(line, &entry); err != nil {
				continue
			}
			if entry.Time < from || entry.Time > to {
				continue
			}
			seen[string(line)] = true

			stats.TotalChecks++
			if entry.State == models.StateUp {
				stats.UpChecks++
			} else {
				stats.DownChecks++
			}
			if entry.Outcome.IsTimeout() {
				stats.Timeouts++
			}
			if entry.Alert {
				stats.Transitions++
			}
		}
		return sc.Err()
	}

	live, err := c.logs.ReadAll(ctx, checkID)
	if err != nil && !errors.Is(err, logstore.ErrNotFound) {
		return nil, fmt.Errorf("failed to read log %s: %w", checkID, err)
	}
	if err := count(live); err != nil {
		return nil, fmt.Errorf("failed to scan log %s: %w", checkID, err)
	}

	staged, err := c.logs.ReadStaged(ctx, checkID)
	if err != nil && !errors.Is(err, logstore.ErrNotFound) {
		return nil, fmt.Errorf("failed to read staged log %s: %w", checkID, err)
	}
	if err := count(staged); err != nil {
		return nil, fmt.Errorf("failed to scan staged log %s: %w", checkID, err)
	}

	archives, err := c.logs.ListArchives(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list archives: %w", err)
	}
	for _, archiveID := range archives {
		if !strings.HasPrefix(archiveID, checkID+"-") {
			continue
		}
		data, err := c.logs.ReadArchive(ctx, archiveID)
		if err != nil {
			return nil, fmt.Errorf("failed to read archive %s: %w", archiveID, err)
		}
		if err := count(data); err != nil {
			return nil, fmt.Errorf("failed to scan archive %s: %w", archiveID, err)
		}
	}

	if stats.TotalChecks > 0 {
		stats.UptimePercentage = float64(stats.UpChecks) / float64(stats.TotalChecks) * 100
	}

	return stats, nil
}
