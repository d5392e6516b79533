package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/fuomag9/checkpulse/internal/logstore"
	"github.com/fuomag9/checkpulse/internal/metrics"
	"github.com/fuomag9/checkpulse/internal/models"
	"github.com/fuomag9/checkpulse/internal/store"
)

type sentAlert struct {
	Recipient string
	Message   string
}

type fakeAlerter struct {
	mu   sync.Mutex
	sent []sentAlert
}

func (f *fakeAlerter) Dispatch(recipient, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentAlert{recipient, message})
}

func (f *fakeAlerter) alerts() []sentAlert {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentAlert(nil), f.sent...)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []string
}

func (f *fakePublisher) Broadcast(msgType string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, msgType)
	return nil
}

// stepClock returns a clock that advances one second per call
func stepClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	t := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

type fixture struct {
	store   *store.FileStore
	logs    *logstore.Store
	alerter *fakeAlerter
	metrics *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	logs, err := logstore.New(t.TempDir())
	require.NoError(t, err)
	return &fixture{
		store:   s,
		logs:    logs,
		alerter: &fakeAlerter{},
		metrics: metrics.New(prometheus.NewRegistry()),
	}
}

func sampleCheck(id string) *models.Check {
	return &models.Check{
		ID:             id,
		OwnerID:        "5551234567",
		Protocol:       models.ProtocolHTTPS,
		URL:            "example.com/health",
		Method:         "GET",
		SuccessCodes:   []int{200},
		TimeoutSeconds: 3,
		State:          models.StateDown,
	}
}

func (f *fixture) put(t *testing.T, doc interface{}, id string) {
	t.Helper()
	require.NoError(t, f.store.Create(context.Background(), models.ChecksCollection, id, doc))
}

func (f *fixture) load(t *testing.T, id string) *models.Check {
	t.Helper()
	raw, err := f.store.Read(context.Background(), models.ChecksCollection, id)
	require.NoError(t, err)
	c, err := models.ValidateCheck(raw)
	require.NoError(t, err)
	return c
}

