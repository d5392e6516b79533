package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ProbesTotal.WithLabelValues("UP").Inc()
	m.ProbesTotal.WithLabelValues("UP").Inc()
	m.AlertsTotal.WithLabelValues("sent").Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ProbesTotal.WithLabelValues("UP")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AlertsTotal.WithLabelValues("sent")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)

	// A second set on a fresh registry must not panic.
	assert.NotPanics(t, func() { New(prometheus.NewRegistry()) })
}
