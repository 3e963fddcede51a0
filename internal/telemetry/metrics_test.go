package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGetMetrics_singleton(t *testing.T) {
	require.Same(t, GetMetrics(), GetMetrics())
}

func TestRecordBuild_noopProvider(t *testing.T) {
	m := GetMetrics()
	require.NotPanics(t, func() {
		m.RecordBuild(context.Background(), "production", 150*time.Millisecond, 2048, nil)
		m.RecordBuild(context.Background(), "development", time.Second, 0, errors.New("boom"))
	})
}

func TestInitTelemetry_disabled(t *testing.T) {
	shutdown, err := InitTelemetry(context.Background(), false, "sitepack", "dev")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
