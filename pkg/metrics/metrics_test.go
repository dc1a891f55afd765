package metrics_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/pseudomuto/snowkeeper/pkg/executor"
	"github.com/pseudomuto/snowkeeper/pkg/metrics"
	"github.com/pseudomuto/snowkeeper/pkg/script"
	"github.com/stretchr/testify/require"
)

func result(path string, status executor.ExecutionStatus) *executor.ExecutionResult {
	return &executor.ExecutionResult{
		Script:        script.NewClassifier().Classify(path, time.Time{}),
		Status:        status,
		ExecutionTime: 2 * time.Second,
	}
}

func TestObserve(t *testing.T) {
	c := metrics.New()
	c.Observe(result("/r/V_a.sql", executor.StatusApplied))
	c.Observe(result("/r/V_b.sql", executor.StatusApplied))
	c.Observe(result("/r/R_c(DEV).sql", executor.StatusSkipped))

	require.InDelta(t, 2, testutil.ToFloat64(c.Scripts.WithLabelValues("versioned", "applied")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(c.Scripts.WithLabelValues("repeatable", "skipped")), 0)
	require.Equal(t, 1, testutil.CollectAndCount(c.ScriptDuration))
}

func TestFinishAndResize(t *testing.T) {
	c := metrics.New()
	c.Resize("resized")
	c.Finish("prd", errors.New("boom"))

	require.InDelta(t, 1, testutil.ToFloat64(c.WarehouseSize.WithLabelValues("resized")), 0)
	require.Positive(t, testutil.ToFloat64(c.LastRun.WithLabelValues("prd", "failure")))
}

func TestPush(t *testing.T) {
	var path, body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := metrics.New()
	c.Observe(result("/r/V_a.sql", executor.StatusApplied))

	require.NoError(t, c.Push(context.Background(), srv.URL+"/", "snowkeeper", map[string]string{"environment": "dev"}))
	require.Equal(t, "/metrics/job/snowkeeper/environment/dev", path)
	require.NotEmpty(t, body)

	srv.Close()
	require.Error(t, c.Push(context.Background(), srv.URL, "snowkeeper", nil))
}
