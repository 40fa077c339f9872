package webapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hpc-scale/prepare-scale/common/clusterconfig"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type staticPlans struct {
	plan *clusterconfig.TopologyPlan
}

func (s *staticPlans) LatestPlan() *clusterconfig.TopologyPlan {
	return s.plan
}

func newTestServer(t *testing.T, plans PlanSource, level *zap.AtomicLevel) *httptest.Server {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "webapi_test_total"})
	reg.MustRegister(counter)
	counter.Inc()

	w := newWebServer(WebServerOptions{
		Logger:   zaptest.NewLogger(t),
		LogLevel: level,
		Plans:    plans,
		Gatherer: reg,
	})

	srv := httptest.NewServer(w.router())
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string) (int, string) {
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestPlanBeforeFirstRun(t *testing.T) {
	srv := newTestServer(t, &staticPlans{}, nil)

	status, _ := get(t, srv.URL+"/plan")
	require.Equal(t, http.StatusNotFound, status)

	status, _ = get(t, srv.URL+"/healthz")
	require.Equal(t, http.StatusServiceUnavailable, status)
}

func TestPlan(t *testing.T) {
	plans := &staticPlans{plan: &clusterconfig.TopologyPlan{
		RunID:       "run-1",
		ClusterType: "compute",
		QuorumCount: 1,
		GUIAddress:  "10.241.1.4",
	}}
	srv := newTestServer(t, plans, nil)

	status, body := get(t, srv.URL+"/plan")
	require.Equal(t, http.StatusOK, status)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(body), &decoded))
	require.Equal(t, "run-1", decoded["run_id"])
	require.Equal(t, "compute", decoded["cluster_type"])
	require.Equal(t, "10.241.1.4", decoded["gui_address"])

	status, body = get(t, srv.URL+"/healthz")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ok", body)
}

func TestMetrics(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	status, body := get(t, srv.URL+"/metrics")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body, "webapi_test_total 1")
}

func TestLogLevel(t *testing.T) {
	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	srv := newTestServer(t, nil, &level)

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/loglevel", strings.NewReader(`{"level":"debug"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, zap.DebugLevel, level.Level())
}
