package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric は指定名・ラベルに一致するメトリクスを返す。
func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m
			}
		}
	}
	t.Fatalf("%s %v metric not found", name, labels)
	return nil
}

func labelsMatch(m *dto.Metric, labels map[string]string) bool {
	matched := 0
	for _, lp := range m.GetLabel() {
		if v, ok := labels[lp.GetName()]; ok && v == lp.GetValue() {
			matched++
		}
	}
	return matched == len(labels)
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	if c := NewCollector(reg); c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordHTTPStatus_IncrementsByCode はステータスコード別にカウントされることを検証する。
func TestRecordHTTPStatus_IncrementsByCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(404)

	if v := findMetric(t, reg, "mypt_http_status_total", map[string]string{"status_code": "200"}).GetCounter().GetValue(); v != 2 {
		t.Errorf("status 200 = %v, want 2", v)
	}
	if v := findMetric(t, reg, "mypt_http_status_total", map[string]string{"status_code": "404"}).GetCounter().GetValue(); v != 1 {
		t.Errorf("status 404 = %v, want 1", v)
	}
}

// TestRecordLogin_SplitsByResult はログイン結果別にカウントされることを検証する。
func TestRecordLogin_SplitsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLogin(true)
	c.RecordLogin(false)
	c.RecordLogin(false)

	if v := findMetric(t, reg, "mypt_logins_total", map[string]string{"result": "failure"}).GetCounter().GetValue(); v != 2 {
		t.Errorf("login failure = %v, want 2", v)
	}
}

// TestSessionMetrics はセッション失効とクリーンアップ件数が記録されることを検証する。
func TestSessionMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSessionExpired("server")
	c.RecordSessionsCleaned(3)
	c.RecordSessionsCleaned(2)

	if v := findMetric(t, reg, "mypt_sessions_expired_total", map[string]string{"source": "server"}).GetCounter().GetValue(); v != 1 {
		t.Errorf("sessions expired = %v, want 1", v)
	}
	if v := findMetric(t, reg, "mypt_sessions_cleaned_total", nil).GetCounter().GetValue(); v != 5 {
		t.Errorf("sessions cleaned = %v, want 5", v)
	}
}

// TestRecordOptimisticOutcome は楽観的更新の結果が記録されることを検証する。
func TestRecordOptimisticOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordOptimisticOutcome("rolled_back")

	if v := findMetric(t, reg, "mypt_optimistic_outcomes_total", map[string]string{"outcome": "rolled_back"}).GetCounter().GetValue(); v != 1 {
		t.Errorf("rolled_back = %v, want 1", v)
	}
}

// TestObserveStoreOperation はストア操作の成否とレイテンシが記録されることを検証する。
func TestObserveStoreOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveStoreOperation("list", "exercises", nil, 10*time.Millisecond)
	c.ObserveStoreOperation("list", "exercises", errors.New("down"), 20*time.Millisecond)

	ok := findMetric(t, reg, "mypt_store_operations_total", map[string]string{"op": "list", "kind": "exercises", "result": "ok"})
	if v := ok.GetCounter().GetValue(); v != 1 {
		t.Errorf("ok = %v, want 1", v)
	}
	hist := findMetric(t, reg, "mypt_store_operation_duration_seconds", map[string]string{"op": "list"})
	if n := hist.GetHistogram().GetSampleCount(); n != 2 {
		t.Errorf("sample count = %d, want 2", n)
	}
}

// TestHandler_ServesMetrics はハンドラーがメトリクスを返すことを検証する。
func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordLogin(true)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "mypt_logins_total") {
		t.Error("response should contain mypt_logins_total metric")
	}
}
