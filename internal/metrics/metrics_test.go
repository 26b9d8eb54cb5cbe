package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetricFamily は指定名のメトリクスファミリーを返す。
func findMetricFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("%s metric not found", name)
	return nil
}

// labelValue はメトリクスから指定ラベルの値を返す。
func labelValue(m *dto.Metric, name string) string {
	for _, l := range m.GetLabel() {
		if l.GetName() == name {
			return l.GetValue()
		}
	}
	return ""
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordHTTPRequest_CountsByStatusAndObservesDuration はステータス別カウンタとヒストグラムを検証する。
func TestRecordHTTPRequest_CountsByStatusAndObservesDuration(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPRequest(200, 100*time.Millisecond)
	c.RecordHTTPRequest(200, 2*time.Second)
	c.RecordHTTPRequest(404, 10*time.Millisecond)

	mf := findMetricFamily(t, reg, "blogflow_http_requests_total")
	if len(mf.GetMetric()) != 2 {
		t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
	}
	for _, m := range mf.GetMetric() {
		val := m.GetCounter().GetValue()
		switch labelValue(m, "status_code") {
		case "200":
			if val != 2 {
				t.Errorf("http_requests_total{status_code=200} = %v, want 2", val)
			}
		case "404":
			if val != 1 {
				t.Errorf("http_requests_total{status_code=404} = %v, want 1", val)
			}
		default:
			t.Errorf("unexpected label value: %s", labelValue(m, "status_code"))
		}
	}

	h := findMetricFamily(t, reg, "blogflow_http_request_duration_seconds").GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 3 {
		t.Errorf("sample_count = %d, want 3", h.GetSampleCount())
	}
	// 合計は0.1 + 2.0 + 0.01 = 2.11秒
	if h.GetSampleSum() < 2.0 || h.GetSampleSum() > 2.2 {
		t.Errorf("sample_sum = %v, want ~2.11", h.GetSampleSum())
	}
}

// TestRecordAuthVerification_LabelsSourceAndResult は検証経路と結果のラベルを検証する。
func TestRecordAuthVerification_LabelsSourceAndResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAuthVerification("provider_jwt", "failure")
	c.RecordAuthVerification("local", "success")
	c.RecordAuthVerification("local", "success")

	mf := findMetricFamily(t, reg, "blogflow_auth_verifications_total")
	got := map[string]float64{}
	for _, m := range mf.GetMetric() {
		got[labelValue(m, "source")+"/"+labelValue(m, "result")] = m.GetCounter().GetValue()
	}
	if got["provider_jwt/failure"] != 1 || got["local/success"] != 2 {
		t.Errorf("auth verifications = %v", got)
	}
}

// TestRecordBlogLike_LabelsAction はいいねの付け外しがactionラベルで分かれることを検証する。
func TestRecordBlogLike_LabelsAction(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordBlogLike(true)
	c.RecordBlogLike(true)
	c.RecordBlogLike(false)

	mf := findMetricFamily(t, reg, "blogflow_blog_likes_total")
	got := map[string]float64{}
	for _, m := range mf.GetMetric() {
		got[labelValue(m, "action")] = m.GetCounter().GetValue()
	}
	if got["like"] != 2 || got["unlike"] != 1 {
		t.Errorf("likes = %v, want like=2 unlike=1", got)
	}
}

// TestDomainCounters はドメインイベントのカウンタを検証する。
func TestDomainCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordBlogStatusTransition("PUBLISHED")
	c.RecordCommentCreated()
	c.RecordCommentCreated()
	c.RecordNotificationCreated("COMMENT")
	c.RecordScheduledPublished(3)
	c.RecordScheduledPublished(2)

	tests := []struct {
		name string
		want float64
	}{
		{"blogflow_blog_status_transitions_total", 1},
		{"blogflow_comments_created_total", 2},
		{"blogflow_notifications_created_total", 1},
		{"blogflow_scheduled_published_total", 5},
	}
	for _, tt := range tests {
		mf := findMetricFamily(t, reg, tt.name)
		if got := mf.GetMetric()[0].GetCounter().GetValue(); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
		}
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat は/metricsエンドポイントがPrometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPRequest(200, 50*time.Millisecond)
	c.RecordAuthVerification("local", "success")
	c.RecordNotificationCreated("REPLY")

	handler := Handler(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	for _, metric := range []string{
		"blogflow_http_requests_total",
		"blogflow_http_request_duration_seconds",
		"blogflow_auth_verifications_total",
		"blogflow_notifications_created_total",
	} {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

// TestMultipleCollectors_IndependentRegistries は異なるレジストリで独立に動作することを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	c1 := NewCollector(reg1)
	c2 := NewCollector(reg2)

	c1.RecordCommentCreated()
	c2.RecordCommentCreated()
	c2.RecordCommentCreated()

	val1 := findMetricFamily(t, reg1, "blogflow_comments_created_total").GetMetric()[0].GetCounter().GetValue()
	val2 := findMetricFamily(t, reg2, "blogflow_comments_created_total").GetMetric()[0].GetCounter().GetValue()

	if val1 != 1 {
		t.Errorf("reg1 comments_created = %v, want 1", val1)
	}
	if val2 != 2 {
		t.Errorf("reg2 comments_created = %v, want 2", val2)
	}
}

// TestNop_DoesNotPanic はNopが全メソッドを受け付けることを検証する。
func TestNop_DoesNotPanic(t *testing.T) {
	var c MetricsCollector = Nop{}
	c.RecordHTTPRequest(500, time.Second)
	c.RecordAuthVerification("local", "failure")
	c.RecordBlogStatusTransition("DRAFT")
	c.RecordBlogLike(false)
	c.RecordCommentCreated()
	c.RecordNotificationCreated("COMMENT")
	c.RecordScheduledPublished(1)
}
