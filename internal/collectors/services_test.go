// 本文件用于服务探测测试
package collectors

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"home-pulse/internal/alert"
	"home-pulse/internal/models"
)

func TestServiceCollector_Probe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.WriteHeader(http.StatusOK)
		case "/teapot":
			w.WriteHeader(http.StatusTeapot)
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer server.Close()

	cases := []struct {
		name   string
		target models.ServiceTarget
		want   alert.Status
	}{
		{
			name:   "2xx is OK",
			target: models.ServiceTarget{Name: "Plex", URL: server.URL + "/ok"},
			want:   alert.StatusOK,
		},
		{
			name:   "5xx is FAIL",
			target: models.ServiceTarget{Name: "Plex", URL: server.URL + "/down"},
			want:   alert.StatusFail,
		},
		{
			name:   "expected status matches",
			target: models.ServiceTarget{Name: "Teapot", URL: server.URL + "/teapot", ExpectStatus: 418},
			want:   alert.StatusOK,
		},
		{
			name:   "expected status mismatch",
			target: models.ServiceTarget{Name: "Teapot", URL: server.URL + "/ok", ExpectStatus: 418},
			want:   alert.StatusFail,
		},
		{
			name:   "unreachable is FAIL",
			target: models.ServiceTarget{Name: "Gone", URL: "http://127.0.0.1:1/", TimeoutSeconds: 1},
			want:   alert.StatusFail,
		},
	}

	collector := NewServiceCollector(&models.Config{})
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sample := collector.probe(context.Background(), tc.target)
			if sample.Status != tc.want {
				t.Fatalf("expected %s, got %s (%s)", tc.want, sample.Status, sample.ValueText)
			}
			if sample.Category != alert.CategoryService {
				t.Fatalf("expected service category, got %s", sample.Category)
			}
		})
	}
}

func TestServiceCollector_CollectAll(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	collector := NewServiceCollector(&models.Config{
		Services: []models.ServiceTarget{
			{Name: "A", URL: server.URL},
			{Name: "B", URL: server.URL},
		},
	})
	samples, err := collector.Collect(context.Background())
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}
	if samples[0].Key != "service_a" || samples[1].Key != "service_b" {
		t.Fatalf("unexpected keys: %s %s", samples[0].Key, samples[1].Key)
	}
}
