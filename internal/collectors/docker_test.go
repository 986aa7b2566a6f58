// 本文件用于容器状态判级测试
package collectors

import (
	"testing"

	"home-pulse/internal/alert"
)

func TestContainerSample(t *testing.T) {
	cases := []struct {
		name      string
		container dockerContainer
		want      alert.Status
		wantName  string
	}{
		{
			name:      "running",
			container: dockerContainer{Names: []string{"/plex"}, State: "running", Status: "Up 3 days"},
			want:      alert.StatusOK,
			wantName:  "plex",
		},
		{
			name:      "restarting",
			container: dockerContainer{Names: []string{"/homeassistant"}, State: "restarting", Status: "Restarting (1) 5 seconds ago"},
			want:      alert.StatusFail,
			wantName:  "homeassistant",
		},
		{
			name:      "crashed exit",
			container: dockerContainer{Names: []string{"/pihole"}, State: "exited", Status: "Exited (137) 2 hours ago"},
			want:      alert.StatusFail,
			wantName:  "pihole",
		},
		{
			name:      "clean exit",
			container: dockerContainer{Names: []string{"/backup"}, State: "exited", Status: "Exited (0) 8 hours ago"},
			want:      alert.StatusWarn,
			wantName:  "backup",
		},
		{
			name:      "paused",
			container: dockerContainer{Names: []string{"/qbittorrent"}, State: "paused", Status: "Up 2 days (Paused)"},
			want:      alert.StatusWarn,
			wantName:  "qbittorrent",
		},
		{
			name:      "no name",
			container: dockerContainer{State: "running", Status: "Up 1 hour"},
			want:      alert.StatusOK,
			wantName:  "unknown",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sample := containerSample(tc.container)
			if sample.Status != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, sample.Status)
			}
			if sample.Name != tc.wantName {
				t.Fatalf("expected name %s, got %s", tc.wantName, sample.Name)
			}
			if sample.Category != alert.CategoryDocker {
				t.Fatalf("expected docker category, got %s", sample.Category)
			}
		})
	}
}

func TestThresholdStatus(t *testing.T) {
	cases := []struct {
		value float64
		warn  float64
		fail  float64
		want  alert.Status
	}{
		{value: 50, warn: 80, fail: 95, want: alert.StatusOK},
		{value: 85, warn: 80, fail: 95, want: alert.StatusWarn},
		{value: 96, warn: 80, fail: 95, want: alert.StatusFail},
		{value: 80, warn: 80, fail: 95, want: alert.StatusWarn},
		{value: 99, warn: 0, fail: 0, want: alert.StatusOK},
	}
	for _, tc := range cases {
		if got := thresholdStatus(tc.value, tc.warn, tc.fail); got != tc.want {
			t.Fatalf("thresholdStatus(%.0f, %.0f, %.0f) expected %s, got %s", tc.value, tc.warn, tc.fail, tc.want, got)
		}
	}
}
