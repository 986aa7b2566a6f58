// 本文件用于 mdstat 解析测试
package collectors

import (
	"testing"

	"home-pulse/internal/alert"
)

const mdstatHealthy = `Personalities : [raid1] [raid6]
md0 : active raid1 sdb1[1] sda1[0]
      976630464 blocks super 1.2 [2/2] [UU]

md1 : active raid6 sdf1[3] sde1[2] sdd1[1] sdc1[0]
      1953260928 blocks super 1.2 level 6, 512k chunk [4/4] [UUUU]

unused devices: <none>
`

const mdstatDegraded = `Personalities : [raid1]
md0 : active raid1 sda1[0]
      976630464 blocks super 1.2 [2/1] [U_]

unused devices: <none>
`

const mdstatRebuilding = `Personalities : [raid1]
md0 : active raid1 sdb1[1] sda1[0]
      976630464 blocks super 1.2 [2/1] [U_]
      [==>..................]  recovery = 12.6% (123456/976630464) finish=87.1min speed=102400K/sec

unused devices: <none>
`

const mdstatFailedMember = `Personalities : [raid1]
md0 : active raid1 sdb1[1](F) sda1[0]
      976630464 blocks super 1.2 [2/1] [U_]

unused devices: <none>
`

func TestParseMdstat_Healthy(t *testing.T) {
	samples := ParseMdstat(mdstatHealthy)
	if len(samples) != 2 {
		t.Fatalf("expected 2 arrays, got %d", len(samples))
	}
	for _, sample := range samples {
		if sample.Status != alert.StatusOK {
			t.Fatalf("%s expected OK, got %s", sample.Name, sample.Status)
		}
		if sample.Category != alert.CategoryRaid {
			t.Fatalf("expected raid category, got %s", sample.Category)
		}
	}
	if samples[0].Key != "raid_md0" || samples[1].Key != "raid_md1" {
		t.Fatalf("unexpected keys: %s %s", samples[0].Key, samples[1].Key)
	}
}

func TestParseMdstat_Degraded(t *testing.T) {
	samples := ParseMdstat(mdstatDegraded)
	if len(samples) != 1 {
		t.Fatalf("expected 1 array, got %d", len(samples))
	}
	if samples[0].Status != alert.StatusFail {
		t.Fatalf("degraded array expected FAIL, got %s", samples[0].Status)
	}
}

func TestParseMdstat_RebuildingIsWarn(t *testing.T) {
	samples := ParseMdstat(mdstatRebuilding)
	if len(samples) != 1 {
		t.Fatalf("expected 1 array, got %d", len(samples))
	}
	if samples[0].Status != alert.StatusWarn {
		t.Fatalf("rebuilding array expected WARN, got %s", samples[0].Status)
	}
	if _, ok := samples[0].Details["重建"]; !ok {
		t.Fatalf("rebuild progress expected in details: %#v", samples[0].Details)
	}
}

func TestParseMdstat_FailedMember(t *testing.T) {
	samples := ParseMdstat(mdstatFailedMember)
	if samples[0].Status != alert.StatusFail {
		t.Fatalf("failed member expected FAIL, got %s", samples[0].Status)
	}
	if got := samples[0].Details["故障成员"]; got != "sdb1" {
		t.Fatalf("expected failed member sdb1, got %v", got)
	}
}

func TestParseMdstat_Empty(t *testing.T) {
	samples := ParseMdstat("Personalities :\nunused devices: <none>\n")
	if len(samples) != 0 {
		t.Fatalf("no arrays expected, got %d", len(samples))
	}
}
