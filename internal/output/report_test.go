package output

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tstromberg/cachebench/internal/benchmark"
)

// find returns the named workload's data, or nil.
func find(r Results, name string) *WorkloadData {
	for i := range r.Workloads {
		if r.Workloads[i].Name == name {
			return &r.Workloads[i]
		}
	}
	return nil
}

func sampleResults() Results {
	rs := []benchmark.Result{
		{Workload: "get-hit", Backend: "otter", Count: 10, Total: 10 * time.Microsecond, Average: time.Microsecond, Min: time.Microsecond, Max: time.Microsecond, Hits: 10},
		{Workload: "get-hit", Backend: "lru", Count: 10, Total: 20 * time.Microsecond, Average: 2 * time.Microsecond, Min: time.Microsecond, Max: 3 * time.Microsecond, Hits: 10},
		{Workload: "api-direct", Backend: benchmark.DirectBackend, Count: 10, Total: time.Millisecond, Average: 100 * time.Microsecond},
	}
	r := Results{Workloads: Group(rs), Errors: []string{"set on redis: flush: backend unavailable"}}
	r.Rankings, r.MedalTable = ComputeRankings(r)
	r.MachineInfo = MachineInfo{OS: "linux", Arch: "amd64", NumCPU: 4, GoVersion: "go1.25", Clock: "cpu"}
	return r
}

func TestWinnerLine(t *testing.T) {
	r := sampleResults()
	got := WinnerLine(ByAverage(find(r, "get-hit").Results))
	if !strings.HasPrefix(got, "winner: otter") || !strings.Contains(got, "lru is 100.0% slower") {
		t.Errorf("WinnerLine = %q", got)
	}

	if got := WinnerLine(find(r, "api-direct").Results); got != "" {
		t.Errorf("single result: WinnerLine = %q, want empty", got)
	}

	tied := []benchmark.Result{
		{Backend: "a", Average: time.Microsecond},
		{Backend: "b", Average: time.Microsecond},
	}
	if got := WinnerLine(tied); !strings.HasPrefix(got, "tie: a, b") {
		t.Errorf("tied: WinnerLine = %q", got)
	}
}

func TestRenderMarkdown(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderMarkdown(&buf, sampleResults(), "cachebench --n 10"); err != nil {
		t.Fatalf("RenderMarkdown: %v", err)
	}
	md := buf.String()
	for _, want := range []string{
		"Command: cachebench --n 10",
		"Clock: cpu",
		"### get-hit",
		"| otter         |",
		"### api-direct",
		"## Errors",
		"backend unavailable",
		"## Overall Rankings",
		"### Latency medals",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
	if strings.Index(md, "| otter ") > strings.Index(md, "| lru ") {
		t.Error("markdown rows not sorted fastest first")
	}
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	if err := WriteJSON(path, sampleResults(), "cachebench"); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got Results
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.MachineInfo.CommandLine != "cachebench" {
		t.Errorf("CommandLine = %q", got.MachineInfo.CommandLine)
	}
	if got.Timestamp == "" {
		t.Error("Timestamp not set")
	}
	if wd := find(got, "get-hit"); wd == nil || len(wd.Results) != 2 || wd.Results[0].Average != time.Microsecond {
		t.Errorf("get-hit = %+v", wd)
	}
}

func TestWriteHTML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.html")
	if err := WriteHTML(path, sampleResults(), "cachebench --html out.html"); err != nil {
		t.Fatalf("WriteHTML: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	html := string(b)
	for _, want := range []string{"<h2>get-hit</h2>", "winner: otter", "<h2>Errors</h2>", "cachebench --html out.html", "Overall Rankings"} {
		if !strings.Contains(html, want) {
			t.Errorf("html missing %q", want)
		}
	}
}
