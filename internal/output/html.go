package output

import (
	"embed"
	"fmt"
	"html/template"
	"os"
	"strings"
	"time"

	"github.com/tstromberg/cachebench/internal/benchmark"
)

//go:embed template.html
var templateFS embed.FS

// WriteHTML writes benchmark results to an HTML file.
func WriteHTML(filename string, results Results, commandLine string) error {
	results.Timestamp = time.Now().Format("2006-01-02 15:04:05 MST")
	results.MachineInfo.CommandLine = commandLine

	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	return htmlTemplate.Execute(f, results)
}

var htmlTemplate = template.Must(template.New("template.html").Funcs(templateFuncs).ParseFS(templateFS, "template.html"))

var templateFuncs = template.FuncMap{
	"add":    func(a, b int) int { return a + b },
	"us":     func(d time.Duration) string { return fmt.Sprintf("%.3f", Micros(d)) },
	"ms":     func(d time.Duration) string { return fmt.Sprintf("%.3f", float64(d)/float64(time.Millisecond)) },
	"pct":    func(f float64) string { return fmt.Sprintf("%.2f", f) },
	"join":   func(s []string) string { return strings.Join(s, ", ") },
	"sorted": ByAverage,
	"winner": WinnerLine,
	"hasDist": func(rs []benchmark.Result) bool {
		return hasDistribution(rs)
	},
	"barWidth": func(value, maxValue time.Duration) float64 {
		if maxValue == 0 {
			return 0
		}
		return float64(value) / float64(maxValue) * 100
	},
	"maxAverage": func(results []benchmark.Result) time.Duration {
		var m time.Duration
		for _, r := range results {
			if r.Average > m {
				m = r.Average
			}
		}
		return m
	},
	"color": func(name string) template.CSS {
		if c, ok := cacheColors[name]; ok {
			return template.CSS("background:" + c)
		}
		return "background:#607D8B"
	},
}

var cacheColors = map[string]string{
	"redis":         "#D82C20",
	"valkey":        "#6983FF",
	"memcached":     "#3B8E3B",
	"multicache":    "#2E7D32",
	"otter":         "#1976D2",
	"theine":        "#D32F2F",
	"ristretto":     "#7B1FA2",
	"freecache":     "#F57C00",
	"freelru-shard": "#0288D1",
	"freelru-sync":  "#00796B",
	"tinylfu":       "#C2185B",
	"sieve":         "#5D4037",
	"s3-fifo":       "#455A64",
	"2q":            "#E64A19",
	"s4lru":         "#512DA8",
	"clock":         "#00695C",
	"lru":           "#AFB42B",
	"ttlcache":      "#0097A7",
	"direct":        "#9E9E9E",
}
