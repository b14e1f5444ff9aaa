package output

import (
	"math"
	"sort"

	"github.com/tstromberg/cachebench/internal/benchmark"
	"github.com/tstromberg/cachebench/internal/workload"
)

// Points awarded by placement: 1st=10, 2nd=7, 3rd=5, 4th=4, 5th=3, 6th=2, 7th=1.
var placementPoints = []float64{10, 7, 5, 4, 3, 2, 1}

// Category names, in display order.
const (
	CategoryLatency = "Latency"
	CategoryTail    = "Tail Latency"
	CategoryHitRate = "Hit Rate"
)

var catOrder = []string{CategoryLatency, CategoryTail, CategoryHitRate}

// hitRateWorkloads have a hit split that depends on what the backend kept.
var hitRateWorkloads = map[string]bool{
	string(workload.HalfMiss):  true,
	string(workload.RatioMiss): true,
	string(workload.Zipf):      true,
}

// rankedEntry holds a name and score for tie detection.
type rankedEntry struct {
	name  string
	score float64
}

// Round3 rounds to 3 decimal places for tie detection.
func Round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

// WinnerEntry represents a ranked entry for winner display.
type WinnerEntry struct {
	Name  string
	Score float64
}

// FormatWinners returns winner names and the first runner-up for comparison.
// If multiple entries tie for first, all are returned as winners.
// Returns (winners, runnerUp) where runnerUp is nil if everyone ties or only one entry.
func FormatWinners(entries []WinnerEntry) (winners []string, runnerUp *WinnerEntry) {
	if len(entries) == 0 {
		return nil, nil
	}

	// Find all entries tied for first
	bestScore := Round3(entries[0].Score)
	for _, e := range entries {
		if Round3(e.Score) != bestScore {
			runnerUp = &WinnerEntry{Name: e.Name, Score: e.Score}
			break
		}
		winners = append(winners, e.Name)
	}

	return winners, runnerUp
}

// ByAverage returns results sorted by average latency, fastest first.
func ByAverage(results []benchmark.Result) []benchmark.Result {
	sorted := make([]benchmark.Result, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Average < sorted[j].Average
	})
	return sorted
}

// ComputeRankings calculates overall rankings from benchmark results.
// Every workload run on two or more backends is one benchmark; the
// api-direct baseline has no backend and is never ranked.
//
//nolint:gocognit,revive // ranking logic necessarily complex to handle all categories
func ComputeRankings(results Results) ([]Ranking, *MedalTable) {
	scores := make(map[string]float64)
	medals := make(map[string][3]int) // [gold, silver, bronze]

	categoryMedals := make(map[string]map[string][3]int)
	categoryBenchmarks := make(map[string][]BenchmarkMedal)

	// assignPoints handles tie detection: entries with scores equal to 3 decimal
	// places share the same medal position. Entries must be pre-sorted by score.
	assignPoints := func(category, benchName string, entries []rankedEntry) {
		bm := BenchmarkMedal{Name: benchName}
		pos := 0 // current medal position (0=gold, 1=silver, 2=bronze)
		i := 0

		for i < len(entries) {
			// Find all entries tied at this position
			var tied []string
			baseScore := Round3(entries[i].score)
			for i < len(entries) && Round3(entries[i].score) == baseScore {
				tied = append(tied, entries[i].name)
				i++
			}

			// Assign points and medals to all tied entries
			for _, n := range tied {
				if pos < len(placementPoints) {
					scores[n] += placementPoints[pos]
				}
				if pos < 3 {
					m := medals[n]
					m[pos]++
					medals[n] = m

					if categoryMedals[category] == nil {
						categoryMedals[category] = make(map[string][3]int)
					}
					cm := categoryMedals[category][n]
					cm[pos]++
					categoryMedals[category][n] = cm
				}
			}

			switch pos {
			case 0:
				bm.Gold = tied
			case 1:
				bm.Silver = tied
			case 2:
				bm.Bronze = tied
			}

			// Skip positions based on number of ties
			pos += len(tied)
		}

		categoryBenchmarks[category] = append(categoryBenchmarks[category], bm)
	}

	for _, wd := range results.Workloads {
		var rs []benchmark.Result
		for _, r := range wd.Results {
			if r.Backend != benchmark.DirectBackend {
				rs = append(rs, r)
			}
		}
		if len(rs) < 2 {
			continue
		}

		// Latency - rank by average microseconds (lower is better)
		sorted := ByAverage(rs)
		entries := make([]rankedEntry, len(sorted))
		for i, r := range sorted {
			entries[i] = rankedEntry{r.Backend, Micros(r.Average)}
		}
		assignPoints(CategoryLatency, wd.Name, entries)

		// Tail latency - rank by p99 when percentiles were collected
		if hasDistribution(rs) {
			sorted := make([]benchmark.Result, len(rs))
			copy(sorted, rs)
			sort.SliceStable(sorted, func(i, j int) bool {
				return sorted[i].Distribution.P99 < sorted[j].Distribution.P99
			})
			entries := make([]rankedEntry, len(sorted))
			for i, r := range sorted {
				entries[i] = rankedEntry{r.Backend, Micros(r.Distribution.P99)}
			}
			assignPoints(CategoryTail, wd.Name, entries)
		}

		// Hit rate - rank by hit percentage (higher is better)
		if hitRateWorkloads[wd.Name] {
			sorted := make([]benchmark.Result, len(rs))
			copy(sorted, rs)
			sort.SliceStable(sorted, func(i, j int) bool {
				return sorted[i].HitRate() > sorted[j].HitRate()
			})
			entries := make([]rankedEntry, len(sorted))
			for i, r := range sorted {
				entries[i] = rankedEntry{r.Backend, r.HitRate()}
			}
			assignPoints(CategoryHitRate, wd.Name, entries)
		}
	}

	if len(scores) == 0 {
		return nil, nil
	}

	// Sort caches by score, then by medals as tiebreaker
	type cacheRank struct {
		name   string
		score  float64
		gold   int
		silver int
		bronze int
	}
	var ranks []cacheRank
	for name, score := range scores {
		m := medals[name]
		ranks = append(ranks, cacheRank{name, score, m[0], m[1], m[2]})
	}
	sort.Slice(ranks, func(i, j int) bool {
		if ranks[i].score != ranks[j].score {
			return ranks[i].score > ranks[j].score
		}
		if ranks[i].gold != ranks[j].gold {
			return ranks[i].gold > ranks[j].gold
		}
		if ranks[i].silver != ranks[j].silver {
			return ranks[i].silver > ranks[j].silver
		}
		if ranks[i].bronze != ranks[j].bronze {
			return ranks[i].bronze > ranks[j].bronze
		}
		return ranks[i].name < ranks[j].name
	})

	var result []Ranking
	for i, r := range ranks {
		result = append(result, Ranking{
			Rank:   i + 1,
			Name:   r.name,
			Score:  r.score,
			Gold:   r.gold,
			Silver: r.silver,
			Bronze: r.bronze,
		})
	}

	// Build category medal table
	var categories []CategoryMedals
	for _, cat := range catOrder {
		bm := categoryBenchmarks[cat]
		if len(bm) == 0 {
			continue
		}

		cm := categoryMedals[cat]
		catRanks := make([]cacheRank, 0, len(cm))
		for name, m := range cm {
			catRanks = append(catRanks, cacheRank{
				name:   name,
				gold:   m[0],
				silver: m[1],
				bronze: m[2],
			})
		}
		sort.Slice(catRanks, func(i, j int) bool {
			if catRanks[i].gold != catRanks[j].gold {
				return catRanks[i].gold > catRanks[j].gold
			}
			if catRanks[i].silver != catRanks[j].silver {
				return catRanks[i].silver > catRanks[j].silver
			}
			if catRanks[i].bronze != catRanks[j].bronze {
				return catRanks[i].bronze > catRanks[j].bronze
			}
			return catRanks[i].name < catRanks[j].name
		})

		out := make([]Ranking, len(catRanks))
		for i, r := range catRanks {
			out[i] = Ranking{
				Rank:   i + 1,
				Name:   r.name,
				Gold:   r.gold,
				Silver: r.silver,
				Bronze: r.bronze,
			}
		}

		categories = append(categories, CategoryMedals{
			Name:       cat,
			Benchmarks: bm,
			Rankings:   out,
		})
	}

	return result, &MedalTable{Categories: categories}
}

func hasDistribution(rs []benchmark.Result) bool {
	for _, r := range rs {
		if r.Distribution == nil {
			return false
		}
	}
	return true
}
