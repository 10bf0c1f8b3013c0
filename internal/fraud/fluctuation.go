package fraud

import (
	"math"
	"sort"
)

// Snapshot is one historical (score, time) observation handed in by the
// caller; the engine itself never stores score history.
type Snapshot struct {
	Score     int64 `json:"score"`
	Timestamp int64 `json:"timestamp"`
}

const (
	fluctuationZLimit = 2.5

	weekSec  = 7 * 86400
	monthSec = 30 * 86400
)

const (
	TimeframeWeekly   = "weekly"
	TimeframeMonthly  = "monthly"
	TimeframeLongTerm = "long_term"
)

type fluctuationResult struct {
	ran         bool
	significant bool
	z           float64
	timeframe   string
}

// analyzeFluctuation z-scores the latest score delta against the mean and
// stddev of the prior deltas. Needs at least one snapshot to run at all and
// at least two prior deltas before a z-score means anything.
func analyzeFluctuation(currentScore, currentTs int64, snaps []Snapshot) fluctuationResult {
	if len(snaps) == 0 {
		return fluctuationResult{}
	}

	series := make([]Snapshot, len(snaps), len(snaps)+1)
	copy(series, snaps)
	sort.SliceStable(series, func(i, j int) bool { return series[i].Timestamp < series[j].Timestamp })
	series = append(series, Snapshot{Score: currentScore, Timestamp: currentTs})

	deltas := make([]float64, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		deltas = append(deltas, float64(series[i].Score-series[i-1].Score))
	}

	res := fluctuationResult{ran: true, timeframe: classifyTimeframe(series)}

	latest := deltas[len(deltas)-1]
	prior := deltas[:len(deltas)-1]
	if len(prior) < 2 {
		return res
	}

	var sum float64
	for _, d := range prior {
		sum += d
	}
	mean := sum / float64(len(prior))
	var sq float64
	for _, d := range prior {
		sq += (d - mean) * (d - mean)
	}
	std := math.Sqrt(sq / float64(len(prior)))

	if std == 0 {
		if latest != mean {
			// flat history then a jump: maximally abnormal
			res.z = fluctuationZLimit + 1
			res.significant = true
		}
		return res
	}

	res.z = (latest - mean) / std
	res.significant = math.Abs(res.z) > fluctuationZLimit
	return res
}

func classifyTimeframe(series []Snapshot) string {
	last := series[len(series)-1]
	prev := series[len(series)-2]
	period := last.Timestamp - prev.Timestamp
	switch {
	case period <= weekSec:
		return TimeframeWeekly
	case period <= monthSec:
		return TimeframeMonthly
	default:
		return TimeframeLongTerm
	}
}
