package fraud

import (
	"math"
	"sort"

	"github.com/CreditBoost360/CreditBoost-sub002/internal/ledger"
)

// Pattern names surfaced in Assessment.DetectedPatterns.
const (
	PatternRapidSuccession = "rapid_succession"
	PatternGeographic      = "geographic_anomalies"
	PatternAmountOutliers  = "amount_outliers"
	PatternOffHours        = "off_hours_clustering"
	PatternStructured      = "structured_transactions"
)

// Per-pattern confidence weights. Confidence accumulates across detected
// patterns and is clamped to 1 during aggregation.
const (
	weightRapidSuccession = 0.3
	weightGeographic      = 0.25
	weightAmountOutliers  = 0.2
	weightOffHours        = 0.15
	weightStructured      = 0.4
)

const (
	rapidGapSec      = 5 * 60
	geoShortGapSec   = 2 * 60 * 60
	geoWindowSec     = 24 * 60 * 60
	geoWindowMaxLocs = 5
	offHoursStart    = 0
	offHoursEnd      = 5
)

// structuring bands: amounts parked just under common reporting thresholds
var structuredThresholds = []int64{3000, 5000, 10000}

type patternResult struct {
	confidence float64
	detected   []string
}

func analyzePatterns(history []ledger.TransactionRecord) patternResult {
	txs := make([]ledger.TransactionRecord, len(history))
	copy(txs, history)
	sort.SliceStable(txs, func(i, j int) bool { return txs[i].Timestamp < txs[j].Timestamp })

	var res patternResult
	add := func(name string, w float64) {
		res.detected = append(res.detected, name)
		res.confidence += w
	}

	if rapidSuccession(txs) {
		add(PatternRapidSuccession, weightRapidSuccession)
	}
	if geographicAnomaly(txs) {
		add(PatternGeographic, weightGeographic)
	}
	if amountOutliers(txs) {
		add(PatternAmountOutliers, weightAmountOutliers)
	}
	if offHoursClustering(txs) {
		add(PatternOffHours, weightOffHours)
	}
	if structuredAmounts(txs) {
		add(PatternStructured, weightStructured)
	}
	return res
}

// rapidSuccession: two or more consecutive gaps under five minutes.
func rapidSuccession(txs []ledger.TransactionRecord) bool {
	short := 0
	for i := 1; i < len(txs); i++ {
		if txs[i].Timestamp-txs[i-1].Timestamp < rapidGapSec {
			short++
		}
	}
	return short >= 2
}

// geographicAnomaly: location change inside a two-hour gap, or more than
// five distinct locations inside any 24h window.
func geographicAnomaly(txs []ledger.TransactionRecord) bool {
	for i := 1; i < len(txs); i++ {
		a, b := txs[i-1], txs[i]
		if a.Location != "" && b.Location != "" && a.Location != b.Location &&
			b.Timestamp-a.Timestamp < geoShortGapSec {
			return true
		}
	}
	// sliding 24h window over distinct locations
	for i := range txs {
		locs := map[string]bool{}
		for j := i; j < len(txs) && txs[j].Timestamp-txs[i].Timestamp <= geoWindowSec; j++ {
			if txs[j].Location != "" {
				locs[txs[j].Location] = true
			}
		}
		if len(locs) > geoWindowMaxLocs {
			return true
		}
	}
	return false
}

// amountOutliers: a 3-sigma outlier against the history's own distribution,
// or three-plus round-number amounts.
func amountOutliers(txs []ledger.TransactionRecord) bool {
	if len(txs) == 0 {
		return false
	}
	mean, std := meanStddev(txs)
	if std > 0 {
		for _, t := range txs {
			if math.Abs(float64(t.Amount)-mean) > 3*std {
				return true
			}
		}
	}
	round := 0
	for _, t := range txs {
		if t.Amount >= 100 && t.Amount%100 == 0 {
			round++
		}
	}
	return round >= 3
}

// offHoursClustering: three or more transactions between 00:00 and 05:00.
func offHoursClustering(txs []ledger.TransactionRecord) bool {
	n := 0
	for _, t := range txs {
		hour := (t.Timestamp % 86400) / 3600
		if hour >= offHoursStart && hour < offHoursEnd {
			n++
		}
	}
	return n >= 3
}

// structuredAmounts: two or more amounts within 90-100% of a reporting
// threshold.
func structuredAmounts(txs []ledger.TransactionRecord) bool {
	n := 0
	for _, t := range txs {
		for _, th := range structuredThresholds {
			lo := th * 9 / 10
			if t.Amount >= lo && t.Amount <= th {
				n++
				break
			}
		}
	}
	return n >= 2
}

func meanStddev(txs []ledger.TransactionRecord) (mean, std float64) {
	if len(txs) == 0 {
		return 0, 0
	}
	var sum float64
	for _, t := range txs {
		sum += float64(t.Amount)
	}
	mean = sum / float64(len(txs))
	var sq float64
	for _, t := range txs {
		d := float64(t.Amount) - mean
		sq += d * d
	}
	std = math.Sqrt(sq / float64(len(txs)))
	return mean, std
}
