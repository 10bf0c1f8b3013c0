package fraud

import (
	"sort"

	"github.com/CreditBoost360/CreditBoost-sub002/internal/ledger"
)

// Anomaly category names surfaced in Assessment.DetectedPatterns.
const (
	AnomalyUtilizationSpike = "utilization_spike"
	AnomalyBehaviorChange   = "behavior_pattern_change"
	AnomalyNewTypes         = "new_transaction_types"
	AnomalyFrequencyChange  = "frequency_change"
	AnomalyNewInternational = "new_international_activity"
)

// Additive severities, capped at maxSeverity.
const (
	sevUtilizationSpike = 3.0
	sevBehaviorChange   = 2.0
	sevNewTypes         = 1.5
	sevFrequencyChange  = 2.5
	sevNewInternational = 1.5
	sevExtraLocation    = 0.5 // each additional unseen location

	maxSeverity = 10.0

	recentWindowSec = 30 * 86400
)

type anomalyResult struct {
	severity float64
	detected []string
}

// detectAnomalies splits history into a trailing 30-day window and the
// baseline before it, then compares behavior. No baseline means nothing to
// compare against, so no anomalies.
func detectAnomalies(history []ledger.TransactionRecord) anomalyResult {
	if len(history) == 0 {
		return anomalyResult{}
	}
	txs := make([]ledger.TransactionRecord, len(history))
	copy(txs, history)
	sort.SliceStable(txs, func(i, j int) bool { return txs[i].Timestamp < txs[j].Timestamp })

	cut := txs[len(txs)-1].Timestamp - recentWindowSec
	var baseline, recent []ledger.TransactionRecord
	for _, t := range txs {
		if t.Timestamp < cut {
			baseline = append(baseline, t)
		} else {
			recent = append(recent, t)
		}
	}
	if len(baseline) == 0 || len(recent) == 0 {
		return anomalyResult{}
	}

	var res anomalyResult
	add := func(name string, sev float64) {
		res.detected = append(res.detected, name)
		res.severity += sev
	}

	if avgAmount(recent) > 2*avgAmount(baseline) {
		add(AnomalyUtilizationSpike, sevUtilizationSpike)
	}
	if dominantType(recent) != dominantType(baseline) {
		add(AnomalyBehaviorChange, sevBehaviorChange)
	}
	if hasNewTypes(baseline, recent) {
		add(AnomalyNewTypes, sevNewTypes)
	}
	if frequencyChanged(baseline, recent) {
		add(AnomalyFrequencyChange, sevFrequencyChange)
	}
	if n := newLocationCount(baseline, recent); n > 0 {
		add(AnomalyNewInternational, sevNewInternational+float64(n-1)*sevExtraLocation)
	}

	if res.severity > maxSeverity {
		res.severity = maxSeverity
	}
	return res
}

func avgAmount(txs []ledger.TransactionRecord) float64 {
	if len(txs) == 0 {
		return 0
	}
	var sum float64
	for _, t := range txs {
		sum += float64(t.Amount)
	}
	return sum / float64(len(txs))
}

func dominantType(txs []ledger.TransactionRecord) string {
	counts := map[string]int{}
	best, bestN := "", 0
	for _, t := range txs {
		counts[t.Type]++
		if counts[t.Type] > bestN {
			best, bestN = t.Type, counts[t.Type]
		}
	}
	return best
}

func hasNewTypes(baseline, recent []ledger.TransactionRecord) bool {
	known := map[string]bool{}
	for _, t := range baseline {
		known[t.Type] = true
	}
	for _, t := range recent {
		if !known[t.Type] {
			return true
		}
	}
	return false
}

// frequencyChanged: the recent per-day rate exceeds 2.5x the baseline rate.
func frequencyChanged(baseline, recent []ledger.TransactionRecord) bool {
	baseRate := ratePerDay(baseline)
	recentRate := ratePerDay(recent)
	return baseRate > 0 && recentRate > 2.5*baseRate
}

func ratePerDay(txs []ledger.TransactionRecord) float64 {
	if len(txs) == 0 {
		return 0
	}
	span := txs[len(txs)-1].Timestamp - txs[0].Timestamp
	days := float64(span) / 86400.0
	if days < 1 {
		days = 1
	}
	return float64(len(txs)) / days
}

func newLocationCount(baseline, recent []ledger.TransactionRecord) int {
	known := map[string]bool{}
	for _, t := range baseline {
		if t.Location != "" {
			known[t.Location] = true
		}
	}
	fresh := map[string]bool{}
	for _, t := range recent {
		if t.Location != "" && !known[t.Location] {
			fresh[t.Location] = true
		}
	}
	return len(fresh)
}
