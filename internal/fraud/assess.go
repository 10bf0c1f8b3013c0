// Package fraud scores a credit record's transaction history for anomaly
// and fraud signals. Assess is a pure function over its inputs: no stored
// state, safe from any number of concurrent callers, and the produced
// assessment is never persisted here.
package fraud

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/CreditBoost360/CreditBoost-sub002/internal/ledger"
)

var ErrAssessmentInput = errors.New("malformed transaction data")

const (
	StatusOK               = "ok"
	StatusInsufficientData = "insufficient_data"

	// minimum history before the analyses mean anything
	minTransactions = 3

	suspiciousConfidence = 0.7
	fraudThreshold       = 75

	// Aggregation weights. The hard contract is monotonicity: every term is
	// a non-decreasing function of the detected findings, so adding any
	// detected pattern never lowers the score. The boost term makes strong
	// pattern evidence (confidence >= 0.7) sufficient on its own.
	weightPatterns    = 0.55
	weightFluctuation = 0.15
	weightAnomalies   = 0.30
	suspiciousBoost   = 0.30

	zNormLimit = 5.0
)

// Assessment is produced fresh per evaluation.
type Assessment struct {
	RiskScore        int      `json:"risk_score"` // 0-100
	IsFraudulent     bool     `json:"is_fraudulent"`
	DetectedPatterns []string `json:"detected_patterns"`
	Recommendations  []string `json:"recommendations"`
	Timeframe        string   `json:"timeframe,omitempty"`
	Status           string   `json:"status"`
	Timestamp        int64    `json:"timestamp"`
}

// Assess analyzes the record's history, and optionally its score history,
// for fraud signals. With fewer than three transactions it degrades to an
// insufficient_data assessment instead of failing.
func Assess(rec *ledger.Record, snapshots []Snapshot) (Assessment, error) {
	now := time.Now().Unix()

	for _, t := range rec.History {
		if t.Timestamp <= 0 || t.Type == "" {
			return Assessment{}, fmt.Errorf("%w: ts=%d type=%q", ErrAssessmentInput, t.Timestamp, t.Type)
		}
	}

	if len(rec.History) < minTransactions {
		return Assessment{
			Status:          StatusInsufficientData,
			Recommendations: []string{"insufficient history for assessment; re-evaluate after more activity"},
			Timestamp:       now,
		}, nil
	}

	patterns := analyzePatterns(rec.History)
	fluct := analyzeFluctuation(rec.Score, rec.LastUpdate, snapshots)
	anomalies := detectAnomalies(rec.History)

	detected := append([]string(nil), patterns.detected...)
	if fluct.significant {
		detected = append(detected, "score_fluctuation")
	}
	detected = append(detected, anomalies.detected...)

	score := aggregate(patterns, fluct, anomalies)

	return Assessment{
		RiskScore:        score,
		IsFraudulent:     score >= fraudThreshold,
		DetectedPatterns: detected,
		Recommendations:  recommendations(detected),
		Timeframe:        fluct.timeframe,
		Status:           StatusOK,
		Timestamp:        now,
	}, nil
}

func aggregate(p patternResult, f fluctuationResult, a anomalyResult) int {
	conf := p.confidence
	if conf > 1 {
		conf = 1
	}

	zNorm := 0.0
	if f.ran && f.significant {
		zNorm = math.Min(math.Abs(f.z), zNormLimit) / zNormLimit
	}

	total := weightPatterns*conf +
		weightFluctuation*zNorm +
		weightAnomalies*(a.severity/maxSeverity)
	if conf >= suspiciousConfidence {
		total += suspiciousBoost
	}
	if total > 1 {
		total = 1
	}
	return int(math.Round(total * 100))
}

// recommendations emits one human-readable line per detected category,
// independent of the aggregation weights.
func recommendations(detected []string) []string {
	text := map[string]string{
		PatternRapidSuccession:  "review burst of transactions in close succession",
		PatternGeographic:       "verify recent activity across distant locations with the owner",
		PatternAmountOutliers:   "inspect amounts far outside the historical distribution",
		PatternOffHours:         "confirm repeated activity during 00:00-05:00 with the owner",
		PatternStructured:       "investigate amounts clustered under reporting thresholds",
		"score_fluctuation":     "score moved abnormally versus its own history; hold updates pending review",
		AnomalyUtilizationSpike: "recent spending is well above the account's baseline",
		AnomalyBehaviorChange:   "dominant transaction type changed; confirm account ownership",
		AnomalyNewTypes:         "new transaction categories appeared; verify they are expected",
		AnomalyFrequencyChange:  "transaction frequency jumped versus baseline",
		AnomalyNewInternational: "activity from previously unseen locations; verify travel or flag takeover",
	}
	out := make([]string, 0, len(detected))
	for _, d := range detected {
		if msg, ok := text[d]; ok {
			out = append(out, msg)
		}
	}
	return out
}
