package fraud

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CreditBoost360/CreditBoost-sub002/internal/ledger"
)

const day = int64(86400)

// ts builds a timestamp at the given day index and hour of day.
func ts(dayIdx int64, hour int64) int64 {
	return dayIdx*day + hour*3600
}

func record(history []ledger.TransactionRecord) *ledger.Record {
	last := int64(0)
	for _, t := range history {
		if t.Timestamp > last {
			last = t.Timestamp
		}
	}
	return &ledger.Record{
		Owner:      "alice",
		Score:      700,
		History:    history,
		LastUpdate: last,
	}
}

func TestAssessFlagsStructuredOffHoursBurst(t *testing.T) {
	d := int64(19675)
	history := []ledger.TransactionRecord{
		{Timestamp: ts(d, 2), Amount: 2900, Type: "withdrawal"},
		{Timestamp: ts(d, 2) + 60, Amount: 4800, Type: "withdrawal"},
		{Timestamp: ts(d, 2) + 120, Amount: 9500, Type: "withdrawal"},
		{Timestamp: ts(d, 2) + 180, Amount: 2950, Type: "withdrawal"},
	}

	a, err := Assess(record(history), nil)
	require.NoError(t, err)

	require.Equal(t, StatusOK, a.Status)
	require.Contains(t, a.DetectedPatterns, PatternRapidSuccession)
	require.Contains(t, a.DetectedPatterns, PatternOffHours)
	require.Contains(t, a.DetectedPatterns, PatternStructured)
	require.GreaterOrEqual(t, a.RiskScore, fraudThreshold)
	require.True(t, a.IsFraudulent)
	require.NotEmpty(t, a.Recommendations)
}

func TestAssessCleanHistoryScoresLow(t *testing.T) {
	d := int64(19675)
	history := []ledger.TransactionRecord{
		{Timestamp: ts(d, 12), Amount: 1210, Type: "payment", Location: "nairobi"},
		{Timestamp: ts(d+6, 13), Amount: 1185, Type: "payment", Location: "nairobi"},
		{Timestamp: ts(d+12, 11), Amount: 1243, Type: "payment", Location: "nairobi"},
		{Timestamp: ts(d+18, 14), Amount: 1199, Type: "payment", Location: "nairobi"},
		{Timestamp: ts(d+24, 12), Amount: 1222, Type: "payment", Location: "nairobi"},
	}

	a, err := Assess(record(history), nil)
	require.NoError(t, err)

	require.Equal(t, StatusOK, a.Status)
	require.False(t, a.IsFraudulent)
	require.Less(t, a.RiskScore, 30)
	require.Empty(t, a.DetectedPatterns)
}

func TestAssessDegradesOnShortHistory(t *testing.T) {
	history := []ledger.TransactionRecord{
		{Timestamp: ts(19675, 12), Amount: 100, Type: "payment"},
		{Timestamp: ts(19676, 12), Amount: 100, Type: "payment"},
	}

	a, err := Assess(record(history), nil)
	require.NoError(t, err)

	require.Equal(t, StatusInsufficientData, a.Status)
	require.Zero(t, a.RiskScore)
	require.False(t, a.IsFraudulent)
	require.NotEmpty(t, a.Recommendations)
}

func TestAssessRejectsMalformedTransactions(t *testing.T) {
	history := []ledger.TransactionRecord{
		{Timestamp: ts(19675, 12), Amount: 100, Type: "payment"},
		{Timestamp: 0, Amount: 100, Type: "payment"},
		{Timestamp: ts(19677, 12), Amount: 100, Type: ""},
	}

	_, err := Assess(record(history), nil)
	require.ErrorIs(t, err, ErrAssessmentInput)
}

func TestAssessDetectsScoreFluctuation(t *testing.T) {
	d := int64(19675)
	history := []ledger.TransactionRecord{
		{Timestamp: ts(d, 12), Amount: 1210, Type: "payment"},
		{Timestamp: ts(d+6, 13), Amount: 1185, Type: "payment"},
		{Timestamp: ts(d+12, 11), Amount: 1243, Type: "payment"},
	}
	rec := record(history)
	rec.Score = 850
	rec.LastUpdate = ts(d+13, 12)

	snaps := []Snapshot{
		{Score: 700, Timestamp: ts(d, 12)},
		{Score: 702, Timestamp: ts(d+3, 12)},
		{Score: 698, Timestamp: ts(d+6, 12)},
		{Score: 701, Timestamp: ts(d+9, 12)},
	}

	a, err := Assess(rec, snaps)
	require.NoError(t, err)

	require.Contains(t, a.DetectedPatterns, "score_fluctuation")
	require.Equal(t, TimeframeWeekly, a.Timeframe)
	require.False(t, a.IsFraudulent)
}

func TestAssessFlagsDistributedWithdrawalRun(t *testing.T) {
	d := int64(19675)
	history := []ledger.TransactionRecord{
		{Timestamp: ts(d, 10), Amount: 9900, Type: "withdrawal", Location: "nairobi"},
		{Timestamp: ts(d, 10) + 25*60, Amount: 9900, Type: "withdrawal", Location: "mombasa"},
		{Timestamp: ts(d, 10) + 50*60, Amount: 9900, Type: "withdrawal", Location: "kisumu"},
	}

	a, err := Assess(record(history), nil)
	require.NoError(t, err)

	require.True(t, a.IsFraudulent)
	require.GreaterOrEqual(t, a.RiskScore, fraudThreshold)
	require.Contains(t, a.DetectedPatterns, PatternGeographic)
	require.Contains(t, a.DetectedPatterns, PatternStructured)
}

func TestGeographicAnomalyShortGapMove(t *testing.T) {
	d := int64(19675)
	history := []ledger.TransactionRecord{
		{Timestamp: ts(d, 10), Amount: 120, Type: "payment", Location: "nairobi"},
		{Timestamp: ts(d, 11), Amount: 130, Type: "payment", Location: "london"},
		{Timestamp: ts(d+1, 10), Amount: 110, Type: "payment", Location: "nairobi"},
	}

	a, err := Assess(record(history), nil)
	require.NoError(t, err)
	require.Contains(t, a.DetectedPatterns, PatternGeographic)
}

func TestAddingPatternsNeverLowersScore(t *testing.T) {
	d := int64(19675)
	clean := []ledger.TransactionRecord{
		{Timestamp: ts(d, 12), Amount: 1210, Type: "payment"},
		{Timestamp: ts(d+6, 13), Amount: 1185, Type: "payment"},
		{Timestamp: ts(d+12, 11), Amount: 1243, Type: "payment"},
	}
	base, err := Assess(record(clean), nil)
	require.NoError(t, err)

	dirty := append(append([]ledger.TransactionRecord(nil), clean...),
		ledger.TransactionRecord{Timestamp: ts(d+13, 2), Amount: 9500, Type: "withdrawal"},
		ledger.TransactionRecord{Timestamp: ts(d+13, 2) + 60, Amount: 9600, Type: "withdrawal"},
		ledger.TransactionRecord{Timestamp: ts(d+13, 2) + 120, Amount: 9700, Type: "withdrawal"},
	)
	worse, err := Assess(record(dirty), nil)
	require.NoError(t, err)

	require.GreaterOrEqual(t, worse.RiskScore, base.RiskScore)
}
