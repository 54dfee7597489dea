package aggregate

import (
	"testing"

	"festival-scoring/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrimmedMean(t *testing.T) {
	tests := []struct {
		name   string
		totals []float64
		want   *float64
	}{
		{name: "five judges drops min and max", totals: []float64{60, 70, 80, 90, 100}, want: f(80)},
		{name: "four judges plain mean", totals: []float64{60, 70, 80, 90}, want: f(75)},
		{name: "single judge", totals: []float64{88}, want: f(88)},
		{name: "no judges", totals: nil, want: nil},
		{name: "unsorted input", totals: []float64{100, 60, 90, 70, 80}, want: f(80)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TrimmedMean(tt.totals)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		})
	}
}

func TestTrimmedMeanTiedExtremes(t *testing.T) {
	// Two tied lowest values: only one instance is trimmed per side.
	got := TrimmedMean([]float64{60, 60, 80, 90, 100})
	require.NotNil(t, got)
	assert.InDelta(t, (60.0+80+90)/3, *got, 1e-9)

	got = TrimmedMean([]float64{60, 70, 80, 100, 100})
	require.NotNil(t, got)
	assert.InDelta(t, (70.0+80+100)/3, *got, 1e-9)
}

func TestTrimmedMeanDoesNotMutateInput(t *testing.T) {
	totals := []float64{100, 60, 90, 70, 80}
	TrimmedMean(totals)
	assert.Equal(t, []float64{100, 60, 90, 70, 80}, totals)
}

func TestSummarize(t *testing.T) {
	participants := []domain.Participant{
		{ID: "p1", FullName: "Anjali", ChestNumber: "101"},
		{ID: "p2", FullName: "Ravi", ChestNumber: "102"},
	}
	records := []domain.ScoreRecord{
		{ParticipantID: "p1", JudgeID: "j1", TotalScore: 80},
		{ParticipantID: "p1", JudgeID: "j2", TotalScore: 90},
		{ParticipantID: "p2", JudgeID: "j2", TotalScore: 70},
	}

	summaries := Summarize(participants, records, "j1")
	require.Len(t, summaries, 2)

	p1 := summaries[0]
	assert.Equal(t, "p1", p1.ParticipantID)
	assert.Equal(t, 2, p1.JudgesSubmitted)
	require.NotNil(t, p1.MyTotal)
	assert.Equal(t, 80.0, *p1.MyTotal)
	require.NotNil(t, p1.CurrentFinal)
	assert.InDelta(t, 85.0, *p1.CurrentFinal, 1e-9)

	// Judge j1 has not scored p2 yet.
	p2 := summaries[1]
	assert.Nil(t, p2.MyTotal)
	assert.Equal(t, 1, p2.JudgesSubmitted)
}

func TestSummarizeUnscoredParticipant(t *testing.T) {
	participants := []domain.Participant{{ID: "p1"}}
	summaries := Summarize(participants, nil, "j1")
	require.Len(t, summaries, 1)
	assert.Nil(t, summaries[0].CurrentFinal)
	assert.Nil(t, summaries[0].MyTotal)
	assert.Zero(t, summaries[0].JudgesSubmitted)
}

func TestRank(t *testing.T) {
	summaries := []Summary{
		{ParticipantID: "a", CurrentFinal: f(70)},
		{ParticipantID: "b", CurrentFinal: f(90)},
		{ParticipantID: "c", CurrentFinal: f(90)},
		{ParticipantID: "d", CurrentFinal: nil},
		{ParticipantID: "e", CurrentFinal: f(50)},
	}

	results := Rank(summaries)
	require.Len(t, results, 4)

	assert.Equal(t, "b", results[0].ParticipantID)
	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, "c", results[1].ParticipantID)
	assert.Equal(t, 1, results[1].Rank)
	assert.Equal(t, "a", results[2].ParticipantID)
	assert.Equal(t, 3, results[2].Rank)
	assert.Equal(t, "e", results[3].ParticipantID)
	assert.Equal(t, 4, results[3].Rank)
}

func f(v float64) *float64 { return &v }
