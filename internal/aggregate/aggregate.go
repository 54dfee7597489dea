// Package aggregate computes the live per-participant score summaries
// shown on dashboards before results are published. The functions are
// pure so the presentation layer never owns derived numbers.
package aggregate

import (
	"sort"

	"festival-scoring/internal/domain"
)

// trimThreshold is the judge count at which the single lowest and
// single highest totals are discarded before averaging.
const trimThreshold = 5

// Summary is the dashboard view for one participant in one event.
type Summary struct {
	ParticipantID   string    `json:"participant_id"`
	FullName        string    `json:"full_name"`
	ChestNumber     string    `json:"chest_number"`
	MyTotal         *float64  `json:"my_total"`
	JudgesSubmitted int       `json:"judges_submitted"`
	JudgesTotals    []float64 `json:"judges_totals"`
	CurrentFinal    *float64  `json:"current_final"`
}

// TrimmedMean computes the current-final value over per-judge totals.
// With five or more judges the single lowest and single highest values
// are dropped; ties trim positionally after a stable sort, removing
// exactly one instance per side. With one to four judges all totals
// are averaged. With none the result is nil.
func TrimmedMean(totals []float64) *float64 {
	if len(totals) == 0 {
		return nil
	}

	kept := make([]float64, len(totals))
	copy(kept, totals)
	if len(kept) >= trimThreshold {
		sort.Stable(sort.Float64Slice(kept))
		kept = kept[1 : len(kept)-1]
	}

	var sum float64
	for _, t := range kept {
		sum += t
	}
	mean := sum / float64(len(kept))
	return &mean
}

// Summarize builds summaries for every participant of an event from a
// single score listing, grouped in one pass. requestingJudgeID selects
// whose total lands in MyTotal; participants without any scores still
// appear, with a nil CurrentFinal.
func Summarize(participants []domain.Participant, records []domain.ScoreRecord, requestingJudgeID string) []Summary {
	totalsByParticipant := make(map[string][]float64, len(participants))
	myTotals := make(map[string]float64)
	for _, rec := range records {
		totalsByParticipant[rec.ParticipantID] = append(totalsByParticipant[rec.ParticipantID], rec.TotalScore)
		if rec.JudgeID == requestingJudgeID {
			myTotals[rec.ParticipantID] = rec.TotalScore
		}
	}

	summaries := make([]Summary, 0, len(participants))
	for _, p := range participants {
		totals := totalsByParticipant[p.ID]
		s := Summary{
			ParticipantID:   p.ID,
			FullName:        p.FullName,
			ChestNumber:     p.ChestNumber,
			JudgesSubmitted: len(totals),
			JudgesTotals:    totals,
			CurrentFinal:    TrimmedMean(totals),
		}
		if my, ok := myTotals[p.ID]; ok {
			v := my
			s.MyTotal = &v
		}
		summaries = append(summaries, s)
	}
	return summaries
}

// Rank orders participants by current-final descending and assigns
// standard competition ranks (ties share a rank, the next rank skips).
// Participants with no scores are excluded from the ranking.
func Rank(summaries []Summary) []domain.Result {
	ranked := make([]Summary, 0, len(summaries))
	for _, s := range summaries {
		if s.CurrentFinal != nil {
			ranked = append(ranked, s)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return *ranked[i].CurrentFinal > *ranked[j].CurrentFinal
	})

	results := make([]domain.Result, 0, len(ranked))
	rank := 0
	var prev float64
	for i, s := range ranked {
		if i == 0 || *s.CurrentFinal != prev {
			rank = i + 1
			prev = *s.CurrentFinal
		}
		results = append(results, domain.Result{
			ParticipantID: s.ParticipantID,
			TotalScore:    *s.CurrentFinal,
			Rank:          rank,
		})
	}
	return results
}
