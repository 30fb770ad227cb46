package reconcile

import (
	"sort"

	"liftsync/internal"
	"liftsync/internal/config"
	"liftsync/internal/lifter"
	"liftsync/internal/util"
)

type MatchStatus string

const (
	MatchOK       MatchStatus = "OK"
	MatchReview   MatchStatus = "REVIEW"
	MatchNotFound MatchStatus = "NOT_FOUND"
)

type Candidate struct {
	Athlete lifter.Athlete
	Score   float64
}

type MatchResult struct {
	Status     MatchStatus
	Confidence float64
	Athlete    *lifter.Athlete
	Candidates []Candidate
}

const maxCandidates = 5

// Matcher decides whether an extracted athlete already exists remotely.
type Matcher struct {
	okThreshold     float64
	reviewThreshold float64
	gapThreshold    float64
}

func NewMatcher(cfg config.Config) *Matcher {
	return &Matcher{
		okThreshold:     cfg.MatchOKThreshold,
		reviewThreshold: cfg.MatchReviewThreshold,
		gapThreshold:    cfg.MatchGapThreshold,
	}
}

func (m *Matcher) Match(want internal.Athlete, index *Index) MatchResult {
	normalized := util.NormalizeName(want.FullName())

	exact := sameYear(index.ByName[normalized], want.YearBorn)
	if len(exact) == 1 {
		a := exact[0]
		return MatchResult{
			Status:     MatchOK,
			Confidence: 0.99,
			Athlete:    &a,
			Candidates: []Candidate{{Athlete: a, Score: 0.99}},
		}
	}
	if len(exact) > 1 {
		return MatchResult{Status: MatchReview, Confidence: 0.80, Candidates: toCandidates(exact, 0.80)}
	}

	candidates := m.rankCandidates(normalized, want.YearBorn, index)
	if len(candidates) == 0 {
		return MatchResult{Status: MatchNotFound, Candidates: []Candidate{}}
	}

	top1 := candidates[0]
	gap := top1.Score
	if len(candidates) > 1 {
		gap = top1.Score - candidates[1].Score
	}

	best := top1.Athlete
	switch {
	case top1.Score >= m.okThreshold && gap >= m.gapThreshold:
		return MatchResult{Status: MatchOK, Confidence: top1.Score, Athlete: &best, Candidates: candidates}
	case top1.Score >= m.reviewThreshold:
		return MatchResult{Status: MatchReview, Confidence: top1.Score, Athlete: &best, Candidates: candidates}
	default:
		return MatchResult{Status: MatchNotFound, Confidence: top1.Score, Candidates: candidates}
	}
}

// sameYear keeps athletes whose birth year agrees; an unknown year on
// either side agrees with anything.
func sameYear(athletes []lifter.Athlete, year int) []lifter.Athlete {
	out := make([]lifter.Athlete, 0, len(athletes))
	for _, a := range athletes {
		if year == 0 || a.YearBorn == 0 || a.YearBorn == year {
			out = append(out, a)
		}
	}
	return out
}

func (m *Matcher) rankCandidates(query string, year int, index *Index) []Candidate {
	queryTokens := util.Tokenize(query)
	ids := map[string]struct{}{}
	for _, token := range queryTokens {
		for id := range index.TokenToAthleteIDs[token] {
			ids[id] = struct{}{}
		}
	}

	out := make([]Candidate, 0, len(ids))
	for id := range ids {
		athlete := index.ByID[id]
		name := index.NormalizedNameByID[id]
		score := scoreName(query, name, queryTokens, util.Tokenize(name))
		score = adjustForYear(score, year, athlete.YearBorn)
		out = append(out, Candidate{Athlete: athlete, Score: score})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Athlete.ReferenceID < out[j].Athlete.ReferenceID
	})
	if len(out) > maxCandidates {
		out = out[:maxCandidates]
	}
	return out
}

func scoreName(query, candidate string, queryTokens, candidateTokens []string) float64 {
	dice := util.DiceCoefficient(query, candidate)
	if len(queryTokens) == 0 || len(candidateTokens) == 0 {
		return dice
	}

	set := map[string]struct{}{}
	for _, t := range candidateTokens {
		set[t] = struct{}{}
	}
	overlap := 0
	for _, t := range queryTokens {
		if _, ok := set[t]; ok {
			overlap++
		}
	}
	tokenScore := float64(overlap) / float64(len(queryTokens))
	return 0.65*dice + 0.35*tokenScore
}

// adjustForYear breaks ties with the birth year: a match nudges the
// score up, a mismatch halves it.
func adjustForYear(score float64, want, got int) float64 {
	switch {
	case want == 0 || got == 0:
		return score
	case want == got:
		score += 0.05
		if score > 1 {
			score = 1
		}
		return score
	default:
		return score / 2
	}
}

func toCandidates(athletes []lifter.Athlete, score float64) []Candidate {
	out := make([]Candidate, 0, len(athletes))
	for _, a := range athletes {
		out = append(out, Candidate{Athlete: a, Score: score})
	}
	return out
}
