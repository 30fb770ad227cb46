// Package reconcile pushes an extracted result to the results store,
// reusing competitions and athletes the store already has.
//
// Lookups and creates are not atomic: two writers syncing the same
// sheet at once can both create an athlete. A single writer is assumed.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"liftsync/internal"
	"liftsync/internal/config"
	"liftsync/internal/lifter"
	"liftsync/internal/logging"
	"liftsync/internal/metrics"
	"liftsync/internal/util"
)

var ErrAthleteNeedsReview = errors.New("athlete needs review")

const (
	refKindAthlete     = "athlete"
	refKindCompetition = "competition"
)

// Remote is the part of the store API a sync needs.
type Remote interface {
	ListCompetitions(ctx context.Context) ([]lifter.Competition, error)
	CreateCompetition(ctx context.Context, c lifter.Competition) (lifter.Competition, error)
	SearchAthletes(ctx context.Context, query string) ([]lifter.Athlete, error)
	CreateAthlete(ctx context.Context, a lifter.Athlete) (lifter.Athlete, error)
	ListLifts(ctx context.Context, competitionID string) ([]lifter.Lift, error)
	CreateLift(ctx context.Context, competitionID string, l lifter.Lift) (lifter.Lift, error)
}

// RefStore persists store ids of local entities between runs.
type RefStore interface {
	GetRemoteRef(kind, key string) (string, bool, error)
	PutRemoteRef(kind, key, remoteID string) error
	SetMetadata(key, value string) error
}

// ReviewError lists the candidates an athlete could not be told apart from.
type ReviewError struct {
	Athlete    internal.Athlete
	Candidates []Candidate
}

func (e *ReviewError) Error() string {
	names := make([]string, 0, len(e.Candidates))
	for _, c := range e.Candidates {
		names = append(names, fmt.Sprintf("%s (%d, %s, %.2f)", c.Athlete.FullName(), c.Athlete.YearBorn, c.Athlete.ReferenceID, c.Score))
	}
	return fmt.Sprintf("%s: %s born %d matches %s", ErrAthleteNeedsReview, e.Athlete.FullName(), e.Athlete.YearBorn, strings.Join(names, "; "))
}

func (e *ReviewError) Unwrap() error { return ErrAthleteNeedsReview }

type SyncOptions struct {
	// ForceCreate creates the competition even when one with the same
	// start date exists.
	ForceCreate bool
}

type Report struct {
	CompetitionID      string
	CompetitionCreated bool
	AthletesCreated    int
	AthletesReused     int
	LiftsCreated       int
	LiftsSkipped       int
}

func (r Report) Counts() map[string]int {
	created := 0
	if r.CompetitionCreated {
		created = 1
	}
	return map[string]int{
		"competitions_created": created,
		"athletes_created":     r.AthletesCreated,
		"athletes_reused":      r.AthletesReused,
		"lifts_created":        r.LiftsCreated,
		"lifts_skipped":        r.LiftsSkipped,
	}
}

type Service struct {
	remote  Remote
	refs    RefStore
	matcher *Matcher
	metrics *metrics.Manager
}

// NewService builds a sync service. refs may be nil, in which case
// nothing is remembered between runs.
func NewService(remote Remote, refs RefStore, cfg config.Config, m *metrics.Manager) *Service {
	return &Service{remote: remote, refs: refs, matcher: NewMatcher(cfg), metrics: m}
}

func (s *Service) Sync(ctx context.Context, result internal.Result, opts SyncOptions) (Report, error) {
	var report Report
	log := logging.FromContext(ctx)

	compID, created, err := s.ensureCompetition(ctx, result.Competition, opts.ForceCreate)
	if err != nil {
		return report, fmt.Errorf("competition %q: %w", result.Competition.Name, err)
	}
	report.CompetitionID = compID
	report.CompetitionCreated = created
	log.Info("competition resolved", "name", result.Competition.Name, "id", compID, "created", created)

	athleteIDs := map[string]string{}
	for _, athlete := range result.Athletes {
		key := athleteKey(athlete)
		if _, done := athleteIDs[key]; done {
			continue
		}
		id, created, err := s.resolveAthlete(ctx, athlete)
		if err != nil {
			return report, err
		}
		athleteIDs[key] = id
		if created {
			report.AthletesCreated++
		} else {
			report.AthletesReused++
		}
	}

	var lifted map[string]struct{}
	for _, lift := range result.Lifts {
		athleteID, ok := athleteIDs[athleteKey(lift.Athlete)]
		if !ok {
			id, created, err := s.resolveAthlete(ctx, lift.Athlete)
			if err != nil {
				return report, err
			}
			athleteIDs[athleteKey(lift.Athlete)] = id
			athleteID = id
			if created {
				report.AthletesCreated++
			} else {
				report.AthletesReused++
			}
		}

		_, err := s.remote.CreateLift(ctx, compID, lifter.LiftFrom(athleteID, lift))
		if err == nil {
			report.LiftsCreated++
			s.metrics.RecordSyncAction("lift", "created")
			continue
		}
		var apiErr *lifter.APIError
		if !errors.As(err, &apiErr) {
			return report, fmt.Errorf("lift %s: %w", lift.Source, err)
		}

		if lifted == nil {
			lifted, err = s.liftedAthletes(ctx, compID)
			if err != nil {
				return report, fmt.Errorf("lift %s: %w", lift.Source, err)
			}
		}
		if _, done := lifted[athleteID]; !done {
			return report, fmt.Errorf("lift %s: %w", lift.Source, apiErr)
		}
		report.LiftsSkipped++
		s.metrics.RecordSyncAction("lift", "skipped")
		log.Info("athlete already lifted in competition", "athlete", lift.Athlete.FullName(), "source", lift.Source.String())
	}

	if s.refs != nil {
		_ = s.refs.SetMetadata("sync.last_run", time.Now().UTC().Format(time.RFC3339))
	}
	return report, nil
}

func (s *Service) ensureCompetition(ctx context.Context, comp internal.Competition, force bool) (string, bool, error) {
	key := competitionKey(comp)
	if !force {
		if id, ok, err := s.lookupRef(refKindCompetition, key); err != nil || ok {
			if ok {
				s.metrics.RecordSyncAction("competition", "reused")
			}
			return id, false, err
		}

		existing, err := s.remote.ListCompetitions(ctx)
		if err != nil {
			return "", false, err
		}
		if found := s.findCompetition(comp, existing); found != nil {
			s.metrics.RecordSyncAction("competition", "reused")
			return found.ReferenceID, false, s.rememberRef(refKindCompetition, key, found.ReferenceID)
		}
	} else {
		logging.FromContext(ctx).Warn("creating competition without checking for duplicates", "name", comp.Name)
	}

	created, err := s.remote.CreateCompetition(ctx, lifter.CompetitionFrom(comp))
	if err != nil {
		return "", false, err
	}
	s.metrics.RecordSyncAction("competition", "created")
	return created.ReferenceID, true, s.rememberRef(refKindCompetition, key, created.ReferenceID)
}

// findCompetition reuses a competition starting on the same day whose
// name is close enough to be the same meet.
func (s *Service) findCompetition(comp internal.Competition, existing []lifter.Competition) *lifter.Competition {
	want := util.NormalizeName(comp.Name)
	start := comp.DateStart.String()
	var best *lifter.Competition
	bestScore := -1.0
	for i := range existing {
		c := existing[i]
		if c.DateStart != start {
			continue
		}
		name := util.NormalizeName(c.Name)
		score := scoreName(want, name, util.Tokenize(want), util.Tokenize(name))
		if score >= s.matcher.reviewThreshold && score > bestScore {
			best, bestScore = &existing[i], score
		}
	}
	return best
}

func (s *Service) resolveAthlete(ctx context.Context, athlete internal.Athlete) (string, bool, error) {
	key := athleteKey(athlete)
	if id, ok, err := s.lookupRef(refKindAthlete, key); err != nil || ok {
		if ok {
			s.metrics.RecordSyncAction("athlete", "reused")
		}
		return id, false, err
	}

	found, err := s.remote.SearchAthletes(ctx, athlete.FullName())
	if err != nil {
		return "", false, fmt.Errorf("search athlete %q: %w", athlete.FullName(), err)
	}
	match := s.matcher.Match(athlete, BuildIndex(found))
	switch match.Status {
	case MatchOK:
		s.metrics.RecordSyncAction("athlete", "reused")
		return match.Athlete.ReferenceID, false, s.rememberRef(refKindAthlete, key, match.Athlete.ReferenceID)
	case MatchReview:
		s.metrics.RecordSyncAction("athlete", "review")
		return "", false, &ReviewError{Athlete: athlete, Candidates: match.Candidates}
	}

	created, err := s.remote.CreateAthlete(ctx, lifter.AthleteFrom(athlete))
	if err != nil {
		return "", false, fmt.Errorf("create athlete %q: %w", athlete.FullName(), err)
	}
	s.metrics.RecordSyncAction("athlete", "created")
	logging.FromContext(ctx).Info("athlete created", "athlete", athlete.FullName(), "id", created.ReferenceID)
	return created.ReferenceID, true, s.rememberRef(refKindAthlete, key, created.ReferenceID)
}

func (s *Service) liftedAthletes(ctx context.Context, competitionID string) (map[string]struct{}, error) {
	lifts, err := s.remote.ListLifts(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(lifts))
	for _, l := range lifts {
		out[l.Athlete] = struct{}{}
	}
	return out, nil
}

func (s *Service) lookupRef(kind, key string) (string, bool, error) {
	if s.refs == nil {
		return "", false, nil
	}
	return s.refs.GetRemoteRef(kind, key)
}

func (s *Service) rememberRef(kind, key, id string) error {
	if s.refs == nil || id == "" {
		return nil
	}
	return s.refs.PutRemoteRef(kind, key, id)
}
