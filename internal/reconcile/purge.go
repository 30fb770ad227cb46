package reconcile

import (
	"context"
	"errors"
	"fmt"

	"liftsync/internal/lifter"
)

var ErrPurgeNotConfirmed = errors.New("purge needs explicit confirmation")

// Purger is the part of the store API that deletes records.
type Purger interface {
	ListAthletes(ctx context.Context) ([]lifter.Athlete, error)
	ListCompetitions(ctx context.Context) ([]lifter.Competition, error)
	DeleteAthlete(ctx context.Context, id string) error
	DeleteCompetition(ctx context.Context, id string) error
}

// RefPurger forgets remembered store ids.
type RefPurger interface {
	DeleteRemoteRefs(kind string) (int64, error)
}

// Purge deletes every athlete or every competition in the store and
// the matching local references. It refuses to run unless confirm is
// set.
func Purge(ctx context.Context, store Purger, refs RefPurger, what string, confirm bool) (int, error) {
	if !confirm {
		return 0, ErrPurgeNotConfirmed
	}

	var (
		ids  []string
		kind string
		del  func(context.Context, string) error
	)
	switch what {
	case "athletes":
		athletes, err := store.ListAthletes(ctx)
		if err != nil {
			return 0, err
		}
		for _, a := range athletes {
			ids = append(ids, a.ReferenceID)
		}
		kind, del = refKindAthlete, store.DeleteAthlete
	case "competitions":
		competitions, err := store.ListCompetitions(ctx)
		if err != nil {
			return 0, err
		}
		for _, c := range competitions {
			ids = append(ids, c.ReferenceID)
		}
		kind, del = refKindCompetition, store.DeleteCompetition
	default:
		return 0, fmt.Errorf("unknown purge target %q: want athletes or competitions", what)
	}

	deleted := 0
	for _, id := range ids {
		if err := del(ctx, id); err != nil {
			return deleted, fmt.Errorf("delete %s %s: %w", kind, id, err)
		}
		deleted++
	}
	if refs != nil {
		if _, err := refs.DeleteRemoteRefs(kind); err != nil {
			return deleted, err
		}
	}
	return deleted, nil
}
