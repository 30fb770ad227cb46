package reconcile

import (
	"strconv"

	"liftsync/internal"
	"liftsync/internal/lifter"
	"liftsync/internal/util"
)

// Index groups remote athletes for lookup by normalized name and token.
type Index struct {
	ByID               map[string]lifter.Athlete
	ByName             map[string][]lifter.Athlete
	TokenToAthleteIDs  map[string]map[string]struct{}
	NormalizedNameByID map[string]string
}

func BuildIndex(athletes []lifter.Athlete) *Index {
	idx := &Index{
		ByID:               map[string]lifter.Athlete{},
		ByName:             map[string][]lifter.Athlete{},
		TokenToAthleteIDs:  map[string]map[string]struct{}{},
		NormalizedNameByID: map[string]string{},
	}

	for _, a := range athletes {
		if a.ReferenceID == "" {
			continue
		}
		if _, seen := idx.ByID[a.ReferenceID]; seen {
			continue
		}
		idx.ByID[a.ReferenceID] = a
		name := util.NormalizeName(a.FullName())
		idx.NormalizedNameByID[a.ReferenceID] = name
		idx.ByName[name] = append(idx.ByName[name], a)

		for _, token := range util.Tokenize(name) {
			if _, ok := idx.TokenToAthleteIDs[token]; !ok {
				idx.TokenToAthleteIDs[token] = map[string]struct{}{}
			}
			idx.TokenToAthleteIDs[token][a.ReferenceID] = struct{}{}
		}
	}

	return idx
}

// athleteKey identifies an athlete in the local ledger.
func athleteKey(a internal.Athlete) string {
	return util.NormalizeName(a.FullName()) + "|" + strconv.Itoa(a.YearBorn)
}

func competitionKey(c internal.Competition) string {
	return c.DateStart.String() + "|" + util.NormalizeName(c.Name)
}
