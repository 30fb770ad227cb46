package lifter

import "liftsync/internal"

// Page is one page of a list endpoint.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

type Athlete struct {
	ReferenceID string `json:"reference_id,omitempty"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	YearBorn    int    `json:"yearborn"`
}

func (a Athlete) FullName() string {
	return internal.Athlete{FirstName: a.FirstName, LastName: a.LastName}.FullName()
}

type Competition struct {
	ReferenceID string `json:"reference_id,omitempty"`
	Name        string `json:"name"`
	Location    string `json:"location"`
	DateStart   string `json:"date_start"`
	DateEnd     string `json:"date_end"`
}

// Lift is the store's lift record. Athlete and Competition hold
// reference ids.
type Lift struct {
	ReferenceID        string  `json:"reference_id,omitempty"`
	Athlete            string  `json:"athlete"`
	Competition        string  `json:"competition,omitempty"`
	LotteryNumber      int     `json:"lottery_number"`
	SnatchFirst        string  `json:"snatch_first"`
	SnatchFirstWeight  int     `json:"snatch_first_weight"`
	SnatchSecond       string  `json:"snatch_second"`
	SnatchSecondWeight int     `json:"snatch_second_weight"`
	SnatchThird        string  `json:"snatch_third"`
	SnatchThirdWeight  int     `json:"snatch_third_weight"`
	CnjFirst           string  `json:"cnj_first"`
	CnjFirstWeight     int     `json:"cnj_first_weight"`
	CnjSecond          string  `json:"cnj_second"`
	CnjSecondWeight    int     `json:"cnj_second_weight"`
	CnjThird           string  `json:"cnj_third"`
	CnjThirdWeight     int     `json:"cnj_third_weight"`
	Bodyweight         float64 `json:"bodyweight"`
	WeightCategory     string  `json:"weight_category"`
	Team               string  `json:"team"`
	SessionNumber      int     `json:"session_number"`
}

func AthleteFrom(a internal.Athlete) Athlete {
	return Athlete{FirstName: a.FirstName, LastName: a.LastName, YearBorn: a.YearBorn}
}

func CompetitionFrom(c internal.Competition) Competition {
	return Competition{
		Name:      c.Name,
		Location:  c.Location,
		DateStart: c.DateStart.String(),
		DateEnd:   c.DateEnd.String(),
	}
}

// LiftFrom builds the create payload for l lifted by athleteID.
func LiftFrom(athleteID string, l internal.Lift) Lift {
	a := l.Attempts()
	return Lift{
		Athlete:            athleteID,
		LotteryNumber:      l.LotteryNumber,
		SnatchFirst:        string(a[0].Outcome),
		SnatchFirstWeight:  a[0].Weight,
		SnatchSecond:       string(a[1].Outcome),
		SnatchSecondWeight: a[1].Weight,
		SnatchThird:        string(a[2].Outcome),
		SnatchThirdWeight:  a[2].Weight,
		CnjFirst:           string(a[3].Outcome),
		CnjFirstWeight:     a[3].Weight,
		CnjSecond:          string(a[4].Outcome),
		CnjSecondWeight:    a[4].Weight,
		CnjThird:           string(a[5].Outcome),
		CnjThirdWeight:     a[5].Weight,
		Bodyweight:         l.Bodyweight,
		WeightCategory:     l.WeightCategory,
		Team:               l.Team,
		SessionNumber:      l.SessionNumber,
	}
}
