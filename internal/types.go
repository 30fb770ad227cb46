package internal

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Outcome string

const (
	OutcomeLift   Outcome = "LIFT"
	OutcomeNoLift Outcome = "NOLIFT"
	OutcomeDNA    Outcome = "DNA"
)

// Dialect names one of the two supported spreadsheet layouts.
type Dialect string

const (
	DialectAuto Dialect = ""
	// DialectOwlcms is the tabular layout: one row per lift, a Competition sheet.
	DialectOwlcms Dialect = "owlcms"
	// DialectExcelMacro is the sparse layout grouped by session and weight class.
	DialectExcelMacro Dialect = "excelmacro"
)

func ParseDialect(value string) (Dialect, error) {
	switch Dialect(strings.ToLower(strings.TrimSpace(value))) {
	case DialectAuto:
		return DialectAuto, nil
	case DialectOwlcms, "a":
		return DialectOwlcms, nil
	case DialectExcelMacro, "b":
		return DialectExcelMacro, nil
	default:
		return DialectAuto, fmt.Errorf("unsupported dialect: %s", value)
	}
}

const dateLayout = "2006-01-02"

// Date is a calendar day. It marshals as YYYY-MM-DD.
type Date struct {
	time.Time
}

func NewDate(t time.Time) Date {
	return Date{Time: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

type Competition struct {
	Name      string `json:"name"`
	Location  string `json:"location"`
	DateStart Date   `json:"date_start"`
	DateEnd   Date   `json:"date_end"`
}

type Athlete struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	YearBorn  int    `json:"yearborn"`
}

func (a Athlete) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

type Attempt struct {
	Outcome Outcome
	Weight  int
}

// RowRef points at the spreadsheet row a record came from.
type RowRef struct {
	Sheet string `json:"sheet"`
	Row   int    `json:"row"`
}

func (r RowRef) String() string {
	return fmt.Sprintf("%s!%d", r.Sheet, r.Row)
}

type Lift struct {
	Athlete        Athlete
	LotteryNumber  int
	SnatchFirst    Attempt
	SnatchSecond   Attempt
	SnatchThird    Attempt
	CnjFirst       Attempt
	CnjSecond      Attempt
	CnjThird       Attempt
	Bodyweight     float64
	WeightCategory string
	Team           string
	SessionNumber  int
	Source         RowRef
}

// liftJSON is the flat wire shape shared with the results store.
type liftJSON struct {
	Athlete            Athlete `json:"athlete"`
	LotteryNumber      int     `json:"lottery_number"`
	SnatchFirst        Outcome `json:"snatch_first"`
	SnatchFirstWeight  int     `json:"snatch_first_weight"`
	SnatchSecond       Outcome `json:"snatch_second"`
	SnatchSecondWeight int     `json:"snatch_second_weight"`
	SnatchThird        Outcome `json:"snatch_third"`
	SnatchThirdWeight  int     `json:"snatch_third_weight"`
	CnjFirst           Outcome `json:"cnj_first"`
	CnjFirstWeight     int     `json:"cnj_first_weight"`
	CnjSecond          Outcome `json:"cnj_second"`
	CnjSecondWeight    int     `json:"cnj_second_weight"`
	CnjThird           Outcome `json:"cnj_third"`
	CnjThirdWeight     int     `json:"cnj_third_weight"`
	Bodyweight         float64 `json:"bodyweight"`
	WeightCategory     string  `json:"weight_category"`
	Team               string  `json:"team"`
	SessionNumber      int     `json:"session_number"`
	Source             *RowRef `json:"source,omitempty"`
}

func (l Lift) MarshalJSON() ([]byte, error) {
	out := liftJSON{
		Athlete:            l.Athlete,
		LotteryNumber:      l.LotteryNumber,
		SnatchFirst:        l.SnatchFirst.Outcome,
		SnatchFirstWeight:  l.SnatchFirst.Weight,
		SnatchSecond:       l.SnatchSecond.Outcome,
		SnatchSecondWeight: l.SnatchSecond.Weight,
		SnatchThird:        l.SnatchThird.Outcome,
		SnatchThirdWeight:  l.SnatchThird.Weight,
		CnjFirst:           l.CnjFirst.Outcome,
		CnjFirstWeight:     l.CnjFirst.Weight,
		CnjSecond:          l.CnjSecond.Outcome,
		CnjSecondWeight:    l.CnjSecond.Weight,
		CnjThird:           l.CnjThird.Outcome,
		CnjThirdWeight:     l.CnjThird.Weight,
		Bodyweight:         l.Bodyweight,
		WeightCategory:     l.WeightCategory,
		Team:               l.Team,
		SessionNumber:      l.SessionNumber,
	}
	if l.Source.Sheet != "" {
		src := l.Source
		out.Source = &src
	}
	return json.Marshal(out)
}

// Attempts returns the six attempts in competition order.
func (l Lift) Attempts() [6]Attempt {
	return [6]Attempt{l.SnatchFirst, l.SnatchSecond, l.SnatchThird, l.CnjFirst, l.CnjSecond, l.CnjThird}
}

// Result is the canonical output of one extraction run.
type Result struct {
	Dialect     Dialect     `json:"dialect"`
	Competition Competition `json:"competition"`
	Athletes    []Athlete   `json:"athletes"`
	Lifts       []Lift      `json:"lifts"`
}

type FileSource string

const (
	FileSourceLocal FileSource = "local"
	FileSourceEmail FileSource = "email"
	FileSourceWeb   FileSource = "web"
)

type FileStatus string

const (
	FileFetched   FileStatus = "fetched"
	FileExtracted FileStatus = "extracted"
	FileSynced    FileStatus = "synced"
	FileFailed    FileStatus = "failed"
)

// FileRow is a results spreadsheet registered in the local ledger.
type FileRow struct {
	ID        int
	Source    FileSource
	Ref       string
	Name      string
	Hash      string
	Path      string
	Dialect   Dialect
	Status    FileStatus
	Error     string
	CreatedAt string
	UpdatedAt string
}

// RunRow is one recorded processing run of a file.
type RunRow struct {
	ID        int                `json:"id"`
	TraceID   string             `json:"trace_id"`
	FileID    int                `json:"file_id"`
	Timings   map[string]float64 `json:"timings"`
	Counts    map[string]int     `json:"counts"`
	CreatedAt string             `json:"created_at"`
}

type EmailRow struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}
