package pipeline

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"liftsync/internal"
)

func str(s string) Cell            { return Cell{Kind: CellString, Text: s} }
func num(v float64) Cell           { return Cell{Kind: CellNumber, Number: v} }
func row(n int, cells ...Cell) Row { return Row{Sheet: "S", Number: n, Cells: cells} }

func TestScanRow(t *testing.T) {
	Convey("Given the excelmacro row scanner", t, func() {
		empty := Cell{}

		Convey("A session header stores the session and clears the class", func() {
			state := scanState{session: 1, weightClass: "56kg"}
			next, lift, err := scanRow(state, row(3, empty, empty, empty, str("Session"), num(4)))
			So(err, ShouldBeNil)
			So(lift, ShouldBeNil)
			So(next, ShouldResemble, scanState{session: 4})
		})

		Convey("A session number may be written inside the marker text", func() {
			next, _, err := scanRow(scanState{}, row(3, empty, empty, empty, str("Session"), str("Session 7")))
			So(err, ShouldBeNil)
			So(next.session, ShouldEqual, 7)
		})

		Convey("An unreadable session number is a parse error", func() {
			_, _, err := scanRow(scanState{}, row(3, empty, empty, empty, str("Session"), str("late")))
			var parseErr *internal.ParseError
			So(errors.As(err, &parseErr), ShouldBeTrue)
			So(parseErr.Field, ShouldEqual, "session_number")
		})

		Convey("A name cell starting with a digit sets the weight class", func() {
			next, lift, err := scanRow(scanState{session: 2}, row(5, empty, str("77kg")))
			So(err, ShouldBeNil)
			So(lift, ShouldBeNil)
			So(next, ShouldResemble, scanState{session: 2, weightClass: "77kg"})
		})

		Convey("The Name header label and non-string cells are skipped", func() {
			state := scanState{session: 1, weightClass: "77kg"}
			for _, r := range []Row{
				row(4, empty, str("Name"), str("Born")),
				row(6, empty, num(77)),
				row(7),
			} {
				next, lift, err := scanRow(state, r)
				So(err, ShouldBeNil)
				So(lift, ShouldBeNil)
				So(next, ShouldResemble, state)
			}
		})

		Convey("An athlete row emits a lift tagged with the current session", func() {
			state := scanState{session: 3, weightClass: "77kg"}
			_, lift, err := scanRow(state, row(9,
				num(12), str("Ole Hansen"), num(1990), str("Bergen"), num(76.3),
				num(120), num(-125), num(125), num(150), Cell{}, num(-160)))
			So(err, ShouldBeNil)
			So(lift, ShouldNotBeNil)
			So(lift.Athlete, ShouldResemble, internal.Athlete{FirstName: "Ole", LastName: "Hansen", YearBorn: 1990})
			So(lift.WeightCategory, ShouldEqual, "M77")
			So(lift.SessionNumber, ShouldEqual, 3)
			So(lift.LotteryNumber, ShouldEqual, 12)
			So(lift.SnatchSecond, ShouldResemble, internal.Attempt{Outcome: internal.OutcomeNoLift, Weight: 125})
			So(lift.CnjSecond, ShouldResemble, internal.Attempt{Outcome: internal.OutcomeDNA, Weight: 0})
			So(lift.Source, ShouldResemble, internal.RowRef{Sheet: "S", Row: 9})
		})

		Convey("An athlete row before any weight class fails", func() {
			_, _, err := scanRow(scanState{session: 5}, row(9, empty, str("Ole Hansen")))
			var missing *internal.MissingWeightClassError
			So(errors.As(err, &missing), ShouldBeTrue)
			So(missing.Session, ShouldEqual, 5)
			So(missing.Row, ShouldEqual, 9)
		})

		Convey("A bare 69kg class is refused", func() {
			_, _, err := scanRow(scanState{weightClass: "69kg"}, row(9, empty, str("Ole Hansen"), num(1990)))
			var ambiguous *internal.AmbiguousWeightClassError
			So(errors.As(err, &ambiguous), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "69kgm")
		})

		Convey("A missing birth year is a parse error", func() {
			_, _, err := scanRow(scanState{weightClass: "77kg"}, row(9, empty, str("Ole Hansen"), empty))
			var parseErr *internal.ParseError
			So(errors.As(err, &parseErr), ShouldBeTrue)
			So(parseErr.Field, ShouldEqual, "yearborn")
		})
	})
}
