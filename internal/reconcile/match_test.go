package reconcile

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"liftsync/internal"
	"liftsync/internal/lifter"
)

func TestMatcher(t *testing.T) {
	Convey("Given remote athletes", t, func() {
		index := BuildIndex([]lifter.Athlete{
			{ReferenceID: "a1", FirstName: "Kari", LastName: "Te Moana", YearBorn: 2004},
			{ReferenceID: "a2", FirstName: "Per", LastName: "Olsen", YearBorn: 1990},
			{ReferenceID: "a3", FirstName: "Per", LastName: "Olsen", YearBorn: 1971},
			{ReferenceID: "a4", FirstName: "Lise", LastName: "Nilsen", YearBorn: 1999},
			{ReferenceID: "a4", FirstName: "Lise", LastName: "Nilsen", YearBorn: 1999},
		})
		m := NewMatcher(testConfig())

		Convey("duplicate ids are indexed once", func() {
			So(index.ByName["LISE NILSEN"], ShouldHaveLength, 1)
		})

		Convey("an exact name ignores case and diacritics", func() {
			res := m.Match(internal.Athlete{FirstName: "kári", LastName: "te moana", YearBorn: 2004}, index)
			So(res.Status, ShouldEqual, MatchOK)
			So(res.Athlete.ReferenceID, ShouldEqual, "a1")
		})

		Convey("the birth year separates namesakes", func() {
			res := m.Match(internal.Athlete{FirstName: "Per", LastName: "Olsen", YearBorn: 1971}, index)
			So(res.Status, ShouldEqual, MatchOK)
			So(res.Athlete.ReferenceID, ShouldEqual, "a3")
		})

		Convey("namesakes without a birth year need review", func() {
			res := m.Match(internal.Athlete{FirstName: "Per", LastName: "Olsen"}, index)
			So(res.Status, ShouldEqual, MatchReview)
			So(res.Candidates, ShouldHaveLength, 2)
		})

		Convey("a near spelling is at least a review", func() {
			res := m.Match(internal.Athlete{FirstName: "Lise", LastName: "Nielsen", YearBorn: 1999}, index)
			So(res.Status, ShouldNotEqual, MatchNotFound)
			So(res.Candidates[0].Athlete.ReferenceID, ShouldEqual, "a4")
		})

		Convey("an unrelated name is not found", func() {
			res := m.Match(internal.Athlete{FirstName: "Ingrid", LastName: "Dahl", YearBorn: 2000}, index)
			So(res.Status, ShouldEqual, MatchNotFound)
		})
	})
}
