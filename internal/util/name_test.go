package util

import "testing"

func TestSplitPersonName(t *testing.T) {
	cases := []struct {
		input string
		want  PersonName
	}{
		{input: "John Smith", want: PersonName{FirstName: "John", LastName: "Smith"}},
		{input: "Karu Te Moana", want: PersonName{FirstName: "Karu", LastName: "Te Moana"}},
		{input: "Mary Jane Watson", want: PersonName{FirstName: "Mary Jane", LastName: "Watson"}},
		{input: "Anna van der Berg", want: PersonName{FirstName: "Anna", LastName: "van der Berg"}},
		{input: "Cher", want: PersonName{FirstName: "Cher"}},
		{input: "  Tama   Ngata ", want: PersonName{FirstName: "Tama", LastName: "Ngata"}},
		{input: "", want: PersonName{}},
	}

	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			if got := SplitPersonName(tc.input); got != tc.want {
				t.Fatalf("got %+v want %+v", got, tc.want)
			}
		})
	}
}

func TestNormalizeName(t *testing.T) {
	if got := NormalizeName("Tēina  O'Brien"); got != "TEINA OBRIEN" {
		t.Fatalf("got %q", got)
	}
	if DiceCoefficient(NormalizeName("John Smith"), NormalizeName("JOHN SMITH")) != 1 {
		t.Fatal("expected exact match")
	}
}
