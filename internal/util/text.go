package util

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	reQuotes = regexp.MustCompile(`["'` + "`" + `«»’]`)
	reSpaces = regexp.MustCompile(`\s+`)
)

// NormalizeSpaces collapses runs of whitespace and trims the ends.
func NormalizeSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(strings.ReplaceAll(input, " ", " "), " "))
}

// NormalizeName upper-cases a person name and strips diacritics and
// punctuation so "Tēina O'Brien" and "TEINA OBRIEN" compare equal.
func NormalizeName(input string) string {
	s := norm.NFD.String(input)
	s = reQuotes.ReplaceAllString(s, "")
	out := strings.Builder{}
	for _, r := range s {
		switch {
		case unicode.Is(unicode.Mn, r):
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			out.WriteRune(unicode.ToUpper(r))
		default:
			out.WriteRune(' ')
		}
	}
	return NormalizeSpaces(out.String())
}

func Tokenize(input string) []string {
	parts := strings.Split(NormalizeName(input), " ")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if len([]rune(p)) >= 2 {
			out = append(out, p)
		}
	}
	return out
}

func DiceCoefficient(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	pairs := func(s string) []string {
		r := []rune(s)
		if len(r) < 2 {
			return nil
		}
		out := make([]string, 0, len(r)-1)
		for i := 0; i < len(r)-1; i++ {
			out = append(out, string(r[i:i+2]))
		}
		return out
	}

	aPairs := pairs(a)
	bPairs := pairs(b)
	if len(aPairs) == 0 || len(bPairs) == 0 {
		return 0
	}

	bCount := map[string]int{}
	for _, p := range bPairs {
		bCount[p]++
	}
	inter := 0
	for _, p := range aPairs {
		if bCount[p] > 0 {
			inter++
			bCount[p]--
		}
	}

	return float64(2*inter) / float64(len(aPairs)+len(bPairs))
}
