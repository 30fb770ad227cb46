package util

import "strings"

// surnameParticles start compound surnames ("Karu Te Moana").
var surnameParticles = map[string]struct{}{
	"te": {}, "van": {}, "von": {}, "de": {}, "da": {}, "di": {}, "la": {},
	"le": {}, "du": {}, "del": {}, "der": {}, "den": {}, "ter": {}, "ten": {},
}

type PersonName struct {
	FirstName string
	LastName  string
}

// SplitPersonName splits a single "full name" cell. It is a heuristic:
// with three or more tokens, any inner surname particle makes every
// inner token part of the last name; otherwise inner tokens are
// treated as middle names and kept with the first name.
func SplitPersonName(full string) PersonName {
	tokens := strings.Fields(full)
	switch len(tokens) {
	case 0:
		return PersonName{}
	case 1:
		return PersonName{FirstName: tokens[0]}
	case 2:
		return PersonName{FirstName: tokens[0], LastName: tokens[1]}
	}

	inner := tokens[1 : len(tokens)-1]
	last := tokens[len(tokens)-1]
	for _, token := range inner {
		if _, ok := surnameParticles[strings.ToLower(token)]; ok {
			return PersonName{
				FirstName: tokens[0],
				LastName:  strings.Join(append(append([]string{}, inner...), last), " "),
			}
		}
	}
	return PersonName{
		FirstName: strings.Join(tokens[:len(tokens)-1], " "),
		LastName:  last,
	}
}
