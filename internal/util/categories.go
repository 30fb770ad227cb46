package util

import (
	"sort"
	"strings"

	"liftsync/internal"
)

// CategoryTableVersion names the federation rulesets the tables below
// were derived from. Re-derive both tables when categories change.
const CategoryTableVersion = "IWF-1998/IWF-2018"

var validCategories = map[string]struct{}{
	// IWF 2018 onward.
	"M55": {}, "M61": {}, "M67": {}, "M73": {}, "M81": {}, "M89": {}, "M96": {}, "M102": {}, "M109": {}, "M109+": {},
	"W45": {}, "W49": {}, "W55": {}, "W59": {}, "W64": {}, "W71": {}, "W76": {}, "W81": {}, "W87": {}, "W87+": {},
	// IWF 1998-2017.
	"M56": {}, "M62": {}, "M69": {}, "M77": {}, "M85": {}, "M94": {}, "M105": {}, "M105+": {},
	"W48": {}, "W53": {}, "W58": {}, "W63": {}, "W69": {}, "W75": {}, "W75+": {}, "W90": {}, "W90+": {},
}

// weightCategoryTable maps the free-text class labels of the
// excelmacro layout to category codes. The men's and women's 69 kg
// classes share a number, so the sheet must say "69kgm" or "69kgw".
var weightCategoryTable = map[string]string{
	"56kg":   "M56",
	"62kg":   "M62",
	"69kgm":  "M69",
	"77kg":   "M77",
	"85kg":   "M85",
	"94kg":   "M94",
	"105kg":  "M105",
	"105+kg": "M105+",
	"+105kg": "M105+",
	"48kg":   "W48",
	"53kg":   "W53",
	"58kg":   "W58",
	"63kg":   "W63",
	"69kgw":  "W69",
	"75kg":   "W75",
	"75+kg":  "W75+",
	"+75kg":  "W75+",
	"90kg":   "W90",
	"90+kg":  "W90+",
	"+90kg":  "W90+",
}

// AmbiguousCategoryToken is the bare label shared by both 69 kg classes.
const AmbiguousCategoryToken = "69kg"

func IsValidCategory(code string) bool {
	_, ok := validCategories[code]
	return ok
}

func ValidCategories() []string {
	out := make([]string, 0, len(validCategories))
	for code := range validCategories {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// ParseWeightCategory reads the owlcms category label ("M 61",
// "F 55", "M > 109").
func ParseWeightCategory(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if strings.Contains(code, ">") {
		code = strings.ReplaceAll(code, ">", "") + "+"
	}
	if strings.HasPrefix(code, "F") {
		code = "W" + code[1:]
	}
	code = strings.Join(strings.Fields(code), "")
	if !IsValidCategory(code) {
		return "", &internal.UnknownCategoryError{Token: raw}
	}
	return code, nil
}

// ParseWeightCategoryFromTable reads the excelmacro class label
// ("53kg", "105+kg") through the fixed table. Unmapped labels are an
// error, never a guess.
func ParseWeightCategoryFromTable(raw string) (string, error) {
	token := strings.ToLower(strings.Join(strings.Fields(raw), ""))
	code, ok := weightCategoryTable[token]
	if !ok {
		return "", &internal.UnknownCategoryError{Token: raw}
	}
	return code, nil
}

// IsAmbiguousCategory reports the bare "69kg" label.
func IsAmbiguousCategory(raw string) bool {
	return strings.ToLower(strings.Join(strings.Fields(raw), "")) == AmbiguousCategoryToken
}
