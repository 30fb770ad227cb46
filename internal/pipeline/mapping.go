package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"liftsync/internal"
	"liftsync/internal/util"
)

// Field is a canonical lift field a column can be mapped to.
type Field string

const (
	FieldFullName       Field = "full_name"
	FieldFirstName      Field = "first_name"
	FieldLastName       Field = "last_name"
	FieldYearBorn       Field = "yearborn"
	FieldLotteryNumber  Field = "lottery_number"
	FieldSnatchFirst    Field = "snatch_first"
	FieldSnatchSecond   Field = "snatch_second"
	FieldSnatchThird    Field = "snatch_third"
	FieldCnjFirst       Field = "cnj_first"
	FieldCnjSecond      Field = "cnj_second"
	FieldCnjThird       Field = "cnj_third"
	FieldBodyweight     Field = "bodyweight"
	FieldWeightCategory Field = "weight_category"
	FieldTeam           Field = "team"
	FieldSessionNumber  Field = "session_number"
)

var knownFields = map[Field]bool{
	FieldFullName: true, FieldFirstName: true, FieldLastName: true, FieldYearBorn: true,
	FieldLotteryNumber: true, FieldSnatchFirst: true, FieldSnatchSecond: true, FieldSnatchThird: true,
	FieldCnjFirst: true, FieldCnjSecond: true, FieldCnjThird: true, FieldBodyweight: true,
	FieldWeightCategory: true, FieldTeam: true, FieldSessionNumber: true,
}

var attemptMappingFields = [6]Field{
	FieldSnatchFirst, FieldSnatchSecond, FieldSnatchThird,
	FieldCnjFirst, FieldCnjSecond, FieldCnjThird,
}

// ColumnMapping maps a field to a column. A value of one to three
// upper-case letters ("H") is a column letter; anything else is matched
// against the header labels, ignoring case.
type ColumnMapping map[Field]string

var reColumnLetter = regexp.MustCompile(`^[A-Z]{1,3}$`)

// ParseColumnMapping reads "field=column,field=column" or, with a
// leading "@", a JSON object from a file.
func ParseColumnMapping(value string) (ColumnMapping, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	mapping := ColumnMapping{}
	if path, ok := strings.CutPrefix(value, "@"); ok {
		blob, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read mapping: %w", err)
		}
		raw := map[string]string{}
		if err := json.Unmarshal(blob, &raw); err != nil {
			return nil, fmt.Errorf("decode mapping %s: %w", path, err)
		}
		for k, v := range raw {
			mapping[Field(strings.TrimSpace(k))] = strings.TrimSpace(v)
		}
	} else {
		for _, pair := range strings.Split(value, ",") {
			k, v, ok := strings.Cut(pair, "=")
			if !ok {
				return nil, fmt.Errorf("mapping entry %q is not field=column", pair)
			}
			mapping[Field(strings.TrimSpace(k))] = strings.TrimSpace(v)
		}
	}
	return mapping, mapping.Validate()
}

func (m ColumnMapping) Validate() error {
	unknown := []string{}
	for field := range m {
		if !knownFields[field] {
			unknown = append(unknown, string(field))
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unknown mapping fields: %s", strings.Join(unknown, ", "))
	}
	_, full := m[FieldFullName]
	_, first := m[FieldFirstName]
	_, last := m[FieldLastName]
	if !full && !(first && last) {
		return fmt.Errorf("mapping needs full_name or both first_name and last_name")
	}
	for _, required := range []Field{FieldBodyweight, FieldWeightCategory} {
		if _, ok := m[required]; !ok {
			return fmt.Errorf("mapping needs %s", required)
		}
	}
	return nil
}

// resolve turns every mapped column into a 0-based index for table.
func (m ColumnMapping) resolve(table Table) (map[Field]int, error) {
	idx := table.HeaderIndex()
	out := make(map[Field]int, len(m))
	for field, column := range m {
		if reColumnLetter.MatchString(column) {
			n, err := excelize.ColumnNameToNumber(column)
			if err != nil {
				return nil, fmt.Errorf("mapping %s: %w", field, err)
			}
			out[field] = n - 1
			continue
		}
		col, ok := idx[strings.ToLower(util.NormalizeSpaces(column))]
		if !ok {
			return nil, fmt.Errorf("mapping %s: no column labelled %q", field, column)
		}
		out[field] = col
	}
	return out, nil
}

// ExtractMapped derives lifts positionally from a caller-declared
// mapping, with the same normalizers as the dialect extractors. Rows
// with blank names, or without an integral lottery number when one is
// mapped, are skipped.
func ExtractMapped(table Table, mapping ColumnMapping) ([]internal.Lift, error) {
	if err := mapping.Validate(); err != nil {
		return nil, err
	}
	cols, err := mapping.resolve(table)
	if err != nil {
		return nil, err
	}
	cell := func(row Row, field Field) Cell {
		col, ok := cols[field]
		if !ok {
			return Cell{}
		}
		return row.At(col)
	}
	headerEcho := func(row Row, field Field) bool {
		col, ok := cols[field]
		return ok && row.At(col).Kind == CellString && row.At(col).Text == table.HeaderAt(col).Text
	}

	out := []internal.Lift{}
	for _, row := range table.Rows {
		if _, ok := cols[FieldLotteryNumber]; ok && !cell(row, FieldLotteryNumber).IsInteger() {
			continue
		}

		var athlete internal.Athlete
		if _, ok := cols[FieldFullName]; ok {
			if headerEcho(row, FieldFullName) {
				continue
			}
			person := util.SplitPersonName(cell(row, FieldFullName).String())
			athlete.FirstName, athlete.LastName = person.FirstName, person.LastName
		} else {
			if headerEcho(row, FieldFirstName) {
				continue
			}
			athlete.FirstName = util.NormalizeSpaces(cell(row, FieldFirstName).String())
			athlete.LastName = util.NormalizeSpaces(cell(row, FieldLastName).String())
		}
		if athlete.FirstName == "" && athlete.LastName == "" {
			continue
		}

		lift := internal.Lift{
			Athlete: athlete,
			Team:    util.NormalizeSpaces(cell(row, FieldTeam).String()),
			Source:  internal.RowRef{Sheet: row.Sheet, Row: row.Number},
		}
		if _, ok := cols[FieldYearBorn]; ok {
			if lift.Athlete.YearBorn, err = cellInt(cell(row, FieldYearBorn)); err != nil {
				return nil, atRow(err, row, string(FieldYearBorn))
			}
		}
		if lot := cell(row, FieldLotteryNumber); lot.IsInteger() {
			lift.LotteryNumber = int(lot.Number)
		}
		if c := cell(row, FieldSessionNumber); !c.IsEmpty() {
			if lift.SessionNumber, err = sessionNumber(c); err != nil {
				return nil, atRow(err, row, string(FieldSessionNumber))
			}
		}

		attempts := [6]*internal.Attempt{
			&lift.SnatchFirst, &lift.SnatchSecond, &lift.SnatchThird,
			&lift.CnjFirst, &lift.CnjSecond, &lift.CnjThird,
		}
		for i, field := range attemptMappingFields {
			value, err := cellAttempt(cell(row, field))
			if err != nil {
				return nil, atRow(err, row, string(field))
			}
			*attempts[i] = util.ParseAttempt(value)
		}

		if lift.Bodyweight, err = cellBodyweight(cell(row, FieldBodyweight)); err != nil {
			return nil, atRow(err, row, string(FieldBodyweight))
		}
		if lift.WeightCategory, err = mappedCategory(cell(row, FieldWeightCategory).String(), row); err != nil {
			return nil, err
		}
		out = append(out, lift)
	}
	return out, nil
}

// mappedCategory sends "kg" tokens through the fixed table and
// everything else through the category-code parser.
func mappedCategory(raw string, row Row) (string, error) {
	token := strings.ToLower(strings.Join(strings.Fields(raw), ""))
	if strings.HasSuffix(token, "kg") || strings.HasSuffix(token, "kgm") || strings.HasSuffix(token, "kgw") {
		if util.IsAmbiguousCategory(raw) {
			return "", &internal.AmbiguousWeightClassError{Sheet: row.Sheet, Row: row.Number, Token: raw}
		}
		code, err := util.ParseWeightCategoryFromTable(raw)
		return code, categoryAt(err, row)
	}
	code, err := util.ParseWeightCategory(raw)
	return code, categoryAt(err, row)
}
