// Package normalize turns raw source records into typed, defaulted rows.
//
// Normalization is pure: it never touches the store and never logs. Soft
// problems are returned as warnings on the row; hard problems are returned
// as a *FieldError and the row must be rejected.
package normalize

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/23atomist/electrion-PA/internal/source"
)

var (
	// ErrBlankLine marks a results row with no candidate. It is skipped
	// without being counted as an error.
	ErrBlankLine = errors.New("normalize: blank ballot line")

	// ErrMissingField is wrapped by a FieldError for an empty required field.
	ErrMissingField = errors.New("normalize: missing required field")

	// ErrUnparseable is wrapped by a FieldError for a value that is present
	// but not a number, or a number outside [MinCount, MaxCount].
	ErrUnparseable = errors.New("normalize: unparseable value")

	// ErrAbsent is returned by ParseCount for an empty or not-a-number value.
	ErrAbsent = errors.New("normalize: value absent")
)

// Counts are bounded to 32 bits so that sums over a row's party slots
// cannot overflow a 64-bit column.
const (
	MinCount = math.MinInt32
	MaxCount = math.MaxInt32
)

var (
	minCount = decimal.NewFromInt(MinCount)
	maxCount = decimal.NewFromInt(MaxCount)
)

// CountyCodeWidth is the fixed width of a county code.
const CountyCodeWidth = 2

// FieldError describes why one field of a row was rejected.
type FieldError struct {
	Field string
	Value string
	Err   error
}

func (e *FieldError) Error() string {
	if errors.Is(e.Err, ErrMissingField) {
		return fmt.Sprintf("%s: required field is empty", e.Field)
	}
	return fmt.Sprintf("%s: cannot parse %q as a number", e.Field, e.Value)
}

func (e *FieldError) Unwrap() error { return e.Err }

// ResultRow is a normalized results record.
type ResultRow struct {
	CountyCode      string
	CountyName      string
	PrecinctCode    string
	CandidateNumber string
	FirstName       string
	LastName        string
	PartyCode       string
	PartyName       string
	OfficeCode      string
	OfficeName      string
	District        *int // nil when absent or unparseable
	VoteTotal       int
	Warnings        []string
}

// PartyCount is one kept party slot of a registration row.
type PartyCount struct {
	Code   string
	Name   string
	Voters int
}

// RegistrationRow is a normalized registration record.
type RegistrationRow struct {
	CountyCode            string
	CountyName            string
	FIPSCode              string
	PrecinctCode          string
	MunicipalityName      string
	CongressionalDistrict string
	SenatorialDistrict    string
	HouseDistrict         string

	// Parties holds the slots with an abbreviation and a positive count,
	// in slot order.
	Parties []PartyCount

	// TotalVoters is the sum of Parties.
	TotalVoters int

	Warnings []string
}

// Result normalizes one results record.
func Result(rec source.Record) (ResultRow, error) {
	var row ResultRow

	row.CandidateNumber = field(rec, "candidate_number")
	if row.CandidateNumber == "" {
		return row, ErrBlankLine
	}

	county, err := required(rec, "county_code")
	if err != nil {
		return row, err
	}
	row.CountyCode = PadCode(county, CountyCodeWidth)
	row.CountyName = CountyName(row.CountyCode)

	precinct, err := required(rec, "precinct_code")
	if err != nil {
		return row, err
	}
	row.PrecinctCode = PadCode(precinct, 0)

	if row.PartyCode, err = required(rec, "candidate_party_code"); err != nil {
		return row, err
	}
	row.PartyName = PartyName(row.PartyCode)

	if row.OfficeCode, err = required(rec, "candidate_office_code"); err != nil {
		return row, err
	}
	row.OfficeName = OfficeName(row.OfficeCode)

	row.FirstName = field(rec, "candidate_first_name")
	row.LastName = field(rec, "candidate_last_name")

	votes := field(rec, "vote_total")
	row.VoteTotal, err = ParseCount(votes)
	switch {
	case errors.Is(err, ErrAbsent):
		return row, &FieldError{Field: "vote_total", Value: votes, Err: ErrMissingField}
	case err != nil:
		return row, &FieldError{Field: "vote_total", Value: votes, Err: ErrUnparseable}
	}

	district := field(rec, "candidate_district")
	if d, err := ParseCount(district); err == nil {
		row.District = &d
	} else if !errors.Is(err, ErrAbsent) {
		row.Warnings = append(row.Warnings, fmt.Sprintf("candidate_district: cannot parse %q; leaving it unset", district))
	}

	return row, nil
}

// Registration normalizes one registration record. Unparseable voter
// counts become zero with a warning; zero-count and unnamed party slots
// are dropped.
func Registration(rec source.Record) (RegistrationRow, error) {
	var row RegistrationRow

	county, err := required(rec, "county_code")
	if err != nil {
		return row, err
	}
	row.CountyCode = PadCode(county, CountyCodeWidth)
	row.CountyName = CountyName(row.CountyCode)

	precinct, err := required(rec, "precinct_code")
	if err != nil {
		return row, err
	}
	row.PrecinctCode = PadCode(precinct, 0)

	row.FIPSCode = PadCode(field(rec, "f_i_p_s_code"), 0)
	row.MunicipalityName = field(rec, "municipality_name")
	row.CongressionalDistrict = PadCode(field(rec, "us_congressional_district"), 0)
	row.SenatorialDistrict = PadCode(field(rec, "state_senatorial_district"), 0)
	row.HouseDistrict = PadCode(field(rec, "state_house_district"), 0)

	for i := 1; i <= source.PartySlots; i++ {
		abbr := field(rec, fmt.Sprintf("party_%d_abbr", i))
		name := fmt.Sprintf("party_%d_voters", i)
		raw := field(rec, name)

		voters, err := ParseCount(raw)
		if err != nil {
			if !errors.Is(err, ErrAbsent) {
				row.Warnings = append(row.Warnings,
					fmt.Sprintf("%s: cannot parse %q for party %q; using 0", name, raw, abbr))
			}
			voters = 0
		}
		if abbr == "" || voters <= 0 {
			continue
		}
		row.Parties = append(row.Parties, PartyCount{Code: abbr, Name: PartyName(abbr), Voters: voters})
		row.TotalVoters += voters
	}

	return row, nil
}

// ParseCount parses a count that may have been exported as an integer or
// as a decimal string ("300.0", "3e2"). Decimals are truncated toward zero.
// An empty or not-a-number value yields ErrAbsent.
func ParseCount(s string) (int, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "", "nan", "NaN", "NAN", "#N/A":
		return 0, ErrAbsent
	}
	n, err := strconv.ParseInt(s, 10, 32)
	switch {
	case err == nil:
		return int(n), nil
	case errors.Is(err, strconv.ErrRange):
		return 0, ErrUnparseable
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrUnparseable
	}
	if d.IsZero() {
		return 0, nil
	}
	// |d| < 10^mag. Checked before truncating so that a huge exponent is
	// never expanded.
	mag := d.NumDigits() + int(d.Exponent())
	switch {
	case mag <= 0:
		return 0, nil
	case mag > 10:
		return 0, ErrUnparseable
	}
	d = d.Truncate(0)
	if d.LessThan(minCount) || d.GreaterThan(maxCount) {
		return 0, ErrUnparseable
	}
	return int(d.IntPart()), nil
}

// PadCode trims a code, folds an integral decimal rendering such as "2.0"
// back to "2", and left-pads it with zeros to width. A width of zero only
// trims and folds.
func PadCode(code string, width int) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	if i := strings.IndexByte(code, '.'); i > 0 && digits(code[:i]) && strings.Trim(code[i+1:], "0") == "" {
		code = code[:i]
	}
	if len(code) < width {
		code = strings.Repeat("0", width-len(code)) + code
	}
	return code
}

func digits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func field(rec source.Record, name string) string {
	return strings.TrimSpace(rec.Get(name))
}

func required(rec source.Record, name string) (string, error) {
	v := field(rec, name)
	if v == "" {
		return "", &FieldError{Field: name, Err: ErrMissingField}
	}
	return v, nil
}
