package normalize

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/23atomist/electrion-PA/internal/source"
)

func resultRecord() source.Record {
	return source.Record{
		"county_code":           "02",
		"precinct_code":         "0001",
		"candidate_number":      "123",
		"candidate_first_name":  " Jane ",
		"candidate_last_name":   "Doe",
		"candidate_party_code":  "DEM",
		"candidate_office_code": "GOV",
		"candidate_district":    "0",
		"vote_total":            "542",
	}
}

func TestResult_Scenario(t *testing.T) {
	row, err := Result(resultRecord())
	require.NoError(t, err)

	assert.Equal(t, "02", row.CountyCode)
	assert.Equal(t, "Allegheny", row.CountyName)
	assert.Equal(t, "0001", row.PrecinctCode)
	assert.Equal(t, "123", row.CandidateNumber)
	assert.Equal(t, "Jane", row.FirstName)
	assert.Equal(t, "Doe", row.LastName)
	assert.Equal(t, "DEM", row.PartyCode)
	assert.Equal(t, "Democratic", row.PartyName)
	assert.Equal(t, "GOV", row.OfficeCode)
	assert.Equal(t, "Governor", row.OfficeName)
	require.NotNil(t, row.District)
	assert.Equal(t, 0, *row.District)
	assert.Equal(t, 542, row.VoteTotal)
	assert.Empty(t, row.Warnings)
}

func TestResult_BlankCandidateIsSkipped(t *testing.T) {
	rec := resultRecord()
	rec["candidate_number"] = "  "
	_, err := Result(rec)
	assert.ErrorIs(t, err, ErrBlankLine)
}

func TestResult_RequiredFields(t *testing.T) {
	for _, name := range []string{"county_code", "precinct_code", "candidate_party_code", "candidate_office_code"} {
		t.Run(name, func(t *testing.T) {
			rec := resultRecord()
			delete(rec, name)
			_, err := Result(rec)
			require.ErrorIs(t, err, ErrMissingField)

			var fe *FieldError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, name, fe.Field)
		})
	}
}

func TestResult_VoteTotal(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr error
	}{
		{"542", 542, nil},
		{" 17 ", 17, nil},
		{"300.0", 300, nil},
		{"12.9", 12, nil},
		{"3e2", 300, nil},
		{"", 0, ErrMissingField},
		{"nan", 0, ErrMissingField},
		{"lots", 0, ErrUnparseable},
		{"2147483647", 2147483647, nil},
		{"2147483648", 0, ErrUnparseable},
		{"99999999999999999999", 0, ErrUnparseable},
		{"18446744073709551916", 0, ErrUnparseable},
		{"1e30", 0, ErrUnparseable},
		{"-3e9", 0, ErrUnparseable},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			rec := resultRecord()
			rec["vote_total"] = tt.raw
			row, err := Result(rec)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, row.VoteTotal)
		})
	}
}

func TestResult_District(t *testing.T) {
	rec := resultRecord()
	delete(rec, "candidate_district")
	row, err := Result(rec)
	require.NoError(t, err)
	assert.Nil(t, row.District)
	assert.Empty(t, row.Warnings)

	rec["candidate_district"] = "At Large"
	row, err = Result(rec)
	require.NoError(t, err, "a bad district does not reject the row")
	assert.Nil(t, row.District)
	require.Len(t, row.Warnings, 1)
	assert.Contains(t, row.Warnings[0], "candidate_district")

	rec["candidate_district"] = "14.0"
	row, err = Result(rec)
	require.NoError(t, err)
	require.NotNil(t, row.District)
	assert.Equal(t, 14, *row.District)
}

func TestResult_UnknownCodesPassThrough(t *testing.T) {
	rec := resultRecord()
	rec["county_code"] = "9"
	rec["candidate_office_code"] = "ZZZ"
	rec["candidate_party_code"] = "XYZ"
	row, err := Result(rec)
	require.NoError(t, err)
	assert.Equal(t, "09", row.CountyCode)
	assert.Equal(t, "Bucks", row.CountyName)
	assert.Equal(t, "ZZZ", row.OfficeName)
	assert.Equal(t, "XYZ", row.PartyName)

	rec["county_code"] = "99"
	row, err = Result(rec)
	require.NoError(t, err)
	assert.Equal(t, "Unknown County 99", row.CountyName)
}

func registrationRecord() source.Record {
	return source.Record{
		"election_year":             "2020",
		"election_type":             "G",
		"county_code":               "2",
		"precinct_code":             "0001",
		"party_1_rank":              "1",
		"party_1_abbr":              "DEM",
		"party_1_voters":            "300",
		"party_2_rank":              "2",
		"party_2_abbr":              "REP",
		"party_2_voters":            "0",
		"us_congressional_district": "18",
		"state_senatorial_district": "43.0",
		"state_house_district":      "21",
		"municipality_name":         "PITTSBURGH WARD 01",
		"f_i_p_s_code":              "42003",
	}
}

func TestRegistration_Scenario(t *testing.T) {
	row, err := Registration(registrationRecord())
	require.NoError(t, err)

	assert.Equal(t, "02", row.CountyCode)
	assert.Equal(t, "Allegheny", row.CountyName)
	assert.Equal(t, "42003", row.FIPSCode)
	assert.Equal(t, "PITTSBURGH WARD 01", row.MunicipalityName)
	assert.Equal(t, "18", row.CongressionalDistrict)
	assert.Equal(t, "43", row.SenatorialDistrict)
	assert.Equal(t, "21", row.HouseDistrict)
	assert.Equal(t, []PartyCount{{Code: "DEM", Name: "Democratic", Voters: 300}}, row.Parties,
		"zero-count parties are not recorded")
	assert.Equal(t, 300, row.TotalVoters)
	assert.Empty(t, row.Warnings)
}

func TestRegistration_CountFallback(t *testing.T) {
	rec := registrationRecord()
	rec["party_2_voters"] = "n/a"
	rec["party_3_abbr"] = "LIB"
	rec["party_3_voters"] = "nan"
	rec["party_4_abbr"] = "GRN"
	rec["party_4_voters"] = "12.0"
	rec["party_5_abbr"] = ""
	rec["party_5_voters"] = "50"

	row, err := Registration(rec)
	require.NoError(t, err)
	require.Len(t, row.Warnings, 1, "only the unparseable count warns")
	assert.Contains(t, row.Warnings[0], "party_2_voters")

	codes := make([]string, 0, len(row.Parties))
	for _, p := range row.Parties {
		codes = append(codes, p.Code)
	}
	assert.Equal(t, []string{"DEM", "GRN"}, codes)
	assert.Equal(t, 312, row.TotalVoters)
}

func TestRegistration_OverflowingCountWarns(t *testing.T) {
	rec := registrationRecord()
	rec["party_1_voters"] = "18446744073709551916"

	row, err := Registration(rec)
	require.NoError(t, err)
	require.Len(t, row.Warnings, 1)
	assert.Contains(t, row.Warnings[0], "party_1_voters")
	for _, p := range row.Parties {
		assert.NotEqual(t, "DEM", p.Code)
		assert.Positive(t, p.Voters)
	}
	assert.GreaterOrEqual(t, row.TotalVoters, 0)
}

func TestRegistration_RequiredFields(t *testing.T) {
	rec := registrationRecord()
	delete(rec, "precinct_code")
	_, err := Registration(rec)
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestParseCount(t *testing.T) {
	n, err := ParseCount("-4")
	require.NoError(t, err)
	assert.Equal(t, -4, n)

	_, err = ParseCount("  ")
	assert.ErrorIs(t, err, ErrAbsent)
	_, err = ParseCount("#N/A")
	assert.ErrorIs(t, err, ErrAbsent)
	_, err = ParseCount("1,2")
	assert.ErrorIs(t, err, ErrUnparseable)

	for _, s := range []string{
		"99999999999999999999",
		"18446744073709551916",
		"1e30",
		"1e999999999",
		"2147483648.0",
		"-2147483649",
	} {
		_, err = ParseCount(s)
		assert.ErrorIs(t, err, ErrUnparseable, s)
	}

	n, err = ParseCount("-2147483648")
	require.NoError(t, err)
	assert.Equal(t, MinCount, n)
	n, err = ParseCount("2147483647.9")
	require.NoError(t, err)
	assert.Equal(t, MaxCount, n)
	n, err = ParseCount("4e-7")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPadCode(t *testing.T) {
	tests := []struct {
		code  string
		width int
		want  string
	}{
		{"2", 2, "02"},
		{" 02 ", 2, "02"},
		{"2.0", 2, "02"},
		{"67", 2, "67"},
		{"123", 2, "123"},
		{"0001", 0, "0001"},
		{"1E2", 0, "1E2"},
		{"12.5", 0, "12.5"},
		{"", 2, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PadCode(tt.code, tt.width), "PadCode(%q, %d)", tt.code, tt.width)
	}
}

func TestCountyNameCoversAllCounties(t *testing.T) {
	assert.Len(t, countyNames, 67)
	assert.Equal(t, "Adams", CountyName("01"))
	assert.Equal(t, "York", CountyName("67"))
}
