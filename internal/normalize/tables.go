package normalize

import "fmt"

// countyNames maps the two-digit Pennsylvania county code to the county
// name. Codes follow alphabetical order.
var countyNames = map[string]string{
	"01": "Adams", "02": "Allegheny", "03": "Armstrong", "04": "Beaver", "05": "Bedford",
	"06": "Berks", "07": "Blair", "08": "Bradford", "09": "Bucks", "10": "Butler",
	"11": "Cambria", "12": "Cameron", "13": "Carbon", "14": "Centre", "15": "Chester",
	"16": "Clarion", "17": "Clearfield", "18": "Clinton", "19": "Columbia", "20": "Crawford",
	"21": "Cumberland", "22": "Dauphin", "23": "Delaware", "24": "Elk", "25": "Erie",
	"26": "Fayette", "27": "Forest", "28": "Franklin", "29": "Fulton", "30": "Greene",
	"31": "Huntingdon", "32": "Indiana", "33": "Jefferson", "34": "Juniata", "35": "Lackawanna",
	"36": "Lancaster", "37": "Lawrence", "38": "Lebanon", "39": "Lehigh", "40": "Luzerne",
	"41": "Lycoming", "42": "McKean", "43": "Mercer", "44": "Mifflin", "45": "Monroe",
	"46": "Montgomery", "47": "Montour", "48": "Northampton", "49": "Northumberland", "50": "Perry",
	"51": "Philadelphia", "52": "Pike", "53": "Potter", "54": "Schuylkill", "55": "Snyder",
	"56": "Somerset", "57": "Sullivan", "58": "Susquehanna", "59": "Tioga", "60": "Union",
	"61": "Venango", "62": "Warren", "63": "Washington", "64": "Wayne", "65": "Westmoreland",
	"66": "Wyoming", "67": "York",
}

// officeNames covers the office abbreviations used across the state's
// precinct return files. Several offices appear under more than one code.
var officeNames = map[string]string{
	"USP":   "President of the United States",
	"USS":   "United States Senator",
	"USSN":  "United States Senator",
	"USC":   "Representative in Congress",
	"REPR":  "Representative in Congress",
	"GOV":   "Governor",
	"LTG":   "Lieutenant Governor",
	"LG":    "Lieutenant Governor",
	"ATTYG": "Attorney General",
	"ATG":   "Attorney General",
	"AUDG":  "Auditor General",
	"AUD":   "Auditor General",
	"TREAS": "State Treasurer",
	"TRE":   "State Treasurer",
	"STS":   "Senator in the General Assembly",
	"STSEN": "Senator in the General Assembly",
	"STH":   "Representative in the General Assembly",
	"STREP": "Representative in the General Assembly",
}

// partyNames covers the common party abbreviations.
var partyNames = map[string]string{
	"DEM": "Democratic",
	"REP": "Republican",
	"LIB": "Libertarian",
	"GRN": "Green",
	"GR":  "Green",
	"CON": "Constitution",
	"IND": "Independent",
	"REF": "Reform",
	"SOC": "Socialist",
	"NOF": "No Affiliation",
	"NF":  "No Affiliation",
	"OTH": "Other",
}

// CountyName returns the name of a two-digit county code, or a placeholder
// embedding the code when it is not a known county.
func CountyName(code string) string {
	if name, ok := countyNames[code]; ok {
		return name
	}
	return fmt.Sprintf("Unknown County %s", code)
}

// OfficeName returns the descriptive name of an office code, or the code
// itself when it is not known.
func OfficeName(code string) string {
	if name, ok := officeNames[code]; ok {
		return name
	}
	return code
}

// PartyName returns the name of a party abbreviation, or the abbreviation
// itself when it is not known.
func PartyName(code string) string {
	if name, ok := partyNames[code]; ok {
		return name
	}
	return code
}

// HeadlineOffices are the statewide and legislative offices offered by the
// reporting layer.
var HeadlineOffices = []string{"USP", "GOV", "USSN", "ATTYG", "AUDG", "TREAS", "REPR", "STSEN", "STH"}
