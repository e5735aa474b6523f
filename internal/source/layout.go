package source

// ResultsRequiredFields are the columns a results file header must carry.
var ResultsRequiredFields = []string{
	"county_code",
	"precinct_code",
	"candidate_number",
	"candidate_first_name",
	"candidate_last_name",
	"candidate_party_code",
	"candidate_office_code",
	"candidate_district",
	"vote_total",
}

// RegistrationFields is the positional layout of the headerless
// registration files, text and spreadsheet alike.
var RegistrationFields = []string{
	"election_year", "election_type", "county_code", "precinct_code",
	"party_1_rank", "party_1_abbr", "party_1_voters",
	"party_2_rank", "party_2_abbr", "party_2_voters",
	"party_3_rank", "party_3_abbr", "party_3_voters",
	"party_4_rank", "party_4_abbr", "party_4_voters",
	"party_5_rank", "party_5_abbr", "party_5_voters",
	"party_6_rank", "party_6_abbr", "party_6_voters",
	"us_congressional_district", "state_senatorial_district", "state_house_district",
	"municipality_type_code", "municipality_name",
	"municipality_breakdown_code_1", "municipality_breakdown_name_1",
	"municipality_breakdown_code_2", "municipality_breakdown_name_2",
	"bi_county_code", "m_c_d_code", "f_i_p_s_code", "v_t_d_code",
	"previous_precinct_code", "previous_us_congressional_district",
	"previous_state_senatorial_district", "previous_state_house_district",
}

// PartySlots is the number of (rank, abbreviation, voters) triples in a
// registration row.
const PartySlots = 6
