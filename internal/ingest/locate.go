package ingest

import (
	"fmt"
	"os"
	"path/filepath"
)

// ResultsCandidates lists the file names a results file has been published
// under, most likely first. The 2000 file was published with a typo.
func ResultsCandidates(year int) []string {
	return []string{
		fmt.Sprintf("ElectionReturns_%d_General_PrecinctReturns.txt", year),
		fmt.Sprintf("ElectionReturns_%d_General_PrecinctRetuns.txt", year),
	}
}

// RegistrationCandidates lists the file names a registration file has been
// published under, most likely first.
func RegistrationCandidates(year int) []string {
	return []string{
		fmt.Sprintf("VoterRegistration_%d_General_Precinct.txt", year),
		fmt.Sprintf("VoterRegistration_%d_General_precinct.txt", year),
		fmt.Sprintf("VoterRegistration_%d_General_Precinct.xlsx", year),
	}
}

// Candidates returns the candidate file names for kind and year.
func Candidates(kind Kind, year int) []string {
	if kind == KindRegistration {
		return RegistrationCandidates(year)
	}
	return ResultsCandidates(year)
}

// Locate returns the first candidate that exists in dir as a regular file.
func Locate(dir string, candidates []string) (string, bool) {
	for _, name := range candidates {
		path := filepath.Join(dir, name)
		if fi, err := os.Stat(path); err == nil && fi.Mode().IsRegular() {
			return path, true
		}
	}
	return "", false
}
