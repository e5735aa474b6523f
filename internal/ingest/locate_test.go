package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
}

func TestLocate_PriorityOrder(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "VoterRegistration_2004_General_Precinct.xlsx")

	path, ok := Locate(dir, RegistrationCandidates(2004))
	require.True(t, ok)
	assert.Equal(t, "VoterRegistration_2004_General_Precinct.xlsx", filepath.Base(path))

	touch(t, dir, "VoterRegistration_2004_General_Precinct.txt")
	path, ok = Locate(dir, RegistrationCandidates(2004))
	require.True(t, ok)
	assert.Equal(t, "VoterRegistration_2004_General_Precinct.txt", filepath.Base(path), "text wins over spreadsheet")
}

func TestLocate_HistoricalTypo(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "ElectionReturns_2000_General_PrecinctRetuns.txt")

	path, ok := Locate(dir, ResultsCandidates(2000))
	require.True(t, ok)
	assert.Equal(t, "ElectionReturns_2000_General_PrecinctRetuns.txt", filepath.Base(path))
}

func TestLocate_NothingFound(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "ElectionReturns_2012_General_PrecinctReturns.txt"), 0o755))

	_, ok := Locate(dir, ResultsCandidates(2012))
	assert.False(t, ok, "directories are not files")
}
