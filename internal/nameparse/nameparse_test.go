package nameparse

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_FourDigitYear(t *testing.T) {
	md := Parse("Sporting BV Pre-NAL 2015", 2026)
	require.NotNil(t, md.BirthYear)
	assert.Equal(t, 2015, *md.BirthYear)
	assert.Equal(t, SourceParsed4Digit, md.BirthYearSource)
}

func TestParse_FourDigitYear_OutOfWindowIgnored(t *testing.T) {
	// 2026-19=2007 .. 2026-7=2019; 1999 is outside the window so the rule
	// must not fire.
	md := Parse("Alumni Cup 1999 Classic", 2026)
	assert.Nil(t, md.BirthYear)
}

func TestParse_TwoDigitGenderCode(t *testing.T) {
	md := Parse("Rush B14 Elite", 2026)
	require.NotNil(t, md.BirthYear)
	assert.Equal(t, 2014, *md.BirthYear)
	assert.Equal(t, GenderMale, md.Gender)
	assert.Equal(t, SourceParsed2Digit, md.BirthYearSource)
}

func TestParse_TwoDigitGenderCode_TrailingForm(t *testing.T) {
	md := Parse("Strikers 14G Red", 2026)
	require.NotNil(t, md.BirthYear)
	assert.Equal(t, 2014, *md.BirthYear)
	assert.Equal(t, GenderFemale, md.Gender)
}

func TestParse_AgeGroupToken(t *testing.T) {
	md := Parse("Heartland U15 Academy", 2026)
	require.NotNil(t, md.BirthYear)
	assert.Equal(t, 2011, *md.BirthYear)
	assert.Equal(t, SourceParsedAgeGroup, md.BirthYearSource)
}

func TestParse_AgeGroupToken_OutOfRangeIgnored(t *testing.T) {
	md := Parse("Club U25 Masters", 2026)
	assert.Nil(t, md.BirthYear)
}

func TestParse_Unknown(t *testing.T) {
	md := Parse("Downtown Rovers", 2026)
	assert.Nil(t, md.BirthYear)
	assert.Equal(t, GenderUnknown, md.Gender)
}

// Round-trip law from the testable-properties section: for a name
// containing exactly one 4-digit year within the valid window, deriving
// age group from that year and then deriving the birth year back from the
// age group returns the original year.
func TestParse_RoundTrip_YearAgeGroup(t *testing.T) {
	seasonYear := 2026
	for _, year := range []int{2008, 2012, 2019} {
		md := Parse("Sporting Club "+strconv.Itoa(year)+" Elite", seasonYear)
		require.NotNil(t, md.BirthYear, "year %d", year)
		require.NotNil(t, md.AgeGroup, "year %d", year)
		assert.Equal(t, year, seasonYear-*md.AgeGroup)
	}
}

func TestKeyParts_ExcludesStopTokens(t *testing.T) {
	parts := KeyParts("sporting bv fc boys 2014")
	assert.ElementsMatch(t, []string{"sporting", "bv", "2014"}, parts)
}

func TestExtractGenderIndicator(t *testing.T) {
	assert.Equal(t, GenderMale, ExtractGenderIndicator("Strikers Boys 09"))
	assert.Equal(t, GenderFemale, ExtractGenderIndicator("Strikers G14"))
	assert.Equal(t, GenderUnknown, ExtractGenderIndicator("Strikers Red"))
}

func TestExtractFourDigitYear(t *testing.T) {
	y, ok := ExtractFourDigitYear("Rush 2014 Elite")
	require.True(t, ok)
	assert.Equal(t, 2014, y)

	_, ok = ExtractFourDigitYear("Rush Elite")
	assert.False(t, ok)
}
