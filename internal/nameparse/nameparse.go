// Package nameparse extracts team identity metadata (birth year, gender,
// age group) from free-form team names scraped from third-party sources.
package nameparse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pitchsync/pitchsync/internal/config"
)

// FieldSource records which parsing rule produced a Metadata field, so the
// resolver can stamp teams.birth_year_source / gender_source / data_flags.
type FieldSource string

const (
	SourceParsed4Digit        FieldSource = "parsed_4digit"
	SourceParsed2Digit        FieldSource = "parsed_2digit"
	SourceParsedAgeGroup      FieldSource = "parsed_age_group"
	SourceInferredFromSource  FieldSource = "inferred_from_source"
	SourceUnknown             FieldSource = "unknown"
)

type Gender string

const (
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
	GenderUnknown Gender = "unknown"
)

// Metadata is the result of parsing a raw team name.
type Metadata struct {
	CanonicalName     string
	BirthYear         *int
	BirthYearSource   FieldSource
	Gender            Gender
	GenderSource      FieldSource
	AgeGroup          *int
	AgeGroupSource    FieldSource
}

var (
	fourDigitYearRe = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	twoDigitGenderRe = regexp.MustCompile(`(?i)\b(\d{2})([BG])\b|\b([BG])(\d{2})\b`)
	ageGroupRe      = regexp.MustCompile(`(?i)\bU(\d{1,2})\b`)
	genderWordRe    = regexp.MustCompile(`(?i)\b(boys|girls)\b`)
	nonAlnumRe      = regexp.MustCompile(`[^a-z0-9]+`)
)

// stopTokens are excluded when extracting "key parts" for Level 2 lookup.
var stopTokens = map[string]bool{
	"fc": true, "sc": true, "ac": true, "afc": true, "cf": true,
	"boys": true, "girls": true, "club": true, "soccer": true,
	"academy": true, "united": true, "select": true,
}

// Canonicalize lowercases and collapses whitespace, matching the
// canonical_name normalization the resolver and alias table share.
func Canonicalize(name string) string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(name)))
	return strings.Join(fields, " ")
}

// Parse extracts Metadata from a raw team name using the four priority
// rules: 4-digit year, 2-digit year + gender code, U<n> age-group token,
// else unknown. seasonYear anchors the valid birth-year window and the
// age-group back-computation.
func Parse(rawName string, seasonYear int) Metadata {
	md := Metadata{
		CanonicalName:   Canonicalize(rawName),
		Gender:          GenderUnknown,
		GenderSource:    SourceUnknown,
		BirthYearSource: SourceUnknown,
		AgeGroupSource:  SourceUnknown,
	}

	minYear := seasonYear - config.MinBirthYearOffset
	maxYear := seasonYear - config.MaxBirthYearOffset

	// Rule (i): bare 4-digit year within [seasonYear-19, seasonYear-7].
	if m := fourDigitYearRe.FindString(rawName); m != "" {
		if y, err := strconv.Atoi(m); err == nil && y >= minYear && y <= maxYear {
			year := y
			md.BirthYear = &year
			md.BirthYearSource = SourceParsed4Digit
			md.AgeGroup = ageGroupFromBirthYear(year, seasonYear)
			md.AgeGroupSource = SourceParsed4Digit
		}
	}

	// Rule (ii): 2-digit year adjacent to a B/G gender code, e.g. "B14"/"14G".
	// The gender half applies even when rule (i) already supplied the birth
	// year; only the birth-year half is skipped in that case.
	if m := twoDigitGenderRe.FindStringSubmatch(rawName); m != nil {
		digits, code := m[1], m[2]
		if digits == "" {
			digits, code = m[4], m[3]
		}
		if md.BirthYear == nil {
			if n, err := strconv.Atoi(digits); err == nil {
				year := twoDigitToFullYear(n, seasonYear)
				if year >= minYear && year <= maxYear {
					md.BirthYear = &year
					md.BirthYearSource = SourceParsed2Digit
					md.AgeGroup = ageGroupFromBirthYear(year, seasonYear)
					md.AgeGroupSource = SourceParsed2Digit
				}
			}
		}
		md.Gender = genderFromCode(code)
		md.GenderSource = SourceParsed2Digit
	}

	// Rule (iii): U<n> age-group token, n in [7, 19], back-computed.
	if md.BirthYear == nil {
		if m := ageGroupRe.FindStringSubmatch(rawName); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n >= config.MinAgeGroup && n <= config.MaxAgeGroup {
				age := n
				md.AgeGroup = &age
				md.AgeGroupSource = SourceParsedAgeGroup
				year := seasonYear - n
				md.BirthYear = &year
				md.BirthYearSource = SourceParsedAgeGroup
			}
		}
	}

	// Gender word fallback (boys|girls), independent of the rule that found
	// the birth year.
	if md.GenderSource == SourceUnknown {
		if m := genderWordRe.FindString(rawName); m != "" {
			md.Gender = genderFromWord(m)
			md.GenderSource = SourceParsedAgeGroup
		}
	}

	return md
}

// ageGroupFromBirthYear computes "season_year - birth_year", the inverse of
// the U<n> back-computation in rule (iii).
func ageGroupFromBirthYear(birthYear, seasonYear int) *int {
	age := seasonYear - birthYear
	return &age
}

// twoDigitToFullYear expands a 2-digit year token into a 4-digit year by
// choosing the latest candidate not after seasonYear, the same way a birth-year
// token for a youth team is always in the recent past relative to the
// season it's playing in.
func twoDigitToFullYear(n, seasonYear int) int {
	century := (seasonYear / 100) * 100
	candidate := century + n
	if candidate > seasonYear {
		candidate -= 100
	}
	return candidate
}

func genderFromCode(code string) Gender {
	switch strings.ToUpper(code) {
	case "B":
		return GenderMale
	case "G":
		return GenderFemale
	default:
		return GenderUnknown
	}
}

func genderFromWord(word string) Gender {
	switch strings.ToLower(word) {
	case "boys":
		return GenderMale
	case "girls":
		return GenderFemale
	default:
		return GenderUnknown
	}
}

// KeyParts extracts tokens of length >= 2 from a canonical name, excluding
// stop-tokens, for the Level 2 contains-all-key-parts resolver lookup.
func KeyParts(canonicalName string) []string {
	fields := strings.Fields(canonicalName)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,'\"-")
		if len(f) < 2 {
			continue
		}
		if stopTokens[strings.ToLower(f)] {
			continue
		}
		parts = append(parts, f)
	}
	return parts
}

// ExtractGenderIndicator returns the gender implied by a free-form name's
// boys|girls word or B<nn>/G<nn> token, used by the fuzzy matcher's
// candidate-disagreement guard. Returns GenderUnknown if no indicator is
// present.
func ExtractGenderIndicator(name string) Gender {
	if m := genderWordRe.FindString(name); m != "" {
		return genderFromWord(m)
	}
	if m := twoDigitGenderRe.FindStringSubmatch(name); m != nil {
		code := m[2]
		if code == "" {
			code = m[3]
		}
		return genderFromCode(code)
	}
	return GenderUnknown
}

// ExtractFourDigitYear returns the first bare 4-digit year token in name,
// used by the fuzzy matcher's year-disagreement guard and by maintenance's
// birth-year repair scan.
func ExtractFourDigitYear(name string) (int, bool) {
	m := fourDigitYearRe.FindString(name)
	if m == "" {
		return 0, false
	}
	y, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return y, true
}

// StripForAlphaCompare removes all non-alphanumeric characters and
// lowercases, a coarse comparison helper distinct from the fuzzy matcher's
// normalization transforms.
func StripForAlphaCompare(s string) string {
	return nonAlnumRe.ReplaceAllString(strings.ToLower(s), "")
}
