package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pitchsync/pitchsync/internal/nameparse"
)

func TestScoreLevel2Candidate_ExactTokenAndYearMatch(t *testing.T) {
	year := 2014
	md := nameparse.Metadata{BirthYear: &year}
	candidate := &Team{CanonicalName: "sporting bv pre-nal 2014", BirthYear: &year}

	score := scoreLevel2Candidate([]string{"sporting", "bv", "2014"}, md, candidate)
	assert.GreaterOrEqual(t, score, level2ScoreThreshold)
}

func TestScoreLevel2Candidate_NoSharedTokens(t *testing.T) {
	md := nameparse.Metadata{}
	candidate := &Team{CanonicalName: "downtown rovers"}

	score := scoreLevel2Candidate([]string{"sporting", "bv"}, md, candidate)
	assert.Less(t, score, level2ScoreThreshold)
}

func TestTokenShareRatio(t *testing.T) {
	assert.Equal(t, 1.0, tokenShareRatio([]string{"a", "b"}, []string{"a", "b", "c"}))
	assert.Equal(t, 0.5, tokenShareRatio([]string{"a", "b"}, []string{"a", "c"}))
	assert.Equal(t, 0.0, tokenShareRatio(nil, []string{"a"}))
}

func TestInferState(t *testing.T) {
	assert.Equal(t, "KS", inferState("heartland"))
	assert.Equal(t, "Unknown", inferState("gotsport"))
}
