package fuzzymatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripPunctuation(t *testing.T) {
	assert.Equal(t, "sporting bv prenal 15", StripPunctuation("sporting bv. pre-nal '15"))
}

func TestRemoveColorTokens(t *testing.T) {
	assert.Equal(t, "strikers miami", RemoveColorTokens("strikers red miami"))
	assert.Equal(t, "strikers miami", RemoveColorTokens("strikers miami Royal"))
}

func TestStripTrailingParenthetical(t *testing.T) {
	assert.Equal(t, "rush elite", StripTrailingParenthetical("rush elite (2014)"))
	assert.Equal(t, "rush elite (2014) still here", StripTrailingParenthetical("rush elite (2014) still here"))
}

func TestTransforms_Idempotent(t *testing.T) {
	for _, input := range []string{"Strikers Red Miami (B14)", "Sporting BV. Pre-NAL '15"} {
		for _, transformed := range Transforms(input) {
			assert.Equal(t, transformed, collapseWhitespace(transformed))
		}
	}
}
