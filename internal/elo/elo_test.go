package elo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpected_EqualRatingsIsEvenOdds(t *testing.T) {
	assert.InDelta(t, 0.5, Expected(1500, 1500), 1e-9)
}

func TestExpected_HigherRatedFavored(t *testing.T) {
	assert.Greater(t, Expected(1700, 1500), 0.5)
	assert.Less(t, Expected(1500, 1700), 0.5)
}

func TestUpdate_WinnerGainsLoserLoses(t *testing.T) {
	newHome, newAway := Update(1500, 1500, Win)
	assert.Greater(t, newHome, 1500.0)
	assert.Less(t, newAway, 1500.0)
	// Symmetric: the ratings lost and gained must balance around the 1500/1500 start.
	assert.InDelta(t, 1500.0, (newHome+newAway)/2, 0.5)
}

func TestUpdate_DrawBetweenEqualsIsNoOp(t *testing.T) {
	newHome, newAway := Update(1500, 1500, Draw)
	assert.Equal(t, 1500.0, newHome)
	assert.Equal(t, 1500.0, newAway)
}

func TestUpdate_UnderdogWinGainsMoreThanFavoriteWin(t *testing.T) {
	favoriteWins, _ := Update(1700, 1300, Win)
	underdogWins, _ := Update(1300, 1700, Win)
	favoriteGain := favoriteWins - 1700
	underdogGain := underdogWins - 1300
	assert.Greater(t, underdogGain, favoriteGain, "beating a much stronger opponent should gain more rating than beating a much weaker one")
}

// TestReplay_Deterministic exercises the three-match scenario named in the
// testable-properties scenarios (three teams, results A beats B, B beats C,
// A draws C) and asserts that replaying the same ordered match set twice
// produces identical final ratings — the determinism property, rather than
// pinning exact digits that depend on home/away orientation choices the
// distilled scenario leaves implicit.
func TestReplay_Deterministic(t *testing.T) {
	type match struct {
		home, away int
		homeScore, awayScore int
	}
	matches := []match{
		{home: 0, away: 1, homeScore: 2, awayScore: 1}, // A beats B
		{home: 1, away: 2, homeScore: 2, awayScore: 1}, // B beats C
		{home: 0, away: 2, homeScore: 1, awayScore: 1}, // A draws C
	}

	run := func() [3]float64 {
		ratings := [3]float64{StartingRating, StartingRating, StartingRating}
		for _, m := range matches {
			outcome := OutcomeFromScores(m.homeScore, m.awayScore)
			newHome, newAway := Update(ratings[m.home], ratings[m.away], outcome)
			ratings[m.home] = newHome
			ratings[m.away] = newAway
		}
		return ratings
	}

	first := run()
	second := run()
	assert.Equal(t, first, second)
	assert.Greater(t, first[0], StartingRating, "A won one and drew one, should finish above starting")
}
