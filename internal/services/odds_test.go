package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minefield-backend/internal/services"
)

func TestMinefieldMultiplierZeroReveals(t *testing.T) {
	for hazards := 1; hazards < 25; hazards++ {
		m, err := services.MinefieldMultiplier(25, hazards, 0)
		require.NoError(t, err)
		assert.Equal(t, 1.0, m, "zero reveals must pay exactly 1.0 for %d hazards", hazards)
	}
}

func TestMinefieldMultiplierKnownValues(t *testing.T) {
	// 1 hazard, 1 reveal: fair 25/24, edged 0.99.
	m, err := services.MinefieldMultiplier(25, 1, 1)
	require.NoError(t, err)
	assert.InDelta(t, 25.0/24.0*0.99, m, 1e-12)
	assert.InDelta(t, 1.0313, m, 1e-4)

	// 24 hazards, 1 reveal: fair 25, edged 24.75.
	m, err = services.MinefieldMultiplier(25, 24, 1)
	require.NoError(t, err)
	assert.InDelta(t, 24.75, m, 1e-12)
}

func TestMinefieldMultiplierStrictlyIncreasing(t *testing.T) {
	for _, hazards := range []int{1, 3, 10, 20} {
		prev := 1.0
		for revealed := 1; revealed <= 25-hazards; revealed++ {
			m, err := services.MinefieldMultiplier(25, hazards, revealed)
			require.NoError(t, err)
			assert.Greater(t, m, prev, "hazards=%d revealed=%d", hazards, revealed)
			prev = m
		}
	}
}

func TestMinefieldMultiplierLargeBoardStable(t *testing.T) {
	// Iterative combinatorics must not overflow on a 50-tile board.
	m, err := services.MinefieldMultiplier(50, 25, 25)
	require.NoError(t, err)
	assert.Greater(t, m, 1.0)
	assert.False(t, m != m, "multiplier must not be NaN")
	assert.Less(t, m, 1e15)
}

func TestMinefieldMultiplierRejectsBadInput(t *testing.T) {
	_, err := services.MinefieldMultiplier(25, 0, 1)
	assert.ErrorIs(t, err, services.ErrInvalidConfiguration)

	_, err = services.MinefieldMultiplier(25, 25, 1)
	assert.ErrorIs(t, err, services.ErrInvalidConfiguration)

	// More reveals than safe tiles exist.
	_, err = services.MinefieldMultiplier(25, 24, 2)
	assert.ErrorIs(t, err, services.ErrInvalidConfiguration)

	_, err = services.MinefieldMultiplier(25, 1, -1)
	assert.ErrorIs(t, err, services.ErrInvalidConfiguration)
}

func TestDiceMultiplier(t *testing.T) {
	m, err := services.DiceMultiplier(50)
	require.NoError(t, err)
	assert.InDelta(t, 1.98, m, 1e-12)

	m, err = services.DiceMultiplier(98)
	require.NoError(t, err)
	assert.InDelta(t, 49.5, m, 1e-12)

	_, err = services.DiceMultiplier(0)
	assert.ErrorIs(t, err, services.ErrInvalidConfiguration)

	_, err = services.DiceMultiplier(99.5)
	assert.ErrorIs(t, err, services.ErrInvalidConfiguration)
}
