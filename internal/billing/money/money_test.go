package money

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gescom-erp/gescom/internal/billing/shared"
)

func TestLineAmount(t *testing.T) {
	amount, err := LineAmount(2, 50000)
	require.NoError(t, err)
	require.Equal(t, int64(100000), amount)

	amount, err = LineAmount(1, 0)
	require.NoError(t, err)
	require.Equal(t, int64(0), amount)
}

func TestLineAmountRejectsNonPositiveQuantity(t *testing.T) {
	_, err := LineAmount(0, 100)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = LineAmount(-3, 100)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestLineAmountRejectsNegativePrice(t *testing.T) {
	_, err := LineAmount(1, -1)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestTotalSumsInIndexOrder(t *testing.T) {
	lines := []Line{
		{Index: 3, Montant: 100000},
		{Index: 1, Montant: 50000},
		{Index: 2, Montant: 50000},
	}
	require.Equal(t, int64(200000), Total(lines))
	require.Equal(t, int64(0), Total(nil))
}

func TestTVARoundsHalfUp(t *testing.T) {
	require.Equal(t, int64(36000), TVA(200000, 18))
	// 18% of 3 = 0.54, rounds to 1
	require.Equal(t, int64(1), TVA(3, 18))
	// 18% of 2 = 0.36, rounds to 0
	require.Equal(t, int64(0), TVA(2, 18))
	require.Equal(t, int64(0), TVA(0, 18))
	require.Equal(t, int64(0), TVA(1000, 0))
}
