package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Rate
		wantErr bool
	}{
		{name: "xp value", input: "2150.0", want: Rate{Kind: RateXP, XP: 2150}},
		{name: "xp lower bound", input: "500", want: Rate{Kind: RateXP, XP: 500}},
		{name: "xp upper bound", input: "5500", want: Rate{Kind: RateXP, XP: 5500}},
		{name: "xp below range", input: "499.9", wantErr: true},
		{name: "xp above range", input: "5500.1", wantErr: true},
		{name: "udemae", input: "S+", want: Rate{Kind: RateUdemae, Udemae: "S+"}},
		{name: "udemae lowercase", input: "b-", want: Rate{Kind: RateUdemae, Udemae: "B-"}},
		{name: "invalid symbol", input: "Z", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRate(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, KindValidation, KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRateCompare(t *testing.T) {
	xpLow, err := NewXP(1500)
	require.NoError(t, err)
	xpHigh, err := NewXP(2800)
	require.NoError(t, err)
	rankLow, err := NewUdemae("B+")
	require.NoError(t, err)
	rankHigh, err := NewUdemae("S")
	require.NoError(t, err)

	t.Run("same kind orders totally", func(t *testing.T) {
		c, err := xpLow.Compare(xpHigh)
		require.NoError(t, err)
		assert.Equal(t, -1, c)

		c, err = rankHigh.Compare(rankLow)
		require.NoError(t, err)
		assert.Equal(t, 1, c)

		c, err = rankLow.Compare(rankLow)
		require.NoError(t, err)
		assert.Equal(t, 0, c)
	})

	t.Run("cross variant is an error", func(t *testing.T) {
		_, err := xpLow.Compare(rankHigh)
		assert.ErrorIs(t, err, ErrIncomparableRates)
	})
}

func TestRateString(t *testing.T) {
	xp, err := NewXP(2150.5)
	require.NoError(t, err)
	assert.Equal(t, "2150.5", xp.String())

	rank, err := NewUdemae("C-")
	require.NoError(t, err)
	assert.Equal(t, "C-", rank.String())

	roundTripped, err := ParseRate(xp.String())
	require.NoError(t, err)
	assert.Equal(t, xp, roundTripped)
}
