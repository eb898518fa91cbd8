package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{input: "30s", want: 30 * time.Second},
		{input: "2d", want: 48 * time.Hour},
		{input: "1w", want: 7 * 24 * time.Hour},
		{input: "1w2d12h", want: 7*24*time.Hour + 2*24*time.Hour + 12*time.Hour},
		{input: "720h", want: 720 * time.Hour},
		{input: "", wantErr: true},
		{input: "banana", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDuration(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Duration())
		})
	}
}

func TestDurationString(t *testing.T) {
	assert.Equal(t, "0s", Duration(0).String())
	assert.Equal(t, "2w", Duration(14*24*time.Hour).String())
	assert.Equal(t, "1d12h0m0s", Duration(36*time.Hour).String())
	assert.Equal(t, "45s", Duration(45*time.Second).String())
}

func TestDurationJSONRoundTrip(t *testing.T) {
	orig := Duration(36 * time.Hour)
	data, err := json.Marshal(orig)
	require.NoError(t, err)

	var back Duration
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, orig, back)

	// Bare nanosecond numbers are accepted too.
	var fromNumber Duration
	require.NoError(t, json.Unmarshal([]byte("1000000000"), &fromNumber))
	assert.Equal(t, time.Second, fromNumber.Duration())
}
