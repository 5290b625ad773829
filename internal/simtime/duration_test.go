package simtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Duration
	}{
		{"0", 0},
		{"15", 15 * Microsecond},
		{"15us", 15 * Microsecond},
		{"250ms", 250 * Millisecond},
		{"90s", 90 * Second},
		{"1h30m", 90 * Minute},
		{"2d", 2 * Day},
		{"2d12h", 2*Day + 12*Hour},
		{"-5s", -5 * Second},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	for _, in := range []string{"", "abc", "1ns", "xd"} {
		_, err := Parse(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestString(t *testing.T) {
	assert.Equal(t, "0s", Zero.String())
	assert.Equal(t, "1h30m0s", (90 * Minute).String())
	assert.Equal(t, "2d", (2 * Day).String())
	assert.Equal(t, "1d1h0m0s", (Day + Hour).String())
	assert.Equal(t, "1.5ms", (1500 * Microsecond).String())
	assert.Equal(t, "-5s", (-5 * Second).String())
}

func TestString_RoundTrip(t *testing.T) {
	for _, d := range []Duration{1, 999, Second, 3*Day + 7*Minute + 12*Microsecond, -Hour} {
		back, err := Parse(d.String())
		require.NoError(t, err)
		assert.Equal(t, d, back)
	}
}

func TestSeconds(t *testing.T) {
	assert.Equal(t, 1.5, (1500 * Millisecond).Seconds())
	assert.Equal(t, 1500*Millisecond, FromSeconds(1.5))
	assert.Equal(t, -2*Second, FromSeconds(-2))
}

func TestUnmarshalYAML(t *testing.T) {
	var doc struct {
		Start   Duration `yaml:"start"`
		Horizon Duration `yaml:"horizon"`
	}
	err := yaml.Unmarshal([]byte("start: 10m\nhorizon: 1000\n"), &doc)
	require.NoError(t, err)
	assert.Equal(t, 10*Minute, doc.Start)
	assert.Equal(t, 1000*Microsecond, doc.Horizon)

	err = yaml.Unmarshal([]byte("start: [1]\n"), &doc)
	assert.Error(t, err)
}

func TestWindow(t *testing.T) {
	w := Between(Second, 3*Second)
	assert.Equal(t, 2*Second, w.Length())
	assert.True(t, w.Contains(Second))
	assert.True(t, w.Contains(3*Second))
	assert.False(t, w.Contains(4*Second))
	assert.False(t, w.IsEmpty())
	assert.True(t, Between(2, 1).IsEmpty())
	assert.Equal(t, "[1s, 3s]", w.String())
}
