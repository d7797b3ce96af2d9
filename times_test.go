package headway

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHMS(t *testing.T) {
	tests := []struct {
		in   string
		want uint32
	}{
		{"00:00:00", 0},
		{"08:30:00", 8*3600 + 30*60},
		{"23:59:59", 86399},
		{"24:10:00", 86400 + 600},
		{"25:01:30", 25*3600 + 90},
		{"48:00:00", 48 * 3600},
		{"08:30", 8*3600 + 30*60},
		{" 08:30:00 ", 8*3600 + 30*60},
	}

	for _, tt := range tests {
		got, err := ParseHMS(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseHMSRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "8", "ab:cd:ef", "08:61:00", "08:30:99", "-1:00:00", "08"} {
		_, err := ParseHMS(in)
		assert.Error(t, err, in)
	}
}

func TestFormatHMSRoundTrip(t *testing.T) {
	// canonical times below 24h survive a parse/format cycle untouched
	for h := 0; h < 24; h++ {
		for _, ms := range []struct{ m, s int }{{0, 0}, {30, 15}, {59, 59}} {
			in := fmt.Sprintf("%02d:%02d:%02d", h, ms.m, ms.s)
			v, err := ParseHMS(in)
			require.NoError(t, err)
			assert.Equal(t, in, FormatHMS(v))
		}
	}
}

func TestFormatHMSWrapsPastMidnight(t *testing.T) {
	// hours up to 48 parse fine and render modulo a day
	for h := 24; h <= 48; h++ {
		in := fmt.Sprintf("%02d:10:00", h)
		v, err := ParseHMS(in)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("%02d:10:00", h%24), FormatHMS(v))
	}
}

func TestDurationS(t *testing.T) {
	assert.Equal(t, uint32(1200), DurationS(mustHMS(t, "23:50:00"), mustHMS(t, "24:10:00")))
	assert.Equal(t, uint32(1200), DurationS(mustHMS(t, "23:50:00"), mustHMS(t, "00:10:00")))
	assert.Equal(t, uint32(0), DurationS(mustHMS(t, "12:00:00"), mustHMS(t, "12:00:00")))
	assert.Equal(t, uint32(3600), DurationS(mustHMS(t, "08:00:00"), mustHMS(t, "09:00:00")))
}
