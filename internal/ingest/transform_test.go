package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDateFormats(t *testing.T) {
	want := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2025-03-10", "03/10/2025", "2025/03/10", " 2025-03-10 "} {
		got, err := ParseDate(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseDate("10.03.2025")
	assert.Error(t, err)
	_, err = ParseDate("")
	assert.Error(t, err)
}

func TestParseCount(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"1234", 1234, true},
		{"1,234,567", 1234567, true},
		{"1234.0", 1234, true},
		{"", 0, true},
		{" 42 ", 42, true},
		{"-5", 0, false},
		{"abc", 0, false},
	}
	for _, c := range cases {
		got, err := ParseCount(c.in)
		if !c.ok {
			assert.Error(t, err, c.in)
			continue
		}
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}
}

func TestParseMoney(t *testing.T) {
	got, err := ParseMoney("$1,234.56")
	require.NoError(t, err)
	assert.Equal(t, 1234.56, got)

	got, err = ParseMoney("")
	require.NoError(t, err)
	assert.Zero(t, got)

	_, err = ParseMoney("-$5")
	assert.Error(t, err)
}

func TestCleanString(t *testing.T) {
	assert.Equal(t, "Spring Launch", CleanString("  Spring   Launch\t"))
	assert.Equal(t, "", CleanString("   "))
}

func TestNextFireTime(t *testing.T) {
	now := time.Date(2025, 3, 10, 5, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC), nextFireTime(now, 6))

	// Already past today's hour: tomorrow.
	now = time.Date(2025, 3, 10, 7, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 11, 6, 0, 0, 0, time.UTC), nextFireTime(now, 6))

	// Exactly at the hour fires the next day, not immediately again.
	now = time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 11, 6, 0, 0, 0, time.UTC), nextFireTime(now, 6))
}
