package alerts

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func knownZones(k string) bool {
	return k == "nigeria" || k == "server" || k == "newyork"
}

func fixedOffsets(zone string, _ time.Time) (int, bool) {
	switch zone {
	case "nigeria":
		return 1, true
	case "server":
		return 3, true
	case "newyork":
		return -4, true
	}
	return 0, false
}

func TestNewRuleDefaultsAndSanitizes(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	r, err := NewRule(Input{
		Time:     "9:05",
		Timezone: "Nigeria",
		Message:  "<b>buy</b> EUR & USD<img src=x onerror=alert(1)>",
	}, now, knownZones)
	require.NoError(t, err)

	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "09:05", r.Time)
	assert.Equal(t, "nigeria", r.Timezone)
	assert.Equal(t, "general", r.Category)
	assert.Equal(t, "medium", r.Priority)
	assert.Equal(t, "bell", r.Sound)
	assert.Equal(t, "buy EUR & USD", r.Message)
	assert.Equal(t, now, r.CreatedAt)
	assert.False(t, r.Triggered)
}

func TestNewRuleRejects(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name string
		in   Input
		want error
	}{
		{"bad time", Input{Time: "25:00", Timezone: "server"}, ErrInvalidTime},
		{"no minutes", Input{Time: "9", Timezone: "server"}, ErrInvalidTime},
		{"one digit minute", Input{Time: "9:5", Timezone: "server"}, ErrInvalidTime},
		{"unknown zone", Input{Time: "09:00", Timezone: "tokyo"}, ErrUnknownZone},
		{"priority", Input{Time: "09:00", Timezone: "server", Priority: "urgent"}, ErrInvalidPriority},
		{"sound", Input{Time: "09:00", Timezone: "server", Sound: "horn"}, ErrInvalidSound},
		{"too long", Input{Time: "09:00", Timezone: "server", Message: strings.Repeat("x", MaxMessageLen+1)}, ErrMessageTooLong},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewRule(tc.in, now, knownZones)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestDueUsesZoneWallClock(t *testing.T) {
	r := Rule{ID: "a", Time: "14:30", Timezone: "newyork"}

	// 18:30 UTC is 14:30 in New York at -4.
	assert.True(t, Due(r, time.Date(2026, 6, 1, 18, 30, 45, 0, time.UTC), fixedOffsets))
	assert.False(t, Due(r, time.Date(2026, 6, 1, 18, 31, 0, 0, time.UTC), fixedOffsets))
	assert.False(t, Due(r, time.Date(2026, 6, 1, 14, 30, 0, 0, time.UTC), fixedOffsets))

	r.Timezone = "mars"
	assert.False(t, Due(r, time.Date(2026, 6, 1, 18, 30, 0, 0, time.UTC), fixedOffsets))
}

func TestRepeatFiresOncePerMinute(t *testing.T) {
	r := Rule{ID: "a", Time: "09:00", Timezone: "server", Repeat: true, Message: "open", Category: "forex", Priority: "high"}
	first := time.Date(2026, 6, 1, 6, 0, 1, 0, time.UTC)

	require.True(t, Due(r, first, fixedOffsets))
	r, f := Fire(r, first)
	assert.False(t, r.Triggered)
	assert.Equal(t, "Trading Alert", f.Title)
	assert.Equal(t, "open (forex - high priority)", f.Body)

	assert.False(t, Due(r, first.Add(30*time.Second), fixedOffsets))
	assert.True(t, Due(r, first.Add(24*time.Hour), fixedOffsets))
}

func TestFireNonRepeatTriggers(t *testing.T) {
	r, _ := Fire(Rule{ID: "a", Time: "09:00", Timezone: "server"}, time.Now())
	assert.True(t, r.Triggered)
	assert.False(t, Due(r, time.Now(), fixedOffsets))
}

func TestFilterMatch(t *testing.T) {
	r := Rule{Category: "Forex", Priority: "high"}
	assert.True(t, Filter{}.Match(r))
	assert.True(t, Filter{Category: "all", Priority: "all"}.Match(r))
	assert.True(t, Filter{Category: "forex"}.Match(r))
	assert.False(t, Filter{Priority: "low"}.Match(r))
}

func TestCheckReturnsOnlyDue(t *testing.T) {
	now := time.Date(2026, 6, 1, 7, 15, 0, 0, time.UTC)
	rules := []Rule{
		{ID: "a", Time: "10:15", Timezone: "server"},
		{ID: "b", Time: "08:15", Timezone: "nigeria", Repeat: true},
		{ID: "c", Time: "07:15", Timezone: "nigeria"},
	}
	updated, fired := Check(now, rules, fixedOffsets)
	require.Len(t, updated, 2)
	require.Len(t, fired, 2)
	assert.Equal(t, "a", updated[0].ID)
	assert.True(t, updated[0].Triggered)
	assert.Equal(t, "b", updated[1].ID)
	assert.False(t, updated[1].Triggered)
	assert.Equal(t, now, *fired[1].Rule.LastFiredAt)
}
