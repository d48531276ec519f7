package market

import "fmt"

// Zone is a named wall clock expressed as whole hours from UTC.
// DSTRule names the IANA location whose daylight-saving calendar switches the zone
// from StandardHours to DaylightHours; empty means the zone never adjusts.
type Zone struct {
	Key           string `yaml:"key" json:"key"`
	Name          string `yaml:"name" json:"name"`
	StandardHours int    `yaml:"standard_hours" json:"standard_hours"`
	DaylightHours int    `yaml:"daylight_hours" json:"daylight_hours"`
	DSTRule       string `yaml:"dst_rule" json:"dst_rule,omitempty"`
}

// Session is a trading window in UTC hours. End <= Start crosses midnight.
type Session struct {
	Key   string `yaml:"key" json:"key"`
	Name  string `yaml:"name" json:"name"`
	Start int    `yaml:"start" json:"start"`
	End   int    `yaml:"end" json:"end"`
}

// Overlap names two sessions that are reported together when both are active.
type Overlap struct {
	Key  string `yaml:"key" json:"key"`
	Name string `yaml:"name" json:"name"`
	A    string `yaml:"a" json:"a"`
	B    string `yaml:"b" json:"b"`
}

// Settlement is the daily candle boundary: midnight in Zone, reopening ReopenDelay later.
type Settlement struct {
	Zone string `yaml:"zone" json:"zone"`
}

// Config is the immutable set of tables an Engine works from.
type Config struct {
	Zones      []Zone
	Sessions   []Session
	Overlaps   []Overlap
	Settlement Settlement
}

const (
	ZoneNigeria = "nigeria"
	ZoneServer  = "server"
	ZoneNewYork = "newyork"
)

// DefaultZones returns the stock clock table.
func DefaultZones() []Zone {
	return []Zone{
		{Key: ZoneNigeria, Name: "Nigeria", StandardHours: 1, DaylightHours: 1},
		{Key: ZoneServer, Name: "Server", StandardHours: 2, DaylightHours: 3, DSTRule: "America/New_York"},
		{Key: ZoneNewYork, Name: "New York", StandardHours: -5, DaylightHours: -4, DSTRule: "America/New_York"},
	}
}

// DefaultSessions returns the four major FX sessions in UTC.
func DefaultSessions() []Session {
	return []Session{
		{Key: "sydney", Name: "Sydney", Start: 0, End: 9},
		{Key: "tokyo", Name: "Tokyo", Start: 0, End: 9},
		{Key: "london", Name: "London", Start: 8, End: 17},
		{Key: "newyork", Name: "New York", Start: 13, End: 22},
	}
}

func DefaultOverlaps() []Overlap {
	return []Overlap{{Key: "london_newyork", Name: "London/New York", A: "london", B: "newyork"}}
}

func DefaultConfig() Config {
	return Config{
		Zones:      DefaultZones(),
		Sessions:   DefaultSessions(),
		Overlaps:   DefaultOverlaps(),
		Settlement: Settlement{Zone: ZoneServer},
	}
}

// Validate checks table invariants: unique keys, hours in range and resolvable references.
func (c Config) Validate() error {
	if len(c.Zones) == 0 {
		return fmt.Errorf("at least one zone is required")
	}
	zones := make(map[string]bool, len(c.Zones))
	for _, z := range c.Zones {
		if z.Key == "" {
			return fmt.Errorf("zone key is required")
		}
		if zones[z.Key] {
			return fmt.Errorf("duplicate zone %q", z.Key)
		}
		if z.StandardHours < -12 || z.StandardHours > 14 || z.DaylightHours < -12 || z.DaylightHours > 14 {
			return fmt.Errorf("zone %q: offset out of range", z.Key)
		}
		zones[z.Key] = true
	}

	sessions := make(map[string]bool, len(c.Sessions))
	for _, s := range c.Sessions {
		if s.Key == "" {
			return fmt.Errorf("session key is required")
		}
		if sessions[s.Key] {
			return fmt.Errorf("duplicate session %q", s.Key)
		}
		if s.Start < 0 || s.Start > 23 || s.End < 0 || s.End > 23 {
			return fmt.Errorf("session %q: hours must be in [0,24)", s.Key)
		}
		sessions[s.Key] = true
	}

	for _, o := range c.Overlaps {
		if o.Key == "" {
			return fmt.Errorf("overlap key is required")
		}
		if !sessions[o.A] || !sessions[o.B] {
			return fmt.Errorf("overlap %q: unknown session %q/%q", o.Key, o.A, o.B)
		}
	}

	if !zones[c.Settlement.Zone] {
		return fmt.Errorf("settlement zone %q is not configured", c.Settlement.Zone)
	}
	return nil
}
