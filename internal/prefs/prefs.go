// Package prefs holds the user's display and notification choices.
package prefs

import (
	"fmt"
	"math"

	"github.com/pcdogyu/trader-clock/internal/alerts"
	"github.com/pcdogyu/trader-clock/internal/market"
	"github.com/pcdogyu/trader-clock/internal/notify"
)

const (
	ThemeSystem = "system"
	ThemeLight  = "light"
	ThemeDark   = "dark"
)

type Notifications struct {
	Enabled      bool `json:"enabled"`
	SessionStart bool `json:"sessionStart"`
	SessionEnd   bool `json:"sessionEnd"`
	DailyCandle  bool `json:"dailyCandle"`
	CustomAlerts bool `json:"customAlerts"`
}

// Preferences is stored as one JSON blob. Visibility maps are keyed by zone, session or
// overlap key; a missing key means visible.
type Preferences struct {
	Theme         string          `json:"theme"`
	Timezones     map[string]bool `json:"timezones"`
	Sessions      map[string]bool `json:"sessions"`
	AlertSound    string          `json:"alertSound"`
	AlertVolume   float64         `json:"alertVolume"`
	Notifications Notifications   `json:"notifications"`
}

func Default() Preferences {
	p := Preferences{
		Theme:       ThemeSystem,
		Timezones:   make(map[string]bool),
		Sessions:    make(map[string]bool),
		AlertSound:  "bell",
		AlertVolume: 0.8,
		Notifications: Notifications{
			Enabled:      true,
			SessionStart: true,
			SessionEnd:   true,
			DailyCandle:  true,
			CustomAlerts: true,
		},
	}
	for _, z := range market.DefaultZones() {
		p.Timezones[z.Key] = true
	}
	for _, s := range market.DefaultSessions() {
		p.Sessions[s.Key] = true
	}
	for _, o := range market.DefaultOverlaps() {
		p.Sessions[o.Key] = true
	}
	return p
}

func (p Preferences) Clone() Preferences {
	out := p
	out.Timezones = cloneFlags(p.Timezones)
	out.Sessions = cloneFlags(p.Sessions)
	return out
}

func cloneFlags(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (p Preferences) Validate() error {
	switch p.Theme {
	case ThemeSystem, ThemeLight, ThemeDark:
	default:
		return fmt.Errorf("theme must be system, light or dark, got %q", p.Theme)
	}
	if !alerts.IsSound(p.AlertSound) {
		return fmt.Errorf("unknown alert sound %q", p.AlertSound)
	}
	if math.IsNaN(p.AlertVolume) || p.AlertVolume < 0 || p.AlertVolume > 1 {
		return fmt.Errorf("alert volume must be within [0,1], got %v", p.AlertVolume)
	}
	return nil
}

// normalize repairs a stored blob field by field so one bad value does not discard the rest.
func (p *Preferences) normalize() {
	def := Default()
	switch p.Theme {
	case ThemeSystem, ThemeLight, ThemeDark:
	default:
		p.Theme = def.Theme
	}
	if !alerts.IsSound(p.AlertSound) {
		p.AlertSound = def.AlertSound
	}
	if math.IsNaN(p.AlertVolume) || p.AlertVolume < 0 || p.AlertVolume > 1 {
		p.AlertVolume = def.AlertVolume
	}
	if p.Timezones == nil {
		p.Timezones = make(map[string]bool)
	}
	if p.Sessions == nil {
		p.Sessions = make(map[string]bool)
	}
}

func visible(m map[string]bool, key string) bool {
	v, ok := m[key]
	return !ok || v
}

func (p Preferences) ZoneVisible(key string) bool    { return visible(p.Timezones, key) }
func (p Preferences) SessionVisible(key string) bool { return visible(p.Sessions, key) }

// Apply hides the slots the user switched off. Each flag only affects its own slot.
func (p Preferences) Apply(st market.DisplayState) market.DisplayState {
	out := st
	out.Clocks = make([]market.ClockSlot, 0, len(st.Clocks))
	for _, c := range st.Clocks {
		if p.ZoneVisible(c.Key) {
			out.Clocks = append(out.Clocks, c)
		}
	}
	out.Sessions = make([]market.SessionSlot, 0, len(st.Sessions))
	for _, s := range st.Sessions {
		if p.SessionVisible(s.Key) {
			out.Sessions = append(out.Sessions, s)
		}
	}
	out.Overlaps = make([]market.OverlapSlot, 0, len(st.Overlaps))
	for _, o := range st.Overlaps {
		if p.SessionVisible(o.Key) {
			out.Overlaps = append(out.Overlaps, o)
		}
	}
	return out
}

// Allows reports whether events of kind should be delivered.
func (p Preferences) Allows(kind notify.Kind) bool {
	n := p.Notifications
	if !n.Enabled {
		return false
	}
	switch kind {
	case notify.KindSessionStart:
		return n.SessionStart
	case notify.KindSessionEnd:
		return n.SessionEnd
	case notify.KindDailyCandle:
		return n.DailyCandle
	case notify.KindCustomAlert:
		return n.CustomAlerts
	}
	return false
}

func (p Preferences) DefaultSound() string { return p.AlertSound }
