package prefs

// Patch is a partial update from the settings panel.
// Fields are pointers so "not set" can be distinguished from zero values.
// Visibility maps are merged key by key.
type Patch struct {
	Theme       *string         `json:"theme,omitempty"`
	Timezones   map[string]bool `json:"timezones,omitempty"`
	Sessions    map[string]bool `json:"sessions,omitempty"`
	AlertSound  *string         `json:"alertSound,omitempty"`
	AlertVolume *float64        `json:"alertVolume,omitempty"`

	Notifications *NotificationsPatch `json:"notifications,omitempty"`
}

type NotificationsPatch struct {
	Enabled      *bool `json:"enabled,omitempty"`
	SessionStart *bool `json:"sessionStart,omitempty"`
	SessionEnd   *bool `json:"sessionEnd,omitempty"`
	DailyCandle  *bool `json:"dailyCandle,omitempty"`
	CustomAlerts *bool `json:"customAlerts,omitempty"`
}

func (p Patch) Apply(dst *Preferences) {
	if p.Theme != nil {
		dst.Theme = *p.Theme
	}
	for k, v := range p.Timezones {
		dst.Timezones[k] = v
	}
	for k, v := range p.Sessions {
		dst.Sessions[k] = v
	}
	if p.AlertSound != nil {
		dst.AlertSound = *p.AlertSound
	}
	if p.AlertVolume != nil {
		dst.AlertVolume = *p.AlertVolume
	}

	n := p.Notifications
	if n == nil {
		return
	}
	if n.Enabled != nil {
		dst.Notifications.Enabled = *n.Enabled
	}
	if n.SessionStart != nil {
		dst.Notifications.SessionStart = *n.SessionStart
	}
	if n.SessionEnd != nil {
		dst.Notifications.SessionEnd = *n.SessionEnd
	}
	if n.DailyCandle != nil {
		dst.Notifications.DailyCandle = *n.DailyCandle
	}
	if n.CustomAlerts != nil {
		dst.Notifications.CustomAlerts = *n.CustomAlerts
	}
}
