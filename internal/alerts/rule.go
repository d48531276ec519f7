package alerts

import (
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

var (
	ErrInvalidTime     = errors.New("alert time must be HH:MM")
	ErrUnknownZone     = errors.New("unknown alert timezone")
	ErrInvalidPriority = errors.New("priority must be low, medium or high")
	ErrInvalidSound    = errors.New("unknown alert sound")
	ErrMessageTooLong  = errors.New("alert message is too long")
	ErrNotFound        = errors.New("alert not found")
)

// IsValidation reports whether err was caused by bad user input.
func IsValidation(err error) bool {
	for _, e := range []error{ErrInvalidTime, ErrUnknownZone, ErrInvalidPriority, ErrInvalidSound, ErrMessageTooLong} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

const MaxMessageLen = 280

// Sounds are the selectable alert tones, in menu order.
var Sounds = []string{"bell", "chime", "beep", "ding"}

func IsSound(s string) bool {
	for _, v := range Sounds {
		if v == s {
			return true
		}
	}
	return false
}

var priorities = map[string]bool{"low": true, "medium": true, "high": true}

// Rule is a user-defined wall-clock alert in one of the configured zones.
type Rule struct {
	ID          string     `json:"id"`
	Time        string     `json:"time"`
	Timezone    string     `json:"timezone"`
	Category    string     `json:"category"`
	Priority    string     `json:"priority"`
	Sound       string     `json:"sound"`
	Message     string     `json:"message"`
	Repeat      bool       `json:"repeat"`
	Triggered   bool       `json:"triggered"`
	CreatedAt   time.Time  `json:"created_at"`
	LastFiredAt *time.Time `json:"last_fired_at,omitempty"`
}

// Input is the alert form payload.
type Input struct {
	Time     string `json:"time"`
	Timezone string `json:"timezone"`
	Category string `json:"category"`
	Priority string `json:"priority"`
	Sound    string `json:"sound"`
	Message  string `json:"message"`
	Repeat   bool   `json:"repeat"`
}

var textPolicy = bluemonday.StrictPolicy()

// NewRule validates a form payload and turns it into a rule. knownZone reports whether
// a timezone key is configured.
func NewRule(in Input, now time.Time, knownZone func(string) bool) (Rule, error) {
	hhmm, err := NormalizeHHMM(in.Time)
	if err != nil {
		return Rule{}, err
	}

	zone := strings.ToLower(strings.TrimSpace(in.Timezone))
	if knownZone == nil || !knownZone(zone) {
		return Rule{}, fmt.Errorf("%w: %q", ErrUnknownZone, in.Timezone)
	}

	priority := strings.ToLower(strings.TrimSpace(in.Priority))
	if priority == "" {
		priority = "medium"
	}
	if !priorities[priority] {
		return Rule{}, ErrInvalidPriority
	}

	sound := strings.ToLower(strings.TrimSpace(in.Sound))
	if sound == "" {
		sound = Sounds[0]
	}
	if !IsSound(sound) {
		return Rule{}, fmt.Errorf("%w: %q", ErrInvalidSound, in.Sound)
	}

	category := PlainText(in.Category)
	if category == "" {
		category = "general"
	}

	msg := PlainText(in.Message)
	if utf8.RuneCountInString(msg) > MaxMessageLen {
		return Rule{}, ErrMessageTooLong
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Rule{}, fmt.Errorf("alert id: %w", err)
	}

	return Rule{
		ID:        id.String(),
		Time:      hhmm,
		Timezone:  zone,
		Category:  category,
		Priority:  priority,
		Sound:     sound,
		Message:   msg,
		Repeat:    in.Repeat,
		CreatedAt: now.UTC(),
	}, nil
}

// PlainText strips markup so user text can never be rendered as HTML.
func PlainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s)))
}

// NormalizeHHMM accepts "H:MM" or "HH:MM" and returns zero-padded "HH:MM".
func NormalizeHHMM(s string) (string, error) {
	h, m, err := parseHHMM(s)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%02d:%02d", h, m), nil
}

func parseHHMM(s string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 || len(parts[1]) != 2 {
		return 0, 0, ErrInvalidTime
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, ErrInvalidTime
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, ErrInvalidTime
	}
	return h, m, nil
}

// OffsetFunc resolves a zone key to whole hours from UTC at now.
type OffsetFunc func(zone string, now time.Time) (int, bool)

// Due reports whether r should fire at now: the wall clock in the rule's zone shows the
// rule's HH:MM and the rule has not already fired during this minute.
func Due(r Rule, now time.Time, offset OffsetFunc) bool {
	if r.Triggered {
		return false
	}
	off, ok := offset(r.Timezone, now)
	if !ok {
		return false
	}
	h, m, err := parseHHMM(r.Time)
	if err != nil {
		return false
	}
	local := now.UTC().Add(time.Duration(off) * time.Hour)
	if local.Hour() != h || local.Minute() != m {
		return false
	}
	if r.LastFiredAt != nil && sameMinute(*r.LastFiredAt, now) {
		return false
	}
	return true
}

func sameMinute(a, b time.Time) bool {
	return a.Unix()/60 == b.Unix()/60
}

// Fired is the notification payload of a rule that came due.
type Fired struct {
	Rule  Rule
	Title string
	Body  string
	Sound string
	At    time.Time
}

// Fire marks r as fired at now. Non-repeating rules become triggered.
func Fire(r Rule, now time.Time) (Rule, Fired) {
	at := now.UTC()
	r.LastFiredAt = &at
	if !r.Repeat {
		r.Triggered = true
	}
	body := fmt.Sprintf("%s (%s - %s priority)", r.Message, r.Category, r.Priority)
	return r, Fired{Rule: r, Title: "Trading Alert", Body: body, Sound: r.Sound, At: at}
}

// Check returns the rules due at now, already marked fired, alongside their payloads.
func Check(now time.Time, rules []Rule, offset OffsetFunc) ([]Rule, []Fired) {
	var updated []Rule
	var fired []Fired
	for _, r := range rules {
		if !Due(r, now, offset) {
			continue
		}
		u, f := Fire(r, now)
		updated = append(updated, u)
		fired = append(fired, f)
	}
	return updated, fired
}

// Filter narrows the alert list. Empty or "all" matches everything.
type Filter struct {
	Category string
	Priority string
}

func (f Filter) Match(r Rule) bool {
	if f.Category != "" && f.Category != "all" && !strings.EqualFold(f.Category, r.Category) {
		return false
	}
	if f.Priority != "" && f.Priority != "all" && !strings.EqualFold(f.Priority, r.Priority) {
		return false
	}
	return true
}
