// Package featureflags gates optional behavior through FEATURE_FLAGS.
package featureflags

import (
	"hash/fnv"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Known flags.
const (
	WeeklyDigest      = "weekly_digest"
	FeedbackReminders = "feedback_reminders"
)

// Defaults apply to flags absent from the configured list.
var Defaults = map[string]string{
	WeeklyDigest:      "on",
	FeedbackReminders: "on",
}

// rule is a parsed flag value: a share of users from 0 to 100. "on" is 100,
// "off" and anything unreadable is 0.
type rule struct {
	raw     string
	percent int
}

func parseRule(raw string) rule {
	r := rule{raw: raw}
	switch raw {
	case "on", "true", "1":
		r.percent = 100
	case "off", "false", "0":
	default:
		if n, ok := strings.CutSuffix(raw, "%"); ok {
			if pct, err := strconv.Atoi(n); err == nil {
				r.percent = min(max(pct, 0), 100)
			}
		}
	}
	return r
}

// Manager evaluates flags from a comma-separated key=value list layered over
// Defaults, e.g. "weekly_digest=25%,feedback_reminders=off".
type Manager struct {
	rules map[string]rule
}

// NewManager parses raw. Malformed pairs are ignored.
func NewManager(raw string) *Manager {
	rules := make(map[string]rule, len(Defaults))
	for name, value := range Defaults {
		rules[name] = parseRule(value)
	}
	for _, pair := range strings.Split(raw, ",") {
		name, value, ok := strings.Cut(pair, "=")
		name, value = normalize(name), normalize(value)
		if ok && name != "" && value != "" {
			rules[name] = parseRule(value)
		}
	}
	return &Manager{rules: rules}
}

// Enabled reports whether name is on for userID. Partial rollouts hash the
// flag and user so a user keeps the same answer; they are off for userID 0.
func (m *Manager) Enabled(name string, userID uint) bool {
	if m == nil {
		return false
	}
	name = normalize(name)
	r, ok := m.rules[name]
	switch {
	case !ok || r.percent == 0:
		return false
	case r.percent == 100:
		return true
	case userID == 0:
		return false
	}
	return bucket(name, userID) < r.percent
}

// Names lists configured flags in order.
func (m *Manager) Names() []string {
	return slices.Sorted(maps.Keys(m.rules))
}

// Raw returns the effective flag values as configured.
func (m *Manager) Raw() map[string]string {
	out := make(map[string]string, len(m.rules))
	for name, r := range m.rules {
		out[name] = r.raw
	}
	return out
}

// Snapshot evaluates every flag for one user.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	out := make(map[string]bool, len(m.rules))
	for name := range m.rules {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func bucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	_, _ = h.Write([]byte{':'})
	_, _ = h.Write(strconv.AppendUint(nil, uint64(userID), 10))
	return int(h.Sum32() % 100)
}
