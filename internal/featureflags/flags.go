// Package featureflags gates optional features from a FEATURE_FLAGS string
// such as "ai_assist=on,ai_summarize=25%".
package featureflags

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
)

// Known flags.
const (
	// AIAssist gates the /api/ai routes.
	AIAssist = "ai_assist"
)

type rule struct {
	raw     string
	enabled bool
	// percent is set for rollout rules ("25%"); -1 otherwise.
	percent int
}

// Set is an immutable collection of parsed flag rules.
type Set struct {
	rules map[string]rule
}

// Parse builds a Set from comma-separated name=value pairs. Values are on/off
// (true/false, 1/0) or a rollout percentage. Malformed pairs are skipped and
// reported in the returned slice.
func Parse(raw string) (*Set, []string) {
	s := &Set{rules: make(map[string]rule)}
	var skipped []string

	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value, ok := strings.Cut(pair, "=")
		name, value = normalize(name), normalize(value)
		if !ok || name == "" || value == "" {
			skipped = append(skipped, pair)
			continue
		}
		r, ok := parseRule(value)
		if !ok {
			skipped = append(skipped, pair)
			continue
		}
		s.rules[name] = r
	}
	return s, skipped
}

func parseRule(value string) (rule, bool) {
	switch value {
	case "on", "true", "1":
		return rule{raw: value, enabled: true, percent: -1}, true
	case "off", "false", "0":
		return rule{raw: value, percent: -1}, true
	}
	if pct, found := strings.CutSuffix(value, "%"); found {
		n, err := strconv.Atoi(pct)
		if err != nil || n < 0 || n > 100 {
			return rule{}, false
		}
		return rule{raw: value, percent: n}, true
	}
	return rule{}, false
}

// Enabled reports whether name is on for userID. Unknown flags are off.
// Rollout rules bucket users deterministically; anonymous callers (userID 0)
// only see rollouts at 100%.
func (s *Set) Enabled(name string, userID uint) bool {
	if s == nil {
		return false
	}
	r, ok := s.rules[normalize(name)]
	if !ok {
		return false
	}
	if r.percent < 0 {
		return r.enabled
	}
	switch {
	case r.percent == 0:
		return false
	case r.percent == 100:
		return true
	case userID == 0:
		return false
	}
	return bucket(name, userID) < r.percent
}

// Names returns the configured flag names in sorted order.
func (s *Set) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.rules))
	for name := range s.rules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Evaluate returns every configured flag's state for userID.
func (s *Set) Evaluate(userID uint) map[string]bool {
	if s == nil {
		return map[string]bool{}
	}
	out := make(map[string]bool, len(s.rules))
	for name := range s.rules {
		out[name] = s.Enabled(name, userID)
	}
	return out
}

// String renders the set back into FEATURE_FLAGS form.
func (s *Set) String() string {
	names := s.Names()
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+s.rules[name].raw)
	}
	return strings.Join(parts, ",")
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func bucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = fmt.Fprintf(h, "%s:%d", normalize(name), userID)
	return int(h.Sum32() % 100)
}
