// Package zones maps free-text vendor and customer locations onto the closed set
// of delivery zones the fee table is keyed by.
package zones

import (
	"fmt"
	"strings"
)

// Zone is a canonical delivery zone name.
type Zone string

const (
	Eziobodo Zone = "Eziobodo"
	Umuchima Zone = "Umuchima"
	BackGate Zone = "Back gate"
)

func (z Zone) String() string { return string(z) }

// Rule binds a zone to the lowercase aliases that identify it inside free text.
type Rule struct {
	Zone    Zone
	Aliases []string
}

// DefaultRules is the campus zone list, in match priority order.
var DefaultRules = []Rule{
	{Zone: Eziobodo, Aliases: []string{"eziobodo", "ezi obodo", "ezi-obodo"}},
	{Zone: Umuchima, Aliases: []string{"umuchima", "umu chima", "umu-chima"}},
	{Zone: BackGate, Aliases: []string{"back gate", "back-gate", "backgate"}},
}

// Normalizer resolves locations against an ordered rule list. It is immutable and
// safe for concurrent use.
type Normalizer struct {
	rules    []Rule
	fallback Zone
}

var builtin = mustNormalizer(DefaultRules, Eziobodo)

// Default returns the normalizer built from DefaultRules with Eziobodo as fallback.
func Default() *Normalizer {
	return builtin
}

// NewNormalizer validates the rules and copies them. The fallback must be one of the rule zones.
func NewNormalizer(rules []Rule, fallback Zone) (*Normalizer, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("at least one zone rule required")
	}
	seen := make(map[Zone]struct{}, len(rules))
	copied := make([]Rule, 0, len(rules))
	for _, rule := range rules {
		if strings.TrimSpace(string(rule.Zone)) == "" {
			return nil, fmt.Errorf("zone name required")
		}
		if _, dup := seen[rule.Zone]; dup {
			return nil, fmt.Errorf("duplicate zone %q", rule.Zone)
		}
		seen[rule.Zone] = struct{}{}

		aliases := make([]string, 0, len(rule.Aliases)+1)
		aliases = append(aliases, canonicalize(string(rule.Zone)))
		for _, alias := range rule.Aliases {
			if a := canonicalize(alias); a != "" {
				aliases = append(aliases, a)
			}
		}
		copied = append(copied, Rule{Zone: rule.Zone, Aliases: aliases})
	}
	if _, ok := seen[fallback]; !ok {
		return nil, fmt.Errorf("default zone %q is not in the rule set", fallback)
	}
	return &Normalizer{rules: copied, fallback: fallback}, nil
}

// WithDefault returns a copy of n that falls back to the named zone.
func (n *Normalizer) WithDefault(name string) (*Normalizer, error) {
	zone, ok := n.Parse(name)
	if !ok {
		return nil, fmt.Errorf("unknown default zone %q", name)
	}
	return &Normalizer{rules: n.rules, fallback: zone}, nil
}

// Normalize never fails: the first rule with an alias contained in raw wins,
// anything else (including empty input) maps to the fallback zone.
func (n *Normalizer) Normalize(raw string) Zone {
	text := canonicalize(raw)
	if text == "" {
		return n.fallback
	}
	for _, rule := range n.rules {
		for _, alias := range rule.Aliases {
			if strings.Contains(text, alias) {
				return rule.Zone
			}
		}
	}
	return n.fallback
}

// Parse resolves a canonical zone name case-insensitively. Unlike Normalize it
// reports unknown names instead of defaulting.
func (n *Normalizer) Parse(name string) (Zone, bool) {
	text := canonicalize(name)
	for _, rule := range n.rules {
		if canonicalize(string(rule.Zone)) == text {
			return rule.Zone, true
		}
	}
	return "", false
}

// Fallback returns the zone used when nothing matches.
func (n *Normalizer) Fallback() Zone {
	return n.fallback
}

// Zones lists the closed zone set in priority order.
func (n *Normalizer) Zones() []Zone {
	out := make([]Zone, len(n.rules))
	for i, rule := range n.rules {
		out[i] = rule.Zone
	}
	return out
}

// Contains reports whether z belongs to the closed set.
func (n *Normalizer) Contains(z Zone) bool {
	for _, rule := range n.rules {
		if rule.Zone == z {
			return true
		}
	}
	return false
}

func canonicalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func mustNormalizer(rules []Rule, fallback Zone) *Normalizer {
	n, err := NewNormalizer(rules, fallback)
	if err != nil {
		panic(err)
	}
	return n
}
