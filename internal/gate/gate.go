// Package gate implements the action-class risk gate: a deterministic policy
// mapping impact, reversibility and uncertainty scalars to the set of action
// classes an option may declare.
package gate

import (
	"fmt"
	"strings"
)

// Level is an ordinal band derived from a scalar in [0,1].
type Level string

const (
	Low  Level = "LOW"
	Med  Level = "MED"
	High Level = "HIGH"
)

// Banding thresholds. Tertile split; held fixed for the lifetime of the kernel.
const (
	lowUpper = 1.0 / 3.0
	medUpper = 2.0 / 3.0
)

// Band maps x to LOW, MED or HIGH. Values outside [0,1] are clamped first.
func Band(x float64) Level {
	x = clamp01(x)
	switch {
	case x < lowUpper:
		return Low
	case x < medUpper:
		return Med
	default:
		return High
	}
}

func clamp01(x float64) float64 {
	if x != x { // NaN
		return 1
	}
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// Riskiness combines impact and reversibility bands.
//
//	impact\rev  LOW   MED   HIGH
//	LOW         MED   MED   LOW
//	MED         HIGH  MED   MED
//	HIGH        HIGH  HIGH  MED
func Riskiness(impact, reversibility Level) Level {
	switch {
	case impact == High && reversibility == Low:
		return High
	case impact == Low && reversibility == High:
		return Low
	case impact == High && reversibility == Med:
		return High
	case reversibility == Low && impact == Med:
		return High
	default:
		return Med
	}
}

// ActionClass is the boldness tier an option requests.
type ActionClass string

const (
	Probe   ActionClass = "PROBE"
	Limited ActionClass = "LIMITED"
	Commit  ActionClass = "COMMIT"
)

// ParseActionClass accepts the canonical names case-insensitively.
func ParseActionClass(s string) (ActionClass, error) {
	switch ActionClass(strings.ToUpper(strings.TrimSpace(s))) {
	case Probe:
		return Probe, nil
	case Limited:
		return Limited, nil
	case Commit:
		return Commit, nil
	}
	return "", fmt.Errorf("gate: unknown action class %q", s)
}

// UnmarshalText parses an action class at decoding boundaries.
func (c *ActionClass) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*c = ""
		return nil
	}
	v, err := ParseActionClass(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

func (c ActionClass) bit() ClassSet {
	switch c {
	case Probe:
		return 1 << 0
	case Limited:
		return 1 << 1
	case Commit:
		return 1 << 2
	}
	return 0
}

// ClassSet is a set of action classes.
type ClassSet uint8

var allClasses = []ActionClass{Probe, Limited, Commit}

// Classes builds a set from the given members.
func Classes(cs ...ActionClass) ClassSet {
	var s ClassSet
	for _, c := range cs {
		s |= c.bit()
	}
	return s
}

// Has reports whether c is a member. The empty class is never a member.
func (s ClassSet) Has(c ActionClass) bool {
	b := c.bit()
	return b != 0 && s&b != 0
}

// Without returns s with c removed.
func (s ClassSet) Without(c ActionClass) ClassSet { return s &^ c.bit() }

// SubsetOf reports whether every member of s is in o.
func (s ClassSet) SubsetOf(o ClassSet) bool { return s&^o == 0 }

// Members lists the set in PROBE, LIMITED, COMMIT order.
func (s ClassSet) Members() []ActionClass {
	out := make([]ActionClass, 0, 3)
	for _, c := range allClasses {
		if s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

func (s ClassSet) String() string {
	parts := make([]string, 0, 3)
	for _, c := range s.Members() {
		parts = append(parts, string(c))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// Posture adjusts the computed set. A posture may only remove permissions.
type Posture string

const (
	PostureDefault      Posture = "DEFAULT"
	PostureConservative Posture = "CONSERVATIVE"
)

// ParsePosture accepts DEFAULT or CONSERVATIVE; empty means DEFAULT.
func ParsePosture(s string) (Posture, error) {
	switch Posture(strings.ToUpper(strings.TrimSpace(s))) {
	case "", PostureDefault:
		return PostureDefault, nil
	case PostureConservative:
		return PostureConservative, nil
	}
	return "", fmt.Errorf("gate: unknown risk posture %q", s)
}

// UnmarshalText parses a posture at decoding boundaries.
func (p *Posture) UnmarshalText(b []byte) error {
	v, err := ParsePosture(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Allowed returns the permitted action classes for a riskiness and
// uncertainty band under the given posture. Unrecognized bands are treated
// as HIGH.
//
// HIGH risk with LOW uncertainty stops at LIMITED so that the set never grows
// as riskiness increases.
func Allowed(risk, uncertainty Level, posture Posture) ClassSet {
	var s ClassSet
	switch risk {
	case Low:
		s = Classes(Probe, Limited, Commit)
	case Med:
		if uncertainty == Low || uncertainty == Med {
			s = Classes(Probe, Limited)
		} else {
			s = Classes(Probe)
		}
	default:
		if uncertainty == Low {
			s = Classes(Probe, Limited)
		} else {
			s = Classes(Probe)
		}
	}
	if posture == PostureConservative {
		s = s.Without(Commit)
	}
	return s
}
