package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// RegionProfile selects the plate grammar used by the validator.
// It is chosen once at startup and never changes for the life of the process.
type RegionProfile int

const (
	// ProfileUSA accepts 1 to 7 letters or digits.
	ProfileUSA RegionProfile = iota
	// ProfileEU accepts 1-3 letters, a dash, 1-2 letters, a dash and 1-4 digits.
	ProfileEU
	// ProfileIN accepts 2 letters, 2 digits, 2 letters and 4 digits.
	ProfileIN
)

// Profiles lists every supported region profile in declaration order.
func Profiles() []RegionProfile {
	return []RegionProfile{ProfileUSA, ProfileEU, ProfileIN}
}

// String returns the profile name.
func (p RegionProfile) String() string {
	switch p {
	case ProfileUSA:
		return "USA"
	case ProfileEU:
		return "EU"
	case ProfileIN:
		return "IN"
	default:
		return "Unknown"
	}
}

// Tag returns the single-letter configuration tag (A, B or C).
func (p RegionProfile) Tag() string {
	switch p {
	case ProfileUSA:
		return "A"
	case ProfileEU:
		return "B"
	case ProfileIN:
		return "C"
	default:
		return ""
	}
}

// Valid reports whether p is a known profile.
func (p RegionProfile) Valid() bool {
	return p >= ProfileUSA && p <= ProfileIN
}

// ParseRegionProfile parses a profile from its name ("USA", "EU", "IN"),
// its tag ("A", "B", "C") or its menu number ("1", "2", "3"). Matching is
// case-insensitive.
func ParseRegionProfile(s string) (RegionProfile, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	for _, p := range Profiles() {
		if v == p.String() || v == p.Tag() || v == strconv.Itoa(int(p)+1) {
			return p, nil
		}
	}
	if v == "INDIA" {
		return ProfileIN, nil
	}
	return 0, fmt.Errorf("%w: unknown region profile %q (want USA, EU or IN)", ErrInvalidConfig, s)
}

// MarshalText implements encoding.TextMarshaler.
func (p RegionProfile) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid region profile %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *RegionProfile) UnmarshalText(b []byte) error {
	v, err := ParseRegionProfile(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Grammar returns the plate grammar registered for the profile.
// Unknown profiles get a grammar that matches nothing.
func (p RegionProfile) Grammar() Grammar {
	switch p {
	case ProfileUSA:
		return usaGrammar
	case ProfileEU:
		return euGrammar
	case ProfileIN:
		return inGrammar
	default:
		return Grammar{name: "none"}
	}
}

// Validate reports whether text fully conforms to the grammar of profile.
// Text is expected to be normalized already; empty text is never valid.
func Validate(text string, profile RegionProfile) bool {
	if text == "" || !profile.Valid() {
		return false
	}
	return profile.Grammar().Match(text)
}

type charClass uint8

const (
	classUpper charClass = iota
	classDigit
	classUpperOrDigit
	classLiteral
)

// segment is a run of min..max characters of one class.
type segment struct {
	class   charClass
	literal byte
	min     int
	max     int
}

func (s segment) accepts(c byte) bool {
	switch s.class {
	case classUpper:
		return c >= 'A' && c <= 'Z'
	case classDigit:
		return c >= '0' && c <= '9'
	case classUpperOrDigit:
		return (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
	case classLiteral:
		return c == s.literal
	}
	return false
}

func (s segment) pattern() string {
	var class string
	switch s.class {
	case classUpper:
		class = "[A-Z]"
	case classDigit:
		class = `\d`
	case classUpperOrDigit:
		class = "[A-Z0-9]"
	case classLiteral:
		return strings.Repeat(string(s.literal), s.min)
	}
	if s.min == s.max {
		return fmt.Sprintf("%s{%d}", class, s.min)
	}
	return fmt.Sprintf("%s{%d,%d}", class, s.min, s.max)
}

// Grammar is a structured plate pattern: a fixed sequence of character runs.
// Only ASCII upper-case letters, ASCII digits and literal separators are ever
// accepted, so any string matching a Grammar is free of recognizer artifacts.
type Grammar struct {
	name     string
	segments []segment
}

var (
	usaGrammar = Grammar{name: "USA", segments: []segment{
		{class: classUpperOrDigit, min: 1, max: 7},
	}}
	euGrammar = Grammar{name: "EU", segments: []segment{
		{class: classUpper, min: 1, max: 3},
		{class: classLiteral, literal: '-', min: 1, max: 1},
		{class: classUpper, min: 1, max: 2},
		{class: classLiteral, literal: '-', min: 1, max: 1},
		{class: classDigit, min: 1, max: 4},
	}}
	inGrammar = Grammar{name: "IN", segments: []segment{
		{class: classUpper, min: 2, max: 2},
		{class: classDigit, min: 2, max: 2},
		{class: classUpper, min: 2, max: 2},
		{class: classDigit, min: 4, max: 4},
	}}
)

// Match reports whether the whole of s conforms to the grammar.
func (g Grammar) Match(s string) bool {
	if len(g.segments) == 0 {
		return false
	}
	return g.matchFrom(s, 0, 0)
}

// matchFrom tries every admissible run length for segment i, longest first.
func (g Grammar) matchFrom(s string, i, pos int) bool {
	if i == len(g.segments) {
		return pos == len(s)
	}
	seg := g.segments[i]

	n := 0
	for n < seg.max && pos+n < len(s) && seg.accepts(s[pos+n]) {
		n++
	}
	for k := n; k >= seg.min; k-- {
		if g.matchFrom(s, i+1, pos+k) {
			return true
		}
	}
	return false
}

// Separators returns the literal separator characters the grammar requires.
func (g Grammar) Separators() []rune {
	var out []rune
	seen := make(map[byte]bool)
	for _, s := range g.segments {
		if s.class == classLiteral && !seen[s.literal] {
			seen[s.literal] = true
			out = append(out, rune(s.literal))
		}
	}
	return out
}

// Pattern renders the grammar as an anchored regular expression, for logs and docs.
func (g Grammar) Pattern() string {
	var b strings.Builder
	b.WriteByte('^')
	for _, s := range g.segments {
		b.WriteString(s.pattern())
	}
	b.WriteByte('$')
	return b.String()
}

// String returns the grammar name.
func (g Grammar) String() string {
	return g.name
}
