package domain

import (
	"strings"
	"unicode"
)

// DefaultArtifacts are glyphs the recognizer's character set is known to emit
// on plates where they never appear.
const DefaultArtifacts = "粤"

// Normalizer turns raw recognized text into the form the validator expects:
// everything but letters and digits is removed, the letter O becomes the digit 0,
// and artifact glyphs are dropped. Separators required by the active profile's
// grammar (the EU dashes) are kept.
type Normalizer struct {
	artifacts  map[rune]struct{}
	separators map[rune]struct{}
}

// NewNormalizer creates a normalizer for profile. Every rune of artifacts is
// removed from recognized text.
func NewNormalizer(profile RegionProfile, artifacts string) Normalizer {
	n := Normalizer{
		artifacts:  make(map[rune]struct{}),
		separators: make(map[rune]struct{}),
	}
	for _, r := range artifacts {
		n.artifacts[r] = struct{}{}
	}
	for _, r := range profile.Grammar().Separators() {
		n.separators[r] = struct{}{}
	}
	return n
}

// Normalize applies the normalization rules to text.
// Only O is corrected; I, B, S and other look-alikes are left for the grammar to reject.
func (n Normalizer) Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if _, drop := n.artifacts[r]; drop {
			continue
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if r == 'O' {
				r = '0'
			}
			b.WriteRune(r)
			continue
		}
		if _, keep := n.separators[r]; keep {
			b.WriteRune(r)
		}
	}
	return b.String()
}
