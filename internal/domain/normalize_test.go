package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizer_Normalize(t *testing.T) {
	tests := []struct {
		name    string
		profile RegionProfile
		in      string
		want    string
	}{
		{"already clean", ProfileIN, "MH12AB1234", "MH12AB1234"},
		{"spaces and punctuation", ProfileIN, "MH 12.AB-1234", "MH12AB1234"},
		{"letter O becomes zero", ProfileIN, "DLO8CA5678", "DL08CA5678"},
		{"I is not corrected", ProfileIN, "MHI2ABI234", "MHI2ABI234"},
		{"lower case o untouched", ProfileUSA, "o1", "o1"},
		{"artifact glyph removed", ProfileIN, "粤MH12AB1234", "MH12AB1234"},
		{"underscore stripped", ProfileUSA, "AB_12", "AB12"},
		{"eu keeps dashes", ProfileEU, "AB-CD 123", "AB-CD123"},
		{"eu strips other punctuation", ProfileEU, "AB.C-D-1", "ABC-D-1"},
		{"only noise", ProfileUSA, " -.!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewNormalizer(tt.profile, DefaultArtifacts)
			assert.Equal(t, tt.want, n.Normalize(tt.in))
		})
	}
}

func TestNormalizer_ThenValidate(t *testing.T) {
	n := NewNormalizer(ProfileIN, DefaultArtifacts)

	assert.True(t, Validate(n.Normalize("MH12AB1234"), ProfileIN))
	assert.False(t, Validate(n.Normalize("MHI2ABI234"), ProfileIN))
	assert.True(t, Validate(n.Normalize("MH 12 AB 1234"), ProfileIN))
}

func TestNormalizer_CustomArtifacts(t *testing.T) {
	n := NewNormalizer(ProfileUSA, "京沪")
	assert.Equal(t, "AB123", n.Normalize("京AB沪123"))
	// default artifact is not removed when a custom set is given
	assert.Equal(t, "粤AB", n.Normalize("粤AB"))
}
