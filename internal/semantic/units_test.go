package semantic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeUnit(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"m²", UnitM2},
		{"M2", UnitM2},
		{" vierkante meter ", UnitM2},
		{"m¹", UnitM1},
		{"m1", UnitM1},
		{"meter", UnitM1},
		{"Strekkende  Meter", UnitM1},
		{"m", UnitM1},
		{"lm", UnitM1},
		{"stuks", UnitPiece},
		{"St.", UnitPiece},
		{"pcs", UnitPiece},
		{"m³", UnitM3},
		{"kubieke meter", UnitM3},
		{"woning", UnitHome},
		{"ruimte", UnitRoom},
		{"cm", UnitCM},
		{"paar", UnitPair},
		{"uur", "uur"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeUnit(tt.input))
		})
	}
}

func TestUnitScore(t *testing.T) {
	tests := []struct {
		name     string
		a, b     string
		expected float64
	}{
		{"same code", "m2", "m2", 1.0},
		{"variant spellings", "m²", "vierkante meter", 1.0},
		{"piece variants", "stuks", "st", 1.0},
		{"area family", "m2", "cm2", 0.9},
		{"count family", "stu", "set", 0.9},
		{"volume family", "m3", "ltr", 0.9},
		{"length family", "m1", "cm", 0.7},
		{"length family variant", "strekkende meter", "mm", 0.7},
		{"incompatible", "m2", "stu", 0.0},
		{"unknown vs known", "uur", "m2", 0.0},
		{"unknown identical", "uur", "uur", 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, UnitScore(tt.a, tt.b))
			assert.Equal(t, UnitScore(tt.a, tt.b), UnitScore(tt.b, tt.a), "unit score must be symmetric")
		})
	}
}

func TestUnitScore_Identity(t *testing.T) {
	for variant := range unitVariants {
		assert.Equal(t, 1.0, UnitScore(variant, variant), variant)
	}
}

func TestUnitFamily(t *testing.T) {
	assert.Equal(t, FamilyArea, UnitFamily("m²"))
	assert.Equal(t, FamilyLength, UnitFamily("strekkende meter"))
	assert.Equal(t, FamilyHome, UnitFamily("woning"))
	assert.Equal(t, "", UnitFamily("uur"))
}
