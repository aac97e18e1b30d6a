package semantic

import "strings"

// Canonical unit codes.
const (
	UnitM2    = "m2"
	UnitM1    = "m1"
	UnitPiece = "stu"
	UnitM3    = "m3"
	UnitCM    = "cm"
	UnitMM    = "mm"
	UnitHome  = "won"
	UnitRoom  = "ruimte"
	UnitCM2   = "cm2"
	UnitDM3   = "dm3"
	UnitLiter = "ltr"
	UnitSet   = "set"
	UnitPair  = "paar"
)

// Unit families. Two different codes in the same family are interchangeable
// to a degree given by familyScores.
const (
	FamilyLength = "length"
	FamilyArea   = "area"
	FamilyCount  = "count"
	FamilyVolume = "volume"
	FamilyHome   = "dwelling"
	FamilyRoom   = "room"
)

var unitVariants = map[string]string{
	"m2": UnitM2, "m²": UnitM2, "vierkante meter": UnitM2, "vierkante meters": UnitM2, "vm": UnitM2,

	"m1": UnitM1, "m¹": UnitM1, "m": UnitM1, "meter": UnitM1, "meters": UnitM1,
	"strekkende meter": UnitM1, "strekkende meters": UnitM1, "lm": UnitM1, "mtr": UnitM1, "str m": UnitM1,

	"stu": UnitPiece, "stuks": UnitPiece, "stuk": UnitPiece, "st": UnitPiece, "pcs": UnitPiece, "pc": UnitPiece,

	"m3": UnitM3, "m³": UnitM3, "kubieke meter": UnitM3, "kuub": UnitM3,

	"cm": UnitCM, "mm": UnitMM,
	"cm2": UnitCM2, "cm²": UnitCM2,
	"dm3": UnitDM3, "dm³": UnitDM3,
	"ltr": UnitLiter, "liter": UnitLiter, "l": UnitLiter,

	"won": UnitHome, "woning": UnitHome, "woningen": UnitHome,
	"ruimte": UnitRoom, "ruimtes": UnitRoom, "ruimten": UnitRoom,

	"set": UnitSet, "sets": UnitSet, "paar": UnitPair,
}

var unitFamilies = map[string]string{
	UnitM1: FamilyLength, UnitCM: FamilyLength, UnitMM: FamilyLength,
	UnitM2: FamilyArea, UnitCM2: FamilyArea,
	UnitPiece: FamilyCount, UnitSet: FamilyCount, UnitPair: FamilyCount,
	UnitM3: FamilyVolume, UnitDM3: FamilyVolume, UnitLiter: FamilyVolume,
	UnitHome: FamilyHome,
	UnitRoom: FamilyRoom,
}

// Length units convert but the price book is per running metre, so a cm/m1
// mix is a weaker match than two area spellings.
var familyScores = map[string]float64{
	FamilyLength: 0.7,
	FamilyArea:   0.9,
	FamilyCount:  0.9,
	FamilyVolume: 0.9,
	FamilyHome:   0.9,
	FamilyRoom:   0.9,
}

// NormalizeUnit maps a unit spelling onto its canonical code. Unknown
// spellings come back lower-cased and trimmed.
func NormalizeUnit(s string) string {
	u := strings.ToLower(strings.TrimSpace(s))
	u = strings.Join(strings.Fields(u), " ")
	u = strings.TrimSuffix(u, ".")
	if canon, ok := unitVariants[u]; ok {
		return canon
	}
	return u
}

// UnitFamily returns the family of a canonical or raw unit, or "" when it
// belongs to none.
func UnitFamily(unit string) string {
	return unitFamilies[NormalizeUnit(unit)]
}

// UnitScore grades the compatibility of two units: 1.0 for the same code,
// the family score for two members of one family and 0.0 otherwise.
func UnitScore(a, b string) float64 {
	ua, ub := NormalizeUnit(a), NormalizeUnit(b)
	if ua == ub {
		return 1.0
	}
	fa, fb := unitFamilies[ua], unitFamilies[ub]
	if fa == "" || fa != fb {
		return 0.0
	}
	return familyScores[fa]
}
