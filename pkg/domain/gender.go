package domain

import (
	"strings"

	dErrors "bunkhouse/pkg/domain-errors"
)

// Gender categorizes both workers and rooms. A room only ever houses workers
// of its own category.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// validGenders is the single source of truth for supported categories.
var validGenders = map[Gender]bool{
	GenderMale:   true,
	GenderFemale: true,
}

// ParseGender constructs a Gender from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported; no
// other errors are expected.
func ParseGender(s string) (Gender, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "gender cannot be empty")
	}
	g := Gender(strings.ToLower(s))
	if !g.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid gender")
	}
	return g, nil
}

// IsValid checks if the gender is one of the supported enum values.
func (g Gender) IsValid() bool {
	return validGenders[g]
}

func (g Gender) String() string { return string(g) }
