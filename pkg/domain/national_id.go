package domain

import (
	"strings"

	dErrors "bunkhouse/pkg/domain-errors"
)

// NationalID is the network-unique business key for a worker. The same
// national ID may never identify two workers, regardless of farm.
//
// Usage: construct via ParseNationalID at trust boundaries so stray
// whitespace and casing never produce two spellings of the same identity.
type NationalID string

const maxNationalIDLen = 32

// ParseNationalID normalizes and validates a national ID from external input.
//
// Errors: returns CodeInvalidInput when the value is empty after trimming or
// exceeds the maximum length; no other errors are expected.
func ParseNationalID(s string) (NationalID, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "national id cannot be empty")
	}
	if len(s) > maxNationalIDLen {
		return "", dErrors.New(dErrors.CodeInvalidInput, "national id too long")
	}
	return NationalID(s), nil
}

func (n NationalID) String() string { return string(n) }

func (n NationalID) IsZero() bool { return n == "" }
