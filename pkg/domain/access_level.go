package domain

import dErrors "github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain-errors"

// AccessLevel is the strength of a cross-wallet access grant.
// Invariant: the value must be one of the supported levels.
//
// Usage: construct via ParseAccessLevel at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type AccessLevel string

const (
	AccessLevelRead  AccessLevel = "read"
	AccessLevelWrite AccessLevel = "write"
	AccessLevelAdmin AccessLevel = "admin"
)

// accessLevelRank is the single source of truth for valid levels and their order.
var accessLevelRank = map[AccessLevel]int{
	AccessLevelRead:  1,
	AccessLevelWrite: 2,
	AccessLevelAdmin: 3,
}

// ParseAccessLevel constructs an AccessLevel from external input.
func ParseAccessLevel(s string) (AccessLevel, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "access level required")
	}
	level := AccessLevel(s)
	if !level.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid access level: "+s)
	}
	return level, nil
}

// IsValid reports whether the level is supported.
func (l AccessLevel) IsValid() bool {
	_, ok := accessLevelRank[l]
	return ok
}

// Satisfies reports whether l is at least as strong as required.
func (l AccessLevel) Satisfies(required AccessLevel) bool {
	have, ok := accessLevelRank[l]
	if !ok {
		return false
	}
	need, ok := accessLevelRank[required]
	if !ok {
		return false
	}
	return have >= need
}

// Code is the on-chain u8 encoding of the level.
func (l AccessLevel) Code() uint8 { return uint8(accessLevelRank[l]) }

// AccessLevelFromCode is the inverse of Code.
func AccessLevelFromCode(c uint8) (AccessLevel, error) {
	for level, rank := range accessLevelRank {
		if uint8(rank) == c {
			return level, nil
		}
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "invalid access level code")
}

func (l AccessLevel) String() string { return string(l) }
