// Package semver implements the narrow version handling the spec needs:
// normalizing X / X.Y / X.Y.Z into X.Y.Z, and comparing versions by
// numeric component with trailing-zero tolerance (never string compare,
// per §9's Design Notes).
package semver

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a parsed, normalized major.minor.patch triple.
type Version struct {
	Major, Minor, Patch int
}

// Parse accepts "X", "X.Y", or "X.Y.Z" and fills in missing components
// with 0.
func Parse(s string) (Version, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ".", 3)
	var v Version
	var err error

	if v.Major, err = atoi(parts[0]); err != nil {
		return Version{}, fmt.Errorf("parsing version %q: %w", s, err)
	}
	if len(parts) > 1 {
		if v.Minor, err = atoi(parts[1]); err != nil {
			return Version{}, fmt.Errorf("parsing version %q: %w", s, err)
		}
	}
	if len(parts) > 2 {
		if v.Patch, err = atoi(parts[2]); err != nil {
			return Version{}, fmt.Errorf("parsing version %q: %w", s, err)
		}
	}
	return v, nil
}

func atoi(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

// Normalize parses and re-renders s as X.Y.Z. Normalize(Normalize(v)) ==
// Normalize(v) by construction, since the output is always three
// components.
func Normalize(s string) (string, error) {
	v, err := Parse(s)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0, or 1 comparing a and b component-by-component
// numerically. "3.43" and "3.43.0" compare equal.
func Compare(a, b Version) int {
	if a.Major != b.Major {
		return sign(a.Major - b.Major)
	}
	if a.Minor != b.Minor {
		return sign(a.Minor - b.Minor)
	}
	return sign(a.Patch - b.Patch)
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

// SortDescending sorts versions latest-first using Compare.
func SortDescending(versions []Version) {
	for i := 1; i < len(versions); i++ {
		for j := i; j > 0 && Compare(versions[j], versions[j-1]) > 0; j-- {
			versions[j], versions[j-1] = versions[j-1], versions[j]
		}
	}
}

// MajorMinorMatch reports whether a and b share the same major version —
// used by the Binary Manager's verify() to accept "major-pairs match"
// even when patch versions differ.
func MajorMinorMatch(a, b Version) bool {
	return a.Major == b.Major
}
