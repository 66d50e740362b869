package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalid is returned for strings that are not a dot-separated
// major.minor.patch triple of non-negative integers.
var ErrInvalid = errors.New("invalid version format")

// Version is a parsed major.minor.patch version.
type Version struct {
	Major int
	Minor int
	Patch int
}

// Parse parses a version string of the form "a.b.c".
// Surrounding whitespace is ignored. Any other deviation, including a
// leading sign or a missing component, yields an error wrapping ErrInvalid.
func Parse(s string) (Version, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Version{}, fmt.Errorf("%w: empty version string", ErrInvalid)
	}

	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("%w: %q has %d components, want 3", ErrInvalid, s, len(parts))
	}

	var nums [3]int
	for i, part := range parts {
		n, err := parseComponent(part)
		if err != nil {
			return Version{}, fmt.Errorf("%w: %q: %v", ErrInvalid, s, err)
		}
		nums[i] = n
	}

	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// MustParse is like Parse but panics on error. Intended for constants and tests.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

func parseComponent(part string) (int, error) {
	if part == "" {
		return 0, errors.New("empty component")
	}
	for _, r := range part {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("non-numeric component %q", part)
		}
	}
	n, err := strconv.Atoi(part)
	if err != nil {
		return 0, fmt.Errorf("component %q out of range", part)
	}
	return n, nil
}

// String returns the version as "major.minor.patch".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0 or 1 depending on whether v is less than,
// equal to, or greater than other.
func (v Version) Compare(other Version) int {
	if v.Major != other.Major {
		return compareInt(v.Major, other.Major)
	}
	if v.Minor != other.Minor {
		return compareInt(v.Minor, other.Minor)
	}
	return compareInt(v.Patch, other.Patch)
}

func (v Version) LessThan(other Version) bool    { return v.Compare(other) < 0 }
func (v Version) GreaterThan(other Version) bool { return v.Compare(other) > 0 }
func (v Version) Equal(other Version) bool       { return v.Compare(other) == 0 }

func compareInt(a, b int) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}
