package recipe

import (
	"strconv"
	"strings"
)

// Version is a dotted upstream version string, such as "2.42.8" or "9d".
// Segments compare numerically when both sides are numeric and lexically
// otherwise, which matches how upstream release thresholds are written.
type Version string

// Compare returns -1, 0, or 1 depending on whether v is lower than, equal
// to, or higher than other.
func (v Version) Compare(other Version) int {
	a := strings.Split(string(v), ".")
	b := strings.Split(string(other), ".")
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		var sa, sb string
		if i < len(a) {
			sa = a[i]
		}
		if i < len(b) {
			sb = b[i]
		}
		if c := compareSegment(sa, sb); c != 0 {
			return c
		}
	}
	return 0
}

// AtLeast reports whether v >= other.
func (v Version) AtLeast(other Version) bool {
	return v.Compare(other) >= 0
}

// Less reports whether v < other.
func (v Version) Less(other Version) bool {
	return v.Compare(other) < 0
}

func compareSegment(a, b string) int {
	na, erra := strconv.Atoi(a)
	nb, errb := strconv.Atoi(b)
	if erra == nil && errb == nil {
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		default:
			return 0
		}
	}
	// A missing segment sorts lowest, then lexical order.
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
