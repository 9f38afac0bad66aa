package firmware

import (
	"strings"

	"golang.org/x/mod/semver"
)

// CompareVersions orders firmware versions. Semantic versions (with or
// without a leading "v") compare by precedence; anything else compares
// lexically and sorts below every valid semantic version. Versions of equal
// precedence fall back to lexical order so the result is total.
func CompareVersions(a, b string) int {
	ca, cb := canonical(a), canonical(b)
	switch {
	case ca != "" && cb != "":
		if c := semver.Compare(ca, cb); c != 0 {
			return c
		}
	case ca != "":
		return 1
	case cb != "":
		return -1
	}
	return strings.Compare(a, b)
}

func canonical(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return ""
	}
	return v
}
