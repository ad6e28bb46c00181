package cache

import (
	"regexp"
	"strings"
)

// Matcher selects cache keys.
type Matcher func(key string) bool

func Exact(s string) Matcher {
	return func(key string) bool { return key == s }
}

func Prefix(s string) Matcher {
	return func(key string) bool { return strings.HasPrefix(key, s) }
}

func Contains(s string) Matcher {
	return func(key string) bool { return strings.Contains(key, s) }
}

func Pattern(re *regexp.Regexp) Matcher {
	return re.MatchString
}

// Any accepts a key when at least one of ms does.
func Any(ms ...Matcher) Matcher {
	return func(key string) bool {
		for _, m := range ms {
			if m(key) {
				return true
			}
		}
		return false
	}
}
