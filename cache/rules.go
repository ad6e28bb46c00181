package cache

import (
	"net/url"
	"regexp"
	"strings"
	"time"
)

var objectIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

// Rule assigns a TTL to request paths it matches.
type Rule struct {
	Name  string
	Match Matcher
	TTL   time.Duration
}

// Rules is an ordered table; the first matching rule wins.
type Rules []Rule

// DefaultRules returns the TTL table for the post routes mounted under base,
// for example "/api".
func DefaultRules(base string) Rules {
	posts := base + "/posts"
	return Rules{
		{Name: "popular", Match: Prefix(posts + "/popular"), TTL: 300 * time.Second},
		{Name: "post", Match: Pattern(regexp.MustCompile(`^` + regexp.QuoteMeta(posts) + `/[0-9a-f]{24}$`)), TTL: 120 * time.Second},
		{Name: "listing", Match: Exact(posts), TTL: 60 * time.Second},
		{Name: "category", Match: Prefix(posts + "/category/"), TTL: 180 * time.Second},
	}
}

// Lookup returns the first rule matching path. Paths that match nothing are
// not cacheable. path is expected in CanonicalPath form.
func (r Rules) Lookup(path string) (Rule, bool) {
	for _, rule := range r {
		if rule.Match(path) {
			return rule, true
		}
	}
	return Rule{}, false
}

// PostIDFromPath extracts the post id from base+"/posts/{id}" and its
// sub-resources such as ".../comments" or ".../like".
func PostIDFromPath(base, path string) (string, bool) {
	rest, ok := strings.CutPrefix(path, base+"/posts/")
	if !ok {
		return "", false
	}
	id, _, _ := strings.Cut(rest, "/")
	if !objectIDPattern.MatchString(id) {
		return "", false
	}
	return strings.ToLower(id), true
}

// CanonicalPath lower-cases every object id segment of a decoded path, so
// every spelling of one post maps to the same path.
func CanonicalPath(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if objectIDPattern.MatchString(seg) {
			segments[i] = strings.ToLower(seg)
		}
	}
	return strings.Join(segments, "/")
}

// Key is the cache key of a request URL: its decoded canonical path plus the
// raw query. Percent-encoded and upper-case spellings of a path share a key.
func Key(u *url.URL) string {
	key := CanonicalPath(u.Path)
	if u.RawQuery != "" {
		key += "?" + u.RawQuery
	}
	return key
}
