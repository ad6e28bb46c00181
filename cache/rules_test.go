package cache

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRules(t *testing.T) {
	t.Parallel()

	rules := DefaultRules("/api")

	cases := []struct {
		path string
		rule string
		ttl  time.Duration
	}{
		{"/api/posts/popular", "popular", 300 * time.Second},
		{"/api/posts/65f1c0ffee0000000000beef", "post", 120 * time.Second},
		{"/api/posts", "listing", 60 * time.Second},
		{"/api/posts/category/Tech", "category", 180 * time.Second},
	}
	for _, tc := range cases {
		rule, ok := rules.Lookup(tc.path)
		if assert.True(t, ok, tc.path) {
			assert.Equal(t, tc.rule, rule.Name, tc.path)
			assert.Equal(t, tc.ttl, rule.TTL, tc.path)
		}
	}

	for _, path := range []string{
		"/api/posts/65f1c0ffee0000000000beef/comments",
		"/api/posts/user/65f1c0ffee0000000000beef",
		"/api/posts/not-an-id",
		"/api/posts/65F1C0FFEE0000000000BEEF",
		"/api/map-data",
		"/api/auth/stats",
		"/posts",
	} {
		_, ok := rules.Lookup(path)
		assert.False(t, ok, path)
	}
}

func TestRulesWithoutBase(t *testing.T) {
	t.Parallel()

	rule, ok := DefaultRules("").Lookup("/posts/popular")
	assert.True(t, ok)
	assert.Equal(t, "popular", rule.Name)
}

func TestPostIDFromPath(t *testing.T) {
	t.Parallel()

	const id = "65f1c0ffee0000000000beef"

	for _, path := range []string{
		"/api/posts/" + id,
		"/api/posts/" + id + "/comments",
		"/api/posts/" + id + "/comments/65f1c0ffee0000000000cafe",
		"/api/posts/" + id + "/like",
		"/api/posts/65F1C0FFEE0000000000BEEF/comments",
	} {
		got, ok := PostIDFromPath("/api", path)
		assert.True(t, ok, path)
		assert.Equal(t, id, got, path)
	}

	for _, path := range []string{
		"/api/posts",
		"/api/posts/popular",
		"/api/posts/category/Tech",
		"/api/posts/1234",
		"/posts/" + id,
	} {
		_, ok := PostIDFromPath("/api", path)
		assert.False(t, ok, path)
	}
}

func TestKeySetMatcher(t *testing.T) {
	t.Parallel()

	var set KeySet
	assert.True(t, set.Empty())
	assert.False(t, set.Matcher()("/api/posts"))

	set.AddResource("/api/posts")
	set.AddPrefix("/api/posts/popular")
	set.AddResource("/api/posts")

	assert.Equal(t, []string{"/api/posts"}, set.Exact)
	assert.Equal(t, []string{"/api/posts?", "/api/posts/popular"}, set.Prefixes)

	m := set.Matcher()
	assert.True(t, m("/api/posts"))
	assert.True(t, m("/api/posts?page=3"))
	assert.True(t, m("/api/posts/popular?limit=5"))
	assert.False(t, m("/api/posts/category/Tech"))
	assert.False(t, m("/api/posts/65f1c0ffee0000000000beef"))
}

func TestKeyCanonicalizesPostPaths(t *testing.T) {
	t.Parallel()

	const want = "/api/posts/65f1c0ffee0000000000beef"

	for _, raw := range []string{
		"/api/posts/65f1c0ffee0000000000beef",
		"/api/posts/65F1C0FFEE0000000000BEEF",
		"/api/posts/%36%35f1c0ffee0000000000beef",
		"/api/posts/65f1c0ffee0000000000BeEf",
	} {
		u, err := url.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, want, Key(u), raw)
	}

	u, err := url.Parse("/api/posts/65F1C0FFEE0000000000BEEF?fields=title")
	require.NoError(t, err)
	assert.Equal(t, want+"?fields=title", Key(u))

	u, err = url.Parse("/api/posts/category/Tech?limit=5")
	require.NoError(t, err)
	assert.Equal(t, "/api/posts/category/Tech?limit=5", Key(u))
}
