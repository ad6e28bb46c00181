package ranking

import (
	"errors"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"stories-service/model"
)

var now = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

func newTestEngine(posts *fakePosts) *Engine {
	return NewEngine(posts, slog.New(slog.DiscardHandler), WithClock(func() time.Time { return now }))
}

func post(age time.Duration, nLikes, nComments int, staffPick bool) model.Post {
	return model.Post{
		ID:          primitive.NewObjectID(),
		Title:       "post",
		CreatedAt:   now.Add(-age),
		Likes:       likes(nLikes),
		Comments:    comments(nComments),
		IsStaffPick: staffPick,
	}
}

func ids(ranked []model.RankedPost) []primitive.ObjectID {
	out := make([]primitive.ObjectID, len(ranked))
	for i, r := range ranked {
		out[i] = r.ID
	}
	return out
}

func TestScoreFormula(t *testing.T) {
	t.Parallel()

	p := post(0, 2, 1, false)
	score := Score(&p, now)

	assert.InDelta(t, 12.5, score, 1e-9)
	assert.Equal(t, model.FlagPopular, Flag(score))
}

func TestRecencyBonusNeverNegative(t *testing.T) {
	t.Parallel()

	p := post(30*24*time.Hour, 1, 0, false)
	assert.InDelta(t, 1.5, Score(&p, now), 1e-9)

	p = post(36*time.Hour, 0, 0, false)
	assert.InDelta(t, 5.5, Score(&p, now), 1e-9)
}

func TestFlagThresholds(t *testing.T) {
	t.Parallel()

	assert.Equal(t, model.FlagPopular, Flag(10.01))
	assert.Equal(t, model.FlagRising, Flag(10))
	assert.Equal(t, model.FlagRising, Flag(3.01))
	assert.Equal(t, model.FlagNew, Flag(3))
	assert.Equal(t, model.FlagNew, Flag(0))
}

func TestRankPopularPostsOrdersByScore(t *testing.T) {
	t.Parallel()

	low := post(10*24*time.Hour, 1, 0, false)  // 1.5
	high := post(10*24*time.Hour, 4, 2, false) // 11
	mid := post(10*24*time.Hour, 0, 2, false)  // 5
	fake := &fakePosts{posts: []model.Post{low, high, mid}}

	ranked, err := newTestEngine(fake).RankPopularPosts(t.Context(), WindowAll, 3)
	require.NoError(t, err)

	assert.Equal(t, []primitive.ObjectID{high.ID, mid.ID, low.ID}, ids(ranked))
	assert.Equal(t, model.FlagPopular, ranked[0].DisplayFlag)
	assert.Equal(t, model.FlagRising, ranked[1].DisplayFlag)
	assert.Equal(t, model.FlagNew, ranked[2].DisplayFlag)

	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].EngagementScore, ranked[i].EngagementScore)
	}
}

func TestRankPopularPostsKeepsInputOrderOnTies(t *testing.T) {
	t.Parallel()

	var posts []model.Post
	for i := 0; i < 6; i++ {
		posts = append(posts, post(20*24*time.Hour, 2, 0, false))
	}
	winner := post(20*24*time.Hour, 5, 0, false)
	posts = append(posts[:3], append([]model.Post{winner}, posts[3:]...)...)

	ranked, err := newTestEngine(&fakePosts{posts: posts}).RankPopularPosts(t.Context(), WindowAll, len(posts))
	require.NoError(t, err)

	want := []primitive.ObjectID{winner.ID}
	for _, p := range posts {
		if p.ID != winner.ID {
			want = append(want, p.ID)
		}
	}
	assert.Equal(t, want, ids(ranked))
}

func TestRankPopularPostsQueriesInInsertionOrder(t *testing.T) {
	t.Parallel()

	fake := &fakePosts{posts: []model.Post{
		post(time.Hour, 0, 0, true),
		post(time.Hour, 0, 0, true),
		post(20*24*time.Hour, 2, 0, false),
		post(20*24*time.Hour, 2, 0, false),
	}}

	ranked, err := newTestEngine(fake).RankPopularPosts(t.Context(), WindowAll, 4)
	require.NoError(t, err)

	require.Len(t, fake.queries, 2)
	assert.True(t, fake.queries[0].SortInserted, "staff picks")
	assert.True(t, fake.queries[1].SortInserted, "engaging posts")
	assert.Equal(t, ids(toRanked(fake.posts)), ids(ranked))
}

func toRanked(posts []model.Post) []model.RankedPost {
	out := make([]model.RankedPost, len(posts))
	for i, p := range posts {
		out[i] = model.RankedPost{Post: p}
	}
	return out
}

func TestRankPopularPostsBackfill(t *testing.T) {
	t.Parallel()

	pick1 := post(time.Hour, 0, 0, true)
	pick2 := post(2*time.Hour, 0, 0, true)
	engaging := post(3*time.Hour, 1, 0, false)
	quietOld := post(5*time.Hour, 0, 0, false)
	quietNew := post(30*time.Minute, 0, 0, false)
	quietNewest := post(10*time.Minute, 0, 0, false)

	fake := &fakePosts{posts: []model.Post{pick1, engaging, quietOld, pick2, quietNew, quietNewest}}

	ranked, err := newTestEngine(fake).RankPopularPosts(t.Context(), WindowWeek, 5)
	require.NoError(t, err)
	require.Len(t, ranked, 5)

	assert.Equal(t, []primitive.ObjectID{pick1.ID, pick2.ID, engaging.ID, quietNewest.ID, quietNew.ID}, ids(ranked))

	for _, r := range ranked[:2] {
		assert.True(t, r.Curated())
		assert.True(t, r.StaffPick)
		assert.Empty(t, r.DisplayFlag)
	}
	for _, r := range ranked[3:] {
		assert.Equal(t, 0.5, r.EngagementScore)
		assert.Equal(t, model.FlagNew, r.DisplayFlag)
	}

	seen := map[primitive.ObjectID]bool{}
	for _, id := range ids(ranked) {
		assert.False(t, seen[id], "duplicate post %s", id.Hex())
		seen[id] = true
	}

	backfillQuery := fake.queries[2]
	assert.ElementsMatch(t, []primitive.ObjectID{pick1.ID, pick2.ID, engaging.ID}, backfillQuery.ExcludeIDs)
	assert.Equal(t, int64(2), backfillQuery.Limit)
	assert.True(t, backfillQuery.SortNewest)
}

func TestRankPopularPostsSkipsBackfillWhenFull(t *testing.T) {
	t.Parallel()

	fake := &fakePosts{posts: []model.Post{
		post(time.Hour, 0, 0, true),
		post(time.Hour, 1, 0, false),
		post(time.Hour, 2, 0, false),
	}}

	ranked, err := newTestEngine(fake).RankPopularPosts(t.Context(), WindowAll, 2)
	require.NoError(t, err)
	assert.Len(t, ranked, 2)
	assert.Len(t, fake.queries, 2)
}

func TestRankPopularPostsTruncatesCurated(t *testing.T) {
	t.Parallel()

	fake := &fakePosts{posts: []model.Post{
		post(time.Hour, 0, 0, true),
		post(time.Hour, 0, 0, true),
		post(time.Hour, 0, 0, true),
		post(time.Hour, 9, 9, false),
	}}

	ranked, err := newTestEngine(fake).RankPopularPosts(t.Context(), WindowAll, 2)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	for _, r := range ranked {
		assert.True(t, math.IsInf(r.EngagementScore, 1))
	}
}

func TestRankPopularPostsRespectsWindow(t *testing.T) {
	t.Parallel()

	oldPick := post(3*24*time.Hour, 0, 0, true)
	oldHot := post(3*24*time.Hour, 10, 10, false)
	fresh := post(time.Hour, 1, 0, false)
	fake := &fakePosts{posts: []model.Post{oldPick, oldHot, fresh}}

	ranked, err := newTestEngine(fake).RankPopularPosts(t.Context(), WindowDay, 10)
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{fresh.ID}, ids(ranked))
	assert.Equal(t, now.AddDate(0, 0, -1), fake.queries[0].Since)
}

func TestRankPopularPostsEmpty(t *testing.T) {
	t.Parallel()

	ranked, err := newTestEngine(&fakePosts{}).RankPopularPosts(t.Context(), WindowAll, 3)
	require.NoError(t, err)
	assert.NotNil(t, ranked)
	assert.Empty(t, ranked)
}

func TestRankPopularPostsLimitAboveAvailable(t *testing.T) {
	t.Parallel()

	fake := &fakePosts{posts: []model.Post{post(time.Hour, 1, 0, false), post(time.Hour, 0, 0, false)}}

	ranked, err := newTestEngine(fake).RankPopularPosts(t.Context(), WindowAll, 50)
	require.NoError(t, err)
	assert.Len(t, ranked, 2)
}

func TestRankPopularPostsIsDeterministic(t *testing.T) {
	t.Parallel()

	fake := &fakePosts{posts: []model.Post{
		post(time.Hour, 0, 0, true),
		post(2*time.Hour, 3, 1, false),
		post(2*time.Hour, 3, 1, false),
		post(4*time.Hour, 0, 0, false),
		post(5*time.Hour, 1, 1, false),
	}}
	engine := newTestEngine(fake)

	first, err := engine.RankPopularPosts(t.Context(), WindowMonth, 4)
	require.NoError(t, err)
	second, err := engine.RankPopularPosts(t.Context(), WindowMonth, 4)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRankPopularPostsDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	p := post(time.Hour, 2, 2, false)
	fake := &fakePosts{posts: []model.Post{p}}

	_, err := newTestEngine(fake).RankPopularPosts(t.Context(), WindowAll, 1)
	require.NoError(t, err)
	assert.Equal(t, p, fake.posts[0])
}

func TestRankPopularPostsStorageError(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection refused")
	_, err := newTestEngine(&fakePosts{err: boom}).RankPopularPosts(t.Context(), WindowAll, 3)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.ErrorIs(t, err, boom)
}

func TestRankPopularPostsRejectsNonPositiveLimit(t *testing.T) {
	t.Parallel()

	_, err := newTestEngine(&fakePosts{}).RankPopularPosts(t.Context(), WindowAll, 0)
	assert.ErrorIs(t, err, ErrInvalidLimit)
}
