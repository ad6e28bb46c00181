package ranking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"stories-service/metrics"
	"stories-service/model"
	"stories-service/store"
)

var (
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrInvalidLimit       = errors.New("limit must be positive")
)

// PostFinder is the read side of the post repository used for ranking.
type PostFinder interface {
	FindPosts(ctx context.Context, f store.PostFilter) ([]model.Post, error)
}

// Engine ranks posts by engagement. It holds no state between calls.
type Engine struct {
	posts  PostFinder
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Engine)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func NewEngine(posts PostFinder, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		posts:  posts,
		now:    time.Now,
		logger: logger.With("component", "ranking.Engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RankPopularPosts returns at most limit posts: staff picks first, then
// engaging posts by descending score, then the newest remaining posts.
func (e *Engine) RankPopularPosts(ctx context.Context, window TimeWindow, limit int) ([]model.RankedPost, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}

	start := time.Now()
	defer func() {
		metrics.RankingDuration.WithLabelValues(string(window)).Observe(time.Since(start).Seconds())
	}()

	now := e.now()
	cutoff := window.Cutoff(now)

	curated, err := e.find(ctx, store.PostFilter{
		StaffPick:    store.Bool(true),
		Since:        cutoff,
		SortInserted: true,
		Limit:        int64(limit),
	})
	if err != nil {
		return nil, err
	}

	engaging, err := e.find(ctx, store.PostFilter{
		StaffPick:     store.Bool(false),
		Since:         cutoff,
		HasEngagement: true,
		SortInserted:  true,
	})
	if err != nil {
		return nil, err
	}

	result := make([]model.RankedPost, 0, len(curated)+len(engaging))
	for _, p := range curated {
		result = append(result, model.RankedPost{
			Post:            p,
			EngagementScore: math.Inf(1),
			StaffPick:       true,
		})
	}
	result = append(result, rank(engaging, now)...)

	if missing := limit - len(result); missing > 0 {
		recent, err := e.find(ctx, store.PostFilter{
			Since:      cutoff,
			ExcludeIDs: lo.Map(result, func(r model.RankedPost, _ int) primitive.ObjectID { return r.ID }),
			SortNewest: true,
			Limit:      int64(missing),
		})
		if err != nil {
			return nil, err
		}

		for _, p := range recent {
			result = append(result, model.RankedPost{
				Post:            p,
				EngagementScore: backfillScore,
				DisplayFlag:     model.FlagNew,
			})
		}
		metrics.BackfilledPosts.Add(float64(len(recent)))
	}

	if len(result) > limit {
		result = result[:limit]
	}

	e.logger.Debug("ranked popular posts",
		"window", window,
		"limit", limit,
		"staff_picks", len(curated),
		"engaging", len(engaging),
		"returned", len(result),
	)

	return result, nil
}

func (e *Engine) find(ctx context.Context, f store.PostFilter) ([]model.Post, error) {
	posts, err := e.posts.FindPosts(ctx, f)
	if err != nil {
		e.logger.Error("post query failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return posts, nil
}

// rank scores posts and orders them by descending score. Equal scores keep
// their input order.
func rank(posts []model.Post, now time.Time) []model.RankedPost {
	ranked := make([]model.RankedPost, len(posts))
	for i := range posts {
		score := Score(&posts[i], now)
		ranked[i] = model.RankedPost{
			Post:            posts[i],
			EngagementScore: score,
			DisplayFlag:     Flag(score),
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].EngagementScore > ranked[j].EngagementScore
	})
	return ranked
}
