package ranking

import (
	"context"
	"slices"
	"sort"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"stories-service/model"
	"stories-service/store"
)

// fakePosts applies store.PostFilter to an in-memory slice. The slice order is
// the insertion order, so SortInserted needs no work; without it or SortNewest
// the order is reversed to mimic an unspecified natural order.
type fakePosts struct {
	posts   []model.Post
	err     error
	queries []store.PostFilter
}

func (f *fakePosts) FindPosts(_ context.Context, filter store.PostFilter) ([]model.Post, error) {
	f.queries = append(f.queries, filter)
	if f.err != nil {
		return nil, f.err
	}

	var out []model.Post
	for _, p := range f.posts {
		if filter.StaffPick != nil && p.IsStaffPick != *filter.StaffPick {
			continue
		}
		if !filter.Since.IsZero() && p.CreatedAt.Before(filter.Since) {
			continue
		}
		if filter.HasEngagement && !p.HasEngagement() {
			continue
		}
		if slices.Contains(filter.ExcludeIDs, p.ID) {
			continue
		}
		out = append(out, p)
	}

	if !filter.SortNewest && !filter.SortInserted {
		slices.Reverse(out)
	}
	if filter.SortNewest {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})
	}
	if filter.Limit > 0 && int64(len(out)) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func likes(n int) []model.Like {
	out := make([]model.Like, n)
	for i := range out {
		out[i] = model.Like{User: primitive.NewObjectID()}
	}
	return out
}

func comments(n int) []model.Comment {
	out := make([]model.Comment, n)
	for i := range out {
		out[i] = model.Comment{ID: primitive.NewObjectID(), User: primitive.NewObjectID(), Text: "nice"}
	}
	return out
}
