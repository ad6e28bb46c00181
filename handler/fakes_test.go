package handler

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"stories-service/model"
	"stories-service/ranking"
	"stories-service/store"
)

type memPosts struct {
	mu    sync.Mutex
	posts []model.Post
	err   error
}

func (m *memPosts) match(f store.PostFilter, p *model.Post) bool {
	if f.StaffPick != nil && p.IsStaffPick != *f.StaffPick {
		return false
	}
	if !f.Since.IsZero() && p.CreatedAt.Before(f.Since) {
		return false
	}
	if f.HasEngagement && !p.HasEngagement() {
		return false
	}
	if slices.Contains(f.ExcludeIDs, p.ID) {
		return false
	}
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	if len(f.Authors) > 0 && !slices.Contains(f.Authors, p.User) {
		return false
	}
	return true
}

func (m *memPosts) FindPosts(_ context.Context, f store.PostFilter) ([]model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}

	out := []model.Post{}
	for i := range m.posts {
		if m.match(f, &m.posts[i]) {
			out = append(out, m.posts[i])
		}
	}
	if f.SortNewest {
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	}
	if f.Skip > 0 {
		out = out[min(int(f.Skip), len(out)):]
	}
	if f.Limit > 0 && int(f.Limit) < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memPosts) CountPosts(_ context.Context, f store.PostFilter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}

	var n int64
	for i := range m.posts {
		if m.match(f, &m.posts[i]) {
			n++
		}
	}
	return n, nil
}

func (m *memPosts) index(id primitive.ObjectID) int {
	return slices.IndexFunc(m.posts, func(p model.Post) bool { return p.ID == id })
}

func (m *memPosts) FindPostByID(_ context.Context, id primitive.ObjectID) (*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}

	i := m.index(id)
	if i < 0 {
		return nil, store.ErrNotFound
	}
	p := m.posts[i]
	return &p, nil
}

func (m *memPosts) LatestPostBy(ctx context.Context, authors []primitive.ObjectID) (*model.Post, error) {
	posts, err := m.FindPosts(ctx, store.PostFilter{Authors: authors, SortNewest: true, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, store.ErrNotFound
	}
	return &posts[0], nil
}

func (m *memPosts) CreatePost(_ context.Context, post *model.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}

	post.ID = primitive.NewObjectID()
	post.CreatedAt = time.Now().UTC()
	post.UpdatedAt = post.CreatedAt
	m.posts = append(m.posts, *post)
	return nil
}

func (m *memPosts) modify(id primitive.ObjectID, fn func(p *model.Post)) (*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}

	i := m.index(id)
	if i < 0 {
		return nil, store.ErrNotFound
	}
	fn(&m.posts[i])
	p := m.posts[i]
	return &p, nil
}

func (m *memPosts) UpdatePost(_ context.Context, id primitive.ObjectID, u store.PostUpdate) (*model.Post, error) {
	return m.modify(id, func(p *model.Post) {
		if u.Title != nil {
			p.Title = *u.Title
		}
		if u.Content != nil {
			p.Content = *u.Content
		}
		if u.Category != nil {
			p.Category = *u.Category
		}
		if u.Language != nil {
			p.Language = *u.Language
		}
	})
}

func (m *memPosts) DeletePost(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.index(id)
	if i < 0 {
		return store.ErrNotFound
	}
	m.posts = slices.Delete(m.posts, i, i+1)
	return nil
}

func (m *memPosts) AddComment(_ context.Context, id primitive.ObjectID, c model.Comment) (*model.Post, error) {
	return m.modify(id, func(p *model.Post) {
		p.Comments = append([]model.Comment{c}, p.Comments...)
	})
}

func (m *memPosts) RemoveComment(_ context.Context, id, commentID primitive.ObjectID) (*model.Post, error) {
	return m.modify(id, func(p *model.Post) {
		p.Comments = slices.DeleteFunc(p.Comments, func(c model.Comment) bool { return c.ID == commentID })
	})
}

func (m *memPosts) ToggleLike(_ context.Context, id, userID primitive.ObjectID) (*model.Post, error) {
	return m.modify(id, func(p *model.Post) {
		if p.LikedBy(userID) {
			p.Likes = slices.DeleteFunc(p.Likes, func(l model.Like) bool { return l.User == userID })
			return
		}
		p.Likes = append(p.Likes, model.Like{User: userID})
	})
}

type memUsers struct {
	users []*model.User
	err   error
}

func (m *memUsers) FindUserByID(_ context.Context, id primitive.ObjectID) (*model.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memUsers) FindUsersByIDs(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*model.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := map[primitive.ObjectID]*model.User{}
	for _, u := range m.users {
		if slices.Contains(ids, u.ID) {
			out[u.ID] = u
		}
	}
	return out, nil
}

func (m *memUsers) UsersByCountry(context.Context) ([]store.CountryGroup, error) {
	if m.err != nil {
		return nil, m.err
	}
	byName := map[string]*store.CountryGroup{}
	var groups []*store.CountryGroup
	for _, u := range m.users {
		if u.Country == "" {
			continue
		}
		g, ok := byName[u.Country]
		if !ok {
			g = &store.CountryGroup{Name: u.Country}
			byName[u.Country] = g
			groups = append(groups, g)
		}
		g.Count++
		g.UserIDs = append(g.UserIDs, u.ID)
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Count > groups[j].Count })

	out := make([]store.CountryGroup, len(groups))
	for i, g := range groups {
		out[i] = *g
	}
	return out, nil
}

func (m *memUsers) CountUsers(context.Context) (int64, error) {
	return int64(len(m.users)), m.err
}

func (m *memUsers) CountCountries(context.Context) (int64, error) {
	seen := map[string]bool{}
	for _, u := range m.users {
		if u.Country != "" {
			seen[u.Country] = true
		}
	}
	return int64(len(seen)), m.err
}

type stubRanker struct {
	ranked []model.RankedPost
	err    error
	window ranking.TimeWindow
	limit  int
}

func (s *stubRanker) RankPopularPosts(_ context.Context, window ranking.TimeWindow, limit int) ([]model.RankedPost, error) {
	s.window, s.limit = window, limit
	return s.ranked, s.err
}

type fakeTokens map[string]string

func (f fakeTokens) UserID(token string) (string, error) {
	return f[token], nil
}
