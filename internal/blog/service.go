// Package blog is a small post store on top of rwcache: posts live in the
// sequential collection and pages are read through derived read sets.
package blog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/unkn0wn-root/rwcache"
)

const createdAtLayout = "15:04:05 01-02-2006"

var ErrPostNotFound = errors.New("blog: post not found")

// Post IDs are not stored: a post's ID is its slot in the collection.
type Post struct {
	ID        uint64 `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at,omitempty"`
}

// Draft is the client-supplied part of a post.
type Draft struct {
	Title   string `json:"title"   validate:"required,max=200"`
	Content string `json:"content" validate:"required,max=20000"`
}

// Page is one listing result. Versions covers every key of ReadSet, 0 for the
// ones that were absent.
type Page struct {
	Posts    []Post                `json:"posts"`
	ReadSet  []string              `json:"read_set"`
	Versions rwcache.VersionVector `json:"versions"`
}

type Service struct {
	posts    rwcache.Cache[Post]
	validate *validator.Validate
	now      func() time.Time
}

func NewService(posts rwcache.Cache[Post]) *Service {
	return &Service{posts: posts, validate: validator.New(), now: time.Now}
}

// Create appends a post. The ID is the next slot of the collection.
func (s *Service) Create(ctx context.Context, d Draft) (Post, error) {
	if err := s.validate.Struct(d); err != nil {
		return Post{}, &ValidationError{Err: err}
	}
	p := Post{Title: d.Title, Content: d.Content, CreatedAt: s.now().Format(createdAtLayout)}
	id, err := s.posts.InsertSequential(ctx, p)
	if err != nil {
		return Post{}, err
	}
	p.ID = id
	return p, nil
}

// Update replaces title and content of an existing post.
func (s *Service) Update(ctx context.Context, id uint64, d Draft) (Post, error) {
	if err := s.validate.Struct(d); err != nil {
		return Post{}, &ValidationError{Err: err}
	}
	p, err := s.Get(ctx, id)
	if err != nil {
		return Post{}, err
	}
	p.Title, p.Content = d.Title, d.Content
	stored := p
	stored.ID = 0
	if _, err := s.posts.Put(ctx, key(id), stored); err != nil {
		return Post{}, err
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id uint64) (Post, error) {
	p, ok, err := s.posts.Get(ctx, key(id))
	if err != nil {
		return Post{}, err
	}
	if !ok {
		return Post{}, fmt.Errorf("%w: #%d", ErrPostNotFound, id)
	}
	p.ID = id
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id uint64) error {
	return s.posts.RemoveSequential(ctx, id)
}

// List reads one page, or every post when page is 0.
func (s *Service) List(ctx context.Context, page, size int) (Page, error) {
	rs, err := s.ReadSet(ctx, page, size)
	if err != nil {
		return Page{}, err
	}
	entries, err := s.posts.ReadEntries(ctx, rs)
	if err != nil {
		return Page{}, err
	}
	out := Page{
		Posts:    make([]Post, len(entries)),
		ReadSet:  rs,
		Versions: make(rwcache.VersionVector, len(rs)),
	}
	for _, k := range rs {
		out.Versions[k] = 0
	}
	for i, e := range entries {
		p := e.Value
		p.ID, _ = strconv.ParseUint(e.Key, 10, 64)
		out.Posts[i] = p
		out.Versions[e.Key] = e.Version
	}
	return out, nil
}

// ReadSet returns the keys a listing touches: the full collection when page is
// 0, otherwise the given page.
func (s *Service) ReadSet(ctx context.Context, page, size int) ([]string, error) {
	if page == 0 {
		return s.posts.DeriveFullReadSet(ctx)
	}
	return s.posts.DerivePageReadSet(page, size)
}

func (s *Service) Versions(ctx context.Context, page, size int) (rwcache.VersionVector, error) {
	rs, err := s.ReadSet(ctx, page, size)
	if err != nil {
		return nil, err
	}
	return s.posts.Versions(ctx, rs)
}

func (s *Service) Count(ctx context.Context) (uint64, error) { return s.posts.Count(ctx) }

func (s *Service) Clear(ctx context.Context) error { return s.posts.Clear(ctx) }

type ValidationError struct{ Err error }

func (e *ValidationError) Error() string { return "blog: invalid post: " + e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

func key(id uint64) string { return strconv.FormatUint(id, 10) }
