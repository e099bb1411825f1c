package main

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

type postStore interface {
	ListPosts(ctx context.Context) ([]Post, error)
	GetPost(ctx context.Context, id int64) (*Post, error)
	CreatePost(ctx context.Context, title, content string, createdAt time.Time) (*Post, error)
	UpdatePost(ctx context.Context, id int64, title, content string) (*Post, error)
	DeletePost(ctx context.Context, id int64) (bool, error)
}

// PostController serves posts to anyone and lets only admin sessions
// change them.
type PostController struct {
	posts postStore
	log   *slog.Logger
	now   func() time.Time
}

func NewPostController(posts postStore, log *slog.Logger) *PostController {
	return &PostController{
		posts: posts,
		log:   log,
		now:   time.Now,
	}
}

type postInput struct {
	Title   string `form:"title" validate:"required,max=100"`
	Content string `form:"content" validate:"required"`
}

// newPostInput trims the title. Content is stored as given; whitespace-only
// content still counts as missing.
func newPostInput(title, content string) (postInput, error) {
	in := postInput{
		Title:   strings.TrimSpace(title),
		Content: strings.TrimSpace(content),
	}
	if err := validateInput(in); err != nil {
		return postInput{}, err
	}
	in.Content = content
	return in, nil
}

// List returns every post, newest first.
func (c *PostController) List(ctx context.Context) ([]Post, error) {
	return c.posts.ListPosts(ctx)
}

func (c *PostController) Get(ctx context.Context, id int64) (*Post, error) {
	post, err := c.posts.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrNotFound
	}
	return post, nil
}

func (c *PostController) Create(ctx context.Context, session Session, title, content string) (*Post, error) {
	post, err := c.create(ctx, session, title, content)
	postOperationsTotal.WithLabelValues("create", outcome(err)).Inc()
	return post, err
}

func (c *PostController) create(ctx context.Context, session Session, title, content string) (*Post, error) {
	if err := c.authorize(session, "create"); err != nil {
		return nil, err
	}
	in, err := newPostInput(title, content)
	if err != nil {
		return nil, err
	}

	post, err := c.posts.CreatePost(ctx, in.Title, in.Content, c.now())
	if err != nil {
		return nil, err
	}

	c.log.Info("post created", slog.Int64("post_id", post.ID), slog.Int64("user_id", session.UserID))
	return post, nil
}

func (c *PostController) Update(ctx context.Context, session Session, id int64, title, content string) (*Post, error) {
	post, err := c.update(ctx, session, id, title, content)
	postOperationsTotal.WithLabelValues("update", outcome(err)).Inc()
	return post, err
}

func (c *PostController) update(ctx context.Context, session Session, id int64, title, content string) (*Post, error) {
	if err := c.authorize(session, "update"); err != nil {
		return nil, err
	}
	in, err := newPostInput(title, content)
	if err != nil {
		return nil, err
	}

	post, err := c.posts.UpdatePost(ctx, id, in.Title, in.Content)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrNotFound
	}

	c.log.Info("post updated", slog.Int64("post_id", id), slog.Int64("user_id", session.UserID))
	return post, nil
}

func (c *PostController) Delete(ctx context.Context, session Session, id int64) error {
	err := c.delete(ctx, session, id)
	postOperationsTotal.WithLabelValues("delete", outcome(err)).Inc()
	return err
}

func (c *PostController) delete(ctx context.Context, session Session, id int64) error {
	if err := c.authorize(session, "delete"); err != nil {
		return err
	}

	deleted, err := c.posts.DeletePost(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}

	c.log.Info("post deleted", slog.Int64("post_id", id), slog.Int64("user_id", session.UserID))
	return nil
}

func (c *PostController) authorize(session Session, operation string) error {
	if session.IsAdmin {
		return nil
	}
	c.log.Warn("post change refused",
		slog.String("operation", operation),
		slog.Int64("user_id", session.UserID))
	return ErrUnauthorized
}
