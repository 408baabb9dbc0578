// Package social wires the validator, entity store, relationship index and
// notification deriver into the operations an API layer calls.
//
// Every mutation flows one way: validation, entity write, edge update when the
// mutation touches an edge, then notification derivation when it is
// notifiable. A notification is only derived after the edge write succeeded.
package social

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jacentio/murmur/graph"
	"github.com/jacentio/murmur/model"
	"github.com/jacentio/murmur/notify"
	"github.com/jacentio/murmur/store"
)

// ErrSelfFollow is returned when an account tries to follow or unfollow itself.
var ErrSelfFollow = errors.New("murmur: an account cannot follow itself")

// Engine runs social-graph mutations.
type Engine struct {
	store   *store.Store
	graph   *graph.Index
	deriver *notify.Deriver
	logger  *slog.Logger
}

// New creates an Engine over s.
func New(s *store.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:   s,
		graph:   graph.New(s),
		deriver: notify.New(s),
		logger:  logger,
	}
}

// Store returns the underlying entity store.
func (e *Engine) Store() *store.Store { return e.store }

// Graph returns the relationship index.
func (e *Engine) Graph() *graph.Index { return e.graph }

// RegisterAccount creates an account for an external identity.
func (e *Engine) RegisterAccount(ctx context.Context, fields model.Fields) (model.Account, error) {
	doc, err := e.store.Create(ctx, model.KindAccount, fields)
	if err != nil {
		return model.Account{}, err
	}
	e.logger.Info("account registered", "account", doc.ID(), "username", doc.String("username"))
	return model.AsAccount(doc)
}

// UpdateProfile applies a partial update to an account.
func (e *Engine) UpdateProfile(ctx context.Context, accountID string, patch model.Fields) (model.Account, error) {
	doc, err := e.store.Update(ctx, model.KindAccount, accountID, patch)
	if err != nil {
		return model.Account{}, err
	}
	return model.AsAccount(doc)
}

// CreatePost publishes a post owned by userID. A post may carry neither
// content nor image.
func (e *Engine) CreatePost(ctx context.Context, userID, content, image string) (model.Post, error) {
	if _, err := e.store.FindByID(ctx, model.KindAccount, userID); err != nil {
		return model.Post{}, err
	}
	fields := model.Fields{"user": userID, "image": image}
	if content != "" {
		fields["content"] = content
	}
	doc, err := e.store.Create(ctx, model.KindPost, fields)
	if err != nil {
		return model.Post{}, err
	}
	return model.AsPost(doc)
}

// DeletePost removes a post. Its comments and notifications are kept.
func (e *Engine) DeletePost(ctx context.Context, postID string) error {
	return e.store.Delete(ctx, model.KindPost, postID)
}

// FollowAccount makes from follow to and notifies to.
func (e *Engine) FollowAccount(ctx context.Context, fromID, toID string) (model.Notification, error) {
	if fromID == toID {
		return model.Notification{}, ErrSelfFollow
	}
	if err := e.graph.Follow(ctx, fromID, toID); err != nil {
		return model.Notification{}, err
	}
	n, err := e.deriver.DeriveFollow(ctx, fromID, toID)
	if err != nil {
		e.logger.Error("follow recorded without notification", "from", fromID, "to", toID, "error", err)
		return model.Notification{}, err
	}
	return n, nil
}

// UnfollowAccount removes the follow relation. No notification is derived.
func (e *Engine) UnfollowAccount(ctx context.Context, fromID, toID string) error {
	if fromID == toID {
		return ErrSelfFollow
	}
	return e.graph.Unfollow(ctx, fromID, toID)
}

// LikePost appends actor to the post's likes and notifies the post owner.
// Repeated likes are recorded and notified again.
func (e *Engine) LikePost(ctx context.Context, actorID, postID string) (model.Notification, error) {
	post, err := e.store.FindByID(ctx, model.KindPost, postID)
	if err != nil {
		return model.Notification{}, err
	}
	if err := e.graph.AddEdge(ctx, graph.PostLikes, postID, actorID); err != nil {
		return model.Notification{}, err
	}
	return e.deriver.DeriveLike(ctx, actorID, post.String("user"), postID)
}

// UnlikePost removes one like by actor.
func (e *Engine) UnlikePost(ctx context.Context, actorID, postID string) error {
	return e.graph.RemoveEdge(ctx, graph.PostLikes, postID, actorID, graph.RemoveFirst)
}

// CommentOnPost creates a comment, attaches it to the post and notifies the
// post owner.
func (e *Engine) CommentOnPost(ctx context.Context, actorID, postID, content string) (model.Comment, model.Notification, error) {
	post, err := e.store.FindByID(ctx, model.KindPost, postID)
	if err != nil {
		return model.Comment{}, model.Notification{}, err
	}

	doc, err := e.store.Create(ctx, model.KindComment, model.Fields{
		"user":    actorID,
		"post":    postID,
		"content": content,
	})
	if err != nil {
		return model.Comment{}, model.Notification{}, err
	}
	comment, err := model.AsComment(doc)
	if err != nil {
		return model.Comment{}, model.Notification{}, err
	}

	if err := e.graph.AddEdge(ctx, graph.PostComments, postID, comment.ID); err != nil {
		return comment, model.Notification{}, err
	}

	n, err := e.deriver.DeriveComment(ctx, actorID, post.String("user"), postID, comment.ID)
	if err != nil {
		return comment, model.Notification{}, err
	}
	return comment, n, nil
}

// LikeComment appends actor to the comment's likes and notifies the comment
// owner with a like notification referencing the comment and its post.
func (e *Engine) LikeComment(ctx context.Context, actorID, commentID string) (model.Notification, error) {
	comment, err := e.store.FindByID(ctx, model.KindComment, commentID)
	if err != nil {
		return model.Notification{}, err
	}
	if err := e.graph.AddEdge(ctx, graph.CommentLikes, commentID, actorID); err != nil {
		return model.Notification{}, err
	}
	return e.deriver.DeriveCommentLike(ctx, actorID, comment.String("user"), comment.String("post"), commentID)
}

// DeleteComment removes a comment and detaches it from its post when the post
// still exists.
func (e *Engine) DeleteComment(ctx context.Context, commentID string) error {
	comment, err := e.store.FindByID(ctx, model.KindComment, commentID)
	if err != nil {
		return err
	}
	if err := e.store.Delete(ctx, model.KindComment, commentID); err != nil {
		return err
	}

	postID := comment.String("post")
	err = e.graph.RemoveEdge(ctx, graph.PostComments, postID, commentID, graph.RemoveAll)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("detach comment %s from post %s: %w", commentID, postID, err)
	}
	return nil
}

// Notifications returns the notifications addressed to accountID, newest first.
func (e *Engine) Notifications(ctx context.Context, accountID string, limit int) ([]model.Notification, error) {
	docs, err := e.store.FindMany(ctx, model.KindNotification, store.Query{
		Where:      []store.Condition{store.Eq("to", accountID)},
		Descending: true,
		Limit:      limit,
	})
	if err != nil {
		return nil, err
	}
	return decodeAll(docs, model.AsNotification)
}

// PostsBy returns the posts owned by userID, newest first.
func (e *Engine) PostsBy(ctx context.Context, userID string) ([]model.Post, error) {
	docs, err := e.store.FindMany(ctx, model.KindPost, store.Query{
		Where:      []store.Condition{store.Eq("user", userID)},
		Descending: true,
	})
	if err != nil {
		return nil, err
	}
	return decodeAll(docs, model.AsPost)
}

// CommentsOn returns the comments referencing postID, oldest first. Comments
// of deleted posts remain listed.
func (e *Engine) CommentsOn(ctx context.Context, postID string) ([]model.Comment, error) {
	docs, err := e.store.FindMany(ctx, model.KindComment, store.Query{
		Where: []store.Condition{store.Eq("post", postID)},
	})
	if err != nil {
		return nil, err
	}
	return decodeAll(docs, model.AsComment)
}

func decodeAll[T any](docs []model.Document, as func(model.Document) (T, error)) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		v, err := as(d)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
