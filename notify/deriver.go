// Package notify derives notification records from graph mutations.
//
// Every derivation creates exactly one Notification through the entity store,
// which validates it like any other write. Nothing is deduplicated: deriving
// the same event twice yields two notifications.
package notify

import (
	"context"
	"fmt"

	"github.com/jacentio/murmur/model"
)

// Creator is the part of the entity store the deriver writes through.
type Creator interface {
	Create(ctx context.Context, kind model.Kind, fields model.Fields) (model.Document, error)
}

// Deriver creates notifications.
type Deriver struct {
	store Creator
}

// New creates a Deriver writing through s.
func New(s Creator) *Deriver {
	return &Deriver{store: s}
}

// DeriveFollow records that from started following to.
func (d *Deriver) DeriveFollow(ctx context.Context, fromID, toID string) (model.Notification, error) {
	return d.derive(ctx, model.Fields{
		"from": fromID,
		"to":   toID,
		"type": model.NotifyFollow,
	})
}

// DeriveLike records that from liked a post owned by to.
func (d *Deriver) DeriveLike(ctx context.Context, fromID, toID, postID string) (model.Notification, error) {
	return d.derive(ctx, model.Fields{
		"from": fromID,
		"to":   toID,
		"type": model.NotifyLike,
		"post": postID,
	})
}

// DeriveCommentLike records that from liked a comment owned by to. The
// notification references both the comment and the post it belongs to.
func (d *Deriver) DeriveCommentLike(ctx context.Context, fromID, toID, postID, commentID string) (model.Notification, error) {
	return d.derive(ctx, model.Fields{
		"from":    fromID,
		"to":      toID,
		"type":    model.NotifyLike,
		"post":    postID,
		"comment": commentID,
	})
}

// DeriveComment records that from commented on a post owned by to.
func (d *Deriver) DeriveComment(ctx context.Context, fromID, toID, postID, commentID string) (model.Notification, error) {
	return d.derive(ctx, model.Fields{
		"from":    fromID,
		"to":      toID,
		"type":    model.NotifyComment,
		"post":    postID,
		"comment": commentID,
	})
}

func (d *Deriver) derive(ctx context.Context, fields model.Fields) (model.Notification, error) {
	doc, err := d.store.Create(ctx, model.KindNotification, fields)
	if err != nil {
		return model.Notification{}, fmt.Errorf("derive %s notification: %w", fields["type"], err)
	}
	return model.AsNotification(doc)
}
