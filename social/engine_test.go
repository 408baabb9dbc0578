package social_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/murmur/constraint"
	"github.com/jacentio/murmur/graph"
	"github.com/jacentio/murmur/model"
	"github.com/jacentio/murmur/social"
	"github.com/jacentio/murmur/store"
	"github.com/jacentio/murmur/store/sqlite"
)

func newEngine(t *testing.T) *social.Engine {
	t.Helper()
	b, err := sqlite.Open(filepath.Join(t.TempDir(), "social.db"))
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return social.New(store.New(b), nil)
}

func register(t *testing.T, e *social.Engine, handle string) model.Account {
	t.Helper()
	a, err := e.RegisterAccount(context.Background(), model.Fields{
		"externalId": "auth0|" + handle,
		"email":      handle + "@example.com",
		"firstName":  "First",
		"lastName":   "Last",
		"username":   handle,
	})
	require.NoError(t, err)
	return a
}

func TestRegisterAccount_Defaults(t *testing.T) {
	e := newEngine(t)
	a := register(t, e, "alice")

	assert.NotEmpty(t, a.ID)
	assert.Equal(t, "", a.Bio)
	assert.Equal(t, []string{}, a.Followers)
	assert.Equal(t, []string{}, a.Following)
	assert.Equal(t, a.CreatedAt, a.UpdatedAt)
}

func TestRegisterAccount_DuplicateUsername(t *testing.T) {
	e := newEngine(t)
	register(t, e, "alice")

	_, err := e.RegisterAccount(context.Background(), model.Fields{
		"externalId": "auth0|other",
		"email":      "other@example.com",
		"firstName":  "O",
		"lastName":   "O",
		"username":   "alice",
	})
	var ue *constraint.UniquenessError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "username", ue.Field)
}

func TestUpdateProfile(t *testing.T) {
	e := newEngine(t)
	a := register(t, e, "alice")

	updated, err := e.UpdateProfile(context.Background(), a.ID, model.Fields{"bio": "hi", "location": "Lisbon"})
	require.NoError(t, err)
	assert.Equal(t, "hi", updated.Bio)
	assert.Equal(t, "Lisbon", updated.Location)
	assert.True(t, updated.UpdatedAt.After(a.UpdatedAt))
	assert.Equal(t, a.CreatedAt, updated.CreatedAt)
}

func TestCreatePost(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	a := register(t, e, "alice")

	p, err := e.CreatePost(ctx, a.ID, "hello", "")
	require.NoError(t, err)
	assert.Equal(t, a.ID, p.User)
	assert.Equal(t, "hello", p.Content)
	assert.Equal(t, []string{}, p.Likes)
	assert.Equal(t, []string{}, p.Comments)

	bare, err := e.CreatePost(ctx, a.ID, "", "")
	require.NoError(t, err)
	assert.Empty(t, bare.Content)

	_, err = e.CreatePost(ctx, uuid.NewString(), "hello", "")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestLikePost_TwiceKeepsBothAndNotifiesTwice(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	a, b := register(t, e, "alice"), register(t, e, "bob")
	p, err := e.CreatePost(ctx, a.ID, "hello", "")
	require.NoError(t, err)

	n1, err := e.LikePost(ctx, b.ID, p.ID)
	require.NoError(t, err)
	_, err = e.LikePost(ctx, b.ID, p.ID)
	require.NoError(t, err)

	likes, err := e.Graph().Targets(ctx, graph.PostLikes, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID, b.ID}, likes)

	assert.Equal(t, b.ID, n1.From)
	assert.Equal(t, a.ID, n1.To)
	assert.Equal(t, model.NotifyLike, n1.Type)
	require.NotNil(t, n1.Post)
	assert.Equal(t, p.ID, *n1.Post)
	assert.Nil(t, n1.Comment)

	notes, err := e.Notifications(ctx, a.ID, 0)
	require.NoError(t, err)
	assert.Len(t, notes, 2)
}

func TestLikePost_MissingPost(t *testing.T) {
	e := newEngine(t)
	b := register(t, e, "bob")

	_, err := e.LikePost(context.Background(), b.ID, uuid.NewString())
	require.ErrorIs(t, err, store.ErrNotFound)

	notes, err := e.Notifications(context.Background(), b.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestUnlikePost_RemovesOneLike(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	a, b := register(t, e, "alice"), register(t, e, "bob")
	p, err := e.CreatePost(ctx, a.ID, "hello", "")
	require.NoError(t, err)
	_, err = e.LikePost(ctx, b.ID, p.ID)
	require.NoError(t, err)
	_, err = e.LikePost(ctx, b.ID, p.ID)
	require.NoError(t, err)

	require.NoError(t, e.UnlikePost(ctx, b.ID, p.ID))

	likes, err := e.Graph().Targets(ctx, graph.PostLikes, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, likes)
}

func TestFollowAccount_BothSides(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	a, b := register(t, e, "alice"), register(t, e, "bob")

	n, err := e.FollowAccount(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.NotifyFollow, n.Type)
	assert.Equal(t, a.ID, n.From)
	assert.Equal(t, b.ID, n.To)
	assert.Nil(t, n.Post)
	assert.Nil(t, n.Comment)

	following, err := e.Graph().Targets(ctx, graph.Following, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, following)
	followers, err := e.Graph().Targets(ctx, graph.Followers, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, followers)
}

func TestFollowAccount_Self(t *testing.T) {
	e := newEngine(t)
	a := register(t, e, "alice")

	_, err := e.FollowAccount(context.Background(), a.ID, a.ID)
	assert.ErrorIs(t, err, social.ErrSelfFollow)
	assert.ErrorIs(t, e.UnfollowAccount(context.Background(), a.ID, a.ID), social.ErrSelfFollow)
}

func TestFollowAccount_MissingTargetChangesNothing(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	a := register(t, e, "alice")

	_, err := e.FollowAccount(ctx, a.ID, uuid.NewString())
	require.ErrorIs(t, err, store.ErrNotFound)

	following, err := e.Graph().Targets(ctx, graph.Following, a.ID)
	require.NoError(t, err)
	assert.Empty(t, following)
}

func TestUnfollowAccount(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	a, b := register(t, e, "alice"), register(t, e, "bob")
	_, err := e.FollowAccount(ctx, a.ID, b.ID)
	require.NoError(t, err)

	require.NoError(t, e.UnfollowAccount(ctx, a.ID, b.ID))

	following, err := e.Graph().Targets(ctx, graph.Following, a.ID)
	require.NoError(t, err)
	assert.Empty(t, following)
	followers, err := e.Graph().Targets(ctx, graph.Followers, b.ID)
	require.NoError(t, err)
	assert.Empty(t, followers)

	// Only the follow itself was notified.
	notes, err := e.Notifications(ctx, b.ID, 0)
	require.NoError(t, err)
	assert.Len(t, notes, 1)
}

func TestCommentOnPost(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	a, b := register(t, e, "alice"), register(t, e, "bob")
	p, err := e.CreatePost(ctx, a.ID, "hello", "")
	require.NoError(t, err)

	c, n, err := e.CommentOnPost(ctx, b.ID, p.ID, "nice")
	require.NoError(t, err)
	assert.Equal(t, b.ID, c.User)
	assert.Equal(t, p.ID, c.Post)
	assert.Equal(t, "nice", c.Content)

	assert.Equal(t, model.NotifyComment, n.Type)
	assert.Equal(t, a.ID, n.To)
	require.NotNil(t, n.Comment)
	assert.Equal(t, c.ID, *n.Comment)

	comments, err := e.Graph().Targets(ctx, graph.PostComments, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{c.ID}, comments)

	listed, err := e.CommentsOn(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, c.ID, listed[0].ID)
}

func TestCommentOnPost_EmptyContentRejected(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	a := register(t, e, "alice")
	p, err := e.CreatePost(ctx, a.ID, "hello", "")
	require.NoError(t, err)

	_, _, err = e.CommentOnPost(ctx, a.ID, p.ID, "")
	require.ErrorIs(t, err, constraint.ErrValidation)

	comments, err := e.Graph().Targets(ctx, graph.PostComments, p.ID)
	require.NoError(t, err)
	assert.Empty(t, comments)
}

func TestLikeComment(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	a, b := register(t, e, "alice"), register(t, e, "bob")
	p, err := e.CreatePost(ctx, a.ID, "hello", "")
	require.NoError(t, err)
	c, _, err := e.CommentOnPost(ctx, b.ID, p.ID, "nice")
	require.NoError(t, err)

	n, err := e.LikeComment(ctx, a.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.NotifyLike, n.Type)
	assert.Equal(t, b.ID, n.To)
	require.NotNil(t, n.Post)
	assert.Equal(t, p.ID, *n.Post)
	require.NotNil(t, n.Comment)
	assert.Equal(t, c.ID, *n.Comment)

	likes, err := e.Graph().Targets(ctx, graph.CommentLikes, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, likes)
}

func TestDeleteComment_DetachesFromPost(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	a := register(t, e, "alice")
	p, err := e.CreatePost(ctx, a.ID, "hello", "")
	require.NoError(t, err)
	keep, _, err := e.CommentOnPost(ctx, a.ID, p.ID, "one")
	require.NoError(t, err)
	drop, _, err := e.CommentOnPost(ctx, a.ID, p.ID, "two")
	require.NoError(t, err)

	require.NoError(t, e.DeleteComment(ctx, drop.ID))

	comments, err := e.Graph().Targets(ctx, graph.PostComments, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{keep.ID}, comments)
	_, err = e.Store().FindByID(ctx, model.KindComment, drop.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.ErrorIs(t, e.DeleteComment(ctx, drop.ID), store.ErrNotFound)
}

func TestDeleteComment_PostAlreadyGone(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	a := register(t, e, "alice")
	p, err := e.CreatePost(ctx, a.ID, "hello", "")
	require.NoError(t, err)
	c, _, err := e.CommentOnPost(ctx, a.ID, p.ID, "one")
	require.NoError(t, err)
	require.NoError(t, e.DeletePost(ctx, p.ID))

	assert.NoError(t, e.DeleteComment(ctx, c.ID))
}

func TestDeletePost_KeepsCommentsAndNotifications(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	a, b := register(t, e, "alice"), register(t, e, "bob")
	p, err := e.CreatePost(ctx, a.ID, "hello", "")
	require.NoError(t, err)
	c, _, err := e.CommentOnPost(ctx, b.ID, p.ID, "nice")
	require.NoError(t, err)

	require.NoError(t, e.DeletePost(ctx, p.ID))

	_, err = e.Store().FindByID(ctx, model.KindPost, p.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = e.Store().FindByID(ctx, model.KindComment, c.ID)
	assert.NoError(t, err)

	listed, err := e.CommentsOn(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	notes, err := e.Notifications(ctx, a.ID, 0)
	require.NoError(t, err)
	assert.Len(t, notes, 1)
}

func TestNotifications_NewestFirstWithLimit(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	a, b, c := register(t, e, "alice"), register(t, e, "bob"), register(t, e, "carol")

	first, err := e.FollowAccount(ctx, b.ID, a.ID)
	require.NoError(t, err)
	second, err := e.FollowAccount(ctx, c.ID, a.ID)
	require.NoError(t, err)

	notes, err := e.Notifications(ctx, a.ID, 0)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, second.ID, notes[0].ID)
	assert.Equal(t, first.ID, notes[1].ID)

	limited, err := e.Notifications(ctx, a.ID, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, second.ID, limited[0].ID)
}

func TestPostsBy_NewestFirst(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	a, b := register(t, e, "alice"), register(t, e, "bob")
	older, err := e.CreatePost(ctx, a.ID, "one", "")
	require.NoError(t, err)
	newer, err := e.CreatePost(ctx, a.ID, "two", "")
	require.NoError(t, err)
	_, err = e.CreatePost(ctx, b.ID, "other", "")
	require.NoError(t, err)

	posts, err := e.PostsBy(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, newer.ID, posts[0].ID)
	assert.Equal(t, older.ID, posts[1].ID)
}
