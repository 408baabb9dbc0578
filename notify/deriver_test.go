package notify_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/murmur/constraint"
	"github.com/jacentio/murmur/model"
	"github.com/jacentio/murmur/notify"
	"github.com/jacentio/murmur/store"
	"github.com/jacentio/murmur/store/sqlite"
)

var (
	userA = uuid.NewString()
	userB = uuid.NewString()
	postP = uuid.NewString()
	cmtC  = uuid.NewString()
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	b, err := sqlite.Open(filepath.Join(t.TempDir(), "notify.db"))
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return store.New(b)
}

func TestDeriveLike(t *testing.T) {
	s := newStore(t)
	d := notify.New(s)

	n, err := d.DeriveLike(context.Background(), userB, userA, postP)
	require.NoError(t, err)

	assert.NotEmpty(t, n.ID)
	assert.Equal(t, userB, n.From)
	assert.Equal(t, userA, n.To)
	assert.Equal(t, model.NotifyLike, n.Type)
	require.NotNil(t, n.Post)
	assert.Equal(t, postP, *n.Post)
	assert.Nil(t, n.Comment)
	assert.False(t, n.CreatedAt.IsZero())

	stored, err := s.FindByID(context.Background(), model.KindNotification, n.ID)
	require.NoError(t, err)
	assert.Nil(t, stored["comment"])
}

func TestDeriveFollow_NullRefs(t *testing.T) {
	d := notify.New(newStore(t))

	n, err := d.DeriveFollow(context.Background(), userA, userB)
	require.NoError(t, err)
	assert.Equal(t, model.NotifyFollow, n.Type)
	assert.Nil(t, n.Post)
	assert.Nil(t, n.Comment)
}

func TestDeriveComment(t *testing.T) {
	d := notify.New(newStore(t))

	n, err := d.DeriveComment(context.Background(), userB, userA, postP, cmtC)
	require.NoError(t, err)
	assert.Equal(t, model.NotifyComment, n.Type)
	require.NotNil(t, n.Post)
	require.NotNil(t, n.Comment)
	assert.Equal(t, postP, *n.Post)
	assert.Equal(t, cmtC, *n.Comment)
}

func TestDeriveCommentLike(t *testing.T) {
	d := notify.New(newStore(t))

	n, err := d.DeriveCommentLike(context.Background(), userA, userB, postP, cmtC)
	require.NoError(t, err)
	assert.Equal(t, model.NotifyLike, n.Type)
	assert.Equal(t, userA, n.From)
	assert.Equal(t, userB, n.To)
	require.NotNil(t, n.Post)
	require.NotNil(t, n.Comment)
	assert.Equal(t, postP, *n.Post)
	assert.Equal(t, cmtC, *n.Comment)
}

func TestDerive_NoDeduplication(t *testing.T) {
	s := newStore(t)
	d := notify.New(s)
	ctx := context.Background()

	first, err := d.DeriveLike(ctx, userB, userA, postP)
	require.NoError(t, err)
	second, err := d.DeriveLike(ctx, userB, userA, postP)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	all, err := s.FindMany(ctx, model.KindNotification, store.Query{Where: []store.Condition{store.Eq("to", userA)}})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestDerive_ValidationFailure(t *testing.T) {
	d := notify.New(newStore(t))

	_, err := d.DeriveFollow(context.Background(), "not-an-id", userB)
	require.ErrorIs(t, err, constraint.ErrValidation)
	assert.ErrorContains(t, err, "derive follow notification")
}

type failingCreator struct{ err error }

func (f failingCreator) Create(context.Context, model.Kind, model.Fields) (model.Document, error) {
	return nil, f.err
}

type recordingCreator struct {
	kinds  []model.Kind
	fields []model.Fields
}

func (r *recordingCreator) Create(_ context.Context, kind model.Kind, fields model.Fields) (model.Document, error) {
	r.kinds = append(r.kinds, kind)
	r.fields = append(r.fields, fields)
	doc := model.Document{"id": "n1"}
	for k, v := range fields {
		doc[k] = v
	}
	return doc, nil
}

func TestDerive_WrapsStoreErrors(t *testing.T) {
	boom := errors.New("disk full")
	d := notify.New(failingCreator{err: boom})

	_, err := d.DeriveComment(context.Background(), userB, userA, postP, cmtC)
	require.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "derive comment notification")
}

func TestDerive_OmitsUnusedRefs(t *testing.T) {
	rec := &recordingCreator{}
	d := notify.New(rec)
	ctx := context.Background()

	_, err := d.DeriveFollow(ctx, userA, userB)
	require.NoError(t, err)
	_, err = d.DeriveLike(ctx, userB, userA, postP)
	require.NoError(t, err)

	require.Len(t, rec.fields, 2)
	assert.Equal(t, []model.Kind{model.KindNotification, model.KindNotification}, rec.kinds)
	assert.NotContains(t, rec.fields[0], "post")
	assert.NotContains(t, rec.fields[0], "comment")
	assert.Equal(t, postP, rec.fields[1]["post"])
	assert.NotContains(t, rec.fields[1], "comment")
}
