package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/murmur/model"
)

func TestFormatTime_FixedWidth(t *testing.T) {
	a := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	b := a.Add(time.Nanosecond)

	fa, fb := model.FormatTime(a), model.FormatTime(b)
	assert.Equal(t, "2024-01-02T03:04:05.000000000Z", fa)
	assert.Len(t, fb, len(fa))
	assert.Less(t, fa, fb)

	parsed, err := model.ParseTime(fb)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(b))
}

func TestFormatTime_ConvertsToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	ts := time.Date(2024, 6, 1, 12, 0, 0, 0, loc)
	assert.Equal(t, "2024-06-01T10:00:00.000000000Z", model.FormatTime(ts))
}

func TestParseTime_AcceptsRFC3339(t *testing.T) {
	ts, err := model.ParseTime("2024-06-01T10:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, 2024, ts.Year())

	_, err = model.ParseTime("yesterday")
	assert.Error(t, err)
}

func TestEncodeDecodeWire(t *testing.T) {
	now := time.Date(2024, 3, 4, 5, 6, 7, 8, time.UTC)
	doc := model.Document{
		"id":        "n1",
		"from":      "a",
		"to":        "b",
		"type":      "follow",
		"post":      nil,
		"comment":   nil,
		"createdAt": now,
		"updatedAt": now,
	}

	wire := model.EncodeWire(doc)
	assert.Equal(t, "2024-03-04T05:06:07.000000008Z", wire["createdAt"])
	wire["_version"] = 4
	wire["extra"] = "dropped"

	got, err := model.DecodeWire(model.KindNotification, wire)
	require.NoError(t, err)
	assert.Equal(t, doc, got)
	assert.NotContains(t, got, "_version")
	assert.NotContains(t, got, "extra")
}

func TestDecodeWire_Sequences(t *testing.T) {
	got, err := model.DecodeWire(model.KindPost, map[string]any{
		"id":    "p1",
		"user":  "u1",
		"likes": []any{"a", "a", "b"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a", "b"}, got["likes"])
	assert.Equal(t, []string{}, got["comments"])
	assert.NotContains(t, got, "content")
}

func TestDecodeWire_RejectsWrongTypes(t *testing.T) {
	_, err := model.DecodeWire(model.KindPost, map[string]any{"likes": "a"})
	assert.Error(t, err)

	_, err = model.DecodeWire(model.KindPost, map[string]any{"likes": []any{1}})
	assert.Error(t, err)

	_, err = model.DecodeWire(model.KindPost, map[string]any{"createdAt": 12})
	assert.Error(t, err)
}

func TestDocumentAccessors(t *testing.T) {
	doc := model.Document{
		"id":      "c1",
		"post":    "p1",
		"comment": nil,
		"likes":   []string{"x"},
	}
	assert.Equal(t, "c1", doc.ID())
	assert.Equal(t, "", doc.String("missing"))
	require.NotNil(t, doc.Ref("post"))
	assert.Equal(t, "p1", *doc.Ref("post"))
	assert.Nil(t, doc.Ref("comment"))
	assert.Equal(t, []string{}, doc.Refs("followers"))
	assert.True(t, doc.CreatedAt().IsZero())
}

func TestDocumentClone_DoesNotShareSequences(t *testing.T) {
	doc := model.Document{"likes": []string{"a"}}
	clone := doc.Clone()
	clone["likes"] = append(clone["likes"].([]string)[:0], "b")
	assert.Equal(t, []string{"a"}, doc["likes"])
}

func TestCoerce(t *testing.T) {
	in := model.Fields{
		"likes": []any{"a", "b"},
		"mixed": []any{"a", 1},
		"name":  "x",
	}
	out := model.Coerce(in)
	assert.Equal(t, []string{"a", "b"}, out["likes"])
	assert.Equal(t, []any{"a", 1}, out["mixed"])
	assert.Equal(t, "x", out["name"])
}

func TestIsInternal(t *testing.T) {
	assert.True(t, model.IsInternal("_version"))
	assert.False(t, model.IsInternal("version"))
}

func TestAsNotification(t *testing.T) {
	post := "p1"
	n, err := model.AsNotification(model.Document{
		"id":      "n1",
		"from":    "a",
		"to":      "b",
		"type":    model.NotifyLike,
		"post":    post,
		"comment": nil,
	})
	require.NoError(t, err)
	assert.Equal(t, model.NotifyLike, n.Type)
	require.NotNil(t, n.Post)
	assert.Equal(t, "p1", *n.Post)
	assert.Nil(t, n.Comment)
}
