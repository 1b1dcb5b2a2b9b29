package transfer

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transferbot/internal/feed"
	"transferbot/internal/transport"
)

type fakeImages struct {
	ids   map[string]string
	slugs map[string]string
	calls []string
	panic bool
}

func (f *fakeImages) ByID(_ context.Context, id string) (string, bool) {
	if f.panic {
		panic("resolver exploded")
	}
	f.calls = append(f.calls, "id:"+id)
	u, ok := f.ids[id]
	return u, ok
}

func (f *fakeImages) Logo(ctx context.Context, id, slug string) (string, bool) {
	if u, ok := f.ByID(ctx, id); ok {
		return u, true
	}
	f.calls = append(f.calls, "slug:"+slug)
	u, ok := f.slugs[slug]
	return u, ok
}

func (f *fakeImages) TeamURL(slug string) string {
	return "https://virtualprogaming.com/team/" + slug
}

var amsterdam = LoadLocation("Europe/Amsterdam")

var holland = feed.Descriptor{Key: "Holland", Label: "Holland", Accent: 0x5865F2}

func TestFormatWhen(t *testing.T) {
	cases := map[string]string{
		"2024-01-01T10:00:00Z":        "2024-01-01 11:00:00 CET",
		"2024-07-01T10:00:00Z":        "2024-07-01 12:00:00 CEST",
		"2024-07-01T10:00:00+02:00":   "2024-07-01 10:00:00 CEST",
		"2024-01-01T10:00:00.123456Z": "2024-01-01 11:00:00 CET",
		"2024-01-01T10:00:00":         "2024-01-01 11:00:00 CET",
		"2024-01-01T10:00:00+0100":    "2024-01-01 10:00:00 CET",
		"2024-07-01T10:00:00.5+0200":  "2024-07-01 10:00:00 CEST",
		"":                            "unknown",
		"yesterday-ish":               "unknown",
		"2024-13-45T99:00:00Z":        "unknown",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatWhen(in, amsterdam), in)
	}
}

func TestLoadLocationFallsBackToUTC(t *testing.T) {
	assert.Equal(t, time.UTC, LoadLocation("Nowhere/Special"))
}

func TestBuildScenario(t *testing.T) {
	b := NewBuilder(nil, amsterdam)
	rec := &feed.Record{
		ID: 5, Username: "a", FromName: "X", ToName: "Y",
		Amount: decimal.NewFromInt(100), Datetime: "2024-01-01T10:00:00Z",
	}
	card, err := b.Build(context.Background(), rec, holland)
	require.NoError(t, err)

	assert.Equal(t, "[Holland] Transfer: a", card.Title)
	assert.Equal(t, "X → Y", card.Description)
	assert.Equal(t, 0x5865F2, card.Color)
	assert.Equal(t, []transport.CardField{
		{Name: "From", Value: "X", Inline: true},
		{Name: "To", Value: "Y", Inline: true},
		{Name: "Fee", Value: "100", Inline: true},
	}, card.Fields)
	assert.Equal(t, "2024-01-01 11:00:00 CET", card.Footer)
	assert.True(t, card.Timestamp.Equal(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)))
	assert.Empty(t, card.ThumbnailURL)
	assert.Empty(t, card.ImageURL)
}

func TestBuildDefaultsAndLinks(t *testing.T) {
	imgs := &fakeImages{}
	b := NewBuilder(imgs, amsterdam)
	rec := &feed.Record{ID: 1, ToName: "Ajax", ToSlug: "ajax", Datetime: "garbage"}

	card, err := b.Build(context.Background(), rec, holland)
	require.NoError(t, err)
	assert.Equal(t, "[Holland] Transfer: unknown", card.Title)
	assert.Equal(t, "Free agent → Ajax", card.Description)
	assert.Equal(t, transport.CardField{Name: "From", Value: "Free agent", Inline: true}, card.Fields[0])
	assert.Equal(t, transport.CardField{Name: "To", Value: "Ajax", URL: "https://virtualprogaming.com/team/ajax", Inline: true}, card.Fields[1])
	assert.Equal(t, "0", card.Fields[2].Value)
	assert.Equal(t, "unknown", card.Footer)
	assert.True(t, card.Timestamp.IsZero())
}

func TestBuildImagePreference(t *testing.T) {
	t.Run("destination id wins", func(t *testing.T) {
		imgs := &fakeImages{ids: map[string]string{"av": "https://cdn/av.png", "to": "https://cdn/to.png", "from": "https://cdn/from.png"}}
		card, err := NewBuilder(imgs, amsterdam).Build(context.Background(),
			&feed.Record{Avatar: "av", ToLogo: "to", FromLogo: "from"}, holland)
		require.NoError(t, err)
		assert.Equal(t, "https://cdn/av.png", card.ThumbnailURL)
		assert.Equal(t, "https://cdn/to.png", card.ImageURL)
		assert.NotContains(t, imgs.calls, "id:from")
	})

	t.Run("destination slug before source", func(t *testing.T) {
		imgs := &fakeImages{
			ids:   map[string]string{"from": "https://cdn/from.png"},
			slugs: map[string]string{"ajax": "https://cdn/ajax.webp"},
		}
		card, err := NewBuilder(imgs, amsterdam).Build(context.Background(),
			&feed.Record{ToLogo: "missing", ToSlug: "ajax", FromLogo: "from"}, holland)
		require.NoError(t, err)
		assert.Empty(t, card.ThumbnailURL)
		assert.Equal(t, "https://cdn/ajax.webp", card.ImageURL)
	})

	t.Run("falls back to source", func(t *testing.T) {
		imgs := &fakeImages{slugs: map[string]string{"psv": "https://cdn/psv.png"}}
		card, err := NewBuilder(imgs, amsterdam).Build(context.Background(),
			&feed.Record{ToSlug: "nowhere", FromSlug: "psv"}, holland)
		require.NoError(t, err)
		assert.Equal(t, "https://cdn/psv.png", card.ImageURL)
		assert.Equal(t, []string{"id:", "id:", "slug:nowhere", "id:", "slug:psv"}, imgs.calls)
	})

	t.Run("nothing resolves", func(t *testing.T) {
		card, err := NewBuilder(&fakeImages{}, amsterdam).Build(context.Background(),
			&feed.Record{Avatar: "a", ToLogo: "b", FromSlug: "c"}, holland)
		require.NoError(t, err)
		assert.Empty(t, card.ThumbnailURL)
		assert.Empty(t, card.ImageURL)
	})
}

func TestBuildFailures(t *testing.T) {
	_, err := NewBuilder(nil, amsterdam).Build(context.Background(), nil, holland)
	assert.ErrorIs(t, err, ErrNilRecord)

	_, err = NewBuilder(&fakeImages{panic: true}, amsterdam).Build(context.Background(), &feed.Record{ID: 1}, holland)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolver exploded")
}

func TestFallbackText(t *testing.T) {
	rec := &feed.Record{Username: "kees", FromName: "FC Twente", Datetime: "2024-07-01T10:00:00Z"}
	assert.Equal(t,
		"[Holland 5v5 Next] Transfer: kees — FC Twente → Free agent • 2024-07-01 12:00:00 CEST",
		FallbackText(rec, "Holland 5v5 Next", amsterdam))
	assert.Equal(t, "[Holland] Transfer: unknown — Free agent → Free agent • unknown",
		FallbackText(&feed.Record{}, "Holland", amsterdam))
}

func TestOnlineCard(t *testing.T) {
	card := OnlineCard([]feed.Descriptor{{Label: "Holland"}, {Label: "Holland 5v5 Next"}})
	assert.Equal(t, "Transfer bot online", card.Title)
	assert.Equal(t, "Monitoring feeds: Holland, Holland 5v5 Next.", card.Description)
	assert.Equal(t, 0x2ECC71, card.Color)
}
