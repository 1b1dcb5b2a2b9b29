package feed

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transferbot/pkg/logx"
)

func ids(rs []Record) []int64 {
	out := make([]int64, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.ID)
	}
	return out
}

func recs(idList ...int64) []Record {
	out := make([]Record, 0, len(idList))
	for _, id := range idList {
		out = append(out, Record{ID: id})
	}
	return out
}

func TestSelect(t *testing.T) {
	cases := []struct {
		name       string
		in         []Record
		cursor     int64
		wantIDs    []int64
		wantCursor int64
	}{
		{"empty", nil, 10, []int64{}, 10},
		{"all old", recs(1, 2, 3), 3, []int64{}, 3},
		{"reorder", recs(3, 7, 5), 4, []int64{5, 7}, 7},
		{"from zero", recs(5), 0, []int64{5}, 5},
		{"zero ids excluded once cursor set", recs(0, 0, 9), 1, []int64{9}, 9},
		{"zero id never exceeds zero cursor", recs(0), 0, []int64{}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, cur := Select(tc.in, tc.cursor)
			assert.Equal(t, tc.wantIDs, ids(got))
			assert.Equal(t, tc.wantCursor, cur)
		})
	}
}

func TestSelectDoesNotMutateInput(t *testing.T) {
	in := recs(9, 1, 5)
	_, _ = Select(in, 0)
	assert.Equal(t, []int64{9, 1, 5}, ids(in))
}

func TestSelectProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		n := rng.Intn(20)
		in := make([]Record, n)
		for j := range in {
			in[j] = Record{ID: rng.Int63n(50)}
		}
		cursor := rng.Int63n(50)

		got, next := Select(in, cursor)

		want := []int64{}
		top := cursor
		for _, r := range in {
			if r.ID > cursor {
				want = append(want, r.ID)
			}
			if r.ID > top {
				top = r.ID
			}
		}
		sort.Slice(want, func(a, b int) bool { return want[a] < want[b] })

		require.Equal(t, want, ids(got))
		require.Equal(t, top, next)
	}
}

func TestRecordDecodesDefensively(t *testing.T) {
	var p Payload
	body := `{"data":[
		{"id":5,"username":"a","from_name":"X","to_name":"Y","amount":100,"datetime":"2024-01-01T10:00:00Z"},
		{"id":"12","username":null,"amount":"2500000.50","to_logo":991},
		{"id":"abc","amount":{"weird":true}},
		{"id":7.0},
		"not a record",
		42
	]}`
	require.NoError(t, json.Unmarshal([]byte(body), &p))
	require.Len(t, p.Data, 4)

	assert.EqualValues(t, 5, p.Data[0].ID)
	assert.Equal(t, "a", p.Data[0].Username)
	assert.Equal(t, "X", p.Data[0].FromName)
	assert.True(t, p.Data[0].Amount.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, "2024-01-01T10:00:00Z", p.Data[0].Datetime)

	assert.EqualValues(t, 12, p.Data[1].ID)
	assert.Empty(t, p.Data[1].Username)
	assert.Equal(t, "2500000.5", p.Data[1].Amount.String())
	assert.Equal(t, "991", p.Data[1].ToLogo)

	assert.Zero(t, p.Data[2].ID)
	assert.True(t, p.Data[2].Amount.IsZero())

	assert.EqualValues(t, 7, p.Data[3].ID)
}

func TestRecordIDForms(t *testing.T) {
	cases := map[string]int64{
		`7`:       7,
		`" 7 "`:   7,
		`7.0`:     7,
		`1e3`:     1000,
		`"7.5"`:   0,
		`"1e3"`:   0,
		`"-3"`:    -3,
		`true`:    0,
		`null`:    0,
		`"seven"`: 0,
	}
	for raw, want := range cases {
		var r Record
		require.NoError(t, json.Unmarshal([]byte(`{"id":`+raw+`}`), &r), raw)
		assert.Equal(t, want, r.ID, raw)
	}
}

func feedServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPollScenario(t *testing.T) {
	srv := feedServer(t, http.StatusOK, `{"data":[{"id":3},{"id":7},{"id":5}]}`)
	p := NewPoller(srv.Client(), time.Second, "test", logx.Nop())

	res := p.Poll(context.Background(), Descriptor{Key: "k", Endpoint: srv.URL}, 4)
	require.Equal(t, StatusOK, res.Status)
	assert.Equal(t, []int64{5, 7}, ids(res.Records))
	assert.EqualValues(t, 7, res.Cursor)

	again := p.Poll(context.Background(), Descriptor{Key: "k", Endpoint: srv.URL}, res.Cursor)
	assert.Equal(t, StatusEmpty, again.Status)
	assert.Empty(t, again.Records)
	assert.EqualValues(t, 7, again.Cursor)
}

func TestPollFailuresKeepCursor(t *testing.T) {
	cases := map[string]*httptest.Server{
		"non-200":   feedServer(t, http.StatusBadGateway, `{"data":[{"id":99}]}`),
		"malformed": feedServer(t, http.StatusOK, `{"data":[`),
		"array":     feedServer(t, http.StatusOK, `[{"id":99}]`),
	}
	for name, srv := range cases {
		t.Run(name, func(t *testing.T) {
			p := NewPoller(srv.Client(), time.Second, "", logx.Nop())
			res := p.Poll(context.Background(), Descriptor{Key: "k", Endpoint: srv.URL}, 10)
			assert.Equal(t, StatusError, res.Status)
			assert.Error(t, res.Err)
			assert.Empty(t, res.Records)
			assert.EqualValues(t, 10, res.Cursor)
		})
	}
}

func TestPollEmptyData(t *testing.T) {
	for _, body := range []string{`{}`, `{"data":[]}`, `{"data":null}`} {
		srv := feedServer(t, http.StatusOK, body)
		p := NewPoller(srv.Client(), time.Second, "", logx.Nop())
		res := p.Poll(context.Background(), Descriptor{Key: "k", Endpoint: srv.URL}, 3)
		assert.Equal(t, StatusEmpty, res.Status, body)
		assert.EqualValues(t, 3, res.Cursor, body)
	}
}

func TestPollTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	p := NewPoller(srv.Client(), 50*time.Millisecond, "", logx.Nop())
	res := p.Poll(context.Background(), Descriptor{Key: "k", Endpoint: srv.URL}, 1)
	assert.Equal(t, StatusError, res.Status)
	assert.EqualValues(t, 1, res.Cursor)
}
