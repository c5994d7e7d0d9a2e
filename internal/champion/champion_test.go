package champion

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/THoguet/random-lol/internal/cache"
)

const feedJSON = `{
	"Aatrox": {"name": "Aatrox", "icon": "http://cdn.example/aatrox.png", "positions": ["TOP"]},
	"Ahri":   {"name": "Ahri", "icon": "https://cdn.example/ahri.png", "positions": ["MIDDLE", "MIDDLE"]},
	"Pyke":   {"name": "Pyke", "icon": "https://cdn.example/pyke.png", "positions": ["SUPPORT", "MIDDLE"]},
	"Ghost":  {"name": "Ghost", "icon": "https://cdn.example/ghost.png", "positions": ["ARAM"]},
	"NoIcon": {"name": "NoIcon", "icon": "", "positions": ["TOP"]},
	"Jinx":   {"name": "Jinx", "icon": "https://cdn.example/jinx.png", "positions": ["BOTTOM"]}
}`

func TestParseLane(t *testing.T) {
	l, err := ParseLane("MID")
	require.NoError(t, err)
	assert.Equal(t, Mid, l)

	_, err = ParseLane("bot")
	assert.ErrorIs(t, err, ErrUnknownLane)
}

func TestRoster_ByLaneAndStamp(t *testing.T) {
	r := NewRoster([]Champion{
		{ID: "2", Name: "Zed", Roles: []Lane{Mid}},
		{ID: "1", Name: "Ahri", Roles: []Lane{Mid, Support}},
	})
	assert.Equal(t, 2, r.Len())
	require.Len(t, r.ByLane(Mid), 2)
	assert.Equal(t, "Ahri", r.ByLane(Mid)[0].Name)
	assert.Len(t, r.ByLane(Support), 1)
	assert.Empty(t, r.ByLane(Top))
	assert.Equal(t, "1|2", r.Stamp())

	c, ok := r.Lookup("Zed")
	assert.True(t, ok)
	assert.Equal(t, "2", c.ID)
}

func TestFetcher_ConvertsFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(feedJSON))
	}))
	defer srv.Close()

	champs, err := NewFetcher(srv.URL).Fetch(context.Background())
	require.NoError(t, err)

	names := make([]string, len(champs))
	for i, c := range champs {
		names[i] = c.Name
	}
	assert.Equal(t, []string{"Aatrox", "Ahri", "Jinx", "Pyke"}, names)

	assert.Equal(t, "https://cdn.example/aatrox.png", champs[0].Icon, "http icons are upgraded")
	assert.Equal(t, []Lane{Mid}, champs[1].Roles, "duplicate positions collapse")
	assert.Equal(t, []Lane{ADC}, champs[2].Roles)
	assert.Equal(t, []Lane{Support, Mid}, champs[3].Roles)
}

func TestFetcher_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewFetcher(srv.URL).Fetch(context.Background())
	require.Error(t, err)
}

type countingSource struct {
	calls atomic.Int32
	fail  int32
	champ []Champion
}

func (s *countingSource) Fetch(ctx context.Context) ([]Champion, error) {
	n := s.calls.Add(1)
	if n <= s.fail {
		return nil, errors.New("feed down")
	}
	return s.champ, nil
}

func newTestCache(t *testing.T) (*cache.JSON, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return cache.NewJSON(rdb, "test:"), mr
}

func TestCachedSource_ServesFromCacheUntilExpired(t *testing.T) {
	c, _ := newTestCache(t)
	src := &countingSource{champ: []Champion{{ID: "1", Name: "Ahri", Roles: []Lane{Mid}, Icon: "x"}}}
	cs := NewCachedSource(src, c, time.Hour, logrus.New())

	now := time.Now()
	cs.now = func() time.Time { return now }

	ctx := context.Background()
	first, err := cs.Fetch(ctx)
	require.NoError(t, err)
	second, err := cs.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, src.calls.Load())

	cs.now = func() time.Time { return now.Add(2 * time.Hour) }
	_, err = cs.Fetch(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, src.calls.Load(), "stale entry triggers a refetch")
}

func TestLoader_RetriesUntilSuccess(t *testing.T) {
	src := &countingSource{fail: 2, champ: []Champion{{ID: "1", Name: "Ahri", Roles: []Lane{Mid}, Icon: "x"}}}
	var got *Roster
	l := &Loader{
		Source:   src,
		Logger:   logrus.New(),
		OnLoad:   func(r *Roster) { got = r },
		MinDelay: time.Millisecond,
		MaxDelay: 2 * time.Millisecond,
	}
	require.NoError(t, l.Run(context.Background()))
	require.NotNil(t, got)
	assert.Equal(t, 1, got.Len())
	assert.EqualValues(t, 3, src.calls.Load())
}

func TestLoader_StopsOnCancel(t *testing.T) {
	src := &countingSource{fail: 1 << 30}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l := &Loader{Source: src, Logger: logrus.New(), MinDelay: time.Hour}
	assert.ErrorIs(t, l.Run(ctx), context.Canceled)
}
