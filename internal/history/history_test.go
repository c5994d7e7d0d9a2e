package history

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/THoguet/random-lol/internal/champion"
	"github.com/THoguet/random-lol/internal/random"
	"github.com/THoguet/random-lol/internal/room"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testRoster() *champion.Roster {
	return champion.NewRoster([]champion.Champion{
		{ID: "1", Name: "Aatrox", Roles: []champion.Lane{champion.Top}},
		{ID: "2", Name: "Lee Sin", Roles: []champion.Lane{champion.Jungle}},
		{ID: "3", Name: "Ahri", Roles: []champion.Lane{champion.Mid}},
		{ID: "4", Name: "Jinx", Roles: []champion.Lane{champion.ADC}},
	})
}

func newRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, mr
}

func TestFromEvent(t *testing.T) {
	var events []room.Event
	m := room.New(testRoster(), random.NewSecure(), room.WithObserver(func(ev room.Event) {
		events = append(events, ev)
	}))
	id, err := m.CreateRoom("p1", "Alice")
	require.NoError(t, err)
	_, err = m.RollAllAssignments(id)
	require.NoError(t, err)
	_, err = m.RerollLane(id, champion.Top)
	require.NoError(t, err)
	require.Len(t, events, 2)

	at := time.UnixMilli(1700000000000)
	rec := FromEvent(events[0], at)
	assert.Equal(t, id, rec.RoomID)
	assert.Equal(t, "roll_all", rec.Kind)
	assert.Equal(t, "", rec.Lane)
	assert.Equal(t, map[string]string{
		"top": "Aatrox", "jungle": "Lee Sin", "mid": "Ahri", "adc": "Jinx", "support": "",
	}, rec.Assignments)
	assert.Equal(t, 5, rec.RerollBank)
	assert.Equal(t, at, rec.Time())

	rec = FromEvent(events[1], at)
	assert.Equal(t, "reroll", rec.Kind)
	assert.Equal(t, "top", rec.Lane)
	assert.Equal(t, "", rec.Assignments["top"])
	assert.Equal(t, 4, rec.RerollBank)
}

func TestPublisher_PushesRoomDraws(t *testing.T) {
	rdb, mr := newRedis(t)
	p := NewPublisher(rdb, "", 8, quietLogger())
	m := room.New(testRoster(), random.NewSecure(), room.WithObserver(p.Observe))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	id, err := m.CreateRoom("p1", "Alice")
	require.NoError(t, err)
	_, err = m.RollAllAssignments(id)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		items, _ := mr.List(DefaultQueue)
		return len(items) == 1
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	items, err := mr.List(DefaultQueue)
	require.NoError(t, err)
	var rec Record
	require.NoError(t, json.Unmarshal([]byte(items[0]), &rec))
	assert.Equal(t, id, rec.RoomID)
	assert.Equal(t, "Ahri", rec.Assignments["mid"])
}

func TestPublisher_DropsWhenFull(t *testing.T) {
	rdb, mr := newRedis(t)
	p := NewPublisher(rdb, "drafts", 1, quietLogger())

	p.Observe(room.Event{Kind: room.EventRollAll})
	p.Observe(room.Event{Kind: room.EventRollAll})
	assert.Len(t, p.ch, 1)

	// Cancelled before starting: the buffered record is still drained.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.Run(ctx)
	items, err := mr.List("drafts")
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

type fakeDB struct {
	beginErr  error
	execErr   error
	schema    []string
	committed [][]string
}

func (db *fakeDB) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	db.schema = append(db.schema, sql)
	return pgconn.CommandTag{}, nil
}

func (db *fakeDB) BeginTx(context.Context, pgx.TxOptions) (pgx.Tx, error) {
	if db.beginErr != nil {
		return nil, db.beginErr
	}
	return &fakeTx{db: db}, nil
}

// fakeTx records the rooms it inserted; only the methods the writer uses
// are implemented.
type fakeTx struct {
	pgx.Tx
	db     *fakeDB
	rooms  []string
	closed bool
}

func (tx *fakeTx) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	if tx.db.execErr != nil {
		return pgconn.CommandTag{}, tx.db.execErr
	}
	tx.rooms = append(tx.rooms, args[0].(string))
	return pgconn.CommandTag{}, nil
}

func (tx *fakeTx) Commit(context.Context) error {
	tx.closed = true
	tx.db.committed = append(tx.db.committed, tx.rooms)
	return nil
}

func (tx *fakeTx) Rollback(context.Context) error {
	if tx.closed {
		return pgx.ErrTxClosed
	}
	tx.closed = true
	return nil
}

func pushRecords(t *testing.T, rdb *redis.Client, rooms ...string) {
	t.Helper()
	for _, id := range rooms {
		data, err := json.Marshal(Record{RoomID: id, Kind: "roll_all", Assignments: map[string]string{}})
		require.NoError(t, err)
		require.NoError(t, rdb.RPush(context.Background(), DefaultQueue, data).Err())
	}
}

func TestWriter_BatchesIntoTransactions(t *testing.T) {
	ctx := context.Background()
	rdb, _ := newRedis(t)
	db := &fakeDB{}
	w := NewWriter(rdb, db, "", 2, time.Hour, quietLogger())

	pushRecords(t, rdb, "AAAAAA", "BBBBBB", "CCCCCC")
	for i := 0; i < 3; i++ {
		require.NoError(t, w.poll(ctx))
	}
	assert.Equal(t, [][]string{{"AAAAAA", "BBBBBB"}}, db.committed)
	assert.Equal(t, 1, w.Pending())

	require.NoError(t, w.Flush(ctx))
	assert.Equal(t, [][]string{{"AAAAAA", "BBBBBB"}, {"CCCCCC"}}, db.committed)
	assert.Equal(t, 0, w.Pending())
}

func TestWriter_FailedFlushKeepsBatch(t *testing.T) {
	ctx := context.Background()
	rdb, _ := newRedis(t)
	db := &fakeDB{execErr: errors.New("disk full")}
	w := NewWriter(rdb, db, "", 10, time.Hour, quietLogger())

	pushRecords(t, rdb, "AAAAAA")
	require.NoError(t, w.poll(ctx))
	assert.Error(t, w.Flush(ctx))
	assert.Empty(t, db.committed)
	assert.Equal(t, 1, w.Pending())

	db.execErr = nil
	require.NoError(t, w.Flush(ctx))
	assert.Equal(t, [][]string{{"AAAAAA"}}, db.committed)
}

func TestWriter_SkipsInvalidRecords(t *testing.T) {
	ctx := context.Background()
	rdb, _ := newRedis(t)
	w := NewWriter(rdb, &fakeDB{}, "", 10, time.Hour, quietLogger())

	require.NoError(t, rdb.RPush(ctx, DefaultQueue, "{broken").Err())
	require.NoError(t, w.poll(ctx))
	assert.Equal(t, 0, w.Pending())
}

func TestWriter_RunFlushesOnExit(t *testing.T) {
	rdb, _ := newRedis(t)
	db := &fakeDB{}
	w := NewWriter(rdb, db, "", 10, time.Hour, quietLogger())
	pushRecords(t, rdb, "AAAAAA")

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()
	start := time.Now()
	require.NoError(t, w.Run(ctx))
	assert.Equal(t, [][]string{{"AAAAAA"}}, db.committed)
	assert.Less(t, time.Since(start), 2*pollWait+time.Second)
}

func TestWriter_RunStopsDespiteLongFlushDelay(t *testing.T) {
	rdb, _ := newRedis(t)
	w := NewWriter(rdb, &fakeDB{}, "", 10, 5*time.Second, quietLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2*pollWait + time.Second):
		t.Fatal("Run kept blocking after its context ended")
	}
}

func TestEnsureSchema(t *testing.T) {
	db := &fakeDB{}
	require.NoError(t, EnsureSchema(context.Background(), db))
	require.Len(t, db.schema, 1)
	assert.Contains(t, db.schema[0], "CREATE TABLE IF NOT EXISTS draft_history")
}
