// internal/history/writer.go
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Schema creates the table the Writer inserts into.
const Schema = `
CREATE TABLE IF NOT EXISTS draft_history (
	id          BIGSERIAL PRIMARY KEY,
	room_id     TEXT        NOT NULL,
	kind        TEXT        NOT NULL,
	lane        TEXT,
	assignments JSONB       NOT NULL,
	reroll_bank INTEGER     NOT NULL,
	rolled_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS draft_history_room_idx ON draft_history (room_id, rolled_at);
`

const insertRecordQ = `
	INSERT INTO draft_history (room_id, kind, lane, assignments, reroll_bank, rolled_at)
	VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6)
`

// DB is the part of *pgxpool.Pool the Writer needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// EnsureSchema creates the history table when missing.
func EnsureSchema(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// pollWait bounds a single BLPOP so that cancellation is noticed even when
// the flush delay is long.
const pollWait = time.Second

// Writer drains the history queue into Postgres, one transaction per batch.
type Writer struct {
	rdb        *redis.Client
	db         DB
	queue      string
	batchSize  int
	flushDelay time.Duration
	logger     *logrus.Logger

	batch     []Record
	lastFlush time.Time
}

func NewWriter(rdb *redis.Client, db DB, queue string, batchSize int, flushDelay time.Duration, logger *logrus.Logger) *Writer {
	if queue == "" {
		queue = DefaultQueue
	}
	if batchSize < 1 {
		batchSize = 1
	}
	return &Writer{
		rdb:        rdb,
		db:         db,
		queue:      queue,
		batchSize:  batchSize,
		flushDelay: flushDelay,
		logger:     logger,
		batch:      make([]Record, 0, batchSize),
		lastFlush:  time.Now(),
	}
}

// Run pops records until ctx ends. A batch is written when it is full or
// when flushDelay has passed since the last write; what remains is written
// on the way out.
func (w *Writer) Run(ctx context.Context) error {
	defer func() {
		if err := w.Flush(context.Background()); err != nil {
			w.logger.WithError(err).Error("Final history flush failed")
		}
	}()
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if err := w.poll(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.WithError(err).Error("BLPop failed")
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
		if len(w.batch) > 0 && time.Since(w.lastFlush) >= w.flushDelay {
			if err := w.Flush(ctx); err != nil {
				w.logger.WithError(err).Error("History flush failed")
			}
		}
	}
}

// poll waits up to pollWait for one record. Redis counts blocking timeouts
// in whole seconds, so the wait is never shorter than that.
func (w *Writer) poll(ctx context.Context) error {
	res, err := w.rdb.BLPop(ctx, pollWait, w.queue).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	// res[0] is the list name, res[1] the payload.
	if len(res) < 2 {
		return nil
	}

	var rec Record
	if err := json.Unmarshal([]byte(res[1]), &rec); err != nil {
		w.logger.Warnf("Invalid history record: %v", err)
		return nil
	}
	w.batch = append(w.batch, rec)
	if len(w.batch) >= w.batchSize {
		if err := w.Flush(ctx); err != nil {
			w.logger.WithError(err).Error("History flush failed")
		}
	}
	return nil
}

// Flush writes the pending batch in one transaction. On failure the batch
// is kept for the next attempt.
func (w *Writer) Flush(ctx context.Context) error {
	w.lastFlush = time.Now()
	if len(w.batch) == 0 {
		return nil
	}
	err := pgx.BeginTxFunc(ctx, w.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range w.batch {
			if err := insertRecord(ctx, tx, rec); err != nil {
				return fmt.Errorf("insert record for %s: %w", rec.RoomID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	w.logger.Debugf("Flushed %d history records", len(w.batch))
	w.batch = w.batch[:0]
	return nil
}

// Pending is the number of records waiting for the next flush.
func (w *Writer) Pending() int { return len(w.batch) }

func insertRecord(ctx context.Context, tx pgx.Tx, rec Record) error {
	assignments, err := json.Marshal(rec.Assignments)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, insertRecordQ,
		rec.RoomID, rec.Kind, rec.Lane, assignments, rec.RerollBank, rec.Time(),
	)
	return err
}
