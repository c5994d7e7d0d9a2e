// internal/history/publisher.go
package history

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/THoguet/random-lol/internal/room"
)

const DefaultQueue = "random_lol_drafts"

const pushTimeout = 2 * time.Second

// Publisher pushes draw records onto a Redis list for the historian. The
// room hub never waits on Redis: records go through a buffered channel and
// are dropped when it is full.
type Publisher struct {
	rdb    *redis.Client
	queue  string
	logger *logrus.Logger
	ch     chan Record
	now    func() time.Time
}

func NewPublisher(rdb *redis.Client, queue string, buffer int, logger *logrus.Logger) *Publisher {
	if queue == "" {
		queue = DefaultQueue
	}
	return &Publisher{
		rdb:    rdb,
		queue:  queue,
		logger: logger,
		ch:     make(chan Record, buffer),
		now:    time.Now,
	}
}

// Observe is a room.Manager observer.
func (p *Publisher) Observe(ev room.Event) {
	rec := FromEvent(ev, p.now())
	select {
	case p.ch <- rec:
	default:
		p.logger.WithField("room", rec.RoomID).Warn("History queue full, dropping record")
	}
}

// Run pushes queued records until ctx ends, then pushes whatever is still
// buffered.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.drain()
			return
		case rec := <-p.ch:
			p.push(rec)
		}
	}
}

func (p *Publisher) drain() {
	for {
		select {
		case rec := <-p.ch:
			p.push(rec)
		default:
			return
		}
	}
}

func (p *Publisher) push(rec Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		p.logger.WithError(err).Error("Failed to encode history record")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()
	if err := p.rdb.RPush(ctx, p.queue, data).Err(); err != nil {
		p.logger.WithError(err).WithField("room", rec.RoomID).Warn("Failed to publish history record")
	}
}
