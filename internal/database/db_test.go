package database

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestConnect_Errors(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err := Connect(ctx, "definitely not a dsn", logger)
	assert.ErrorContains(t, err, "unable to parse pgx config")

	// Nothing listens on port 1.
	_, err = Connect(ctx, "postgres://drafts@127.0.0.1:1/drafts?connect_timeout=1", logger)
	assert.ErrorContains(t, err, "db ping error")
}
