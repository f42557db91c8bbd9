package db

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/stowaway-backend/pkg/logger"
)

func TestQueryLoggerOnlyReportsSlowOrFailedQueries(t *testing.T) {
	buf := &bytes.Buffer{}
	q := newQueryLogger(logger.New(logger.Options{ServiceName: "db-test", Output: buf}), 50*time.Millisecond)
	trace := func() (string, int64) { return "SELECT * FROM tasks", 1 }
	ctx := context.Background()

	q.Trace(ctx, time.Now(), trace, nil)
	q.Trace(ctx, time.Now(), trace, gorm.ErrRecordNotFound)
	if buf.Len() != 0 {
		t.Fatalf("fast and not-found queries must stay quiet: %s", buf.String())
	}

	q.Trace(ctx, time.Now().Add(-time.Second), trace, nil)
	if !strings.Contains(buf.String(), "db.query.slow") || !strings.Contains(buf.String(), "SELECT * FROM tasks") {
		t.Fatalf("expected slow query entry, got %s", buf.String())
	}

	buf.Reset()
	q.Trace(ctx, time.Now(), trace, errors.New("connection refused"))
	if !strings.Contains(buf.String(), "db.query.failed") {
		t.Fatalf("expected failed query entry, got %s", buf.String())
	}
}
