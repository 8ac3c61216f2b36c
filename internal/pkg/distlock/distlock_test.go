package distlock

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestRunKey(t *testing.T) {
	if got := RunKey("surfside", "c1"); got != "ingest:surfside:c1" {
		t.Errorf("RunKey = %q", got)
	}
	if got := RunKey("vibe", ""); got != "ingest:vibe:all" {
		t.Errorf("RunKey with empty client = %q", got)
	}
}

func TestRedisLockMutualExclusion(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()

	first := NewRedisLock(client, RunKey("surfside", "c1"), time.Minute)
	second := NewRedisLock(client, RunKey("surfside", "c1"), time.Minute)

	ok, err := first.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("first Acquire = %v, %v, want true", ok, err)
	}

	// Same pair: second trigger must be rejected, not queued.
	ok, err = second.Acquire(ctx)
	if err != nil {
		t.Fatalf("second Acquire error: %v", err)
	}
	if ok {
		t.Fatal("second Acquire succeeded while first holds the lock")
	}

	// A different (source, client) pair is unaffected.
	other := NewRedisLock(client, RunKey("vibe", "c1"), time.Minute)
	ok, err = other.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("other pair Acquire = %v, %v, want true", ok, err)
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("Release: %v", err)
	}

	ok, err = second.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("Acquire after release = %v, %v, want true", ok, err)
	}
}

func TestRedisLockReleaseOnlyOwn(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()

	owner := NewRedisLock(client, "ingest:facebook:c2", time.Minute)
	intruder := NewRedisLock(client, "ingest:facebook:c2", time.Minute)

	if ok, _ := owner.Acquire(ctx); !ok {
		t.Fatal("owner failed to acquire")
	}

	// Releasing a lock we never acquired must not free the owner's lock.
	if err := intruder.Release(ctx); err != nil {
		t.Fatalf("intruder Release: %v", err)
	}
	if ok, _ := intruder.Acquire(ctx); ok {
		t.Fatal("intruder acquired a lock that should still be held")
	}
}

func TestPGAdvisoryLockPinsSession(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ctx := context.Background()

	owner := NewPGAdvisoryLock(db, RunKey("surfside", "c1"))
	rival := NewPGAdvisoryLock(db, RunKey("surfside", "c1"))

	mock.ExpectQuery(`SELECT pg_try_advisory_lock`).
		WithArgs(owner.lockID).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))

	ok, err := owner.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("Acquire = %v, %v, want true", ok, err)
	}
	// The acquiring session stays checked out until Release; the unlock
	// below must run on it, not on an arbitrary pooled connection.
	if owner.conn == nil {
		t.Fatal("Acquire did not pin a connection")
	}

	mock.ExpectQuery(`SELECT pg_try_advisory_lock`).
		WithArgs(rival.lockID).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false))

	ok, err = rival.Acquire(ctx)
	if err != nil {
		t.Fatalf("rival Acquire error: %v", err)
	}
	if ok {
		t.Fatal("rival Acquire succeeded while owner holds the lock")
	}
	// A failed acquire must not keep a connection out of the pool.
	if rival.conn != nil {
		t.Fatal("failed Acquire left a connection pinned")
	}

	mock.ExpectExec(`SELECT pg_advisory_unlock`).
		WithArgs(owner.lockID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := owner.Release(ctx); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if owner.conn != nil {
		t.Fatal("Release did not return the connection")
	}

	// Releasing a lock that was never acquired touches nothing.
	if err := rival.Release(ctx); err != nil {
		t.Fatalf("rival Release: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
