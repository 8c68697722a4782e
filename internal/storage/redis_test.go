package storage

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"

	"github.com/rewired-gh/paceoracle/internal/tracker"
)

const testPrefix = "paceoracle:game:"

func newMockStore(t *testing.T) (*RedisStore, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	return newRedisStore(db, testPrefix, time.Hour), mock
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestRedisStore_Load(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()
	st := testState("g1", time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC))

	t.Run("hit decodes the document", func(t *testing.T) {
		mock.ExpectGet(testPrefix + "g1").SetVal(string(mustJSON(t, st)))

		got, err := store.Load(ctx, "g1")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if got == nil || got.GameID != "g1" || len(got.TotalSamples) != 2 {
			t.Errorf("unexpected state: %+v", got)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("Redis expectations not met: %v", err)
		}
	})

	t.Run("miss returns nil", func(t *testing.T) {
		mock.ExpectGet(testPrefix + "g2").RedisNil()

		got, err := store.Load(ctx, "g2")
		if err != nil {
			t.Fatalf("Load should not fail on a miss: %v", err)
		}
		if got != nil {
			t.Errorf("expected nil, got %+v", got)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("Redis expectations not met: %v", err)
		}
	})

	t.Run("redis error is returned", func(t *testing.T) {
		mock.ExpectGet(testPrefix + "g3").SetErr(redis.TxFailedErr)

		if _, err := store.Load(ctx, "g3"); err == nil {
			t.Error("expected error when Redis fails")
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("Redis expectations not met: %v", err)
		}
	})
}

func TestRedisStore_Save(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()
	st := testState("g1", time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC))

	mock.ExpectSet(testPrefix+"g1", mustJSON(t, st), time.Hour).SetVal("OK")
	mock.ExpectSAdd(testPrefix+"index", "g1").SetVal(1)

	if err := store.Save(ctx, st); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Redis expectations not met: %v", err)
	}
}

func TestRedisStore_SaveError(t *testing.T) {
	store, mock := newMockStore(t)
	st := testState("g1", time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC))

	mock.ExpectSet(testPrefix+"g1", mustJSON(t, st), time.Hour).SetErr(redis.TxFailedErr)

	if err := store.Save(context.Background(), st); err == nil {
		t.Error("expected error when Redis fails")
	}
}

func TestRedisStore_Delete(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectDel(testPrefix + "g1").SetVal(1)
	mock.ExpectSRem(testPrefix+"index", "g1").SetVal(1)

	if err := store.Delete(context.Background(), "g1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Redis expectations not met: %v", err)
	}
}

func TestRedisStore_List(t *testing.T) {
	store, mock := newMockStore(t)
	st := testState("g1", time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC))

	mock.ExpectSMembers(testPrefix + "index").SetVal([]string{"g1", "gone"})
	mock.ExpectMGet(testPrefix+"g1", testPrefix+"gone").SetVal([]interface{}{string(mustJSON(t, st)), nil})
	mock.ExpectSRem(testPrefix+"index", "gone").SetVal(1)

	states, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(states) != 1 || states[0].GameID != "g1" {
		t.Errorf("unexpected states: %+v", states)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Redis expectations not met: %v", err)
	}
}

func TestRedisStore_ListEmpty(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectSMembers(testPrefix + "index").SetVal([]string{})

	states, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(states) != 0 {
		t.Errorf("expected no states, got %d", len(states))
	}
}

var (
	_ tracker.StateStore = (*Storage)(nil)
	_ tracker.StateStore = (*RedisStore)(nil)
	_ tracker.Recorder   = (*Storage)(nil)
)
