package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func testResult(id string) *domain.BatchResult {
	return &domain.BatchResult{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		Columns:   domain.RequiredColumns(),
	}
}

func TestResultStore(t *testing.T) {
	store := New(100, time.Minute)

	t.Run("PutAndGet", func(t *testing.T) {
		store.Put(testResult("batch-1"))

		got, ok := store.Get("batch-1")
		if !ok {
			t.Fatal("expected batch-1 to be found")
		}
		if got.ID != "batch-1" {
			t.Errorf("expected 'batch-1', got '%s'", got.ID)
		}
	})

	t.Run("GetMiss", func(t *testing.T) {
		if _, ok := store.Get("nonexistent"); ok {
			t.Error("expected miss for unknown id")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		store.Put(testResult("batch-2"))
		store.Delete("batch-2")

		if _, ok := store.Get("batch-2"); ok {
			t.Error("expected batch-2 to be gone after delete")
		}
	})

	t.Run("PutReplacesExisting", func(t *testing.T) {
		first := testResult("batch-3")
		first.DurationMs = 1
		second := testResult("batch-3")
		second.DurationMs = 2

		store.Put(first)
		store.Put(second)

		got, ok := store.Get("batch-3")
		if !ok {
			t.Fatal("expected batch-3 to be found")
		}
		if got.DurationMs != 2 {
			t.Errorf("expected the replacement result, got duration %d", got.DurationMs)
		}
	})

	t.Run("TTLExpiration", func(t *testing.T) {
		shortStore := New(10, 10*time.Millisecond)
		shortStore.Put(testResult("expiring"))

		// Available immediately
		if _, ok := shortStore.Get("expiring"); !ok {
			t.Error("expected value before expiration")
		}

		// Wait for expiration
		time.Sleep(20 * time.Millisecond)

		if _, ok := shortStore.Get("expiring"); ok {
			t.Error("expected miss after expiration")
		}
		if shortStore.Len() != 0 {
			t.Errorf("expected expired entry removed, got len %d", shortStore.Len())
		}
	})

	t.Run("LRUEviction", func(t *testing.T) {
		smallStore := New(3, time.Minute)

		smallStore.Put(testResult("a"))
		smallStore.Put(testResult("b"))
		smallStore.Put(testResult("c"))

		// Access 'a' to make it recently used
		smallStore.Get("a")

		// Adding 'd' evicts 'b', the least recently used
		smallStore.Put(testResult("d"))

		if _, ok := smallStore.Get("b"); ok {
			t.Error("expected 'b' to be evicted")
		}
		if _, ok := smallStore.Get("a"); !ok {
			t.Error("expected 'a' to still exist")
		}
		if _, ok := smallStore.Get("d"); !ok {
			t.Error("expected 'd' to exist")
		}
	})

	t.Run("Stats", func(t *testing.T) {
		statsStore := New(50, time.Minute)
		statsStore.Put(testResult("s1"))
		statsStore.Put(testResult("s2"))

		size, capacity := statsStore.Stats()
		if size != 2 {
			t.Errorf("expected size 2, got %d", size)
		}
		if capacity != 50 {
			t.Errorf("expected capacity 50, got %d", capacity)
		}
	})
}

func TestResultStoreDefaults(t *testing.T) {
	store := New(0, 0)

	size, capacity := store.Stats()
	if size != 0 {
		t.Errorf("expected empty store, got %d", size)
	}
	if capacity != 100 {
		t.Errorf("expected default capacity 100, got %d", capacity)
	}
}

func TestResultStoreCapacityBound(t *testing.T) {
	store := New(5, time.Minute)

	for i := 0; i < 20; i++ {
		store.Put(testResult(fmt.Sprintf("batch-%d", i)))
	}

	if store.Len() != 5 {
		t.Errorf("expected store bounded at 5, got %d", store.Len())
	}

	// Only the most recent five survive.
	for i := 15; i < 20; i++ {
		if _, ok := store.Get(fmt.Sprintf("batch-%d", i)); !ok {
			t.Errorf("expected batch-%d to survive", i)
		}
	}
	if _, ok := store.Get("batch-0"); ok {
		t.Error("expected batch-0 to be evicted")
	}
}
