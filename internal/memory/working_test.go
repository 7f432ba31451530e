package memory

import (
	"context"
	"fmt"
	"testing"
)

func fillWorking(t *testing.T, store *Store, importances []float64) []int64 {
	t.Helper()

	ids := make([]int64, 0, len(importances))
	for i, imp := range importances {
		res, err := store.UpdateWorking(context.Background(),
			fmt.Sprintf("item %d", i+1), imp, DefaultWorkingPolicy)
		if err != nil {
			t.Fatalf("insert item %d: %v", i+1, err)
		}
		if res.EvictedID != nil {
			t.Fatalf("unexpected eviction while filling at item %d", i+1)
		}
		ids = append(ids, res.AddedID)
	}
	return ids
}

func TestWorkingEvictionLRU(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var ids []int64
	for i := 1; i <= DefaultWorkingPolicy.Capacity; i++ {
		res, err := store.UpdateWorking(ctx, fmt.Sprintf("m%d", i), 0.5, DefaultWorkingPolicy)
		if err != nil {
			t.Fatalf("insert m%d: %v", i, err)
		}
		ids = append(ids, res.AddedID)
	}

	res, err := store.UpdateWorking(ctx, "m11", 0.5, DefaultWorkingPolicy)
	if err != nil {
		t.Fatalf("insert m11: %v", err)
	}

	if res.EvictedID == nil {
		t.Fatal("expected an eviction")
	}
	if *res.EvictedID != ids[0] {
		t.Errorf("evicted id = %d, want oldest %d", *res.EvictedID, ids[0])
	}
	if res.ArchivedID == nil {
		t.Fatal("expected an archive record")
	}

	count, err := store.CountWorking(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != DefaultWorkingPolicy.Capacity {
		t.Errorf("working set size = %d, want %d", count, DefaultWorkingPolicy.Capacity)
	}

	stale, err := store.ListStale(ctx, 0, 10)
	if err != nil {
		t.Fatalf("list stale: %v", err)
	}
	if len(stale) != 1 {
		t.Fatalf("expected 1 stale item, got %d", len(stale))
	}
	if stale[0].OriginalContent != "m1" {
		t.Errorf("stale content = %q, want %q", stale[0].OriginalContent, "m1")
	}
	if stale[0].Importance != 0.5 {
		t.Errorf("stale importance = %v, want exact copy 0.5", stale[0].Importance)
	}
	if stale[0].Reason != ReasonLRUEviction {
		t.Errorf("stale reason = %q, want %q", stale[0].Reason, ReasonLRUEviction)
	}
}

func TestWorkingCriticalOverride(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Ten criticals fill the set; the non-critical newcomer is the only
	// evictable item and is archived immediately.
	criticals := make([]float64, DefaultWorkingPolicy.Capacity)
	for i := range criticals {
		criticals[i] = 0.9
	}
	ids := fillWorking(t, store, criticals)

	res, err := store.UpdateWorking(ctx, "fleeting thought", 0.5, DefaultWorkingPolicy)
	if err != nil {
		t.Fatalf("insert over capacity: %v", err)
	}

	if res.EvictedID == nil {
		t.Fatal("expected an eviction")
	}
	if *res.EvictedID != res.AddedID {
		t.Errorf("evicted id = %d, want the new non-critical item %d", *res.EvictedID, res.AddedID)
	}

	// Every critical item is retained.
	items, err := store.ListWorking(ctx)
	if err != nil {
		t.Fatalf("list working: %v", err)
	}
	if len(items) != DefaultWorkingPolicy.Capacity {
		t.Fatalf("working set size = %d, want %d", len(items), DefaultWorkingPolicy.Capacity)
	}
	remaining := make(map[int64]bool, len(items))
	for _, item := range items {
		remaining[item.ID] = true
	}
	for _, id := range ids {
		if !remaining[id] {
			t.Errorf("critical item %d was evicted", id)
		}
	}

	stale, err := store.ListStale(ctx, 0, 10)
	if err != nil {
		t.Fatalf("list stale: %v", err)
	}
	if len(stale) != 1 || stale[0].OriginalContent != "fleeting thought" {
		t.Fatalf("stale archive = %+v, want the non-critical newcomer", stale)
	}
}

func TestWorkingCriticalItemSurvivesLRU(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Oldest item is critical (0.95 > threshold); the rest are ordinary.
	importances := make([]float64, DefaultWorkingPolicy.Capacity)
	importances[0] = 0.95
	for i := 1; i < len(importances); i++ {
		importances[i] = 0.3
	}
	ids := fillWorking(t, store, importances)

	res, err := store.UpdateWorking(ctx, "one past capacity", 0.5, DefaultWorkingPolicy)
	if err != nil {
		t.Fatalf("insert over capacity: %v", err)
	}

	if res.EvictedID == nil {
		t.Fatal("expected an eviction")
	}
	if *res.EvictedID != ids[1] {
		t.Errorf("evicted id = %d, want second-oldest %d", *res.EvictedID, ids[1])
	}

	// The critical item is untouched.
	items, err := store.ListWorking(ctx)
	if err != nil {
		t.Fatalf("list working: %v", err)
	}
	found := false
	for _, item := range items {
		if item.ID == ids[0] {
			found = true
		}
	}
	if !found {
		t.Error("critical item was evicted")
	}
}

func TestWorkingForcedEviction(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Every resident exceeds the critical threshold.
	importances := make([]float64, DefaultWorkingPolicy.Capacity)
	for i := range importances {
		importances[i] = 0.9
	}
	ids := fillWorking(t, store, importances)

	res, err := store.UpdateWorking(ctx, "one past capacity", 0.85, DefaultWorkingPolicy)
	if err != nil {
		t.Fatalf("insert over capacity: %v", err)
	}

	if res.EvictedID == nil {
		t.Fatal("expected a forced eviction")
	}
	if *res.EvictedID != ids[0] {
		t.Errorf("evicted id = %d, want oldest %d despite high importance", *res.EvictedID, ids[0])
	}

	count, err := store.CountWorking(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != DefaultWorkingPolicy.Capacity {
		t.Errorf("working set size = %d, want %d", count, DefaultWorkingPolicy.Capacity)
	}

	stale, err := store.ListStale(ctx, 0, 10)
	if err != nil {
		t.Fatalf("list stale: %v", err)
	}
	if len(stale) != 1 || stale[0].Reason != ReasonLRUEviction {
		t.Fatalf("expected 1 LRU_EVICTION stale row, got %+v", stale)
	}
}

func TestWorkingValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.UpdateWorking(ctx, "   ", 0.5, DefaultWorkingPolicy); err == nil {
		t.Error("blank content accepted")
	}
	if _, err := store.UpdateWorking(ctx, "x", 1.5, DefaultWorkingPolicy); err == nil {
		t.Error("importance > 1 accepted")
	}
	if _, err := store.UpdateWorking(ctx, "x", -0.1, DefaultWorkingPolicy); err == nil {
		t.Error("importance < 0 accepted")
	}

	count, err := store.CountWorking(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("rejected inserts left %d rows behind", count)
	}
}

func TestArchiveWorkingManual(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	res, err := store.UpdateWorking(ctx, "keep me for later", 0.7, DefaultWorkingPolicy)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	archivedID, found, err := store.ArchiveWorking(ctx, res.AddedID)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if !found {
		t.Fatal("existing item reported not found")
	}
	if archivedID == 0 {
		t.Error("archived id not reported")
	}

	count, err := store.CountWorking(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("item still in working set after archive")
	}

	stale, err := store.ListStale(ctx, 0, 10)
	if err != nil {
		t.Fatalf("list stale: %v", err)
	}
	if len(stale) != 1 || stale[0].Reason != ReasonManualArchive {
		t.Fatalf("expected 1 MANUAL_ARCHIVE row, got %+v", stale)
	}

	// Archiving a missing id is graceful.
	_, found, err = store.ArchiveWorking(ctx, 9999)
	if err != nil {
		t.Fatalf("archive missing: %v", err)
	}
	if found {
		t.Error("missing id reported found")
	}
}
