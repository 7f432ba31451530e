package memory

import (
	"context"
	"testing"
)

func TestInsertEpisodeValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	vec := []float32{1, 0, 0, 0}

	if _, _, err := store.InsertEpisode(ctx, "", 0.5, "reflection", vec); err == nil {
		t.Error("blank query accepted")
	}
	if _, _, err := store.InsertEpisode(ctx, "q", 0.5, "", vec); err == nil {
		t.Error("blank reflection accepted")
	}
	if _, _, err := store.InsertEpisode(ctx, "q", 1.5, "r", vec); err == nil {
		t.Error("reward > 1 accepted")
	}
	if _, _, err := store.InsertEpisode(ctx, "q", -2, "r", vec); err == nil {
		t.Error("reward < -1 accepted")
	}
	if _, _, err := store.InsertEpisode(ctx, "q", 0.5, "r", []float32{1}); err == nil {
		t.Error("short embedding accepted")
	}

	// Boundary rewards are legal.
	if _, _, err := store.InsertEpisode(ctx, "q", -1, "full penalty", vec); err != nil {
		t.Errorf("reward -1 rejected: %v", err)
	}
	if _, _, err := store.InsertEpisode(ctx, "q", 1, "full reward", vec); err != nil {
		t.Errorf("reward 1 rejected: %v", err)
	}
}

func TestListEpisodesNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	vec := []float32{1, 0, 0, 0}

	id1, _, err := store.InsertEpisode(ctx, "first", 0.1, "r1", vec)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	id2, _, err := store.InsertEpisode(ctx, "second", 0.2, "r2", vec)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	episodes, err := store.ListEpisodes(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(episodes) != 2 {
		t.Fatalf("expected 2 episodes, got %d", len(episodes))
	}
	if episodes[0].ID != id2 || episodes[1].ID != id1 {
		t.Errorf("order = [%d %d], want newest first [%d %d]",
			episodes[0].ID, episodes[1].ID, id2, id1)
	}
}

func TestSearchEpisodesBySimilarity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	near, _, err := store.InsertEpisode(ctx, "tuning retrieval", 0.8, "boost worked", []float32{1, 0, 0, 0})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, _, err := store.InsertEpisode(ctx, "unrelated", -0.2, "wrong path", []float32{0, 0, 1, 0}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	results, err := store.SearchEpisodes(ctx, []float32{1, 0, 0, 0}, 0.5, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].ID != near {
		t.Fatalf("results = %+v, want only the aligned episode", results)
	}
	if results[0].Similarity < 0.99 {
		t.Errorf("similarity = %v, want ~1", results[0].Similarity)
	}
}
