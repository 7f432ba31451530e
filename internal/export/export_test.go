package export

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/josephgoksu/MindWing/internal/graph"
	"github.com/josephgoksu/MindWing/internal/memory"
)

const testDims = 4

func newTestStore(t *testing.T, dims int) *memory.Store {
	t.Helper()
	store, err := memory.NewStore(":memory:", dims)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// seedStore fills every tier and returns the id of the vector-anchored
// insight plus the episode embedding for later similarity checks.
func seedStore(t *testing.T, store *memory.Store) (int64, []float32) {
	t.Helper()
	ctx := context.Background()

	if _, _, err := store.InsertRaw(ctx, "s1", "user", "we moved invoices to the new broker",
		map[string]interface{}{"lang": "en"}); err != nil {
		t.Fatalf("insert raw: %v", err)
	}
	if _, _, err := store.InsertRaw(ctx, "s1", "agent", "noted, broker switch recorded", nil); err != nil {
		t.Fatalf("insert raw: %v", err)
	}

	insightID, _, err := store.InsertInsight(ctx, "invoices flow through the rabbitmq broker",
		[]float32{0.1, 0.2, 0.3, 0.4}, []int64{1, 2}, map[string]interface{}{"topic": "infra"})
	if err != nil {
		t.Fatalf("insert insight: %v", err)
	}
	if _, _, err := store.InsertInsight(ctx, "the old kafka pipeline is retired",
		[]float32{0.4, 0.3, 0.2, 0.1}, []int64{1}, nil); err != nil {
		t.Fatalf("insert insight: %v", err)
	}

	if _, err := store.UpdateWorking(ctx, "broker migration is in flight", 0.9, memory.DefaultWorkingPolicy); err != nil {
		t.Fatalf("update working: %v", err)
	}
	second, err := store.UpdateWorking(ctx, "retire the kafka consumer group", 0.4, memory.DefaultWorkingPolicy)
	if err != nil {
		t.Fatalf("update working: %v", err)
	}
	if _, found, err := store.ArchiveWorking(ctx, second.AddedID); err != nil || !found {
		t.Fatalf("archive working: found=%v err=%v", found, err)
	}

	episodeVec := []float32{0.9, 0.1, 0.0, 0.2}
	if _, _, err := store.InsertEpisode(ctx, "why did invoice sync fail", 0.75,
		"check the broker credentials first", episodeVec); err != nil {
		t.Fatalf("insert episode: %v", err)
	}

	g := graph.NewStore(store.DB(), store)
	if _, err := g.AddNode(ctx, "Technology", "rabbitmq",
		map[string]interface{}{"kind": "broker"}, &insightID); err != nil {
		t.Fatalf("add node: %v", err)
	}
	if _, err := g.AddEdge(ctx, "rabbitmq", "invoices", "CARRIES", "Technology", "Concept", 0.9,
		map[string]interface{}{"polarity": "positive"}); err != nil {
		t.Fatalf("add edge: %v", err)
	}

	return insightID, episodeVec
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	source := newTestStore(t, testDims)
	anchorID, episodeVec := seedStore(t, source)

	fs := afero.NewMemMapFs()
	manifest, err := Snapshot(ctx, source, fs, "/snap")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	if manifest.SchemaVersion != SchemaVersion {
		t.Errorf("schema version = %d, want %d", manifest.SchemaVersion, SchemaVersion)
	}
	if manifest.Dimensions != testDims {
		t.Errorf("dimensions = %d, want %d", manifest.Dimensions, testDims)
	}
	wantCounts := map[string]int{
		RawFile:      2,
		InsightsFile: 2,
		WorkingFile:  1,
		StaleFile:    1,
		EpisodesFile: 1,
		NodesFile:    2,
		EdgesFile:    1,
	}
	if !reflect.DeepEqual(manifest.Counts, wantCounts) {
		t.Errorf("counts = %v, want %v", manifest.Counts, wantCounts)
	}
	for _, name := range []string{ManifestFile, RawFile, InsightsFile, WorkingFile,
		StaleFile, EpisodesFile, NodesFile, EdgesFile} {
		ok, err := afero.Exists(fs, filepath.Join("/snap", name))
		if err != nil || !ok {
			t.Errorf("snapshot file %s missing (err=%v)", name, err)
		}
	}

	target := newTestStore(t, testDims)
	restored, err := Restore(ctx, target, fs, "/snap")
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !reflect.DeepEqual(restored.Counts, wantCounts) {
		t.Errorf("restored counts = %v, want %v", restored.Counts, wantCounts)
	}

	sourceRaw, err := source.ListRawBySession(ctx, "s1", time.Time{}, time.Time{}, 10)
	if err != nil {
		t.Fatalf("list source raw: %v", err)
	}
	targetRaw, err := target.ListRawBySession(ctx, "s1", time.Time{}, time.Time{}, 10)
	if err != nil {
		t.Fatalf("list target raw: %v", err)
	}
	if !reflect.DeepEqual(sourceRaw, targetRaw) {
		t.Errorf("raw tier diverged:\n source %+v\n target %+v", sourceRaw, targetRaw)
	}

	sourceInsight, _, err := source.GetInsight(ctx, anchorID)
	if err != nil {
		t.Fatalf("get source insight: %v", err)
	}
	targetInsight, found, err := target.GetInsight(ctx, anchorID)
	if err != nil || !found {
		t.Fatalf("get target insight: found=%v err=%v", found, err)
	}
	if !reflect.DeepEqual(sourceInsight, targetInsight) {
		t.Errorf("insight diverged:\n source %+v\n target %+v", sourceInsight, targetInsight)
	}

	// The restore path inserts through the FTS trigger, so lexical search
	// must work on the restored database without any rebuild step.
	hits, err := target.SearchInsightsByText(ctx, "rabbitmq", 5)
	if err != nil {
		t.Fatalf("text search on restored store: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != anchorID {
		t.Errorf("restored FTS index returned %+v, want insight %d", hits, anchorID)
	}

	sourceWorking, _ := source.ListWorking(ctx)
	targetWorking, err := target.ListWorking(ctx)
	if err != nil {
		t.Fatalf("list target working: %v", err)
	}
	if !reflect.DeepEqual(sourceWorking, targetWorking) {
		t.Errorf("working tier diverged:\n source %+v\n target %+v", sourceWorking, targetWorking)
	}

	sourceStale, _ := source.ListStale(ctx, 0, 10)
	targetStale, err := target.ListStale(ctx, 0, 10)
	if err != nil {
		t.Fatalf("list target stale: %v", err)
	}
	if !reflect.DeepEqual(sourceStale, targetStale) {
		t.Errorf("stale tier diverged:\n source %+v\n target %+v", sourceStale, targetStale)
	}
	if len(targetStale) != 1 || targetStale[0].Reason != memory.ReasonManualArchive {
		t.Errorf("stale reason lost: %+v", targetStale)
	}

	sourceEpisodes, _ := source.ListEpisodes(ctx, 10)
	targetEpisodes, err := target.ListEpisodes(ctx, 10)
	if err != nil {
		t.Fatalf("list target episodes: %v", err)
	}
	if !reflect.DeepEqual(sourceEpisodes, targetEpisodes) {
		t.Errorf("episode tier diverged:\n source %+v\n target %+v", sourceEpisodes, targetEpisodes)
	}
	recalled, err := target.SearchEpisodes(ctx, episodeVec, 0.99, 5)
	if err != nil {
		t.Fatalf("search restored episodes: %v", err)
	}
	if len(recalled) != 1 {
		t.Errorf("restored episode embedding not recallable: %+v", recalled)
	}

	targetGraph := graph.NewStore(target.DB(), target)
	node, err := targetGraph.NodeByName(ctx, "rabbitmq")
	if err != nil {
		t.Fatalf("node lookup: %v", err)
	}
	if node == nil {
		t.Fatal("rabbitmq node missing after restore")
	}
	if node.VectorID == nil || *node.VectorID != anchorID {
		t.Errorf("vector anchor lost: %+v", node.VectorID)
	}
	if node.Properties["kind"] != "broker" {
		t.Errorf("node properties lost: %v", node.Properties)
	}

	sourceEdges, _ := graph.NewStore(source.DB(), source).AllEdges(ctx)
	targetEdges, err := targetGraph.AllEdges(ctx)
	if err != nil {
		t.Fatalf("list target edges: %v", err)
	}
	if !reflect.DeepEqual(sourceEdges, targetEdges) {
		t.Errorf("edges diverged:\n source %+v\n target %+v", sourceEdges, targetEdges)
	}
	if len(targetEdges) != 1 || targetEdges[0].Relation != "CARRIES" || targetEdges[0].Weight != 0.9 {
		t.Errorf("edge content lost: %+v", targetEdges)
	}

	// Exporting the restored store must reproduce the tier files byte for
	// byte; only the manifest timestamp may differ.
	if _, err := Snapshot(ctx, target, fs, "/snap2"); err != nil {
		t.Fatalf("re-snapshot: %v", err)
	}
	for _, name := range []string{RawFile, InsightsFile, WorkingFile, StaleFile,
		EpisodesFile, NodesFile, EdgesFile} {
		a, err := afero.ReadFile(fs, filepath.Join("/snap", name))
		if err != nil {
			t.Fatalf("read first export %s: %v", name, err)
		}
		b, err := afero.ReadFile(fs, filepath.Join("/snap2", name))
		if err != nil {
			t.Fatalf("read second export %s: %v", name, err)
		}
		if !bytes.Equal(a, b) {
			t.Errorf("%s is not stable across export/restore/export:\n first %s\n second %s", name, a, b)
		}
	}
}

func TestSnapshotEmptyStore(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, testDims)
	fs := afero.NewMemMapFs()

	manifest, err := Snapshot(ctx, store, fs, "/empty")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	for file, n := range manifest.Counts {
		if n != 0 {
			t.Errorf("count for %s = %d, want 0", file, n)
		}
	}
	if len(manifest.Counts) != 7 {
		t.Errorf("expected 7 tier counts, got %v", manifest.Counts)
	}

	target := newTestStore(t, testDims)
	if _, err := Restore(ctx, target, fs, "/empty"); err != nil {
		t.Fatalf("restore empty snapshot: %v", err)
	}
}

func TestRestoreDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	source := newTestStore(t, testDims)
	seedStore(t, source)

	fs := afero.NewMemMapFs()
	if _, err := Snapshot(ctx, source, fs, "/snap"); err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	target := newTestStore(t, 8)
	_, err := Restore(ctx, target, fs, "/snap")
	if err == nil {
		t.Fatal("expected dimension mismatch error")
	}
	if !strings.Contains(err.Error(), "dimensions") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRestoreMissingManifest(t *testing.T) {
	ctx := context.Background()
	target := newTestStore(t, testDims)

	_, err := Restore(ctx, target, afero.NewMemMapFs(), "/nowhere")
	if err == nil {
		t.Fatal("expected error for missing manifest")
	}
	if !strings.Contains(err.Error(), "read manifest") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRestoreRejectsFutureSchema(t *testing.T) {
	ctx := context.Background()
	target := newTestStore(t, testDims)

	fs := afero.NewMemMapFs()
	manifest := fmt.Sprintf(`{"schema_version":%d,"dimensions":%d,"exported_at":"2026-01-02T03:04:05Z","counts":{}}`,
		SchemaVersion+1, testDims)
	if err := afero.WriteFile(fs, "/snap/manifest.json", []byte(manifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	_, err := Restore(ctx, target, fs, "/snap")
	if err == nil {
		t.Fatal("expected schema version error")
	}
	if !strings.Contains(err.Error(), "not supported") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRestoreRejectsCorruptEmbedding(t *testing.T) {
	ctx := context.Background()

	writeSnapshot := func(t *testing.T, insightLine string) afero.Fs {
		t.Helper()
		fs := afero.NewMemMapFs()
		manifest := fmt.Sprintf(`{"schema_version":1,"dimensions":%d,"exported_at":"2026-01-02T03:04:05Z","counts":{}}`, testDims)
		if err := afero.WriteFile(fs, "/snap/manifest.json", []byte(manifest), 0o644); err != nil {
			t.Fatalf("write manifest: %v", err)
		}
		if err := afero.WriteFile(fs, "/snap/insights.jsonl", []byte(insightLine+"\n"), 0o644); err != nil {
			t.Fatalf("write insights: %v", err)
		}
		return fs
	}

	t.Run("bad base64", func(t *testing.T) {
		target := newTestStore(t, testDims)
		fs := writeSnapshot(t, `{"id":1,"content":"x","embedding":"!!!","source_ids":[1],"created_at":"2026-01-02T03:04:05Z"}`)
		_, err := Restore(ctx, target, fs, "/snap")
		if err == nil || !strings.Contains(err.Error(), "decode embedding") {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("wrong dimensions", func(t *testing.T) {
		target := newTestStore(t, testDims)
		short := base64.StdEncoding.EncodeToString(make([]byte, 4))
		fs := writeSnapshot(t, fmt.Sprintf(
			`{"id":1,"content":"x","embedding":"%s","source_ids":[1],"created_at":"2026-01-02T03:04:05Z"}`, short))
		_, err := Restore(ctx, target, fs, "/snap")
		if err == nil || !strings.Contains(err.Error(), "store expects 4") {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestRestoreToleratesMissingTierFiles(t *testing.T) {
	ctx := context.Background()
	target := newTestStore(t, testDims)

	fs := afero.NewMemMapFs()
	manifest := fmt.Sprintf(`{"schema_version":1,"dimensions":%d,"exported_at":"2026-01-02T03:04:05Z","counts":{}}`, testDims)
	if err := afero.WriteFile(fs, "/snap/manifest.json", []byte(manifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	if err := afero.WriteFile(fs, "/snap/working_memory.jsonl",
		[]byte(`{"id":1,"content":"only tier present","importance":0.5,"last_accessed":"2026-01-02T03:04:05Z","created_at":"2026-01-02T03:04:05Z"}`+"\n"), 0o644); err != nil {
		t.Fatalf("write working tier: %v", err)
	}

	if _, err := Restore(ctx, target, fs, "/snap"); err != nil {
		t.Fatalf("restore partial snapshot: %v", err)
	}
	items, err := target.ListWorking(ctx)
	if err != nil {
		t.Fatalf("list working: %v", err)
	}
	if len(items) != 1 || items[0].Content != "only tier present" {
		t.Errorf("partial restore lost the present tier: %+v", items)
	}
}
