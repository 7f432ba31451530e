package nuance

import (
	"context"
	"errors"
	"testing"

	"github.com/josephgoksu/MindWing/internal/graph"
	"github.com/josephgoksu/MindWing/internal/memory"
	"github.com/josephgoksu/MindWing/types"
)

func newTestEngine(t *testing.T) (*Engine, *graph.Store) {
	t.Helper()
	mem, err := memory.NewStore(":memory:", 4)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = mem.Close() })
	g := graph.NewStore(mem.DB(), mem)
	return NewEngine(g, Options{}), g
}

func addEdge(t *testing.T, g *graph.Store, source, target, relation string, props map[string]interface{}) string {
	t.Helper()
	id, err := g.AddEdge(context.Background(), source, target, relation, "", "", 1.0, props)
	if err != nil {
		t.Fatalf("add edge %s %s %s: %v", source, relation, target, err)
	}
	return id
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	var mcpErr *types.MCPError
	if !errors.As(err, &mcpErr) {
		t.Fatalf("error %v is not an MCPError", err)
	}
	if mcpErr.Code != code {
		t.Fatalf("error code = %s, want %s", mcpErr.Code, code)
	}
}

func TestDetectEdgeExclusiveRelations(t *testing.T) {
	engine, g := newTestEngine(t)
	ctx := context.Background()

	supports := addEdge(t, g, "claim", "theory", "SUPPORTS", nil)
	contradicts := addEdge(t, g, "claim", "theory", "CONTRADICTS", nil)

	opened, err := engine.DetectEdge(ctx, contradicts)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(opened) != 1 {
		t.Fatalf("opened %d reviews, want 1", len(opened))
	}
	r := opened[0]
	if r.Status != StatusPending {
		t.Errorf("status = %s, want %s", r.Status, StatusPending)
	}
	if r.EdgeAID != contradicts || r.EdgeBID != supports {
		t.Errorf("review pairs %s/%s, want %s/%s", r.EdgeAID, r.EdgeBID, contradicts, supports)
	}

	pending := engine.PendingEdgeIDs()
	if _, ok := pending[supports]; !ok {
		t.Errorf("pending set missing edge %s", supports)
	}
	if _, ok := pending[contradicts]; !ok {
		t.Errorf("pending set missing edge %s", contradicts)
	}
}

func TestDetectEdgeOpposedPolarity(t *testing.T) {
	engine, g := newTestEngine(t)
	ctx := context.Background()

	// Same relation in opposite directions with opposed polarity.
	addEdge(t, g, "cache", "broker", "DEPENDS_ON", map[string]interface{}{graph.PropPolarity: "positive"})
	back := addEdge(t, g, "broker", "cache", "DEPENDS_ON", map[string]interface{}{graph.PropPolarity: "negative"})

	opened, err := engine.DetectEdge(ctx, back)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(opened) != 1 {
		t.Fatalf("opened %d reviews, want 1", len(opened))
	}
	if opened[0].Reason == "" {
		t.Error("review carries no reason")
	}
}

func TestDetectEdgeNoConflict(t *testing.T) {
	engine, g := newTestEngine(t)
	ctx := context.Background()

	addEdge(t, g, "service", "redis", "USES", nil)
	edge := addEdge(t, g, "service", "redis", "SUPPORTS", nil)

	opened, err := engine.DetectEdge(ctx, edge)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(opened) != 0 {
		t.Fatalf("opened %d reviews for compatible relations, want 0", len(opened))
	}
}

func TestDetectEdgeDoesNotReopen(t *testing.T) {
	engine, g := newTestEngine(t)
	ctx := context.Background()

	addEdge(t, g, "a", "b", "USES", nil)
	avoids := addEdge(t, g, "a", "b", "AVOIDS", nil)

	first, err := engine.DetectEdge(ctx, avoids)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("opened %d reviews, want 1", len(first))
	}

	second, err := engine.DetectEdge(ctx, avoids)
	if err != nil {
		t.Fatalf("re-detect: %v", err)
	}
	if len(second) != 0 {
		t.Fatalf("re-detect opened %d reviews, want 0", len(second))
	}
	if got := len(engine.Reviews()); got != 1 {
		t.Errorf("registry holds %d reviews, want 1", got)
	}
}

func TestDetectEdgeSkipsSuperseded(t *testing.T) {
	engine, g := newTestEngine(t)
	ctx := context.Background()

	supports := addEdge(t, g, "a", "b", "SUPPORTS", nil)
	if err := g.SetEdgeProperty(ctx, supports, graph.PropSupersededBy, "elsewhere"); err != nil {
		t.Fatalf("supersede: %v", err)
	}
	contradicts := addEdge(t, g, "a", "b", "CONTRADICTS", nil)

	opened, err := engine.DetectEdge(ctx, contradicts)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(opened) != 0 {
		t.Fatalf("opened %d reviews against a superseded edge, want 0", len(opened))
	}
}

func TestDetectEdgeUnknown(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.DetectEdge(context.Background(), "no-such-edge")
	assertCode(t, err, types.ErrNotFound)
}

func TestScanAll(t *testing.T) {
	engine, g := newTestEngine(t)
	ctx := context.Background()

	addEdge(t, g, "a", "b", "SUPPORTS", nil)
	addEdge(t, g, "a", "b", "CONTRADICTS", nil)
	addEdge(t, g, "c", "d", "USES", nil)
	addEdge(t, g, "c", "d", "AVOIDS", nil)
	addEdge(t, g, "e", "f", "SOLVES", nil)

	opened, err := engine.ScanAll(ctx)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(opened) != 2 {
		t.Fatalf("scan opened %d reviews, want 2", len(opened))
	}

	again, err := engine.ScanAll(ctx)
	if err != nil {
		t.Fatalf("rescan: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("rescan opened %d reviews, want 0", len(again))
	}
}

func TestResolveBothStand(t *testing.T) {
	engine, g := newTestEngine(t)
	ctx := context.Background()

	solves := addEdge(t, g, "patch", "bug", "SOLVES", nil)
	causes := addEdge(t, g, "patch", "bug", "CAUSES", nil)
	opened, err := engine.DetectEdge(ctx, causes)
	if err != nil || len(opened) != 1 {
		t.Fatalf("detect: %v (%d reviews)", err, len(opened))
	}

	resolved, err := engine.Resolve(ctx, opened[0].ID, "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Status != StatusResolved {
		t.Errorf("status = %s, want %s", resolved.Status, StatusResolved)
	}
	if resolved.ResolvedAt == nil {
		t.Error("resolved review has no resolution time")
	}
	if len(engine.PendingEdgeIDs()) != 0 {
		t.Error("pending set not cleared after resolution")
	}

	for _, id := range []string{solves, causes} {
		edge, err := g.EdgeByID(ctx, id)
		if err != nil {
			t.Fatalf("fetch edge: %v", err)
		}
		if edge.Superseded() {
			t.Errorf("edge %s retired by a both-stand resolution", id)
		}
	}
}

func TestResolveSupersedes(t *testing.T) {
	engine, g := newTestEngine(t)
	ctx := context.Background()

	uses := addEdge(t, g, "svc", "db", "USES", nil)
	avoids := addEdge(t, g, "svc", "db", "AVOIDS", nil)
	opened, err := engine.DetectEdge(ctx, avoids)
	if err != nil || len(opened) != 1 {
		t.Fatalf("detect: %v (%d reviews)", err, len(opened))
	}

	resolved, err := engine.Resolve(ctx, opened[0].ID, uses)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Status != StatusSuperseded {
		t.Errorf("status = %s, want %s", resolved.Status, StatusSuperseded)
	}

	loser, err := g.EdgeByID(ctx, avoids)
	if err != nil {
		t.Fatalf("fetch edge: %v", err)
	}
	if !loser.Superseded() {
		t.Fatal("losing edge not marked superseded")
	}
	if got := loser.Properties[graph.PropSupersededBy]; got != uses {
		t.Errorf("superseded_by = %v, want %s", got, uses)
	}

	winner, err := g.EdgeByID(ctx, uses)
	if err != nil {
		t.Fatalf("fetch edge: %v", err)
	}
	if winner.Superseded() {
		t.Error("winning edge marked superseded")
	}

	// A settled review cannot be resolved twice.
	_, err = engine.Resolve(ctx, opened[0].ID, "")
	assertCode(t, err, types.ErrValidation)
}

func TestResolveValidation(t *testing.T) {
	engine, g := newTestEngine(t)
	ctx := context.Background()

	addEdge(t, g, "x", "y", "SUPPORTS", nil)
	edge := addEdge(t, g, "x", "y", "CONTRADICTS", nil)
	opened, err := engine.DetectEdge(ctx, edge)
	if err != nil || len(opened) != 1 {
		t.Fatalf("detect: %v (%d reviews)", err, len(opened))
	}

	_, err = engine.Resolve(ctx, "missing-review", "")
	assertCode(t, err, types.ErrNotFound)

	_, err = engine.Resolve(ctx, opened[0].ID, "unrelated-edge")
	assertCode(t, err, types.ErrValidation)

	// A failed resolution leaves the review pending.
	if r, ok := engine.Get(opened[0].ID); !ok || r.Status != StatusPending {
		t.Errorf("review status after failed resolve = %v, want PENDING", r.Status)
	}
}
