package graph

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DefaultDecayInterval is how often the background refresh recomputes
// memory strength.
const DefaultDecayInterval = time.Hour

// RefreshMemoryStrength recomputes the decayed relevance of every edge and
// persists it under properties.memory_strength. It returns the number of
// edges updated. Access metadata is left untouched; only reads through
// Neighbors reinforce an edge.
func (s *Store) RefreshMemoryStrength(ctx context.Context, tau time.Duration) (int, error) {
	edges, err := s.AllEdges(ctx)
	if err != nil {
		return 0, err
	}
	if len(edges) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	updated := 0
	for i := range edges {
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("refresh cancelled: %w", err)
		}
		edge := &edges[i]
		strength := Relevance(edge, now, tau)
		props := edge.Properties
		if props == nil {
			props = map[string]interface{}{}
		}
		props[PropMemoryStrength] = strength
		if _, err := tx.ExecContext(ctx,
			"UPDATE graph_edges SET properties = ? WHERE id = ?",
			marshalProps(props), edge.ID); err != nil {
			return 0, fmt.Errorf("update edge strength: %w", err)
		}
		updated++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit strength refresh: %w", err)
	}
	return updated, nil
}

// DecayLoop runs RefreshMemoryStrength on a fixed interval until the
// context is cancelled. Refresh failures are logged and the loop keeps
// going; a transient write error must not kill the server.
func (s *Store) DecayLoop(ctx context.Context, interval time.Duration, tau time.Duration, log *zap.Logger) {
	if interval <= 0 {
		interval = DefaultDecayInterval
	}
	if log == nil {
		log = zap.NewNop()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("decay loop stopped")
			return
		case <-ticker.C:
			updated, err := s.RefreshMemoryStrength(ctx, tau)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Warn("memory strength refresh failed", zap.Error(err))
				continue
			}
			log.Debug("memory strength refreshed", zap.Int("edges", updated))
		}
	}
}
