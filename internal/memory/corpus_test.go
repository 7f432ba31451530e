package memory

import (
	"context"
	"strings"
	"testing"
	"time"

	"golang.org/x/tools/txtar"
)

// Multi-session dialogue fixtures live in one txtar archive: each file is
// a session, each line one "speaker: content" turn.
const transcriptArchive = `Two short sessions and an empty one.
-- s-planning --
user: we should migrate the search index to the new cluster
assistant: agreed, the old one is at capacity
user: schedule it for the next maintenance window
-- s-support --
user: last night's export job failed again
assistant: the manifest reports a dimension mismatch against the snapshot
-- s-idle --
`

func parseTranscripts(t *testing.T) map[string][][2]string {
	t.Helper()

	sessions := map[string][][2]string{}
	for _, file := range txtar.Parse([]byte(transcriptArchive)).Files {
		var turns [][2]string
		for _, line := range strings.Split(strings.TrimSpace(string(file.Data)), "\n") {
			if line == "" {
				continue
			}
			speaker, content, ok := strings.Cut(line, ": ")
			if !ok {
				t.Fatalf("malformed fixture line %q", line)
			}
			turns = append(turns, [2]string{speaker, content})
		}
		sessions[file.Name] = turns
	}
	return sessions
}

func TestRawIngestFromTranscriptArchive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sessions := parseTranscripts(t)
	for session, turns := range sessions {
		for _, turn := range turns {
			if _, _, err := store.InsertRaw(ctx, session, turn[0], turn[1], nil); err != nil {
				t.Fatalf("insert %s turn: %v", session, err)
			}
		}
	}

	for session, turns := range sessions {
		entries, err := store.ListRawBySession(ctx, session, time.Time{}, time.Time{}, 0)
		if err != nil {
			t.Fatalf("list %s: %v", session, err)
		}
		if len(entries) != len(turns) {
			t.Fatalf("session %s: expected %d entries, got %d", session, len(turns), len(entries))
		}
		for i, e := range entries {
			if e.Speaker != turns[i][0] || e.Content != turns[i][1] {
				t.Errorf("session %s turn %d: got %s/%q", session, i, e.Speaker, e.Content)
			}
			if e.SessionID != session {
				t.Errorf("entry %d leaked into session %s", e.ID, e.SessionID)
			}
		}
	}

	entries, err := store.ListRawBySession(ctx, "s-unknown", time.Time{}, time.Time{}, 0)
	if err != nil {
		t.Fatalf("list unknown session: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("unknown session returned %d entries", len(entries))
	}
}
