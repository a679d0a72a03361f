package core

import "testing"

func TestNewChunk_Defaults(t *testing.T) {
	c := NewChunk(ChunkSpec{Type: ChunkTypeUserMessage, Content: Text("hi")})
	if c.ID == "" {
		t.Fatal("expected generated id")
	}
	if c.Retention != RetentionCompressible {
		t.Errorf("expected default retention compressible, got %s", c.Retention)
	}
	if c.Metadata.CreatedAt.IsZero() {
		t.Error("expected creation timestamp")
	}
}

func TestDeriveChunk_LineageAndImmutability(t *testing.T) {
	src := NewChunk(ChunkSpec{
		Type:    ChunkTypeUserMessage,
		Content: Text("original"),
		Custom:  map[string]any{"k": "v"},
	})
	derived := DeriveChunk(src, func(spec *ChunkSpec) {
		spec.Content = Text("changed")
		spec.Retention = RetentionCritical
	})

	if derived.ID == src.ID {
		t.Error("derived chunk must have a new id")
	}
	if len(derived.Metadata.ParentIDs) != 1 || derived.Metadata.ParentIDs[0] != src.ID {
		t.Errorf("derived lineage should reference source, got %v", derived.Metadata.ParentIDs)
	}
	if ContentText(src.Content) != "original" || src.Retention != RetentionCompressible {
		t.Error("source chunk must remain unchanged")
	}
	if ContentText(derived.Content) != "changed" || derived.Retention != RetentionCritical {
		t.Error("overrides not applied to derived chunk")
	}
	if derived.Metadata.Custom["k"] != "v" {
		t.Error("custom metadata should carry over")
	}

	// mutating the derived custom bag must not leak into the source
	derived.Metadata.Custom["k"] = "other"
	if src.Metadata.Custom["k"] != "v" {
		t.Error("custom metadata must be copied, not shared")
	}
}

func TestAppendChild(t *testing.T) {
	container := NewChunk(ChunkSpec{Type: ChunkTypeWorkingHistory, Retention: RetentionCritical})
	next := AppendChild(container, "c1")
	next = AppendChild(next, "c2")
	if len(container.ChildIDs) != 0 {
		t.Error("original container must not gain children")
	}
	if len(next.ChildIDs) != 2 || next.ChildIDs[0] != "c1" || next.ChildIDs[1] != "c2" {
		t.Errorf("unexpected child order: %v", next.ChildIDs)
	}
}

func TestReplaceChildren_InsertsAtFirstRemoved(t *testing.T) {
	container := NewChunk(ChunkSpec{
		Type:     ChunkTypeWorkingHistory,
		ChildIDs: []string{"a", "b", "c", "d"},
	})
	next := ReplaceChildren(container, []string{"b", "d"}, "s")
	want := []string{"a", "s", "c"}
	if len(next.ChildIDs) != len(want) {
		t.Fatalf("got %v, want %v", next.ChildIDs, want)
	}
	for i := range want {
		if next.ChildIDs[i] != want[i] {
			t.Fatalf("got %v, want %v", next.ChildIDs, want)
		}
	}
}

func TestRetentionCompressible(t *testing.T) {
	if RetentionCritical.Compressible() {
		t.Error("critical must never be compressible")
	}
	if RetentionEphemeral.Compressible() {
		t.Error("ephemeral is session-only, not compressible")
	}
	for _, r := range []RetentionStrategy{RetentionCompressible, RetentionBatchCompressible, RetentionDisposable} {
		if !r.Compressible() {
			t.Errorf("%s should be compressible", r)
		}
	}
}
