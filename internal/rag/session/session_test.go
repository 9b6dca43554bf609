package session

import "testing"

func TestAppendAndHistoryPreservesOrder(t *testing.T) {
	s := NewStore()
	s.Append("sess-1", "q1", "a1")
	s.Append("sess-1", "q2", "a2")

	got := s.History("sess-1")
	if len(got) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(got))
	}
	if got[0].Question != "q1" || got[1].Question != "q2" {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestHistoryIsIsolatedPerSession(t *testing.T) {
	s := NewStore()
	s.Append("sess-a", "q", "a")
	if got := s.History("sess-b"); len(got) != 0 {
		t.Fatalf("expected empty history for unrelated session, got %+v", got)
	}
}

func TestClearResetsOnlyThatSession(t *testing.T) {
	s := NewStore()
	s.Append("sess-a", "q", "a")
	s.Append("sess-b", "q", "a")

	s.Clear("sess-a")

	if got := s.History("sess-a"); len(got) != 0 {
		t.Fatalf("expected sess-a cleared, got %+v", got)
	}
	if got := s.History("sess-b"); len(got) != 1 {
		t.Fatalf("expected sess-b untouched, got %+v", got)
	}
}

func TestHistoryReturnsCopyNotSharedSlice(t *testing.T) {
	s := NewStore()
	s.Append("sess-a", "q1", "a1")
	got := s.History("sess-a")
	got[0].Question = "mutated"

	again := s.History("sess-a")
	if again[0].Question != "q1" {
		t.Fatalf("expected internal history unaffected by caller mutation, got %q", again[0].Question)
	}
}

func TestAsRetrieveAndAnswerTurnsPreserveContent(t *testing.T) {
	turns := []Turn{{Question: "q", Answer: "a"}}

	rt := AsRetrieveTurns(turns)
	if len(rt) != 1 || rt[0].Question != "q" || rt[0].Answer != "a" {
		t.Fatalf("unexpected retrieve turns: %+v", rt)
	}

	at := AsAnswerTurns(turns)
	if len(at) != 1 || at[0].Question != "q" || at[0].Answer != "a" {
		t.Fatalf("unexpected answer turns: %+v", at)
	}
}
