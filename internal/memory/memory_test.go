package memory

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/familyconnect/familyconnect/internal/core"
)

func TestRecordFIFOEviction(t *testing.T) {
	tests := []struct {
		appends int
		wantLen int
	}{
		{0, 0},
		{1, 1},
		{19, 19},
		{20, 20},
		{21, 20},
		{57, 20},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("appends=%d", tt.appends), func(t *testing.T) {
			s := NewStore()
			for i := 0; i < tt.appends; i++ {
				s.Record(core.AgentGrace, Interaction{Text: fmt.Sprintf("msg-%d", i)})
			}

			snap := s.Snapshot(core.AgentGrace)
			if len(snap.ShortTerm) != tt.wantLen {
				t.Fatalf("ShortTerm length = %d, want %d", len(snap.ShortTerm), tt.wantLen)
			}

			// Tail must be the most recent insertions in insertion order.
			for i, in := range snap.ShortTerm {
				want := fmt.Sprintf("msg-%d", tt.appends-tt.wantLen+i)
				if in.Text != want {
					t.Errorf("ShortTerm[%d].Text = %q, want %q", i, in.Text, want)
				}
			}
		})
	}
}

func TestRecentReturnsNewestLast(t *testing.T) {
	s := NewStore()
	for i := 0; i < 5; i++ {
		s.Record(core.AgentAlex, Interaction{Text: fmt.Sprintf("msg-%d", i)})
	}

	recent := s.Recent(core.AgentAlex, 3)
	if len(recent) != 3 {
		t.Fatalf("Recent length = %d, want 3", len(recent))
	}
	if recent[0].Text != "msg-2" || recent[2].Text != "msg-4" {
		t.Errorf("Recent = %v, want msg-2..msg-4", recent)
	}

	// Asking for more than exists returns everything.
	all := s.Recent(core.AgentAlex, 50)
	if len(all) != 5 {
		t.Errorf("Recent(50) length = %d, want 5", len(all))
	}
}

func TestAgentsAreIsolated(t *testing.T) {
	s := NewStore()
	s.Record(core.AgentGrace, Interaction{Text: "grace only"})

	if got := len(s.Snapshot(core.AgentAlex).ShortTerm); got != 0 {
		t.Errorf("alex ShortTerm length = %d, want 0", got)
	}
	if got := len(s.Snapshot(core.AgentGrace).ShortTerm); got != 1 {
		t.Errorf("grace ShortTerm length = %d, want 1", got)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := NewStore()
	s.Record(core.AgentGrace, Interaction{Text: "original"})

	snap := s.Snapshot(core.AgentGrace)
	snap.ShortTerm[0].Text = "mutated"

	if got := s.Snapshot(core.AgentGrace).ShortTerm[0].Text; got != "original" {
		t.Errorf("store text = %q, snapshot mutation leaked", got)
	}
}

func TestReinforcePattern(t *testing.T) {
	s := NewStore()
	s.ReinforcePattern(core.AgentGrace, "evening loneliness", "medium")
	s.ReinforcePattern(core.AgentGrace, "evening loneliness", "medium")
	s.ReinforcePattern(core.AgentGrace, "missed medication", "high")

	snap := s.Snapshot(core.AgentGrace)
	if len(snap.LongTerm) != 2 {
		t.Fatalf("LongTerm length = %d, want 2", len(snap.LongTerm))
	}
	if snap.LongTerm[0].Frequency != 2 {
		t.Errorf("Frequency = %d, want 2", snap.LongTerm[0].Frequency)
	}
	if snap.LongTerm[0].LastUpdate.IsZero() {
		t.Error("LastUpdate should be set")
	}
}

func TestNoteCareNeedDeduplicates(t *testing.T) {
	s := NewStore()
	s.NoteCareNeed(core.AgentAlex, CareNeed{Type: "transportation", Frequency: "weekly", Priority: "medium"})
	s.NoteCareNeed(core.AgentAlex, CareNeed{Type: "transportation", Frequency: "daily", Priority: "high"})

	snap := s.Snapshot(core.AgentAlex)
	if len(snap.FamilyContext.CareNeeds) != 1 {
		t.Errorf("CareNeeds length = %d, want 1", len(snap.FamilyContext.CareNeeds))
	}
}

func TestConcurrentRecordStaysBounded(t *testing.T) {
	s := NewStore()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				s.Record(core.AgentGrace, Interaction{
					Text:      fmt.Sprintf("w%d-%d", w, i),
					Timestamp: time.Now(),
				})
			}
		}(w)
	}
	wg.Wait()

	if got := len(s.Snapshot(core.AgentGrace).ShortTerm); got != ShortTermCap {
		t.Errorf("ShortTerm length = %d, want %d", got, ShortTermCap)
	}
}
