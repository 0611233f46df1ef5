// Package memory implements the per-agent interaction memory.
//
// The store is owned exclusively by the reasoning coordinator; nothing else
// reads or writes it. Memories live for the process lifetime.
package memory

import (
	"sync"
	"time"

	"github.com/familyconnect/familyconnect/internal/core"
)

// ShortTermCap bounds the short-term interaction log per agent. Oldest
// entries are evicted first.
const ShortTermCap = 20

// Interaction is one short-term log entry.
type Interaction struct {
	Text             string    `json:"interaction"`
	Timestamp        time.Time `json:"timestamp"`
	EmotionalContext string    `json:"emotionalContext"`
	ActionsTaken     []string  `json:"actionsTaken"`
}

// Pattern is a long-term behavioral aggregate.
type Pattern struct {
	Pattern    string    `json:"pattern"`
	Frequency  int       `json:"frequency"`
	Importance string    `json:"importance"` // low/medium/high
	LastUpdate time.Time `json:"lastUpdate"`
}

// Relationship tracks a family member known to the agent.
type Relationship struct {
	Name        string    `json:"name"`
	Relation    string    `json:"relationship"`
	LastContact time.Time `json:"lastContact"`
	Preferences []string  `json:"preferences"`
}

// CareNeed is a recurring care requirement.
type CareNeed struct {
	Type      string `json:"type"`
	Frequency string `json:"frequency"`
	Priority  string `json:"priority"` // low/medium/high
}

// EmotionalPattern records which responses work for which triggers.
type EmotionalPattern struct {
	Trigger       string  `json:"trigger"`
	Response      string  `json:"response"`
	Effectiveness float64 `json:"effectiveness"`
}

// FamilyContext groups the relationship-level aggregates.
type FamilyContext struct {
	Relationships     []Relationship     `json:"relationships"`
	CareNeeds         []CareNeed         `json:"careNeeds"`
	EmotionalPatterns []EmotionalPattern `json:"emotionalPatterns"`
}

// AgentMemory is the full memory of one agent identity.
type AgentMemory struct {
	ShortTerm     []Interaction `json:"shortTerm"`
	LongTerm      []Pattern     `json:"longTerm"`
	FamilyContext FamilyContext `json:"familyContext"`
}

type agentState struct {
	mu  sync.Mutex
	mem AgentMemory
}

// Store holds one AgentMemory per agent identity, created lazily on first
// access. Read-modify-write for a given agent is serialized by a per-agent
// mutex; requests for different agents do not contend.
type Store struct {
	mu     sync.Mutex
	agents map[core.AgentID]*agentState
}

// NewStore creates an empty memory store.
func NewStore() *Store {
	return &Store{agents: make(map[core.AgentID]*agentState)}
}

func (s *Store) state(id core.AgentID) *agentState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.agents[id]
	if !ok {
		st = &agentState{}
		s.agents[id] = st
	}
	return st
}

// Record appends an interaction to the agent's short-term log, evicting the
// oldest entry beyond ShortTermCap.
func (s *Store) Record(id core.AgentID, in Interaction) {
	st := s.state(id)
	st.mu.Lock()
	defer st.mu.Unlock()

	st.mem.ShortTerm = append(st.mem.ShortTerm, in)
	if n := len(st.mem.ShortTerm); n > ShortTermCap {
		st.mem.ShortTerm = st.mem.ShortTerm[n-ShortTermCap:]
	}
}

// Recent returns copies of the most recent n short-term interactions, newest
// last.
func (s *Store) Recent(id core.AgentID, n int) []Interaction {
	st := s.state(id)
	st.mu.Lock()
	defer st.mu.Unlock()

	log := st.mem.ShortTerm
	if n < len(log) {
		log = log[len(log)-n:]
	}
	out := make([]Interaction, len(log))
	copy(out, log)
	return out
}

// Snapshot returns a deep copy of the agent's memory for prompt building.
func (s *Store) Snapshot(id core.AgentID) AgentMemory {
	st := s.state(id)
	st.mu.Lock()
	defer st.mu.Unlock()

	out := AgentMemory{
		ShortTerm: make([]Interaction, len(st.mem.ShortTerm)),
		LongTerm:  make([]Pattern, len(st.mem.LongTerm)),
		FamilyContext: FamilyContext{
			Relationships:     make([]Relationship, len(st.mem.FamilyContext.Relationships)),
			CareNeeds:         make([]CareNeed, len(st.mem.FamilyContext.CareNeeds)),
			EmotionalPatterns: make([]EmotionalPattern, len(st.mem.FamilyContext.EmotionalPatterns)),
		},
	}
	copy(out.ShortTerm, st.mem.ShortTerm)
	copy(out.LongTerm, st.mem.LongTerm)
	copy(out.FamilyContext.Relationships, st.mem.FamilyContext.Relationships)
	copy(out.FamilyContext.CareNeeds, st.mem.FamilyContext.CareNeeds)
	copy(out.FamilyContext.EmotionalPatterns, st.mem.FamilyContext.EmotionalPatterns)
	return out
}

// ReinforcePattern bumps a long-term pattern's frequency, creating it on
// first sight.
func (s *Store) ReinforcePattern(id core.AgentID, pattern, importance string) {
	st := s.state(id)
	st.mu.Lock()
	defer st.mu.Unlock()

	now := time.Now().UTC()
	for i := range st.mem.LongTerm {
		if st.mem.LongTerm[i].Pattern == pattern {
			st.mem.LongTerm[i].Frequency++
			st.mem.LongTerm[i].LastUpdate = now
			return
		}
	}
	st.mem.LongTerm = append(st.mem.LongTerm, Pattern{
		Pattern:    pattern,
		Frequency:  1,
		Importance: importance,
		LastUpdate: now,
	})
}

// NoteCareNeed records a care need in the agent's family context if it isn't
// already tracked.
func (s *Store) NoteCareNeed(id core.AgentID, need CareNeed) {
	st := s.state(id)
	st.mu.Lock()
	defer st.mu.Unlock()

	for _, existing := range st.mem.FamilyContext.CareNeeds {
		if existing.Type == need.Type {
			return
		}
	}
	st.mem.FamilyContext.CareNeeds = append(st.mem.FamilyContext.CareNeeds, need)
}
