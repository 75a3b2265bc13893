package services

import (
	"sort"
	"sync"
	"time"

	"aegisnet/internal/models"

	"go.uber.org/zap"
)

// DefaultHistoryCapacity is the per-agent bound of the historical series
const DefaultHistoryCapacity = 100

// series is a fixed-capacity FIFO ring of metric records
type series struct {
	buf   []models.MetricRecord
	start int
	size  int
}

func newSeries(capacity int) *series {
	return &series{buf: make([]models.MetricRecord, capacity)}
}

// push appends rec, evicting the oldest record once full
func (s *series) push(rec models.MetricRecord) {
	capacity := len(s.buf)
	if s.size < capacity {
		s.buf[(s.start+s.size)%capacity] = rec
		s.size++
		return
	}
	s.buf[s.start] = rec
	s.start = (s.start + 1) % capacity
}

// snapshot copies the buffer out oldest first
func (s *series) snapshot() []models.MetricRecord {
	out := make([]models.MetricRecord, 0, s.size)
	for i := 0; i < s.size; i++ {
		out = append(out, s.buf[(s.start+i)%len(s.buf)].Clone())
	}
	return out
}

// agentState is everything the store keeps for one agent.
// Its own lock serializes writers for that agent only.
type agentState struct {
	mu      sync.RWMutex
	latest  *models.MetricRecord
	history *series
}

// Store is the process-wide historical store: latest values, bounded
// per-agent series, the profile registry and the append-only logs.
type Store struct {
	mu       sync.RWMutex
	agents   map[string]*agentState
	capacity int

	profileMu sync.RWMutex
	profiles  map[string]models.AgentProfile

	logMu   sync.RWMutex
	alerts  []models.Alert
	actions []models.Action

	journal       Journal
	journalBuffer int
	journalMu     sync.RWMutex
	journalQueue  chan journalEntry
	journalDone   chan struct{}
	journalClosed bool

	logger *zap.Logger
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithJournal mirrors every logged alert and action into j. Writes happen on
// a background goroutine; call Close to flush them.
func WithJournal(j Journal) StoreOption {
	return func(s *Store) {
		s.journal = j
	}
}

// WithJournalBuffer sets how many entries may wait for the journal before
// new ones are dropped
func WithJournalBuffer(n int) StoreOption {
	return func(s *Store) {
		s.journalBuffer = n
	}
}

// WithStoreLogger sets the logger used for journal failures
func WithStoreLogger(l *zap.Logger) StoreOption {
	return func(s *Store) {
		s.logger = l
	}
}

// NewStore creates an empty store; capacity <= 0 selects the default
func NewStore(capacity int, opts ...StoreOption) *Store {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	s := &Store{
		agents:        make(map[string]*agentState),
		capacity:      capacity,
		profiles:      make(map[string]models.AgentProfile),
		journalBuffer: defaultJournalBuffer,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.journal != nil {
		s.startJournal()
	}
	return s
}

// Capacity returns the per-agent history bound
func (s *Store) Capacity() int {
	return s.capacity
}

// agent returns the state for id, creating it lazily when create is set
func (s *Store) agent(id string, create bool) *agentState {
	s.mu.RLock()
	st, ok := s.agents[id]
	s.mu.RUnlock()
	if ok || !create {
		return st
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok = s.agents[id]; ok {
		return st
	}
	st = &agentState{history: newSeries(s.capacity)}
	s.agents[id] = st
	return st
}

// AppendHistory pushes rec onto its agent's series
func (s *Store) AppendHistory(rec models.MetricRecord) {
	st := s.agent(rec.AgentID, true)
	st.mu.Lock()
	st.history.push(rec.Clone())
	st.mu.Unlock()
}

// Record updates the latest value and appends to history in one step,
// so readers never see one without the other.
func (s *Store) Record(rec models.MetricRecord) {
	st := s.agent(rec.AgentID, true)
	latest := rec.Clone()
	st.mu.Lock()
	st.latest = &latest
	st.history.push(rec.Clone())
	st.mu.Unlock()
}

// History returns the agent's series oldest first; unknown agents yield an empty slice
func (s *Store) History(agentID string) []models.MetricRecord {
	st := s.agent(agentID, false)
	if st == nil {
		return []models.MetricRecord{}
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.history.snapshot()
}

// HistorySince returns the records captured after since
func (s *Store) HistorySince(agentID string, since time.Time) []models.MetricRecord {
	all := s.History(agentID)
	filtered := []models.MetricRecord{}
	for _, rec := range all {
		if rec.Timestamp.After(since) {
			filtered = append(filtered, rec)
		}
	}
	return filtered
}

// Agents lists every agent that has submitted metrics, sorted
func (s *Store) Agents() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.agents))
	for id := range s.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AgentCount is the number of agents with a series
func (s *Store) AgentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.agents)
}
