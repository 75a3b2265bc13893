package services

import (
	"sort"

	"aegisnet/internal/models"
)

// UpsertLatest replaces the current record for rec.AgentID
func (s *Store) UpsertLatest(rec models.MetricRecord) {
	st := s.agent(rec.AgentID, true)
	latest := rec.Clone()
	st.mu.Lock()
	st.latest = &latest
	st.mu.Unlock()
}

// Latest returns the current record for agentID
func (s *Store) Latest(agentID string) (models.MetricRecord, bool) {
	st := s.agent(agentID, false)
	if st == nil {
		return models.MetricRecord{}, false
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	if st.latest == nil {
		return models.MetricRecord{}, false
	}
	return st.latest.Clone(), true
}

// LatestAll returns the current record of every agent, ordered by agent ID
func (s *Store) LatestAll() []models.MetricRecord {
	out := []models.MetricRecord{}
	for _, id := range s.Agents() {
		if rec, ok := s.Latest(id); ok {
			out = append(out, rec)
		}
	}
	return out
}

// RegisterProfile adds or replaces an agent profile
func (s *Store) RegisterProfile(p models.AgentProfile) error {
	if p.AgentID == "" {
		return &models.ValidationError{Field: "agent_id", Reason: "is required"}
	}
	if len(p.AgentID) > 255 {
		return &models.ValidationError{Field: "agent_id", Reason: "exceeds 255 characters"}
	}
	p = cloneProfile(p)

	s.profileMu.Lock()
	s.profiles[p.AgentID] = p
	s.profileMu.Unlock()
	return nil
}

// IsRecognized reports whether agentID has a registered profile
func (s *Store) IsRecognized(agentID string) bool {
	s.profileMu.RLock()
	defer s.profileMu.RUnlock()
	_, ok := s.profiles[agentID]
	return ok
}

// Profile returns the registered profile for agentID
func (s *Store) Profile(agentID string) (models.AgentProfile, bool) {
	s.profileMu.RLock()
	defer s.profileMu.RUnlock()
	p, ok := s.profiles[agentID]
	if !ok {
		return models.AgentProfile{}, false
	}
	return cloneProfile(p), true
}

// Profiles lists registered profiles ordered by agent ID
func (s *Store) Profiles() []models.AgentProfile {
	s.profileMu.RLock()
	out := make([]models.AgentProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, cloneProfile(p))
	}
	s.profileMu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].AgentID < out[j].AgentID
	})
	return out
}

// cloneProfile copies the label map so the registry never shares it
func cloneProfile(p models.AgentProfile) models.AgentProfile {
	labels := make(map[string]string, len(p.Labels))
	for k, v := range p.Labels {
		labels[k] = v
	}
	p.Labels = labels
	return p
}
