package services

import (
	"context"
	"time"

	"aegisnet/internal/models"
	"aegisnet/internal/telemetry"

	"go.uber.org/zap"
)

// Journal mirrors the append-only logs somewhere durable
type Journal interface {
	ArchiveAlert(ctx context.Context, alert models.Alert) error
	ArchiveAction(ctx context.Context, action models.Action) error
}

const (
	journalTimeout       = 5 * time.Second
	defaultJournalBuffer = 1024
)

// journalEntry holds exactly one of alert or action
type journalEntry struct {
	alert  *models.Alert
	action *models.Action
}

func (s *Store) startJournal() {
	if s.journalBuffer <= 0 {
		s.journalBuffer = defaultJournalBuffer
	}
	s.journalQueue = make(chan journalEntry, s.journalBuffer)
	s.journalDone = make(chan struct{})
	go s.writeJournal()
}

// writeJournal drains the queue until Close
func (s *Store) writeJournal() {
	defer close(s.journalDone)
	for entry := range s.journalQueue {
		s.archive(entry)
	}
}

func (s *Store) archive(entry journalEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()

	switch {
	case entry.alert != nil:
		if err := s.journal.ArchiveAlert(ctx, *entry.alert); err != nil {
			s.logger.Warn("archive alert failed", zap.String("alert_id", entry.alert.ID), zap.Error(err))
		}
	case entry.action != nil:
		if err := s.journal.ArchiveAction(ctx, *entry.action); err != nil {
			s.logger.Warn("archive action failed", zap.String("action_id", entry.action.ID), zap.Error(err))
		}
	}
}

// enqueue hands entry to the journal writer without blocking. Entries are
// dropped when the queue is full or the store is closed.
func (s *Store) enqueue(entry journalEntry, kind string) {
	if s.journal == nil {
		return
	}
	s.journalMu.RLock()
	defer s.journalMu.RUnlock()
	if s.journalClosed {
		telemetry.JournalDropped.WithLabelValues(kind).Inc()
		return
	}
	select {
	case s.journalQueue <- entry:
	default:
		telemetry.JournalDropped.WithLabelValues(kind).Inc()
		s.logger.Warn("journal queue full, dropping entry", zap.String("kind", kind))
	}
}

// Close flushes queued journal entries and stops the writer. The in-memory
// logs stay usable; later entries are not archived.
func (s *Store) Close() {
	if s.journal == nil {
		return
	}
	s.journalMu.Lock()
	if !s.journalClosed {
		s.journalClosed = true
		close(s.journalQueue)
	}
	s.journalMu.Unlock()
	<-s.journalDone
}

// LogAlert appends alert to the alert log
func (s *Store) LogAlert(alert models.Alert) {
	s.logMu.Lock()
	s.alerts = append(s.alerts, alert)
	s.logMu.Unlock()

	s.enqueue(journalEntry{alert: &alert}, "alert")
}

// ListAlerts returns the alert log in append order
func (s *Store) ListAlerts() []models.Alert {
	s.logMu.RLock()
	defer s.logMu.RUnlock()
	out := make([]models.Alert, len(s.alerts))
	copy(out, s.alerts)
	return out
}

// LogAction appends action to the action log
func (s *Store) LogAction(action models.Action) {
	s.logMu.Lock()
	s.actions = append(s.actions, action)
	s.logMu.Unlock()

	s.enqueue(journalEntry{action: &action}, "action")
}

// ListActions returns the action log in append order
func (s *Store) ListActions() []models.Action {
	s.logMu.RLock()
	defer s.logMu.RUnlock()
	out := make([]models.Action, len(s.actions))
	copy(out, s.actions)
	return out
}
