package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wolfman30/coaching-platform/internal/availability"
	"github.com/wolfman30/coaching-platform/internal/sessions"
)

// Snapshot is a frozen copy of one coach's profile and calendar, as exported
// for support investigations.
type Snapshot struct {
	Now      time.Time                       `yaml:"now"`
	Profile  *availability.CoachAvailability `yaml:"profile"`
	Sessions []sessions.BusyInterval         `yaml:"sessions"`
}

func loadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return parseSnapshot(data)
}

func parseSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Profile == nil || snap.Profile.CoachID == "" {
		return nil, fmt.Errorf("snapshot: profile.coach_id is required")
	}
	if err := snap.Profile.Validate(); err != nil {
		return nil, err
	}
	for i, s := range snap.Sessions {
		if !s.End.After(s.Start) {
			return nil, fmt.Errorf("snapshot: session %d ends before it starts", i)
		}
	}
	if snap.Now.IsZero() {
		snap.Now = time.Now()
	}
	return &snap, nil
}

// LoadAvailability serves the snapshot profile.
func (s *Snapshot) LoadAvailability(_ context.Context, coachID string) (*availability.CoachAvailability, error) {
	if coachID != s.Profile.CoachID {
		return nil, fmt.Errorf("%w: %s", availability.ErrNotFound, coachID)
	}
	return s.Profile.Clone(), nil
}

// LoadBusyIntervals mirrors the database query over the snapshot sessions.
func (s *Snapshot) LoadBusyIntervals(_ context.Context, coachID string, start, end time.Time, excludeSessionID string) ([]sessions.BusyInterval, error) {
	if coachID != s.Profile.CoachID {
		return nil, nil
	}
	var out []sessions.BusyInterval
	for _, b := range s.Sessions {
		if !b.Status.OccupiesCalendar() || !b.Overlaps(start, end) {
			continue
		}
		if excludeSessionID != "" && b.SessionID == excludeSessionID {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// LoadInProgressSession returns the most recently started in-progress session.
func (s *Snapshot) LoadInProgressSession(_ context.Context, coachID string, now time.Time) (*sessions.BusyInterval, error) {
	if coachID != s.Profile.CoachID {
		return nil, nil
	}
	var current *sessions.BusyInterval
	for i := range s.Sessions {
		b := s.Sessions[i]
		if b.Status != sessions.StatusInProgress || b.Start.After(now) {
			continue
		}
		if current == nil || b.Start.After(current.Start) {
			current = &b
		}
	}
	return current, nil
}
