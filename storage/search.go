package storage

import (
	"strings"
	"time"
)

// Match is one message of a saved transcript containing the search query.
type Match struct {
	SnapshotID   string
	SnapshotName string
	UpdatedAt    time.Time
	MessageIndex int
	Role         string
	Preview      string
}

// Search scans every snapshot for messages containing query, case
// insensitively. Snapshots are visited newest first.
func (s *TranscriptStore) Search(query string) ([]Match, error) {
	if strings.TrimSpace(query) == "" {
		return []Match{}, nil
	}

	list, err := s.List()
	if err != nil {
		return nil, err
	}

	queryLower := strings.ToLower(query)
	var matches []Match
	for _, meta := range list {
		snap, err := s.Load(meta.ID)
		if err != nil {
			continue
		}
		for i, msg := range snap.Messages() {
			text := msg.Text()
			if !strings.Contains(strings.ToLower(text), queryLower) {
				continue
			}
			matches = append(matches, Match{
				SnapshotID:   snap.ID,
				SnapshotName: snap.Name,
				UpdatedAt:    snap.UpdatedAt,
				MessageIndex: i,
				Role:         string(msg.Role),
				Preview:      preview(text, 100),
			})
		}
	}
	return matches, nil
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "..."
	}
	return s
}
