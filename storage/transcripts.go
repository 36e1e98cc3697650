package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"concierge/config"
	"concierge/model"
)

// Snapshot is a saved transcript.
type Snapshot struct {
	ID        string
	Name      string
	Model     string
	CreatedAt time.Time
	UpdatedAt time.Time
	Items     []model.Item
}

type snapshotFile struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Model     string          `json:"model"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Items     json.RawMessage `json:"items"`
}

func (s *Snapshot) MarshalJSON() ([]byte, error) {
	items, err := model.MarshalItems(s.Items)
	if err != nil {
		return nil, err
	}
	return json.Marshal(snapshotFile{
		ID:        s.ID,
		Name:      s.Name,
		Model:     s.Model,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
		Items:     items,
	})
}

func (s *Snapshot) UnmarshalJSON(b []byte) error {
	var f snapshotFile
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	var items []model.Item
	if len(f.Items) > 0 {
		var err error
		if items, err = model.UnmarshalItems(f.Items); err != nil {
			return err
		}
	}
	*s = Snapshot{
		ID:        f.ID,
		Name:      f.Name,
		Model:     f.Model,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
		Items:     items,
	}
	return nil
}

// Messages returns the text messages of the snapshot in order.
func (s *Snapshot) Messages() []*model.Message {
	var out []*model.Message
	for _, it := range s.Items {
		if m, ok := it.(*model.Message); ok {
			out = append(out, m)
		}
	}
	return out
}

// SnapshotMetadata is the listing view of a Snapshot.
type SnapshotMetadata struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Model        string    `json:"model"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	ItemCount    int       `json:"item_count"`
	MessageCount int       `json:"message_count"`
}

// TranscriptStore keeps one JSON file per snapshot under <data_dir>/transcripts.
type TranscriptStore struct {
	dir string
}

func NewTranscriptStore(dir string) (*TranscriptStore, error) {
	// 0700: transcripts hold the user's conversations
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create transcripts directory: %w", err)
	}
	return &TranscriptStore{dir: dir}, nil
}

func (s *TranscriptStore) path(id string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s.json", id))
}

// Save writes the snapshot, assigning an id and timestamps when missing.
func (s *TranscriptStore) Save(snap *Snapshot) error {
	if snap.ID == "" {
		snap.ID = uuid.New().String()
	}
	snap.UpdatedAt = time.Now()
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = snap.UpdatedAt
	}
	if snap.Name == "" {
		snap.Name = GenerateSnapshotName(firstUserText(snap.Items))
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}
	if err := os.WriteFile(s.path(snap.ID), data, 0600); err != nil {
		return fmt.Errorf("failed to write transcript file: %w", err)
	}

	if config.DebugLog != nil {
		config.DebugLog.Printf("[Storage] Saved transcript %s (%d items)", snap.ID, len(snap.Items))
	}
	return nil
}

func (s *TranscriptStore) Load(id string) (*Snapshot, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript file: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transcript: %w", err)
	}
	return &snap, nil
}

// List returns metadata for all snapshots, newest first. Unreadable files are
// skipped.
func (s *TranscriptStore) List() ([]SnapshotMetadata, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcripts directory: %w", err)
	}

	var out []SnapshotMetadata
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		snap, err := s.Load(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[Storage] Skipping %s: %v", entry.Name(), err)
			}
			continue
		}
		out = append(out, SnapshotMetadata{
			ID:           snap.ID,
			Name:         snap.Name,
			Model:        snap.Model,
			CreatedAt:    snap.CreatedAt,
			UpdatedAt:    snap.UpdatedAt,
			ItemCount:    len(snap.Items),
			MessageCount: len(snap.Messages()),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *TranscriptStore) Delete(id string) error {
	if err := os.Remove(s.path(id)); err != nil {
		return fmt.Errorf("failed to delete transcript file: %w", err)
	}
	return nil
}

func (s *TranscriptStore) Rename(id, name string) error {
	snap, err := s.Load(id)
	if err != nil {
		return fmt.Errorf("failed to load transcript: %w", err)
	}
	snap.Name = name
	if err := s.Save(snap); err != nil {
		return fmt.Errorf("failed to save renamed transcript: %w", err)
	}
	return nil
}

// SaveCurrentID records the snapshot the chat view should resume.
func (s *TranscriptStore) SaveCurrentID(id string) error {
	return os.WriteFile(filepath.Join(s.dir, "current.id"), []byte(id), 0600)
}

func (s *TranscriptStore) LoadCurrentID() (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, "current.id"))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// Export writes the snapshot as indented JSON to path.
func (s *TranscriptStore) Export(id, path string) error {
	snap, err := s.Load(id)
	if err != nil {
		return fmt.Errorf("failed to load transcript: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// SanitizeFilename replaces characters that are invalid in filenames.
func SanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ', '\n', '\r':
			return '-'
		}
		return r
	}, name)
	name = strings.Trim(name, "-.")

	if len(name) > 50 {
		name = name[:50]
	}
	if name == "" {
		name = "transcript"
	}
	return name
}

// GenerateExportPath returns ~/Downloads/concierge-<name>-<timestamp>.json.
func GenerateExportPath(home, name string) string {
	timestamp := time.Now().Format("20060102-150405")
	filename := fmt.Sprintf("concierge-%s-%s.json", SanitizeFilename(name), timestamp)
	return filepath.Join(home, "Downloads", filename)
}

// GenerateSnapshotName derives a name from the first user message.
func GenerateSnapshotName(firstMessage string) string {
	name := strings.Join(strings.Fields(firstMessage), " ")
	if r := []rune(name); len(r) > 30 {
		name = string(r[:30]) + "..."
	}
	if name == "" {
		return fmt.Sprintf("Conversation %s", time.Now().Format("Jan 2, 3:04 PM"))
	}
	return name
}

func firstUserText(items []model.Item) string {
	for _, it := range items {
		if m, ok := it.(*model.Message); ok && m.Role == model.RoleUser {
			return m.Text()
		}
	}
	return ""
}
