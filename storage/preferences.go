package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"concierge/config"
)

// Preference keys. Tool toggles override the [tools] section of config.toml.
const (
	KeyGlobalApproval     = "approval.global"
	KeyWebSearch          = "tools.web_search"
	KeyFileSearch         = "tools.file_search"
	KeyVectorStoreID      = "tools.vector_store_id"
	KeyCodeInterpreter    = "tools.code_interpreter"
	KeyFunctions          = "tools.functions"
	KeyMCPEnabled         = "tools.mcp.enabled"
	KeyMCPServerLabel     = "tools.mcp.server_label"
	KeyMCPServerURL       = "tools.mcp.server_url"
	KeyMCPAllowedTools    = "tools.mcp.allowed_tools"
	KeyMCPSkipApproval    = "tools.mcp.skip_approval"
	KeyWebSearchCountry   = "tools.web_search_location.country"
	KeyWebSearchRegion    = "tools.web_search_location.region"
	KeyWebSearchCity      = "tools.web_search_location.city"
	preferencesDBFilename = "preferences.db"
)

var ErrUnknownPreference = errors.New("unknown preference")

// knownKeys maps each key to whether it holds a boolean.
var knownKeys = map[string]bool{
	KeyGlobalApproval:   true,
	KeyWebSearch:        true,
	KeyFileSearch:       true,
	KeyVectorStoreID:    false,
	KeyCodeInterpreter:  true,
	KeyFunctions:        true,
	KeyMCPEnabled:       true,
	KeyMCPServerLabel:   false,
	KeyMCPServerURL:     false,
	KeyMCPAllowedTools:  false,
	KeyMCPSkipApproval:  true,
	KeyWebSearchCountry: false,
	KeyWebSearchRegion:  false,
	KeyWebSearchCity:    false,
}

type Preference struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

// PreferenceStore persists UI preferences in sqlite.
type PreferenceStore struct {
	db *sql.DB
}

// NewPreferenceStore opens <dataDir>/preferences.db, creating it if needed.
func NewPreferenceStore(dataDir string) (*PreferenceStore, error) {
	return OpenPreferenceStore(filepath.Join(dataDir, preferencesDBFilename))
}

func OpenPreferenceStore(dbPath string) (*PreferenceStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PreferenceStore{db: db}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return store, nil
}

func (ps *PreferenceStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS preferences (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`
	_, err := ps.db.Exec(schema)
	return err
}

// ValidKey reports whether key is a known preference.
func ValidKey(key string) bool {
	_, ok := knownKeys[key]
	return ok
}

// IsBoolKey reports whether key holds a boolean.
func IsBoolKey(key string) bool {
	return knownKeys[key]
}

// ParseBool accepts strconv.ParseBool input plus yes/no and on/off.
func ParseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "yes", "y", "on":
		return true, nil
	case "no", "n", "off":
		return false, nil
	}
	return strconv.ParseBool(strings.TrimSpace(value))
}

// Set stores value under key. Boolean keys are normalized to true/false.
func (ps *PreferenceStore) Set(key, value string) error {
	isBool, ok := knownKeys[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPreference, key)
	}
	if isBool {
		b, err := ParseBool(value)
		if err != nil {
			return fmt.Errorf("preference %s expects a boolean: %w", key, err)
		}
		value = strconv.FormatBool(b)
	}

	query := `
	INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := ps.db.Exec(query, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save preference %s: %w", key, err)
	}

	if config.DebugLog != nil {
		config.DebugLog.Printf("[Storage] Preference %s=%s", key, value)
	}
	return nil
}

// Get returns the stored value and whether the key is set.
func (ps *PreferenceStore) Get(key string) (string, bool, error) {
	var value string
	err := ps.db.QueryRow(`SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read preference %s: %w", key, err)
	}
	return value, true, nil
}

func (ps *PreferenceStore) SetBool(key string, v bool) error {
	return ps.Set(key, strconv.FormatBool(v))
}

// GetBool returns the stored boolean, or def when the key is unset or unreadable.
func (ps *PreferenceStore) GetBool(key string, def bool) bool {
	value, ok, err := ps.Get(key)
	if err != nil || !ok {
		return def
	}
	b, err := ParseBool(value)
	if err != nil {
		return def
	}
	return b
}

func (ps *PreferenceStore) Delete(key string) error {
	if _, err := ps.db.Exec(`DELETE FROM preferences WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete preference %s: %w", key, err)
	}
	return nil
}

// List returns every stored preference ordered by key.
func (ps *PreferenceStore) List() ([]Preference, error) {
	rows, err := ps.db.Query(`SELECT key, value, updated_at FROM preferences ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prefs []Preference
	for rows.Next() {
		var p Preference
		if err := rows.Scan(&p.Key, &p.Value, &p.UpdatedAt); err != nil {
			return nil, err
		}
		prefs = append(prefs, p)
	}
	return prefs, rows.Err()
}

// GlobalApproval reports whether the user chose to always approve MCP calls.
func (ps *PreferenceStore) GlobalApproval() bool {
	return ps.GetBool(KeyGlobalApproval, false)
}

func (ps *PreferenceStore) SetGlobalApproval(v bool) error {
	return ps.SetBool(KeyGlobalApproval, v)
}

// ApplyTools overlays stored tool preferences on tc.
func (ps *PreferenceStore) ApplyTools(tc config.ToolsConfig) (config.ToolsConfig, error) {
	prefs, err := ps.List()
	if err != nil {
		return tc, fmt.Errorf("failed to read preferences: %w", err)
	}

	for _, p := range prefs {
		b, _ := ParseBool(p.Value)
		switch p.Key {
		case KeyWebSearch:
			tc.WebSearch = b
		case KeyFileSearch:
			tc.FileSearch = b
		case KeyVectorStoreID:
			tc.VectorStoreID = p.Value
		case KeyCodeInterpreter:
			tc.CodeInterpreter = b
		case KeyFunctions:
			tc.Functions = b
		case KeyMCPEnabled:
			tc.MCP.Enabled = b
		case KeyMCPServerLabel:
			tc.MCP.ServerLabel = p.Value
		case KeyMCPServerURL:
			tc.MCP.ServerURL = p.Value
		case KeyMCPAllowedTools:
			tc.MCP.AllowedTools = p.Value
		case KeyMCPSkipApproval:
			tc.MCP.SkipApproval = b
		case KeyWebSearchCountry:
			tc.WebSearchLocation.Country = p.Value
		case KeyWebSearchRegion:
			tc.WebSearchLocation.Region = p.Value
		case KeyWebSearchCity:
			tc.WebSearchLocation.City = p.Value
		}
	}
	return tc, nil
}

func (ps *PreferenceStore) Close() error {
	return ps.db.Close()
}
