package config

import (
	"encoding/json"
	"fmt"

	"github.com/quasilyte/gdata"
)

// Prefs are small player preferences persisted across runs, separate from
// worldofwater.yaml so operators can ship config without clobbering them.
type Prefs struct {
	PeerName     string `json:"peerName"`
	LastHostAddr string `json:"lastHostAddr"`
	LastSession  string `json:"lastSession"`
}

const prefsItem = "prefs"

// PrefsStore wraps the platform data directory for preference storage.
type PrefsStore struct {
	m *gdata.Manager
}

// OpenPrefs initializes preference storage. Failure is survivable: callers
// get a nil store and defaults.
func OpenPrefs() (*PrefsStore, error) {
	m, err := gdata.Open(gdata.Config{
		AppName: "worldofwater",
	})
	if err != nil {
		return nil, fmt.Errorf("open prefs storage: %w", err)
	}
	return &PrefsStore{m: m}, nil
}

// Load returns the saved preferences, or nil when none were ever saved.
func (p *PrefsStore) Load() (*Prefs, error) {
	if p == nil || p.m == nil {
		return nil, nil
	}
	data, err := p.m.LoadItem(prefsItem)
	if err != nil {
		return nil, fmt.Errorf("load prefs: %w", err)
	}
	if data == nil {
		// Nothing saved yet.
		return nil, nil
	}
	var prefs Prefs
	if err := json.Unmarshal(data, &prefs); err != nil {
		return nil, fmt.Errorf("decode prefs: %w", err)
	}
	return &prefs, nil
}

// Save writes preferences to the platform data directory.
func (p *PrefsStore) Save(prefs Prefs) error {
	if p == nil || p.m == nil {
		return nil
	}
	data, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("encode prefs: %w", err)
	}
	if err := p.m.SaveItem(prefsItem, data); err != nil {
		return fmt.Errorf("save prefs: %w", err)
	}
	return nil
}
