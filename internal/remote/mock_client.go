package remote

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/kruplan/kruplan/internal/schedule"
)

// MockCalls counts operations performed on a MockClient.
type MockCalls struct {
	LoadSheets int
	SaveSheets int
	LoadConfig int
	SaveConfig int
}

// MockClient is an in-memory Client for tests. Stored data is keyed by
// owner, and each operation can be forced to fail.
type MockClient struct {
	mu      sync.Mutex
	sheets  map[string][]json.RawMessage
	configs map[string]*schedule.Config
	calls   MockCalls

	FailLoadSheets error
	FailSaveSheets error
	FailLoadConfig error
	FailSaveConfig error
}

func NewMockClient() *MockClient {
	return &MockClient{
		sheets:  make(map[string][]json.RawMessage),
		configs: make(map[string]*schedule.Config),
	}
}

func (m *MockClient) LoadSheets(_ context.Context, owner string) ([]json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.LoadSheets++
	if m.FailLoadSheets != nil {
		return nil, m.FailLoadSheets
	}
	return m.sheets[owner], nil
}

func (m *MockClient) SaveSheets(_ context.Context, owner string, sheets []schedule.Sheet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.SaveSheets++
	if m.FailSaveSheets != nil {
		return m.FailSaveSheets
	}
	raw := make([]json.RawMessage, 0, len(sheets))
	for _, sheet := range sheets {
		data, err := json.Marshal(sheet)
		if err != nil {
			return err
		}
		raw = append(raw, data)
	}
	m.sheets[owner] = raw
	return nil
}

func (m *MockClient) LoadConfig(_ context.Context, owner string) (*schedule.Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.LoadConfig++
	if m.FailLoadConfig != nil {
		return nil, m.FailLoadConfig
	}
	return m.configs[owner], nil
}

func (m *MockClient) SaveConfig(_ context.Context, owner string, cfg schedule.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.SaveConfig++
	if m.FailSaveConfig != nil {
		return m.FailSaveConfig
	}
	clone := cfg
	m.configs[owner] = &clone
	return nil
}

// SetFailSaveSheets toggles save failure injection. Safe to call while
// a coordinator is using the client.
func (m *MockClient) SetFailSaveSheets(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailSaveSheets = err
}

// SetFailSaveConfig toggles config save failure injection.
func (m *MockClient) SetFailSaveConfig(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailSaveConfig = err
}

// SeedSheets installs raw sheet payloads for an owner.
func (m *MockClient) SeedSheets(owner string, raw []json.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sheets[owner] = raw
}

// SeedConfig installs a stored config for an owner.
func (m *MockClient) SeedConfig(owner string, cfg schedule.Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[owner] = &cfg
}

// SavedSheets returns the most recently saved payload for an owner.
func (m *MockClient) SavedSheets(owner string) []json.RawMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sheets[owner]
}

func (m *MockClient) Calls() MockCalls {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
