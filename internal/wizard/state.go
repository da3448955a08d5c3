package wizard

import (
	"encoding/json"
	"sync"
)

// State is the shared data bag a wizard accumulates as the user moves
// through its steps. Values are keyed by string and merged on update, so
// a step can contribute its slice of data without clobbering the rest.
type State struct {
	mu     sync.RWMutex
	values map[string]interface{}
}

// NewState creates an empty wizard state
func NewState() *State {
	return &State{
		values: make(map[string]interface{}),
	}
}

// NewStateFrom creates a state pre-populated with the given values
func NewStateFrom(values map[string]interface{}) *State {
	s := NewState()
	for k, v := range values {
		s.values[k] = v
	}
	return s
}

// Get returns the value stored under key
func (s *State) Get(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// GetString returns the value under key as a string, or "" when absent
// or of a different type
func (s *State) GetString(key string) string {
	v, ok := s.Get(key)
	if !ok {
		return ""
	}
	str, _ := v.(string)
	return str
}

// GetBool returns the value under key as a bool
func (s *State) GetBool(key string) bool {
	v, ok := s.Get(key)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// GetStringSlice returns the value under key as a []string. JSON round
// trips turn slices into []interface{}, so both shapes are handled.
func (s *State) GetStringSlice(key string) []string {
	v, ok := s.Get(key)
	if !ok {
		return nil
	}

	switch vv := v.(type) {
	case []string:
		return vv
	case []interface{}:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// GetFloat returns the value under key as a float64
func (s *State) GetFloat(key string) float64 {
	v, ok := s.Get(key)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return 0
}

// Set stores a single value
func (s *State) Set(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Update merges the given values into the state. Existing keys not named
// in the update keep their values.
func (s *State) Update(values map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		s.values[k] = v
	}
}

// Snapshot returns a copy of the current values
func (s *State) Snapshot() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]interface{}, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// MarshalJSON serializes the state values
func (s *State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Snapshot())
}

// UnmarshalJSON replaces the state values with the decoded document
func (s *State) UnmarshalJSON(data []byte) error {
	var values map[string]interface{}
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = values
	if s.values == nil {
		s.values = make(map[string]interface{})
	}
	return nil
}
