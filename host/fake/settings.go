package fake

import (
	"sync"
)

// Settings is an in-memory settings store. Writes to keys registered with FailOn return
// the registered error.
type Settings struct {
	mu     sync.Mutex
	values map[string]interface{}
	failOn map[string]error
}

// NewSettings returns a store holding initial.
func NewSettings(initial map[string]interface{}) *Settings {
	values := make(map[string]interface{}, len(initial))
	for k, v := range initial {
		values[k] = v
	}
	return &Settings{values: values, failOn: map[string]error{}}
}

// Get returns a setting.
func (s *Settings) Get(key string) (interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores a setting.
func (s *Settings) Set(key string, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failOn[key]; err != nil {
		return err
	}
	s.values[key] = value
	return nil
}

// Unset removes a setting.
func (s *Settings) Unset(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failOn[key]; err != nil {
		return err
	}
	delete(s.values, key)
	return nil
}

// FailOn makes writes to key fail with err. A nil err clears the failure.
func (s *Settings) FailOn(key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failOn, key)
		return
	}
	s.failOn[key] = err
}

// Snapshot returns a copy of all settings.
func (s *Settings) Snapshot() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]interface{}, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
