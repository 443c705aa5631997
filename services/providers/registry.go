package providers

import (
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	// ErrProviderNotFound is returned when a provider is not registered
	ErrProviderNotFound = errors.New("provider not found")

	// ErrProviderAlreadyRegistered is returned when trying to register a duplicate provider
	ErrProviderAlreadyRegistered = errors.New("provider already registered")
)

// ProviderState is a provider's configuration plus its health counters
type ProviderState struct {
	Key      string
	Name     string
	APIKey   string
	BaseURL  string
	Models   []string
	Priority int
	Headers  map[string]string

	Available  bool
	ErrorCount int
	LastError  string
	LastUsed   time.Time
}

// HasAPIKey reports whether a credential is configured
func (p *ProviderState) HasAPIKey() bool {
	return p.APIKey != ""
}

// Eligible reports whether the provider can be selected under threshold
func (p *ProviderState) Eligible(threshold int) bool {
	return p.HasAPIKey() && p.Available && p.ErrorCount < threshold
}

func (p *ProviderState) clone() ProviderState {
	c := *p
	c.Models = append([]string(nil), p.Models...)
	c.Headers = copyHeaders(p.Headers)
	return c
}

// ProviderStatus is the credential-free snapshot of one provider
type ProviderStatus struct {
	Name        string     `json:"name"`
	IsAvailable bool       `json:"isAvailable"`
	HasAPIKey   bool       `json:"hasApiKey"`
	ErrorCount  int        `json:"errorCount"`
	LastError   string     `json:"lastError,omitempty"`
	LastUsed    *time.Time `json:"lastUsed,omitempty"`
	Priority    int        `json:"priority"`
}

// Registry holds provider states and the current-provider pointer.
// It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	order     []string // table order, used to break priority ties
	providers map[string]*ProviderState
	current   string
}

// NewRegistry creates a registry from the given states. The first state in
// ascending priority becomes current.
func NewRegistry(states ...ProviderState) (*Registry, error) {
	r := &Registry{providers: make(map[string]*ProviderState, len(states))}
	for _, s := range states {
		if err := r.Register(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a provider
func (r *Registry) Register(state ProviderState) error {
	if state.Key == "" {
		return errors.New("provider key cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[state.Key]; exists {
		return ErrProviderAlreadyRegistered
	}

	s := state.clone()
	r.providers[s.Key] = &s
	r.order = append(r.order, s.Key)
	if r.current == "" || s.Priority < r.providers[r.current].Priority {
		r.current = s.Key
	}
	return nil
}

// Get returns a copy of a provider's state
func (r *Registry) Get(key string) (ProviderState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[key]
	if !ok {
		return ProviderState{}, ErrProviderNotFound
	}
	return p.clone(), nil
}

// Keys returns provider keys in table order
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.order...)
}

// Len returns the number of registered providers
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.order)
}

// Current returns the key of the current provider ("" when empty)
func (r *Registry) Current() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.current
}

// SetCurrent makes key the current provider
func (r *Registry) SetCurrent(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.providers[key]; !ok {
		return ErrProviderNotFound
	}
	r.current = key
	return nil
}

// Eligible returns copies of the selectable providers sorted by ascending
// priority, ties in table order. exclude, when set, is left out.
func (r *Registry) Eligible(threshold int, exclude string) []ProviderState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ProviderState, 0, len(r.order))
	for _, key := range r.order {
		p := r.providers[key]
		if key == exclude || !p.Eligible(threshold) {
			continue
		}
		out = append(out, p.clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority < out[j].Priority
	})
	return out
}

// RecordFailure increments the provider's error counter, stores msg as its
// last error and marks it unavailable once the counter reaches threshold.
func (r *Registry) RecordFailure(key, msg string, threshold int) (ProviderState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.providers[key]
	if !ok {
		return ProviderState{}, ErrProviderNotFound
	}
	p.ErrorCount++
	p.LastError = msg
	if p.ErrorCount >= threshold {
		p.Available = false
	}
	return p.clone(), nil
}

// RecordSuccess stamps the provider's last-used time. Counters are untouched.
func (r *Registry) RecordSuccess(key string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.providers[key]; ok {
		p.LastUsed = at
	}
}

// ResetAll zeroes every error counter and marks every provider available
func (r *Registry) ResetAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.providers {
		p.ErrorCount = 0
		p.Available = true
	}
}

// Replace swaps in a new provider table. Health counters and last-used
// timestamps survive for keys present in both tables. The current pointer is
// kept when its key survives, otherwise it moves to the best priority.
func (r *Registry) Replace(states []ProviderState) error {
	next := make(map[string]*ProviderState, len(states))
	order := make([]string, 0, len(states))
	for _, s := range states {
		if s.Key == "" {
			return errors.New("provider key cannot be empty")
		}
		if _, dup := next[s.Key]; dup {
			return ErrProviderAlreadyRegistered
		}
		c := s.clone()
		next[c.Key] = &c
		order = append(order, c.Key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for key, n := range next {
		if old, ok := r.providers[key]; ok {
			n.Available = old.Available
			n.ErrorCount = old.ErrorCount
			n.LastError = old.LastError
			n.LastUsed = old.LastUsed
		}
	}

	r.providers = next
	r.order = order
	if _, ok := next[r.current]; !ok {
		r.current = ""
		for _, key := range order {
			if r.current == "" || next[key].Priority < next[r.current].Priority {
				r.current = key
			}
		}
	}
	return nil
}

// Status returns a credential-free snapshot keyed by provider key
func (r *Registry) Status() map[string]ProviderStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]ProviderStatus, len(r.providers))
	for key, p := range r.providers {
		st := ProviderStatus{
			Name:        p.Name,
			IsAvailable: p.Available,
			HasAPIKey:   p.HasAPIKey(),
			ErrorCount:  p.ErrorCount,
			LastError:   p.LastError,
			Priority:    p.Priority,
		}
		if !p.LastUsed.IsZero() {
			lu := p.LastUsed
			st.LastUsed = &lu
		}
		out[key] = st
	}
	return out
}
