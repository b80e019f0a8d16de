package chain

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/machinepulse/machinepulse/internal/record"
	"github.com/machinepulse/machinepulse/internal/stage"
)

// StageSpec describes one stage of a chain under construction.
type StageSpec struct {
	Type   string
	Name   string
	Params *stage.Params
}

// link is one instantiated stage plus its inbound edge transform.
type link struct {
	name      string
	typ       string
	stage     stage.Stage
	transform Transform
	lastErr   error
}

// runtime is one live chain. Execution is serialized per chain.
type runtime struct {
	mu    sync.Mutex
	links []*link
}

// Manager owns the live chains. Each chain owns its stage instances; no
// state crosses chain boundaries.
type Manager struct {
	registry *Registry
	metrics  *Metrics
	log      *slog.Logger

	mu     sync.RWMutex
	chains map[string]*runtime
}

// NewManager returns an empty manager. metrics may be nil.
func NewManager(registry *Registry, metrics *Metrics, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		registry: registry,
		metrics:  metrics,
		log:      log,
		chains:   make(map[string]*runtime),
	}
}

// CreateChain builds a chain from specs. Every stage type is checked against
// the registry before anything is instantiated; a failing Init tears down
// the stages created so far and the chain is not registered.
func (m *Manager) CreateChain(name string, specs []StageSpec) error {
	if name == "" {
		return fmt.Errorf("create chain: empty name")
	}
	if len(specs) == 0 {
		return fmt.Errorf("create chain %q: no stages", name)
	}

	factories := make([]stage.Factory, len(specs))
	for i, sp := range specs {
		f, ok := m.registry.Lookup(sp.Type)
		if !ok {
			return fmt.Errorf("create chain %q: stage type %q not registered", name, sp.Type)
		}
		factories[i] = f
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.chains[name]; exists {
		return fmt.Errorf("create chain %q: already exists", name)
	}

	links := make([]*link, 0, len(specs))
	for i, sp := range specs {
		inst := factories[i]()
		if err := inst.Init(sp.Params); err != nil {
			for _, l := range links {
				l.stage.Cleanup()
			}
			return fmt.Errorf("create chain %q: init stage %q: %w", name, sp.Name, err)
		}
		stageName := sp.Name
		if stageName == "" {
			stageName = sp.Type
		}
		links = append(links, &link{name: stageName, typ: sp.Type, stage: inst, transform: Identity})
	}

	m.chains[name] = &runtime{links: links}
	m.log.Info("chain created", "chain", name, "stages", len(links))
	return nil
}

// RemoveChain tears down a chain and its stages.
func (m *Manager) RemoveChain(name string) error {
	m.mu.Lock()
	rt, ok := m.chains[name]
	if ok {
		delete(m.chains, name)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("remove chain %q: not found", name)
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	for _, l := range rt.links {
		l.stage.Cleanup()
	}
	m.log.Info("chain removed", "chain", name)
	return nil
}

// Execute pushes one record through the chain. The first failing edge or
// stage aborts the run; no partial output is returned.
func (m *Manager) Execute(name string, rec record.Record, now time.Time) (record.Record, error) {
	m.mu.RLock()
	rt, ok := m.chains[name]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("execute: chain %q not found", name)
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	cur := rec
	for _, l := range rt.links {
		transformed, err := l.transform(cur)
		if err != nil {
			l.lastErr = err
			return nil, fmt.Errorf("chain %q: edge into %q: %w", name, l.name, err)
		}

		start := time.Now()
		out, err := l.stage.Process(transformed, now)
		m.metrics.observe(name, l.name, time.Since(start).Seconds(), err != nil)
		if err != nil {
			l.lastErr = err
			m.log.Warn("stage failed", "chain", name, "stage", l.name, "err", err)
			return nil, fmt.Errorf("chain %q: stage %q: %w", name, l.name, err)
		}
		l.lastErr = nil
		cur = out
	}
	return cur, nil
}

// SetTransform replaces the transform on the edge into the named stage.
func (m *Manager) SetTransform(chain, stageName string, t Transform) error {
	if t == nil {
		t = Identity
	}
	m.mu.RLock()
	rt, ok := m.chains[chain]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("set transform: chain %q not found", chain)
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	for _, l := range rt.links {
		if l.name == stageName {
			l.transform = t
			return nil
		}
	}
	return fmt.Errorf("set transform: chain %q has no stage %q", chain, stageName)
}

// LastError returns the most recent error of the named stage, nil when its
// last run succeeded or it has not run.
func (m *Manager) LastError(chain, stageName string) (error, bool) {
	m.mu.RLock()
	rt, ok := m.chains[chain]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	for _, l := range rt.links {
		if l.name == stageName {
			return l.lastErr, true
		}
	}
	return nil, false
}

// Chains lists the live chain names.
func (m *Manager) Chains() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.chains))
	for name := range m.chains {
		names = append(names, name)
	}
	return names
}

// ChainStages lists the stage names of one chain, in execution order.
func (m *Manager) ChainStages(name string) ([]string, bool) {
	m.mu.RLock()
	rt, ok := m.chains[name]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	out := make([]string, len(rt.links))
	for i, l := range rt.links {
		out[i] = l.name
	}
	return out, true
}
