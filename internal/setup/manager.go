package setup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/plomtts-service/internal/core"
	"github.com/book-expert/plomtts-service/internal/metrics"
	"github.com/google/uuid"
)

// Idle flows are forgotten once DefaultFlowIdleTimeout passed since their last
// step. Run checks every DefaultFlowSweepInterval.
const (
	DefaultFlowIdleTimeout   = 30 * time.Minute
	DefaultFlowSweepInterval = time.Minute
)

// FlowKind selects which flow Manager.Start creates.
type FlowKind string

// Flow kinds.
const (
	KindConfig  FlowKind = "config"
	KindOptions FlowKind = "options"
)

var (
	// ErrUnknownFlow is returned for a flow id the manager does not track.
	ErrUnknownFlow = errors.New("unknown flow")
	// ErrUnknownKind is returned for an unsupported FlowKind.
	ErrUnknownKind = errors.New("unknown flow kind")
)

type activeFlow struct {
	mu      sync.Mutex
	kind    FlowKind
	entryID string
	step    string
	flow    Flow
	touched time.Time // guarded by Manager.mu
}

// Manager tracks the flows in progress and persists the entries they produce.
type Manager struct {
	store     core.EntryStore
	newClient core.ClientFactory
	log       *logger.Logger
	metrics   *metrics.Metrics

	defaultURL  string
	idleTimeout time.Duration

	mu    sync.Mutex
	flows map[string]*activeFlow
}

// NewManager creates a Manager. m may be nil.
func NewManager(
	store core.EntryStore,
	newClient core.ClientFactory,
	log *logger.Logger,
	m *metrics.Metrics,
) *Manager {
	return &Manager{
		store:       store,
		newClient:   newClient,
		log:         log,
		metrics:     m,
		idleTimeout: DefaultFlowIdleTimeout,
		flows:       make(map[string]*activeFlow),
	}
}

// SetIdleTimeout changes how long an untouched flow is kept. Call it before Run.
func (m *Manager) SetIdleTimeout(timeout time.Duration) {
	m.idleTimeout = timeout
}

// Run forgets idle flows until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(DefaultFlowSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			m.Sweep(now.Add(-m.idleTimeout))
		}
	}
}

// Sweep forgets every flow whose last step came before cutoff and returns how
// many were dropped.
func (m *Manager) Sweep(cutoff time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	dropped := 0

	for flowID, active := range m.flows {
		if active.touched.Before(cutoff) {
			delete(m.flows, flowID)
			m.log.Warn("Flow %s (%s) dropped after being idle since %s", flowID, active.kind,
				active.touched.Format(time.RFC3339))

			dropped++
		}
	}

	return dropped
}

// SetDefaultServerURL changes the server address offered by new config flows.
func (m *Manager) SetDefaultServerURL(url string) {
	m.defaultURL = url
}

// Start begins a flow. entryID is required for KindOptions and ignored otherwise.
func (m *Manager) Start(ctx context.Context, kind FlowKind, entryID string) (Result, error) {
	active := &activeFlow{kind: kind, entryID: entryID}

	switch kind {
	case KindConfig:
		entries, err := m.store.List(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("failed to list entries: %w", err)
		}

		servers := make([]string, 0, len(entries))
		for _, entry := range entries {
			servers = append(servers, entry.Data.ServerURL)
		}

		active.flow = NewConfigFlow(m.newClient, m.log, servers...).WithDefaultServerURL(m.defaultURL)
	case KindOptions:
		entry, err := m.store.Load(ctx, entryID)
		if err != nil {
			return Result{}, fmt.Errorf("failed to load entry %s: %w", entryID, err)
		}

		active.flow = NewOptionsFlow(m.newClient, m.log, entry)
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	flowID := uuid.NewString()

	active.mu.Lock()
	defer active.mu.Unlock()

	result := active.flow.Start(ctx)

	return m.finish(ctx, flowID, active, result)
}

// Step submits input to the current step of a flow.
func (m *Manager) Step(ctx context.Context, flowID string, input json.RawMessage) (Result, error) {
	m.mu.Lock()
	active, ok := m.flows[flowID]
	m.mu.Unlock()

	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownFlow, flowID)
	}

	active.mu.Lock()
	defer active.mu.Unlock()

	result, err := active.flow.Handle(ctx, active.step, input)
	if err != nil {
		return Result{}, err
	}

	return m.finish(ctx, flowID, active, result)
}

// Abort forgets a flow without producing anything.
func (m *Manager) Abort(flowID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.flows, flowID)
}

// Active returns the number of flows in progress.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.flows)
}

// finish records the step result. Forms keep the flow alive; entries are
// persisted and, like aborts, end the flow.
func (m *Manager) finish(ctx context.Context, flowID string, active *activeFlow, result Result) (Result, error) {
	result.FlowID = flowID
	m.metrics.ObserveFlow(string(active.kind), string(result.Type), resultCode(result))

	if result.Type == ResultTypeForm {
		active.step = result.StepID

		m.mu.Lock()
		active.touched = time.Now()
		m.flows[flowID] = active
		m.mu.Unlock()

		return result, nil
	}

	m.Abort(flowID)

	if result.Type == ResultTypeAbort {
		m.log.Warn("Flow %s (%s) aborted: %s", flowID, active.kind, result.Reason)

		return result, nil
	}

	entryID, err := m.persist(ctx, active, result)
	if err != nil {
		return Result{}, err
	}

	result.EntryID = entryID
	m.log.Info("Flow %s (%s) saved entry %s", flowID, active.kind, entryID)

	return result, nil
}

func (m *Manager) persist(ctx context.Context, active *activeFlow, result Result) (string, error) {
	if active.kind == KindOptions {
		entry, err := m.store.Load(ctx, active.entryID)
		if err != nil {
			return "", fmt.Errorf("failed to load entry %s: %w", active.entryID, err)
		}

		entry.Options = *result.Options

		err = m.store.Save(ctx, entry)
		if err != nil {
			return "", fmt.Errorf("failed to save options of entry %s: %w", entry.ID, err)
		}

		return entry.ID, nil
	}

	entry := core.Entry{
		ID:      uuid.NewString(),
		Title:   result.Title,
		Data:    *result.Data,
		Options: *result.Options,
	}

	err := m.store.Save(ctx, entry)
	if err != nil {
		return "", fmt.Errorf("failed to save entry %s: %w", entry.ID, err)
	}

	return entry.ID, nil
}

func resultCode(result Result) string {
	if result.Reason != "" {
		return result.Reason
	}

	return result.Errors[ErrorBase]
}
