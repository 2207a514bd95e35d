package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/flowmesh-ai/flowmesh/pkg/models"
)

// MemoryWorkflowStore is an in-memory WorkflowStore, for tests and embedded
// use.
type MemoryWorkflowStore struct {
	mu        sync.RWMutex
	workflows map[string]*models.Workflow
}

// NewMemoryWorkflowStore creates an empty in-memory workflow store.
func NewMemoryWorkflowStore() *MemoryWorkflowStore {
	return &MemoryWorkflowStore{workflows: make(map[string]*models.Workflow)}
}

func (s *MemoryWorkflowStore) Create(_ context.Context, wf *models.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.workflows[wf.ID]; exists {
		return fmt.Errorf("workflow %q already exists", wf.ID)
	}
	s.workflows[wf.ID] = cloneWorkflow(wf)
	return nil
}

func (s *MemoryWorkflowStore) Update(_ context.Context, wf *models.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.workflows[wf.ID]; !exists {
		return fmt.Errorf("workflow %q: %w", wf.ID, ErrNotFound)
	}
	s.workflows[wf.ID] = cloneWorkflow(wf)
	return nil
}

func (s *MemoryWorkflowStore) Get(_ context.Context, id string) (*models.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wf, ok := s.workflows[id]
	if !ok {
		return nil, fmt.Errorf("workflow %q: %w", id, ErrNotFound)
	}
	return cloneWorkflow(wf), nil
}

func (s *MemoryWorkflowStore) List(_ context.Context) ([]*models.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Workflow, 0, len(s.workflows))
	for _, wf := range s.workflows {
		out = append(out, cloneWorkflow(wf))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryWorkflowStore) ListScheduled(_ context.Context) ([]*models.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Workflow
	for _, wf := range s.workflows {
		if wf.Status == models.WorkflowStatusActive && wf.Trigger.Type == models.TriggerTypeSchedule {
			out = append(out, cloneWorkflow(wf))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// MemoryRunStore is an in-memory RunStore, for tests and embedded use.
type MemoryRunStore struct {
	mu   sync.Mutex
	runs map[string]*models.Run
}

// NewMemoryRunStore creates an empty in-memory run store.
func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{runs: make(map[string]*models.Run)}
}

func (s *MemoryRunStore) Create(_ context.Context, run *models.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("run %q already exists", run.ID)
	}
	s.runs[run.ID] = cloneRun(run)
	return nil
}

func (s *MemoryRunStore) Save(_ context.Context, run *models.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.runs[run.ID]
	if !ok {
		return fmt.Errorf("run %q: %w", run.ID, ErrNotFound)
	}
	saved := cloneRun(run)
	saved.Status = existing.Status
	saved.CompletedAt = existing.CompletedAt
	s.runs[run.ID] = saved
	return nil
}

func (s *MemoryRunStore) Get(_ context.Context, id string) (*models.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("run %q: %w", id, ErrNotFound)
	}
	return cloneRun(run), nil
}

func (s *MemoryRunStore) ListByWorkflow(_ context.Context, workflowID string) ([]*models.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Run
	for _, run := range s.runs {
		if run.WorkflowID == workflowID {
			out = append(out, cloneRun(run))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

func (s *MemoryRunStore) TransitionStatus(_ context.Context, id string, from, to models.RunStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return false, fmt.Errorf("run %q: %w", id, ErrNotFound)
	}
	if run.Status != from {
		return false, nil
	}
	run.Status = to
	if to.Terminal() && run.CompletedAt == nil {
		now := time.Now().UTC()
		run.CompletedAt = &now
	}
	return true, nil
}

// MemoryFactStore collects extracted facts in memory.
type MemoryFactStore struct {
	mu    sync.Mutex
	facts map[string][]string
}

// NewMemoryFactStore creates an empty in-memory fact store.
func NewMemoryFactStore() *MemoryFactStore {
	return &MemoryFactStore{facts: make(map[string][]string)}
}

func (s *MemoryFactStore) SaveFacts(_ context.Context, userID, _ string, facts []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.facts[userID] = append(s.facts[userID], facts...)
	return nil
}

// Facts returns the facts stored for a user.
func (s *MemoryFactStore) Facts(userID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.facts[userID]...)
}

// cloneWorkflow and cloneRun deep-copy through JSON so callers never alias
// stored records.
func cloneWorkflow(wf *models.Workflow) *models.Workflow {
	var out models.Workflow
	mustRoundtrip(wf, &out)
	return &out
}

func cloneRun(run *models.Run) *models.Run {
	var out models.Run
	mustRoundtrip(run, &out)
	return &out
}

func mustRoundtrip(in, out any) {
	buf, err := json.Marshal(in)
	if err != nil {
		panic(fmt.Sprintf("repository: clone: %v", err))
	}
	if err := json.Unmarshal(buf, out); err != nil {
		panic(fmt.Sprintf("repository: clone: %v", err))
	}
}
