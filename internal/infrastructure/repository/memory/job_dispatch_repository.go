package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/riskibarqy/odds-grading/internal/domain/jobscheduler"
)

// JobDispatchRepository keeps the latest event and the folded record per
// dispatch id.
type JobDispatchRepository struct {
	mu      sync.RWMutex
	events  map[string]jobscheduler.DispatchEvent
	records map[string]jobscheduler.DispatchRecord
}

func NewJobDispatchRepository() *JobDispatchRepository {
	return &JobDispatchRepository{
		events:  make(map[string]jobscheduler.DispatchEvent),
		records: make(map[string]jobscheduler.DispatchRecord),
	}
}

func (r *JobDispatchRepository) UpsertEvent(_ context.Context, event jobscheduler.DispatchEvent) error {
	event = event.Normalize(time.Now())
	if event.DispatchID == "" {
		return fmt.Errorf("dispatch id is required")
	}
	if !event.Status.Valid() {
		return fmt.Errorf("invalid dispatch status %q", event.Status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.events[event.DispatchID] = event
	r.records[event.DispatchID] = r.records[event.DispatchID].Apply(event)
	return nil
}

func (r *JobDispatchRepository) GetByDispatchID(_ context.Context, dispatchID string) (jobscheduler.DispatchRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[strings.TrimSpace(dispatchID)]
	if !ok {
		return jobscheduler.DispatchRecord{}, jobscheduler.ErrNotFound
	}
	return record, nil
}

// Get returns the last raw event written for dispatchID.
func (r *JobDispatchRepository) Get(dispatchID string) (jobscheduler.DispatchEvent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.events[dispatchID]
	return item, ok
}
