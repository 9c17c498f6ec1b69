package intake

// EventType identifies a progress event.
type EventType string

const (
	EventFile     EventType = "file"
	EventComplete EventType = "complete"
)

const subscriberBuffer = 64

// Event is a progress update for one job.
type Event struct {
	Type     EventType   `json:"type"`
	JobID    string      `json:"jobId"`
	Progress float64     `json:"progress"`
	File     *FileResult `json:"file,omitempty"`
	Job      *Job        `json:"job,omitempty"`
}

// Subscribe returns a channel of events for jobID and a function that
// unsubscribes. The channel is closed after the complete event. For a job
// that already finished the channel is closed immediately; callers should
// read the final state with Get.
func (m *Manager) Subscribe(jobID string) (<-chan Event, func(), bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return nil, func() {}, false
	}

	ch := make(chan Event, subscriberBuffer)
	if job.done() {
		close(ch)
		return ch, func() {}, true
	}
	m.subs[jobID] = append(m.subs[jobID], ch)

	unsubscribe := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		subs := m.subs[jobID]
		for i, c := range subs {
			if c == ch {
				m.subs[jobID] = append(subs[:i:i], subs[i+1:]...)
				close(ch)
				break
			}
		}
		if len(m.subs[jobID]) == 0 {
			delete(m.subs, jobID)
		}
	}
	return ch, unsubscribe, true
}

// publishLocked delivers ev without blocking. Slow subscribers miss
// intermediate file events; the complete event is always delivered because
// the channel is drained of one stale event to make room for it.
func (m *Manager) publishLocked(job *Job, ev Event) {
	for _, ch := range m.subs[job.ID] {
		select {
		case ch <- ev:
			continue
		default:
		}
		if ev.Type != EventComplete {
			continue
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- ev:
		default:
		}
	}
}

func (m *Manager) closeSubsLocked(jobID string) {
	for _, ch := range m.subs[jobID] {
		close(ch)
	}
	delete(m.subs, jobID)
}
