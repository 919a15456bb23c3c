package execution

import (
	"sync"
)

type invocation struct {
	token   uint64
	agentID string
}

// Tracker records which agents are running on behalf of each chat. Several
// invocations may be active for one chat at once (subtasks of a batch); each
// removes only its own entry when it ends.
type Tracker struct {
	mu     sync.Mutex
	next   uint64
	active map[string][]invocation
}

func NewTracker() *Tracker {
	return &Tracker{active: make(map[string][]invocation)}
}

// Begin marks agentID as executing for chatID. The returned func ends the
// mark and is safe to call more than once.
func (t *Tracker) Begin(chatID, agentID string) (end func()) {
	t.mu.Lock()
	t.next++
	token := t.next
	t.active[chatID] = append(t.active[chatID], invocation{token: token, agentID: agentID})
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { t.end(chatID, token) })
	}
}

func (t *Tracker) end(chatID string, token uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	list := t.active[chatID]
	for i, inv := range list {
		if inv.token == token {
			list = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(t.active, chatID)
		return
	}
	t.active[chatID] = list
}

// Current returns the most recently started agent still executing for chatID.
func (t *Tracker) Current(chatID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	list := t.active[chatID]
	if len(list) == 0 {
		return "", false
	}
	return list[len(list)-1].agentID, true
}

// IsExecuting reports whether agentID has any active invocation for chatID.
func (t *Tracker) IsExecuting(chatID, agentID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, inv := range t.active[chatID] {
		if inv.agentID == agentID {
			return true
		}
	}
	return false
}
