package execution

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/gammazero/toposort"

	"github.com/aristath/agentorch/internal/session"
)

// ErrDependencyCycle is returned when the remaining subtasks can never run,
// either because they depend on each other or because a dependency will never
// finish.
var ErrDependencyCycle = errors.New("dependency cycle")

// checkCycles rejects a plan whose unfinished, assigned subtasks form a cycle.
// It runs before anything executes so a cyclic plan leaves every subtask
// untouched.
func checkCycles(subtasks []session.Subtask) error {
	live := make(map[string]session.Subtask)
	for _, t := range subtasks {
		if t.Status == session.SubtaskAssigned {
			live[t.ID] = t
		}
	}

	var edges []toposort.Edge
	for _, t := range subtasks {
		if _, ok := live[t.ID]; !ok {
			continue
		}
		edges = append(edges, toposort.Edge{nil, t.ID})
		for _, dep := range t.Dependencies {
			if _, ok := live[dep]; ok {
				edges = append(edges, toposort.Edge{dep, t.ID})
			}
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err == nil {
		n := 0
		for _, id := range sorted {
			if id != nil {
				n++
			}
		}
		if n == len(live) {
			return nil
		}
	}

	members := cycleMembers(live)
	return fmt.Errorf("%w among subtasks %s", ErrDependencyCycle, strings.Join(members, ", "))
}

// cycleMembers peels off every subtask that has no live dependency or no live
// dependent until nothing changes. What remains lies on, or between, cycles.
func cycleMembers(live map[string]session.Subtask) []string {
	deps := make(map[string][]string, len(live))
	for id, t := range live {
		for _, d := range t.Dependencies {
			if _, ok := live[d]; ok {
				deps[id] = append(deps[id], d)
			}
		}
	}

	remaining := make(map[string]bool, len(live))
	for id := range live {
		remaining[id] = true
	}

	for changed := true; changed; {
		changed = false
		for id := range remaining {
			hasDep, hasDependent := false, false
			for _, d := range deps[id] {
				if remaining[d] {
					hasDep = true
					break
				}
			}
			for other := range remaining {
				if slices.Contains(deps[other], id) {
					hasDependent = true
					break
				}
			}
			if !hasDep || !hasDependent {
				delete(remaining, id)
				changed = true
			}
		}
	}

	out := make([]string, 0, len(remaining))
	for id := range remaining {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// diagnoseBlocked explains why the unfinished subtasks cannot make progress.
func diagnoseBlocked(subtasks []session.Subtask, done map[string]bool) error {
	known := make(map[string]session.Subtask, len(subtasks))
	for _, t := range subtasks {
		known[t.ID] = t
	}

	var reasons []string
	for _, t := range subtasks {
		if done[t.ID] {
			continue
		}
		if t.Status != session.SubtaskAssigned {
			reasons = append(reasons, fmt.Sprintf("%s is %s and never assigned", t.ID, t.Status))
			continue
		}
		for _, dep := range t.Dependencies {
			if done[dep] {
				continue
			}
			if _, ok := known[dep]; !ok {
				reasons = append(reasons, fmt.Sprintf("%s depends on unknown subtask %s", t.ID, dep))
			} else {
				reasons = append(reasons, fmt.Sprintf("%s waits on %s", t.ID, dep))
			}
		}
	}
	return fmt.Errorf("%w: %d subtasks blocked (%s)", ErrDependencyCycle, countPending(subtasks, done), strings.Join(reasons, "; "))
}

func countPending(subtasks []session.Subtask, done map[string]bool) int {
	n := 0
	for _, t := range subtasks {
		if !done[t.ID] {
			n++
		}
	}
	return n
}
