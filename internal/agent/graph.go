package agent

// readyTasks returns the pending tasks whose dependencies have all
// settled. A dependency is settled once it holds any entry in finished,
// whether it succeeded or failed; failed dependencies contribute no
// context but never block a dependent.
func readyTasks(tasks []*Task, finished map[string]bool) []*Task {
	var ready []*Task
	for _, t := range tasks {
		if finished[t.ID] {
			continue
		}
		ok := true
		for _, dep := range t.DependsOn {
			if !finished[dep] {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, t)
		}
	}
	return ready
}

// pendingTasks returns the tasks not yet settled.
func pendingTasks(tasks []*Task, finished map[string]bool) []*Task {
	var pending []*Task
	for _, t := range tasks {
		if !finished[t.ID] {
			pending = append(pending, t)
		}
	}
	return pending
}
