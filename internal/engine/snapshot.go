package engine

// Snapshot returns the engine's current per-task statuses plus a
// most-recent-first history slice across all tasks.
func (g *Engine) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	snap := Snapshot{Enabled: g.cfg.Enabled, Started: g.started}
	for _, def := range g.reg.List() {
		st := TaskStatus{
			Name:    def.Name,
			Summary: def.Summary(),
			State:   Idle,
			LastRun: def.LastRun,
		}
		if ent := g.entries[def.Name]; ent != nil {
			st.State = ent.state()
			st.NextRun = ent.next
			st.Runs = len(ent.runs)
		}
		snap.Tasks = append(snap.Tasks, st)
	}
	snap.History = g.historyLocked(g.cfg.HistorySize)
	return snap
}

// Status returns the status of one task, or ErrNotFound.
func (g *Engine) Status(name string) (TaskStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	def, ok := g.reg.Get(name)
	if !ok {
		return TaskStatus{}, ErrNotFound
	}
	st := TaskStatus{Name: def.Name, Summary: def.Summary(), State: Idle, LastRun: def.LastRun}
	if ent := g.entries[def.Name]; ent != nil {
		st.State = ent.state()
		st.NextRun = ent.next
		st.Runs = len(ent.runs)
	}
	return st, nil
}

// History returns up to limit records across all tasks, most recent first.
func (g *Engine) History(limit int) []HistoryRecord {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.historyLocked(limit)
}
