package agent

import (
	"context"

	"github.com/pthm-cable/dinoevo/clock"
	"github.com/pthm-cable/dinoevo/dashboard"
)

// Remote exposes an agent to other goroutines by posting every call onto the
// loop that runs it.
type Remote struct {
	agent *Agent
	loop  *clock.Loop
}

// NewRemote creates a dashboard controller for an agent driven by loop.
func NewRemote(a *Agent, loop *clock.Loop) *Remote {
	return &Remote{agent: a, loop: loop}
}

// View implements dashboard.Controller.
func (r *Remote) View() (dashboard.View, error) {
	var v dashboard.View
	err := r.loop.Do(func() { v = r.agent.View() })
	return v, err
}

// ToggleLearning implements dashboard.Controller.
func (r *Remote) ToggleLearning() error {
	return r.loop.Do(r.agent.ToggleLearning)
}

// Save implements dashboard.Controller.
func (r *Remote) Save() (string, error) {
	var (
		name    string
		saveErr error
	)
	err := r.loop.Do(func() {
		entry, err := r.agent.Save(context.Background())
		name, saveErr = entry.Name, err
	})
	if err != nil {
		return "", err
	}
	return name, saveErr
}

// Saved implements dashboard.Controller.
func (r *Remote) Saved() ([]string, error) {
	var (
		names   []string
		listErr error
	)
	err := r.loop.Do(func() {
		entries, err := r.agent.Saved(context.Background())
		for _, e := range entries {
			names = append(names, e.Name)
		}
		listErr = err
	})
	if err != nil {
		return nil, err
	}
	return names, listErr
}

// Load implements dashboard.Controller.
func (r *Remote) Load(name string, replace bool) error {
	var loadErr error
	err := r.loop.Do(func() {
		loadErr = r.agent.Load(context.Background(), name, replace)
	})
	if err != nil {
		return err
	}
	return loadErr
}
