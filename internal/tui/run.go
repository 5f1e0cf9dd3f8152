package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"chatdeck/internal/bridge"
	"chatdeck/internal/config"
	"chatdeck/internal/engine"
	"chatdeck/internal/logging"
	"chatdeck/internal/store"
)

// deferredSink breaks the bridge/registry construction cycle: the bridge
// needs an event sink before the registry exists, and the registry needs
// the bridge as its commander. No events flow before set is called.
type deferredSink struct {
	registry *engine.Registry
}

func (s *deferredSink) Deliver(sessionID string, ev engine.BackendEvent) {
	if s.registry != nil {
		s.registry.Deliver(sessionID, ev)
	}
}

// Run wires the engine, bridge and store together and blocks until the
// user quits.
func Run(cfg config.Config) error {
	logger := logging.NewLogger(logging.DefaultLogWriter())

	root := cfg.DataRoot
	if root == "" {
		root = store.DefaultDataRoot()
	}
	st, err := store.NewSQLiteStore(root)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	sink := &deferredSink{}
	br := bridge.New(cfg.BackendCommand, cfg.BackendArgs, cfg.Workspace, sink, logger)
	defer br.Close()

	registry := engine.NewRegistry(br, logger)
	sink.registry = registry
	registry.CreateSession(cfg.Workspace)

	model := NewMainModel(registry, st, cfg)
	program := tea.NewProgram(model, tea.WithAltScreen())

	registry.SetNotify(func(sessionID string) {
		program.Send(sessionUpdatedMsg{sessionID: sessionID})
	})

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}
