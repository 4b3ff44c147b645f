package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oshokin/ant-controller/internal/logger"
	repo "github.com/oshokin/ant-controller/internal/repository/state"
	"github.com/oshokin/ant-controller/internal/service/engine"
)

// restorer re-applies saved selections.
type restorer interface {
	Restore(ctx context.Context, selections map[string]string) error
}

// service keeps the persisted selections in step with the engine.
// It is unexported to keep the transport decoupled from the implementation.
type service struct {
	// repo handles persistent storage of group selections.
	repo repo.Repository
	// mu serializes saves issued by concurrent observers.
	mu sync.Mutex
}

// newService creates a service backed by the provided repository.
func newService(repository repo.Repository) *service {
	return &service{
		repo: repository,
	}
}

// restore re-activates the saved selections when they belong to source.
func (s *service) restore(ctx context.Context, target restorer, source string) error {
	if s.repo == nil {
		return nil
	}

	saved, err := s.repo.Load(ctx)
	switch {
	case err == nil:
	case errors.Is(err, repo.ErrNotFound):
		logger.Info(ctx, "No saved selections, keeping the boot state")

		return nil
	default:
		return fmt.Errorf("load selections: %w", err)
	}

	if saved.Source != source {
		logger.WarnKV(ctx, "Saved selections belong to another preset, ignoring",
			"saved_source", saved.Source, "source", source)

		return nil
	}

	if err = target.Restore(ctx, saved.Groups); err != nil {
		return fmt.Errorf("restore selections: %w", err)
	}

	logger.InfoKV(ctx, "Selections restored", "source", source, "saved_at", saved.SavedAt)

	return nil
}

// onChange persists the selections after a state change.
func (s *service) onChange(ctx context.Context, change engine.Change) {
	if s.repo == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	selections := &repo.Selections{
		Source:  change.Source,
		Groups:  change.Groups,
		SavedAt: time.Now(),
	}

	if err := s.repo.Save(ctx, selections); err != nil {
		logger.Errorf(ctx, "Failed to persist selections: %v", err)

		return
	}

	logger.DebugKV(ctx, "Selections saved", "source", change.Source, "groups", change.Groups)
}
