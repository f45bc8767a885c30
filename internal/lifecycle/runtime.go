// Package lifecycle sequences component startup and shutdown. Components
// start in registration order and stop in reverse, so dependents go down
// before their dependencies.
package lifecycle

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

type Component interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type registered struct {
	name      string
	component Component
}

type Runtime struct {
	components []registered

	logger *log.Entry
}

func NewRuntime() *Runtime {
	return &Runtime{logger: log.WithField("object", "runtime")}
}

func (r *Runtime) Register(name string, component Component) {
	if component == nil {
		return
	}
	r.components = append(r.components, registered{name: name, component: component})
}

// Start brings components up in registration order. The first failure rolls
// back every component already started and the error propagates.
func (r *Runtime) Start(ctx context.Context) error {
	started := make([]registered, 0, len(r.components))
	for _, reg := range r.components {
		r.logger.WithField("component", reg.name).Debug("starting component")
		if err := reg.component.Start(ctx); err != nil {
			_ = stopAll(ctx, started, r.logger)
			return fmt.Errorf("start %s: %w", reg.name, err)
		}
		started = append(started, reg)
	}
	return nil
}

// Stop shuts down every component in reverse order, collecting all errors
// instead of stopping at the first.
func (r *Runtime) Stop(ctx context.Context) error {
	return stopAll(ctx, r.components, r.logger)
}

func stopAll(ctx context.Context, components []registered, logger *log.Entry) error {
	var stopErr error
	for i := len(components) - 1; i >= 0; i-- {
		reg := components[i]
		logger.WithField("component", reg.name).Debug("stopping component")
		if err := reg.component.Stop(ctx); err != nil {
			stopErr = errors.Join(stopErr, fmt.Errorf("stop %s: %w", reg.name, err))
		}
	}
	return stopErr
}
