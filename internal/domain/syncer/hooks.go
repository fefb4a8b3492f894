package syncer

import "context"

// HookEvent is a point in a synchronization where hooks run.
type HookEvent string

const (
	AfterCreate    HookEvent = "after_create"
	AfterSupersede HookEvent = "after_supersede"
	AfterRetire    HookEvent = "after_retire"
)

// Hook runs inside the synchronization transaction; an error aborts the batch.
type Hook[T any] func(ctx context.Context, version T) error

// HookRegistry stores hooks per event, run in registration order.
type HookRegistry[T any] struct {
	hooks map[HookEvent][]Hook[T]
}

func NewHookRegistry[T any]() *HookRegistry[T] {
	return &HookRegistry[T]{
		hooks: make(map[HookEvent][]Hook[T]),
	}
}

// On registers hook for event.
func (r *HookRegistry[T]) On(event HookEvent, hook Hook[T]) {
	r.hooks[event] = append(r.hooks[event], hook)
}

// Run executes the hooks of event, stopping at the first error.
func (r *HookRegistry[T]) Run(ctx context.Context, event HookEvent, version T) error {
	for _, hook := range r.hooks[event] {
		if err := hook(ctx, version); err != nil {
			return err
		}
	}
	return nil
}
