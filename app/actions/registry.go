package actions

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"autoflow/app/objects"
	"autoflow/pkg/contextx"
	"autoflow/pkg/log"
)

// Handler executes one named action for the tenant of a workflow context.
type Handler interface {
	Name() string
	// Validate checks raw parameters. With partial set, values that are still
	// unrendered templates are not checked.
	Validate(params map[string]interface{}, partial bool) error
	Execute(ctx *contextx.Context, params map[string]interface{}, wctx *objects.WorkflowContext) (interface{}, error)
}

type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry(handlers ...Handler) *Registry {
	r := &Registry{handlers: map[string]Handler{}}
	for _, h := range handlers {
		r.Register(h)
	}
	return r
}

// Register adds h, replacing any handler of the same name.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.Name()] = h
}

func (r *Registry) Lookup(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PanicError reports a handler that panicked.
type PanicError struct {
	Action string
	Value  interface{}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("action %s panicked: %v", e.Action, e.Value)
}

// TimeoutError reports a handler that did not return within its budget.
type TimeoutError struct {
	Action  string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("run action %s timeout after %s", e.Action, e.Timeout)
}

func call(ctx *contextx.Context, h Handler, params map[string]interface{}, wctx *objects.WorkflowContext) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf(ctx, "action %s panicked: %v", h.Name(), r)
			err = &PanicError{Action: h.Name(), Value: r}
		}
	}()
	return h.Execute(ctx, params, wctx)
}

// CallWithTimeout runs h and gives up after timeout. The handler's context is
// cancelled at the deadline; a timed out handler counts as failed.
func CallWithTimeout(ctx *contextx.Context, h Handler, params map[string]interface{}, wctx *objects.WorkflowContext, timeout time.Duration) (interface{}, error) {
	if timeout <= 0 {
		return call(ctx, h, params, wctx)
	}

	parent := ctx.Context
	if parent == nil {
		parent = context.Background()
	}
	timed, cancel := context.WithTimeout(parent, timeout)
	defer cancel()
	subCtx := ctx.WithParent(timed)

	resultChan := make(chan interface{}, 1)
	errChan := make(chan error, 1)
	go func() {
		result, err := call(subCtx, h, params, wctx)
		if err != nil {
			errChan <- err
		} else {
			resultChan <- result
		}
	}()

	select {
	case result := <-resultChan:
		return result, nil
	case err := <-errChan:
		return nil, err
	case <-timed.Done():
		select {
		case result := <-resultChan:
			return result, nil
		case err := <-errChan:
			return nil, err
		default:
		}
		if timed.Err() == context.DeadlineExceeded {
			return nil, &TimeoutError{Action: h.Name(), Timeout: timeout}
		}
		return nil, fmt.Errorf("action %s interrupted: %w", h.Name(), timed.Err())
	}
}
