package runtime

import (
	"context"

	"github.com/rs/zerolog/log"
)

// taskError reports a component loop that returned early.
type taskError struct {
	task string
	err  error
}

// taskGroup supervises the goroutines of one component graph. Stop
// cancels every task and waits for all of them to return, so a new
// graph is never instantiated while the old one still runs.
type taskGroup struct {
	tasks []*task
	errs  chan taskError
}

type task struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
}

func newTaskGroup() *taskGroup {
	return &taskGroup{errs: make(chan taskError, 16)}
}

// spawn runs fn on its own goroutine under a cancellable child context.
func (g *taskGroup) spawn(parent context.Context, name string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithCancel(parent)
	t := &task{name: name, cancel: cancel, done: make(chan struct{})}
	g.tasks = append(g.tasks, t)
	go func() {
		defer close(t.done)
		if err := fn(ctx); err != nil && ctx.Err() == nil {
			select {
			case g.errs <- taskError{task: name, err: err}:
			default:
				log.Error().Str("task", name).Err(err).Msg("task error dropped")
			}
		}
	}()
}

// stop cancels all tasks and blocks until every one has returned.
func (g *taskGroup) stop() {
	for _, t := range g.tasks {
		t.cancel()
	}
	for _, t := range g.tasks {
		<-t.done
	}
	g.tasks = nil
}

// drainErrors logs any task failures collected since the last tick.
func (g *taskGroup) drainErrors() {
	for {
		select {
		case te := <-g.errs:
			log.Warn().Str("task", te.task).Err(te.err).Msg("component task exited with error")
		default:
			return
		}
	}
}
