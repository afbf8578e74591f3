package parser

import (
	"sync"

	"github.com/sourcegraph/conc"

	"github.com/franz/medialib/internal/store"
	"github.com/franz/medialib/internal/util"
)

// Status is the outcome of one service run over one task.
type Status int

const (
	// StatusSuccess: the step completed; hand over to the next service.
	StatusSuccess Status = iota
	// StatusError: transient failure; retry up to the task's budget.
	StatusError
	// StatusFatal: the task can never complete; stop working on it.
	StatusFatal
)

// Service is one stage of the parser pipeline.
type Service interface {
	Name() string
	// Step is the completion bit this service owns.
	Step() store.ParserStep
	// NbThreads is the worker count of this service's queue.
	NbThreads() int
	Initialize() error
	Run(t *Task) Status
}

// serviceWorker pairs a service with its FIFO and worker pool.
type serviceWorker struct {
	service Service
	parser  *Parser

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []*Task
	paused bool
	stop   bool
	active int

	workers conc.WaitGroup
}

func newServiceWorker(svc Service, p *Parser) *serviceWorker {
	w := &serviceWorker{service: svc, parser: p}
	w.cond = sync.NewCond(&w.mu)
	return w
}

func (w *serviceWorker) start() {
	for i := 0; i < w.service.NbThreads(); i++ {
		w.workers.Go(w.mainloop)
	}
}

// enqueue appends a task at the tail and wakes one worker.
func (w *serviceWorker) enqueue(t *Task) {
	w.mu.Lock()
	w.queue = append(w.queue, t)
	w.mu.Unlock()
	w.cond.Signal()
}

func (w *serviceWorker) pause() {
	w.mu.Lock()
	w.paused = true
	w.mu.Unlock()
}

func (w *serviceWorker) resume() {
	w.mu.Lock()
	w.paused = false
	w.mu.Unlock()
	w.cond.Broadcast()
}

// flush drops the in-memory queue; the tasks stay on disk.
func (w *serviceWorker) flush() {
	w.mu.Lock()
	w.queue = nil
	w.mu.Unlock()
}

func (w *serviceWorker) signalStop() {
	w.mu.Lock()
	w.stop = true
	w.mu.Unlock()
	w.cond.Broadcast()
}

func (w *serviceWorker) join() {
	w.workers.Wait()
}

// isIdle reports an empty queue with no worker running.
func (w *serviceWorker) isIdle() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue) == 0 && w.active == 0
}

func (w *serviceWorker) mainloop() {
	log := util.ComponentLogger("parser." + w.service.Name())
	for {
		w.mu.Lock()
		for !w.stop && (w.paused || len(w.queue) == 0) {
			w.cond.Wait()
		}
		if w.stop {
			w.mu.Unlock()
			return
		}
		t := w.queue[0]
		w.queue = w.queue[1:]
		w.active++
		w.mu.Unlock()

		status := w.runOne(t)
		if status == StatusFatal {
			log.WithField("mrl", t.Record.Mrl).Error("task failed fatally")
		}

		w.mu.Lock()
		w.active--
		w.mu.Unlock()

		w.parser.onServiceDone(w, t, status)
	}
}

// runOne executes the service over a task, skipping steps already
// completed in a previous run.
func (w *serviceWorker) runOne(t *Task) Status {
	if t.Record.IsStepCompleted(w.service.Step()) {
		return StatusSuccess
	}
	return w.service.Run(t)
}
