// Package parser runs the ordered service pipeline enriching discovered
// files: probe, metadata extraction, thumbnailing. Each service has its
// own queue and worker pool; progress persists across restarts.
package parser

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/franz/medialib/internal/fs"
	"github.com/franz/medialib/internal/store"
	"github.com/franz/medialib/internal/util"
)

// Callback receives parser progress notifications.
type Callback interface {
	OnParsingStatsUpdated(percent float64)
}

// Parser owns the service chain and routes tasks through it in order.
type Parser struct {
	store     *store.Store
	factories *fs.Factories
	cb        Callback
	log       *logrus.Entry

	workers []*serviceWorker

	scheduled atomic.Int64
	done      atomic.Int64

	idleMu        sync.Mutex
	wasIdle       bool
	onIdleChanged func(idle bool)
}

// New creates a parser over an ordered service chain. cb may be nil.
func New(s *store.Store, factories *fs.Factories, cb Callback, services ...Service) *Parser {
	p := &Parser{
		store:     s,
		factories: factories,
		cb:        cb,
		log:       util.ComponentLogger("parser"),
		wasIdle:   true,
	}
	for _, svc := range services {
		p.workers = append(p.workers, newServiceWorker(svc, p))
	}
	return p
}

// SetIdleCallback installs the idle-transition observer. Must be called
// before Start.
func (p *Parser) SetIdleCallback(fn func(bool)) {
	p.onIdleChanged = fn
}

// Start initializes every service and launches the worker pools, then
// rehydrates unfinished tasks from disk.
func (p *Parser) Start() error {
	for _, w := range p.workers {
		if err := w.service.Initialize(); err != nil {
			return err
		}
	}
	for _, w := range p.workers {
		w.start()
	}
	return p.Restore()
}

// Restore loads unfinished tasks from the database and queues them.
// Completed steps are skipped by the workers.
func (p *Parser) Restore() error {
	tasks, err := p.store.UnparsedTasks()
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return nil
	}
	p.log.WithField("count", len(tasks)).Info("restoring unfinished parse tasks")
	for _, record := range tasks {
		t := &Task{Record: record}
		if !t.restoreLinkedEntities(p.store, p.factories) {
			p.log.WithField("mrl", record.Mrl).Warn("cannot restore task, file unreachable")
			continue
		}
		p.Parse(t.Record)
	}
	return nil
}

// Parse schedules a task on the first service of the chain.
func (p *Parser) Parse(record *store.Task) {
	if len(p.workers) == 0 {
		return
	}
	t := &Task{Record: record}
	p.scheduled.Add(1)
	p.notifyIdle()
	p.workers[0].enqueue(t)
}

// Pause blocks every worker at its next dequeue.
func (p *Parser) Pause() {
	for _, w := range p.workers {
		w.pause()
	}
}

// Resume wakes all paused workers.
func (p *Parser) Resume() {
	for _, w := range p.workers {
		w.resume()
	}
}

// Flush drops all in-memory queues. Tasks stay persisted and can be
// rehydrated with Restore.
func (p *Parser) Flush() {
	for _, w := range p.workers {
		w.flush()
	}
	p.scheduled.Store(p.done.Load())
	p.notifyIdle()
}

// Stop signals every worker, then waits for them to drain.
func (p *Parser) Stop() {
	for _, w := range p.workers {
		w.signalStop()
	}
	for _, w := range p.workers {
		w.join()
	}
}

// IsIdle reports whether every service queue is empty and no worker is
// running.
func (p *Parser) IsIdle() bool {
	for _, w := range p.workers {
		if !w.isIdle() {
			return false
		}
	}
	return true
}

func (p *Parser) notifyIdle() {
	if p.onIdleChanged == nil {
		return
	}
	idle := p.IsIdle()
	p.idleMu.Lock()
	changed := idle != p.wasIdle
	p.wasIdle = idle
	p.idleMu.Unlock()
	if changed {
		p.onIdleChanged(idle)
	}
}

// onServiceDone is invoked by a worker after running a service over a
// task; it persists progress and routes the task onward.
func (p *Parser) onServiceDone(w *serviceWorker, t *Task, status Status) {
	switch status {
	case StatusSuccess:
		if !t.Record.IsStepCompleted(w.service.Step()) {
			if err := p.store.SaveTaskStep(t.Record, w.service.Step()); err != nil {
				p.log.WithError(err).Error("failed to persist parser step")
			}
		}
		if next := p.nextWorker(w); next != nil {
			next.enqueue(t)
			return
		}
		p.completeTask(t)

	case StatusError:
		if err := p.store.StartTaskStep(t.Record); err != nil {
			p.log.WithError(err).Error("failed to persist retry count")
		}
		if t.Record.RetryCount < 3 {
			w.enqueue(t)
			return
		}
		p.log.WithField("mrl", t.Record.Mrl).Warn("giving up on task after retries")
		p.completeTask(t)

	case StatusFatal:
		p.store.MarkTaskFatal(t.Record)
		p.completeTask(t)
	}
}

func (p *Parser) nextWorker(w *serviceWorker) *serviceWorker {
	for i, candidate := range p.workers {
		if candidate == w && i+1 < len(p.workers) {
			return p.workers[i+1]
		}
	}
	return nil
}

func (p *Parser) completeTask(t *Task) {
	if t.Record.IsCompleted() {
		if err := p.store.DeleteTask(t.Record); err != nil {
			p.log.WithError(err).Error("failed to delete completed task")
		}
	}
	done := p.done.Add(1)
	scheduled := p.scheduled.Load()
	if p.cb != nil && scheduled > 0 {
		p.cb.OnParsingStatsUpdated(float64(done) / float64(scheduled) * 100)
	}
	p.notifyIdle()
}
