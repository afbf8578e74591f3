package parser

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/franz/medialib/internal/fs"
	"github.com/franz/medialib/internal/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	s, _, err = store.Migrate(s)
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testFactories(t *testing.T) *fs.Factories {
	t.Helper()
	mem := afero.NewMemMapFs()
	mem.MkdirAll("/music", 0o755)
	afero.WriteFile(mem, "/music/a.mp3", []byte("x"), 0o644)
	return fs.NewFactories(fs.NewLocalFactoryWithFs(mem, []fs.Mount{{Path: "/"}}))
}

// orderLog collects service names across a pipeline run.
type orderLog struct {
	mu    sync.Mutex
	names []string
}

func (o *orderLog) add(name string) {
	o.mu.Lock()
	o.names = append(o.names, name)
	o.mu.Unlock()
}

// fakeService records the order tasks pass through it.
type fakeService struct {
	name string
	step store.ParserStep
	run  func(t *Task) Status

	mu    sync.Mutex
	seen  []string
	order *orderLog
}

func (f *fakeService) Name() string { return f.name }

func (f *fakeService) Step() store.ParserStep { return f.step }

func (f *fakeService) NbThreads() int { return 1 }

func (f *fakeService) Initialize() error { return nil }

func (f *fakeService) Run(t *Task) Status {
	f.mu.Lock()
	f.seen = append(f.seen, t.Record.Mrl)
	f.mu.Unlock()
	if f.order != nil {
		f.order.add(f.name)
	}
	if f.run != nil {
		return f.run(t)
	}
	return StatusSuccess
}

func waitIdle(t *testing.T, p *Parser) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !p.IsIdle() {
		if time.Now().After(deadline) {
			t.Fatal("parser did not become idle")
		}
		time.Sleep(5 * time.Millisecond)
	}
	// Settle: completion callbacks run just after the idle flip.
	time.Sleep(20 * time.Millisecond)
}

func TestPipelineRunsServicesInOrder(t *testing.T) {
	s := testStore(t)

	order := &orderLog{}
	sync1 := &fakeService{name: "one", step: store.StepProbe, order: order}
	sync2 := &fakeService{name: "two", step: store.StepMetadata, order: order}
	sync3 := &fakeService{name: "three", step: store.StepThumbnail, order: order}

	p := New(s, testFactories(t), nil, sync1, sync2, sync3)
	if err := p.Start(); err != nil {
		t.Fatalf("failed to start parser: %v", err)
	}
	defer p.Stop()

	task, _ := s.CreateTask("file:///music/a.mp3", 0, 0, 0)
	p.Parse(task)
	waitIdle(t, p)

	want := []string{"one", "two", "three"}
	order.mu.Lock()
	got := append([]string(nil), order.names...)
	order.mu.Unlock()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}

	// The completed task is gone from disk.
	if pending, _ := s.PendingTaskCount(); pending != 0 {
		t.Errorf("%d tasks still pending", pending)
	}
}

func TestErrorRetriesThenGivesUp(t *testing.T) {
	s := testStore(t)

	failing := &fakeService{
		name: "flaky",
		step: store.StepProbe,
		run:  func(*Task) Status { return StatusError },
	}
	p := New(s, testFactories(t), nil, failing)
	if err := p.Start(); err != nil {
		t.Fatalf("failed to start parser: %v", err)
	}
	defer p.Stop()

	task, _ := s.CreateTask("file:///music/a.mp3", 0, 0, 0)
	p.Parse(task)
	waitIdle(t, p)

	failing.mu.Lock()
	attempts := len(failing.seen)
	failing.mu.Unlock()
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestFatalStopsTask(t *testing.T) {
	s := testStore(t)

	fatal := &fakeService{
		name: "fatal",
		step: store.StepProbe,
		run:  func(*Task) Status { return StatusFatal },
	}
	next := &fakeService{name: "after", step: store.StepMetadata}
	p := New(s, testFactories(t), nil, fatal, next)
	if err := p.Start(); err != nil {
		t.Fatalf("failed to start parser: %v", err)
	}
	defer p.Stop()

	task, _ := s.CreateTask("file:///music/a.mp3", 0, 0, 0)
	p.Parse(task)
	waitIdle(t, p)

	next.mu.Lock()
	reached := len(next.seen)
	next.mu.Unlock()
	if reached != 0 {
		t.Error("fatal task reached the next service")
	}
	if tasks, _ := s.UnparsedTasks(); len(tasks) != 0 {
		t.Error("fatal task still schedulable")
	}
}

func TestRestoreSkipsCompletedSteps(t *testing.T) {
	s := testStore(t)

	task, _ := s.CreateTask("file:///music/a.mp3", 0, 0, 0)
	s.SaveTaskStep(task, store.StepProbe)

	first := &fakeService{name: "probe", step: store.StepProbe}
	second := &fakeService{name: "meta", step: store.StepMetadata}
	third := &fakeService{name: "thumb", step: store.StepThumbnail}
	p := New(s, testFactories(t), nil, first, second, third)
	if err := p.Start(); err != nil {
		t.Fatalf("failed to start parser: %v", err)
	}
	defer p.Stop()
	waitIdle(t, p)

	first.mu.Lock()
	probeRuns := len(first.seen)
	first.mu.Unlock()
	second.mu.Lock()
	metaRuns := len(second.seen)
	second.mu.Unlock()
	if probeRuns != 0 {
		t.Error("completed step ran again after restore")
	}
	if metaRuns != 1 {
		t.Errorf("pending step ran %d times, want 1", metaRuns)
	}
}

func TestPauseHoldsQueue(t *testing.T) {
	s := testStore(t)

	svc := &fakeService{name: "paused", step: store.StepProbe}
	p := New(s, testFactories(t), nil, svc)
	if err := p.Start(); err != nil {
		t.Fatalf("failed to start parser: %v", err)
	}
	defer p.Stop()

	p.Pause()
	task, _ := s.CreateTask("file:///music/a.mp3", 0, 0, 0)
	p.Parse(task)

	time.Sleep(50 * time.Millisecond)
	svc.mu.Lock()
	ranWhilePaused := len(svc.seen)
	svc.mu.Unlock()
	if ranWhilePaused != 0 {
		t.Error("service ran while paused")
	}

	p.Resume()
	waitIdle(t, p)
	svc.mu.Lock()
	ranAfterResume := len(svc.seen)
	svc.mu.Unlock()
	if ranAfterResume != 1 {
		t.Errorf("service ran %d times after resume, want 1", ranAfterResume)
	}
}
