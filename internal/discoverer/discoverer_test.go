package discoverer

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/franz/medialib/internal/fs"
	"github.com/franz/medialib/internal/store"
)

type recordingScheduler struct {
	tasks []*store.Task
}

func (r *recordingScheduler) Parse(t *store.Task) {
	r.tasks = append(r.tasks, t)
}

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

func memFixture(t *testing.T) (afero.Fs, *fs.Factories) {
	t.Helper()
	mem := afero.NewMemMapFs()
	mem.MkdirAll("/music/rock", 0o755)
	mem.MkdirAll("/music/.hidden", 0o755)
	afero.WriteFile(mem, "/music/song.mp3", []byte("x"), 0o644)
	afero.WriteFile(mem, "/music/readme.txt", []byte("x"), 0o644)
	afero.WriteFile(mem, "/music/rock/anthem.flac", []byte("x"), 0o644)
	afero.WriteFile(mem, "/music/.hidden/secret.mp3", []byte("x"), 0o644)

	factory := fs.NewLocalFactoryWithFs(mem, []fs.Mount{{Path: "/"}})
	return mem, fs.NewFactories(factory)
}

// runSync drives a discoverer command synchronously.
func runSync(d *Discoverer, run func()) {
	d.Start()
	run()
	for !d.IsIdle() {
		time.Sleep(5 * time.Millisecond)
	}
	d.Stop()
}

func TestDiscoverCreatesTasksForSupportedFiles(t *testing.T) {
	s := testStore(t)
	_, factories := memFixture(t)
	sched := &recordingScheduler{}
	d := New(s, factories, sched, nil)

	runSync(d, func() { d.Discover("file:///music") })

	if len(sched.tasks) != 2 {
		t.Fatalf("expected 2 tasks (song.mp3, anthem.flac), got %d", len(sched.tasks))
	}
	mrls := map[string]bool{}
	for _, task := range sched.tasks {
		mrls[task.Mrl] = true
	}
	if !mrls["file:///music/song.mp3"] || !mrls["file:///music/rock/anthem.flac"] {
		t.Errorf("unexpected task mrls: %v", mrls)
	}

	// Hidden folders are skipped, unsupported extensions ignored.
	if mrls["file:///music/.hidden/secret.mp3"] {
		t.Error("hidden folder was crawled")
	}
	if mrls["file:///music/readme.txt"] {
		t.Error("unsupported extension scheduled")
	}

	roots, err := s.RootFolders()
	if err != nil || len(roots) != 1 {
		t.Fatalf("expected one entry point, got %d (%v)", len(roots), err)
	}
}

func TestReloadIsIncremental(t *testing.T) {
	s := testStore(t)
	mem, factories := memFixture(t)
	sched := &recordingScheduler{}
	d := New(s, factories, sched, nil)

	runSync(d, func() { d.Discover("file:///music") })
	initial := len(sched.tasks)

	// Nothing changed: a reload schedules nothing new.
	sched.tasks = nil
	d2 := New(s, factories, sched, nil)
	runSync(d2, func() { d2.Reload("file:///music") })
	if len(sched.tasks) != 0 {
		t.Errorf("unchanged reload scheduled %d tasks", len(sched.tasks))
	}

	// A new file shows up.
	afero.WriteFile(mem, "/music/fresh.ogg", []byte("x"), 0o644)
	sched.tasks = nil
	d3 := New(s, factories, sched, nil)
	runSync(d3, func() { d3.Reload("file:///music") })
	if len(sched.tasks) != 1 || sched.tasks[0].Mrl != "file:///music/fresh.ogg" {
		t.Errorf("expected one task for the new file, got %d", len(sched.tasks))
	}
	_ = initial
}

func TestReloadDeletesVanishedFiles(t *testing.T) {
	s := testStore(t)
	mem, factories := memFixture(t)
	d := New(s, factories, &recordingScheduler{}, nil)
	runSync(d, func() { d.Discover("file:///music") })

	// Simulate the probe having created the catalog rows.
	f, err := s.FileByMrl("file:///music/song.mp3")
	if err != nil {
		t.Fatalf("file lookup failed: %v", err)
	}
	if f == nil {
		m, _ := s.CreateMedia("song", store.MediaTypeAudio, false)
		roots, _ := s.RootFolders()
		f, err = s.AddFile(m.ID, "file:///music/song.mp3", store.FileTypeMain,
			roots[0].ID, 1, 1, false)
		if err != nil {
			t.Fatalf("failed to add file: %v", err)
		}
	}

	mem.Remove("/music/song.mp3")
	d2 := New(s, factories, &recordingScheduler{}, nil)
	runSync(d2, func() { d2.Reload("file:///music") })

	if got, _ := s.FileByMrl("file:///music/song.mp3"); got != nil {
		t.Error("vanished file still in catalog")
	}
	if got, _ := s.Media(f.MediaID); got != nil {
		t.Error("media of vanished file still in catalog")
	}
}

func TestBannedFolderIsSkipped(t *testing.T) {
	s := testStore(t)
	_, factories := memFixture(t)
	sched := &recordingScheduler{}
	d := New(s, factories, sched, nil)

	runSync(d, func() {
		d.Ban("file:///music/rock")
		d.Discover("file:///music")
	})

	for _, task := range sched.tasks {
		if task.Mrl == "file:///music/rock/anthem.flac" {
			t.Error("banned subtree was crawled")
		}
	}
}

func TestRemoveEntryPointCascades(t *testing.T) {
	s := testStore(t)
	_, factories := memFixture(t)
	d := New(s, factories, &recordingScheduler{}, nil)
	runSync(d, func() { d.Discover("file:///music") })

	d2 := New(s, factories, &recordingScheduler{}, nil)
	runSync(d2, func() { d2.Remove("file:///music") })

	roots, err := s.RootFolders()
	if err != nil {
		t.Fatalf("failed to list roots: %v", err)
	}
	if len(roots) != 0 {
		t.Errorf("entry point survived removal: %d roots", len(roots))
	}
}

func TestPendingTaskNotDuplicated(t *testing.T) {
	s := testStore(t)
	_, factories := memFixture(t)
	sched := &recordingScheduler{}
	d := New(s, factories, sched, nil)
	runSync(d, func() { d.Discover("file:///music") })

	first := len(sched.tasks)
	sched.tasks = nil
	d2 := New(s, factories, sched, nil)
	runSync(d2, func() { d2.Discover("file:///music") })
	if len(sched.tasks) != 0 {
		t.Errorf("re-discovery duplicated %d pending tasks (first run had %d)",
			len(sched.tasks), first)
	}
}
