// Package library is the facade composing the catalog store, the
// filesystem abstraction, the discoverer, the parser pipeline, the
// presence tracker and the notification hub.
package library

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/franz/medialib/internal/discoverer"
	"github.com/franz/medialib/internal/fs"
	"github.com/franz/medialib/internal/notifier"
	"github.com/franz/medialib/internal/parser"
	"github.com/franz/medialib/internal/presence"
	"github.com/franz/medialib/internal/store"
	"github.com/franz/medialib/internal/util"
)

// InitResult is the outcome of Initialize.
type InitResult int

const (
	InitSuccess InitResult = iota
	InitAlreadyInitialized
	// InitDbReset: initialization succeeded but the database was
	// recreated; all entry points must be discovered again.
	InitDbReset
	InitFailed
)

// Options tunes library construction. The zero value serves the OS
// filesystem with a single mount at /.
type Options struct {
	// Fs overrides the backing filesystem (tests use a memory fs).
	Fs afero.Fs
	// Mounts is the initial mount table of the local fs factory.
	Mounts []fs.Mount
	// Decoder renders video thumbnails; nil skips them.
	Decoder parser.Decoder
	// MountWatchDir enables the fsnotify device lister over this
	// directory when non-empty.
	MountWatchDir string
}

// Library is the public surface of the media catalog.
type Library struct {
	mu          sync.Mutex
	initialized bool
	started     bool

	store        *store.Store
	factories    *fs.Factories
	localFactory *fs.LocalFactory
	netFactory   fs.Factory
	discoverer   *discoverer.Discoverer
	parser       *parser.Parser
	tracker      *presence.Tracker
	hub          *notifier.Hub
	lister       DeviceLister
	cb           notifier.Callback
	log          *logrus.Entry

	discovererIdle atomic.Bool
	parserIdle     atomic.Bool
	wasIdle        atomic.Bool
}

// DeviceLister feeds device plug/unplug events to the library. When
// Options.MountWatchDir is set, Initialize installs the fsnotify mount
// watcher; otherwise no lister runs unless the host installs one.
type DeviceLister interface {
	Start() error
	Stop()
}

// New creates an uninitialized library.
func New() *Library {
	return &Library{log: util.ComponentLogger("library")}
}

// Initialize opens the database at dbPath, migrates it, and wires every
// subsystem. cb may be nil, in which case no change notifications are
// delivered.
func (l *Library) Initialize(dbPath, thumbDir string, cb notifier.Callback, opts *Options) InitResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.initialized {
		return InitAlreadyInitialized
	}
	if opts == nil {
		opts = &Options{}
	}
	backing := opts.Fs
	if backing == nil {
		backing = afero.NewOsFs()
	}
	if err := backing.MkdirAll(thumbDir, 0o755); err != nil {
		l.log.WithError(err).Error("cannot create thumbnail directory")
		return InitFailed
	}

	s, err := store.Open(dbPath)
	if err != nil {
		l.log.WithError(err).Error("cannot open database")
		return InitFailed
	}
	s, migration, err := store.Migrate(s)
	if migration == store.MigrationFailed {
		l.log.WithError(err).Error("database migration failed")
		if s != nil {
			s.Close()
		}
		return InitFailed
	}
	l.store = s

	mounts := opts.Mounts
	if mounts == nil {
		mounts = []fs.Mount{{Path: "/"}}
	}
	l.localFactory = fs.NewLocalFactoryWithFs(backing, mounts)
	l.factories = fs.NewFactories(l.localFactory)

	l.cb = cb
	l.hub = notifier.NewHub(cb)
	l.hub.Install(l.store)

	l.tracker = presence.NewTracker(l.store, l.factories)
	if opts.MountWatchDir != "" {
		l.lister = presence.NewMountWatcher(l.tracker, opts.MountWatchDir)
	}

	services := []parser.Service{
		parser.NewProbeService(l.store, l.factories),
		parser.NewMetadataService(l.store),
		parser.NewThumbnailerService(l.store, backing, thumbDir, opts.Decoder),
	}
	var parserCb parser.Callback
	if cb != nil {
		parserCb = cb
	}
	l.parser = parser.New(l.store, l.factories, parserCb, services...)
	l.parser.SetIdleCallback(func(idle bool) {
		l.parserIdle.Store(idle)
		l.notifyIdle()
	})

	var discovererCb discoverer.Callback
	if cb != nil {
		discovererCb = cb
	}
	l.discoverer = discoverer.New(l.store, l.factories, l.parser, discovererCb)
	l.discoverer.SetIdleCallback(func(idle bool) {
		l.discovererIdle.Store(idle)
		l.notifyIdle()
	})

	l.discovererIdle.Store(true)
	l.parserIdle.Store(true)
	l.wasIdle.Store(true)
	l.initialized = true
	if migration == store.MigrationDbReset {
		return InitDbReset
	}
	return InitSuccess
}

// Start launches the background workers. Must follow a successful
// Initialize.
func (l *Library) Start() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.initialized || l.started {
		return false
	}
	l.discoverer.Start()
	if err := l.parser.Start(); err != nil {
		l.log.WithError(err).Error("parser failed to start")
		return false
	}
	if l.lister != nil {
		if err := l.lister.Start(); err != nil {
			l.log.WithError(err).Warn("device lister failed to start")
		}
	}
	l.started = true
	return true
}

// Stop shuts down workers and closes the database. In-flight tasks run
// to their next suspension point; progress stays persisted.
func (l *Library) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.initialized {
		return
	}
	if l.started {
		if l.lister != nil {
			l.lister.Stop()
		}
		l.discoverer.Stop()
		l.parser.Stop()
	}
	l.hub.Stop()
	l.store.Close()
	l.initialized = false
	l.started = false
}

// Store exposes the underlying catalog store to embedders.
func (l *Library) Store() *store.Store {
	return l.store
}

func (l *Library) notifyIdle() {
	idle := l.discovererIdle.Load() && l.parserIdle.Load()
	if l.wasIdle.Swap(idle) != idle && l.cb != nil {
		l.cb.OnBackgroundTasksIdleChanged(idle)
	}
}

// IsIdle reports whether both background workers are idle.
func (l *Library) IsIdle() bool {
	return l.discovererIdle.Load() && l.parserIdle.Load()
}

// SetDeviceLister replaces the default device lister. Must be called
// before Start.
func (l *Library) SetDeviceLister(lister DeviceLister) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lister = lister
}

// RegisterNetworkFactory installs the network filesystem factory used
// when network discovery is enabled. Must be called before Start.
func (l *Library) RegisterNetworkFactory(f fs.Factory) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.netFactory = f
}

// SetDiscoverNetworkEnabled adds or removes the network factory from
// the resolution order. Callers must pause the discoverer around this
// when workers are running.
func (l *Library) SetDiscoverNetworkEnabled(enabled bool) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if enabled {
		if l.netFactory == nil {
			return false
		}
		l.factories.Add(l.netFactory)
		return true
	}
	l.factories.RemoveNetwork()
	return true
}

// Discover registers a new entry point and crawls it.
func (l *Library) Discover(entryPoint string) {
	l.discoverer.Discover(util.ToMrl(entryPoint))
}

// Reload re-crawls one entry point, or all when entryPoint is empty.
func (l *Library) Reload(entryPoint string) {
	if entryPoint == "" {
		l.discoverer.Reload("")
		return
	}
	l.discoverer.Reload(util.ToMrl(entryPoint))
}

// Remove drops an entry point and its catalog subtree.
func (l *Library) Remove(entryPoint string) {
	l.discoverer.Remove(util.ToMrl(entryPoint))
}

// Ban excludes a folder tree from discovery.
func (l *Library) Ban(entryPoint string) {
	l.discoverer.Ban(util.ToMrl(entryPoint))
}

// Unban re-includes a banned folder tree.
func (l *Library) Unban(entryPoint string) {
	l.discoverer.Unban(util.ToMrl(entryPoint))
}

// EntryPoints lists the registered roots.
func (l *Library) EntryPoints() ([]*store.Folder, error) {
	return l.store.RootFolders()
}

// PauseBackgroundOperations blocks the parser workers at their next
// dequeue.
func (l *Library) PauseBackgroundOperations() {
	l.parser.Pause()
}

// ResumeBackgroundOperations wakes the parser workers.
func (l *Library) ResumeBackgroundOperations() {
	l.parser.Resume()
}

// ForceParserRetry resets retry budgets and reschedules every
// unfinished task.
func (l *Library) ForceParserRetry() error {
	l.parser.Flush()
	if err := l.store.ResetTaskRetries(); err != nil {
		return err
	}
	return l.parser.Restore()
}

// Reinit wipes derived metadata and re-parses the whole catalog.
func (l *Library) Reinit() error {
	l.parser.Flush()
	if err := l.store.ForceRescan(); err != nil {
		return err
	}
	return l.parser.Restore()
}

// OnDevicePlugged is the host device callback; returns true when the
// device was newly known.
func (l *Library) OnDevicePlugged(uuid, mountpoint string) bool {
	fresh, err := l.tracker.OnDevicePlugged(uuid, mountpoint)
	if err != nil {
		l.log.WithError(err).Error("device plug handling failed")
		return false
	}
	return fresh
}

// OnDeviceUnplugged is the host device callback.
func (l *Library) OnDeviceUnplugged(uuid string) {
	if err := l.tracker.OnDeviceUnplugged(uuid); err != nil {
		l.log.WithError(err).Error("device unplug handling failed")
	}
}

// IsDeviceKnown reports whether the catalog has seen a device.
func (l *Library) IsDeviceKnown(uuid string) bool {
	return l.tracker.IsDeviceKnown(uuid)
}

// RemoveOrphanTransportFiles is not implemented; it reports false and
// has no side effects.
func (l *Library) RemoveOrphanTransportFiles() bool {
	return false
}
