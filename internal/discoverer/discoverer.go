// Package discoverer crawls configured entry points, diffs storage
// against the catalog and schedules parse work for new or modified
// files.
package discoverer

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/franz/medialib/internal/fs"
	"github.com/franz/medialib/internal/store"
	"github.com/franz/medialib/internal/util"
)

type commandKind int

const (
	cmdDiscover commandKind = iota
	cmdReload
	cmdReloadAll
	cmdRemove
	cmdBan
	cmdUnban
	cmdStop
)

type command struct {
	kind       commandKind
	entryPoint string
}

// TaskScheduler receives tasks for parsing; satisfied by the parser.
type TaskScheduler interface {
	Parse(t *store.Task)
}

// Callback receives discovery lifecycle notifications. All methods are
// invoked from the discoverer goroutine.
type Callback interface {
	OnDiscoveryStarted(entryPoint string)
	OnDiscoveryProgress(entryPoint string)
	OnDiscoveryCompleted(entryPoint string)
	OnReloadStarted(entryPoint string)
	OnReloadCompleted(entryPoint string)
	OnEntryPointRemoved(entryPoint string, success bool)
	OnEntryPointBanned(entryPoint string, success bool)
	OnEntryPointUnbanned(entryPoint string, success bool)
}

// Discoverer is the single worker draining the discovery command FIFO.
type Discoverer struct {
	store     *store.Store
	factories *fs.Factories
	parser    TaskScheduler
	cb        Callback
	log       *logrus.Entry

	commands chan command
	wg       sync.WaitGroup
	stop     atomic.Bool
	active   atomic.Int32
	queued   atomic.Int32

	onIdleChanged func(idle bool)
}

// New creates a discoverer. cb may be nil.
func New(s *store.Store, factories *fs.Factories, parser TaskScheduler, cb Callback) *Discoverer {
	return &Discoverer{
		store:     s,
		factories: factories,
		parser:    parser,
		cb:        cb,
		log:       util.ComponentLogger("discoverer"),
		commands:  make(chan command, 64),
	}
}

// SetIdleCallback installs the idle-transition observer. Must be called
// before Start.
func (d *Discoverer) SetIdleCallback(fn func(bool)) {
	d.onIdleChanged = fn
}

// Start launches the worker goroutine.
func (d *Discoverer) Start() {
	d.wg.Add(1)
	go d.mainloop()
}

// Stop wakes the worker and waits for it to drain its current command.
func (d *Discoverer) Stop() {
	d.stop.Store(true)
	d.commands <- command{kind: cmdStop}
	d.wg.Wait()
}

func (d *Discoverer) stopped() bool {
	return d.stop.Load()
}

// IsIdle reports whether no command is queued or running.
func (d *Discoverer) IsIdle() bool {
	return d.queued.Load() == 0 && d.active.Load() == 0
}

func (d *Discoverer) enqueue(c command) {
	d.queued.Add(1)
	d.notifyIdle()
	d.commands <- c
}

// Discover adds a new entry point and crawls it.
func (d *Discoverer) Discover(entryPoint string) {
	d.enqueue(command{kind: cmdDiscover, entryPoint: entryPoint})
}

// Reload re-crawls one entry point, or all of them when entryPoint is
// empty.
func (d *Discoverer) Reload(entryPoint string) {
	if entryPoint == "" {
		d.enqueue(command{kind: cmdReloadAll})
		return
	}
	d.enqueue(command{kind: cmdReload, entryPoint: entryPoint})
}

// Remove drops an entry point and everything under it.
func (d *Discoverer) Remove(entryPoint string) {
	d.enqueue(command{kind: cmdRemove, entryPoint: entryPoint})
}

// Ban excludes a folder tree from discovery.
func (d *Discoverer) Ban(entryPoint string) {
	d.enqueue(command{kind: cmdBan, entryPoint: entryPoint})
}

// Unban re-includes a previously banned folder tree.
func (d *Discoverer) Unban(entryPoint string) {
	d.enqueue(command{kind: cmdUnban, entryPoint: entryPoint})
}

func (d *Discoverer) notifyIdle() {
	if d.onIdleChanged != nil {
		d.onIdleChanged(d.IsIdle())
	}
}

func (d *Discoverer) mainloop() {
	defer d.wg.Done()
	for c := range d.commands {
		if c.kind == cmdStop {
			return
		}
		d.active.Store(1)
		d.queued.Add(-1)
		d.runCommand(c)
		d.active.Store(0)
		d.notifyIdle()
		if d.stop.Load() {
			return
		}
	}
}

func (d *Discoverer) runCommand(c command) {
	switch c.kind {
	case cmdDiscover:
		d.doDiscover(c.entryPoint)
	case cmdReload:
		d.doReload(c.entryPoint)
	case cmdReloadAll:
		d.doReloadAll()
	case cmdRemove:
		d.doRemove(c.entryPoint)
	case cmdBan:
		d.doBan(c.entryPoint, true)
	case cmdUnban:
		d.doBan(c.entryPoint, false)
	}
}

// resolve maps an entry point MRL to its factory, fs device and catalog
// device row, creating the row on first sight.
func (d *Discoverer) resolve(entryPoint string) (fs.Device, *store.Device, bool) {
	factory := d.factories.ForMrl(entryPoint)
	if factory == nil {
		d.log.WithField("mrl", entryPoint).Error("no filesystem factory for entry point")
		return nil, nil, false
	}
	factory.RefreshDevices()
	device, err := factory.CreateDeviceFromMrl(entryPoint)
	if err != nil {
		d.log.WithError(err).WithField("mrl", entryPoint).Error("cannot resolve device")
		return nil, nil, false
	}
	dbDevice, err := d.store.DeviceByUUID(device.UUID())
	if err != nil {
		return nil, nil, false
	}
	if dbDevice == nil {
		dbDevice, err = d.store.CreateDevice(device.UUID(), device.IsRemovable())
		if err != nil {
			return nil, nil, false
		}
	}
	if dbDevice.IsPresent != device.IsPresent() {
		d.store.SetDevicePresent(dbDevice, device.IsPresent())
	}
	return device, dbDevice, true
}

func (d *Discoverer) doDiscover(entryPoint string) {
	d.log.WithField("mrl", entryPoint).Info("discovering entry point")
	if d.cb != nil {
		d.cb.OnDiscoveryStarted(entryPoint)
		defer d.cb.OnDiscoveryCompleted(entryPoint)
	}
	device, dbDevice, ok := d.resolve(entryPoint)
	if !ok {
		return
	}
	dir, err := d.openDirectory(device, entryPoint)
	if err != nil {
		d.log.WithError(err).WithField("mrl", entryPoint).Error("entry point not readable")
		return
	}
	probe, err := newCrawlerProbe(d.store, dbDevice.ID)
	if err != nil {
		return
	}
	if d.cb != nil {
		d.cb.OnDiscoveryProgress(entryPoint)
	}
	if err := d.crawl(device, dir, nil, probe); err != nil {
		d.log.WithError(err).WithField("mrl", entryPoint).Error("discovery failed")
	}
}

func (d *Discoverer) doReload(entryPoint string) {
	d.log.WithField("mrl", entryPoint).Info("reloading entry point")
	if d.cb != nil {
		d.cb.OnReloadStarted(entryPoint)
		defer d.cb.OnReloadCompleted(entryPoint)
	}
	device, dbDevice, ok := d.resolve(entryPoint)
	if !ok || !device.IsPresent() {
		return
	}
	dir, err := d.openDirectory(device, entryPoint)
	if err != nil {
		d.log.WithError(err).WithField("mrl", entryPoint).Warn("entry point not reachable, skipping reload")
		return
	}
	probe, err := newCrawlerProbe(d.store, dbDevice.ID)
	if err != nil {
		return
	}
	if err := d.crawl(device, dir, nil, probe); err != nil {
		d.log.WithError(err).WithField("mrl", entryPoint).Error("reload failed")
	}
}

func (d *Discoverer) doReloadAll() {
	roots, err := d.store.RootFolders()
	if err != nil {
		return
	}
	for _, root := range roots {
		if d.stopped() {
			return
		}
		dev, err := d.store.Device(root.DeviceID)
		if err != nil || dev == nil || !dev.IsPresent {
			continue
		}
		factory := d.factories.ForMrl(root.Mrl)
		if factory == nil {
			continue
		}
		device, err := factory.CreateDevice(dev.UUID)
		if err != nil {
			continue
		}
		d.doReload(device.AbsoluteMrl(root.Mrl))
	}
}

func (d *Discoverer) doRemove(entryPoint string) {
	success := false
	defer func() {
		if d.cb != nil {
			d.cb.OnEntryPointRemoved(entryPoint, success)
		}
	}()

	folder, ok := d.lookupFolder(entryPoint)
	if !ok || folder == nil {
		return
	}
	if err := d.store.DeleteFolder(folder.ID); err != nil {
		d.log.WithError(err).WithField("mrl", entryPoint).Error("failed to remove entry point")
		return
	}
	success = true
}

func (d *Discoverer) doBan(entryPoint string, banned bool) {
	success := false
	defer func() {
		if d.cb == nil {
			return
		}
		if banned {
			d.cb.OnEntryPointBanned(entryPoint, success)
		} else {
			d.cb.OnEntryPointUnbanned(entryPoint, success)
		}
	}()

	folder, ok := d.lookupFolder(entryPoint)
	if !ok {
		return
	}
	if folder == nil && banned {
		// Ban ahead of discovery: record the folder so the crawler
		// skips it later.
		device, dbDevice, resolved := d.resolve(entryPoint)
		if !resolved {
			return
		}
		var err error
		folder, err = d.store.CreateFolder(device.RelativeMrl(entryPoint), 0, dbDevice.ID,
			device.IsRemovable())
		if err != nil {
			return
		}
	}
	if folder == nil {
		return
	}
	if err := d.store.BanFolder(folder, banned); err != nil {
		return
	}
	success = true
}

func (d *Discoverer) lookupFolder(entryPoint string) (*store.Folder, bool) {
	device, dbDevice, ok := d.resolve(entryPoint)
	if !ok {
		return nil, false
	}
	folder, err := d.store.FolderByMrl(dbDevice.ID, device.RelativeMrl(entryPoint))
	if err != nil {
		return nil, false
	}
	return folder, true
}

func (d *Discoverer) openDirectory(device fs.Device, mrl string) (fs.Directory, error) {
	root, err := device.Root()
	if err != nil {
		return nil, err
	}
	rel := device.RelativeMrl(mrl)
	if rel == "" {
		return root, nil
	}
	return d.descend(root, device, rel)
}

func (d *Discoverer) descend(dir fs.Directory, device fs.Device, rel string) (fs.Directory, error) {
	target := device.AbsoluteMrl(rel)
	if dir.Mrl() == target {
		return dir, nil
	}
	subdirs, err := dir.Dirs()
	if err != nil {
		return nil, err
	}
	for _, sub := range subdirs {
		subRel := device.RelativeMrl(sub.Mrl())
		if subRel == rel {
			return sub, nil
		}
		if subRel != "" && len(rel) > len(subRel) && rel[:len(subRel)+1] == subRel+"/" {
			return d.descend(sub, device, rel)
		}
	}
	return nil, fs.ErrAccess
}
