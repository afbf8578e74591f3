package presence

import (
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/franz/medialib/internal/util"
)

// mountNamespace mirrors the local fs factory's UUID derivation so the
// watcher and the factory agree on device identities.
var mountNamespace = uuid.MustParse("a4cfcd26-6b15-4052-91ae-ad0b06b71b08")

// MountWatcher is a device lister: it watches a mount directory (e.g.
// /media or /run/media/<user>) and feeds plug/unplug events to the
// tracker. The library installs it when Options.MountWatchDir is set.
type MountWatcher struct {
	tracker  *Tracker
	watchDir string
	watcher  *fsnotify.Watcher
	log      *logrus.Entry
	done     chan struct{}
}

// NewMountWatcher creates a watcher over a mount directory.
func NewMountWatcher(tracker *Tracker, watchDir string) *MountWatcher {
	return &MountWatcher{
		tracker:  tracker,
		watchDir: watchDir,
		log:      util.ComponentLogger("mountwatcher"),
		done:     make(chan struct{}),
	}
}

// Start begins watching. Missing mount directories are not an error;
// the watcher simply stays inert.
func (w *MountWatcher) Start() error {
	if _, err := os.Stat(w.watchDir); err != nil {
		w.log.WithField("dir", w.watchDir).Debug("mount directory absent, watcher inert")
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = watcher
	if err := watcher.Add(w.watchDir); err != nil {
		watcher.Close()
		w.watcher = nil
		return err
	}
	go w.loop()
	w.log.WithField("dir", w.watchDir).Info("mount watcher started")
	return nil
}

// Stop terminates the watch goroutine.
func (w *MountWatcher) Stop() {
	if w.watcher == nil {
		return
	}
	w.watcher.Close()
	<-w.done
}

func (w *MountWatcher) loop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Warn("mount watcher error")
		}
	}
}

func (w *MountWatcher) handle(event fsnotify.Event) {
	mountpoint := filepath.ToSlash(event.Name)
	id := uuid.NewSHA1(mountNamespace, []byte(mountpoint)).String()

	switch {
	case event.Op.Has(fsnotify.Create):
		if info, err := os.Stat(event.Name); err != nil || !info.IsDir() {
			return
		}
		if _, err := w.tracker.OnDevicePlugged(id, mountpoint); err != nil {
			w.log.WithError(err).WithField("mountpoint", mountpoint).Error("plug handling failed")
		}
	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		if err := w.tracker.OnDeviceUnplugged(id); err != nil {
			w.log.WithError(err).WithField("mountpoint", mountpoint).Error("unplug handling failed")
		}
	}
}
