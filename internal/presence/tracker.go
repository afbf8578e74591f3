// Package presence maps device plug/unplug events onto the catalog's
// presence flags. The actual cascade to folders, files, media, albums
// and artists runs in database triggers.
package presence

import (
	"github.com/sirupsen/logrus"

	"github.com/franz/medialib/internal/fs"
	"github.com/franz/medialib/internal/store"
	"github.com/franz/medialib/internal/util"
)

// Tracker applies host device notifications to the catalog.
type Tracker struct {
	store     *store.Store
	factories *fs.Factories
	log       *logrus.Entry
}

// NewTracker creates a tracker over the store.
func NewTracker(s *store.Store, factories *fs.Factories) *Tracker {
	return &Tracker{
		store:     s,
		factories: factories,
		log:       util.ComponentLogger("presence"),
	}
}

// OnDevicePlugged flags a device present, creating its row on first
// sight. Returns true when the device was not previously known.
func (t *Tracker) OnDevicePlugged(uuid, mountpoint string) (bool, error) {
	t.log.WithField("uuid", uuid).WithField("mountpoint", mountpoint).Info("device plugged")
	for _, f := range t.factories.All() {
		f.RefreshDevices()
	}

	d, err := t.store.DeviceByUUID(uuid)
	if err != nil {
		return false, err
	}
	if d == nil {
		_, err := t.store.CreateDevice(uuid, true)
		return true, err
	}
	if !d.IsPresent {
		if err := t.store.SetDevicePresent(d, true); err != nil {
			return false, err
		}
	}
	return false, nil
}

// OnDeviceUnplugged flags a device and its whole subtree absent.
func (t *Tracker) OnDeviceUnplugged(uuid string) error {
	t.log.WithField("uuid", uuid).Info("device unplugged")
	d, err := t.store.DeviceByUUID(uuid)
	if err != nil {
		return err
	}
	if d == nil {
		t.log.WithField("uuid", uuid).Warn("unplug notification for unknown device")
		return nil
	}
	if !d.IsPresent {
		return nil
	}
	return t.store.SetDevicePresent(d, false)
}

// IsDeviceKnown reports whether the catalog has seen this device.
func (t *Tracker) IsDeviceKnown(uuid string) bool {
	d, err := t.store.DeviceByUUID(uuid)
	return err == nil && d != nil
}
