package store

import "database/sql"

// Device is a storage unit files live on. Devices are recorded when an
// entry point on them is first resolved or when they are first reported
// plugged, and are never deleted: a known but
// absent removable device keeps its subtree, flagged not-present.
type Device struct {
	ID          int64
	UUID        string
	IsRemovable bool
	IsPresent   bool
}

func scanDevice(row interface{ Scan(...interface{}) error }) (*Device, error) {
	d := &Device{}
	err := row.Scan(&d.ID, &d.UUID, &d.IsRemovable, &d.IsPresent)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classifyError(err)
	}
	return d, nil
}

// CreateDevice records a device. A Constraint failure means another
// writer beat us to it; the existing row is returned instead.
func (s *Store) CreateDevice(uuid string, removable bool) (*Device, error) {
	d := &Device{UUID: uuid, IsRemovable: removable, IsPresent: true}
	err := s.Transaction(func(tx *Tx) error {
		res, err := tx.Exec(
			"INSERT INTO devices (uuid, is_removable, is_present) VALUES (?, ?, 1)",
			uuid, removable)
		if err != nil {
			return err
		}
		if d.ID, err = res.LastInsertId(); err != nil {
			return err
		}
		tx.touch(TableDevice, HookInsert, d.ID)
		return nil
	})
	if IsKind(err, ErrConstraint) {
		return s.DeviceByUUID(uuid)
	}
	if err != nil {
		return nil, err
	}
	s.cache.Fetch(KindDevice, d.ID, func() (interface{}, error) { return d, nil })
	return d, nil
}

// Device fetches a device by id, cache-aware.
func (s *Store) Device(id int64) (*Device, error) {
	v, err := s.cache.Fetch(KindDevice, id, func() (interface{}, error) {
		d, err := scanDevice(s.QueryRow(
			"SELECT id_device, uuid, is_removable, is_present FROM devices WHERE id_device = ?", id))
		if err != nil || d == nil {
			return nil, err
		}
		return d, nil
	})
	if err != nil || v == nil {
		return nil, err
	}
	return v.(*Device), nil
}

// DeviceByUUID finds a device by its UUID.
func (s *Store) DeviceByUUID(uuid string) (*Device, error) {
	var id int64
	err := s.QueryRow("SELECT id_device FROM devices WHERE uuid = ?", uuid).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classifyError(err)
	}
	return s.Device(id)
}

// SetDevicePresent flips the presence flag; triggers cascade the new
// state through folders, files, media, albums and artists.
func (s *Store) SetDevicePresent(d *Device, present bool) error {
	err := s.Transaction(func(tx *Tx) error {
		if _, err := tx.Exec(
			"UPDATE devices SET is_present = ? WHERE id_device = ?", present, d.ID); err != nil {
			return err
		}
		tx.touch(TableDevice, HookUpdate, d.ID)
		return nil
	})
	if err != nil {
		return err
	}
	d.IsPresent = present
	// Presence of dependent live records changed underneath them; drop
	// them so the next fetch reloads the cascaded values.
	s.cache.ClearKind(KindFolder)
	s.cache.ClearKind(KindFile)
	s.cache.ClearKind(KindMedia)
	s.cache.ClearKind(KindAlbumTrack)
	s.cache.ClearKind(KindAlbum)
	s.cache.ClearKind(KindArtist)
	return nil
}
