package store

import "database/sql"

// Folder mirrors one directory under an entry point. The MRL is stored
// relative to the owning device's mountpoint so removable storage keeps
// its identity across remounts.
type Folder struct {
	ID            int64
	Mrl           string
	ParentID      int64
	IsBlacklisted bool
	DeviceID      int64
	IsPresent     bool
	IsRemovable   bool
}

const folderColumns = `id_folder, ifnull(mrl, ''), ifnull(parent_id, 0),
	is_blacklisted, ifnull(device_id, 0), is_present, is_removable`

func scanFolder(row interface{ Scan(...interface{}) error }) (*Folder, error) {
	f := &Folder{}
	err := row.Scan(&f.ID, &f.Mrl, &f.ParentID, &f.IsBlacklisted,
		&f.DeviceID, &f.IsPresent, &f.IsRemovable)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classifyError(err)
	}
	return f, nil
}

// CreateFolder records a directory. parentID 0 makes it a root (an entry
// point).
func (s *Store) CreateFolder(mrl string, parentID, deviceID int64, removable bool) (*Folder, error) {
	f := &Folder{
		Mrl:         mrl,
		ParentID:    parentID,
		DeviceID:    deviceID,
		IsPresent:   true,
		IsRemovable: removable,
	}
	err := s.Transaction(func(tx *Tx) error {
		res, err := tx.Exec(`
			INSERT INTO folders (mrl, parent_id, device_id, is_present, is_removable)
			VALUES (?, ?, ?, 1, ?)`,
			mrl, nullableID(parentID), deviceID, removable)
		if err != nil {
			return err
		}
		if f.ID, err = res.LastInsertId(); err != nil {
			return err
		}
		tx.touch(TableFolder, HookInsert, f.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cache.Fetch(KindFolder, f.ID, func() (interface{}, error) { return f, nil })
	return f, nil
}

// Folder fetches a folder by id, cache-aware.
func (s *Store) Folder(id int64) (*Folder, error) {
	v, err := s.cache.Fetch(KindFolder, id, func() (interface{}, error) {
		f, err := scanFolder(s.QueryRow(
			"SELECT "+folderColumns+" FROM folders WHERE id_folder = ?", id))
		if err != nil || f == nil {
			return nil, err
		}
		return f, nil
	})
	if err != nil || v == nil {
		return nil, err
	}
	return v.(*Folder), nil
}

// FolderByMrl finds a folder by its device-relative MRL on a device.
func (s *Store) FolderByMrl(deviceID int64, mrl string) (*Folder, error) {
	var id int64
	err := s.QueryRow(
		"SELECT id_folder FROM folders WHERE device_id = ? AND mrl = ?",
		deviceID, mrl).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classifyError(err)
	}
	return s.Folder(id)
}

// RootFolders lists entry points, including absent ones.
func (s *Store) RootFolders() ([]*Folder, error) {
	return s.fetchFolders(
		"SELECT " + folderColumns + " FROM folders WHERE parent_id IS NULL ORDER BY id_folder")
}

// Subfolders lists the direct children of a folder.
func (s *Store) Subfolders(folderID int64) ([]*Folder, error) {
	return s.fetchFolders(
		"SELECT "+folderColumns+" FROM folders WHERE parent_id = ? ORDER BY mrl", folderID)
}

func (s *Store) fetchFolders(query string, args ...interface{}) ([]*Folder, error) {
	rows, err := s.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Folder
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, err
		}
		cached, _ := s.cache.Fetch(KindFolder, f.ID, func() (interface{}, error) { return f, nil })
		out = append(out, cached.(*Folder))
	}
	return out, rows.Err()
}

// DeleteFolder removes a folder tree. Files cascade through foreign
// keys; every media with a main file there is removed explicitly so
// album/artist bookkeeping runs.
func (s *Store) DeleteFolder(id int64) error {
	return s.Transaction(func(tx *Tx) error {
		return s.deleteFolder(tx, id)
	})
}

func (s *Store) deleteFolder(tx *Tx, id int64) error {
	children, err := idList(tx, "SELECT id_folder FROM folders WHERE parent_id = ?", id)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := s.deleteFolder(tx, child); err != nil {
			return err
		}
	}

	mediaIDs, err := idList(tx, `
		SELECT DISTINCT media_id FROM files WHERE folder_id = ? AND type = ?`,
		id, int(FileTypeMain))
	if err != nil {
		return err
	}
	for _, mid := range mediaIDs {
		if err := s.deleteMedia(tx, mid); err != nil {
			return err
		}
	}

	if _, err := tx.Exec("DELETE FROM folders WHERE id_folder = ?", id); err != nil {
		return err
	}
	tx.touch(TableFolder, HookDelete, id)
	return nil
}

// BanFolder marks a folder tree excluded from discovery.
func (s *Store) BanFolder(f *Folder, banned bool) error {
	err := s.Transaction(func(tx *Tx) error {
		if _, err := tx.Exec(
			"UPDATE folders SET is_blacklisted = ? WHERE id_folder = ?", banned, f.ID); err != nil {
			return err
		}
		tx.touch(TableFolder, HookUpdate, f.ID)
		return nil
	})
	if err != nil {
		return err
	}
	f.IsBlacklisted = banned
	return nil
}

// BannedFolders lists every blacklisted folder on a device.
func (s *Store) BannedFolders(deviceID int64) ([]*Folder, error) {
	return s.fetchFolders(
		"SELECT "+folderColumns+" FROM folders WHERE device_id = ? AND is_blacklisted = 1",
		deviceID)
}
