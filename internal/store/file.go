package store

import "database/sql"

// FileType tells what role a file plays for its media.
type FileType int

const (
	FileTypeUnknown FileType = iota
	// FileTypeMain is the file to play. Non-external media need one.
	FileTypeMain
	FileTypePart
	FileTypeSoundtrack
	FileTypeSubtitle
	FileTypePlaylist
	FileTypeExternal
)

// File is one on-disk (or remote) file backing a media.
type File struct {
	ID               int64
	MediaID          int64
	Mrl              string
	Type             FileType
	LastModification int64
	Size             int64
	FolderID         int64
	IsRemovable      bool
	IsPresent        bool
	IsExternal       bool
}

const fileColumns = `id_file, media_id, ifnull(mrl, ''), type,
	ifnull(last_modification_date, 0), size, ifnull(folder_id, 0),
	is_removable, is_present, is_external`

func scanFile(row interface{ Scan(...interface{}) error }) (*File, error) {
	f := &File{}
	err := row.Scan(&f.ID, &f.MediaID, &f.Mrl, &f.Type, &f.LastModification,
		&f.Size, &f.FolderID, &f.IsRemovable, &f.IsPresent, &f.IsExternal)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classifyError(err)
	}
	return f, nil
}

// AddFile attaches a file to a media. folderID 0 means an external file
// with no folder row.
func (s *Store) AddFile(mediaID int64, mrl string, fileType FileType, folderID int64,
	lastModification, size int64, removable bool) (*File, error) {
	var f *File
	err := s.Transaction(func(tx *Tx) error {
		var err error
		f, err = s.addFile(tx, mediaID, mrl, fileType, folderID, lastModification, size, removable)
		return err
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Store) addFile(tx *Tx, mediaID int64, mrl string, fileType FileType,
	folderID int64, lastModification, size int64, removable bool) (*File, error) {
	f := &File{
		MediaID:          mediaID,
		Mrl:              mrl,
		Type:             fileType,
		LastModification: lastModification,
		Size:             size,
		FolderID:         folderID,
		IsRemovable:      removable,
		IsPresent:        true,
		IsExternal:       folderID == 0,
	}
	res, err := tx.Exec(`
		INSERT INTO files (media_id, mrl, type, last_modification_date, size,
			folder_id, is_removable, is_present, is_external)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?)`,
		mediaID, mrl, int(fileType), lastModification, size,
		nullableID(folderID), removable, f.IsExternal)
	if err != nil {
		return nil, err
	}
	if f.ID, err = res.LastInsertId(); err != nil {
		return nil, err
	}
	tx.touch(TableFile, HookInsert, f.ID)
	s.cache.Fetch(KindFile, f.ID, func() (interface{}, error) { return f, nil })
	return f, nil
}

// File fetches a file row by id, cache-aware.
func (s *Store) File(id int64) (*File, error) {
	v, err := s.cache.Fetch(KindFile, id, func() (interface{}, error) {
		f, err := scanFile(s.QueryRow(
			"SELECT "+fileColumns+" FROM files WHERE id_file = ?", id))
		if err != nil || f == nil {
			return nil, err
		}
		return f, nil
	})
	if err != nil || v == nil {
		return nil, err
	}
	return v.(*File), nil
}

// FileByMrl finds a file by its MRL.
func (s *Store) FileByMrl(mrl string) (*File, error) {
	var id int64
	err := s.QueryRow("SELECT id_file FROM files WHERE mrl = ?", mrl).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classifyError(err)
	}
	return s.File(id)
}

// FilesByFolder lists the files recorded under a folder.
func (s *Store) FilesByFolder(folderID int64) ([]*File, error) {
	rows, err := s.Query(
		"SELECT "+fileColumns+" FROM files WHERE folder_id = ? ORDER BY mrl", folderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		cached, _ := s.cache.Fetch(KindFile, f.ID, func() (interface{}, error) { return f, nil })
		out = append(out, cached.(*File))
	}
	return out, rows.Err()
}

// DeleteFile removes a file row. When it was the media's only file, the
// media goes with it.
func (s *Store) DeleteFile(f *File) error {
	return s.Transaction(func(tx *Tx) error {
		var remaining int
		if err := tx.QueryRow(
			"SELECT COUNT(*) FROM files WHERE media_id = ? AND id_file != ?",
			f.MediaID, f.ID).Scan(&remaining); err != nil {
			return classifyError(err)
		}
		if remaining == 0 {
			return s.deleteMedia(tx, f.MediaID)
		}
		if _, err := tx.Exec("DELETE FROM files WHERE id_file = ?", f.ID); err != nil {
			return err
		}
		tx.touch(TableFile, HookDelete, f.ID)
		return nil
	})
}

// UpdateFileModification stores the new mtime and size of a file whose
// change was detected on disk; the discoverer calls it before scheduling
// the re-parse.
func (s *Store) UpdateFileModification(f *File, lastModification, size int64) error {
	err := s.Transaction(func(tx *Tx) error {
		if _, err := tx.Exec(`
			UPDATE files SET last_modification_date = ?, size = ? WHERE id_file = ?`,
			lastModification, size, f.ID); err != nil {
			return err
		}
		tx.touch(TableFile, HookUpdate, f.ID)
		return nil
	})
	if err != nil {
		return err
	}
	f.LastModification = lastModification
	f.Size = size
	return nil
}
