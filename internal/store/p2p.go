package store

import "database/sql"

// P2P/infohash extensions: media backed by transport protocols rather
// than local storage. Such media are external, carry an infohash and
// optionally point at a parent media (a multi-file transport container).

// CreateP2PMedia inserts an external media carrying transport metadata.
// The record and its external MRL are committed atomically.
func (s *Store) CreateP2PMedia(title, mrl, infohash string, fileIndex int, parentID int64) (*Media, error) {
	m := &Media{
		Type:          MediaTypeExternal,
		Duration:      -1,
		Title:         title,
		Filename:      title,
		IsPresent:     true,
		IsExternal:    true,
		IsP2P:         true,
		Infohash:      infohash,
		FileIndex:     fileIndex,
		ParentMediaID: parentID,
	}
	err := s.Transaction(func(tx *Tx) error {
		if err := s.createMedia(tx, m); err != nil {
			return err
		}
		if mrl == "" {
			return nil
		}
		_, err := s.addFile(tx, m.ID, mrl, FileTypeExternal, 0, 0, 0, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.cacheMedia(m)
	return m, nil
}

// FindMediaByInfohash returns the first media carrying the given
// infohash, preferring the given file index.
func (s *Store) FindMediaByInfohash(infohash string, fileIndex int) (*Media, error) {
	var id int64
	err := s.QueryRow(`
		SELECT id_media FROM media WHERE infohash = ?
		ORDER BY (ifnull(file_index, 0) = ?) DESC, id_media ASC LIMIT 1`,
		infohash, fileIndex).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classifyError(err)
	}
	return s.Media(id)
}

// FindMediaByParent lists all media attached to a parent container.
func (s *Store) FindMediaByParent(parentID int64) ([]*Media, error) {
	return s.fetchMediaAll(`
		SELECT `+mediaColumns+` FROM media
		WHERE parent_media_id = ? ORDER BY ifnull(file_index, 0) ASC, id_media ASC`,
		parentID)
}

// FindDuplicatesByInfohash returns groups of media sharing an infohash
// and file index, keyed by infohash.
func (s *Store) FindDuplicatesByInfohash() (map[string][]*Media, error) {
	media, err := s.fetchMediaAll(`
		SELECT ` + mediaColumns + ` FROM media
		WHERE infohash IS NOT NULL AND infohash != ''
		AND (infohash, ifnull(file_index, 0)) IN (
			SELECT infohash, ifnull(file_index, 0) FROM media
			WHERE infohash IS NOT NULL AND infohash != ''
			GROUP BY infohash, ifnull(file_index, 0)
			HAVING COUNT(*) > 1
		) ORDER BY infohash, id_media`)
	if err != nil {
		return nil, err
	}
	groups := make(map[string][]*Media)
	for _, m := range media {
		groups[m.Infohash] = append(groups[m.Infohash], m)
	}
	return groups, nil
}

// CopyMetadata copies parsed metadata (title, duration, type, subtype,
// thumbnail) from one media to another. Used to de-duplicate transport
// media against their locally parsed twin.
func (s *Store) CopyMetadata(src, dst *Media) error {
	err := s.Transaction(func(tx *Tx) error {
		if _, err := tx.Exec(`
			UPDATE media SET title = ?, duration = ?, type = ?, subtype = ?, thumbnail = ?
			WHERE id_media = ?`,
			src.Title, src.Duration, int(src.Type), int(src.SubType),
			nullableString(src.Thumbnail), dst.ID); err != nil {
			return err
		}
		tx.touch(TableMedia, HookUpdate, dst.ID)
		return nil
	})
	if err != nil {
		return err
	}
	dst.Title = src.Title
	dst.Duration = src.Duration
	dst.Type = src.Type
	dst.SubType = src.SubType
	dst.Thumbnail = src.Thumbnail
	return nil
}
