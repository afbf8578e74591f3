package store

import (
	"database/sql"
	"time"

	"github.com/franz/medialib/internal/util"
)

// MediaType classifies what a media item is.
type MediaType int

const (
	MediaTypeUnknown MediaType = iota
	MediaTypeVideo
	MediaTypeAudio
	MediaTypeExternal
	MediaTypeStream
)

// MediaSubType refines audio/video media once parsed.
type MediaSubType int

const (
	MediaSubTypeUnknown MediaSubType = iota
	MediaSubTypeShowEpisode
	MediaSubTypeMovie
	MediaSubTypeAlbumTrack
)

// Media is a catalog entry: one logical piece of media, backed by one or
// more files.
type Media struct {
	ID             int64
	Type           MediaType
	SubType        MediaSubType
	Duration       int64
	PlayCount      int
	LastPlayedDate int64
	InsertionDate  int64
	Thumbnail      string
	Title          string
	Filename       string
	IsFavorite     bool
	IsPresent      bool
	IsExternal     bool
	ParentMediaID  int64
	IsP2P          bool
	Infohash       string
	FileIndex      int
}

const mediaColumns = `id_media, type, subtype, duration, play_count,
	ifnull(last_played_date, 0), ifnull(insertion_date, 0), ifnull(thumbnail, ''),
	ifnull(title, ''), ifnull(filename, ''), is_favorite, is_present, is_external,
	ifnull(parent_media_id, 0), is_p2p, ifnull(infohash, ''), ifnull(file_index, 0)`

// mediaColumnsPrefixed qualifies the media column list for joins.
func mediaColumnsPrefixed(alias string) string {
	return alias + `.id_media, ` + alias + `.type, ` + alias + `.subtype, ` +
		alias + `.duration, ` + alias + `.play_count,
	ifnull(` + alias + `.last_played_date, 0), ifnull(` + alias + `.insertion_date, 0),
	ifnull(` + alias + `.thumbnail, ''), ifnull(` + alias + `.title, ''),
	ifnull(` + alias + `.filename, ''), ` + alias + `.is_favorite, ` +
		alias + `.is_present, ` + alias + `.is_external,
	ifnull(` + alias + `.parent_media_id, 0), ` + alias + `.is_p2p,
	ifnull(` + alias + `.infohash, ''), ifnull(` + alias + `.file_index, 0)`
}

func scanMedia(row interface{ Scan(...interface{}) error }) (*Media, error) {
	m := &Media{}
	err := row.Scan(&m.ID, &m.Type, &m.SubType, &m.Duration, &m.PlayCount,
		&m.LastPlayedDate, &m.InsertionDate, &m.Thumbnail,
		&m.Title, &m.Filename, &m.IsFavorite, &m.IsPresent, &m.IsExternal,
		&m.ParentMediaID, &m.IsP2P, &m.Infohash, &m.FileIndex)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classifyError(err)
	}
	return m, nil
}

// CreateMedia inserts a media row and returns the cached record.
func (s *Store) CreateMedia(title string, mediaType MediaType, external bool) (*Media, error) {
	m := &Media{
		Type:          mediaType,
		Duration:      -1,
		InsertionDate: time.Now().Unix(),
		Title:         title,
		Filename:      title,
		IsPresent:     true,
		IsExternal:    external,
	}
	err := s.Transaction(func(tx *Tx) error {
		return s.createMedia(tx, m)
	})
	if err != nil {
		return nil, err
	}
	s.cacheMedia(m)
	return m, nil
}

func (s *Store) createMedia(tx *Tx, m *Media) error {
	res, err := tx.Exec(`
		INSERT INTO media (type, subtype, duration, insertion_date, title, filename,
			is_present, is_external, parent_media_id, is_p2p, infohash, file_index)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		int(m.Type), int(m.SubType), m.Duration, m.InsertionDate,
		util.NormalizeTitle(m.Title), m.Filename, m.IsPresent, m.IsExternal,
		nullableID(m.ParentMediaID), m.IsP2P, nullableString(m.Infohash), m.FileIndex)
	if err != nil {
		return err
	}
	m.ID, err = res.LastInsertId()
	if err != nil {
		return err
	}
	tx.touch(TableMedia, HookInsert, m.ID)
	return nil
}

func (s *Store) cacheMedia(m *Media) {
	s.cache.Fetch(KindMedia, m.ID, func() (interface{}, error) { return m, nil })
}

// Media fetches a media record by id, cache-aware.
func (s *Store) Media(id int64) (*Media, error) {
	v, err := s.cache.Fetch(KindMedia, id, func() (interface{}, error) {
		m, err := scanMedia(s.QueryRow(
			"SELECT "+mediaColumns+" FROM media WHERE id_media = ?", id))
		if err != nil || m == nil {
			return nil, err
		}
		return m, nil
	})
	if err != nil || v == nil {
		return nil, err
	}
	return v.(*Media), nil
}

// MediaByMrl resolves a media through its main file MRL.
func (s *Store) MediaByMrl(mrl string) (*Media, error) {
	f, err := s.FileByMrl(mrl)
	if err != nil || f == nil {
		return nil, err
	}
	return s.Media(f.MediaID)
}

// MediaList returns present, non-external media of the given type.
func (s *Store) MediaList(mediaType MediaType, sort SortingCriteria, desc bool) ([]*Media, error) {
	return s.fetchMediaAll(`
		SELECT `+mediaColumns+` FROM media
		WHERE type = ? AND is_present = 1 AND is_external = 0`+mediaOrderBy(sort, desc),
		int(mediaType))
}

func (s *Store) fetchMediaAll(query string, args ...interface{}) ([]*Media, error) {
	rows, err := s.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Media
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, err
		}
		// Route through the cache so callers observe live instances.
		cached, _ := s.cache.Fetch(KindMedia, m.ID, func() (interface{}, error) { return m, nil })
		out = append(out, cached.(*Media))
	}
	return out, rows.Err()
}

// DeleteMedia removes a media and everything hanging off it. Files,
// tracks and per-type rows cascade; emptied albums and artists are
// collected by triggers.
func (s *Store) DeleteMedia(id int64) error {
	return s.Transaction(func(tx *Tx) error {
		return s.deleteMedia(tx, id)
	})
}

func (s *Store) deleteMedia(tx *Tx, id int64) error {
	// Cascaded rows will not report through the change log on their own;
	// collect them up front so hooks and the cache stay truthful.
	fileIDs, err := idList(tx, "SELECT id_file FROM files WHERE media_id = ?", id)
	if err != nil {
		return err
	}
	trackIDs, err := idList(tx, "SELECT id_track FROM album_tracks WHERE media_id = ?", id)
	if err != nil {
		return err
	}
	var albumID, artistID int64
	tx.QueryRow(`
		SELECT ifnull(album_id, 0), ifnull(artist_id, 0)
		FROM album_tracks WHERE media_id = ?`, id).Scan(&albumID, &artistID)

	res, err := tx.Exec("DELETE FROM media WHERE id_media = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	tx.touch(TableMedia, HookDelete, id)
	for _, fid := range fileIDs {
		tx.touch(TableFile, HookDelete, fid)
	}
	for _, tid := range trackIDs {
		tx.touch(TableAlbumTrack, HookDelete, tid)
	}
	if albumID != 0 {
		if gone, err := rowGone(tx, "SELECT 1 FROM albums WHERE id_album = ?", albumID); err == nil && gone {
			tx.touch(TableAlbum, HookDelete, albumID)
		}
	}
	if artistID != 0 {
		if gone, err := rowGone(tx, "SELECT 1 FROM artists WHERE id_artist = ?", artistID); err == nil && gone {
			tx.touch(TableArtist, HookDelete, artistID)
		}
	}
	return nil
}

// SetMediaTitle updates the display title and the live record.
func (s *Store) SetMediaTitle(m *Media, title string) error {
	title = util.NormalizeTitle(title)
	err := s.Transaction(func(tx *Tx) error {
		if _, err := tx.Exec("UPDATE media SET title = ? WHERE id_media = ?", title, m.ID); err != nil {
			return err
		}
		tx.touch(TableMedia, HookUpdate, m.ID)
		return nil
	})
	if err != nil {
		return err
	}
	m.Title = title
	return nil
}

// SetMediaDuration persists the probed duration.
func (s *Store) SetMediaDuration(m *Media, duration int64) error {
	err := s.Transaction(func(tx *Tx) error {
		if _, err := tx.Exec("UPDATE media SET duration = ? WHERE id_media = ?", duration, m.ID); err != nil {
			return err
		}
		tx.touch(TableMedia, HookUpdate, m.ID)
		return nil
	})
	if err != nil {
		return err
	}
	m.Duration = duration
	return nil
}

// SetMediaType classifies the media once probed.
func (s *Store) SetMediaType(m *Media, mediaType MediaType) error {
	err := s.Transaction(func(tx *Tx) error {
		if _, err := tx.Exec("UPDATE media SET type = ? WHERE id_media = ?", int(mediaType), m.ID); err != nil {
			return err
		}
		tx.touch(TableMedia, HookUpdate, m.ID)
		return nil
	})
	if err != nil {
		return err
	}
	m.Type = mediaType
	return nil
}

// SetMediaSubType records the refined classification.
func (s *Store) SetMediaSubType(m *Media, subType MediaSubType) error {
	err := s.Transaction(func(tx *Tx) error {
		if _, err := tx.Exec("UPDATE media SET subtype = ? WHERE id_media = ?", int(subType), m.ID); err != nil {
			return err
		}
		tx.touch(TableMedia, HookUpdate, m.ID)
		return nil
	})
	if err != nil {
		return err
	}
	m.SubType = subType
	return nil
}

// SetMediaThumbnail stores the path of the generated preview image.
func (s *Store) SetMediaThumbnail(m *Media, path string) error {
	err := s.Transaction(func(tx *Tx) error {
		if _, err := tx.Exec("UPDATE media SET thumbnail = ? WHERE id_media = ?", path, m.ID); err != nil {
			return err
		}
		tx.touch(TableMedia, HookUpdate, m.ID)
		return nil
	})
	if err != nil {
		return err
	}
	m.Thumbnail = path
	return nil
}

// SetMediaFavorite flags the media as a favorite.
func (s *Store) SetMediaFavorite(m *Media, favorite bool) error {
	err := s.Transaction(func(tx *Tx) error {
		if _, err := tx.Exec("UPDATE media SET is_favorite = ? WHERE id_media = ?", favorite, m.ID); err != nil {
			return err
		}
		tx.touch(TableMedia, HookUpdate, m.ID)
		return nil
	})
	if err != nil {
		return err
	}
	m.IsFavorite = favorite
	return nil
}

// IncreasePlayCount bumps the play counter and the last-played date.
func (s *Store) IncreasePlayCount(m *Media) error {
	now := time.Now().Unix()
	err := s.Transaction(func(tx *Tx) error {
		if _, err := tx.Exec(`
			UPDATE media SET play_count = play_count + 1, last_played_date = ?
			WHERE id_media = ?`, now, m.ID); err != nil {
			return err
		}
		tx.touch(TableMedia, HookUpdate, m.ID)
		return nil
	})
	if err != nil {
		return err
	}
	m.PlayCount++
	m.LastPlayedDate = now
	return nil
}

// SearchMedia runs the full-text search over media titles. Patterns
// shorter than 3 characters return nothing.
func (s *Store) SearchMedia(pattern string) ([]*Media, error) {
	if len(pattern) < 3 {
		return nil, nil
	}
	return s.fetchMediaAll(`
		SELECT `+mediaColumns+` FROM media
		WHERE id_media IN (SELECT rowid FROM media_fts WHERE media_fts MATCH ?)
		AND is_present = 1 ORDER BY title ASC`,
		util.NormalizeTitle(pattern)+"*")
}

func nullableID(id int64) interface{} {
	if id == 0 {
		return nil
	}
	return id
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func idList(tx *Tx, query string, args ...interface{}) ([]int64, error) {
	rows, err := tx.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func rowGone(tx *Tx, query string, args ...interface{}) (bool, error) {
	var one int
	err := tx.QueryRow(query, args...).Scan(&one)
	if err == sql.ErrNoRows {
		return true, nil
	}
	return false, classifyError(err)
}
