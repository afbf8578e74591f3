package store

import (
	"database/sql"
	"time"

	"github.com/franz/medialib/internal/util"
)

// Playlist is an ordered collection of media, either user-created or
// backed by a playlist file found during discovery.
type Playlist struct {
	ID           int64
	Name         string
	FileID       int64
	CreationDate int64
	ArtworkMrl   string
}

const playlistColumns = `id_playlist, ifnull(name, ''), ifnull(file_id, 0),
	ifnull(creation_date, 0), ifnull(artwork_mrl, '')`

func scanPlaylist(row interface{ Scan(...interface{}) error }) (*Playlist, error) {
	p := &Playlist{}
	err := row.Scan(&p.ID, &p.Name, &p.FileID, &p.CreationDate, &p.ArtworkMrl)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classifyError(err)
	}
	return p, nil
}

// CreatePlaylist inserts a playlist. fileID 0 means user-created.
func (s *Store) CreatePlaylist(name string, fileID int64) (*Playlist, error) {
	p := &Playlist{
		Name:         util.NormalizeTitle(name),
		FileID:       fileID,
		CreationDate: time.Now().Unix(),
	}
	err := s.Transaction(func(tx *Tx) error {
		res, err := tx.Exec(
			"INSERT INTO playlists (name, file_id, creation_date) VALUES (?, ?, ?)",
			p.Name, nullableID(fileID), p.CreationDate)
		if err != nil {
			return err
		}
		if p.ID, err = res.LastInsertId(); err != nil {
			return err
		}
		tx.touch(TablePlaylist, HookInsert, p.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cache.Fetch(KindPlaylist, p.ID, func() (interface{}, error) { return p, nil })
	return p, nil
}

// Playlist fetches a playlist by id, cache-aware.
func (s *Store) Playlist(id int64) (*Playlist, error) {
	v, err := s.cache.Fetch(KindPlaylist, id, func() (interface{}, error) {
		p, err := scanPlaylist(s.QueryRow(
			"SELECT "+playlistColumns+" FROM playlists WHERE id_playlist = ?", id))
		if err != nil || p == nil {
			return nil, err
		}
		return p, nil
	})
	if err != nil || v == nil {
		return nil, err
	}
	return v.(*Playlist), nil
}

// Playlists lists all playlists alphabetically.
func (s *Store) Playlists() ([]*Playlist, error) {
	return s.fetchPlaylists(
		"SELECT " + playlistColumns + " FROM playlists ORDER BY name ASC")
}

func (s *Store) fetchPlaylists(query string, args ...interface{}) ([]*Playlist, error) {
	rows, err := s.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Playlist
	for rows.Next() {
		p, err := scanPlaylist(rows)
		if err != nil {
			return nil, err
		}
		cached, _ := s.cache.Fetch(KindPlaylist, p.ID, func() (interface{}, error) { return p, nil })
		out = append(out, cached.(*Playlist))
	}
	return out, rows.Err()
}

// DeletePlaylist removes a playlist and its membership rows.
func (s *Store) DeletePlaylist(id int64) error {
	return s.Transaction(func(tx *Tx) error {
		res, err := tx.Exec("DELETE FROM playlists WHERE id_playlist = ?", id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			tx.touch(TablePlaylist, HookDelete, id)
		}
		return nil
	})
}

// PlaylistAppend adds a media at a given position; position < 0 appends
// at the tail.
func (s *Store) PlaylistAppend(p *Playlist, mediaID int64, position int) error {
	return s.Transaction(func(tx *Tx) error {
		if position < 0 {
			if err := tx.QueryRow(
				"SELECT ifnull(MAX(position), -1) + 1 FROM playlist_media WHERE playlist_id = ?",
				p.ID).Scan(&position); err != nil {
				return classifyError(err)
			}
		}
		if _, err := tx.Exec(`
			INSERT OR REPLACE INTO playlist_media (playlist_id, media_id, position)
			VALUES (?, ?, ?)`, p.ID, mediaID, position); err != nil {
			return err
		}
		tx.touch(TablePlaylist, HookUpdate, p.ID)
		return nil
	})
}

// PlaylistRemove drops a media from a playlist, reporting whether it was
// a member.
func (s *Store) PlaylistRemove(p *Playlist, mediaID int64) (bool, error) {
	removed := false
	err := s.Transaction(func(tx *Tx) error {
		res, err := tx.Exec(
			"DELETE FROM playlist_media WHERE playlist_id = ? AND media_id = ?", p.ID, mediaID)
		if err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		removed = n > 0
		if removed {
			tx.touch(TablePlaylist, HookUpdate, p.ID)
		}
		return nil
	})
	return removed, err
}

// PlaylistMedia lists a playlist's media in position order.
func (s *Store) PlaylistMedia(playlistID int64) ([]*Media, error) {
	return s.fetchMediaAll(`
		SELECT `+mediaColumnsPrefixed("m")+` FROM media m
		INNER JOIN playlist_media pm ON pm.media_id = m.id_media
		WHERE pm.playlist_id = ? AND m.is_present = 1
		ORDER BY pm.position ASC`, playlistID)
}

// SearchPlaylists runs full-text search over playlist names.
func (s *Store) SearchPlaylists(pattern string) ([]*Playlist, error) {
	if len(pattern) < 3 {
		return nil, nil
	}
	return s.fetchPlaylists(`
		SELECT `+playlistColumns+` FROM playlists
		WHERE id_playlist IN (SELECT rowid FROM playlists_fts WHERE playlists_fts MATCH ?)
		ORDER BY name ASC`, util.NormalizeTitle(pattern)+"*")
}
