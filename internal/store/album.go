package store

import (
	"database/sql"

	"github.com/franz/medialib/internal/util"
)

// Album groups tracks. An album with a NULL title is an artist's
// "unknown album", holding tracks with no album tag; it never shows up
// in listings or search.
type Album struct {
	ID           int64
	Title        string
	ArtistID     int64
	ReleaseYear  int
	yearLatched  bool
	ShortSummary string
	ArtworkMrl   string
	NbTracks     int
	Duration     int64
	IsPresent    bool
}

const albumColumns = `id_album, ifnull(title, ''), ifnull(artist_id, 0),
	release_year, ifnull(short_summary, ''), ifnull(artwork_mrl, ''),
	nb_tracks, duration, is_present`

func scanAlbum(row interface{ Scan(...interface{}) error }) (*Album, error) {
	a := &Album{}
	var year sql.NullInt64
	err := row.Scan(&a.ID, &a.Title, &a.ArtistID, &year, &a.ShortSummary,
		&a.ArtworkMrl, &a.NbTracks, &a.Duration, &a.IsPresent)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classifyError(err)
	}
	if year.Valid {
		a.ReleaseYear = int(year.Int64)
		// A stored zero is the conflict marker, not "unset".
		a.yearLatched = year.Int64 == 0
	}
	return a, nil
}

// CreateAlbum inserts a titled album.
func (s *Store) CreateAlbum(title string) (*Album, error) {
	return s.createAlbum(&Album{Title: title, IsPresent: true})
}

// CreateUnknownAlbum inserts the per-artist container for untagged
// tracks.
func (s *Store) CreateUnknownAlbum(artistID int64) (*Album, error) {
	return s.createAlbum(&Album{ArtistID: artistID, IsPresent: true})
}

func (s *Store) createAlbum(a *Album) (*Album, error) {
	err := s.Transaction(func(tx *Tx) error {
		res, err := tx.Exec(`
			INSERT INTO albums (title, artist_id, is_present) VALUES (?, ?, 1)`,
			nullableString(util.NormalizeTitle(a.Title)), nullableID(a.ArtistID))
		if err != nil {
			return err
		}
		if a.ID, err = res.LastInsertId(); err != nil {
			return err
		}
		tx.touch(TableAlbum, HookInsert, a.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cache.Fetch(KindAlbum, a.ID, func() (interface{}, error) { return a, nil })
	return a, nil
}

// Album fetches an album by id, cache-aware.
func (s *Store) Album(id int64) (*Album, error) {
	v, err := s.cache.Fetch(KindAlbum, id, func() (interface{}, error) {
		a, err := scanAlbum(s.QueryRow(
			"SELECT "+albumColumns+" FROM albums WHERE id_album = ?", id))
		if err != nil || a == nil {
			return nil, err
		}
		return a, nil
	})
	if err != nil || v == nil {
		return nil, err
	}
	return v.(*Album), nil
}

// AlbumByTitle finds a titled album.
func (s *Store) AlbumByTitle(title string) (*Album, error) {
	var id int64
	err := s.QueryRow("SELECT id_album FROM albums WHERE title = ?",
		util.NormalizeTitle(title)).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classifyError(err)
	}
	return s.Album(id)
}

// UnknownAlbumForArtist returns the artist's container for untagged
// tracks, creating it on first use.
func (s *Store) UnknownAlbumForArtist(artistID int64) (*Album, error) {
	var id int64
	err := s.QueryRow(
		"SELECT id_album FROM albums WHERE artist_id = ? AND title IS NULL",
		artistID).Scan(&id)
	if err == nil {
		return s.Album(id)
	}
	if err != sql.ErrNoRows {
		return nil, classifyError(err)
	}
	return s.CreateUnknownAlbum(artistID)
}

// Albums lists present, titled albums.
func (s *Store) Albums(sort SortingCriteria, desc bool) ([]*Album, error) {
	return s.fetchAlbums(`
		SELECT ` + albumColumns + ` FROM albums
		WHERE is_present = 1 AND title IS NOT NULL` + albumOrderBy(sort, desc))
}

// AlbumsForArtist lists an artist's titled albums.
func (s *Store) AlbumsForArtist(artistID int64, sort SortingCriteria, desc bool) ([]*Album, error) {
	return s.fetchAlbums(`
		SELECT `+albumColumns+` FROM albums
		WHERE artist_id = ? AND title IS NOT NULL AND is_present = 1`+
		albumOrderBy(sort, desc), artistID)
}

func (s *Store) fetchAlbums(query string, args ...interface{}) ([]*Album, error) {
	rows, err := s.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Album
	for rows.Next() {
		a, err := scanAlbum(rows)
		if err != nil {
			return nil, err
		}
		cached, _ := s.cache.Fetch(KindAlbum, a.ID, func() (interface{}, error) { return a, nil })
		out = append(out, cached.(*Album))
	}
	return out, rows.Err()
}

// SetReleaseYear merges a release year into the album. Conflicting
// non-forced years latch the album to 0 until a forced update; matching
// years are no-ops.
func (s *Store) SetReleaseYear(a *Album, year int, force bool) error {
	if !force {
		if a.yearLatched {
			return nil
		}
		if a.ReleaseYear == year && a.ReleaseYear != 0 {
			return nil
		}
		if a.ReleaseYear != 0 {
			// Conflicting dates from different tracks: give up on the
			// year and remember the conflict.
			return s.storeReleaseYear(a, 0, true)
		}
	}
	return s.storeReleaseYear(a, year, false)
}

func (s *Store) storeReleaseYear(a *Album, year int, latched bool) error {
	err := s.Transaction(func(tx *Tx) error {
		if _, err := tx.Exec(
			"UPDATE albums SET release_year = ? WHERE id_album = ?", year, a.ID); err != nil {
			return err
		}
		tx.touch(TableAlbum, HookUpdate, a.ID)
		return nil
	})
	if err != nil {
		return err
	}
	a.ReleaseYear = year
	a.yearLatched = latched
	return nil
}

// SetAlbumArtist binds the album artist; counter upkeep happens in
// triggers.
func (s *Store) SetAlbumArtist(a *Album, artistID int64) error {
	err := s.Transaction(func(tx *Tx) error {
		if _, err := tx.Exec(
			"UPDATE albums SET artist_id = ? WHERE id_album = ?", artistID, a.ID); err != nil {
			return err
		}
		tx.touch(TableAlbum, HookUpdate, a.ID)
		return nil
	})
	if err != nil {
		return err
	}
	a.ArtistID = artistID
	return nil
}

// SetAlbumArtwork stores the album cover MRL.
func (s *Store) SetAlbumArtwork(a *Album, mrl string) error {
	err := s.Transaction(func(tx *Tx) error {
		if _, err := tx.Exec(
			"UPDATE albums SET artwork_mrl = ? WHERE id_album = ?", mrl, a.ID); err != nil {
			return err
		}
		tx.touch(TableAlbum, HookUpdate, a.ID)
		return nil
	})
	if err != nil {
		return err
	}
	a.ArtworkMrl = mrl
	return nil
}

// AlbumTracksMedia lists an album's media in disc/track order.
func (s *Store) AlbumTracksMedia(albumID int64) ([]*Media, error) {
	return s.fetchMediaAll(`
		SELECT `+mediaColumnsPrefixed("m")+` FROM media m
		INNER JOIN album_tracks t ON t.media_id = m.id_media
		WHERE t.album_id = ? AND t.is_present = 1
		ORDER BY t.disc_number ASC, t.track_number ASC, m.title ASC`, albumID)
}

// SearchAlbums runs full-text search over titled albums.
func (s *Store) SearchAlbums(pattern string) ([]*Album, error) {
	if len(pattern) < 3 {
		return nil, nil
	}
	return s.fetchAlbums(`
		SELECT `+albumColumns+` FROM albums
		WHERE id_album IN (SELECT rowid FROM albums_fts WHERE albums_fts MATCH ?)
		AND title IS NOT NULL AND is_present = 1 ORDER BY title ASC`,
		util.NormalizeTitle(pattern)+"*")
}
