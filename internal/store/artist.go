package store

import (
	"database/sql"

	"github.com/franz/medialib/internal/util"
)

// Artist is a named performer or album artist. Two reserved rows exist
// from schema creation: "Unknown Artist" and "Various Artists".
type Artist struct {
	ID            int64
	Name          string
	ShortBio      string
	ArtworkMrl    string
	NbAlbums      int
	NbTracks      int
	MusicBrainzID string
	IsPresent     bool
}

const artistColumns = `id_artist, ifnull(name, ''), ifnull(shortbio, ''),
	ifnull(artwork_mrl, ''), nb_albums, nb_tracks, ifnull(mb_id, ''), is_present`

func scanArtist(row interface{ Scan(...interface{}) error }) (*Artist, error) {
	a := &Artist{}
	err := row.Scan(&a.ID, &a.Name, &a.ShortBio, &a.ArtworkMrl,
		&a.NbAlbums, &a.NbTracks, &a.MusicBrainzID, &a.IsPresent)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classifyError(err)
	}
	return a, nil
}

// CreateArtist inserts an artist. On a name collision the existing row
// is fetched instead.
func (s *Store) CreateArtist(name string) (*Artist, error) {
	a := &Artist{Name: util.NormalizeTitle(name), IsPresent: true}
	err := s.Transaction(func(tx *Tx) error {
		res, err := tx.Exec("INSERT INTO artists (name, is_present) VALUES (?, 1)", a.Name)
		if err != nil {
			return err
		}
		if a.ID, err = res.LastInsertId(); err != nil {
			return err
		}
		tx.touch(TableArtist, HookInsert, a.ID)
		return nil
	})
	if IsKind(err, ErrConstraint) {
		return s.ArtistByName(name)
	}
	if err != nil {
		return nil, err
	}
	s.cache.Fetch(KindArtist, a.ID, func() (interface{}, error) { return a, nil })
	return a, nil
}

// Artist fetches an artist by id, cache-aware.
func (s *Store) Artist(id int64) (*Artist, error) {
	v, err := s.cache.Fetch(KindArtist, id, func() (interface{}, error) {
		a, err := scanArtist(s.QueryRow(
			"SELECT "+artistColumns+" FROM artists WHERE id_artist = ?", id))
		if err != nil || a == nil {
			return nil, err
		}
		return a, nil
	})
	if err != nil || v == nil {
		return nil, err
	}
	return v.(*Artist), nil
}

// ArtistByName finds an artist by exact name.
func (s *Store) ArtistByName(name string) (*Artist, error) {
	var id int64
	err := s.QueryRow("SELECT id_artist FROM artists WHERE name = ?",
		util.NormalizeTitle(name)).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classifyError(err)
	}
	return s.Artist(id)
}

// Artists lists artists with catalog content. includeAll also returns
// artists that only appear on tracks without owning an album. The
// reserved rows are never listed.
func (s *Store) Artists(includeAll bool, desc bool) ([]*Artist, error) {
	cond := "nb_albums > 0"
	if includeAll {
		cond = "(nb_albums > 0 OR nb_tracks > 0)"
	}
	return s.fetchArtists(`
		SELECT ` + artistColumns + ` FROM artists
		WHERE ` + cond + ` AND is_present = 1 AND id_artist NOT IN (1, 2)` +
		artistOrderBy(desc))
}

func (s *Store) fetchArtists(query string, args ...interface{}) ([]*Artist, error) {
	rows, err := s.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Artist
	for rows.Next() {
		a, err := scanArtist(rows)
		if err != nil {
			return nil, err
		}
		cached, _ := s.cache.Fetch(KindArtist, a.ID, func() (interface{}, error) { return a, nil })
		out = append(out, cached.(*Artist))
	}
	return out, rows.Err()
}

// SetArtistBio updates the artist biography.
func (s *Store) SetArtistBio(a *Artist, bio string) error {
	err := s.Transaction(func(tx *Tx) error {
		if _, err := tx.Exec("UPDATE artists SET shortbio = ? WHERE id_artist = ?", bio, a.ID); err != nil {
			return err
		}
		tx.touch(TableArtist, HookUpdate, a.ID)
		return nil
	})
	if err != nil {
		return err
	}
	a.ShortBio = bio
	return nil
}

// SetArtistMusicBrainzID records the external identifier.
func (s *Store) SetArtistMusicBrainzID(a *Artist, mbID string) error {
	err := s.Transaction(func(tx *Tx) error {
		if _, err := tx.Exec("UPDATE artists SET mb_id = ? WHERE id_artist = ?", mbID, a.ID); err != nil {
			return err
		}
		tx.touch(TableArtist, HookUpdate, a.ID)
		return nil
	})
	if err != nil {
		return err
	}
	a.MusicBrainzID = mbID
	return nil
}

// SetArtistArtwork stores the artist image MRL.
func (s *Store) SetArtistArtwork(a *Artist, mrl string) error {
	err := s.Transaction(func(tx *Tx) error {
		if _, err := tx.Exec("UPDATE artists SET artwork_mrl = ? WHERE id_artist = ?", mrl, a.ID); err != nil {
			return err
		}
		tx.touch(TableArtist, HookUpdate, a.ID)
		return nil
	})
	if err != nil {
		return err
	}
	a.ArtworkMrl = mrl
	return nil
}

// ArtistMedia lists an artist's media. With SortAlbum the tracks come
// out grouped by album (newest release first), then disc, then track
// number.
func (s *Store) ArtistMedia(artistID int64, sort SortingCriteria, desc bool) ([]*Media, error) {
	if sort == SortAlbum {
		dir := sortDirection(desc)
		return s.fetchMediaAll(`
			SELECT `+mediaColumnsPrefixed("m")+` FROM media m
			INNER JOIN album_tracks t ON t.media_id = m.id_media
			INNER JOIN albums a ON a.id_album = t.album_id
			WHERE t.artist_id = ? AND m.is_present = 1
			ORDER BY ifnull(a.release_year, 0) DESC, a.title `+dir+`,
				t.disc_number ASC, t.track_number ASC, m.title ASC`, artistID)
	}
	return s.fetchMediaAll(`
		SELECT `+mediaColumnsPrefixed("m")+` FROM media m
		INNER JOIN album_tracks t ON t.media_id = m.id_media
		WHERE t.artist_id = ? AND m.is_present = 1`+
		mediaOrderByPrefixed(sort, desc), artistID)
}

// SearchArtists runs full-text search over artist names.
func (s *Store) SearchArtists(pattern string) ([]*Artist, error) {
	if len(pattern) < 3 {
		return nil, nil
	}
	return s.fetchArtists(`
		SELECT `+artistColumns+` FROM artists
		WHERE id_artist IN (SELECT rowid FROM artists_fts WHERE artists_fts MATCH ?)
		AND is_present = 1 AND id_artist NOT IN (1, 2) ORDER BY name ASC`,
		util.NormalizeTitle(pattern)+"*")
}
