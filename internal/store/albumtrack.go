package store

import "database/sql"

// AlbumTrack binds a media to its album, artist and genre with its
// position on the release.
type AlbumTrack struct {
	ID          int64
	MediaID     int64
	Duration    int64
	ArtistID    int64
	GenreID     int64
	TrackNumber int
	AlbumID     int64
	DiscNumber  int
	IsPresent   bool
}

const trackColumns = `id_track, media_id, duration, ifnull(artist_id, 0),
	ifnull(genre_id, 0), ifnull(track_number, 0), album_id,
	ifnull(disc_number, 0), is_present`

func scanTrack(row interface{ Scan(...interface{}) error }) (*AlbumTrack, error) {
	t := &AlbumTrack{}
	err := row.Scan(&t.ID, &t.MediaID, &t.Duration, &t.ArtistID, &t.GenreID,
		&t.TrackNumber, &t.AlbumID, &t.DiscNumber, &t.IsPresent)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classifyError(err)
	}
	return t, nil
}

// AddAlbumTrack attaches a media to an album as one of its tracks and
// flags the media as an album track. Album and artist counters move in
// triggers.
func (s *Store) AddAlbumTrack(m *Media, albumID, artistID, genreID int64,
	trackNumber, discNumber int) (*AlbumTrack, error) {
	t := &AlbumTrack{
		MediaID:     m.ID,
		Duration:    m.Duration,
		ArtistID:    artistID,
		GenreID:     genreID,
		TrackNumber: trackNumber,
		AlbumID:     albumID,
		DiscNumber:  discNumber,
		IsPresent:   m.IsPresent,
	}
	err := s.Transaction(func(tx *Tx) error {
		res, err := tx.Exec(`
			INSERT INTO album_tracks (media_id, duration, artist_id, genre_id,
				track_number, album_id, disc_number, is_present)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, t.Duration, nullableID(artistID), nullableID(genreID),
			trackNumber, albumID, discNumber, t.IsPresent)
		if err != nil {
			return err
		}
		if t.ID, err = res.LastInsertId(); err != nil {
			return err
		}
		if _, err := tx.Exec("UPDATE media SET subtype = ? WHERE id_media = ?",
			int(MediaSubTypeAlbumTrack), m.ID); err != nil {
			return err
		}
		tx.touch(TableAlbumTrack, HookInsert, t.ID)
		tx.touch(TableMedia, HookUpdate, m.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.SubType = MediaSubTypeAlbumTrack
	s.cache.Fetch(KindAlbumTrack, t.ID, func() (interface{}, error) { return t, nil })
	// Counters changed under the live album/artist records.
	s.refreshAlbumCounters(albumID)
	s.refreshArtistCounters(artistID)
	return t, nil
}

// TrackForMedia fetches the album track of a media, if any.
func (s *Store) TrackForMedia(mediaID int64) (*AlbumTrack, error) {
	t, err := scanTrack(s.QueryRow(
		"SELECT "+trackColumns+" FROM album_tracks WHERE media_id = ?", mediaID))
	if err != nil || t == nil {
		return nil, err
	}
	cached, _ := s.cache.Fetch(KindAlbumTrack, t.ID, func() (interface{}, error) { return t, nil })
	return cached.(*AlbumTrack), nil
}

// DeleteTrack removes a track's media, which cascades to the track and
// the album/artist bookkeeping.
func (s *Store) DeleteTrack(t *AlbumTrack) error {
	albumID, artistID := t.AlbumID, t.ArtistID
	if err := s.DeleteMedia(t.MediaID); err != nil {
		return err
	}
	s.refreshAlbumCounters(albumID)
	s.refreshArtistCounters(artistID)
	return nil
}

// refreshAlbumCounters reloads trigger-maintained album fields into the
// live record, if one exists.
func (s *Store) refreshAlbumCounters(albumID int64) {
	if albumID == 0 {
		return
	}
	v, ok := s.cache.Peek(KindAlbum, albumID)
	if !ok {
		return
	}
	a := v.(*Album)
	var nbTracks int
	var duration int64
	var present bool
	err := s.QueryRow(
		"SELECT nb_tracks, duration, is_present FROM albums WHERE id_album = ?",
		albumID).Scan(&nbTracks, &duration, &present)
	if err == sql.ErrNoRows {
		s.cache.Remove(KindAlbum, albumID)
		return
	}
	if err != nil {
		return
	}
	a.NbTracks = nbTracks
	a.Duration = duration
	a.IsPresent = present
}

// refreshArtistCounters reloads trigger-maintained artist fields into
// the live record, if one exists.
func (s *Store) refreshArtistCounters(artistID int64) {
	if artistID == 0 {
		return
	}
	v, ok := s.cache.Peek(KindArtist, artistID)
	if !ok {
		return
	}
	a := v.(*Artist)
	var nbAlbums, nbTracks int
	var present bool
	err := s.QueryRow(
		"SELECT nb_albums, nb_tracks, is_present FROM artists WHERE id_artist = ?",
		artistID).Scan(&nbAlbums, &nbTracks, &present)
	if err == sql.ErrNoRows {
		s.cache.Remove(KindArtist, artistID)
		return
	}
	if err != nil {
		return
	}
	a.NbAlbums = nbAlbums
	a.NbTracks = nbTracks
	a.IsPresent = present
}
