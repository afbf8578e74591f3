package store

import (
	"database/sql"

	"github.com/franz/medialib/internal/util"
)

// Movie refines a video media into a feature film.
type Movie struct {
	ID         int64
	MediaID    int64
	Title      string
	Summary    string
	ArtworkMrl string
	ImdbID     string
}

// CreateMovie attaches a movie row to a media.
func (s *Store) CreateMovie(m *Media, title string) (*Movie, error) {
	mv := &Movie{MediaID: m.ID, Title: util.NormalizeTitle(title)}
	err := s.Transaction(func(tx *Tx) error {
		res, err := tx.Exec(
			"INSERT INTO movies (media_id, title) VALUES (?, ?)", m.ID, mv.Title)
		if err != nil {
			return err
		}
		if mv.ID, err = res.LastInsertId(); err != nil {
			return err
		}
		if _, err := tx.Exec("UPDATE media SET subtype = ? WHERE id_media = ?",
			int(MediaSubTypeMovie), m.ID); err != nil {
			return err
		}
		tx.touch(TableMovie, HookInsert, mv.ID)
		tx.touch(TableMedia, HookUpdate, m.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.SubType = MediaSubTypeMovie
	s.cache.Fetch(KindMovie, mv.ID, func() (interface{}, error) { return mv, nil })
	return mv, nil
}

// MovieForMedia fetches the movie row of a media, if any.
func (s *Store) MovieForMedia(mediaID int64) (*Movie, error) {
	mv := &Movie{}
	var title, summary, artwork, imdb sql.NullString
	err := s.QueryRow(`
		SELECT id_movie, media_id, title, summary, artwork_mrl, imdb_id
		FROM movies WHERE media_id = ?`, mediaID).
		Scan(&mv.ID, &mv.MediaID, &title, &summary, &artwork, &imdb)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classifyError(err)
	}
	mv.Title, mv.Summary = title.String, summary.String
	mv.ArtworkMrl, mv.ImdbID = artwork.String, imdb.String
	cached, _ := s.cache.Fetch(KindMovie, mv.ID, func() (interface{}, error) { return mv, nil })
	return cached.(*Movie), nil
}
