package store

import (
	"database/sql"

	"github.com/franz/medialib/internal/util"
)

// Show is a TV series; episodes hang off it through ShowEpisode rows.
type Show struct {
	ID           int64
	Title        string
	ReleaseDate  int64
	ShortSummary string
	ArtworkMrl   string
	TvdbID       string
}

// ShowEpisode refines a video media into an episode of a show.
type ShowEpisode struct {
	ID            int64
	MediaID       int64
	ShowID        int64
	EpisodeNumber int
	SeasonNumber  int
	Summary       string
	TvdbID        string
}

// CreateShow inserts a show.
func (s *Store) CreateShow(title string) (*Show, error) {
	sh := &Show{Title: util.NormalizeTitle(title)}
	err := s.Transaction(func(tx *Tx) error {
		res, err := tx.Exec("INSERT INTO shows (title) VALUES (?)", sh.Title)
		if err != nil {
			return err
		}
		if sh.ID, err = res.LastInsertId(); err != nil {
			return err
		}
		tx.touch(TableShow, HookInsert, sh.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cache.Fetch(KindShow, sh.ID, func() (interface{}, error) { return sh, nil })
	return sh, nil
}

// Show fetches a show by id, cache-aware.
func (s *Store) Show(id int64) (*Show, error) {
	v, err := s.cache.Fetch(KindShow, id, func() (interface{}, error) {
		sh := &Show{}
		var title, summary, artwork, tvdb sql.NullString
		err := s.QueryRow(`
			SELECT id_show, title, ifnull(release_date, 0), short_summary, artwork_mrl, tvdb_id
			FROM shows WHERE id_show = ?`, id).
			Scan(&sh.ID, &title, &sh.ReleaseDate, &summary, &artwork, &tvdb)
		if err == sql.ErrNoRows {
			return nil, nil
		}
		if err != nil {
			return nil, classifyError(err)
		}
		sh.Title, sh.ShortSummary = title.String, summary.String
		sh.ArtworkMrl, sh.TvdbID = artwork.String, tvdb.String
		return sh, nil
	})
	if err != nil || v == nil {
		return nil, err
	}
	return v.(*Show), nil
}

// ShowByTitle finds a show by title.
func (s *Store) ShowByTitle(title string) (*Show, error) {
	var id int64
	err := s.QueryRow("SELECT id_show FROM shows WHERE title = ?",
		util.NormalizeTitle(title)).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classifyError(err)
	}
	return s.Show(id)
}

// AddEpisode attaches a media to a show as one of its episodes.
func (s *Store) AddEpisode(m *Media, showID int64, seasonNumber, episodeNumber int) (*ShowEpisode, error) {
	e := &ShowEpisode{
		MediaID:       m.ID,
		ShowID:        showID,
		EpisodeNumber: episodeNumber,
		SeasonNumber:  seasonNumber,
	}
	err := s.Transaction(func(tx *Tx) error {
		res, err := tx.Exec(`
			INSERT INTO show_episodes (media_id, show_id, episode_number, season_number)
			VALUES (?, ?, ?, ?)`, m.ID, showID, episodeNumber, seasonNumber)
		if err != nil {
			return err
		}
		if e.ID, err = res.LastInsertId(); err != nil {
			return err
		}
		if _, err := tx.Exec("UPDATE media SET subtype = ? WHERE id_media = ?",
			int(MediaSubTypeShowEpisode), m.ID); err != nil {
			return err
		}
		tx.touch(TableShowEpisode, HookInsert, e.ID)
		tx.touch(TableMedia, HookUpdate, m.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.SubType = MediaSubTypeShowEpisode
	s.cache.Fetch(KindShowEpisode, e.ID, func() (interface{}, error) { return e, nil })
	return e, nil
}

// EpisodeForMedia fetches the episode row of a media, if any.
func (s *Store) EpisodeForMedia(mediaID int64) (*ShowEpisode, error) {
	e := &ShowEpisode{}
	var summary, tvdb sql.NullString
	err := s.QueryRow(`
		SELECT id_episode, media_id, show_id, ifnull(episode_number, 0),
			ifnull(season_number, 0), episode_summary, tvdb_id
		FROM show_episodes WHERE media_id = ?`, mediaID).
		Scan(&e.ID, &e.MediaID, &e.ShowID, &e.EpisodeNumber, &e.SeasonNumber, &summary, &tvdb)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classifyError(err)
	}
	e.Summary, e.TvdbID = summary.String, tvdb.String
	cached, _ := s.cache.Fetch(KindShowEpisode, e.ID, func() (interface{}, error) { return e, nil })
	return cached.(*ShowEpisode), nil
}

// ShowEpisodesMedia lists a show's media ordered by season and episode.
func (s *Store) ShowEpisodesMedia(showID int64) ([]*Media, error) {
	return s.fetchMediaAll(`
		SELECT `+mediaColumnsPrefixed("m")+` FROM media m
		INNER JOIN show_episodes e ON e.media_id = m.id_media
		WHERE e.show_id = ? AND m.is_present = 1
		ORDER BY e.season_number ASC, e.episode_number ASC`, showID)
}
