package store

import (
	"database/sql"

	"github.com/franz/medialib/internal/util"
)

// Genre is a flat tag shared by album tracks.
type Genre struct {
	ID   int64
	Name string
}

// CreateGenre inserts a genre, or returns the existing row on a name
// collision.
func (s *Store) CreateGenre(name string) (*Genre, error) {
	g := &Genre{Name: util.NormalizeTitle(name)}
	err := s.Transaction(func(tx *Tx) error {
		res, err := tx.Exec("INSERT INTO genres (name) VALUES (?)", g.Name)
		if err != nil {
			return err
		}
		if g.ID, err = res.LastInsertId(); err != nil {
			return err
		}
		tx.touch(TableGenre, HookInsert, g.ID)
		return nil
	})
	if IsKind(err, ErrConstraint) {
		return s.GenreByName(name)
	}
	if err != nil {
		return nil, err
	}
	s.cache.Fetch(KindGenre, g.ID, func() (interface{}, error) { return g, nil })
	return g, nil
}

// Genre fetches a genre by id, cache-aware.
func (s *Store) Genre(id int64) (*Genre, error) {
	v, err := s.cache.Fetch(KindGenre, id, func() (interface{}, error) {
		g := &Genre{}
		err := s.QueryRow("SELECT id_genre, name FROM genres WHERE id_genre = ?", id).
			Scan(&g.ID, &g.Name)
		if err == sql.ErrNoRows {
			return nil, nil
		}
		if err != nil {
			return nil, classifyError(err)
		}
		return g, nil
	})
	if err != nil || v == nil {
		return nil, err
	}
	return v.(*Genre), nil
}

// GenreByName finds a genre by exact name.
func (s *Store) GenreByName(name string) (*Genre, error) {
	var id int64
	err := s.QueryRow("SELECT id_genre FROM genres WHERE name = ?",
		util.NormalizeTitle(name)).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classifyError(err)
	}
	return s.Genre(id)
}

// Genres lists all genres alphabetically.
func (s *Store) Genres() ([]*Genre, error) {
	return s.fetchGenres("SELECT id_genre, name FROM genres ORDER BY name ASC")
}

// SearchGenres runs full-text search over genre names.
func (s *Store) SearchGenres(pattern string) ([]*Genre, error) {
	if len(pattern) < 3 {
		return nil, nil
	}
	return s.fetchGenres(`
		SELECT id_genre, name FROM genres
		WHERE id_genre IN (SELECT rowid FROM genres_fts WHERE genres_fts MATCH ?)
		ORDER BY name ASC`, util.NormalizeTitle(pattern)+"*")
}

func (s *Store) fetchGenres(query string, args ...interface{}) ([]*Genre, error) {
	rows, err := s.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Genre
	for rows.Next() {
		g := &Genre{}
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, classifyError(err)
		}
		cached, _ := s.cache.Fetch(KindGenre, g.ID, func() (interface{}, error) { return g, nil })
		out = append(out, cached.(*Genre))
	}
	return out, rows.Err()
}
