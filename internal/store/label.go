package store

import "database/sql"

// Label is a user-defined tag attached to media.
type Label struct {
	ID   int64
	Name string
}

// CreateLabel inserts a label, or returns the existing one.
func (s *Store) CreateLabel(name string) (*Label, error) {
	l := &Label{Name: name}
	err := s.Transaction(func(tx *Tx) error {
		res, err := tx.Exec("INSERT INTO labels (name) VALUES (?)", name)
		if err != nil {
			return err
		}
		if l.ID, err = res.LastInsertId(); err != nil {
			return err
		}
		tx.touch(TableLabel, HookInsert, l.ID)
		return nil
	})
	if IsKind(err, ErrConstraint) {
		return s.LabelByName(name)
	}
	if err != nil {
		return nil, err
	}
	s.cache.Fetch(KindLabel, l.ID, func() (interface{}, error) { return l, nil })
	return l, nil
}

// LabelByName finds a label by exact name.
func (s *Store) LabelByName(name string) (*Label, error) {
	l := &Label{}
	err := s.QueryRow("SELECT id_label, name FROM labels WHERE name = ?", name).
		Scan(&l.ID, &l.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classifyError(err)
	}
	cached, _ := s.cache.Fetch(KindLabel, l.ID, func() (interface{}, error) { return l, nil })
	return cached.(*Label), nil
}

// AddLabel attaches a label to a media. Attaching twice is a no-op.
func (s *Store) AddLabel(m *Media, l *Label) error {
	err := s.Transaction(func(tx *Tx) error {
		if _, err := tx.Exec(
			"INSERT INTO label_media (label_id, media_id) VALUES (?, ?)", l.ID, m.ID); err != nil {
			return err
		}
		tx.touch(TableMedia, HookUpdate, m.ID)
		return nil
	})
	if IsKind(err, ErrConstraint) {
		return nil
	}
	return err
}

// RemoveLabel detaches a label from a media, reporting whether it was
// attached.
func (s *Store) RemoveLabel(m *Media, l *Label) (bool, error) {
	removed := false
	err := s.Transaction(func(tx *Tx) error {
		res, err := tx.Exec(
			"DELETE FROM label_media WHERE label_id = ? AND media_id = ?", l.ID, m.ID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		removed = n > 0
		if removed {
			tx.touch(TableMedia, HookUpdate, m.ID)
		}
		return nil
	})
	return removed, err
}

// LabelsForMedia lists the labels attached to a media.
func (s *Store) LabelsForMedia(mediaID int64) ([]*Label, error) {
	rows, err := s.Query(`
		SELECT l.id_label, l.name FROM labels l
		INNER JOIN label_media lm ON lm.label_id = l.id_label
		WHERE lm.media_id = ? ORDER BY l.id_label`, mediaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Label
	for rows.Next() {
		l := &Label{}
		if err := rows.Scan(&l.ID, &l.Name); err != nil {
			return nil, classifyError(err)
		}
		cached, _ := s.cache.Fetch(KindLabel, l.ID, func() (interface{}, error) { return l, nil })
		out = append(out, cached.(*Label))
	}
	return out, rows.Err()
}
