package store

import "time"

// HistoryEntry records one played stream. The table keeps at most the
// 100 most recent entries; a trigger drops the overflow.
type HistoryEntry struct {
	ID            int64
	Mrl           string
	InsertionDate int64
}

// AddToStreamHistory records a stream play. Replaying an MRL moves it to
// the top.
func (s *Store) AddToStreamHistory(mrl string) error {
	return s.Transaction(func(tx *Tx) error {
		_, err := tx.Exec(
			"INSERT INTO history (mrl, insertion_date) VALUES (?, ?)",
			mrl, time.Now().Unix())
		return err
	})
}

// LastStreamsPlayed lists the stream history, most recent first.
func (s *Store) LastStreamsPlayed() ([]*HistoryEntry, error) {
	rows, err := s.Query(`
		SELECT id_record, mrl, insertion_date FROM history
		ORDER BY insertion_date DESC, id_record DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*HistoryEntry
	for rows.Next() {
		e := &HistoryEntry{}
		if err := rows.Scan(&e.ID, &e.Mrl, &e.InsertionDate); err != nil {
			return nil, classifyError(err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// LastMediaPlayed lists catalog media by last play date, most recent
// first.
func (s *Store) LastMediaPlayed() ([]*Media, error) {
	return s.fetchMediaAll(`
		SELECT ` + mediaColumns + ` FROM media
		WHERE last_played_date IS NOT NULL AND is_present = 1
		ORDER BY last_played_date DESC LIMIT 100`)
}

// ClearHistory wipes the stream history and the media play counters.
func (s *Store) ClearHistory() error {
	err := s.Transaction(func(tx *Tx) error {
		if _, err := tx.Exec("DELETE FROM history"); err != nil {
			return err
		}
		_, err := tx.Exec(
			"UPDATE media SET play_count = 0, last_played_date = NULL WHERE play_count > 0")
		return err
	})
	if err != nil {
		return err
	}
	// Play counters of live records are stale now.
	s.cache.ClearKind(KindMedia)
	return nil
}
