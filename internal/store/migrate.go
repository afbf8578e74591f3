package store

import (
	"database/sql"
	"os"

	"github.com/franz/medialib/internal/util"
)

// modelVersion is the current on-disk model. Databases older than
// earliestModel (or the aborted model 4 layout) are recreated instead of
// migrated.
const (
	modelVersion  = 13
	earliestModel = 3
)

// MigrationResult describes the outcome of bringing the database up to
// the current model.
type MigrationResult int

const (
	// MigrationOK: the database was already current or was upgraded.
	MigrationOK MigrationResult = iota
	// MigrationDbReset: the database was dropped and recreated; all
	// catalog content is gone and a full rediscovery is required.
	MigrationDbReset
	// MigrationFailed: the database could not be upgraded nor recreated.
	MigrationFailed
)

// migration scripts recorded from past releases. Model 4 never shipped
// in a migratable form and is handled by recreation.
const migration3to5 = `
ALTER TABLE album_tracks ADD COLUMN disc_number INTEGER;
ALTER TABLE albums ADD COLUMN duration INTEGER NOT NULL DEFAULT 0;
UPDATE album_tracks SET disc_number = 1 WHERE disc_number IS NULL;
`

const migration7to8 = `
ALTER TABLE artists ADD COLUMN is_present BOOLEAN NOT NULL DEFAULT 1;
ALTER TABLE albums ADD COLUMN is_present BOOLEAN NOT NULL DEFAULT 1;
UPDATE albums SET is_present = (
  SELECT EXISTS(SELECT 1 FROM album_tracks
    WHERE album_id = albums.id_album AND is_present = 1));
`

// Migrate brings the database at the store's path up to modelVersion.
// On unrecoverable layouts or repeated failure the file is dropped and
// recreated; the (possibly new) store handle is returned along with the
// outcome.
func Migrate(s *Store) (*Store, MigrationResult, error) {
	log := util.ComponentLogger("migration")

	stored, fresh, err := s.storedModelVersion()
	if err != nil {
		log.WithError(err).Error("failed to read model version, recreating database")
		return recreate(s)
	}

	if fresh {
		err := s.Transaction(func(tx *Tx) error {
			if err := createSchema(tx); err != nil {
				return err
			}
			_, err := tx.Exec("INSERT INTO settings (db_model_version) VALUES (?)", modelVersion)
			return err
		})
		if err != nil {
			return s, MigrationFailed, err
		}
		return s, MigrationOK, nil
	}

	if stored == modelVersion {
		return s, MigrationOK, nil
	}

	if stored > modelVersion || stored < earliestModel || stored == 4 {
		log.WithField("stored", stored).Warn("unsupported model version, recreating database")
		return recreate(s)
	}

	for attempt := 0; attempt < 3; attempt++ {
		if err = s.upgradeModel(stored); err == nil {
			return s, MigrationOK, nil
		}
		log.WithError(err).WithField("attempt", attempt+1).Error("model upgrade failed")
	}

	log.Warn("giving up on migration, recreating database")
	return recreate(s)
}

// recreate drops the database file (and its WAL sidecars) and builds a
// fresh model. Three attempts before reporting failure.
func recreate(s *Store) (*Store, MigrationResult, error) {
	path := s.path
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		s.Close()
		os.Remove(path)
		os.Remove(path + "-wal")
		os.Remove(path + "-shm")

		s, err = Open(path)
		if err != nil {
			continue
		}
		err = s.Transaction(func(tx *Tx) error {
			if err := createSchema(tx); err != nil {
				return err
			}
			_, err := tx.Exec("INSERT INTO settings (db_model_version) VALUES (?)", modelVersion)
			return err
		})
		if err == nil {
			return s, MigrationDbReset, nil
		}
	}
	return s, MigrationFailed, err
}

// storedModelVersion reads Settings.db_model_version. fresh is true when
// the settings table does not exist yet.
func (s *Store) storedModelVersion() (version int, fresh bool, err error) {
	var exists int
	err = s.writer.QueryRow(`
		SELECT COUNT(*) FROM sqlite_master
		WHERE type = 'table' AND name = 'settings'
	`).Scan(&exists)
	if err != nil {
		return 0, false, classifyError(err)
	}
	if exists == 0 {
		return 0, true, nil
	}

	err = s.writer.QueryRow("SELECT db_model_version FROM settings").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, true, nil
	}
	if err != nil {
		return 0, false, classifyError(err)
	}
	return version, false, nil
}

// upgradeModel walks the migration ladder from the stored version to the
// current one. Each step runs with foreign keys and recursive triggers
// disabled, and records the reached version before the next step.
func (s *Store) upgradeModel(from int) error {
	log := util.ComponentLogger("migration")

	for v := from; v < modelVersion; {
		next := v + 1
		step := func(tx *Tx) error { return nil }

		switch v {
		case 3:
			next = 5
			step = func(tx *Tx) error {
				if _, err := tx.Exec(migration3to5); err != nil {
					return err
				}
				if err := dropPresenceTriggers(tx); err != nil {
					return err
				}
				_, err := tx.Exec(presenceTriggers)
				return err
			}
		case 5:
			step = s.migrate5to6
		case 6:
			step = func(tx *Tx) error { return s.forceRescanLocked(tx) }
		case 7:
			step = func(tx *Tx) error {
				if _, err := tx.Exec(migration7to8); err != nil {
					return err
				}
				if err := dropPresenceTriggers(tx); err != nil {
					return err
				}
				_, err := tx.Exec(presenceTriggers)
				return err
			}
		case 8:
			step = func(tx *Tx) error {
				if err := s.forceRescanLocked(tx); err != nil {
					return err
				}
				return s.reencodeMrls(tx)
			}
		case 9, 10:
			step = s.reencodeMrls
		case 11:
			step = s.recoverStalledTasks
		case 12:
			step = s.migrate12to13
		}

		log.WithField("from", v).WithField("to", next).Info("upgrading database model")

		err := s.WeakContext(func(tx *Tx) error {
			if err := step(tx); err != nil {
				return err
			}
			_, err := tx.Exec("UPDATE settings SET db_model_version = ?", next)
			return err
		})
		if err != nil {
			return err
		}
		v = next
	}
	return nil
}

// migrate5to6 purges media that were never classified and normalizes the
// presence flag of the survivors.
func (s *Store) migrate5to6(tx *Tx) error {
	if _, err := tx.Exec("DELETE FROM media WHERE type = ?", int(MediaTypeUnknown)); err != nil {
		return err
	}
	_, err := tx.Exec(`
		UPDATE media SET is_present = (
			SELECT EXISTS(SELECT 1 FROM files
				WHERE media_id = media.id_media AND type = ? AND is_present = 1))
		WHERE is_external = 0`, int(FileTypeMain))
	return err
}

// reencodeMrls repairs the percent-encoding of every stored MRL; older
// releases wrote raw '#' and partially-encoded paths.
func (s *Store) reencodeMrls(tx *Tx) error {
	for _, t := range []struct{ table, pk string }{
		{TableFile, "id_file"},
		{TableFolder, "id_folder"},
		{TableTask, "id_task"},
	} {
		rows, err := tx.Query("SELECT " + t.pk + ", mrl FROM " + t.table + " WHERE mrl IS NOT NULL")
		if err != nil {
			return err
		}
		type row struct {
			id  int64
			mrl string
		}
		var updates []row
		for rows.Next() {
			var r row
			if err := rows.Scan(&r.id, &r.mrl); err != nil {
				rows.Close()
				return err
			}
			if reencoded := util.ReencodeMrl(r.mrl); reencoded != r.mrl {
				updates = append(updates, row{r.id, reencoded})
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		for _, u := range updates {
			if _, err := tx.Exec("UPDATE "+t.table+" SET mrl = ? WHERE "+t.pk+" = ?", u.mrl, u.id); err != nil {
				return err
			}
		}
	}
	return nil
}

// recoverStalledTasks resurrects tasks that were enqueued but never ran:
// their retry counter was bumped at dequeue time and nothing ever
// completed a step.
func (s *Store) recoverStalledTasks(tx *Tx) error {
	_, err := tx.Exec("UPDATE tasks SET retry_count = 0 WHERE step = 0 AND retry_count > 0")
	return err
}

// migrate12to13 rebuilds the presence triggers and replays the track
// presence values so the corrected cascade reaches albums and artists.
func (s *Store) migrate12to13(tx *Tx) error {
	if err := dropPresenceTriggers(tx); err != nil {
		return err
	}
	if _, err := tx.Exec(presenceTriggers); err != nil {
		return err
	}
	_, err := tx.Exec(`
		UPDATE album_tracks SET is_present = (
			SELECT is_present FROM media WHERE id_media = album_tracks.media_id)`)
	return err
}

// forceRescanLocked wipes all derived metadata and resets every parse
// task, keeping the raw file catalog. Runs inside an ambient transaction.
func (s *Store) forceRescanLocked(tx *Tx) error {
	stmts := []string{
		"DELETE FROM album_tracks",
		"DELETE FROM albums",
		"DELETE FROM genres",
		"DELETE FROM movies",
		"DELETE FROM show_episodes",
		"DELETE FROM shows",
		"DELETE FROM artists WHERE id_artist NOT IN (1, 2)",
		"UPDATE artists SET nb_albums = 0, nb_tracks = 0",
		"UPDATE tasks SET step = 0, retry_count = 0",
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	_, err := tx.Exec("UPDATE media SET subtype = ?, thumbnail = NULL",
		int(MediaSubTypeUnknown))
	return err
}

// ForceRescan clears derived metadata so the parser can rebuild it from
// the files still on record. The entity cache is emptied as well.
func (s *Store) ForceRescan() error {
	err := s.Transaction(func(tx *Tx) error {
		return s.forceRescanLocked(tx)
	})
	if err != nil {
		return err
	}
	s.cache.Clear()
	return nil
}
