package store

import "database/sql"

// ParserStep is a bit in the task completion mask; one bit per pipeline
// service.
type ParserStep uint8

const (
	StepNone       ParserStep = 0
	StepProbe      ParserStep = 1 << 0
	StepMetadata   ParserStep = 1 << 1
	StepThumbnail  ParserStep = 1 << 2
	StepCompleted             = StepProbe | StepMetadata | StepThumbnail
	maxTaskRetries            = 3
)

// Task is the persistent record of pending parse work for one file.
type Task struct {
	ID                  int64
	Step                ParserStep
	RetryCount          int
	Mrl                 string
	FileID              int64
	ParentFolderID      int64
	ParentPlaylistID    int64
	ParentPlaylistIndex int
}

// IsStepCompleted reports whether one service already ran for this task.
func (t *Task) IsStepCompleted(step ParserStep) bool {
	return t.Step&step != 0
}

// IsCompleted reports whether every service ran.
func (t *Task) IsCompleted() bool {
	return t.Step == StepCompleted
}

const taskColumns = `id_task, step, retry_count, ifnull(mrl, ''),
	ifnull(file_id, 0), ifnull(parent_folder_id, 0),
	ifnull(parent_playlist_id, 0), ifnull(parent_playlist_index, 0)`

func scanTask(row interface{ Scan(...interface{}) error }) (*Task, error) {
	t := &Task{}
	err := row.Scan(&t.ID, &t.Step, &t.RetryCount, &t.Mrl, &t.FileID,
		&t.ParentFolderID, &t.ParentPlaylistID, &t.ParentPlaylistIndex)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classifyError(err)
	}
	return t, nil
}

// CreateTask persists pending parse work for a file MRL.
func (s *Store) CreateTask(mrl string, parentFolderID, playlistID int64, playlistIndex int) (*Task, error) {
	t := &Task{
		Mrl:                 mrl,
		ParentFolderID:      parentFolderID,
		ParentPlaylistID:    playlistID,
		ParentPlaylistIndex: playlistIndex,
	}
	err := s.Transaction(func(tx *Tx) error {
		res, err := tx.Exec(`
			INSERT INTO tasks (mrl, parent_folder_id, parent_playlist_id, parent_playlist_index)
			VALUES (?, ?, ?, ?)`,
			mrl, nullableID(parentFolderID), nullableID(playlistID), playlistIndex)
		if err != nil {
			return err
		}
		t.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// AttachTaskFile links the task to the file row created by the probe
// step, so restarts can find it again.
func (s *Store) AttachTaskFile(t *Task, fileID int64) error {
	err := s.Transaction(func(tx *Tx) error {
		_, err := tx.Exec("UPDATE tasks SET file_id = ? WHERE id_task = ?", fileID, t.ID)
		return err
	})
	if err != nil {
		return err
	}
	t.FileID = fileID
	return nil
}

// SaveTaskStep persists a completed step and clears the retry counter.
func (s *Store) SaveTaskStep(t *Task, step ParserStep) error {
	newStep := t.Step | step
	err := s.Transaction(func(tx *Tx) error {
		_, err := tx.Exec(
			"UPDATE tasks SET step = ?, retry_count = 0 WHERE id_task = ?",
			uint8(newStep), t.ID)
		return err
	})
	if err != nil {
		return err
	}
	t.Step = newStep
	t.RetryCount = 0
	return nil
}

// StartTaskStep bumps the retry counter. The parser calls it when a
// service run ends in a transient error, so each failed attempt counts
// against the retry budget.
func (s *Store) StartTaskStep(t *Task) error {
	err := s.Transaction(func(tx *Tx) error {
		_, err := tx.Exec(
			"UPDATE tasks SET retry_count = retry_count + 1 WHERE id_task = ?", t.ID)
		return err
	})
	if err != nil {
		return err
	}
	t.RetryCount++
	return nil
}

// MarkTaskFatal exhausts the task's retry budget so it never reloads.
func (s *Store) MarkTaskFatal(t *Task) error {
	err := s.Transaction(func(tx *Tx) error {
		_, err := tx.Exec(
			"UPDATE tasks SET retry_count = ? WHERE id_task = ?", maxTaskRetries, t.ID)
		return err
	})
	if err != nil {
		return err
	}
	t.RetryCount = maxTaskRetries
	return nil
}

// DeleteTask drops a task row. The parser calls it once every step has
// completed; fatally failed tasks stay on disk with an exhausted retry
// budget.
func (s *Store) DeleteTask(t *Task) error {
	return s.Transaction(func(tx *Tx) error {
		_, err := tx.Exec("DELETE FROM tasks WHERE id_task = ?", t.ID)
		return err
	})
}

// TaskByMrl finds a task by its file MRL, whatever its progress or
// retry state.
func (s *Store) TaskByMrl(mrl string) (*Task, error) {
	return scanTask(s.QueryRow(
		"SELECT "+taskColumns+" FROM tasks WHERE mrl = ?", mrl))
}

// UnparsedTasks lists tasks that still have steps to run and retries
// left, skipping tasks whose file is on absent storage.
func (s *Store) UnparsedTasks() ([]*Task, error) {
	rows, err := s.Query(`
		SELECT t.id_task, t.step, t.retry_count, ifnull(t.mrl, ''),
			ifnull(t.file_id, 0), ifnull(t.parent_folder_id, 0),
			ifnull(t.parent_playlist_id, 0), ifnull(t.parent_playlist_index, 0)
		FROM tasks t
		LEFT JOIN files f ON f.id_file = t.file_id
		WHERE t.step != ? AND t.retry_count < ?
		AND (f.is_present != 0 OR t.file_id IS NULL)
		ORDER BY t.id_task`, uint8(StepCompleted), maxTaskRetries)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ResetTaskRetries gives every unfinished task another chance.
func (s *Store) ResetTaskRetries() error {
	return s.Transaction(func(tx *Tx) error {
		_, err := tx.Exec(
			"UPDATE tasks SET retry_count = 0 WHERE step != ?", uint8(StepCompleted))
		return err
	})
}

// PendingTaskCount counts tasks with work left.
func (s *Store) PendingTaskCount() (int, error) {
	var n int
	err := s.QueryRow(
		"SELECT COUNT(*) FROM tasks WHERE step != ? AND retry_count < ?",
		uint8(StepCompleted), maxTaskRetries).Scan(&n)
	if err != nil {
		return 0, classifyError(err)
	}
	return n, nil
}
