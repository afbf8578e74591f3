package store

import (
	"path/filepath"
	"testing"
)

func TestFreshDatabaseStartsAtCurrentModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open: %v", err)
	}
	defer s.Close()

	s, res, err := Migrate(s)
	if err != nil || res != MigrationOK {
		t.Fatalf("fresh migration failed: %v (%v)", err, res)
	}
	version, _, err := s.storedModelVersion()
	if err != nil {
		t.Fatalf("failed to read version: %v", err)
	}
	if version != modelVersion {
		t.Errorf("fresh database at model %d, want %d", version, modelVersion)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idem.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open: %v", err)
	}
	s, res, err := Migrate(s)
	if err != nil || res != MigrationOK {
		t.Fatalf("first migration failed: %v", err)
	}
	if _, err := s.CreateMedia("survivor", MediaTypeAudio, false); err != nil {
		t.Fatalf("failed to create media: %v", err)
	}

	s, res, err = Migrate(s)
	if err != nil || res != MigrationOK {
		t.Fatalf("second migration failed: %v (%v)", err, res)
	}
	defer s.Close()

	media, err := s.fetchMediaAll("SELECT " + mediaColumns + " FROM media")
	if err != nil || len(media) != 1 {
		t.Errorf("content lost by re-migration: %d media (%v)", len(media), err)
	}
}

func TestUnsupportedModelGetsRecreated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "future.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open: %v", err)
	}
	s, _, err = Migrate(s)
	if err != nil {
		t.Fatalf("setup migration failed: %v", err)
	}
	s.CreateMedia("doomed", MediaTypeAudio, false)

	// Pretend a newer release wrote this database.
	if _, err := s.Exec("UPDATE settings SET db_model_version = ?", modelVersion+1); err != nil {
		t.Fatalf("failed to bump version: %v", err)
	}

	s, res, err := Migrate(s)
	if err != nil {
		t.Fatalf("recreation failed: %v", err)
	}
	defer s.Close()
	if res != MigrationDbReset {
		t.Fatalf("expected MigrationDbReset, got %v", res)
	}
	media, _ := s.fetchMediaAll("SELECT " + mediaColumns + " FROM media")
	if len(media) != 0 {
		t.Error("content survived a database reset")
	}
	version, _, _ := s.storedModelVersion()
	if version != modelVersion {
		t.Errorf("recreated database at model %d, want %d", version, modelVersion)
	}
}

func TestAbortedModelFourGetsRecreated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "four.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open: %v", err)
	}
	s, _, err = Migrate(s)
	if err != nil {
		t.Fatalf("setup migration failed: %v", err)
	}
	s.Exec("UPDATE settings SET db_model_version = 4")

	s, res, err := Migrate(s)
	if err != nil {
		t.Fatalf("recreation failed: %v", err)
	}
	defer s.Close()
	if res != MigrationDbReset {
		t.Errorf("model 4 must trigger a reset, got %v", res)
	}
}

func TestForceRescanKeepsFilesDropsMetadata(t *testing.T) {
	s := openTestStore(t)

	artist, _ := s.CreateArtist("to forget")
	album, _ := s.CreateAlbum("to forget too")
	s.SetAlbumArtist(album, artist.ID)
	m, _ := s.CreateMedia("kept media", MediaTypeAudio, false)
	addMainFile(t, s, m, "file:///music/kept.mp3", 0)
	s.AddAlbumTrack(m, album.ID, artist.ID, 0, 1, 1)
	task, _ := s.CreateTask("file:///music/kept.mp3", 0, 0, 0)
	s.SaveTaskStep(task, StepCompleted)

	if err := s.ForceRescan(); err != nil {
		t.Fatalf("force rescan failed: %v", err)
	}

	if albums, _ := s.Albums(SortDefault, false); len(albums) != 0 {
		t.Error("albums survived force rescan")
	}
	if artists, _ := s.Artists(true, false); len(artists) != 0 {
		t.Error("artists survived force rescan")
	}
	if reloaded, _ := s.Media(m.ID); reloaded == nil {
		t.Error("media wiped by force rescan")
	} else if reloaded.SubType != MediaSubTypeUnknown {
		t.Error("media subtype not reset")
	}
	tasks, _ := s.UnparsedTasks()
	if len(tasks) != 1 {
		t.Errorf("tasks not rescheduled: %d", len(tasks))
	}
}
