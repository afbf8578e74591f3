package store

import (
	"path/filepath"
	"testing"
)

// openTestStore opens a fresh, migrated store in a temp dir.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	s, res, err := Migrate(s)
	if err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}
	if res != MigrationOK {
		t.Fatalf("expected MigrationOK on a fresh database, got %v", res)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreOpenAndMigrate(t *testing.T) {
	s := openTestStore(t)

	version, fresh, err := s.storedModelVersion()
	if err != nil {
		t.Fatalf("failed to read model version: %v", err)
	}
	if fresh {
		t.Fatal("expected settings row after migration")
	}
	if version != modelVersion {
		t.Errorf("expected model version %d, got %d", modelVersion, version)
	}

	tables := []string{
		"devices", "folders", "files", "media", "albums", "album_tracks",
		"artists", "genres", "labels", "label_media", "playlists",
		"playlist_media", "shows", "show_episodes", "movies", "history",
		"tasks", "settings",
	}
	for _, table := range tables {
		var count int
		err := s.writer.QueryRow(
			"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		if err != nil {
			t.Fatalf("failed to query table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("expected table %s to exist", table)
		}
	}

	triggers := []string{
		"device_presence", "folder_presence", "file_presence",
		"media_presence", "track_presence", "album_presence",
		"add_album_track", "delete_album_track", "limit_history",
	}
	for _, trigger := range triggers {
		var count int
		err := s.writer.QueryRow(
			"SELECT COUNT(*) FROM sqlite_master WHERE type='trigger' AND name=?", trigger).Scan(&count)
		if err != nil {
			t.Fatalf("failed to query trigger %s: %v", trigger, err)
		}
		if count != 1 {
			t.Errorf("expected trigger %s to exist", trigger)
		}
	}
}

func TestWellKnownArtists(t *testing.T) {
	s := openTestStore(t)

	unknown, err := s.Artist(UnknownArtistID)
	if err != nil || unknown == nil {
		t.Fatalf("expected the unknown artist row: %v", err)
	}
	if unknown.Name != "Unknown Artist" {
		t.Errorf("unexpected name %q", unknown.Name)
	}
	various, err := s.Artist(VariousArtistID)
	if err != nil || various == nil {
		t.Fatalf("expected the various artists row: %v", err)
	}
	if various.Name != "Various Artists" {
		t.Errorf("unexpected name %q", various.Name)
	}
}

func TestTransactionRollback(t *testing.T) {
	s := openTestStore(t)

	fail := func(tx *Tx) error {
		if _, err := tx.Exec("INSERT INTO genres (name) VALUES ('rock')"); err != nil {
			return err
		}
		return &Error{Kind: ErrGeneric}
	}
	if err := s.Transaction(fail); err == nil {
		t.Fatal("expected transaction error")
	}

	g, err := s.GenreByName("rock")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if g != nil {
		t.Error("rolled-back insert is still visible")
	}
}

func TestWithRetriesPassesNonBusyThrough(t *testing.T) {
	s := openTestStore(t)

	calls := 0
	err := s.WithRetries(5, func() error {
		calls++
		return &Error{Kind: ErrGeneric}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("non-busy errors must not be retried, got %d calls", calls)
	}

	calls = 0
	err = s.WithRetries(3, func() error {
		calls++
		return &Error{Kind: ErrBusy}
	})
	if !IsKind(err, ErrBusy) {
		t.Fatalf("expected busy error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestConstraintClassification(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.CreateDevice("uuid-1", false); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	err := s.Transaction(func(tx *Tx) error {
		_, err := tx.Exec("INSERT INTO devices (uuid) VALUES ('uuid-1')")
		return err
	})
	if !IsKind(err, ErrConstraint) {
		t.Errorf("expected a constraint error, got %v", err)
	}
}
