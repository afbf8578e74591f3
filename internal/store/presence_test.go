package store

import "testing"

// buildRemovableTrack sets up device -> folder -> media/file -> track ->
// album -> artist so presence changes can be observed end to end.
func buildRemovableTrack(t *testing.T, s *Store) (*Device, *Media, *Album) {
	t.Helper()

	device, err := s.CreateDevice("removable-uuid", true)
	if err != nil {
		t.Fatalf("failed to create device: %v", err)
	}
	folder, err := s.CreateFolder("music", 0, device.ID, true)
	if err != nil {
		t.Fatalf("failed to create folder: %v", err)
	}

	artist, _ := s.CreateArtist("portable artist")
	album, _ := s.CreateAlbum("portable album")
	s.SetAlbumArtist(album, artist.ID)

	m, err := s.CreateMedia("song", MediaTypeAudio, false)
	if err != nil {
		t.Fatalf("failed to create media: %v", err)
	}
	if _, err := s.AddFile(m.ID, "file:///dev/removable/song.mp3", FileTypeMain,
		folder.ID, 1000, 1, true); err != nil {
		t.Fatalf("failed to add file: %v", err)
	}
	if _, err := s.AddAlbumTrack(m, album.ID, artist.ID, 0, 1, 1); err != nil {
		t.Fatalf("failed to add track: %v", err)
	}
	return device, m, album
}

func TestDeviceUnplugCascade(t *testing.T) {
	s := openTestStore(t)
	device, m, album := buildRemovableTrack(t, s)

	if err := s.SetDevicePresent(device, false); err != nil {
		t.Fatalf("failed to unplug device: %v", err)
	}

	reloaded, err := s.Media(m.ID)
	if err != nil || reloaded == nil {
		t.Fatalf("failed to reload media: %v", err)
	}
	if reloaded.IsPresent {
		t.Error("media still present after device unplug")
	}

	albums, err := s.Albums(SortDefault, true)
	if err != nil {
		t.Fatalf("failed to list albums: %v", err)
	}
	for _, a := range albums {
		if a.ID == album.ID {
			t.Error("absent album still listed")
		}
	}

	var artistPresent bool
	s.QueryRow("SELECT is_present FROM artists WHERE name = 'portable artist'").
		Scan(&artistPresent)
	if artistPresent {
		t.Error("artist still present after device unplug")
	}
}

func TestDeviceReplugRestoresPresence(t *testing.T) {
	s := openTestStore(t)
	device, _, album := buildRemovableTrack(t, s)

	s.SetDevicePresent(device, false)
	s.SetDevicePresent(device, true)

	albums, err := s.Albums(SortDefault, false)
	if err != nil {
		t.Fatalf("failed to list albums: %v", err)
	}
	found := false
	for _, a := range albums {
		if a.ID == album.ID {
			found = true
		}
	}
	if !found {
		t.Error("album did not reappear after replug")
	}

	var albumPresent int
	s.QueryRow("SELECT is_present FROM albums WHERE id_album = ?", album.ID).Scan(&albumPresent)
	if albumPresent != 1 {
		t.Error("album presence flag not restored")
	}
}

func TestAlbumPresenceMatchesTracks(t *testing.T) {
	s := openTestStore(t)
	device, _, album := buildRemovableTrack(t, s)

	// Invariant: Album.is_present == EXISTS(track with is_present=1).
	check := func() {
		var albumPresent, trackExists int
		s.QueryRow("SELECT is_present FROM albums WHERE id_album = ?", album.ID).Scan(&albumPresent)
		s.QueryRow("SELECT EXISTS(SELECT 1 FROM album_tracks WHERE album_id = ? AND is_present = 1)",
			album.ID).Scan(&trackExists)
		if albumPresent != trackExists {
			t.Errorf("album presence %d != track existence %d", albumPresent, trackExists)
		}
	}
	check()
	s.SetDevicePresent(device, false)
	check()
	s.SetDevicePresent(device, true)
	check()
}
