package store

import "testing"

func TestArtistAutoDelete(t *testing.T) {
	s := openTestStore(t)

	x, err := s.CreateArtist("x")
	if err != nil {
		t.Fatalf("failed to create artist: %v", err)
	}
	album, err := s.CreateAlbum("A")
	if err != nil {
		t.Fatalf("failed to create album: %v", err)
	}
	if err := s.SetAlbumArtist(album, x.ID); err != nil {
		t.Fatalf("failed to set album artist: %v", err)
	}

	m, err := s.CreateMedia("the only track", MediaTypeAudio, false)
	if err != nil {
		t.Fatalf("failed to create media: %v", err)
	}
	track, err := s.AddAlbumTrack(m, album.ID, x.ID, 0, 1, 1)
	if err != nil {
		t.Fatalf("failed to add track: %v", err)
	}

	artists, err := s.Artists(true, false)
	if err != nil {
		t.Fatalf("failed to list artists: %v", err)
	}
	if len(artists) != 1 || artists[0].ID != x.ID {
		t.Fatalf("expected [x], got %d artists", len(artists))
	}

	if err := s.DeleteTrack(track); err != nil {
		t.Fatalf("failed to delete track: %v", err)
	}

	artists, err = s.Artists(true, false)
	if err != nil {
		t.Fatalf("failed to list artists: %v", err)
	}
	if len(artists) != 0 {
		t.Errorf("expected no artists after deleting the only track, got %d", len(artists))
	}

	// The album lost its only track and must be gone too.
	if album, err := s.Album(album.ID); err != nil {
		t.Fatalf("album lookup failed: %v", err)
	} else if album != nil {
		t.Error("album with zero tracks survived")
	}
}

func TestWellKnownArtistsSurviveCleanup(t *testing.T) {
	s := openTestStore(t)

	unknown, _ := s.Artist(UnknownArtistID)
	album, _ := s.CreateAlbum("untitled demos")
	s.SetAlbumArtist(album, unknown.ID)
	m, _ := s.CreateMedia("demo", MediaTypeAudio, false)
	track, err := s.AddAlbumTrack(m, album.ID, unknown.ID, 0, 1, 1)
	if err != nil {
		t.Fatalf("failed to add track: %v", err)
	}
	if err := s.DeleteTrack(track); err != nil {
		t.Fatalf("failed to delete track: %v", err)
	}

	if a, err := s.Artist(UnknownArtistID); err != nil || a == nil {
		t.Error("unknown artist was auto-deleted")
	}
}

func TestCreateArtistIsIdempotentByName(t *testing.T) {
	s := openTestStore(t)

	first, err := s.CreateArtist("dup")
	if err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	second, err := s.CreateArtist("dup")
	if err != nil {
		t.Fatalf("second create failed: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("duplicate name produced two artists: %d vs %d", first.ID, second.ID)
	}
}

func TestArtistsListingFiltersAlbumless(t *testing.T) {
	s := openTestStore(t)

	artist, _ := s.CreateArtist("track only")
	album, _ := s.UnknownAlbumForArtist(artist.ID)
	m, _ := s.CreateMedia("loose track", MediaTypeAudio, false)
	if _, err := s.AddAlbumTrack(m, album.ID, artist.ID, 0, 1, 1); err != nil {
		t.Fatalf("failed to add track: %v", err)
	}

	all, err := s.Artists(true, false)
	if err != nil {
		t.Fatalf("listing failed: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("includeAll should list track-only artists, got %d", len(all))
	}

	withAlbums, err := s.Artists(false, false)
	if err != nil {
		t.Fatalf("listing failed: %v", err)
	}
	for _, a := range withAlbums {
		if a.ID == artist.ID && a.NbAlbums == 0 {
			t.Error("album-less artist listed without includeAll")
		}
	}
}
