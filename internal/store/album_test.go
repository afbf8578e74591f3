package store

import "testing"

func TestReleaseYearConflict(t *testing.T) {
	s := openTestStore(t)

	a, err := s.CreateAlbum("a")
	if err != nil {
		t.Fatalf("failed to create album: %v", err)
	}

	steps := []struct {
		year  int
		force bool
		want  int
	}{
		{1234, false, 1234},
		{4321, false, 0},
		{666, false, 0},
		{9876, true, 9876},
	}
	for _, step := range steps {
		if err := s.SetReleaseYear(a, step.year, step.force); err != nil {
			t.Fatalf("SetReleaseYear(%d, %v) failed: %v", step.year, step.force, err)
		}
		if a.ReleaseYear != step.want {
			t.Errorf("after SetReleaseYear(%d, %v): got %d, want %d",
				step.year, step.force, a.ReleaseYear, step.want)
		}
	}

	// Idempotence of a forced set.
	if err := s.SetReleaseYear(a, 9876, true); err != nil {
		t.Fatalf("forced re-set failed: %v", err)
	}
	if a.ReleaseYear != 9876 {
		t.Errorf("forced set is not idempotent: got %d", a.ReleaseYear)
	}
}

func TestReleaseYearLatchSurvivesReload(t *testing.T) {
	s := openTestStore(t)

	a, err := s.CreateAlbum("latched")
	if err != nil {
		t.Fatalf("failed to create album: %v", err)
	}
	s.SetReleaseYear(a, 2000, false)
	s.SetReleaseYear(a, 2001, false) // conflict: latches at 0

	s.cache.Clear()
	reloaded, err := s.Album(a.ID)
	if err != nil || reloaded == nil {
		t.Fatalf("failed to reload album: %v", err)
	}
	if err := s.SetReleaseYear(reloaded, 2002, false); err != nil {
		t.Fatalf("SetReleaseYear failed: %v", err)
	}
	if reloaded.ReleaseYear != 0 {
		t.Errorf("latch lost across reload: got %d, want 0", reloaded.ReleaseYear)
	}
}

func TestUnknownAlbumIsolation(t *testing.T) {
	s := openTestStore(t)

	artist, err := s.CreateArtist("Aphex Twin")
	if err != nil {
		t.Fatalf("failed to create artist: %v", err)
	}

	first, err := s.UnknownAlbumForArtist(artist.ID)
	if err != nil || first == nil {
		t.Fatalf("failed to create unknown album: %v", err)
	}
	second, err := s.UnknownAlbumForArtist(artist.ID)
	if err != nil || second == nil {
		t.Fatalf("failed to fetch unknown album: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("unknown album is not stable: %d vs %d", first.ID, second.ID)
	}

	// The unknown album never shows up in listings or search.
	albums, err := s.Albums(SortDefault, false)
	if err != nil {
		t.Fatalf("failed to list albums: %v", err)
	}
	for _, a := range albums {
		if a.ID == first.ID {
			t.Error("unknown album listed")
		}
	}
	found, err := s.SearchAlbums("Aphex Twin")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	for _, a := range found {
		if a.ID == first.ID {
			t.Error("unknown album surfaced in search")
		}
	}
}

func TestAlbumTrackCounters(t *testing.T) {
	s := openTestStore(t)

	artist, _ := s.CreateArtist("counter artist")
	album, _ := s.CreateAlbum("counter album")
	if err := s.SetAlbumArtist(album, artist.ID); err != nil {
		t.Fatalf("failed to set album artist: %v", err)
	}

	for i := 1; i <= 3; i++ {
		m, err := s.CreateMedia("track", MediaTypeAudio, false)
		if err != nil {
			t.Fatalf("failed to create media: %v", err)
		}
		if _, err := s.AddAlbumTrack(m, album.ID, artist.ID, 0, i, 1); err != nil {
			t.Fatalf("failed to add track: %v", err)
		}
	}

	var nbTracks int
	if err := s.QueryRow(
		"SELECT nb_tracks FROM albums WHERE id_album = ?", album.ID).Scan(&nbTracks); err != nil {
		t.Fatalf("failed to read counter: %v", err)
	}
	if nbTracks != 3 {
		t.Errorf("album nb_tracks = %d, want 3", nbTracks)
	}
	var count int
	if err := s.QueryRow(
		"SELECT COUNT(*) FROM album_tracks WHERE album_id = ?", album.ID).Scan(&count); err != nil {
		t.Fatalf("failed to count tracks: %v", err)
	}
	if nbTracks != count {
		t.Errorf("nb_tracks (%d) out of sync with row count (%d)", nbTracks, count)
	}
	if album.NbTracks != 3 {
		t.Errorf("live record nb_tracks = %d, want 3", album.NbTracks)
	}

	var artistTracks, artistAlbums int
	s.QueryRow("SELECT nb_tracks, nb_albums FROM artists WHERE id_artist = ?", artist.ID).
		Scan(&artistTracks, &artistAlbums)
	if artistTracks != 3 || artistAlbums != 1 {
		t.Errorf("artist counters = (%d tracks, %d albums), want (3, 1)", artistTracks, artistAlbums)
	}
}

func TestMultiDiscAlbumOrdering(t *testing.T) {
	s := openTestStore(t)

	artist, _ := s.CreateArtist("disc artist")
	album, _ := s.CreateAlbum("box set")
	s.SetAlbumArtist(album, artist.ID)

	// Interleave insertion across three discs of two tracks each.
	type pos struct{ disc, track int }
	insertion := []pos{{3, 2}, {1, 1}, {2, 2}, {1, 2}, {3, 1}, {2, 1}}
	titles := map[pos]string{}
	for _, p := range insertion {
		title := []byte{'d', byte('0' + p.disc), 't', byte('0' + p.track)}
		m, err := s.CreateMedia(string(title), MediaTypeAudio, false)
		if err != nil {
			t.Fatalf("failed to create media: %v", err)
		}
		if _, err := s.AddAlbumTrack(m, album.ID, artist.ID, 0, p.track, p.disc); err != nil {
			t.Fatalf("failed to add track: %v", err)
		}
		titles[p] = string(title)
	}

	media, err := s.ArtistMedia(artist.ID, SortAlbum, false)
	if err != nil {
		t.Fatalf("failed to list artist media: %v", err)
	}
	want := []string{"d1t1", "d1t2", "d2t1", "d2t2", "d3t1", "d3t2"}
	if len(media) != len(want) {
		t.Fatalf("got %d media, want %d", len(media), len(want))
	}
	for i, m := range media {
		if m.Title != want[i] {
			t.Errorf("position %d: got %q, want %q", i, m.Title, want[i])
		}
	}
}
