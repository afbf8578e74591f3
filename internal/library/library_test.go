package library

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/franz/medialib/internal/fs"
	"github.com/franz/medialib/internal/store"
)

func newTestLibrary(t *testing.T) (*Library, afero.Fs) {
	t.Helper()
	mem := afero.NewMemMapFs()
	mem.MkdirAll("/music/album", 0o755)
	afero.WriteFile(mem, "/music/song.mp3", []byte("not actually mpeg"), 0o644)
	afero.WriteFile(mem, "/music/album/track.flac", []byte("not actually flac"), 0o644)
	afero.WriteFile(mem, "/music/clip.mkv", []byte("not actually matroska"), 0o644)

	dir := t.TempDir()
	lib := New()
	res := lib.Initialize(
		filepath.Join(dir, "catalog.db"),
		filepath.Join(dir, "thumbs"),
		nil,
		&Options{Fs: mem, Mounts: []fs.Mount{{Path: "/"}}},
	)
	if res != InitSuccess {
		t.Fatalf("initialize returned %v", res)
	}
	t.Cleanup(lib.Stop)
	return lib, mem
}

func settle(t *testing.T, lib *Library) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for {
		if lib.IsIdle() {
			// Idle can flap between discoverer handoff and parser
			// pickup; require it to hold.
			time.Sleep(50 * time.Millisecond)
			if lib.IsIdle() {
				if pending, _ := lib.Store().PendingTaskCount(); pending == 0 {
					return
				}
			}
		}
		if time.Now().After(deadline) {
			t.Fatal("library did not become idle")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestInitializeTwice(t *testing.T) {
	lib, _ := newTestLibrary(t)
	if res := lib.Initialize("x", "y", nil, nil); res != InitAlreadyInitialized {
		t.Errorf("second initialize returned %v", res)
	}
}

func TestStartRequiresInitialize(t *testing.T) {
	lib := New()
	if lib.Start() {
		t.Error("start succeeded without initialize")
	}
}

func TestEndToEndDiscovery(t *testing.T) {
	lib, _ := newTestLibrary(t)
	if !lib.Start() {
		t.Fatal("start failed")
	}

	lib.Discover("/music")
	settle(t, lib)

	audio, err := lib.AudioFiles(store.SortDefault, false)
	if err != nil {
		t.Fatalf("failed to list audio: %v", err)
	}
	if len(audio) != 2 {
		t.Errorf("expected 2 audio media, got %d", len(audio))
	}
	video, err := lib.VideoFiles(store.SortDefault, false)
	if err != nil {
		t.Fatalf("failed to list video: %v", err)
	}
	if len(video) != 1 {
		t.Errorf("expected 1 video media, got %d", len(video))
	}

	// Untagged audio lands under the reserved unknown artist, which the
	// listings never expose.
	artists, err := lib.Artists(true, false)
	if err != nil {
		t.Fatalf("failed to list artists: %v", err)
	}
	if len(artists) != 0 {
		t.Errorf("reserved artists leaked into listings: %d", len(artists))
	}

	// The untagged video became a movie.
	m, err := lib.MediaByMrl("/music/clip.mkv")
	if err != nil || m == nil {
		t.Fatalf("video lookup failed: %v", err)
	}
	if m.SubType != store.MediaSubTypeMovie {
		t.Errorf("video subtype = %v, want movie", m.SubType)
	}

	res, err := lib.Search("song")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(res.Media) != 1 {
		t.Errorf("search found %d media, want 1", len(res.Media))
	}
}

func TestSearchShortPattern(t *testing.T) {
	lib, _ := newTestLibrary(t)
	res, err := lib.Search("ab")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(res.Media) != 0 || len(res.Albums) != 0 || len(res.Artists) != 0 ||
		len(res.Genres) != 0 || len(res.Playlists) != 0 {
		t.Error("short pattern produced non-empty aggregates")
	}
}

func TestAddExternalMedia(t *testing.T) {
	lib, _ := newTestLibrary(t)

	m, err := lib.AddMedia("http://example.com/radio.ogg")
	if err != nil || m == nil {
		t.Fatalf("failed to add external media: %v", err)
	}
	if !m.IsExternal {
		t.Error("external media not flagged external")
	}

	again, err := lib.AddMedia("http://example.com/radio.ogg")
	if err != nil {
		t.Fatalf("re-add failed: %v", err)
	}
	if again.ID != m.ID {
		t.Error("re-adding the same MRL created a second media")
	}

	if err := lib.AddToStreamHistory(m); err != nil {
		t.Fatalf("history record failed: %v", err)
	}
	streams, err := lib.LastStreamsPlayed()
	if err != nil || len(streams) != 1 {
		t.Fatalf("expected 1 history entry, got %d (%v)", len(streams), err)
	}
}

func TestDeviceCallbacks(t *testing.T) {
	lib, _ := newTestLibrary(t)

	if lib.IsDeviceKnown("ghost-uuid") {
		t.Error("unknown device reported known")
	}
	if fresh := lib.OnDevicePlugged("ghost-uuid", "/mnt/usb"); !fresh {
		t.Error("first plug should report a new device")
	}
	if !lib.IsDeviceKnown("ghost-uuid") {
		t.Error("plugged device not known")
	}
	if fresh := lib.OnDevicePlugged("ghost-uuid", "/mnt/usb"); fresh {
		t.Error("second plug should not report a new device")
	}
	lib.OnDeviceUnplugged("ghost-uuid")
	d, err := lib.Store().DeviceByUUID("ghost-uuid")
	if err != nil || d == nil {
		t.Fatalf("device lookup failed: %v", err)
	}
	if d.IsPresent {
		t.Error("unplugged device still present")
	}
}

func TestP2PFacade(t *testing.T) {
	lib, _ := newTestLibrary(t)

	parent, err := lib.AddP2PMedia("container", "", "feedbeef", 0, 0)
	if err != nil {
		t.Fatalf("failed to add container: %v", err)
	}
	child, err := lib.AddP2PMedia("part", "magnet:?xt=urn:btih:feedbeef", "feedbeef", 2, parent.ID)
	if err != nil {
		t.Fatalf("failed to add child: %v", err)
	}

	if found, _ := lib.FindMediaByInfohash("feedbeef", 2); found == nil || found.ID != child.ID {
		t.Error("infohash lookup failed")
	}
	children, _ := lib.FindMediaByParent(parent.ID)
	if len(children) != 1 {
		t.Errorf("expected 1 child, got %d", len(children))
	}
}

func TestRemoveOrphanTransportFiles(t *testing.T) {
	lib, _ := newTestLibrary(t)
	if lib.RemoveOrphanTransportFiles() {
		t.Error("RemoveOrphanTransportFiles must report false")
	}
}

func TestForceParserRetry(t *testing.T) {
	lib, _ := newTestLibrary(t)
	if !lib.Start() {
		t.Fatal("start failed")
	}
	lib.Discover("/music")
	settle(t, lib)

	if err := lib.ForceParserRetry(); err != nil {
		t.Fatalf("force retry failed: %v", err)
	}
	settle(t, lib)
}
