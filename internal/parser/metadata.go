package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dhowden/tag"
	"github.com/sirupsen/logrus"

	"github.com/franz/medialib/internal/store"
	"github.com/franz/medialib/internal/util"
)

// episodePattern matches "Show Name S01E04" style video filenames.
var episodePattern = regexp.MustCompile(`(?i)^(.*?)[\s._-]*S(\d{1,2})[\s._-]*E(\d{1,3})`)

// MetadataService reads embedded tags and links media into albums,
// artists, genres, movies and show episodes.
type MetadataService struct {
	store *store.Store
	log   *logrus.Entry
}

// NewMetadataService creates the metadata stage.
func NewMetadataService(s *store.Store) *MetadataService {
	return &MetadataService{
		store: s,
		log:   util.ComponentLogger("parser.metadata"),
	}
}

func (m *MetadataService) Name() string { return "metadata" }

func (m *MetadataService) Step() store.ParserStep { return store.StepMetadata }

func (m *MetadataService) NbThreads() int { return 1 }

func (m *MetadataService) Initialize() error { return nil }

// Run enriches a probed media with tag metadata.
func (m *MetadataService) Run(t *Task) Status {
	if t.Media == nil || t.FileFs == nil {
		return StatusFatal
	}
	switch t.Media.Type {
	case store.MediaTypeAudio:
		return m.runAudio(t)
	case store.MediaTypeVideo:
		return m.runVideo(t)
	default:
		return StatusSuccess
	}
}

func (m *MetadataService) runAudio(t *Task) Status {
	r, err := t.FileFs.Open()
	if err != nil {
		return StatusError
	}
	defer r.Close()

	meta, err := tag.ReadFrom(r)
	if err != nil {
		// No usable tags: the media keeps its filename title and lands
		// on the unknown artist's unknown album.
		m.log.WithField("mrl", t.Record.Mrl).Debug("no tags, filing under unknown artist")
		return m.linkTrack(t, trackInfo{})
	}

	info := trackInfo{
		title:       strings.TrimSpace(meta.Title()),
		artist:      strings.TrimSpace(meta.Artist()),
		albumArtist: strings.TrimSpace(meta.AlbumArtist()),
		album:       strings.TrimSpace(meta.Album()),
		genre:       strings.TrimSpace(meta.Genre()),
		year:        meta.Year(),
	}
	info.trackNumber, _ = meta.Track()
	info.discNumber, _ = meta.Disc()
	return m.linkTrack(t, info)
}

type trackInfo struct {
	title       string
	artist      string
	albumArtist string
	album       string
	genre       string
	year        int
	trackNumber int
	discNumber  int
}

func (m *MetadataService) linkTrack(t *Task, info trackInfo) Status {
	if info.title != "" && info.title != t.Media.Title {
		if err := m.store.SetMediaTitle(t.Media, info.title); err != nil {
			return StatusError
		}
	}

	artist, err := m.resolveArtist(info.artist)
	if err != nil {
		return StatusError
	}

	albumArtist := artist
	if info.albumArtist != "" && !strings.EqualFold(info.albumArtist, info.artist) {
		if albumArtist, err = m.resolveArtist(info.albumArtist); err != nil {
			return StatusError
		}
	}

	var genreID int64
	if info.genre != "" {
		genre, err := m.store.CreateGenre(info.genre)
		if err != nil {
			return StatusError
		}
		genreID = genre.ID
	}

	album, err := m.resolveAlbum(info.album, albumArtist)
	if err != nil {
		return StatusError
	}

	if existing, err := m.store.TrackForMedia(t.Media.ID); err != nil {
		return StatusError
	} else if existing == nil {
		if _, err := m.store.AddAlbumTrack(t.Media, album.ID, artist.ID, genreID,
			info.trackNumber, max(info.discNumber, 1)); err != nil {
			return StatusError
		}
	}

	if info.year != 0 && album.Title != "" {
		if err := m.store.SetReleaseYear(album, info.year, false); err != nil {
			return StatusError
		}
	}

	if album.ArtistID == 0 && album.Title != "" {
		if err := m.store.SetAlbumArtist(album, albumArtist.ID); err != nil {
			return StatusError
		}
	} else if album.ArtistID != 0 && album.ArtistID != albumArtist.ID && album.Title != "" {
		// Different album artists claimed the same album: it belongs to
		// the various-artists aggregate.
		if album.ArtistID != store.VariousArtistID {
			various, err := m.store.Artist(store.VariousArtistID)
			if err != nil || various == nil {
				return StatusError
			}
			if err := m.store.SetAlbumArtist(album, various.ID); err != nil {
				return StatusError
			}
		}
	}
	return StatusSuccess
}

func (m *MetadataService) resolveArtist(name string) (*store.Artist, error) {
	if name == "" {
		return m.store.Artist(store.UnknownArtistID)
	}
	return m.store.CreateArtist(name)
}

// resolveAlbum finds the named album or the artist's unknown-album
// container when the track carries no album tag.
func (m *MetadataService) resolveAlbum(title string, albumArtist *store.Artist) (*store.Album, error) {
	if title == "" {
		return m.store.UnknownAlbumForArtist(albumArtist.ID)
	}
	album, err := m.store.AlbumByTitle(title)
	if err != nil {
		return nil, err
	}
	if album != nil {
		return album, nil
	}
	return m.store.CreateAlbum(title)
}

func (m *MetadataService) runVideo(t *Task) Status {
	name := t.FileFs.Name()
	if idx := strings.LastIndex(name, "."); idx > 0 {
		name = name[:idx]
	}

	if match := episodePattern.FindStringSubmatch(name); match != nil {
		showTitle := cleanVideoTitle(match[1])
		if showTitle == "" {
			showTitle = name
		}
		show, err := m.store.ShowByTitle(showTitle)
		if err != nil {
			return StatusError
		}
		if show == nil {
			if show, err = m.store.CreateShow(showTitle); err != nil {
				return StatusError
			}
		}
		season, _ := strconv.Atoi(match[2])
		episode, _ := strconv.Atoi(match[3])
		if existing, err := m.store.EpisodeForMedia(t.Media.ID); err != nil {
			return StatusError
		} else if existing == nil {
			if _, err := m.store.AddEpisode(t.Media, show.ID, season, episode); err != nil {
				return StatusError
			}
		}
		return StatusSuccess
	}

	if existing, err := m.store.MovieForMedia(t.Media.ID); err != nil {
		return StatusError
	} else if existing == nil {
		if _, err := m.store.CreateMovie(t.Media, cleanVideoTitle(name)); err != nil {
			return StatusError
		}
	}
	return StatusSuccess
}

func cleanVideoTitle(s string) string {
	s = strings.NewReplacer(".", " ", "_", " ").Replace(s)
	return strings.TrimSpace(s)
}
