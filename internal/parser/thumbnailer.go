package parser

import (
	"fmt"
	"path/filepath"

	"github.com/dhowden/tag"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/franz/medialib/internal/store"
	"github.com/franz/medialib/internal/util"
)

// Decoder renders a video frame to an image file. It is provided by the
// embedder; without one, video thumbnails are skipped.
type Decoder interface {
	GenerateThumbnail(mrl, destPath string) error
}

// ThumbnailerService is the last pipeline stage: it extracts embedded
// artwork from audio files and delegates video snapshots to the
// decoder collaborator.
type ThumbnailerService struct {
	store    *store.Store
	fs       afero.Fs
	thumbDir string
	decoder  Decoder
	log      *logrus.Entry
}

// NewThumbnailerService creates the thumbnailer stage. decoder may be
// nil.
func NewThumbnailerService(s *store.Store, bfs afero.Fs, thumbDir string, decoder Decoder) *ThumbnailerService {
	return &ThumbnailerService{
		store:    s,
		fs:       bfs,
		thumbDir: thumbDir,
		decoder:  decoder,
		log:      util.ComponentLogger("parser.thumbnailer"),
	}
}

func (th *ThumbnailerService) Name() string { return "thumbnailer" }

func (th *ThumbnailerService) Step() store.ParserStep { return store.StepThumbnail }

func (th *ThumbnailerService) NbThreads() int { return 1 }

// Initialize makes sure the thumbnail directory exists.
func (th *ThumbnailerService) Initialize() error {
	return th.fs.MkdirAll(th.thumbDir, 0o755)
}

// Run produces a preview image for the task's media.
func (th *ThumbnailerService) Run(t *Task) Status {
	if t.Media == nil {
		return StatusFatal
	}
	switch t.Media.Type {
	case store.MediaTypeAudio:
		return th.runAudio(t)
	case store.MediaTypeVideo:
		return th.runVideo(t)
	default:
		return StatusSuccess
	}
}

// runAudio pulls embedded artwork out of the file's tags. Audio files
// without artwork simply have no thumbnail.
func (th *ThumbnailerService) runAudio(t *Task) Status {
	r, err := t.FileFs.Open()
	if err != nil {
		return StatusError
	}
	defer r.Close()

	meta, err := tag.ReadFrom(r)
	if err != nil {
		return StatusSuccess
	}
	pic := meta.Picture()
	if pic == nil || len(pic.Data) == 0 {
		return StatusSuccess
	}

	ext := pic.Ext
	if ext == "" {
		ext = "jpg"
	}
	dest := filepath.Join(th.thumbDir, fmt.Sprintf("%d.%s", t.Media.ID, ext))
	if err := afero.WriteFile(th.fs, dest, pic.Data, 0o644); err != nil {
		th.log.WithError(err).WithField("mrl", t.Record.Mrl).Error("failed to write artwork")
		return StatusError
	}
	if err := th.store.SetMediaThumbnail(t.Media, dest); err != nil {
		return StatusError
	}

	// Share the artwork with the album when it has none yet.
	if track, err := th.store.TrackForMedia(t.Media.ID); err == nil && track != nil {
		if album, err := th.store.Album(track.AlbumID); err == nil && album != nil &&
			album.ArtworkMrl == "" {
			th.store.SetAlbumArtwork(album, util.ToMrl(dest))
		}
	}
	return StatusSuccess
}

// runVideo asks the decoder for a frame. With no decoder installed the
// step completes without a thumbnail.
func (th *ThumbnailerService) runVideo(t *Task) Status {
	if th.decoder == nil {
		return StatusSuccess
	}
	dest := filepath.Join(th.thumbDir, fmt.Sprintf("%d.jpg", t.Media.ID))
	if err := th.decoder.GenerateThumbnail(t.Record.Mrl, dest); err != nil {
		th.log.WithError(err).WithField("mrl", t.Record.Mrl).Warn("thumbnail generation failed")
		return StatusError
	}
	if err := th.store.SetMediaThumbnail(t.Media, dest); err != nil {
		return StatusError
	}
	return StatusSuccess
}
