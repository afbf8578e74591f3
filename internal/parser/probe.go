package parser

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/franz/medialib/internal/discoverer"
	"github.com/franz/medialib/internal/fs"
	"github.com/franz/medialib/internal/store"
	"github.com/franz/medialib/internal/util"
)

// videoExtensions marks the whitelist entries that denote video
// containers; everything else supported is treated as audio.
var videoExtensions = map[string]bool{
	"3gp": true, "amv": true, "asf": true, "avi": true, "divx": true,
	"dv": true, "flv": true, "gxf": true, "ifo": true, "iso": true,
	"m1v": true, "m2t": true, "m2ts": true, "m2v": true, "m4v": true,
	"mkv": true, "mov": true, "mp4": true, "mpeg": true, "mpeg1": true,
	"mpeg2": true, "mpeg4": true, "mpg": true, "mts": true, "mxf": true,
	"nsv": true, "nuv": true, "ogm": true, "ogv": true, "ogx": true,
	"ps": true, "rec": true, "rm": true, "rmvb": true, "tod": true,
	"trp": true, "ts": true, "vob": true, "vro": true, "webm": true,
	"wmv": true,
}

// ProbeService classifies a file and creates its media and file rows.
// It is the first pipeline stage; everything downstream relies on the
// rows it creates.
type ProbeService struct {
	store     *store.Store
	factories *fs.Factories
	log       *logrus.Entry
}

// NewProbeService creates the probe stage.
func NewProbeService(s *store.Store, factories *fs.Factories) *ProbeService {
	return &ProbeService{
		store:     s,
		factories: factories,
		log:       util.ComponentLogger("parser.probe"),
	}
}

func (p *ProbeService) Name() string { return "probe" }

func (p *ProbeService) Step() store.ParserStep { return store.StepProbe }

func (p *ProbeService) NbThreads() int { return 1 }

func (p *ProbeService) Initialize() error { return nil }

// Run resolves the task's filesystem objects and ensures the catalog
// has a media+file pair for it.
func (p *ProbeService) Run(t *Task) Status {
	if t.FileFs == nil {
		if !t.restoreLinkedEntities(p.store, p.factories) {
			return StatusFatal
		}
	}

	ext := t.FileFs.Extension()
	if discoverer.IsPlaylistExtension(ext) {
		return p.probePlaylist(t)
	}

	if t.File == nil {
		existing, err := p.store.FileByMrl(t.Record.Mrl)
		if err != nil {
			return StatusError
		}
		t.File = existing
	}

	if t.File != nil {
		// Re-parse: the file changed on disk. Derived metadata will be
		// rebuilt by the next stages.
		var err error
		if t.Media, err = p.store.Media(t.File.MediaID); err != nil || t.Media == nil {
			return StatusError
		}
		return StatusSuccess
	}

	mediaType := store.MediaTypeAudio
	if videoExtensions[ext] {
		mediaType = store.MediaTypeVideo
	}

	title := t.FileFs.Name()
	if idx := strings.LastIndex(title, "."); idx > 0 {
		title = title[:idx]
	}

	media, err := p.store.CreateMedia(title, mediaType, false)
	if err != nil {
		return StatusError
	}
	var folderID int64
	if t.Folder != nil {
		folderID = t.Folder.ID
	} else if t.Record.ParentFolderID != 0 {
		folderID = t.Record.ParentFolderID
	}
	file, err := p.store.AddFile(media.ID, t.Record.Mrl, store.FileTypeMain,
		folderID, t.FileFs.LastModification(), t.FileFs.Size(), false)
	if err != nil {
		// Constraint means a concurrent probe won; pick up its rows.
		if store.IsKind(err, store.ErrConstraint) {
			if file, err = p.store.FileByMrl(t.Record.Mrl); err != nil || file == nil {
				return StatusError
			}
			p.store.DeleteMedia(media.ID)
			media, err = p.store.Media(file.MediaID)
			if err != nil || media == nil {
				return StatusError
			}
		} else {
			return StatusError
		}
	}
	if err := p.store.AttachTaskFile(t.Record, file.ID); err != nil {
		return StatusError
	}
	t.Media = media
	t.File = file
	return StatusSuccess
}

// probePlaylist records a playlist file. Resolving its entries is
// deferred to tasks created with a playlist reference.
func (p *ProbeService) probePlaylist(t *Task) Status {
	name := t.FileFs.Name()
	if idx := strings.LastIndex(name, "."); idx > 0 {
		name = name[:idx]
	}
	media, err := p.store.CreateMedia(name, store.MediaTypeUnknown, false)
	if err != nil {
		return StatusError
	}
	var folderID int64
	if t.Record.ParentFolderID != 0 {
		folderID = t.Record.ParentFolderID
	}
	file, err := p.store.AddFile(media.ID, t.Record.Mrl, store.FileTypePlaylist,
		folderID, t.FileFs.LastModification(), t.FileFs.Size(), false)
	if err != nil {
		if store.IsKind(err, store.ErrConstraint) {
			return StatusSuccess
		}
		return StatusError
	}
	if _, err := p.store.CreatePlaylist(name, file.ID); err != nil {
		return StatusError
	}
	// Playlists skip the remaining stages.
	p.store.SaveTaskStep(t.Record, store.StepMetadata|store.StepThumbnail)
	t.Media = media
	t.File = file
	return StatusSuccess
}
