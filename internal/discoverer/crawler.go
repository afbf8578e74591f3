package discoverer

import (
	"strings"

	"github.com/franz/medialib/internal/fs"
	"github.com/franz/medialib/internal/store"
	"github.com/franz/medialib/internal/util"
)

// crawlerProbe decides what the crawler descends into: hidden folders
// are skipped, banned subtrees are honored, files must match the
// extension whitelist.
type crawlerProbe struct {
	banned map[string]bool // device-relative folder MRLs
}

func newCrawlerProbe(s *store.Store, deviceID int64) (*crawlerProbe, error) {
	banned, err := s.BannedFolders(deviceID)
	if err != nil {
		return nil, err
	}
	p := &crawlerProbe{banned: make(map[string]bool, len(banned))}
	for _, f := range banned {
		p.banned[f.Mrl] = true
	}
	return p, nil
}

func (p *crawlerProbe) shouldEnter(device fs.Device, dir fs.Directory) bool {
	name := util.MrlFilename(dir.Mrl())
	if strings.HasPrefix(name, ".") {
		return false
	}
	return !p.banned[device.RelativeMrl(dir.Mrl())]
}

func (p *crawlerProbe) shouldIndex(f fs.File) bool {
	return IsExtensionSupported(f.Extension())
}

// crawl walks a directory tree depth-first, diffing the files of every
// retained directory against the catalog. Unreadable subtrees are
// skipped, not fatal.
func (d *Discoverer) crawl(device fs.Device, dir fs.Directory, parent *store.Folder,
	probe *crawlerProbe) error {
	folder, err := d.folderFor(device, dir, parent)
	if err != nil {
		return err
	}
	if folder.IsBlacklisted {
		return nil
	}

	if err := d.diffFolder(device, dir, folder); err != nil {
		return err
	}

	subdirs, err := dir.Dirs()
	if err != nil {
		d.log.WithError(err).WithField("mrl", dir.Mrl()).Warn("skipping unreadable directory")
		return nil
	}
	for _, sub := range subdirs {
		if d.stopped() {
			return nil
		}
		if !probe.shouldEnter(device, sub) {
			continue
		}
		if err := d.crawl(device, sub, folder, probe); err != nil {
			d.log.WithError(err).WithField("mrl", sub.Mrl()).Warn("skipping subtree")
		}
	}
	return nil
}

// folderFor finds or creates the folder row matching a directory.
func (d *Discoverer) folderFor(device fs.Device, dir fs.Directory, parent *store.Folder) (*store.Folder, error) {
	dbDevice, err := d.store.DeviceByUUID(device.UUID())
	if err != nil {
		return nil, err
	}
	rel := device.RelativeMrl(dir.Mrl())
	folder, err := d.store.FolderByMrl(dbDevice.ID, rel)
	if err != nil {
		return nil, err
	}
	if folder != nil {
		return folder, nil
	}
	var parentID int64
	if parent != nil {
		parentID = parent.ID
	}
	return d.store.CreateFolder(rel, parentID, dbDevice.ID, device.IsRemovable())
}

// diffFolder compares a directory's files against the catalog: new
// files get a parse task, modified files get a re-parse, vanished files
// are deleted (triggers cascade to their media).
func (d *Discoverer) diffFolder(device fs.Device, dir fs.Directory, folder *store.Folder) error {
	files, err := dir.Files()
	if err != nil {
		d.log.WithError(err).WithField("mrl", dir.Mrl()).Warn("skipping unreadable folder")
		return nil
	}

	known, err := d.store.FilesByFolder(folder.ID)
	if err != nil {
		return err
	}
	knownByMrl := make(map[string]*store.File, len(known))
	for _, f := range known {
		knownByMrl[f.Mrl] = f
	}

	for _, f := range files {
		if !IsExtensionSupported(f.Extension()) {
			continue
		}
		existing, ok := knownByMrl[f.Mrl()]
		if !ok {
			if err := d.enqueueTask(f, folder); err != nil {
				d.log.WithError(err).WithField("mrl", f.Mrl()).Error("failed to create parse task")
			}
			continue
		}
		delete(knownByMrl, f.Mrl())
		if existing.LastModification != f.LastModification() {
			d.log.WithField("mrl", f.Mrl()).Debug("file changed, scheduling re-parse")
			if err := d.store.UpdateFileModification(existing, f.LastModification(), f.Size()); err != nil {
				continue
			}
			if err := d.enqueueTask(f, folder); err != nil {
				d.log.WithError(err).WithField("mrl", f.Mrl()).Error("failed to create re-parse task")
			}
		}
	}

	// Anything left in the map is gone from storage.
	for _, vanished := range knownByMrl {
		d.log.WithField("mrl", vanished.Mrl).Debug("file removed from storage")
		if err := d.store.DeleteFile(vanished); err != nil {
			d.log.WithError(err).WithField("mrl", vanished.Mrl).Error("failed to delete file")
		}
	}
	return nil
}

func (d *Discoverer) enqueueTask(f fs.File, folder *store.Folder) error {
	// Dedup: a pending task for this MRL means the work is already
	// scheduled.
	if t, err := d.store.TaskByMrl(f.Mrl()); err != nil {
		return err
	} else if t != nil && !t.IsCompleted() {
		return nil
	}
	task, err := d.store.CreateTask(f.Mrl(), folder.ID, 0, 0)
	if err != nil {
		return err
	}
	if d.parser != nil {
		d.parser.Parse(task)
	}
	return nil
}
