package parser

import (
	"github.com/franz/medialib/internal/fs"
	"github.com/franz/medialib/internal/store"
	"github.com/franz/medialib/internal/util"
)

// Task carries one persisted parse task through the pipeline, together
// with the live entities the services operate on.
type Task struct {
	Record *store.Task

	File   *store.File
	Media  *store.Media
	Folder *store.Folder

	FileFs   fs.File
	FolderFs fs.Directory
	Playlist *store.Playlist
}

// restoreLinkedEntities resolves the filesystem objects and catalog
// rows a rehydrated task refers to. Returns false when the file is no
// longer reachable.
func (t *Task) restoreLinkedEntities(s *store.Store, factories *fs.Factories) bool {
	mrl := t.Record.Mrl
	factory := factories.ForMrl(mrl)
	if factory == nil {
		return false
	}
	device, err := factory.CreateDeviceFromMrl(mrl)
	if err != nil {
		return false
	}
	dir, err := openDirectory(device, util.MrlDirectory(mrl))
	if err != nil {
		return false
	}
	files, err := dir.Files()
	if err != nil {
		return false
	}
	for _, f := range files {
		if f.Mrl() == mrl {
			t.FileFs = f
			break
		}
	}
	if t.FileFs == nil {
		return false
	}
	t.FolderFs = dir

	if t.Record.FileID != 0 {
		if t.File, _ = s.File(t.Record.FileID); t.File != nil {
			t.Media, _ = s.Media(t.File.MediaID)
		}
	}
	if t.Record.ParentFolderID != 0 {
		t.Folder, _ = s.Folder(t.Record.ParentFolderID)
	}
	if t.Record.ParentPlaylistID != 0 {
		t.Playlist, _ = s.Playlist(t.Record.ParentPlaylistID)
	}
	return true
}

// openDirectory walks from the device root down to the directory with
// the given MRL.
func openDirectory(device fs.Device, mrl string) (fs.Directory, error) {
	root, err := device.Root()
	if err != nil {
		return nil, err
	}
	want := device.RelativeMrl(mrl)
	if want == "" {
		return root, nil
	}
	dir := root
walk:
	for {
		rel := device.RelativeMrl(dir.Mrl())
		if rel == want || rel+"/" == want {
			return dir, nil
		}
		subdirs, err := dir.Dirs()
		if err != nil {
			return nil, err
		}
		for _, sub := range subdirs {
			subRel := device.RelativeMrl(sub.Mrl())
			if subRel == want || subRel+"/" == want {
				return sub, nil
			}
			if len(want) > len(subRel) && want[:len(subRel)+1] == subRel+"/" {
				dir = sub
				continue walk
			}
		}
		return nil, fs.ErrAccess
	}
}
