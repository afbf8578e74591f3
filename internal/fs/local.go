package fs

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/franz/medialib/internal/util"
)

// deviceNamespace seeds the deterministic UUIDs of local devices, so a
// mountpoint keeps its identity across runs without an OS-level UUID.
var deviceNamespace = uuid.MustParse("a4cfcd26-6b15-4052-91ae-ad0b06b71b08")

// LocalFactory serves file:// MRLs from an afero filesystem. The
// default instance wraps the OS filesystem; tests plug a memory fs.
type LocalFactory struct {
	fs afero.Fs

	mu      sync.Mutex
	devices map[string]*localDevice // uuid -> device
	mounts  []Mount
}

// Mount describes one mountpoint the factory serves.
type Mount struct {
	Path      string
	Removable bool
}

// NewLocalFactory creates a factory over the OS filesystem with a
// single non-removable mount at the filesystem root.
func NewLocalFactory() *LocalFactory {
	return NewLocalFactoryWithFs(afero.NewOsFs(), []Mount{{Path: "/"}})
}

// NewLocalFactoryWithFs creates a factory over an arbitrary afero
// filesystem and mount table.
func NewLocalFactoryWithFs(bfs afero.Fs, mounts []Mount) *LocalFactory {
	f := &LocalFactory{
		fs:      bfs,
		devices: make(map[string]*localDevice),
		mounts:  mounts,
	}
	f.RefreshDevices()
	return f
}

// AddMount registers a new mountpoint, as when removable storage shows
// up, and returns the device serving it.
func (f *LocalFactory) AddMount(m Mount) Device {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mounts = append(f.mounts, m)
	d := f.deviceForMountLocked(m)
	d.present = true
	return d
}

// RemoveMount marks the device of a mountpoint absent.
func (f *LocalFactory) RemoveMount(path string) Device {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.devices {
		if d.mountpoint == normalizeMount(path) {
			d.present = false
			return d
		}
	}
	return nil
}

// RefreshDevices rebuilds the device table from the mount list.
func (f *LocalFactory) RefreshDevices() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.mounts {
		f.deviceForMountLocked(m)
	}
	return nil
}

func (f *LocalFactory) deviceForMountLocked(m Mount) *localDevice {
	mp := normalizeMount(m.Path)
	id := uuid.NewSHA1(deviceNamespace, []byte(mp)).String()
	if d, ok := f.devices[id]; ok {
		return d
	}
	d := &localDevice{
		fs:         f.fs,
		uuid:       id,
		mountpoint: mp,
		removable:  m.Removable,
		present:    true,
	}
	f.devices[id] = d
	return d
}

// CreateDevice returns the device with the given UUID, if known.
func (f *LocalFactory) CreateDevice(id string) (Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.devices[id]
	if !ok {
		return nil, fmt.Errorf("unknown device %s", id)
	}
	return d, nil
}

// CreateDeviceFromMrl returns the device owning an MRL: the one with
// the longest mountpoint prefix.
func (f *LocalFactory) CreateDeviceFromMrl(mrl string) (Device, error) {
	p := util.MrlToPath(mrl)
	f.mu.Lock()
	defer f.mu.Unlock()
	var best *localDevice
	for _, d := range f.devices {
		if strings.HasPrefix(normalizeMount(p)+"/", d.mountpoint+"/") ||
			strings.HasPrefix(p, d.mountpoint) {
			if best == nil || len(d.mountpoint) > len(best.mountpoint) {
				best = d
			}
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no device for mrl %s", mrl)
	}
	return best, nil
}

// IsMrlSupported accepts file:// MRLs and bare paths.
func (f *LocalFactory) IsMrlSupported(mrl string) bool {
	scheme := util.MrlScheme(mrl)
	return scheme == "" || scheme == "file"
}

// IsNetwork reports that this factory serves local storage.
func (f *LocalFactory) IsNetwork() bool {
	return false
}

func normalizeMount(p string) string {
	p = filepath.ToSlash(filepath.Clean(p))
	if p == "." {
		p = "/"
	}
	return p
}

type localDevice struct {
	fs         afero.Fs
	uuid       string
	mountpoint string
	removable  bool
	present    bool
}

func (d *localDevice) UUID() string { return d.uuid }

func (d *localDevice) IsRemovable() bool { return d.removable }

func (d *localDevice) IsPresent() bool { return d.present }

func (d *localDevice) Mountpoint() string { return d.mountpoint }

func (d *localDevice) Root() (Directory, error) {
	return d.directory(d.mountpoint)
}

func (d *localDevice) directory(path string) (Directory, error) {
	info, err := d.fs.Stat(path)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrAccess, path)
	}
	return &localDirectory{device: d, path: path}, nil
}

func (d *localDevice) RelativeMrl(mrl string) string {
	p := util.MrlToPath(mrl)
	rel := strings.TrimPrefix(p, d.mountpoint)
	return strings.TrimPrefix(rel, "/")
}

func (d *localDevice) AbsoluteMrl(relative string) string {
	if relative == "" {
		return util.ToMrl(d.mountpoint)
	}
	return util.ToMrl(strings.TrimRight(d.mountpoint, "/") + "/" + relative)
}

type localDirectory struct {
	device *localDevice
	path   string
}

func (dir *localDirectory) Mrl() string {
	return util.ToMrl(dir.path)
}

func (dir *localDirectory) Files() ([]File, error) {
	entries, err := afero.ReadDir(dir.device.fs, dir.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrAccess, dir.path)
	}
	var files []File
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		files = append(files, &localFile{
			fs:      dir.device.fs,
			path:    filepath.ToSlash(filepath.Join(dir.path, e.Name())),
			name:    e.Name(),
			modTime: e.ModTime().Unix(),
			size:    e.Size(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name() < files[j].Name() })
	return files, nil
}

func (dir *localDirectory) Dirs() ([]Directory, error) {
	entries, err := afero.ReadDir(dir.device.fs, dir.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrAccess, dir.path)
	}
	var dirs []Directory
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dirs = append(dirs, &localDirectory{
			device: dir.device,
			path:   filepath.ToSlash(filepath.Join(dir.path, e.Name())),
		})
	}
	sort.Slice(dirs, func(i, j int) bool {
		return dirs[i].(*localDirectory).path < dirs[j].(*localDirectory).path
	})
	return dirs, nil
}

type localFile struct {
	fs      afero.Fs
	path    string
	name    string
	modTime int64
	size    int64
}

func (f *localFile) Name() string { return f.name }

func (f *localFile) Mrl() string { return util.ToMrl(f.path) }

func (f *localFile) Extension() string {
	idx := strings.LastIndex(f.name, ".")
	if idx < 0 || idx == len(f.name)-1 {
		return ""
	}
	return strings.ToLower(f.name[idx+1:])
}

func (f *localFile) LastModification() int64 { return f.modTime }

func (f *localFile) Size() int64 { return f.size }

func (f *localFile) Open() (io.ReadSeekCloser, error) {
	file, err := f.fs.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrAccess, f.path)
	}
	return file, nil
}
