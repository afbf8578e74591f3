// Package fs provides the pluggable filesystem view the discoverer
// crawls: factories resolve MRLs to devices, devices expose a lazy
// directory tree.
package fs

import (
	"errors"
	"io"
)

// ErrAccess is returned when a directory or file cannot be read; the
// discoverer skips the offending subtree and carries on.
var ErrAccess = errors.New("filesystem access error")

// File is a crawlable file.
type File interface {
	Name() string
	Mrl() string
	Extension() string
	LastModification() int64
	Size() int64
	// Open yields the file content for tag extraction.
	Open() (io.ReadSeekCloser, error)
}

// Directory enumerates its content lazily: nothing is read until Files
// or Dirs is called.
type Directory interface {
	Mrl() string
	Files() ([]File, error)
	Dirs() ([]Directory, error)
}

// Device is a storage unit: a mountpoint with a UUID, removable or not.
type Device interface {
	UUID() string
	IsRemovable() bool
	IsPresent() bool
	Mountpoint() string
	Root() (Directory, error)
	// RelativeMrl strips the mountpoint, yielding the device-relative
	// form folders are stored under.
	RelativeMrl(mrl string) string
	// AbsoluteMrl is the inverse of RelativeMrl.
	AbsoluteMrl(relative string) string
}

// Factory resolves MRLs to devices. Factories are tried in insertion
// order; the first one supporting an MRL wins.
type Factory interface {
	CreateDevice(uuid string) (Device, error)
	CreateDeviceFromMrl(mrl string) (Device, error)
	IsMrlSupported(mrl string) bool
	IsNetwork() bool
	// RefreshDevices re-reads the backing device list.
	RefreshDevices() error
}
