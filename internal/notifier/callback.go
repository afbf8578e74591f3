// Package notifier batches fine-grained catalog changes into the
// coarse-grained callbacks the host consumes.
package notifier

// Callback is the host-provided notification interface. All methods are
// invoked from library-owned goroutines; implementations must not call
// back into the library synchronously.
type Callback interface {
	OnMediaAdded(ids []int64)
	OnMediaModified(ids []int64)
	OnMediaDeleted(ids []int64)

	OnAlbumsAdded(ids []int64)
	OnAlbumsModified(ids []int64)
	OnAlbumsDeleted(ids []int64)

	OnArtistsAdded(ids []int64)
	OnArtistsModified(ids []int64)
	OnArtistsDeleted(ids []int64)

	OnTracksAdded(ids []int64)
	OnTracksDeleted(ids []int64)

	OnPlaylistsAdded(ids []int64)
	OnPlaylistsModified(ids []int64)
	OnPlaylistsDeleted(ids []int64)

	OnDiscoveryStarted(entryPoint string)
	OnDiscoveryProgress(entryPoint string)
	OnDiscoveryCompleted(entryPoint string)
	OnReloadStarted(entryPoint string)
	OnReloadCompleted(entryPoint string)
	OnEntryPointRemoved(entryPoint string, success bool)
	OnEntryPointBanned(entryPoint string, success bool)
	OnEntryPointUnbanned(entryPoint string, success bool)

	OnParsingStatsUpdated(percent float64)
	OnBackgroundTasksIdleChanged(idle bool)
}

// NoopCallback implements Callback with empty methods, for embedders
// that only care about a subset.
type NoopCallback struct{}

func (NoopCallback) OnMediaAdded([]int64)    {}
func (NoopCallback) OnMediaModified([]int64) {}
func (NoopCallback) OnMediaDeleted([]int64)  {}

func (NoopCallback) OnAlbumsAdded([]int64)    {}
func (NoopCallback) OnAlbumsModified([]int64) {}
func (NoopCallback) OnAlbumsDeleted([]int64)  {}

func (NoopCallback) OnArtistsAdded([]int64)    {}
func (NoopCallback) OnArtistsModified([]int64) {}
func (NoopCallback) OnArtistsDeleted([]int64)  {}

func (NoopCallback) OnTracksAdded([]int64)   {}
func (NoopCallback) OnTracksDeleted([]int64) {}

func (NoopCallback) OnPlaylistsAdded([]int64)    {}
func (NoopCallback) OnPlaylistsModified([]int64) {}
func (NoopCallback) OnPlaylistsDeleted([]int64)  {}

func (NoopCallback) OnDiscoveryStarted(string)         {}
func (NoopCallback) OnDiscoveryProgress(string)        {}
func (NoopCallback) OnDiscoveryCompleted(string)       {}
func (NoopCallback) OnReloadStarted(string)            {}
func (NoopCallback) OnReloadCompleted(string)          {}
func (NoopCallback) OnEntryPointRemoved(string, bool)  {}
func (NoopCallback) OnEntryPointBanned(string, bool)   {}
func (NoopCallback) OnEntryPointUnbanned(string, bool) {}
func (NoopCallback) OnParsingStatsUpdated(float64)     {}
func (NoopCallback) OnBackgroundTasksIdleChanged(bool) {}
