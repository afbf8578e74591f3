package notifier

import (
	"sync"
	"time"

	"github.com/franz/medialib/internal/store"
)

// drainInterval paces callback delivery; changes landing within one
// interval coalesce into a single batched callback.
const drainInterval = 500 * time.Millisecond

type eventKey struct {
	table string
	op    store.HookOp
}

// Hub buffers per-row change events recorded by update hooks and drains
// them to the host on a dedicated goroutine, batched per table and
// change type.
type Hub struct {
	cb Callback

	mu      sync.Mutex
	pending map[eventKey][]int64

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

// NewHub creates a hub delivering to cb.
func NewHub(cb Callback) *Hub {
	return &Hub{
		cb:      cb,
		pending: make(map[eventKey][]int64),
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Install registers update hooks on every notified table. Must run
// before the library starts its workers. With no callback configured
// the hub installs nothing.
func (h *Hub) Install(s *store.Store) {
	if h.cb == nil {
		return
	}
	for _, table := range []string{
		store.TableMedia, store.TableAlbum, store.TableArtist,
		store.TableAlbumTrack, store.TablePlaylist,
	} {
		t := table
		s.RegisterUpdateHook(t, func(op store.HookOp, rowID int64) {
			h.record(t, op, rowID)
		})
	}
	go h.drainLoop()
}

// record is the update-hook body: append and return, never block.
func (h *Hub) record(table string, op store.HookOp, rowID int64) {
	h.mu.Lock()
	key := eventKey{table: table, op: op}
	h.pending[key] = append(h.pending[key], rowID)
	h.mu.Unlock()

	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// Stop flushes remaining events and terminates the drain goroutine.
func (h *Hub) Stop() {
	if h.cb == nil {
		return
	}
	close(h.stop)
	<-h.done
}

func (h *Hub) drainLoop() {
	defer close(h.done)
	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()
	for {
		select {
		case <-h.stop:
			h.drain()
			return
		case <-h.wake:
			// Coalesce with whatever lands during the tick.
		case <-ticker.C:
			h.drain()
		}
	}
}

func (h *Hub) drain() {
	h.mu.Lock()
	batch := h.pending
	h.pending = make(map[eventKey][]int64)
	h.mu.Unlock()

	for key, ids := range batch {
		h.deliver(key, ids)
	}
}

func (h *Hub) deliver(key eventKey, ids []int64) {
	switch key.table {
	case store.TableMedia:
		switch key.op {
		case store.HookInsert:
			h.cb.OnMediaAdded(ids)
		case store.HookUpdate:
			h.cb.OnMediaModified(ids)
		case store.HookDelete:
			h.cb.OnMediaDeleted(ids)
		}
	case store.TableAlbum:
		switch key.op {
		case store.HookInsert:
			h.cb.OnAlbumsAdded(ids)
		case store.HookUpdate:
			h.cb.OnAlbumsModified(ids)
		case store.HookDelete:
			h.cb.OnAlbumsDeleted(ids)
		}
	case store.TableArtist:
		switch key.op {
		case store.HookInsert:
			h.cb.OnArtistsAdded(ids)
		case store.HookUpdate:
			h.cb.OnArtistsModified(ids)
		case store.HookDelete:
			h.cb.OnArtistsDeleted(ids)
		}
	case store.TableAlbumTrack:
		switch key.op {
		case store.HookInsert:
			h.cb.OnTracksAdded(ids)
		case store.HookDelete:
			h.cb.OnTracksDeleted(ids)
		}
	case store.TablePlaylist:
		switch key.op {
		case store.HookInsert:
			h.cb.OnPlaylistsAdded(ids)
		case store.HookUpdate:
			h.cb.OnPlaylistsModified(ids)
		case store.HookDelete:
			h.cb.OnPlaylistsDeleted(ids)
		}
	}
}
