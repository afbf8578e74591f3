package library

import (
	"github.com/franz/medialib/internal/store"
	"github.com/franz/medialib/internal/util"
)

// SearchResult aggregates the per-entity full-text matches.
type SearchResult struct {
	Media     []*store.Media
	Albums    []*store.Album
	Artists   []*store.Artist
	Genres    []*store.Genre
	Playlists []*store.Playlist
}

// Media fetches a media by id.
func (l *Library) Media(id int64) (*store.Media, error) {
	return l.store.Media(id)
}

// MediaByMrl fetches a media through one of its file MRLs.
func (l *Library) MediaByMrl(mrl string) (*store.Media, error) {
	return l.store.MediaByMrl(util.ToMrl(mrl))
}

// AddMedia records an external media (a stream or a file outside every
// entry point) by MRL.
func (l *Library) AddMedia(mrl string) (*store.Media, error) {
	mrl = util.ToMrl(mrl)
	if existing, err := l.store.MediaByMrl(mrl); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}
	media, err := l.store.CreateMedia(util.MrlFilename(mrl), store.MediaTypeExternal, true)
	if err != nil {
		return nil, err
	}
	if _, err := l.store.AddFile(media.ID, mrl, store.FileTypeExternal, 0, 0, 0, false); err != nil {
		l.store.DeleteMedia(media.ID)
		return nil, err
	}
	return media, nil
}

// DeleteMedia removes a media and its dependent rows. Thumbnail files
// stay on disk.
func (l *Library) DeleteMedia(id int64) error {
	return l.store.DeleteMedia(id)
}

// AudioFiles lists present audio media.
func (l *Library) AudioFiles(sort store.SortingCriteria, desc bool) ([]*store.Media, error) {
	return l.store.MediaList(store.MediaTypeAudio, sort, desc)
}

// VideoFiles lists present video media.
func (l *Library) VideoFiles(sort store.SortingCriteria, desc bool) ([]*store.Media, error) {
	return l.store.MediaList(store.MediaTypeVideo, sort, desc)
}

// Albums lists present titled albums.
func (l *Library) Albums(sort store.SortingCriteria, desc bool) ([]*store.Album, error) {
	return l.store.Albums(sort, desc)
}

// Album fetches an album by id.
func (l *Library) Album(id int64) (*store.Album, error) {
	return l.store.Album(id)
}

// Artists lists artists; includeAll also lists artists without albums.
func (l *Library) Artists(includeAll bool, desc bool) ([]*store.Artist, error) {
	return l.store.Artists(includeAll, desc)
}

// Artist fetches an artist by id.
func (l *Library) Artist(id int64) (*store.Artist, error) {
	return l.store.Artist(id)
}

// Genres lists all genres.
func (l *Library) Genres() ([]*store.Genre, error) {
	return l.store.Genres()
}

// Playlists lists all playlists.
func (l *Library) Playlists() ([]*store.Playlist, error) {
	return l.store.Playlists()
}

// CreatePlaylist creates a user playlist.
func (l *Library) CreatePlaylist(name string) (*store.Playlist, error) {
	return l.store.CreatePlaylist(name, 0)
}

// Search runs the full-text search over every entity kind. Patterns
// shorter than 3 characters yield empty aggregates.
func (l *Library) Search(pattern string) (*SearchResult, error) {
	res := &SearchResult{}
	if len(pattern) < 3 {
		return res, nil
	}
	var err error
	if res.Media, err = l.store.SearchMedia(pattern); err != nil {
		return nil, err
	}
	if res.Albums, err = l.store.SearchAlbums(pattern); err != nil {
		return nil, err
	}
	if res.Artists, err = l.store.SearchArtists(pattern); err != nil {
		return nil, err
	}
	if res.Genres, err = l.store.SearchGenres(pattern); err != nil {
		return nil, err
	}
	if res.Playlists, err = l.store.SearchPlaylists(pattern); err != nil {
		return nil, err
	}
	return res, nil
}

// AddToStreamHistory records a played media in the bounded stream
// history and bumps its play count.
func (l *Library) AddToStreamHistory(m *store.Media) error {
	f, err := l.mainFile(m)
	if err != nil {
		return err
	}
	if f != nil {
		if err := l.store.AddToStreamHistory(f.Mrl); err != nil {
			return err
		}
	}
	return l.store.IncreasePlayCount(m)
}

func (l *Library) mainFile(m *store.Media) (*store.File, error) {
	rows, err := l.store.Query(
		"SELECT id_file FROM files WHERE media_id = ? ORDER BY type = 1 DESC LIMIT 1", m.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	var id int64
	if err := rows.Scan(&id); err != nil {
		return nil, err
	}
	return l.store.File(id)
}

// LastStreamsPlayed lists the stream history, most recent first.
func (l *Library) LastStreamsPlayed() ([]*store.HistoryEntry, error) {
	return l.store.LastStreamsPlayed()
}

// LastMediaPlayed lists catalog media by last play date.
func (l *Library) LastMediaPlayed() ([]*store.Media, error) {
	return l.store.LastMediaPlayed()
}

// ClearHistory wipes stream history and play counters.
func (l *Library) ClearHistory() error {
	return l.store.ClearHistory()
}

// AddP2PMedia records an external media backed by a transport protocol.
func (l *Library) AddP2PMedia(title, mrl, infohash string, fileIndex int, parentID int64) (*store.Media, error) {
	return l.store.CreateP2PMedia(title, util.ToMrl(mrl), infohash, fileIndex, parentID)
}

// FindMediaByInfohash looks a media up by transport identity.
func (l *Library) FindMediaByInfohash(infohash string, fileIndex int) (*store.Media, error) {
	return l.store.FindMediaByInfohash(infohash, fileIndex)
}

// FindMediaByParent lists the media attached to a container media.
func (l *Library) FindMediaByParent(parentID int64) ([]*store.Media, error) {
	return l.store.FindMediaByParent(parentID)
}

// FindDuplicatesByInfohash groups media sharing a transport identity.
func (l *Library) FindDuplicatesByInfohash() (map[string][]*store.Media, error) {
	return l.store.FindDuplicatesByInfohash()
}

// CopyMetadata copies parsed metadata between two media records.
func (l *Library) CopyMetadata(src, dst *store.Media) error {
	return l.store.CopyMetadata(src, dst)
}
