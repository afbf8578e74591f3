package store

// Table names, shared with the update-hook registry.
const (
	TableDevice      = "devices"
	TableFolder      = "folders"
	TableFile        = "files"
	TableMedia       = "media"
	TableAlbum       = "albums"
	TableAlbumTrack  = "album_tracks"
	TableArtist      = "artists"
	TableGenre       = "genres"
	TableLabel       = "labels"
	TablePlaylist    = "playlists"
	TableShow        = "shows"
	TableShowEpisode = "show_episodes"
	TableMovie       = "movies"
	TableHistory     = "history"
	TableSettings    = "settings"
	TableTask        = "tasks"
)

// Reserved artist rows, created with the schema and never auto-deleted.
const (
	UnknownArtistID = 1
	VariousArtistID = 2
)

// schemaModel13 is the full DDL at the current model version.
const schemaModel13 = `
CREATE TABLE IF NOT EXISTS settings (
  db_model_version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS devices (
  id_device INTEGER PRIMARY KEY AUTOINCREMENT,
  uuid TEXT UNIQUE ON CONFLICT FAIL,
  is_removable BOOLEAN NOT NULL DEFAULT 0,
  is_present BOOLEAN NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS folders (
  id_folder INTEGER PRIMARY KEY AUTOINCREMENT,
  mrl TEXT COLLATE NOCASE,
  parent_id INTEGER REFERENCES folders(id_folder) ON DELETE CASCADE,
  is_blacklisted BOOLEAN NOT NULL DEFAULT 0,
  device_id INTEGER REFERENCES devices(id_device) ON DELETE CASCADE,
  is_present BOOLEAN NOT NULL DEFAULT 1,
  is_removable BOOLEAN NOT NULL DEFAULT 0,
  UNIQUE(mrl, device_id) ON CONFLICT FAIL
);

CREATE INDEX IF NOT EXISTS idx_folders_device ON folders(device_id);
CREATE INDEX IF NOT EXISTS idx_folders_parent ON folders(parent_id);

CREATE TABLE IF NOT EXISTS media (
  id_media INTEGER PRIMARY KEY AUTOINCREMENT,
  type INTEGER NOT NULL DEFAULT 0,
  subtype INTEGER NOT NULL DEFAULT 0,
  duration INTEGER NOT NULL DEFAULT -1,
  play_count INTEGER NOT NULL DEFAULT 0,
  last_played_date INTEGER,
  insertion_date INTEGER,
  thumbnail TEXT,
  title TEXT COLLATE NOCASE,
  filename TEXT,
  is_favorite BOOLEAN NOT NULL DEFAULT 0,
  is_present BOOLEAN NOT NULL DEFAULT 1,
  is_external BOOLEAN NOT NULL DEFAULT 0,
  parent_media_id INTEGER REFERENCES media(id_media) ON DELETE SET NULL,
  is_p2p BOOLEAN NOT NULL DEFAULT 0,
  infohash TEXT,
  file_index INTEGER
);

CREATE INDEX IF NOT EXISTS idx_media_types ON media(type, subtype);
CREATE INDEX IF NOT EXISTS idx_media_infohash ON media(infohash);
CREATE INDEX IF NOT EXISTS idx_media_parent ON media(parent_media_id);
CREATE INDEX IF NOT EXISTS idx_media_present ON media(is_present);

CREATE TABLE IF NOT EXISTS files (
  id_file INTEGER PRIMARY KEY AUTOINCREMENT,
  media_id INTEGER NOT NULL REFERENCES media(id_media) ON DELETE CASCADE,
  mrl TEXT,
  type INTEGER NOT NULL DEFAULT 0,
  last_modification_date INTEGER,
  size INTEGER NOT NULL DEFAULT 0,
  folder_id INTEGER REFERENCES folders(id_folder) ON DELETE CASCADE,
  is_removable BOOLEAN NOT NULL DEFAULT 0,
  is_present BOOLEAN NOT NULL DEFAULT 1,
  is_external BOOLEAN NOT NULL DEFAULT 0,
  UNIQUE(mrl, folder_id) ON CONFLICT FAIL
);

CREATE INDEX IF NOT EXISTS idx_files_media ON files(media_id);
CREATE INDEX IF NOT EXISTS idx_files_folder ON files(folder_id);

CREATE TABLE IF NOT EXISTS artists (
  id_artist INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT UNIQUE COLLATE NOCASE,
  shortbio TEXT,
  artwork_mrl TEXT,
  nb_albums INTEGER NOT NULL DEFAULT 0,
  nb_tracks INTEGER NOT NULL DEFAULT 0,
  mb_id TEXT,
  is_present BOOLEAN NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS albums (
  id_album INTEGER PRIMARY KEY AUTOINCREMENT,
  title TEXT COLLATE NOCASE,
  artist_id INTEGER REFERENCES artists(id_artist) ON DELETE CASCADE,
  release_year INTEGER,
  short_summary TEXT,
  artwork_mrl TEXT,
  nb_tracks INTEGER NOT NULL DEFAULT 0,
  duration INTEGER NOT NULL DEFAULT 0,
  is_present BOOLEAN NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_albums_artist ON albums(artist_id);

CREATE TABLE IF NOT EXISTS genres (
  id_genre INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT UNIQUE COLLATE NOCASE
);

CREATE TABLE IF NOT EXISTS album_tracks (
  id_track INTEGER PRIMARY KEY AUTOINCREMENT,
  media_id INTEGER UNIQUE REFERENCES media(id_media) ON DELETE CASCADE,
  duration INTEGER NOT NULL DEFAULT 0,
  artist_id INTEGER REFERENCES artists(id_artist) ON DELETE CASCADE,
  genre_id INTEGER REFERENCES genres(id_genre),
  track_number INTEGER,
  album_id INTEGER NOT NULL REFERENCES albums(id_album) ON DELETE CASCADE,
  disc_number INTEGER,
  is_present BOOLEAN NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_tracks_album ON album_tracks(album_id);
CREATE INDEX IF NOT EXISTS idx_tracks_artist ON album_tracks(artist_id);
CREATE INDEX IF NOT EXISTS idx_tracks_genre ON album_tracks(genre_id);

CREATE TABLE IF NOT EXISTS labels (
  id_label INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT UNIQUE ON CONFLICT FAIL
);

CREATE TABLE IF NOT EXISTS label_media (
  label_id INTEGER REFERENCES labels(id_label) ON DELETE CASCADE,
  media_id INTEGER REFERENCES media(id_media) ON DELETE CASCADE,
  PRIMARY KEY (label_id, media_id)
);

CREATE TABLE IF NOT EXISTS playlists (
  id_playlist INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT COLLATE NOCASE,
  file_id INTEGER UNIQUE REFERENCES files(id_file) ON DELETE CASCADE,
  creation_date INTEGER,
  artwork_mrl TEXT
);

CREATE TABLE IF NOT EXISTS playlist_media (
  playlist_id INTEGER REFERENCES playlists(id_playlist) ON DELETE CASCADE,
  media_id INTEGER REFERENCES media(id_media) ON DELETE CASCADE,
  position INTEGER,
  PRIMARY KEY (playlist_id, media_id)
);

CREATE TABLE IF NOT EXISTS shows (
  id_show INTEGER PRIMARY KEY AUTOINCREMENT,
  title TEXT COLLATE NOCASE,
  release_date INTEGER,
  short_summary TEXT,
  artwork_mrl TEXT,
  tvdb_id TEXT
);

CREATE TABLE IF NOT EXISTS show_episodes (
  id_episode INTEGER PRIMARY KEY AUTOINCREMENT,
  media_id INTEGER UNIQUE NOT NULL REFERENCES media(id_media) ON DELETE CASCADE,
  show_id INTEGER NOT NULL REFERENCES shows(id_show) ON DELETE CASCADE,
  episode_number INTEGER,
  season_number INTEGER,
  episode_summary TEXT,
  tvdb_id TEXT
);

CREATE TABLE IF NOT EXISTS movies (
  id_movie INTEGER PRIMARY KEY AUTOINCREMENT,
  media_id INTEGER UNIQUE NOT NULL REFERENCES media(id_media) ON DELETE CASCADE,
  title TEXT COLLATE NOCASE,
  summary TEXT,
  artwork_mrl TEXT,
  imdb_id TEXT
);

CREATE TABLE IF NOT EXISTS history (
  id_record INTEGER PRIMARY KEY AUTOINCREMENT,
  mrl TEXT UNIQUE ON CONFLICT REPLACE,
  insertion_date INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
  id_task INTEGER PRIMARY KEY AUTOINCREMENT,
  step INTEGER NOT NULL DEFAULT 0,
  retry_count INTEGER NOT NULL DEFAULT 0,
  mrl TEXT,
  file_id INTEGER REFERENCES files(id_file) ON DELETE CASCADE,
  parent_folder_id INTEGER REFERENCES folders(id_folder) ON DELETE CASCADE,
  parent_playlist_id INTEGER REFERENCES playlists(id_playlist) ON DELETE CASCADE,
  parent_playlist_index INTEGER
);

CREATE VIRTUAL TABLE IF NOT EXISTS media_fts USING fts5(title);
CREATE VIRTUAL TABLE IF NOT EXISTS albums_fts USING fts5(title);
CREATE VIRTUAL TABLE IF NOT EXISTS artists_fts USING fts5(name);
CREATE VIRTUAL TABLE IF NOT EXISTS genres_fts USING fts5(name);
CREATE VIRTUAL TABLE IF NOT EXISTS playlists_fts USING fts5(name);
`

// presenceTriggers propagate device reachability down the entity graph
// and keep the per-aggregate is_present flags truthful. Recursive
// trigger firing must be enabled for the chain to cascade.
const presenceTriggers = `
CREATE TRIGGER IF NOT EXISTS device_presence
AFTER UPDATE OF is_present ON devices
BEGIN
  UPDATE folders SET is_present = new.is_present WHERE device_id = new.id_device;
END;

CREATE TRIGGER IF NOT EXISTS folder_presence
AFTER UPDATE OF is_present ON folders
BEGIN
  UPDATE files SET is_present = new.is_present WHERE folder_id = new.id_folder;
END;

CREATE TRIGGER IF NOT EXISTS file_presence
AFTER UPDATE OF is_present ON files
WHEN new.type = 1
BEGIN
  UPDATE media SET is_present =
    (SELECT EXISTS(SELECT 1 FROM files
      WHERE media_id = new.media_id AND type = 1 AND is_present = 1))
    WHERE id_media = new.media_id;
END;

CREATE TRIGGER IF NOT EXISTS media_presence
AFTER UPDATE OF is_present ON media
BEGIN
  UPDATE album_tracks SET is_present = new.is_present WHERE media_id = new.id_media;
END;

CREATE TRIGGER IF NOT EXISTS track_presence
AFTER UPDATE OF is_present ON album_tracks
BEGIN
  UPDATE albums SET is_present =
    (SELECT EXISTS(SELECT 1 FROM album_tracks
      WHERE album_id = new.album_id AND is_present = 1))
    WHERE id_album = new.album_id;
END;

CREATE TRIGGER IF NOT EXISTS album_presence
AFTER UPDATE OF is_present ON albums
WHEN new.artist_id IS NOT NULL
BEGIN
  UPDATE artists SET is_present =
    (SELECT EXISTS(SELECT 1 FROM albums
      WHERE artist_id = new.artist_id AND is_present = 1))
    WHERE id_artist = new.artist_id;
END;
`

// aggregateTriggers maintain the track/album counters incrementally and
// garbage-collect empty albums and artists. The two reserved artist rows
// are exempt from auto-deletion.
const aggregateTriggers = `
CREATE TRIGGER IF NOT EXISTS add_album_track
AFTER INSERT ON album_tracks
BEGIN
  UPDATE albums SET
    nb_tracks = nb_tracks + 1,
    duration = duration + max(new.duration, 0),
    is_present = is_present OR new.is_present
    WHERE id_album = new.album_id;
  UPDATE artists SET nb_tracks = nb_tracks + 1 WHERE id_artist = new.artist_id;
END;

CREATE TRIGGER IF NOT EXISTS delete_album_track
AFTER DELETE ON album_tracks
BEGIN
  UPDATE albums SET
    nb_tracks = nb_tracks - 1,
    duration = duration - max(old.duration, 0)
    WHERE id_album = old.album_id;
  UPDATE artists SET nb_tracks = nb_tracks - 1 WHERE id_artist = old.artist_id;
  DELETE FROM albums WHERE id_album = old.album_id AND nb_tracks = 0;
  DELETE FROM artists WHERE id_artist = old.artist_id
    AND nb_albums = 0 AND nb_tracks = 0
    AND id_artist NOT IN (1, 2);
END;

CREATE TRIGGER IF NOT EXISTS add_album
AFTER INSERT ON albums
WHEN new.artist_id IS NOT NULL AND new.title IS NOT NULL
BEGIN
  UPDATE artists SET nb_albums = nb_albums + 1 WHERE id_artist = new.artist_id;
END;

CREATE TRIGGER IF NOT EXISTS update_album_artist
AFTER UPDATE OF artist_id ON albums
WHEN ifnull(old.artist_id, 0) != ifnull(new.artist_id, 0) AND new.title IS NOT NULL
BEGIN
  UPDATE artists SET nb_albums = nb_albums - 1 WHERE id_artist = old.artist_id;
  UPDATE artists SET nb_albums = nb_albums + 1 WHERE id_artist = new.artist_id;
END;

CREATE TRIGGER IF NOT EXISTS delete_album
AFTER DELETE ON albums
WHEN old.artist_id IS NOT NULL AND old.title IS NOT NULL
BEGIN
  UPDATE artists SET nb_albums = nb_albums - 1 WHERE id_artist = old.artist_id;
  DELETE FROM artists WHERE id_artist = old.artist_id
    AND nb_albums = 0 AND nb_tracks = 0
    AND id_artist NOT IN (1, 2);
END;
`

// ftsTriggers keep the full-text tables aligned with their entity rows.
const ftsTriggers = `
CREATE TRIGGER IF NOT EXISTS insert_media_fts
AFTER INSERT ON media
WHEN new.title IS NOT NULL
BEGIN
  INSERT INTO media_fts(rowid, title) VALUES (new.id_media, new.title);
END;

CREATE TRIGGER IF NOT EXISTS update_media_fts
AFTER UPDATE OF title ON media
BEGIN
  DELETE FROM media_fts WHERE rowid = old.id_media;
  INSERT INTO media_fts(rowid, title) VALUES (new.id_media, new.title);
END;

CREATE TRIGGER IF NOT EXISTS delete_media_fts
AFTER DELETE ON media
BEGIN
  DELETE FROM media_fts WHERE rowid = old.id_media;
END;

CREATE TRIGGER IF NOT EXISTS insert_album_fts
AFTER INSERT ON albums
WHEN new.title IS NOT NULL
BEGIN
  INSERT INTO albums_fts(rowid, title) VALUES (new.id_album, new.title);
END;

CREATE TRIGGER IF NOT EXISTS delete_album_fts
AFTER DELETE ON albums
BEGIN
  DELETE FROM albums_fts WHERE rowid = old.id_album;
END;

CREATE TRIGGER IF NOT EXISTS insert_artist_fts
AFTER INSERT ON artists
WHEN new.name IS NOT NULL
BEGIN
  INSERT INTO artists_fts(rowid, name) VALUES (new.id_artist, new.name);
END;

CREATE TRIGGER IF NOT EXISTS delete_artist_fts
AFTER DELETE ON artists
BEGIN
  DELETE FROM artists_fts WHERE rowid = old.id_artist;
END;

CREATE TRIGGER IF NOT EXISTS insert_genre_fts
AFTER INSERT ON genres
BEGIN
  INSERT INTO genres_fts(rowid, name) VALUES (new.id_genre, new.name);
END;

CREATE TRIGGER IF NOT EXISTS delete_genre_fts
AFTER DELETE ON genres
BEGIN
  DELETE FROM genres_fts WHERE rowid = old.id_genre;
END;

CREATE TRIGGER IF NOT EXISTS insert_playlist_fts
AFTER INSERT ON playlists
BEGIN
  INSERT INTO playlists_fts(rowid, name) VALUES (new.id_playlist, new.name);
END;

CREATE TRIGGER IF NOT EXISTS update_playlist_fts
AFTER UPDATE OF name ON playlists
BEGIN
  DELETE FROM playlists_fts WHERE rowid = old.id_playlist;
  INSERT INTO playlists_fts(rowid, name) VALUES (new.id_playlist, new.name);
END;

CREATE TRIGGER IF NOT EXISTS delete_playlist_fts
AFTER DELETE ON playlists
BEGIN
  DELETE FROM playlists_fts WHERE rowid = old.id_playlist;
END;
`

// historyTriggers bound the stream history to its last 100 entries.
const historyTriggers = `
CREATE TRIGGER IF NOT EXISTS limit_history
AFTER INSERT ON history
BEGIN
  DELETE FROM history WHERE id_record IN (
    SELECT id_record FROM history
    ORDER BY insertion_date DESC, id_record DESC
    LIMIT -1 OFFSET 100
  );
END;
`

// createSchema creates all tables, triggers and the reserved rows. The
// statements are idempotent; a fresh database ends up at modelVersion.
func createSchema(tx *Tx) error {
	for _, block := range []string{
		schemaModel13,
		presenceTriggers,
		aggregateTriggers,
		ftsTriggers,
		historyTriggers,
	} {
		if _, err := tx.Exec(block); err != nil {
			return err
		}
	}

	_, err := tx.Exec(`
		INSERT OR IGNORE INTO artists (id_artist, name, nb_albums, nb_tracks, is_present)
		VALUES (?, 'Unknown Artist', 0, 0, 1), (?, 'Various Artists', 0, 0, 1)`,
		UnknownArtistID, VariousArtistID)
	return err
}

// dropPresenceTriggers removes the presence trigger set so a migration
// can recreate it with current semantics.
func dropPresenceTriggers(tx *Tx) error {
	for _, name := range []string{
		"device_presence", "folder_presence", "file_presence",
		"media_presence", "track_presence", "album_presence",
	} {
		if _, err := tx.Exec("DROP TRIGGER IF EXISTS " + name); err != nil {
			return err
		}
	}
	return nil
}
