package store

import (
	"fmt"
	"testing"
)

func TestStreamHistoryIsBounded(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 150; i++ {
		if err := s.AddToStreamHistory(fmt.Sprintf("http://example.com/stream-%d", i)); err != nil {
			t.Fatalf("failed to record history: %v", err)
		}
	}

	entries, err := s.LastStreamsPlayed()
	if err != nil {
		t.Fatalf("failed to list history: %v", err)
	}
	if len(entries) > 100 {
		t.Errorf("history grew to %d entries, cap is 100", len(entries))
	}
	// The most recent entry survives the trim.
	if entries[0].Mrl != "http://example.com/stream-149" {
		t.Errorf("unexpected head of history: %s", entries[0].Mrl)
	}
}

func TestStreamHistoryReplayMovesToTop(t *testing.T) {
	s := openTestStore(t)

	s.AddToStreamHistory("mrl://a")
	s.AddToStreamHistory("mrl://b")
	s.AddToStreamHistory("mrl://a")

	entries, err := s.LastStreamsPlayed()
	if err != nil {
		t.Fatalf("failed to list history: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("replay must not duplicate, got %d entries", len(entries))
	}
	if entries[0].Mrl != "mrl://a" {
		t.Errorf("replayed stream is not first: %s", entries[0].Mrl)
	}
}

func TestClearHistory(t *testing.T) {
	s := openTestStore(t)

	m, _ := s.CreateMedia("played", MediaTypeAudio, false)
	s.IncreasePlayCount(m)
	s.AddToStreamHistory("mrl://gone")

	if err := s.ClearHistory(); err != nil {
		t.Fatalf("failed to clear history: %v", err)
	}
	if entries, _ := s.LastStreamsPlayed(); len(entries) != 0 {
		t.Error("stream history not cleared")
	}
	reloaded, _ := s.Media(m.ID)
	if reloaded.PlayCount != 0 {
		t.Errorf("play count not reset: %d", reloaded.PlayCount)
	}
	if media, _ := s.LastMediaPlayed(); len(media) != 0 {
		t.Error("media history not cleared")
	}
}

func TestLastMediaPlayedOrder(t *testing.T) {
	s := openTestStore(t)

	first, _ := s.CreateMedia("first", MediaTypeAudio, false)
	second, _ := s.CreateMedia("second", MediaTypeAudio, false)
	s.IncreasePlayCount(first)
	s.IncreasePlayCount(second)

	// Force distinct play dates.
	s.Exec("UPDATE media SET last_played_date = 100 WHERE id_media = ?", first.ID)
	s.Exec("UPDATE media SET last_played_date = 200 WHERE id_media = ?", second.ID)
	s.cache.Clear()

	media, err := s.LastMediaPlayed()
	if err != nil {
		t.Fatalf("failed to list media history: %v", err)
	}
	if len(media) != 2 || media[0].ID != second.ID {
		t.Errorf("unexpected media history order")
	}
}
