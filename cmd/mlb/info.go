package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/franz/medialib/internal/library"
	"github.com/franz/medialib/internal/store"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show catalog statistics",
	RunE:  runInfo,
}

var searchCmd = &cobra.Command{
	Use:   "search <pattern>",
	Short: "Full-text search over the catalog",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(searchCmd)
}

func openLibrary() (*library.Library, error) {
	lib := library.New()
	if res := lib.Initialize(viper.GetString("db"), viper.GetString("thumbnails"), nil, nil); res == library.InitFailed {
		return nil, fmt.Errorf("library initialization failed")
	}
	return lib, nil
}

func runInfo(cmd *cobra.Command, args []string) error {
	lib, err := openLibrary()
	if err != nil {
		return err
	}
	defer lib.Stop()

	audio, err := lib.AudioFiles(store.SortDefault, false)
	if err != nil {
		return err
	}
	video, err := lib.VideoFiles(store.SortDefault, false)
	if err != nil {
		return err
	}
	albums, err := lib.Albums(store.SortDefault, false)
	if err != nil {
		return err
	}
	artists, err := lib.Artists(true, false)
	if err != nil {
		return err
	}
	genres, err := lib.Genres()
	if err != nil {
		return err
	}
	playlists, err := lib.Playlists()
	if err != nil {
		return err
	}
	roots, err := lib.EntryPoints()
	if err != nil {
		return err
	}

	fmt.Printf("Entry points: %d\n", len(roots))
	fmt.Printf("Audio:        %d\n", len(audio))
	fmt.Printf("Video:        %d\n", len(video))
	fmt.Printf("Albums:       %d\n", len(albums))
	fmt.Printf("Artists:      %d\n", len(artists))
	fmt.Printf("Genres:       %d\n", len(genres))
	fmt.Printf("Playlists:    %d\n", len(playlists))
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	lib, err := openLibrary()
	if err != nil {
		return err
	}
	defer lib.Stop()

	res, err := lib.Search(args[0])
	if err != nil {
		return err
	}
	for _, m := range res.Media {
		dur := time.Duration(m.Duration) * time.Millisecond
		fmt.Printf("media   %6d  %s (%s)\n", m.ID, m.Title, dur)
	}
	for _, a := range res.Albums {
		fmt.Printf("album   %6d  %s (%d tracks)\n", a.ID, a.Title, a.NbTracks)
	}
	for _, a := range res.Artists {
		fmt.Printf("artist  %6d  %s\n", a.ID, a.Name)
	}
	for _, g := range res.Genres {
		fmt.Printf("genre   %6d  %s\n", g.ID, g.Name)
	}
	for _, p := range res.Playlists {
		fmt.Printf("playlist %5d  %s\n", p.ID, p.Name)
	}
	return nil
}
