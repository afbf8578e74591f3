package main

import (
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/franz/medialib/internal/library"
	"github.com/franz/medialib/internal/notifier"
)

var discoverCmd = &cobra.Command{
	Use:   "discover <path>...",
	Short: "Add entry points and index everything under them",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDiscover,
}

func init() {
	rootCmd.AddCommand(discoverCmd)
}

// cliCallback drives the progress bar from library notifications.
type cliCallback struct {
	notifier.NoopCallback
	bar  *progressbar.ProgressBar
	idle chan struct{}
}

func (c *cliCallback) OnParsingStatsUpdated(percent float64) {
	if c.bar != nil {
		c.bar.Set(int(percent))
	}
}

func (c *cliCallback) OnBackgroundTasksIdleChanged(idle bool) {
	if idle {
		select {
		case c.idle <- struct{}{}:
		default:
		}
	}
}

func runDiscover(cmd *cobra.Command, args []string) error {
	cb := &cliCallback{idle: make(chan struct{}, 1)}
	if !viper.GetBool("quiet") {
		cb.bar = progressbar.NewOptions(100,
			progressbar.OptionSetDescription("Indexing"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionThrottle(200*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}

	lib := library.New()
	switch lib.Initialize(viper.GetString("db"), viper.GetString("thumbnails"), cb, nil) {
	case library.InitFailed:
		return fmt.Errorf("library initialization failed")
	case library.InitDbReset:
		fmt.Println("database was reset; rebuilding the catalog")
	}
	defer lib.Stop()

	if !lib.Start() {
		return fmt.Errorf("library failed to start")
	}

	for _, path := range args {
		lib.Discover(path)
	}

	// Wait for both workers to drain.
	waitForIdle(lib, cb)
	if cb.bar != nil {
		cb.bar.Finish()
	}

	audio, err := lib.AudioFiles(0, false)
	if err != nil {
		return err
	}
	video, err := lib.VideoFiles(0, false)
	if err != nil {
		return err
	}
	albums, err := lib.Albums(0, false)
	if err != nil {
		return err
	}
	fmt.Printf("Indexed %d audio files, %d videos, %d albums\n",
		len(audio), len(video), len(albums))
	return nil
}

func waitForIdle(lib *library.Library, cb *cliCallback) {
	for {
		select {
		case <-cb.idle:
			if lib.IsIdle() {
				return
			}
		case <-time.After(200 * time.Millisecond):
			if lib.IsIdle() {
				return
			}
		}
	}
}
