// Package mpd reads the current song from an MPD server so it can be
// resolved and followed with synchronized lyrics.
package mpd

import (
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/fhs/gompd/v2/mpd"
	"github.com/rs/zerolog/log"
)

// Track is the song MPD is currently playing.
type Track struct {
	File     string  `json:"file"`
	Artist   string  `json:"artist"`
	Title    string  `json:"title"`
	State    string  `json:"state"`
	Elapsed  float64 `json:"elapsed"`
	Duration float64 `json:"duration"`
}

// Playing reports whether a song is loaded.
func (t *Track) Playing() bool {
	return t.File != ""
}

// Path joins the song's library-relative file name onto musicDir. Absolute
// and URL-like names are returned unchanged.
func (t *Track) Path(musicDir string) string {
	if musicDir == "" || filepath.IsAbs(t.File) {
		return t.File
	}
	return filepath.Join(musicDir, filepath.FromSlash(t.File))
}

func trackFromAttrs(song, status mpd.Attrs) *Track {
	t := &Track{
		File:   song["file"],
		Artist: song["Artist"],
		Title:  song["Title"],
		State:  status["state"],
	}
	t.Elapsed, _ = strconv.ParseFloat(status["elapsed"], 64)
	if d, err := strconv.ParseFloat(status["duration"], 64); err == nil {
		t.Duration = d
	} else if d, err := strconv.ParseFloat(song["duration"], 64); err == nil {
		t.Duration = d
	}
	return t
}

// Client wraps the MPD client with reconnection logic.
type Client struct {
	mu       sync.Mutex
	client   *mpd.Client
	watcher  *mpd.Watcher
	stop     chan struct{} // closed to release the Watch forwarder
	host     string
	port     int
	password string
}

// NewClient creates a new MPD client wrapper.
func NewClient(host string, port int, password string) *Client {
	return &Client{
		host:     host,
		port:     port,
		password: password,
	}
}

func (c *Client) addr() string {
	return fmt.Sprintf("%s:%d", c.host, c.port)
}

// Connect establishes connection to MPD.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.connectLocked()
}

// connectLocked establishes connection (must hold lock).
func (c *Client) connectLocked() error {
	log.Debug().Str("addr", c.addr()).Msg("Connecting to MPD")

	client, err := mpd.Dial("tcp", c.addr())
	if err != nil {
		return fmt.Errorf("failed to connect to MPD: %w", err)
	}

	if c.password != "" {
		if err := client.Command("password %s", c.password).OK(); err != nil {
			client.Close()
			return fmt.Errorf("MPD authentication failed: %w", err)
		}
	}

	c.client = client
	return nil
}

// ensureConnected checks connection and reconnects if needed (must hold lock).
func (c *Client) ensureConnected() error {
	if c.client == nil {
		return c.connectLocked()
	}

	if err := c.client.Ping(); err != nil {
		log.Warn().Err(err).Msg("MPD connection lost, reconnecting...")
		c.client.Close()
		c.client = nil
		return c.connectLocked()
	}

	return nil
}

// Close closes the MPD connection and any watcher.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopWatchLocked()

	if c.client != nil {
		err := c.client.Close()
		c.client = nil
		return err
	}
	return nil
}

// NowPlaying returns the current song and playback position. A stopped
// player yields a Track with an empty File.
func (c *Client) NowPlaying() (*Track, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureConnected(); err != nil {
		return nil, err
	}

	status, err := c.client.Status()
	if err != nil {
		return nil, fmt.Errorf("mpd status: %w", err)
	}
	song, err := c.client.CurrentSong()
	if err != nil {
		return nil, fmt.Errorf("mpd current song: %w", err)
	}

	return trackFromAttrs(song, status), nil
}

// Watch starts watching for MPD subsystem changes.
// Returns a channel that receives subsystem names when they change. The
// channel is closed by Close or by the next call to Watch.
func (c *Client) Watch(subsystems ...string) (<-chan string, error) {
	watcher, err := mpd.NewWatcher("tcp", c.addr(), c.password, subsystems...)
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	stop := make(chan struct{})

	c.mu.Lock()
	c.stopWatchLocked()
	c.watcher = watcher
	c.stop = stop
	c.mu.Unlock()

	ch := make(chan string, 10)

	go func() {
		defer close(ch)
		for {
			select {
			case <-stop:
				return
			case subsystem, ok := <-watcher.Event:
				if !ok {
					return
				}
				select {
				case ch <- subsystem:
				case <-stop:
					return
				}
			case err, ok := <-watcher.Error:
				if !ok {
					return
				}
				log.Error().Err(err).Msg("MPD watcher error")
				select {
				case <-time.After(time.Second):
				case <-stop:
					return
				}
			}
		}
	}()

	return ch, nil
}

// stopWatchLocked releases the forwarder before closing the watcher, which
// waits for its idle loop (must hold lock).
func (c *Client) stopWatchLocked() {
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
	if c.watcher != nil {
		c.watcher.Close()
		c.watcher = nil
	}
}
