// Package player hands stream URLs to an external media player.
package player

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Player plays one stream at a time.
type Player interface {
	Play(url string) error
	Stop() error
}

// ErrNoCommand is returned by NewCommand for a blank command line.
var ErrNoCommand = errors.New("player command is empty")

// Command runs an external program (mpv, vlc, ...) with the stream URL as
// its last argument. A process that exits with an error while it is the
// current stream is reported through OnError.
type Command struct {
	name string
	args []string
	log  *logrus.Entry

	// OnError receives unexpected exits with the URL of the stream that
	// exited. Set it before the first Play.
	OnError func(url string, err error)

	mu  sync.Mutex
	cmd *exec.Cmd
}

// NewCommand splits command on whitespace into a program and its leading arguments.
func NewCommand(command string, log *logrus.Entry) (*Command, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, ErrNoCommand
	}
	return &Command{name: fields[0], args: fields[1:], log: log}, nil
}

// Play stops the current stream, if any, and starts url.
func (c *Command) Play(url string) error {
	if err := c.Stop(); err != nil {
		return err
	}

	args := append(append([]string(nil), c.args...), url)
	cmd := exec.Command(c.name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", c.name, err)
	}

	c.mu.Lock()
	c.cmd = cmd
	c.mu.Unlock()
	c.log.WithFields(logrus.Fields{"pid": cmd.Process.Pid, "url": url}).Info("playback started")

	go c.wait(cmd, url)
	return nil
}

func (c *Command) wait(cmd *exec.Cmd, url string) {
	err := cmd.Wait()

	c.mu.Lock()
	current := c.cmd == cmd
	if current {
		c.cmd = nil
	}
	c.mu.Unlock()

	// Stopped or replaced processes are not failures.
	if !current || err == nil {
		return
	}
	c.log.WithError(err).WithField("url", url).Warn("player exited")
	if c.OnError != nil {
		c.OnError(url, fmt.Errorf("%s: %w", c.name, err))
	}
}

// Stop kills the current stream. It is a no-op when nothing plays.
func (c *Command) Stop() error {
	c.mu.Lock()
	cmd := c.cmd
	c.cmd = nil
	c.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("stop %s: %w", c.name, err)
	}
	c.log.WithField("pid", cmd.Process.Pid).Debug("playback stopped")
	return nil
}
