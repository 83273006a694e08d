package playback

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/teslashibe/go-talk/pkg/audioconv"
)

// DefaultExecCommand plays raw PCM through ALSA.
var DefaultExecCommand = []string{"aplay", "-q", "-t", "raw", "-f", "S16_LE"}

// ExecPlayer pipes raw PCM into the stdin of a local command.
type ExecPlayer struct {
	command []string
	format  audioconv.Format
	logger  *slog.Logger

	mu  sync.Mutex
	cmd *exec.Cmd
}

// NewExecPlayer creates a player running command (name followed by args).
// For the default aplay command the rate and channel flags are appended.
func NewExecPlayer(command []string, format audioconv.Format, logger *slog.Logger) *ExecPlayer {
	if len(command) == 0 {
		command = append([]string{}, DefaultExecCommand...)
		command = append(command,
			"-r", strconv.Itoa(format.SampleRate),
			"-c", strconv.Itoa(format.Channels),
		)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecPlayer{
		command: command,
		format:  format,
		logger:  logger.With("component", "playback.exec"),
	}
}

// Play implements Player.
func (p *ExecPlayer) Play(ctx context.Context, r io.Reader) error {
	cmd := exec.CommandContext(ctx, p.command[0], p.command[1:]...)
	cmd.Stdin = r
	cmd.WaitDelay = time.Second

	p.mu.Lock()
	p.cmd = cmd
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.cmd = nil
		p.mu.Unlock()
	}()

	p.logger.Debug("starting playback command", "command", p.command[0])

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("run %s: %w", p.command[0], err)
	}
	return nil
}

// Stop implements Player.
func (p *ExecPlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd != nil && p.cmd.Process != nil {
		return p.cmd.Process.Kill()
	}
	return nil
}

// Name implements Player.
func (p *ExecPlayer) Name() string {
	return "exec"
}

var _ Player = (*ExecPlayer)(nil)
