// Package ffprobe provides media duration probing through the ffprobe
// executable.
package ffprobe

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var ErrUnconfigured = errors.New("ffprobe not configured")

// Probe wraps a configured ffprobe binary. Probing a URL inherits the
// caller's context, so a deadline there bounds the wait.
type Probe struct {
	ffprobe string
}

func (p *Probe) Configure(path string) {
	p.ffprobe = path
}

func (p *Probe) ensureConfigured() error {
	if p.ffprobe == "" {
		return ErrUnconfigured
	}
	return nil
}

func (p *Probe) command(ctx context.Context, args []string) *exec.Cmd {
	return exec.CommandContext(ctx, p.ffprobe, args...)
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Duration returns the duration in seconds of the media at url.
func (p *Probe) Duration(ctx context.Context, url string) (float64, error) {
	if err := p.ensureConfigured(); err != nil {
		return 0, err
	}

	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		url,
	}

	out, err := p.command(ctx, args).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return 0, fmt.Errorf("ffprobe %s: %s", url, string(exitErr.Stderr))
		}
		return 0, fmt.Errorf("ffprobe %s: %w", url, err)
	}

	var parsed probeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return 0, fmt.Errorf("parsing ffprobe output for %s: %w", url, err)
	}

	d, err := strconv.ParseFloat(parsed.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe returned no duration for %s", url)
	}
	if d <= 0 {
		return 0, fmt.Errorf("ffprobe returned non-positive duration for %s", url)
	}

	return d, nil
}
