package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rx3lixir/voicebank/internal/apierror"
	"github.com/rx3lixir/voicebank/internal/duration"
	"github.com/rx3lixir/voicebank/internal/flow"
	"github.com/rx3lixir/voicebank/internal/recorder"
	"github.com/rx3lixir/voicebank/internal/script"
	"github.com/rx3lixir/voicebank/internal/upload"
)

// console drives one contributor through the flow on a terminal
type console struct {
	flow    *flow.Flow
	lines   <-chan string
	out     io.Writer
	keepDir string
}

func newConsole(f *flow.Flow, in io.Reader, out io.Writer) *console {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
	}()

	return &console{flow: f, lines: lines, out: out}
}

func (c *console) run(ctx context.Context) error {
	for {
		option, ok := c.chooseTier(ctx)
		if !ok {
			return ctx.Err()
		}

		loaded, ok := c.loadScript(ctx, option)
		if !ok {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}

		c.printf("\n%s\n\n%s\n\n", strings.ToUpper(option.Label), loaded.Script.Text)

		if quit := c.takes(ctx, option); quit {
			return ctx.Err()
		}
	}
}

// takes records until one is uploaded, it reports whether the user quit
func (c *console) takes(ctx context.Context, option duration.Option) bool {
	for {
		answer, ok := c.ask(ctx, "Press Enter to start recording, t to pick another duration, q to quit")
		switch {
		case !ok || answer == "q":
			return true
		case answer == "t":
			c.flow.Reset()
			return false
		}

		done, ok := c.record(ctx, option)
		if !ok {
			if ctx.Err() != nil {
				return true
			}
			c.flow.DiscardTake()
			continue
		}

		c.printf("Recorded %s.", clock(done.ElapsedSeconds))
		if path := done.Artifact.Playback.Path(); path != "" {
			c.printf(" Preview: %s", path)
		}
		c.printf("\n")

		answer, ok = c.ask(ctx, "u to upload, r to record again, q to quit")
		switch {
		case !ok || answer == "q":
			return true
		case answer == "r":
			c.flow.DiscardTake()
			continue
		}

		if c.upload(ctx) {
			c.flow.Reset()
			return false
		}
		if ctx.Err() != nil {
			return true
		}
		c.offerKeep(ctx, done.Artifact)
		c.flow.DiscardTake()
	}
}

// offerKeep lets the contributor save a take the service did not accept
func (c *console) offerKeep(ctx context.Context, a *recorder.Artifact) {
	answer, ok := c.ask(ctx, "k to keep this take on disk, anything else to discard it")
	if !ok || answer != "k" {
		return
	}
	path, err := keepTake(c.keepDir, a, time.Now())
	if err != nil {
		c.printf("Could not keep the take: %v\n", err)
		return
	}
	c.printf("Take saved to %s\n", path)
}

// keepTake writes the take under dir with a timestamped name
func keepTake(dir string, a *recorder.Artifact, now time.Time) (string, error) {
	if a == nil || len(a.Data) == 0 {
		return "", errors.New("nothing was recorded")
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("take-%s.%s", now.Format("20060102-150405"), a.Format))
	if err := os.WriteFile(path, a.Data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (c *console) chooseTier(ctx context.Context) (duration.Option, bool) {
	options := c.flow.Catalog().All()

	c.printf("\nHow long do you want to record?\n")
	for i, o := range options {
		c.printf("  %d) %s\n", i+1, o.Label)
	}

	for {
		answer, ok := c.ask(ctx, "Choose a number")
		if !ok {
			return duration.Option{}, false
		}
		n, err := strconv.Atoi(answer)
		if err == nil && n >= 1 && n <= len(options) {
			return options[n-1], true
		}
		c.printf("Please enter a number between 1 and %d.\n", len(options))
	}
}

func (c *console) loadScript(ctx context.Context, option duration.Option) (script.Loaded, bool) {
	if err := c.flow.SelectTier(ctx, option.ID); err != nil {
		c.printf("%v\n", err)
		return script.Loaded{}, false
	}
	c.printf("Fetching a script...\n")

	// Subscribing after the selection skips any result of an earlier one
	states, cancel := c.flow.Scripts().Subscribe(4)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return script.Loaded{}, false

		case s := <-states:
			switch s := s.(type) {
			case script.Loaded:
				if s.Option.ID == option.ID {
					return s, true
				}
			case script.Failed:
				c.printDetail(s.Detail)
				answer, ok := c.ask(ctx, "r to retry, anything else to go back")
				if !ok || answer != "r" {
					return script.Loaded{}, false
				}
				if err := c.flow.Scripts().Retry(ctx); err != nil {
					return script.Loaded{}, false
				}
			}
		}
	}
}

func (c *console) record(ctx context.Context, option duration.Option) (recorder.Completed, bool) {
	statuses, cancel := c.flow.Recorder().Subscribe(4)
	defer cancel()

	if err := c.flow.StartRecording(); err != nil {
		c.printf("%v\n", err)
		return recorder.Completed{}, false
	}

	maxSeconds := option.MaxDurationSeconds()
	lines := c.lines
	for {
		select {
		case <-ctx.Done():
			c.flow.Recorder().Reset()
			return recorder.Completed{}, false

		case line, ok := <-lines:
			if !ok {
				lines = nil
				c.flow.Stop()
				continue
			}
			if line == "p" {
				switch c.flow.Recorder().Status().(type) {
				case recorder.Paused:
					c.flow.Resume()
				default:
					c.flow.Pause()
				}
				continue
			}
			c.flow.Stop()

		case s := <-statuses:
			switch s := s.(type) {
			case recorder.Initializing:
				c.printf("%s\n", s.Message)
			case recorder.Recording:
				c.printf("\r● %s / %s   Enter to stop, p to pause ", clock(s.ElapsedSeconds), clock(maxSeconds))
			case recorder.Paused:
				c.printf("\r‖ %s / %s   p to resume          ", clock(s.TotalElapsedSeconds), clock(maxSeconds))
			case recorder.Completed:
				c.printf("\n")
				return s, true
			case recorder.Failed:
				c.printf("\n")
				c.printDetail(s.Detail)
				return recorder.Completed{}, false
			}
		}
	}
}

// upload submits the take and reports whether it was stored
func (c *console) upload(ctx context.Context) bool {
	if err := c.flow.Upload(ctx); err != nil {
		c.printf("%v\n", err)
		return false
	}

	states, cancel := c.flow.Uploads().Subscribe(4)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return false

		case s := <-states:
			switch s := s.(type) {
			case upload.Uploading:
				c.printf("\rUploading %3d%%", s.Progress)
			case upload.Succeeded:
				c.printf("\rUploading 100%%\nThank you! Recording %s stored.\n", s.Recording.ID)
				return true
			case upload.Failed:
				c.printf("\n")
				c.printDetail(s.Detail)
				if !s.Retryable {
					return false
				}
				answer, ok := c.ask(ctx, "r to retry the upload, anything else to skip")
				if !ok || answer != "r" || !c.flow.RetryUpload(ctx) {
					return false
				}
			}
		}
	}
}

func (c *console) ask(ctx context.Context, prompt string) (string, bool) {
	c.printf("%s: ", prompt)
	select {
	case <-ctx.Done():
		return "", false
	case line, ok := <-c.lines:
		return strings.ToLower(line), ok
	}
}

func (c *console) printDetail(d apierror.Detail) {
	c.printf("✗ %s\n", d.Title)
	if d.Details != "" {
		c.printf("  %s\n", d.Details)
	}
	for _, s := range d.Suggestions {
		c.printf("  → %s\n", s.Message)
	}
}

func (c *console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

func clock(seconds int) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
