// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package logger sets up structured logging for commands and provides a
// thread-safe [io.Writer] that keeps recent log lines in a ring buffer so they
// can be streamed over HTTP or retrieved as a snapshot.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
)

// Logf is the basic logger type: a printf-like func. Like [log.Printf], the
// format need not end in a newline. Logf functions must be safe for concurrent
// use.
type Logf func(format string, args ...any)

// Write implements the [io.Writer] interface.
func (f Logf) Write(p []byte) (n int, err error) {
	f("%s", p)
	return len(p), nil
}

// Options configure a logger created by [New].
type Options struct {
	// Out receives every formatted record.
	Out io.Writer
	// Streamer, if not nil, receives a copy of every record.
	Streamer Streamer
	// Level controls the minimum level. If nil, slog.LevelInfo is used.
	Level slog.Leveler
	// Scrubber, if not nil, replaces secrets in formatted records before they
	// reach Out or Streamer.
	Scrubber *strings.Replacer
}

// New returns a [slog.Logger] writing text records as described by opts.
func New(opts Options) *slog.Logger {
	var w io.Writer = opts.Out
	if w == nil {
		w = io.Discard
	}
	if opts.Streamer != nil {
		w = io.MultiWriter(w, opts.Streamer)
	}
	if opts.Scrubber != nil {
		w = &scrubWriter{w: w, r: opts.Scrubber}
	}
	level := opts.Level
	if level == nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

type scrubWriter struct {
	w io.Writer
	r *strings.Replacer
}

func (sw *scrubWriter) Write(p []byte) (int, error) {
	if _, err := io.WriteString(sw.w, sw.r.Replace(string(p))); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Streamer is an io.Writer that contains all logged lines and allows to
// stream them.
type Streamer interface {
	io.Writer
	http.Handler

	// Lines returns all logged lines, oldest first.
	Lines() []string

	// Stream generates a new channel which will stream any newly logged lines.
	// Deregister the stream by calling the close function.
	Stream() (<-chan string, func())
}

// NewStreamer returns a new Streamer that keeps the last size lines.
func NewStreamer(size int) Streamer {
	if size < 1 {
		size = 1
	}
	return &ringStreamer{
		lines:   make([]string, size),
		streams: make(map[chan string]struct{}),
	}
}

type ringStreamer struct {
	mu      sync.RWMutex
	lines   []string // ring; next is the slot to overwrite
	next    int
	full    bool
	partial string // incomplete trailing line from the previous Write
	streams map[chan string]struct{}
}

func (rs *ringStreamer) Write(b []byte) (int, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	text := rs.partial + string(b)
	for {
		before, after, ok := strings.Cut(text, "\n")
		if !ok {
			break
		}
		line := before + "\n"
		rs.lines[rs.next] = line
		rs.next = (rs.next + 1) % len(rs.lines)
		if rs.next == 0 {
			rs.full = true
		}
		for stream := range rs.streams {
			select {
			case stream <- line:
			default:
				// Slow readers miss lines.
			}
		}
		text = after
	}
	rs.partial = text
	return len(b), nil
}

func (rs *ringStreamer) Lines() []string {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	if !rs.full {
		return append([]string(nil), rs.lines[:rs.next]...)
	}
	out := make([]string, 0, len(rs.lines))
	out = append(out, rs.lines[rs.next:]...)
	return append(out, rs.lines[:rs.next]...)
}

func (rs *ringStreamer) Stream() (<-chan string, func()) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	stream := make(chan string, len(rs.lines)+1)
	rs.streams[stream] = struct{}{}

	var once sync.Once
	return stream, func() {
		once.Do(func() {
			rs.mu.Lock()
			defer rs.mu.Unlock()
			delete(rs.streams, stream)
			close(stream)
		})
	}
}

// ServeHTTP writes the buffered lines and then streams new ones until the
// client goes away. Clients that accept text/event-stream get server-sent
// events.
func (rs *ringStreamer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")

	sse := strings.Contains(strings.ToLower(r.Header.Get("Accept")), "text/event-stream")
	if sse {
		w.Header().Set("Content-Type", "text/event-stream")
	} else {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}

	stream, closeStream := rs.Stream()
	defer closeStream()

	write := func(line string) {
		if sse {
			fmt.Fprintf(w, "event: logline\ndata: %s\n\n", strings.TrimSuffix(line, "\n"))
		} else {
			io.WriteString(w, line)
		}
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}

	for _, line := range rs.Lines() {
		write(line)
	}

	for {
		select {
		case line := <-stream:
			write(line)
		case <-r.Context().Done():
			return
		}
	}
}

var _ Streamer = (*ringStreamer)(nil)
