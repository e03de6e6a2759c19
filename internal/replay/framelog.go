package replay

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Datagram log format, one record per line:
//
//	# comment
//	START 2026-03-01T12:00:00Z
//	<offset_us> <hex datagram>
//
// offset_us is microseconds since the preceding START. A log may hold
// several sessions; on load they are laid end to end.

type Frame struct {
	At   time.Duration
	Data []byte
}

// Load parses a datagram log. Frame offsets are non-decreasing across the
// whole result.
func Load(r io.Reader) ([]Frame, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		frames  []Frame
		base    time.Duration // end of the previous sessions
		last    time.Duration
		lineNum int
	)
	for sc.Scan() {
		lineNum++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == "START" || strings.HasPrefix(line, "START ") {
			base = last
			continue
		}

		tsStr, hexStr, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("line %d: want \"<offset_us> <hex>\"", lineNum)
		}
		us, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil || us < 0 {
			return nil, fmt.Errorf("line %d: bad offset %q", lineNum, tsStr)
		}
		data, err := hex.DecodeString(strings.ReplaceAll(hexStr, " ", ""))
		if err != nil {
			return nil, fmt.Errorf("line %d: bad payload: %w", lineNum, err)
		}
		if len(data) == 0 {
			return nil, fmt.Errorf("line %d: empty payload", lineNum)
		}

		at := base + time.Duration(us)*time.Microsecond
		if at < last {
			at = last
		}
		last = at
		frames = append(frames, Frame{At: at, Data: data})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return frames, nil
}

func LoadFile(path string) ([]Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	frames, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return frames, nil
}

// Writer appends received datagrams to a log file. The first frame written
// sets the session origin.
type Writer struct {
	mu     sync.Mutex
	f      *os.File
	w      *bufio.Writer
	origin time.Time
	closed bool
}

// Create opens path for appending and starts a new session in it.
func Create(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &Writer{f: f, w: bufio.NewWriterSize(f, 64*1024)}, nil
}

// WriteFrame appends frame at its offset from the session start. Empty frames
// carry nothing to replay and are skipped.
func (w *Writer) WriteFrame(now time.Time, frame []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.New("datagram log is closed")
	}
	if len(frame) == 0 {
		return nil
	}
	if w.origin.IsZero() {
		w.origin = now
		if _, err := fmt.Fprintf(w.w, "START %s\n", now.UTC().Format(time.RFC3339Nano)); err != nil {
			return err
		}
	}
	d := now.Sub(w.origin)
	if d < 0 {
		d = 0
	}
	_, err := fmt.Fprintf(w.w, "%d %s\n", d.Microseconds(), hex.EncodeToString(frame))
	return err
}

func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	return w.w.Flush()
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.w.Flush(); err != nil {
		_ = w.f.Close()
		return err
	}
	return w.f.Close()
}
