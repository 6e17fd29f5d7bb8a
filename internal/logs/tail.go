package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const pollInterval = 250 * time.Millisecond

// TailOptions selects which lines Tail returns.
type TailOptions struct {
	// Offset is a byte position from a previous result. Negative means
	// "start from the last Limit lines".
	Offset int64
	Limit  int
	Follow bool
	Wait   time.Duration
	Filter Filter
}

// TailResult carries matched lines and the offset for the next call.
type TailResult struct {
	Lines  []string
	Offset int64
}

// Tail reads log lines from path. A missing file yields no lines and offset 0
// so callers can start tailing before the daemon has logged anything.
func Tail(ctx context.Context, path string, opts TailOptions) (TailResult, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return TailResult{}, nil
	}
	if err != nil {
		return TailResult{Offset: opts.Offset}, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return TailResult{Offset: opts.Offset}, fmt.Errorf("log path %q is a directory", path)
	}
	wait := max(opts.Wait, 0)

	var res TailResult
	if opts.Offset < 0 {
		res, err = lastLines(path, opts.Limit, opts.Filter)
	} else {
		offset := opts.Offset
		if offset > info.Size() {
			// Rotated or truncated underneath us.
			offset = 0
		}
		res, err = linesFrom(path, offset, opts.Filter)
	}
	if err != nil || len(res.Lines) > 0 || !opts.Follow || wait == 0 {
		return res, err
	}
	return poll(ctx, path, res.Offset, wait, opts.Filter)
}

func lastLines(path string, limit int, filter Filter) (TailResult, error) {
	if limit <= 0 {
		info, err := os.Stat(path)
		if err != nil {
			return TailResult{}, fmt.Errorf("stat log file: %w", err)
		}
		return TailResult{Offset: info.Size()}, nil
	}
	ring := make([]string, 0, limit)
	offset, err := scan(path, 0, func(line string) {
		if !filter.Match(line) {
			return
		}
		if len(ring) == limit {
			copy(ring, ring[1:])
			ring = ring[:limit-1]
		}
		ring = append(ring, line)
	})
	if err != nil {
		return TailResult{}, err
	}
	return TailResult{Lines: ring, Offset: offset}, nil
}

func linesFrom(path string, offset int64, filter Filter) (TailResult, error) {
	var lines []string
	next, err := scan(path, offset, func(line string) {
		if filter.Match(line) {
			lines = append(lines, line)
		}
	})
	if err != nil {
		return TailResult{Offset: offset}, err
	}
	return TailResult{Lines: lines, Offset: next}, nil
}

func poll(ctx context.Context, path string, offset int64, wait time.Duration, filter Filter) (TailResult, error) {
	deadline := time.NewTimer(wait)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return TailResult{Offset: offset}, ctx.Err()
		case <-deadline.C:
			return TailResult{Offset: offset}, nil
		case <-ticker.C:
		}
		res, err := linesFrom(path, offset, filter)
		if err != nil {
			return res, err
		}
		offset = res.Offset
		if len(res.Lines) > 0 {
			return res, nil
		}
	}
}

// scan calls fn for every complete line after offset and returns the offset
// just past the last complete line. A trailing partial line is left for the
// next call.
func scan(path string, offset int64, fn func(string)) (int64, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset, fmt.Errorf("seek log file: %w", err)
	}

	reader := bufio.NewReaderSize(file, 64*1024)
	pos := offset
	for {
		line, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) {
			return pos, nil
		}
		if err != nil {
			return pos, fmt.Errorf("read log file: %w", err)
		}
		pos += int64(len(line))
		fn(trimNewline(line))
	}
}

func trimNewline(line string) string {
	line = line[:len(line)-1]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line
}
