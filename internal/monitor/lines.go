package monitor

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"ccwatch/internal/transcript"
)

// Only newline-terminated lines count. A trailing partial line is left for a
// later read once the writer finishes it.

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, 64*1024)
	count := 0
	for {
		n, err := f.Read(buf)
		count += bytes.Count(buf[:n], []byte{'\n'})
		if errors.Is(err, io.EOF) {
			return count, nil
		}
		if err != nil {
			return 0, fmt.Errorf("read %s: %w", path, err)
		}
	}
}

// readNewLines skips the first skip lines and parses the complete lines after
// them. consumed counts every complete line read, parsed or not.
func readNewLines(path string, skip int) (records []transcript.Record, consumed int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 64*1024)
	for skipped := 0; skipped < skip; {
		_, err := r.ReadSlice('\n')
		switch {
		case err == nil:
			skipped++
		case errors.Is(err, bufio.ErrBufferFull):
			// long line, keep reading it
		case errors.Is(err, io.EOF):
			return nil, 0, nil
		default:
			return nil, 0, fmt.Errorf("read %s: %w", path, err)
		}
	}

	for {
		line, err := r.ReadBytes('\n')
		if errors.Is(err, io.EOF) {
			return records, consumed, nil
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read %s: %w", path, err)
		}
		consumed++
		if rec, ok := transcript.ParseLine(line); ok {
			records = append(records, rec)
		}
	}
}
