package record

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
)

const maxLineSize = 64 * 1024 * 1024

// Line is one line of a prediction file. Exactly one of Record and Err is set.
type Line struct {
	Index  int
	Record *Record
	Err    error
}

// Read parses every line of r. Lines that fail to parse are returned with
// Err set and still consume their index.
func Read(r io.Reader) ([]Line, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var lines []Line
	for idx := 0; scanner.Scan(); idx++ {
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			lines = append(lines, Line{Index: idx, Err: fmt.Errorf("%w: empty line", ErrMalformed)})
			continue
		}
		rec, err := Parse(raw)
		lines = append(lines, Line{Index: idx, Record: rec, Err: err})
	}
	if err := scanner.Err(); err != nil {
		return lines, fmt.Errorf("scanning records: %w", err)
	}
	return lines, nil
}

// ReadFile parses a JSONL prediction file. A missing file yields an error
// satisfying errors.Is(err, fs.ErrNotExist).
func ReadFile(path string) ([]Line, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	lines, err := Read(f)
	if err != nil {
		return lines, fmt.Errorf("%s: %w", path, err)
	}
	return lines, nil
}
