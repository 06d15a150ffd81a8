package source

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// File reads newline-delimited documents from local files. Paths may be
// glob patterns; blank lines are skipped.
type File struct {
	Paths []string
}

func (f File) Name() string { return "file" }

func (f File) Fetch(ctx context.Context, _ string) ([]string, error) {
	docs := []string{}
	found := 0
	for _, p := range f.Paths {
		matches, _ := filepath.Glob(p)
		if matches == nil {
			matches = []string{p}
		}
		for _, m := range matches {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			lines, err := ReadLines(m)
			if err != nil {
				return nil, err
			}
			found++
			docs = append(docs, lines...)
		}
	}
	if found == 0 {
		return nil, fmt.Errorf("no document files found")
	}
	return docs, nil
}

// ReadLines returns the trimmed non-empty lines of path.
func ReadLines(path string) ([]string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	var lines []string
	sc := bufio.NewScanner(fh)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return lines, nil
}
