// Package labels loads class-name tables for detection models.
//
// Two line formats are accepted, chosen by the first line:
//
//	0 person        explicit "<index> <label>" pairs
//	person          one label per line, the line number is the index
package labels

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Table maps class indices to labels. It is read-only once built.
type Table struct {
	labels map[int]string
}

// New builds a table from a map. The map is copied.
func New(m map[int]string) *Table {
	t := &Table{labels: make(map[int]string, len(m))}
	for k, v := range m {
		t.labels[k] = v
	}
	return t
}

// Lookup returns the label for classID.
func (t *Table) Lookup(classID int) (string, bool) {
	if t == nil {
		return "", false
	}
	l, ok := t.labels[classID]
	return l, ok
}

// Len returns the number of labels.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.labels)
}

// Load reads a label file from disk.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open label file: %w", err)
	}
	defer f.Close()

	t, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse label file %s: %w", path, err)
	}
	return t, nil
}

// Parse reads labels in either supported format.
func Parse(r io.Reader) (*Table, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	t := &Table{labels: make(map[int]string, len(lines))}
	if len(lines) == 0 {
		return t, nil
	}

	if !isIndexed(lines[0]) {
		for i, line := range lines {
			t.labels[i] = strings.TrimSpace(line)
		}
		return t, nil
	}

	for i, line := range lines {
		index, label, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("line %d: expected \"<index> <label>\", got %q", i+1, line)
		}
		id, err := strconv.Atoi(index)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid index %q", i+1, index)
		}
		t.labels[id] = strings.TrimSpace(label)
	}

	return t, nil
}

// isIndexed reports whether the first space-separated token is all digits.
func isIndexed(line string) bool {
	token, _, _ := strings.Cut(line, " ")
	if token == "" {
		return false
	}
	for _, r := range token {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
