package model

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Label is one classifier class. ID holds the WordNet synset id when the
// label file provides one.
type Label struct {
	ID   string
	Name string
}

// ParseLabel parses a single label line. Both "cellular_telephone" and
// "n02992529 cellular_telephone" forms are accepted.
func ParseLabel(line string) (Label, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Label{}, fmt.Errorf("empty label line")
	}

	id, rest, found := strings.Cut(trimmed, " ")
	if found && isSynsetID(id) {
		name := strings.TrimSpace(rest)
		if name == "" {
			return Label{}, fmt.Errorf("missing label name after id %q", id)
		}
		return Label{ID: id, Name: name}, nil
	}
	return Label{Name: trimmed}, nil
}

func isSynsetID(s string) bool {
	if len(s) != 9 || s[0] != 'n' {
		return false
	}
	for _, r := range s[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ReadLabels reads one label per line, skipping blank lines and # comments.
func ReadLabels(r io.Reader) ([]Label, error) {
	var labels []Label
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		label, err := ParseLabel(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		labels = append(labels, label)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read labels: %w", err)
	}
	return labels, nil
}

// LoadLabels reads labels from a file on disk.
func LoadLabels(path string) ([]Label, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open labels: %w", err)
	}
	defer f.Close()

	return ReadLabels(f)
}

// LabelsFromClasses converts the metadata class list into labels.
func LabelsFromClasses(classes []string) ([]Label, error) {
	labels := make([]Label, 0, len(classes))
	for i, class := range classes {
		label, err := ParseLabel(class)
		if err != nil {
			return nil, fmt.Errorf("class %d: %w", i, err)
		}
		labels = append(labels, label)
	}
	return labels, nil
}
