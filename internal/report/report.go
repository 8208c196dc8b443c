// Package report renders detection results for the console and the results
// file.
package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/Brownie44l1/phonedetect/internal/detector"
	"gopkg.in/yaml.v3"
)

// Output formats for the results file.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Messages holds the words used in a result line.
type Messages struct {
	Detected    string
	NotDetected string
	None        string
}

var locales = map[string]Messages{
	"en": {Detected: "detected", NotDetected: "not detected", None: "none"},
	"zh": {Detected: "检测到手机", NotDetected: "未检测到手机", None: "无"},
}

// Locales lists the supported locale codes.
func Locales() []string {
	codes := make([]string, 0, len(locales))
	for code := range locales {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Formats lists the supported results file formats.
func Formats() []string {
	return []string{FormatText, FormatJSON, FormatYAML}
}

type Reporter struct {
	messages Messages
	format   string
}

// New returns a Reporter for the given locale and file format. An empty
// format means text.
func New(locale, format string) (*Reporter, error) {
	msgs, ok := locales[strings.ToLower(locale)]
	if !ok {
		return nil, fmt.Errorf("unsupported locale %q (want one of %v)", locale, Locales())
	}

	format = strings.ToLower(format)
	switch format {
	case "":
		format = FormatText
	case FormatText, FormatJSON, FormatYAML:
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}

	return &Reporter{messages: msgs, format: format}, nil
}

// Line renders one result as
// "<path>: <detected|not detected> (<label|none>, <pct>%)".
func (r *Reporter) Line(res detector.Result) string {
	status := r.messages.NotDetected
	if res.Detected {
		status = r.messages.Detected
	}
	label := res.Label
	if label == "" {
		label = r.messages.None
	}
	return fmt.Sprintf("%s: %s (%s, %.2f%%)", res.ImagePath, status, label, res.Probability*100)
}

// Write serializes results in the reporter's format.
func (r *Reporter) Write(w io.Writer, results []detector.Result) error {
	switch r.format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(results); err != nil {
			return err
		}
		return enc.Close()
	default:
		bw := bufio.NewWriter(w)
		for _, res := range results {
			if _, err := fmt.Fprintln(bw, r.Line(res)); err != nil {
				return err
			}
		}
		return bw.Flush()
	}
}

// WriteFile replaces the file at path with the rendered results.
func (r *Reporter) WriteFile(path string, results []detector.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create results file: %w", err)
	}

	if err := r.Write(f, results); err != nil {
		f.Close()
		return fmt.Errorf("failed to write results: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close results file: %w", err)
	}
	return nil
}
