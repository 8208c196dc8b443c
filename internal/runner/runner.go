// Package runner drives the detector over a list of images, one at a time.
package runner

import (
	"fmt"
	"io"

	"github.com/Brownie44l1/phonedetect/internal/detector"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
)

// Detector is the single-image operation the runner repeats.
type Detector interface {
	Detect(path string) detector.Result
}

// LineFormatter renders one console line per result.
type LineFormatter interface {
	Line(res detector.Result) string
}

// Options wires the runner's outputs. Progress, when set, receives a progress
// bar; keep it separate from Out so result lines stay clean.
type Options struct {
	Out      io.Writer
	Progress io.Writer
	Logger   logrus.FieldLogger
}

type Runner struct {
	detector  Detector
	formatter LineFormatter
	out       io.Writer
	progress  io.Writer
	log       logrus.FieldLogger
}

func New(d Detector, f LineFormatter, opts Options) *Runner {
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Runner{
		detector:  d,
		formatter: f,
		out:       out,
		progress:  opts.Progress,
		log:       log,
	}
}

// Run detects every path sequentially and returns results in input order,
// printing each line as soon as its image is done.
func (r *Runner) Run(paths []string) []detector.Result {
	var bar *progressbar.ProgressBar
	if r.progress != nil {
		bar = progressbar.NewOptions(len(paths),
			progressbar.OptionSetDescription("Detecting phones"),
			progressbar.OptionSetWriter(r.progress),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	results := make([]detector.Result, 0, len(paths))
	detected := 0
	for _, path := range paths {
		res := r.detector.Detect(path)
		results = append(results, res)
		if res.Detected {
			detected++
		}

		fmt.Fprintln(r.out, r.formatter.Line(res))
		if bar != nil {
			bar.Add(1)
		}
	}

	if bar != nil {
		bar.Finish()
	}

	r.log.WithFields(logrus.Fields{
		"images":   len(paths),
		"detected": detected,
	}).Info("Batch complete")

	return results
}
