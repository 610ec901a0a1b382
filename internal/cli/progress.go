package cli

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/Veraticus/seco/internal/model"
	"github.com/Veraticus/seco/internal/sweep"
)

func newBar(w io.Writer, total int64, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(w); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
}

// ProgressObserver draws one progress bar per class while a decision list is learned.
// The bar counts the weight of covered positive examples.
type ProgressObserver struct {
	writer io.Writer
	bar    *progressbar.ProgressBar
	limit  int64
	done   int64
	rules  int
}

// NewProgressObserver creates an observer writing to w.
func NewProgressObserver(w io.Writer) *ProgressObserver {
	return &ProgressObserver{writer: w}
}

// ClassStarted opens a bar for the positives of a class.
func (o *ProgressObserver) ClassStarted(class string, positives float64) {
	o.limit = int64(math.Ceil(positives))
	o.done = 0
	o.bar = newBar(o.writer, o.limit, fmt.Sprintf("[cyan][bold]Covering %s...[reset]", class))
}

// RuleAccepted advances the bar by the positives the rule covers.
func (o *ProgressObserver) RuleAccepted(_ string, r *model.Rule) {
	o.rules++
	if o.bar == nil {
		return
	}
	step := int64(math.Round(r.Stats().TP))
	if o.done+step > o.limit {
		step = o.limit - o.done
	}
	if step <= 0 {
		return
	}
	o.done += step
	if err := o.bar.Add64(step); err != nil {
		slog.Warn("Failed to update progress bar", "error", err)
	}
}

// ClassFinished completes the bar of the class.
func (o *ProgressObserver) ClassFinished(_ string, _ []*model.Rule) {
	if o.bar == nil {
		return
	}
	if err := o.bar.Finish(); err != nil {
		slog.Warn("Failed to finish progress bar", "error", err)
	}
	o.bar = nil
}

// Rules returns the number of rules accepted so far.
func (o *ProgressObserver) Rules() int {
	return o.rules
}

// SweepProgress returns a callback for sweep.WithProgress that advances a bar over
// total settings.
func SweepProgress(w io.Writer, total int) func(sweep.Result) {
	var mu sync.Mutex
	bar := newBar(w, int64(total), "[cyan][bold]Sweeping settings...[reset]")
	return func(res sweep.Result) {
		mu.Lock()
		defer mu.Unlock()
		if res.Err != nil {
			slog.Debug("Setting failed", "setting", res.Setting.String(), "error", res.Err)
		}
		if err := bar.Add(1); err != nil {
			slog.Warn("Failed to update progress bar", "error", err)
		}
	}
}
