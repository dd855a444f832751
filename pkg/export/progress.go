package export

import (
	"github.com/charmbracelet/log"
)

// ProgressWriter receives the completed fraction of an export in [0, 1].
// Only one worker writes to it at a time, so implementations need not be
// safe for concurrent use.
type ProgressWriter interface {
	SetProgress(fraction float64)
}

// ProgressFunc adapts a function to ProgressWriter.
type ProgressFunc func(fraction float64)

func (f ProgressFunc) SetProgress(fraction float64) { f(fraction) }

type nopProgress struct{}

func (nopProgress) SetProgress(float64) {}

// NopProgress discards progress updates.
var NopProgress ProgressWriter = nopProgress{}

// LogProgress reports progress to a logger in steps of at least step.
type LogProgress struct {
	Logger *log.Logger
	Step   float64

	last float64
	seen bool
}

// NewLogProgress returns a LogProgress logging at debug level every 10%.
func NewLogProgress(l *log.Logger) *LogProgress {
	if l == nil {
		l = log.Default()
	}
	return &LogProgress{Logger: l, Step: 0.1}
}

func (p *LogProgress) SetProgress(fraction float64) {
	// a drop means a new export restarted the count
	if p.seen && fraction >= p.last && fraction < 1 && fraction-p.last < p.Step {
		return
	}
	p.seen = true
	p.last = fraction
	p.Logger.Debug("export progress", "percent", int(fraction*100+0.5))
}

// channelProgress maps the progress of channel k of n onto [k/n, (k+1)/n],
// so a multi-channel export reports one monotonic sequence.
type channelProgress struct {
	sink ProgressWriter
	k, n int
}

func (p channelProgress) SetProgress(fraction float64) {
	p.sink.SetProgress((float64(p.k) + fraction) / float64(p.n))
}
