package ui

import (
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
)

// ProgressBar is a thin wrapper so callers outside this package do not
// depend on the progressbar library directly.
type ProgressBar struct {
	bar *progressbar.ProgressBar
}

func NewProgressBar() *ProgressBar {
	return &ProgressBar{bar: progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("Exporting rows"),
		progressbar.OptionEnableColorCodes(false),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowBytes(false),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(15),
	)}
}

func (p *ProgressBar) Describe(desc string) {
	p.bar.Describe(desc)
}

func (p *ProgressBar) Add(n int) {
	p.bar.Add(n)
}

func (p *ProgressBar) Clear() {
	p.bar.Clear()
}
