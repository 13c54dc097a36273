package cmd

import (
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/hitreq/packages/http"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// downloadBar renders socket download progress. The bar is created on the
// first event, once the announced length is known.
type downloadBar struct {
	w   io.Writer
	bar *progressbar.ProgressBar
}

func (d *downloadBar) update(p http.ProgressEvent) {
	if d.bar == nil {
		total := p.Total
		if total <= 0 {
			total = -1
		}
		d.bar = progressbar.NewOptions64(
			total,
			progressbar.OptionSetWriter(d.w),
			progressbar.OptionSetDescription("downloading"),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(30),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}
	_ = d.bar.Set64(p.Loaded)
}

func (d *downloadBar) finish() {
	if d.bar != nil {
		_ = d.bar.Finish()
	}
}

// wantProgress shows the bar when asked to, or when the body goes to a file
// and stderr is a terminal.
func wantProgress(forced bool, output string) bool {
	if forced {
		return true
	}
	if output == "" {
		return false
	}
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
