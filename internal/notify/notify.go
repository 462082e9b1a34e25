package notify

import (
	"log/slog"
	"os/exec"
)

// Desktop sends fire-and-forget notifications via notify-send, with
// an optional audible chime. Failures are logged, never propagated.
type Desktop struct {
	ChimePath string // empty disables the chime
	Log       *slog.Logger
}

func NewDesktop(chimePath string, log *slog.Logger) *Desktop {
	return &Desktop{ChimePath: chimePath, Log: log}
}

func (d *Desktop) Notify(title, body string) {
	go func() {
		if d.ChimePath != "" {
			if err := Beep(d.ChimePath); err != nil {
				d.Log.Warn("chime failed", "err", err)
			}
		}

		if err := exec.Command("notify-send", title, body).Run(); err != nil {
			d.Log.Warn("notify-send failed", "err", err)
		}
	}()
}
