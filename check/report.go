package check

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
)

// TextPrinter renders a Report for a terminal.
type TextPrinter struct {
	pass, fail, fatal, dim *color.Color
}

// NewTextPrinter returns a printer; noColor disables ANSI colors.
func NewTextPrinter(noColor bool) *TextPrinter {
	p := &TextPrinter{
		pass:  color.New(color.FgGreen, color.Bold),
		fail:  color.New(color.FgRed, color.Bold),
		fatal: color.New(color.FgHiRed, color.Bold),
		dim:   color.New(color.Faint),
	}
	if noColor {
		for _, c := range []*color.Color{p.pass, p.fail, p.fatal, p.dim} {
			c.DisableColor()
		}
	}
	return p
}

// Print writes one line per check, the diagnostics of failed checks and a
// summary line.
func (p *TextPrinter) Print(w io.Writer, rep *Report) error {
	var b strings.Builder

	if rep.Fatal != nil || rep.FatalMessage != "" {
		fmt.Fprintf(&b, "%s %s\n\n", p.fatal.Sprint("FATAL"), rep.FatalMessage)
		fmt.Fprintf(&b, "no checks run\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	width := 0
	for _, res := range rep.Results {
		if len(res.Name) > width {
			width = len(res.Name)
		}
	}
	for _, res := range rep.Results {
		status := p.pass.Sprint("PASS")
		if !res.Passed {
			status = p.fail.Sprint("FAIL")
		}
		fmt.Fprintf(&b, "%s  %-*s  %s\n", status, width, res.Name, p.dim.Sprint(fmtDuration(res.Duration)))
		if res.Passed {
			continue
		}
		fmt.Fprintf(&b, "      %s\n", res.Message)
		if res.Screenshot != "" {
			fmt.Fprintf(&b, "      screenshot: %s\n", res.Screenshot)
		}
	}

	passed := len(rep.Results) - rep.Failed()
	fmt.Fprintf(&b, "\n%d passed, %d failed in %s\n", passed, rep.Failed(), fmtDuration(rep.Duration))
	if rep.TeardownError != "" {
		fmt.Fprintf(&b, "teardown: %s\n", rep.TeardownError)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func fmtDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}

// WriteJSON writes rep as indented JSON.
func WriteJSON(w io.Writer, rep *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return nil
}
