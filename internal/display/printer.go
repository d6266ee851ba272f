// Package display renders pipeline results for a terminal.
package display

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Config controls what to display and how.
type Config struct {
	Short   bool
	NoColor bool
	NoEmoji bool
	TZ      string
	// Out defaults to os.Stdout.
	Out io.Writer
}

// Printer handles formatted output with configurable colors and emojis.
type Printer struct {
	cfg Config
	out io.Writer
	loc *time.Location
	// ANSI codes (empty when NoColor)
	reset, bold, dim         string
	red, green, yellow, cyan string
	white                    string
}

// NewPrinter creates a Printer with the given config.
func NewPrinter(cfg Config) *Printer {
	p := &Printer{cfg: cfg, out: cfg.Out, loc: parseTZ(cfg.TZ)}
	if p.out == nil {
		p.out = os.Stdout
	}
	if !cfg.NoColor {
		p.reset = "\033[0m"
		p.bold = "\033[1m"
		p.dim = "\033[2m"
		p.red = "\033[31m"
		p.green = "\033[32m"
		p.yellow = "\033[33m"
		p.cyan = "\033[36m"
		p.white = "\033[37m"
	}
	return p
}

// JSON writes v as indented JSON.
func (p *Printer) JSON(v any) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --- Output helpers ---

func (p *Printer) printf(format string, args ...any) {
	fmt.Fprintf(p.out, format, args...)
}

func (p *Printer) println() {
	fmt.Fprintln(p.out)
}

func (p *Printer) emoji(emojiStr, fallback string) string {
	if p.cfg.NoEmoji {
		return fallback
	}
	return emojiStr
}

func (p *Printer) section(title string) {
	p.printf("%s━━━ %s ━━━%s\n", p.cyan, title, p.reset)
}

const labelWidth = 19

func (p *Printer) row(icon, label, value string) {
	padding := labelWidth - len(label) - 1
	if padding < 1 {
		padding = 1
	}
	p.printf("%s %s:%s %s\n", icon, label, strings.Repeat(" ", padding), value)
}

func (p *Printer) statusRow(icon, color, title, reason string) {
	value := fmt.Sprintf("%s%s%s", color, title, p.reset)
	if reason != "" {
		value += fmt.Sprintf("  %s(%s)%s", p.dim, reason, p.reset)
	}
	p.row(icon, "Status", value)
}
