package display

import (
	"fmt"
	"time"

	"github.com/mamatnurahmat/devops-tools/internal/credentials"
	"github.com/mamatnurahmat/devops-tools/internal/deploy"
	"github.com/mamatnurahmat/devops-tools/internal/failure"
	"github.com/mamatnurahmat/devops-tools/internal/refs"
	"github.com/mamatnurahmat/devops-tools/internal/registry"
)

// Render prints the full or short form of a pipeline result.
func (p *Printer) Render(title string, r *deploy.Result) {
	if p.cfg.Short {
		p.printf("%s\n", p.statusLine(r))
		return
	}

	p.printHeader(title)
	if r.Reference != nil {
		p.printReference(r.Reference)
	}
	if r.Image != "" {
		p.printImage(r.Image, r.Availability)
	}
	if r.Decision != nil {
		p.printDecision(r.Decision)
	}
	p.printStatus(r)
}

// RenderRef prints a resolved reference on its own.
func (p *Printer) RenderRef(info *refs.Info) {
	if p.cfg.Short {
		p.printf("%s %s %s\n", info.Name, info.Kind, info.ShortHash)
		return
	}
	p.printHeader("Reference")
	p.printReference(info)
}

// Applied reports the outcome of executing a decision.
func (p *Printer) Applied(d *deploy.Decision, dryRun bool, err error) {
	switch {
	case err != nil:
		p.row(p.emoji("❌", "[X]"), "Apply", p.red+err.Error()+p.reset)
		if hint := failure.KindOf(err).Suggestion(); hint != "" {
			p.row(p.emoji("💡", "?"), "Hint", p.dim+hint+p.reset)
		}
	case d.Action == deploy.Skip:
		p.row(p.emoji("⏭️", "-"), "Apply", p.dim+"nothing to do"+p.reset)
	case dryRun:
		p.row(p.emoji("🧪", "~"), "Apply", p.yellow+"dry run, "+string(d.Action)+" not applied"+p.reset)
	default:
		p.row(p.emoji("🚀", ">"), "Apply", p.green+string(d.Action)+" applied to "+d.Target.String()+p.reset)
	}
	p.println()
}

// Check is one credential verification outcome.
type Check struct {
	Name string
	Pair credentials.Pair
	Err  error
}

// RenderChecks prints credential verification outcomes.
func (p *Printer) RenderChecks(checks []Check) {
	p.printHeader("Credentials")
	p.section(p.emoji("🔑", "[AUTH]") + " CREDENTIALS")
	for _, c := range checks {
		switch {
		case c.Err != nil:
			p.row(p.emoji("❌", "[X]"), c.Name, fmt.Sprintf("%s %s%s%s", c.Pair, p.red, c.Err, p.reset))
		default:
			p.row(p.emoji("✅", "[OK]"), c.Name, fmt.Sprintf("%s %saccepted%s", c.Pair, p.green, p.reset))
		}
	}
	p.println()
}

func (p *Printer) printHeader(title string) {
	now := time.Now().In(p.loc)
	p.println()
	p.printf("%s%s%s doq %s%s\n", p.bold, p.white, p.emoji("🚢", ">>"), title, p.reset)
	p.printf("   %s%s%s (%s)\n", p.dim, now.Format("Mon, 02 Jan 2006 15:04:05"), p.reset, zoneLabel(now))
	p.println()
}

func (p *Printer) printReference(info *refs.Info) {
	p.section(p.emoji("🌿", "[GIT]") + " REFERENCE")
	p.row(p.emoji("📁", "R"), "Repository", info.Repository)
	p.row(p.emoji("🏷️", "*"), "Ref", fmt.Sprintf("%s%s%s %s(%s)%s", p.bold, info.Name, p.reset, p.dim, info.Kind, p.reset))
	p.row(p.emoji("🔖", "#"), "Commit", fmt.Sprintf("%s %s%s%s", info.ShortHash, p.dim, truncate(info.FullHash, 40), p.reset))
	if info.Branch != "" && info.Kind == refs.Tag {
		p.row(p.emoji("🌿", "B"), "Branch", info.Branch)
	}
	p.println()
}

func (p *Printer) printImage(img string, avail *registry.Result) {
	p.section(p.emoji("📦", "[IMG]") + " IMAGE")
	p.row(p.emoji("🐳", "I"), "Image", p.bold+img+p.reset)
	if avail != nil {
		var msg string
		switch {
		case avail.Exists:
			msg = p.green + "published" + p.reset
		case avail.Kind == failure.NotFound:
			msg = p.yellow + "not published" + p.reset
		default:
			msg = fmt.Sprintf("%serror (%s)%s", p.red, avail.Kind, p.reset)
		}
		p.row(p.emoji("ℹ️", "i"), "Registry", msg)
	}
	p.println()
}

func (p *Printer) printDecision(d *deploy.Decision) {
	p.section(p.emoji("🎯", "[TGT]") + " TARGET")
	p.row(p.emoji("📍", "@"), "Target", d.Target.String())
	previous := p.dim + "none" + p.reset
	if d.Previous != nil {
		previous = *d.Previous
		if previous == "" {
			previous = p.dim + "no image" + p.reset
		}
	}
	p.row(p.emoji("⏮️", "<"), "Running", previous)
	p.row(p.emoji("⏭️", ">"), "Desired", d.Desired)
	p.println()
}

func (p *Printer) printStatus(r *deploy.Result) {
	p.section(p.emoji("📊", "[ST]") + " STATUS")

	switch {
	case r.State == deploy.Failed:
		p.statusRow(p.emoji("❌", "[X]"), p.red, "Failed", string(r.Kind))
		p.row(p.emoji("⚠️", "!"), "Error", p.red+r.Message+p.reset)
		if r.Suggestion != "" {
			p.row(p.emoji("💡", "?"), "Hint", p.dim+r.Suggestion+p.reset)
		}

	case r.Kind == failure.NotFound:
		p.statusRow(p.emoji("⏳", "[..]"), p.yellow, "Not published", r.Suggestion)

	case r.Decision != nil:
		icon, color, title := p.action(r.Decision.Action)
		p.statusRow(icon, color, title, r.Decision.Explanation)

	case r.Availability != nil && r.Availability.Exists:
		p.statusRow(p.emoji("✅", "[OK]"), p.green, "Available", "image is ready to deploy")

	default:
		p.statusRow(p.emoji("❓", "[?]"), "", "Cannot determine", string(r.State))
	}
}

func (p *Printer) action(a deploy.Action) (icon, color, title string) {
	switch a {
	case deploy.Skip:
		return p.emoji("✅", "[OK]"), p.green, "Up to date"
	case deploy.Create:
		return p.emoji("🆕", "[+]"), p.cyan, "Create"
	default:
		return p.emoji("🔄", "[~]"), p.yellow, "Update"
	}
}

// statusLine returns a one-line status string (for short mode).
func (p *Printer) statusLine(r *deploy.Result) string {
	switch {
	case r.State == deploy.Failed:
		return fmt.Sprintf("%s%s %s%s %s", p.red, p.emoji("❌", "[X]"), r.Kind, p.reset, r.Message)
	case r.Kind == failure.NotFound:
		return fmt.Sprintf("%s%s %s not published%s", p.yellow, p.emoji("⏳", "[..]"), r.Image, p.reset)
	case r.Decision != nil:
		icon, color, _ := p.action(r.Decision.Action)
		return fmt.Sprintf("%s%s %s%s %s·%s %s", color, icon, r.Decision.Action, p.reset, p.dim, p.reset, r.Decision.Explanation)
	case r.Availability != nil && r.Availability.Exists:
		return fmt.Sprintf("%s%s %s%s", p.green, p.emoji("✅", "[OK]"), r.Image, p.reset)
	}
	return fmt.Sprintf("%s Unknown%s", p.emoji("❓", "[?]"), p.reset)
}
