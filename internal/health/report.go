package health

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Report styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Underline(true)

	passStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#2E7D32", Dark: "#4CAF50"})

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#FF6B6B"}).
			Bold(true)

	detailStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#999999", Dark: "#666666"})
)

// Check is one line of a configuration test report.
type Check struct {
	Name   string
	OK     bool
	Detail string
}

// Report collects the checks a configuration test ran.
type Report struct {
	Title  string
	Checks []Check
}

// Add appends a check result.
func (r *Report) Add(name string, ok bool, detail string) {
	r.Checks = append(r.Checks, Check{Name: name, OK: ok, Detail: detail})
}

// AddError appends a check whose outcome is derived from err.
func (r *Report) AddError(name string, err error) {
	if err != nil {
		r.Add(name, false, err.Error())
		return
	}
	r.Add(name, true, "")
}

// Passed reports whether every check succeeded.
func (r Report) Passed() bool {
	for _, c := range r.Checks {
		if !c.OK {
			return false
		}
	}
	return true
}

// Render returns the styled terminal report.
func (r Report) Render() string {
	var b strings.Builder
	if r.Title != "" {
		b.WriteString(titleStyle.Render(r.Title))
		b.WriteString("\n\n")
	}
	for _, c := range r.Checks {
		mark := passStyle.Render("✓")
		if !c.OK {
			mark = failStyle.Render("✗")
		}
		b.WriteString(fmt.Sprintf("  %s %s", mark, c.Name))
		if c.Detail != "" {
			b.WriteString("  ")
			b.WriteString(detailStyle.Render(c.Detail))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	if r.Passed() {
		b.WriteString(passStyle.Render("Configuration test passed"))
	} else {
		b.WriteString(failStyle.Render("Configuration test failed"))
	}
	b.WriteString("\n")
	return b.String()
}
