// Package observability provides formatted output utilities for the CLI.
package observability

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jonathan/course-crawler/internal/crawler"
	"github.com/jonathan/course-crawler/internal/recovery"
	"golang.org/x/text/width"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxRepairsToShow is the number of repair passes listed for a recovered document
	maxRepairsToShow = 6
)

var (
	colorGreen  = color.New(color.FgGreen, color.Bold)
	colorRed    = color.New(color.FgRed, color.Bold)
	colorYellow = color.New(color.FgYellow)
)

var ansiPattern = regexp.MustCompile("\x1b\\[[0-9;]*m")

// Printer handles formatted output
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// displayWidth returns the number of terminal columns s occupies.
func displayWidth(s string) int {
	n := 0
	for _, r := range ansiPattern.ReplaceAllString(s, "") {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			n += 2
		default:
			n++
		}
	}
	return n
}

// truncate shortens s to at most max columns, ending with "..." when cut.
func truncate(s string, max int) string {
	if displayWidth(s) <= max {
		return s
	}
	plain := ansiPattern.ReplaceAllString(s, "")
	var sb strings.Builder
	n := 0
	for _, r := range plain {
		w := displayWidth(string(r))
		if n+w > max-3 {
			break
		}
		sb.WriteRune(r)
		n += w
	}
	return sb.String() + "..."
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	inner := boxWidth - 4
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %s │\n", pad(title, inner))
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %s │\n", pad(truncate(line, inner), inner))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

func pad(s string, cols int) string {
	if w := displayWidth(s); w < cols {
		return s + strings.Repeat(" ", cols-w)
	}
	return s
}

func statusMark(res crawler.Result) string {
	if res.Succeeded() {
		return colorGreen.Sprint("✓")
	}
	if res.Status == crawler.StatusPersistFailed || res.Status == crawler.StatusCanceled {
		return colorYellow.Sprint("✗")
	}
	return colorRed.Sprint("✗")
}

// PrintReport outputs a human-readable summary of a crawl pass.
func (p *Printer) PrintReport(report *crawler.Report) {
	if report == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Run:       %s\n", report.RunID))
	sb.WriteString(fmt.Sprintf("Succeeded: %d\n", report.Succeeded()))
	sb.WriteString(fmt.Sprintf("Failed:    %d\n", report.Failed()))
	sb.WriteString(fmt.Sprintf("Duration:  %s\n", report.Duration().Round(time.Millisecond)))
	sb.WriteString("\n")

	for _, res := range report.Results {
		line := fmt.Sprintf("%s %s %s", statusMark(res), res.Career.Code(), pad(res.Label, 14))
		switch {
		case res.Succeeded():
			line += fmt.Sprintf(" %d records (%s)", res.Records, res.Stage)
		case res.Reason != "":
			line += " " + res.Reason
		default:
			line += " " + res.Status.String()
		}
		sb.WriteString(line + "\n")
	}

	p.printBox("CRAWL SUMMARY", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintRecovery outputs how a document was recovered, or why it could not be.
func (p *Printer) PrintRecovery(doc *recovery.Document, err error) {
	var sb strings.Builder

	if err != nil {
		sb.WriteString(fmt.Sprintf("%s failed\n", colorRed.Sprint("✗")))
		var recErr *recovery.Error
		if errors.As(err, &recErr) {
			sb.WriteString(fmt.Sprintf("Reason:  %s\n", recErr.Reason))
			if recErr.Cause != nil {
				sb.WriteString(fmt.Sprintf("Cause:   %v\n", recErr.Cause))
			}
		} else {
			sb.WriteString(fmt.Sprintf("Error:   %v\n", err))
		}
		p.printBox("RECOVERY", strings.TrimSuffix(sb.String(), "\n"))
		return
	}
	if doc == nil {
		return
	}

	sb.WriteString(fmt.Sprintf("%s recovered\n", colorGreen.Sprint("✓")))
	sb.WriteString(fmt.Sprintf("Stage:   %s\n", doc.Stage))
	sb.WriteString(fmt.Sprintf("Records: %d\n", doc.Len()))
	if doc.PrimaryErr != nil {
		sb.WriteString(fmt.Sprintf("Primary: %v\n", doc.PrimaryErr))
	}
	if len(doc.Repairs) > 0 {
		sb.WriteString(fmt.Sprintf("Repairs: %d\n", doc.RepairCount()))
		count := min(len(doc.Repairs), maxRepairsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  • %s ×%d\n", doc.Repairs[i].Pass, doc.Repairs[i].Count))
		}
		if len(doc.Repairs) > maxRepairsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(doc.Repairs)-maxRepairsToShow))
		}
	}

	p.printBox("RECOVERY", strings.TrimSuffix(sb.String(), "\n"))
}
