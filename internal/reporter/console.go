package reporter

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"cql-guard/internal/model"
)

type ConsoleReporter struct {
	out io.Writer
}

func NewConsoleReporter() *ConsoleReporter {
	return &ConsoleReporter{out: os.Stdout}
}

func (r *ConsoleReporter) Report(issues []model.Issue) error {
	if len(issues) == 0 {
		fmt.Fprintln(r.out, color.GreenString("✔ No CQL issues found! Great job."))
		return nil
	}

	for _, issue := range issues {
		var sevColor *color.Color
		switch issue.Severity {
		case model.SeverityCritical:
			sevColor = color.New(color.FgRed, color.Bold)
		case model.SeverityHigh:
			sevColor = color.New(color.FgRed)
		case model.SeverityMedium:
			sevColor = color.New(color.FgYellow, color.Bold)
		case model.SeverityLow:
			sevColor = color.New(color.FgBlue, color.Bold)
		default:
			sevColor = color.New(color.FgWhite)
		}

		fmt.Fprintf(r.out, "%s: [%s] %s (%s, confidence %.2f)\n",
			issue.Location(), sevColor.Sprint(issue.Severity), issue.Message, issue.Detector, issue.Confidence)
		fmt.Fprintf(r.out, "\tQuery: %s\n", color.CyanString(truncate(issue.Query, 80)))
		for _, evidence := range issue.Evidence {
			fmt.Fprintf(r.out, "\tEvidence: %s\n", evidence)
		}
		fmt.Fprintf(r.out, "\tRecommendation: %s\n", issue.Recommendation)
		fmt.Fprintln(r.out)
	}

	fmt.Fprintf(r.out, "\n%s found %d issues.\n", color.RedString("✘"), len(issues))
	return nil
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
