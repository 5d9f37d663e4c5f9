package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/qs3c/repoinsight/internal/model"
)

var (
	criticalColor = color.New(color.FgRed, color.Bold)
	highColor     = color.New(color.FgYellow, color.Bold)
	mediumColor   = color.New(color.FgYellow)
	lowColor      = color.New(color.FgGreen)
	infoColor     = color.New(color.FgHiBlack)
	headingColor  = color.New(color.FgCyan, color.Bold)
	errorColor    = color.New(color.FgRed)
)

func severityLabel(s model.Severity) string {
	switch s {
	case model.SeverityCritical:
		return criticalColor.Sprint("CRITICAL")
	case model.SeverityHigh:
		return highColor.Sprint("HIGH")
	case model.SeverityMedium:
		return mediumColor.Sprint("MEDIUM")
	case model.SeverityLow:
		return lowColor.Sprint("LOW")
	default:
		return infoColor.Sprint("INFO")
	}
}

func printError(w io.Writer, err error) {
	fmt.Fprintln(w, errorColor.Sprint("error: ")+err.Error())
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func heading(w io.Writer, title string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, headingColor.Sprint(title))
}

func renderTable(w io.Writer, headers []string, rows [][]string) error {
	table := tablewriter.NewWriter(w)
	table.Header(headers)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignLeft
	})
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

func printClassification(w io.Writer, c *model.ClassificationResult) error {
	heading(w, "Classification")
	fmt.Fprintf(w, "Type:       %s\n", c.PrimaryType)
	fmt.Fprintf(w, "Confidence: %.2f\n", c.Confidence)
	fmt.Fprintf(w, "Stack:      %s\n", strings.Join(c.TechStack, ", "))

	if len(c.Scores) > 0 {
		types := make([]model.ProjectType, 0, len(c.Scores))
		for t := range c.Scores {
			types = append(types, t)
		}
		sort.Slice(types, func(i, j int) bool { return c.Scores[types[i]] > c.Scores[types[j]] })
		rows := make([][]string, 0, len(types))
		for _, t := range types {
			rows = append(rows, []string{string(t), strconv.FormatFloat(c.Scores[t], 'f', 2, 64)})
		}
		heading(w, "Scores")
		if err := renderTable(w, []string{"Type", "Score"}, rows); err != nil {
			return err
		}
	}

	if len(c.Indicators) > 0 {
		rows := make([][]string, 0, len(c.Indicators))
		for _, ind := range c.Indicators {
			rows = append(rows, []string{string(ind.Kind), string(ind.Type), strconv.FormatFloat(ind.Confidence, 'f', 2, 64), ind.Evidence})
		}
		heading(w, "Indicators")
		if err := renderTable(w, []string{"Signal", "Type", "Weight", "Evidence"}, rows); err != nil {
			return err
		}
	}

	if len(c.SubTypes) > 0 {
		rows := make([][]string, 0, len(c.SubTypes))
		for _, sp := range c.SubTypes {
			rows = append(rows, []string{sp.Path, string(sp.Type), strconv.FormatFloat(sp.Confidence, 'f', 2, 64)})
		}
		heading(w, "Sub-projects")
		return renderTable(w, []string{"Path", "Type", "Confidence"}, rows)
	}
	return nil
}

func printPlan(w io.Writer, pt model.ProjectType, plan []model.TaskDefinition) error {
	heading(w, fmt.Sprintf("Execution plan (%s, %d tasks)", pt, len(plan)))
	rows := make([][]string, 0, len(plan))
	for i, t := range plan {
		rows = append(rows, []string{strconv.Itoa(i + 1), t.ID, string(t.Category), strings.Join(t.DependsOn, ", ")})
	}
	return renderTable(w, []string{"#", "Task", "Category", "Depends on"}, rows)
}

func printJob(w io.Writer, job *model.AnalysisJob) error {
	heading(w, "Analysis "+job.ID)
	fmt.Fprintf(w, "Repository: %s\n", job.RepoURL)
	fmt.Fprintf(w, "Status:     %s (%d%%)\n", job.Status, job.Progress)
	if job.ErrorMessage != "" {
		fmt.Fprintf(w, "Error:      %s (at %s)\n", errorColor.Sprint(job.ErrorMessage), job.CurrentStep)
	}
	fmt.Fprintf(w, "Tasks:      %d run / %d failed, %d tokens, %d files read\n",
		job.Usage.TaskCount, job.Usage.FailedTasks, job.Usage.TokensUsed, job.Usage.FilesAnalyzed)

	res := job.Result
	if res == nil {
		return nil
	}
	fmt.Fprintf(w, "Type:       %s (%.2f)\n", res.ProjectType, res.Confidence)
	if res.Architecture.Pattern != "" {
		fmt.Fprintf(w, "Pattern:    %s\n", res.Architecture.Pattern)
	}
	if res.Report != nil {
		fmt.Fprintf(w, "Report:     %s\n", res.Report.Location)
	}

	if len(res.Findings) > 0 {
		rows := make([][]string, 0, len(res.Findings))
		for _, f := range res.Findings {
			rows = append(rows, []string{severityLabel(f.Severity), string(f.Category), f.Title, location(f.File, f.Line)})
		}
		heading(w, "Findings")
		if err := renderTable(w, []string{"Severity", "Category", "Title", "Location"}, rows); err != nil {
			return err
		}
	}
	if len(res.SecurityFindings) > 0 {
		rows := make([][]string, 0, len(res.SecurityFindings))
		for _, f := range res.SecurityFindings {
			rows = append(rows, []string{severityLabel(f.Severity), f.CWE, f.Title, location(f.File, f.Line)})
		}
		heading(w, "Security")
		if err := renderTable(w, []string{"Severity", "CWE", "Title", "Location"}, rows); err != nil {
			return err
		}
	}
	if len(res.Recommendations) > 0 {
		rows := make([][]string, 0, len(res.Recommendations))
		for _, r := range res.Recommendations {
			rows = append(rows, []string{r.Priority, string(r.Category), r.Title})
		}
		heading(w, "Recommendations")
		return renderTable(w, []string{"Priority", "Category", "Title"}, rows)
	}
	return nil
}

func location(file string, line int) string {
	if file == "" {
		return "-"
	}
	if line > 0 {
		return file + ":" + strconv.Itoa(line)
	}
	return file
}

// progressPrinter 把进度事件打印成单行状态
type progressPrinter struct {
	mu   sync.Mutex
	w    io.Writer
	last string
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w}
}

func (p *progressPrinter) HandleProgress(_ context.Context, evt model.ProgressEvent) error {
	line := fmt.Sprintf("[%3d%%] %s", evt.Progress, evt.Status)
	if evt.Step != "" && evt.Step != string(evt.Status) {
		line += " " + evt.Step
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if line == p.last {
		return nil
	}
	p.last = line
	_, err := fmt.Fprintln(p.w, line)
	return err
}
