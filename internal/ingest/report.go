package ingest

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/23atomist/electrion-PA/internal/resolve"
)

// File statuses.
const (
	StatusIngested = "ingested"
	StatusFailed   = "failed"
)

// YearReport counts what happened to one year's file.
type YearReport struct {
	Year          int    `json:"year"`
	File          string `json:"file"`
	Format        string `json:"format"`
	Status        string `json:"status"`
	Rows          int    `json:"rows"`
	Stored        int    `json:"stored"`
	FactsInserted int    `json:"facts_inserted"`
	Duplicates    int    `json:"duplicates"`
	Blank         int    `json:"blank"`
	Rejected      int    `json:"rejected"`
	Warnings      int    `json:"warnings"`
	Error         string `json:"error,omitempty"`
}

// Processed is the number of rows that reached the fact writer.
func (y YearReport) Processed() int { return y.Stored }

func (y *YearReport) record(res rowResult) {
	switch res.outcome {
	case rowStored, rowDuplicate:
		y.Stored++
	case rowBlank:
		y.Blank++
	case rowRejected:
		y.Rejected++
	}
	y.FactsInserted += res.inserted
	y.Duplicates += res.duplicates
	y.Warnings += len(res.warnings)
}

// Report summarizes one ingestion run.
type Report struct {
	RunID      string        `json:"run_id"`
	Kind       Kind          `json:"kind"`
	Started    time.Time     `json:"started"`
	Finished   time.Time     `json:"finished"`
	Years      []YearReport  `json:"years"`
	Skipped    []int         `json:"skipped_years"`
	Committed  bool          `json:"committed"`
	FactCount  int64         `json:"fact_count"`
	Dimensions resolve.Stats `json:"dimensions"`
	Anomalies  []string      `json:"anomalies,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// Totals sums the per-year counts.
func (r *Report) Totals() YearReport {
	var t YearReport
	for _, y := range r.Years {
		t.Rows += y.Rows
		t.Stored += y.Stored
		t.FactsInserted += y.FactsInserted
		t.Duplicates += y.Duplicates
		t.Blank += y.Blank
		t.Rejected += y.Rejected
		t.Warnings += y.Warnings
	}
	return t
}

func (r *Report) checkAnomalies() {
	r.Anomalies = nil
	if len(r.Years) > 0 && r.Totals().Processed() == 0 {
		r.Anomalies = append(r.Anomalies,
			fmt.Sprintf("%d file(s) found but zero rows processed", len(r.Years)))
	}
	for _, y := range r.Years {
		if y.Status == StatusFailed {
			r.Anomalies = append(r.Anomalies, fmt.Sprintf("%d: %s", y.Year, y.Error))
		}
	}
}

// Render writes the per-run report as text tables.
func (r *Report) Render(w io.Writer) {
	fmt.Fprintf(w, "Run %s (%s)\n", r.RunID, r.Kind)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.Style().Format.Header = text.FormatDefault
	t.Style().Format.Footer = text.FormatDefault
	t.AppendHeader(table.Row{"Year", "Status", "Rows", "Stored", "Facts", "Duplicates", "Blank", "Rejected", "Warnings"})
	for _, y := range r.Years {
		t.AppendRow(table.Row{y.Year, y.Status, y.Rows, y.Stored, y.FactsInserted, y.Duplicates, y.Blank, y.Rejected, y.Warnings})
	}
	for _, year := range r.Skipped {
		t.AppendRow(table.Row{year, "skipped", "", "", "", "", "", "", ""})
	}
	tot := r.Totals()
	t.AppendFooter(table.Row{"Total", "", tot.Rows, tot.Stored, tot.FactsInserted, tot.Duplicates, tot.Blank, tot.Rejected, tot.Warnings})
	t.SortBy([]table.SortBy{{Name: "Year", Mode: table.AscNumeric}})
	t.Render()

	if len(r.Skipped) > 0 {
		years := make([]string, len(r.Skipped))
		for i, y := range r.Skipped {
			years[i] = strconv.Itoa(y)
		}
		fmt.Fprintf(w, "Skipped years: %s\n", strings.Join(years, ", "))
	}
	if r.Committed {
		fmt.Fprintf(w, "Records in %s: %d\n", r.Kind.FactTable(), r.FactCount)
	} else {
		fmt.Fprintln(w, "Run did not commit.")
	}
	for _, a := range r.Anomalies {
		fmt.Fprintf(w, "WARNING: %s\n", a)
	}
	if r.Error != "" {
		fmt.Fprintf(w, "ERROR: %s\n", r.Error)
	}
}

// EventType names a progress event.
type EventType string

const (
	EventRunStarted   EventType = "run_started"
	EventFileStarted  EventType = "file_started"
	EventFileFinished EventType = "file_finished"
	EventYearSkipped  EventType = "year_skipped"
	EventRunCommitted EventType = "run_committed"
	EventRunFailed    EventType = "run_failed"
)

// Event is a progress notification emitted during a run.
type Event struct {
	Type      EventType   `json:"type"`
	RunID     string      `json:"run_id"`
	Kind      Kind        `json:"kind"`
	Year      int         `json:"year,omitempty"`
	File      string      `json:"file,omitempty"`
	Stats     *YearReport `json:"stats,omitempty"`
	FactCount int64       `json:"fact_count,omitempty"`
	Error     string      `json:"error,omitempty"`
	Time      time.Time   `json:"time"`
}
