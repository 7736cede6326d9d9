package display

import (
	"fmt"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/backmassage/vid2audio/internal/pipeline"
	"github.com/backmassage/vid2audio/internal/transcode"
)

func newTable(header table.Row, rightAligned ...int) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(header)
	configs := make([]table.ColumnConfig, 0, len(rightAligned))
	for _, n := range rightAligned {
		configs = append(configs, table.ColumnConfig{Number: n, Align: text.AlignRight, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	return tw
}

// RenderSummary renders the end-of-run statistics.
func RenderSummary(r *pipeline.BatchResult) string {
	tw := newTable(table.Row{"Statistic", "Value"}, 2)
	tw.AppendRows([]table.Row{
		{"Files found", r.Scanned},
		{"Converted", r.Converted()},
		{"Already present", r.Reused},
		{"Duplicates skipped", r.Duplicates},
		{"Failed", r.Failed},
	})
	if r.Dropped > 0 {
		tw.AppendRow(table.Row{"Not started", r.Dropped})
	}
	tw.AppendSeparator()
	tw.AppendRows([]table.Row{
		{"Success rate", fmt.Sprintf("%.1f%%", r.SuccessRate())},
		{"Average per file", FormatElapsed(r.AverageTime())},
		{"Total time", FormatElapsed(r.Elapsed)},
		{"Input size", FormatBytes(r.TotalInputBytes)},
		{"Output size", FormatBytes(r.TotalOutputBytes)},
		{"Space saved", FormatBytesWithSign(r.SpaceSaved())},
	})
	return tw.Render()
}

// RenderFailures lists failed files with their reason. It returns "" when
// nothing failed.
func RenderFailures(r *pipeline.BatchResult) string {
	failures := r.Failures()
	if len(failures) == 0 {
		return ""
	}
	tw := newTable(table.Row{"#", "File", "Reason"}, 1)
	for i, o := range failures {
		tw.AppendRow(table.Row{i + 1, filepath.Base(o.Source), o.Reason})
	}
	return tw.Render()
}

// RenderPlan lists what a run would do with each source.
func RenderPlan(infos []pipeline.TaskInfo, duplicates []transcode.Outcome) string {
	tw := newTable(table.Row{"Source", "Duration", "Video", "Audio", "Action", "Target"}, 2)
	for _, in := range infos {
		action := string(in.Action)
		if in.Err != nil {
			action += ": " + in.Err.Error()
		}
		codec := in.AudioCodec
		if codec == "" {
			codec = "-"
		}
		video := in.Video
		if video == "" {
			video = "-"
		}
		tw.AppendRow(table.Row{in.Task.Source.RelPath, FormatClock(in.Duration), video, codec, action, in.Task.Target})
	}
	for _, d := range duplicates {
		tw.AppendRow(table.Row{filepath.Base(d.Source), "--:--", "-", "-", "duplicate of " + filepath.Base(d.DuplicateOf), "-"})
	}
	tw.AppendFooter(table.Row{fmt.Sprintf("%d tasks, %d duplicates", len(infos), len(duplicates))})
	return tw.Render()
}
