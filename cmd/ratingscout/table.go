package main

import (
	"io"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/John-Robertt/ratingscout/internal/domain"
)

// renderSummary 渲染 outcome 计数表。
func renderSummary(report domain.BatchReport, outPath string) string {
	s := report.Summary
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Footer = text.FormatDefault
	tw.SetTitle("ratingscout " + report.RunID)
	tw.AppendHeader(table.Row{"outcome", "rows"})
	tw.AppendRows([]table.Row{
		{domain.OutcomeFound, s.Found},
		{domain.OutcomeAmbiguous, s.Ambiguous},
		{domain.OutcomeNotFound, s.NotFound},
		{domain.OutcomeInvalid, s.Invalid},
	})
	tw.AppendFooter(table.Row{"report", outPath})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignFooter: text.AlignLeft},
	})
	return tw.Render()
}

// renderPending 列出需要人工处理的行（歧义/未命中/无效）；没有时返回空串。
func renderPending(report domain.BatchReport) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "title", "director", "comment"})
	n := 0
	for _, row := range report.Rows {
		if row.Outcome.Kind == domain.OutcomeFound {
			continue
		}
		tw.AppendRow(table.Row{strconv.Itoa(row.Index + 1), truncate(row.Title, 50), truncate(row.Director, 30), row.Comment()})
		n++
	}
	if n == 0 {
		return ""
	}
	return tw.Render()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
