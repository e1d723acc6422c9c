package main

import (
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/therealutkarshpriyadarshi/sourcing/internal/transcript"
	"github.com/therealutkarshpriyadarshi/sourcing/pkg/models"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// renderEntries shows the editor rows with the catalog version of linked assets
func renderEntries(editor *transcript.Editor) string {
	entries := editor.Entries()
	rows := make([][]string, 0, len(entries))
	for i, e := range entries {
		version := e.VersionKey
		if asset, ok := editor.CatalogAsset(e.Identifier); ok && asset.VersionKey != "" {
			version = asset.VersionKey
		}
		state := "skip"
		switch {
		case e.Committable() && e.HasFile():
			state = "upload"
		case e.Committable():
			state = "keep"
		}
		rows = append(rows, []string{
			strconv.Itoa(i),
			orDash(e.Language),
			orDash(e.FileName),
			orDash(e.Identifier),
			orDash(version),
			state,
		})
	}
	return renderTable(
		[]string{"#", "Language", "File", "Asset", "Version", "Commit"},
		rows,
		[]columnAlignment{alignRight},
	)
}

func renderTranscripts(transcripts models.Transcripts) string {
	rows := make([][]string, 0, len(transcripts))
	for _, t := range transcripts {
		rows = append(rows, []string{t.Language, t.Identifier, orDash(t.ArtifactURL)})
	}
	return renderTable([]string{"Language", "Asset", "Artifact URL"}, rows, nil)
}
