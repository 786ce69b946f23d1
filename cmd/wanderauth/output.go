package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

func useColor() bool {
	return !noColor && !color.NoColor
}

func printSuccess(format string, args ...any) {
	if useColor() {
		color.Green(format, args...)
		return
	}
	fmt.Printf(format+"\n", args...)
}

func printWarning(format string, args ...any) {
	if useColor() {
		color.Yellow(format, args...)
		return
	}
	fmt.Printf("Warning: "+format+"\n", args...)
}

func printError(format string, args ...any) {
	if useColor() {
		color.New(color.FgRed).Fprintf(os.Stderr, format+"\n", args...)
		return
	}
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}

// printPairs renders key/value rows as a two-column table.
func printPairs(w io.Writer, rows [][2]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Field", "Value"})
	configureTable(table, 2)
	for _, row := range rows {
		table.Append([]string{row[0], row[1]})
	}
	table.Render()
}

// printRows renders a table with the given header.
func printRows(w io.Writer, header []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No data to display")
		return
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	configureTable(table, len(header))
	table.AppendBulk(rows)
	table.Render()
}

func configureTable(table *tablewriter.Table, columns int) {
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetColumnSeparator("")
	table.SetHeaderLine(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	if useColor() {
		colors := make([]tablewriter.Colors, columns)
		for i := range colors {
			colors[i] = tablewriter.Colors{tablewriter.Bold, tablewriter.FgCyanColor}
		}
		table.SetHeaderColor(colors...)
	}
}
