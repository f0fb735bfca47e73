package render

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/list"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"jammertime/internal/aggregate"
	"jammertime/internal/models"
)

// WriteTree prints the summary tree with box-drawing connectors.
func WriteTree(w io.Writer, sum aggregate.Summary) {
	lw := list.NewWriter()
	lw.SetOutputMirror(w)
	lw.SetStyle(list.StyleConnectedRounded)
	appendNode(lw, Tree(sum))
	lw.Render()
}

func appendNode(lw list.Writer, n Node) {
	lw.AppendItem(label(n))
	if len(n.Children) == 0 {
		return
	}
	lw.Indent()
	for _, c := range n.Children {
		appendNode(lw, c)
	}
	lw.UnIndent()
}

func label(n Node) string {
	switch n.Kind {
	case KindSummary:
		return fmt.Sprintf("%s  %s  (%d events)", n.Name, FormatDuration(n.Duration), n.Count)
	case KindJams:
		return fmt.Sprintf("overall %s  (total jams: %d)", n.Name, n.Count)
	case KindMachineJams:
		return fmt.Sprintf("%s: %d jam(s) (%.1f%%)", n.Name, n.Count, 100*n.Share)
	case KindShift, KindMachine:
		if n.Count > 0 {
			return fmt.Sprintf("%s  %s  (%d jams, avg jam %s)", n.Name, FormatDuration(n.Duration), n.Count, FormatDuration(n.AverageJam))
		}
	case KindUnmapped:
		if n.Count > 0 {
			return fmt.Sprintf("%s  %s  (%d events)", n.Name, FormatDuration(n.Duration), n.Count)
		}
	}
	return fmt.Sprintf("%s  %s", n.Name, FormatDuration(n.Duration))
}

// WriteTable prints the per-machine jam ranking, one row per shift, machine
// and state, then the jam and exclusion totals.
func WriteTable(w io.Writer, sum aggregate.Summary) {
	mt := table.NewWriter()
	mt.SetOutputMirror(w)
	mt.SetStyle(table.StyleLight)
	mt.SetTitle("Overall machine jams")
	mt.AppendHeader(table.Row{"Machine", "Jams", "Share"})
	mt.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	})
	for _, id := range sum.Machines() {
		mt.AppendRow(table.Row{id, sum.MachineJams(id), percent(sum.JamShare(id), sum.Jams())})
	}
	mt.AppendFooter(table.Row{"Total", sum.Jams(), ""})
	mt.Render()

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.SetTitle("Time by shift and state")
	tw.AppendHeader(table.Row{"Shift", "Machine", "State", "Duration", "Share", "Jams", "Avg jam"})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})
	for _, code := range sum.ShiftCodes() {
		shiftTotal := sum.ShiftTotal(code)
		for _, id := range sum.MachinesIn(code) {
			total := sum.MachineShiftTotal(id, code)
			for _, state := range sum.MachineStates(id, code) {
				d := sum.MachineDuration(id, code, state)
				tw.AppendRow(table.Row{code, id, state, FormatDuration(d), share(d, total), "", ""})
			}
			tw.AppendRow(table.Row{code, id, "all states", FormatDuration(total), share(total, shiftTotal),
				sum.MachineJamsIn(id, code), FormatDuration(sum.MachineAverageJamIn(id, code))})
		}
		tw.AppendRow(table.Row{code, "all machines", "", FormatDuration(shiftTotal), "",
			sum.JamsIn(code), FormatDuration(sum.AverageJamIn(code))})
		tw.AppendSeparator()
	}
	for _, state := range sum.UnmappedStates() {
		tw.AppendRow(table.Row{"(unmapped)", "", state, FormatDuration(sum.Unmapped(state)), "", "", ""})
	}
	tw.AppendFooter(table.Row{"", "", "Total", FormatDuration(sum.Raw()), "", sum.Jams(), FormatDuration(sum.AverageJam())})
	tw.Render()

	jt := table.NewWriter()
	jt.SetOutputMirror(w)
	jt.SetStyle(table.StyleLight)
	jt.SetTitle("Jams and exclusions")
	jt.AppendHeader(table.Row{"Item", "Value"})
	jt.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	jt.AppendRow(table.Row{"jams", sum.Jams()})
	for _, code := range sum.ShiftCodes() {
		jt.AppendRow(table.Row{"jams in " + code, sum.JamsIn(code)})
		jt.AppendRow(table.Row{"average jam in " + code, FormatDuration(sum.AverageJamIn(code))})
	}
	jt.AppendRow(table.Row{"average jam", FormatDuration(sum.AverageJam())})
	ex := sum.Exclusions()
	for _, reason := range sortedReasons(ex) {
		jt.AppendRow(table.Row{"excluded: " + string(reason), FormatDuration(ex[reason])})
	}
	jt.Render()
}

// WriteWarnings lists the retained unmapped-event warnings.
func WriteWarnings(w io.Writer, sum aggregate.Summary) {
	warnings := sum.Warnings()
	if len(warnings) == 0 {
		return
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.SetTitle(fmt.Sprintf("Unmapped events (%d total)", sum.UnmappedEvents()))
	tw.AppendHeader(table.Row{"Machine", "State", "Start", "End", "Duration"})
	for _, wn := range warnings {
		tw.AppendRow(table.Row{wn.MachineID, wn.State, wn.Start.Format(time.RFC3339), wn.End.Format(time.RFC3339), FormatDuration(wn.Duration)})
	}
	if hidden := sum.UnmappedEvents() - len(warnings); hidden > 0 {
		tw.AppendFooter(table.Row{fmt.Sprintf("+%d more", hidden), "", "", "", ""})
	}
	tw.Render()
}

// FormatDuration prints whole hours and minutes, keeping seconds only when
// present: 1h05m, 0h04m, 2h00m30s.
func FormatDuration(d time.Duration) string {
	neg := d < 0
	if neg {
		d = -d
	}
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	out := fmt.Sprintf("%dh%02dm", h, m)
	if s > 0 {
		out += fmt.Sprintf("%02ds", s)
	}
	if neg {
		out = "-" + out
	}
	return out
}

func share(d, total time.Duration) string {
	if total <= 0 {
		return ""
	}
	return fmt.Sprintf("%.1f%%", 100*float64(d)/float64(total))
}

func percent(frac float64, of int) string {
	if of == 0 {
		return ""
	}
	return fmt.Sprintf("%.1f%%", 100*frac)
}

func sortedReasons(m map[models.ExclusionReason]time.Duration) []models.ExclusionReason {
	out := make([]models.ExclusionReason, 0, len(m))
	for r := range m {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
