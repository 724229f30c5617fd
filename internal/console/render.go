// Package console renders console-bound events and runs the line-oriented console.
package console

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/tldr-it-stepankutaj/reconkit/internal/event"
	"github.com/tldr-it-stepankutaj/reconkit/internal/param"
	"github.com/tldr-it-stepankutaj/reconkit/internal/target"
)

var (
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#e53935")).Bold(true)
	titleStyle    = lipgloss.NewStyle().Bold(true)
	progressStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#2196F3"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#8a8f98"))
	headerStyle   = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle     = lipgloss.NewStyle().Padding(0, 1)
)

// Render formats a console event as text. Events of other domains render as "".
func Render(ev event.Event) string {
	switch e := ev.(type) {
	case event.ResponseError:
		return errorStyle.Render("error:") + " " + e.Message
	case event.ResponseMessage:
		return e.Message
	case event.ResponseHelp:
		return e.Text
	case event.ResponseModules:
		return renderModules(e.Modules)
	case event.ResponseModuleHelp:
		return renderModuleHelp(e.Module)
	case event.ResponseTargets:
		return renderTargets(e)
	case event.ResponseTable:
		return renderTable(e.Title, e.Headers, e.Rows)
	case event.ModuleProgress:
		return progressStyle.Render("["+e.Module+"]") + " " + e.Message
	default:
		return ""
	}
}

func renderModules(ms []event.ModuleInfo) string {
	rows := make([][]string, 0, len(ms))
	for _, m := range ms {
		rows = append(rows, []string{m.Name, m.TargetType.String(), m.Author, m.Description})
	}
	return renderTable("modules", []string{"NAME", "TARGET", "AUTHOR", "DESCRIPTION"}, rows)
}

func renderModuleHelp(m event.ModuleInfo) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(m.Name))
	if m.Author != "" {
		sb.WriteString(mutedStyle.Render(" by " + m.Author))
	}
	sb.WriteString("\n")
	if m.Description != "" {
		sb.WriteString(m.Description + "\n")
	}
	sb.WriteString("target type: " + m.TargetType.String() + "\n")

	rows := make([][]string, 0, len(m.Args))
	for _, a := range m.Args {
		rows = append(rows, []string{a.Name, yesNo(a.Required), yesNo(a.Mutable), defaultOf(a)})
	}
	sb.WriteString(renderTable("arguments", []string{"NAME", "REQUIRED", "MUTABLE", "DEFAULT"}, rows))
	return sb.String()
}

func renderTargets(e event.ResponseTargets) string {
	if len(e.Targets) == 0 {
		return fmt.Sprintf("%s found no targets", e.Module)
	}
	title := fmt.Sprintf("%s found %d targets", e.Module, len(e.Targets))
	if e.ParentID != 0 {
		title += fmt.Sprintf(" from #%d", e.ParentID)
	}
	return renderTable(title, []string{"ID", "TYPE", "NAME", "DETAILS"}, targetRows(e.Targets))
}

func targetRows(ts []target.Target) [][]string {
	rows := make([][]string, 0, len(ts))
	for _, t := range ts {
		var details []string
		for _, k := range t.Keys() {
			switch k {
			case target.FieldName, target.FieldType, target.FieldParent:
				continue
			}
			v, _ := t.Field(k)
			details = append(details, k+"="+v)
		}
		rows = append(rows, []string{fmt.Sprint(t.ID), t.Type.String(), t.Name, strings.Join(details, " ")})
	}
	return rows
}

func renderTable(title string, headers []string, rows [][]string) string {
	if len(rows) == 0 {
		return titleStyle.Render(title) + mutedStyle.Render(" (none)")
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	return titleStyle.Render(title) + "\n" + t.String()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func defaultOf(a param.Arg) string {
	if !a.HasDefault() {
		return ""
	}
	return a.DefaultValue()
}
