package panel

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/JakeFAU/mediacrawler-panel/internal/runconfig"
	"github.com/JakeFAU/mediacrawler-panel/internal/supervisor"
)

// View implements tea.Model.
func (m Model) View() string {
	sections := []string{
		m.headerView(),
		m.formView(),
		m.statusView(),
	}
	if m.alert != "" {
		sections = append(sections, alertStyle.Render("! "+m.alert+"  (press any key)"))
	}
	sections = append(sections,
		m.panel("Output", m.logView.View(), false),
		lipgloss.JoinHorizontal(lipgloss.Top,
			m.panel("Result files", m.filesTable.View(), m.focus == focusFiles),
			m.panel(m.dataTitle(), m.dataTable.View(), m.focus == focusData),
		),
		m.footerView(),
	)
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) headerView() string {
	title := titleStyle.Render("MediaCrawler control panel")
	if m.settingsAt == "" {
		return title
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, title, mutedStyle.Render(m.settingsAt))
}

func (m Model) formView() string {
	platform := runconfig.Platforms[m.platform]
	return lipgloss.JoinHorizontal(lipgloss.Center,
		labelStyle.Render("Keywords"),
		m.keywords.View(),
		labelStyle.Render("  Platform"),
		m.selector(fmt.Sprintf("%s (%s)", platformLabels[platform], platform), m.focus == focusPlatform),
		labelStyle.Render("  Storage"),
		m.selector(string(runconfig.StorageFormats[m.storage]), m.focus == focusStorage),
		labelStyle.Render("  Init DB"),
		m.selector(supervisor.InitBackends[m.backend], m.focus == focusBackend),
	)
}

func (m Model) selector(value string, focused bool) string {
	if focused {
		return focusedSelectorStyle.Render("‹ " + value + " ›")
	}
	return selectorStyle.Render(value)
}

func (m Model) statusView() string {
	status := statusStyle.Render(m.status)
	if m.running {
		return m.spinner.View() + " " + status
	}
	return "  " + status
}

func (m Model) dataTitle() string {
	if m.loadedFile == "" {
		return "Table"
	}
	shown := len(m.dataTable.Rows())
	if shown < m.loadedTotal {
		return fmt.Sprintf("%s (first %d of %d rows)", filepath.Base(m.loadedFile), shown, m.loadedTotal)
	}
	return fmt.Sprintf("%s (%d rows)", filepath.Base(m.loadedFile), m.loadedTotal)
}

func (m Model) panel(title, body string, focused bool) string {
	style := panelStyle
	if focused {
		style = focusedPanelStyle
	}
	return style.Render(panelTitleStyle.Render(title) + "\n" + body)
}

func (m Model) footerView() string {
	var b strings.Builder
	if r := m.lastRun; r != nil {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("last run %s  %s %s  %s",
			r.StartedAt.Local().Format(time.DateTime),
			r.Platform, strings.Join(r.Keywords, ","), r.Status)))
		if r.ExitCode != nil {
			b.WriteString(mutedStyle.Render(fmt.Sprintf(" (exit %d)", *r.ExitCode)))
		}
		b.WriteString(mutedStyle.Render(fmt.Sprintf("  %d lines", r.Lines)))
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}
