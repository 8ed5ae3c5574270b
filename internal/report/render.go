// Package report 把清理报告渲染成终端表格
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"ghostinbox/backend/internal/domain"
)

// 终端配色（深色背景值，浅色背景值）
var (
	colorRed    = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	colorYellow = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	colorGreen  = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	colorBlue   = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	colorGray   = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	colorWhite  = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	colorBorder = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite).
			Background(colorBlue).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBlue).
			MarginTop(1)

	labelStyle = lipgloss.NewStyle().Foreground(colorGray).Width(18)
	valueStyle = lipgloss.NewStyle().Foreground(colorWhite)

	headerCellStyle = lipgloss.NewStyle().Bold(true).Foreground(colorGray)

	tableStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)
)

// 列宽
const (
	colFrom    = 28
	colTo      = 30
	colSubject = 32
	colAge     = 8
	colSize    = 10
	colStatus  = 16
)

// RowStyle 按处理结果给行着色：删除为红色，告警为黄色，保留为绿色
func RowStyle(entry domain.SweepEntry) lipgloss.Style {
	base := lipgloss.NewStyle()
	switch {
	case entry.Decision.Deleted():
		return base.Foreground(colorRed)
	case entry.Warning:
		return base.Foreground(colorYellow)
	default:
		return base.Foreground(colorGreen)
	}
}

// StatusLabel 行状态文字
func StatusLabel(entry domain.SweepEntry) string {
	switch entry.Decision {
	case domain.DecisionDeletedExpired:
		return "deleted (expired)"
	case domain.DecisionDeletedForeign:
		return "deleted (foreign)"
	}
	if entry.Warning {
		return "kept (expiring)"
	}
	return "kept"
}

// Render 输出完整报告
func Render(w io.Writer, r *domain.SweepReport) error {
	sections := []string{
		titleStyle.Render("GhostInbox retention sweep"),
		renderSummary(r),
	}
	if len(r.Entries) > 0 {
		sections = append(sections,
			sectionStyle.Render(fmt.Sprintf("Messages (first %d scanned)", len(r.Entries))),
			renderEntries(r.Entries),
		)
	}
	if len(r.TopSenders) > 0 {
		sections = append(sections, sectionStyle.Render("Top senders"), renderCounts(r.TopSenders))
	}
	if len(r.TopReceivers) > 0 {
		sections = append(sections, sectionStyle.Render("Top receivers"), renderCounts(r.TopReceivers))
	}

	_, err := fmt.Fprintln(w, lipgloss.JoinVertical(lipgloss.Left, sections...))
	return err
}

func renderSummary(r *domain.SweepReport) string {
	spam := "none found"
	if r.SpamFolder != "" {
		spam = fmt.Sprintf("%d reclaimed from %q", r.SpamReclaimed, r.SpamFolder)
	}

	rows := [][2]string{
		{"Started", r.StartedAt.Format("2006-01-02 15:04:05 MST")},
		{"Duration", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()},
		{"Spam folder", spam},
		{"Scanned", humanize.Comma(int64(r.Scanned))},
		{"Kept", humanize.Comma(int64(r.Kept))},
		{"Deleted (expired)", humanize.Comma(int64(r.DeletedExpired))},
		{"Deleted (foreign)", humanize.Comma(int64(r.DeletedForeign))},
		{"Expiring soon", humanize.Comma(int64(r.Warnings))},
		{"Unique senders", humanize.Comma(int64(r.UniqueSenders))},
		{"Unique receivers", humanize.Comma(int64(r.UniqueReceivers))},
		{"Total size", humanize.Bytes(uint64(r.TotalBytes))},
		{"Average size", humanize.Bytes(uint64(r.AverageBytes))},
		{"Largest", humanize.Bytes(uint64(r.LargestBytes))},
		{"Age 0-7 days", humanize.Comma(int64(r.Ages.Recent))},
		{"Age 8-30 days", humanize.Comma(int64(r.Ages.Older))},
		{"Age 30+ days", humanize.Comma(int64(r.Ages.VeryOld))},
		{"Age unknown", humanize.Comma(int64(r.Ages.Unknown))},
	}

	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(row[0]), valueStyle.Render(row[1])))
	}
	return tableStyle.Render(strings.Join(lines, "\n"))
}

func renderEntries(entries []domain.SweepEntry) string {
	lines := []string{
		headerCellStyle.Render(formatRow("From", "To", "Subject", "Age", "Size", "Status")),
	}
	for _, e := range entries {
		age := "?"
		if e.AgeDays != nil {
			age = fmt.Sprintf("%dd", *e.AgeDays)
		}
		line := formatRow(e.From, e.To, e.Subject, age, humanize.Bytes(uint64(e.SizeBytes)), StatusLabel(e))
		lines = append(lines, RowStyle(e).Render(line))
	}
	return tableStyle.Render(strings.Join(lines, "\n"))
}

func renderCounts(counts []domain.AddressCount) string {
	lines := make([]string, 0, len(counts))
	for _, c := range counts {
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top,
			valueStyle.Width(colTo+2).Render(truncate(c.Address, colTo)),
			labelStyle.Render(humanize.Comma(int64(c.Count))),
		))
	}
	return tableStyle.Render(strings.Join(lines, "\n"))
}

func formatRow(from, to, subject, age, size, status string) string {
	return fmt.Sprintf("%-*s %-*s %-*s %*s %*s  %-*s",
		colFrom, truncate(from, colFrom),
		colTo, truncate(to, colTo),
		colSubject, truncate(subject, colSubject),
		colAge, age,
		colSize, size,
		colStatus, status,
	)
}

// truncate 按字符截断，超长时以省略号结尾
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
