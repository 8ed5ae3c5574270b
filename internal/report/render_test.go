package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ghostinbox/backend/internal/domain"
)

func intPtr(v int) *int { return &v }

func TestRowStyle(t *testing.T) {
	tests := []struct {
		name  string
		entry domain.SweepEntry
		want  interface{}
		label string
	}{
		{"过期删除为红色", domain.SweepEntry{Decision: domain.DecisionDeletedExpired}, colorRed, "deleted (expired)"},
		{"外来删除为红色", domain.SweepEntry{Decision: domain.DecisionDeletedForeign}, colorRed, "deleted (foreign)"},
		{"告警为黄色", domain.SweepEntry{Decision: domain.DecisionKept, Warning: true}, colorYellow, "kept (expiring)"},
		{"保留为绿色", domain.SweepEntry{Decision: domain.DecisionKept}, colorGreen, "kept"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RowStyle(tt.entry).GetForeground())
			assert.Equal(t, tt.label, StatusLabel(tt.entry))
		})
	}
}

func TestRender(t *testing.T) {
	start := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)
	r := &domain.SweepReport{
		StartedAt:      start,
		FinishedAt:     start.Add(1500 * time.Millisecond),
		SpamFolder:     "[Gmail]/Spam",
		SpamReclaimed:  2,
		Scanned:        3,
		Kept:           2,
		DeletedExpired: 1,
		Warnings:       1,
		TotalBytes:     3000,
		AverageBytes:   1000,
		LargestBytes:   1500,
		Ages:           domain.AgeBuckets{Recent: 1, Older: 1, VeryOld: 1},
		TopSenders:     []domain.AddressCount{{Address: "news@shop.io", Count: 2}},
		Entries: []domain.SweepEntry{
			{From: "news@shop.io", To: "abc@ghostinbox.it", Subject: "fresh", AgeDays: intPtr(2), SizeBytes: 1000, Decision: domain.DecisionKept},
			{From: "old@shop.io", To: "abc@ghostinbox.it", Subject: "ancient", AgeDays: intPtr(45), SizeBytes: 1500, Decision: domain.DecisionDeletedExpired},
			{From: "x@y.io", To: "abc@ghostinbox.it", Subject: "undated", SizeBytes: 500, Decision: domain.DecisionKept},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, r))
	out := buf.String()

	assert.Contains(t, out, "GhostInbox retention sweep")
	assert.Contains(t, out, `2 reclaimed from "[Gmail]/Spam"`)
	assert.Contains(t, out, "1.5s")
	assert.Contains(t, out, "3.0 kB")
	assert.Contains(t, out, "deleted (expired)")
	assert.Contains(t, out, "45d")
	assert.Contains(t, out, "news@shop.io")
	assert.NotContains(t, out, "Top receivers")
}

func TestRender_EmptyReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, &domain.SweepReport{}))
	assert.Contains(t, buf.String(), "none found")
	assert.NotContains(t, buf.String(), "Messages (first")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
	assert.Equal(t, "你好世…", truncate("你好世界和平", 4))
	assert.Equal(t, "a b", truncate("a\r\n  b", 10))
}
