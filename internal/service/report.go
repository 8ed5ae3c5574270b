package service

import (
	"sort"
	"strings"
	"time"

	"ghostinbox/backend/internal/domain"
	"ghostinbox/backend/internal/mailparse"
)

const (
	topAddressCount  = 5
	maxReportEntries = 10
	recentAgeDays    = 7
)

// reportBuilder 汇总一次清理中看到的邮件
type reportBuilder struct {
	report     *domain.SweepReport
	maxAgeDays int
	senders    map[string]int
	receivers  map[string]int
}

func newReportBuilder(startedAt time.Time, maxAgeDays int) *reportBuilder {
	return &reportBuilder{
		report: &domain.SweepReport{
			StartedAt:    startedAt,
			TopSenders:   []domain.AddressCount{},
			TopReceivers: []domain.AddressCount{},
			Entries:      []domain.SweepEntry{},
		},
		maxAgeDays: maxAgeDays,
		senders:    make(map[string]int),
		receivers:  make(map[string]int),
	}
}

func (b *reportBuilder) add(msg *domain.Message, now time.Time, decision domain.RetentionDecision, warning bool) {
	r := b.report
	r.Scanned++

	switch decision {
	case domain.DecisionDeletedForeign:
		r.DeletedForeign++
	case domain.DecisionDeletedExpired:
		r.DeletedExpired++
	default:
		r.Kept++
	}
	if warning {
		r.Warnings++
	}

	r.TotalBytes += msg.SizeBytes
	if msg.SizeBytes > r.LargestBytes {
		r.LargestBytes = msg.SizeBytes
	}

	sender := normalizeAddress(msg.From)
	if sender != "" {
		b.senders[sender]++
	}
	receiver := normalizeAddress(msg.RawTo)
	if receiver != "" {
		b.receivers[receiver]++
	}

	var agePtr *int
	days, ok := msg.AgeDays(now)
	switch {
	case !ok:
		r.Ages.Unknown++
	case days <= recentAgeDays:
		r.Ages.Recent++
	case days <= b.maxAgeDays:
		r.Ages.Older++
	default:
		r.Ages.VeryOld++
	}
	if ok {
		agePtr = &days
	}

	if len(r.Entries) < maxReportEntries {
		r.Entries = append(r.Entries, domain.SweepEntry{
			From:      msg.From,
			To:        msg.RawTo,
			Subject:   msg.Subject,
			AgeDays:   agePtr,
			SizeBytes: msg.SizeBytes,
			Decision:  decision,
			Warning:   warning,
		})
	}
}

func (b *reportBuilder) finish(finishedAt time.Time) *domain.SweepReport {
	r := b.report
	r.FinishedAt = finishedAt
	r.UniqueSenders = len(b.senders)
	r.UniqueReceivers = len(b.receivers)
	if r.Scanned > 0 {
		r.AverageBytes = r.TotalBytes / int64(r.Scanned)
	}
	r.TopSenders = topAddresses(b.senders, topAddressCount)
	r.TopReceivers = topAddresses(b.receivers, topAddressCount)
	return r
}

// normalizeAddress 优先取解析出的地址，否则使用原始头部，统一小写
func normalizeAddress(raw string) string {
	if addr, ok := mailparse.ExtractAddress(raw); ok {
		return strings.ToLower(addr)
	}
	return strings.ToLower(strings.TrimSpace(raw))
}

// topAddresses 按次数降序，次数相同按地址升序
func topAddresses(counts map[string]int, n int) []domain.AddressCount {
	result := make([]domain.AddressCount, 0, len(counts))
	for addr, count := range counts {
		result = append(result, domain.AddressCount{Address: addr, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Address < result[j].Address
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
