package domain

import "time"

// RetentionDecision 表示清理任务对单封邮件的处理结果，只在一次清理中计算，不持久化。
type RetentionDecision string

const (
	DecisionKept           RetentionDecision = "kept"
	DecisionDeletedForeign RetentionDecision = "deleted_foreign"
	DecisionDeletedExpired RetentionDecision = "deleted_expired"
)

// Deleted 判断该结果是否会标记删除。
func (d RetentionDecision) Deleted() bool {
	return d == DecisionDeletedForeign || d == DecisionDeletedExpired
}

// SweepEntry 一封被分类邮件的摘要，仅用于运维报表。
type SweepEntry struct {
	From      string            `json:"from"`
	To        string            `json:"to"`
	Subject   string            `json:"subject"`
	AgeDays   *int              `json:"ageDays,omitempty"` // nil 表示日期未知
	SizeBytes int64             `json:"sizeBytes"`
	Decision  RetentionDecision `json:"decision"`
	Warning   bool              `json:"warning"` // 年龄落在告警区间，但未删除
}

// AddressCount 地址出现次数。
type AddressCount struct {
	Address string `json:"address"`
	Count   int    `json:"count"`
}

// AgeBuckets 按年龄分布的邮件数量。
type AgeBuckets struct {
	Recent  int `json:"recent"`  // 0-7 天
	Older   int `json:"older"`   // 8-30 天
	VeryOld int `json:"veryOld"` // 30 天以上
	Unknown int `json:"unknown"`
}

// SweepReport 一次清理的汇总结果，是纯统计值，不包含可被用户访问的数据。
type SweepReport struct {
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`

	SpamFolder    string `json:"spamFolder,omitempty"`
	SpamReclaimed int    `json:"spamReclaimed"`

	Scanned        int `json:"scanned"`
	Kept           int `json:"kept"`
	DeletedForeign int `json:"deletedForeign"`
	DeletedExpired int `json:"deletedExpired"`
	Warnings       int `json:"warnings"`

	UniqueSenders   int   `json:"uniqueSenders"`
	UniqueReceivers int   `json:"uniqueReceivers"`
	TotalBytes      int64 `json:"totalBytes"`
	LargestBytes    int64 `json:"largestBytes"`
	AverageBytes    int64 `json:"averageBytes"`

	Ages         AgeBuckets     `json:"ages"`
	TopSenders   []AddressCount `json:"topSenders"`
	TopReceivers []AddressCount `json:"topReceivers"`
	Entries      []SweepEntry   `json:"entries"`
}

// Deleted 返回本次清理标记删除的邮件总数。
func (r *SweepReport) Deleted() int {
	return r.DeletedForeign + r.DeletedExpired
}
