// Package selection 负责从一页结果中挑选与整理要展示的条目。
//
// 约束：
// - 单条推荐在整页中均匀随机
// - 列表保持 provider 原样顺序，不打乱
// - overview 超过 MaxOverview 个字符时截断为 MaxOverview-3 个字符加 "..."
// - 字段按 BatchSize 分组，每组对应一条消息
package selection

import (
	"math/rand"
	"sync"
	"time"

	"github.com/John-Robertt/moviebot/internal/domain"
)

const (
	MaxOverview = 2000
	BatchSize   = 10

	ellipsis = "..."
)

// Picker 返回 [0,n) 内的随机下标。
type Picker interface {
	Intn(n int) int
}

// LockedRand 是并发安全的 Picker。
type LockedRand struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewLockedRand(seed int64) *LockedRand {
	return &LockedRand{rnd: rand.New(rand.NewSource(seed))}
}

// NewPicker 返回以当前时间为种子的 Picker。
func NewPicker() *LockedRand {
	return NewLockedRand(time.Now().UnixNano())
}

func (r *LockedRand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.Intn(n)
}

// PickOne 均匀随机选择一个元素；items 为空时 ok=false。
func PickOne[T any](r Picker, items []T) (v T, ok bool) {
	if len(items) == 0 {
		return v, false
	}
	if r == nil || len(items) == 1 {
		return items[0], true
	}
	return items[r.Intn(len(items))], true
}

// TruncateOverview 按字符（rune）截断过长的简介。
func TruncateOverview(s string) string {
	rs := []rune(s)
	if len(rs) <= MaxOverview {
		return s
	}
	return string(rs[:MaxOverview-len(ellipsis)]) + ellipsis
}

// Fields 把条目转换为字段列表（name=标题，value=截断后的简介）。
func Fields(titles []domain.Title) []domain.EmbedField {
	out := make([]domain.EmbedField, 0, len(titles))
	for _, t := range titles {
		out = append(out, domain.EmbedField{
			Name:  t.Name,
			Value: TruncateOverview(t.Overview),
		})
	}
	return out
}

// Batch 把字段按 size 分组；size<=0 时使用 BatchSize。
// 返回 ceil(len(fields)/size) 组，空输入返回 nil。
func Batch(fields []domain.EmbedField, size int) [][]domain.EmbedField {
	if size <= 0 {
		size = BatchSize
	}
	if len(fields) == 0 {
		return nil
	}
	out := make([][]domain.EmbedField, 0, (len(fields)+size-1)/size)
	for start := 0; start < len(fields); start += size {
		end := min(start+size, len(fields))
		out = append(out, fields[start:end:end])
	}
	return out
}
