package provider

import (
	"context"

	"github.com/John-Robertt/moviebot/internal/domain"
)

// Catalog 把“provider API 变化”限制在 provider 包内部；上层只依赖统一接口。
//
// 约束：
// - 不做缓存、不做重试（重试由 httpx.Transport 统一实现，缓存由 genre 目录负责）
// - 只读：三个端点都是 GET
// - 结果只取第一页，顺序保持 provider 原样
type Catalog interface {
	Name() string
	Popular(ctx context.Context, kind domain.MediaKind) ([]Record, error)
	Genres(ctx context.Context, kind domain.MediaKind) ([]domain.Genre, error)
	Discover(ctx context.Context, kind domain.MediaKind, genre domain.GenreID) ([]Record, error)
}

// Record 是 provider 返回的一条结果（规范化前）。
//
// Name/Overview 用指针区分“字段缺失”与“空字符串”：缺失属于 malformed，空串合法。
// ImageURL 已由 provider 拼好（缺海报时为占位图）。
type Record struct {
	Name     *string
	Overview *string
	ImageURL string
}

// Title 把 Record 转为 domain.Title；缺字段时返回 *MalformedRecordError。
func (r Record) Title() (domain.Title, error) {
	if r.Name == nil {
		return domain.Title{}, &MalformedRecordError{Field: "title"}
	}
	if r.Overview == nil {
		return domain.Title{}, &MalformedRecordError{Field: "overview"}
	}
	return domain.Title{
		Name:     *r.Name,
		Overview: *r.Overview,
		ImageURL: r.ImageURL,
	}, nil
}
