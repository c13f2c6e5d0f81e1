// Package catalog 在 provider.Catalog 之上提供三种取数方式：
// 热门随机一条、按类型随机一条、按类型整页列表。
package catalog

import (
	"context"
	"errors"

	"github.com/John-Robertt/moviebot/internal/domain"
	"github.com/John-Robertt/moviebot/internal/provider"
	"github.com/John-Robertt/moviebot/internal/selection"
)

// ErrEmpty 表示单条推荐时结果页为空。
var ErrEmpty = errors.New("no results")

// Client 不持有可变状态；并发安全取决于注入的 Catalog 与 Picker。
type Client struct {
	cat    provider.Catalog
	picker selection.Picker
}

// New 创建 Client；picker 为 nil 时使用时间种子的随机源。
func New(cat provider.Catalog, picker selection.Picker) *Client {
	if picker == nil {
		picker = selection.NewPicker()
	}
	return &Client{cat: cat, picker: picker}
}

// FetchPopular 从热门第一页随机返回一条。
func (c *Client) FetchPopular(ctx context.Context, kind domain.MediaKind) (domain.Title, error) {
	recs, err := c.cat.Popular(ctx, kind)
	if err != nil {
		return domain.Title{}, err
	}
	return pick(c.picker, recs)
}

// FetchOneByGenre 从该类型 discover 第一页随机返回一条。
func (c *Client) FetchOneByGenre(ctx context.Context, kind domain.MediaKind, id domain.GenreID) (domain.Title, error) {
	recs, err := c.cat.Discover(ctx, kind, id)
	if err != nil {
		return domain.Title{}, err
	}
	return pick(c.picker, recs)
}

// FetchManyByGenre 返回该类型 discover 第一页的全部条目（provider 顺序）。
// 结果为空时返回空切片与 nil 错误。
func (c *Client) FetchManyByGenre(ctx context.Context, kind domain.MediaKind, id domain.GenreID) ([]domain.Title, error) {
	recs, err := c.cat.Discover(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Title, 0, len(recs))
	for _, r := range recs {
		t, err := r.Title()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// pick 只校验被选中的那条记录；同页其它记录缺字段不影响结果。
func pick(p selection.Picker, recs []provider.Record) (domain.Title, error) {
	r, ok := selection.PickOne(p, recs)
	if !ok {
		return domain.Title{}, ErrEmpty
	}
	return r.Title()
}
