// Package genre 把用户输入的类型名解析为 provider 的 genre id。
//
// 约束：
// - 每个 media kind 的类型表只在首次查询时拉取一次；成功后进程内不可变
// - 拉取失败不写缓存，下次查询重新拉取
// - 同一 kind 的并发首次查询合并为一次请求（singleflight）
package genre

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/John-Robertt/moviebot/internal/domain"
	"github.com/John-Robertt/moviebot/internal/infra/cache"
	"github.com/John-Robertt/moviebot/internal/logging"
	"github.com/John-Robertt/moviebot/internal/metrics"
	"github.com/John-Robertt/moviebot/internal/provider"
)

// ErrNotFound 表示类型名无法解析（包括类型表拉取失败）。
var ErrNotFound = errors.New("genre not found")

// Directory 是按 media kind 缓存的类型目录。零值不可用，请使用 New。
type Directory struct {
	cat   provider.Catalog
	store *cache.Store[[]domain.Genre]
	group singleflight.Group
}

// New 创建目录；store 为 nil 时使用新的进程内缓存。
func New(cat provider.Catalog, store *cache.Store[[]domain.Genre]) *Directory {
	if store == nil {
		store = cache.New[[]domain.Genre]()
	}
	return &Directory{cat: cat, store: store}
}

// Resolve 按名称（去首尾空白、大小写不敏感）查找 genre id。
//
// 拉取失败时返回的错误同时满足 errors.Is(err, ErrNotFound)，并保留底层原因。
func (d *Directory) Resolve(ctx context.Context, kind domain.MediaKind, name string) (domain.GenreID, error) {
	genres, err := d.Genres(ctx, kind)
	if err != nil {
		return 0, &lookupError{name: name, err: err}
	}

	want := strings.TrimSpace(name)
	if want == "" {
		return 0, ErrNotFound
	}
	for _, g := range genres {
		if strings.EqualFold(g.Name, want) {
			return g.ID, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrNotFound, want)
}

// Genres 返回 kind 对应的完整类型表（必要时先拉取并缓存）。
// 返回的切片为共享只读数据，调用方不得修改。
func (d *Directory) Genres(ctx context.Context, kind domain.MediaKind) ([]domain.Genre, error) {
	if d == nil || d.cat == nil {
		return nil, errors.New("genre 目录未初始化")
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("未知 media kind：%q", kind)
	}

	key := string(kind)
	if gs, ok := d.store.Get(key); ok {
		metrics.GenreLookups.WithLabelValues(key, "hit").Inc()
		return gs, nil
	}
	metrics.GenreLookups.WithLabelValues(key, "miss").Inc()

	v, err, _ := d.group.Do(key, func() (any, error) {
		if gs, ok := d.store.Get(key); ok {
			return gs, nil
		}
		gs, err := d.cat.Genres(ctx, kind)
		if err != nil {
			return nil, err
		}
		cur, stored := d.store.SetOnce(key, gs)
		if stored {
			logging.Ctx(ctx).Info().Str("kind", key).Int("count", len(cur)).Msg("类型表已缓存")
		}
		return cur, nil
	})
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("kind", key).Msg("拉取类型表失败")
		return nil, err
	}
	return v.([]domain.Genre), nil
}

// lookupError 把“拉取失败”归为 ErrNotFound，同时保留底层错误。
type lookupError struct {
	name string
	err  error
}

func (e *lookupError) Error() string {
	return fmt.Sprintf("解析类型 %q 失败：%v", e.name, e.err)
}

func (e *lookupError) Is(target error) bool { return target == ErrNotFound }

func (e *lookupError) Unwrap() error { return e.err }
