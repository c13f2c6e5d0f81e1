package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/John-Robertt/moviebot/internal/domain"
	"github.com/John-Robertt/moviebot/internal/provider"
)

type stubCatalog struct {
	popular  []provider.Record
	discover []provider.Record
	err      error

	lastKind  domain.MediaKind
	lastGenre domain.GenreID
}

func (c *stubCatalog) Name() string { return "stub" }

func (c *stubCatalog) Popular(ctx context.Context, kind domain.MediaKind) ([]provider.Record, error) {
	c.lastKind = kind
	return c.popular, c.err
}

func (c *stubCatalog) Genres(ctx context.Context, kind domain.MediaKind) ([]domain.Genre, error) {
	return nil, c.err
}

func (c *stubCatalog) Discover(ctx context.Context, kind domain.MediaKind, genre domain.GenreID) ([]provider.Record, error) {
	c.lastKind, c.lastGenre = kind, genre
	return c.discover, c.err
}

type fixedPicker int

func (p fixedPicker) Intn(n int) int { return int(p) % n }

func str(s string) *string { return &s }

func rec(name, overview string) provider.Record {
	return provider.Record{Name: str(name), Overview: str(overview), ImageURL: "https://img/" + name}
}

func TestFetchPopular_PicksFromPage(t *testing.T) {
	cat := &stubCatalog{popular: []provider.Record{rec("A", "a"), rec("B", "b"), rec("C", "c")}}
	c := New(cat, fixedPicker(1))

	got, err := c.FetchPopular(context.Background(), domain.KindMovie)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if got.Name != "B" || got.ImageURL != "https://img/B" {
		t.Fatalf("期望选中 B，实际 %+v", got)
	}
	if cat.lastKind != domain.KindMovie {
		t.Fatalf("kind 未透传：%q", cat.lastKind)
	}
}

func TestFetchPopular_EmptyAndError(t *testing.T) {
	c := New(&stubCatalog{popular: []provider.Record{}}, fixedPicker(0))
	if _, err := c.FetchPopular(context.Background(), domain.KindMovie); !errors.Is(err, ErrEmpty) {
		t.Fatalf("空页期望 ErrEmpty，实际：%v", err)
	}

	boom := &provider.HTTPStatusError{StatusCode: 500}
	c = New(&stubCatalog{err: boom}, fixedPicker(0))
	_, err := c.FetchPopular(context.Background(), domain.KindMovie)
	var se *provider.HTTPStatusError
	if !errors.As(err, &se) {
		t.Fatalf("provider 错误应原样返回，实际：%v", err)
	}
}

func TestFetchOneByGenre_Malformed(t *testing.T) {
	cat := &stubCatalog{discover: []provider.Record{{Overview: str("no title")}}}
	c := New(cat, fixedPicker(0))

	_, err := c.FetchOneByGenre(context.Background(), domain.KindMovie, 28)
	var me *provider.MalformedRecordError
	if !errors.As(err, &me) || me.Field != "title" {
		t.Fatalf("期望 MalformedRecordError(title)，实际：%v", err)
	}
	if cat.lastGenre != 28 {
		t.Fatalf("genre id 未透传：%d", cat.lastGenre)
	}
}

func TestFetchManyByGenre_OrderAndEmpty(t *testing.T) {
	cat := &stubCatalog{discover: []provider.Record{rec("A", "a"), rec("B", "b"), rec("C", "c")}}
	c := New(cat, fixedPicker(2))

	got, err := c.FetchManyByGenre(context.Background(), domain.KindTV, 18)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(got) != 3 || got[0].Name != "A" || got[2].Name != "C" {
		t.Fatalf("列表应保持 provider 顺序：%+v", got)
	}
	if cat.lastKind != domain.KindTV {
		t.Fatalf("kind 未透传：%q", cat.lastKind)
	}

	c = New(&stubCatalog{discover: []provider.Record{}}, nil)
	got, err = c.FetchManyByGenre(context.Background(), domain.KindMovie, 28)
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("空页应返回空切片与 nil：got=%v err=%v", got, err)
	}
}

func TestFetchManyByGenre_MalformedRecord(t *testing.T) {
	cat := &stubCatalog{discover: []provider.Record{rec("A", "a"), {Name: str("B")}}}
	c := New(cat, nil)

	_, err := c.FetchManyByGenre(context.Background(), domain.KindMovie, 28)
	var me *provider.MalformedRecordError
	if !errors.As(err, &me) || me.Field != "overview" {
		t.Fatalf("期望 MalformedRecordError(overview)，实际：%v", err)
	}
}
