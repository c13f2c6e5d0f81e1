package tmdb

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/John-Robertt/moviebot/internal/domain"
	providerx "github.com/John-Robertt/moviebot/internal/provider"
)

func newServer(t *testing.T, h http.HandlerFunc) (*httptest.Server, Provider) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, Provider{
		BaseURL:             srv.URL + "/3/",
		ImageBaseURL:        "https://img.test/t/p/original/",
		PlaceholderImageURL: "https://img.test/none.png",
		APIKey:              "k123",
		Client:              srv.Client(),
	}
}

func TestPopular_RequestAndMapping(t *testing.T) {
	var gotPath, gotKey, gotPage string
	_, p := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("api_key")
		gotPage = r.URL.Query().Get("page")
		_, _ = w.Write([]byte(`{"page":1,"results":[
			{"title":"Heat","overview":"LA crime saga","poster_path":"/heat.jpg"},
			{"title":"Ronin","overview":"","poster_path":null}
		]}`))
	})

	recs, err := p.Popular(context.Background(), domain.KindMovie)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if gotPath != "/3/movie/popular" {
		t.Fatalf("期望 path=/3/movie/popular，实际=%q", gotPath)
	}
	if gotKey != "k123" || gotPage != "1" {
		t.Fatalf("查询参数不符合预期：api_key=%q page=%q", gotKey, gotPage)
	}
	if len(recs) != 2 {
		t.Fatalf("期望 2 条结果，实际 %d", len(recs))
	}
	if *recs[0].Name != "Heat" || recs[0].ImageURL != "https://img.test/t/p/original/heat.jpg" {
		t.Fatalf("第 1 条映射错误：name=%q image=%q", *recs[0].Name, recs[0].ImageURL)
	}
	if recs[1].ImageURL != "https://img.test/none.png" {
		t.Fatalf("缺海报应使用占位图，实际=%q", recs[1].ImageURL)
	}
	if recs[1].Overview == nil || *recs[1].Overview != "" {
		t.Fatalf("空 overview 应保留为空串（非缺失）")
	}
}

func TestDiscover_TVUsesNameAndBearer(t *testing.T) {
	var gotAuth, gotQuery, gotPath string
	_, p := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.RawQuery
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"results":[{"name":"Dark","overview":"Time &amp; family","poster_path":"/dark.jpg"}]}`))
	})
	p.BearerToken = "tok"

	recs, err := p.Discover(context.Background(), domain.KindTV, 10765)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if gotPath != "/3/discover/tv" {
		t.Fatalf("期望 path=/3/discover/tv，实际=%q", gotPath)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("期望 Bearer 认证，实际=%q", gotAuth)
	}
	if strings.Contains(gotQuery, "api_key") {
		t.Fatalf("Bearer 模式不应携带 api_key：%q", gotQuery)
	}
	if !strings.Contains(gotQuery, "with_genres=10765") || !strings.Contains(gotQuery, "sort_by=popularity.desc") {
		t.Fatalf("discover 查询参数缺失：%q", gotQuery)
	}
	if strings.Contains(gotQuery, "include_video") {
		t.Fatalf("tv discover 不应携带 include_video：%q", gotQuery)
	}
	if len(recs) != 1 || *recs[0].Name != "Dark" {
		t.Fatalf("tv 结果应使用 name 字段：%+v", recs)
	}
	if *recs[0].Overview != "Time & family" {
		t.Fatalf("overview 实体未还原：%q", *recs[0].Overview)
	}
}

func TestDiscover_MissingFieldsKeptAsNil(t *testing.T) {
	_, p := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"overview":"no title here"}]}`))
	})

	recs, err := p.Discover(context.Background(), domain.KindMovie, 28)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(recs) != 1 || recs[0].Name != nil {
		t.Fatalf("缺 title 时 Name 应为 nil：%+v", recs)
	}
	if _, err := recs[0].Title(); err == nil {
		t.Fatalf("期望 malformed 错误，但得到 nil")
	}
}

func TestDiscover_EmptyResults(t *testing.T) {
	_, p := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"page":1,"results":[]}`))
	})

	recs, err := p.Discover(context.Background(), domain.KindMovie, 28)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if recs == nil || len(recs) != 0 {
		t.Fatalf("期望空切片（非 nil），实际=%v", recs)
	}
}

func TestPopular_MissingResultsKey(t *testing.T) {
	_, p := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"page":1}`))
	})

	_, err := p.Popular(context.Background(), domain.KindMovie)
	var pe *providerx.Error
	if !errors.As(err, &pe) || pe.Stage != "popular" {
		t.Fatalf("期望 provider.Error(stage=popular)，实际：%v", err)
	}
}

func TestGenres_ParseAndStatusError(t *testing.T) {
	fail := false
	_, p := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/3/genre/movie/list" {
			t.Errorf("意外的 path：%q", r.URL.Path)
		}
		if fail {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"status_code":7,"status_message":"Invalid API key"}`))
			return
		}
		_, _ = w.Write([]byte(`{"genres":[{"id":28,"name":"Action"},{"id":878,"name":" Science Fiction "}]}`))
	})

	gs, err := p.Genres(context.Background(), domain.KindMovie)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(gs) != 2 || gs[0].ID != 28 || gs[1].Name != "Science Fiction" {
		t.Fatalf("类型表解析错误：%+v", gs)
	}

	fail = true
	_, err = p.Genres(context.Background(), domain.KindMovie)
	var se *providerx.HTTPStatusError
	if !errors.As(err, &se) {
		t.Fatalf("期望 *HTTPStatusError，实际：%v", err)
	}
	if se.StatusCode != http.StatusUnauthorized || se.Message != "Invalid API key" {
		t.Fatalf("状态错误内容不符合预期：%+v", se)
	}
	if strings.Contains(se.URL, "k123") {
		t.Fatalf("错误中的 URL 不应包含 api_key：%q", se.URL)
	}
}

func TestProvider_RejectsUnknownKindAndNilClient(t *testing.T) {
	if _, err := (Provider{Client: http.DefaultClient}).Popular(context.Background(), "anime"); err == nil {
		t.Fatalf("未知 kind 期望错误，但得到 nil")
	}
	if _, err := (Provider{}).Genres(context.Background(), domain.KindMovie); err == nil {
		t.Fatalf("nil client 期望错误，但得到 nil")
	}
}

func TestPlainText(t *testing.T) {
	cases := map[string]string{
		"plain overview":           "plain overview",
		"Tom &amp; Jerry":          "Tom & Jerry",
		"<p>A <b>bold</b> move</p>": "A bold move",
		"":                         "",
	}
	for in, want := range cases {
		if got := plainText(in); got != want {
			t.Fatalf("plainText(%q)：期望 %q，实际 %q", in, want, got)
		}
	}
}
