package tmdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/goccy/go-json"

	"github.com/John-Robertt/moviebot/internal/domain"
	"github.com/John-Robertt/moviebot/internal/metrics"
	providerx "github.com/John-Robertt/moviebot/internal/provider"
)

const (
	DefaultBaseURL             = "https://api.themoviedb.org/3"
	DefaultImageBaseURL        = "https://image.tmdb.org/t/p/original"
	DefaultPlaceholderImageURL = "https://placehold.co/500x750?text=No+Poster"
	DefaultLanguage            = "en-US"

	name = "tmdb"
)

// Provider 实现 TMDB 的三个只读端点：popular / genre list / discover。
//
// 约束：
// - 认证二选一：BearerToken 非空时走 Authorization 头，否则走 api_key 查询参数
// - 不做缓存/重试（由 genre 目录与 httpx.Transport 统一控制）
// - 只取第一页
type Provider struct {
	BaseURL             string
	ImageBaseURL        string
	PlaceholderImageURL string
	Language            string

	APIKey      string
	BearerToken string

	Client *http.Client
}

var _ providerx.Catalog = Provider{}

func (Provider) Name() string { return name }

func (p Provider) baseURL() string {
	u := strings.TrimSpace(p.BaseURL)
	if u == "" {
		return DefaultBaseURL
	}
	return strings.TrimRight(u, "/")
}

func (p Provider) language() string {
	if l := strings.TrimSpace(p.Language); l != "" {
		return l
	}
	return DefaultLanguage
}

// Popular 请求 /{kind}/popular 的第一页。
func (p Provider) Popular(ctx context.Context, kind domain.MediaKind) ([]providerx.Record, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("未知 media kind：%q", kind)
	}
	q := url.Values{}
	q.Set("language", p.language())
	q.Set("page", "1")

	var page pageResponse
	if err := p.get(ctx, "popular", "/"+string(kind)+"/popular", q, &page); err != nil {
		return nil, err
	}
	return p.records(kind, "popular", page)
}

// Genres 请求 /genre/{kind}/list（完整类型表，无分页）。
func (p Provider) Genres(ctx context.Context, kind domain.MediaKind) ([]domain.Genre, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("未知 media kind：%q", kind)
	}
	q := url.Values{}
	q.Set("language", p.language())

	var resp genreResponse
	if err := p.get(ctx, "genres", "/genre/"+string(kind)+"/list", q, &resp); err != nil {
		return nil, err
	}
	if resp.Genres == nil {
		return nil, &providerx.Error{Provider: name, Stage: "genres", Err: errors.New("响应缺少 genres 字段")}
	}

	out := make([]domain.Genre, 0, len(*resp.Genres))
	for _, g := range *resp.Genres {
		out = append(out, domain.Genre{ID: domain.GenreID(g.ID), Name: strings.TrimSpace(g.Name)})
	}
	return out, nil
}

// Discover 请求 /discover/{kind}，按热度排序、过滤成人内容，只取第一页。
func (p Provider) Discover(ctx context.Context, kind domain.MediaKind, genre domain.GenreID) ([]providerx.Record, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("未知 media kind：%q", kind)
	}
	q := url.Values{}
	q.Set("include_adult", "false")
	if kind == domain.KindMovie {
		q.Set("include_video", "false")
	}
	q.Set("language", p.language())
	q.Set("page", "1")
	q.Set("sort_by", "popularity.desc")
	q.Set("with_genres", strconv.Itoa(int(genre)))

	var page pageResponse
	if err := p.get(ctx, "discover", "/discover/"+string(kind), q, &page); err != nil {
		return nil, err
	}
	return p.records(kind, "discover", page)
}

type pageResponse struct {
	Results *[]result `json:"results"`
}

// result 同时覆盖电影（title）与剧集（name）；指针用于区分缺失与空串。
type result struct {
	Title      *string `json:"title"`
	Name       *string `json:"name"`
	Overview   *string `json:"overview"`
	PosterPath *string `json:"poster_path"`
}

type genreResponse struct {
	Genres *[]struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"genres"`
}

type errorResponse struct {
	StatusMessage string `json:"status_message"`
}

func (p Provider) records(kind domain.MediaKind, stage string, page pageResponse) ([]providerx.Record, error) {
	if page.Results == nil {
		return nil, &providerx.Error{Provider: name, Stage: stage, Err: errors.New("响应缺少 results 字段")}
	}

	out := make([]providerx.Record, 0, len(*page.Results))
	for _, r := range *page.Results {
		title := r.Title
		if kind == domain.KindTV || title == nil {
			if r.Name != nil {
				title = r.Name
			}
		}
		var overview *string
		if r.Overview != nil {
			s := plainText(*r.Overview)
			overview = &s
		}
		out = append(out, providerx.Record{
			Name:     title,
			Overview: overview,
			ImageURL: p.imageURL(r.PosterPath),
		})
	}
	return out, nil
}

func (p Provider) imageURL(posterPath *string) string {
	if posterPath == nil || strings.TrimSpace(*posterPath) == "" {
		if ph := strings.TrimSpace(p.PlaceholderImageURL); ph != "" {
			return ph
		}
		return DefaultPlaceholderImageURL
	}
	base := strings.TrimSpace(p.ImageBaseURL)
	if base == "" {
		base = DefaultImageBaseURL
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(strings.TrimSpace(*posterPath), "/")
}

func (p Provider) get(ctx context.Context, stage, path string, q url.Values, out any) error {
	if p.Client == nil {
		return &providerx.Error{Provider: name, Stage: stage, Err: errors.New("http client 不能为空")}
	}

	started := time.Now()
	err := p.doGet(ctx, path, q, out)
	metrics.ProviderRequestDuration.WithLabelValues(name, stage).Observe(time.Since(started).Seconds())

	if err != nil {
		metrics.ProviderRequests.WithLabelValues(name, stage, resultLabel(err)).Inc()
		return &providerx.Error{Provider: name, Stage: stage, Err: err}
	}
	metrics.ProviderRequests.WithLabelValues(name, stage, "ok").Inc()
	return nil
}

func (p Provider) doGet(ctx context.Context, path string, q url.Values, out any) error {
	if q == nil {
		q = url.Values{}
	}
	token := strings.TrimSpace(p.BearerToken)
	if token == "" {
		q.Set("api_key", strings.TrimSpace(p.APIKey))
	}
	u := p.baseURL() + path + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var er errorResponse
		_ = json.Unmarshal(body, &er)
		return &providerx.HTTPStatusError{URL: redact(u), StatusCode: resp.StatusCode, Message: er.StatusMessage}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("解析 JSON 失败：%w", err)
	}
	return nil
}

// plainText 把 overview 中偶发的 HTML 标记/实体还原为纯文本。
// 不含 '<' 与 '&' 的文本原样返回（绝大多数情况）。
func plainText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return strings.TrimSpace(doc.Text())
}

// redact 去掉 URL 中的 api_key，避免进日志。
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Has("api_key") {
		q.Set("api_key", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func resultLabel(err error) string {
	var se *providerx.HTTPStatusError
	if errors.As(err, &se) {
		return strconv.Itoa(se.StatusCode)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return "error"
}
