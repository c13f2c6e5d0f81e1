package httpx

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/John-Robertt/moviebot/internal/logging"
	"github.com/John-Robertt/moviebot/internal/metrics"
)

const (
	DefaultTimeout    = 15 * time.Second
	DefaultRetryMax   = 2
	DefaultRetryPause = time.Second
)

// Transport 把“UA 池 + 代理 + 有界重试 + 固定间隔”固化为统一策略。
//
// provider 只负责“拼 URL + 解析 JSON”，不关心网络策略细节；
// 所有 provider 读请求共享同一重试策略（popular / genre list / discover 一视同仁）。
type Transport struct {
	Base http.RoundTripper

	ua *uaPool

	// RetryMax 表示最大重试次数（不含首次尝试）。例如 2 表示最多 3 次尝试。
	RetryMax int

	// RetryPause 是两次尝试之间的固定等待。
	RetryPause time.Duration
}

type statusError struct {
	code int
}

func (e *statusError) Error() string { return fmt.Sprintf("HTTP %d", e.code) }

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if t.Base == nil {
		return nil, errors.New("nil base transport")
	}

	// 只对“可重放”的请求做重试：GET/HEAD 且无 body。
	canRetry := (req.Method == http.MethodGet || req.Method == http.MethodHead) && req.Body == nil
	max := t.RetryMax
	if max < 0 || !canRetry {
		max = 0
	}
	pause := t.RetryPause
	if pause < 0 {
		pause = 0
	}

	ctx := req.Context()
	var last *http.Response
	attempt := 0

	op := func() error {
		if last != nil {
			// 上一次是非 2xx：丢弃其 body，保证连接可复用。
			drainClose(last)
			last = nil
		}
		attempt++

		r := req.Clone(ctx)
		if r.Header.Get("User-Agent") == "" && t.ua != nil {
			r.Header.Set("User-Agent", t.ua.random())
		}

		resp, err := t.Base.RoundTrip(r)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		last = resp
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return &statusError{code: resp.StatusCode}
		}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		metrics.HTTPRetries.WithLabelValues(req.URL.Host).Inc()
		logging.Ctx(ctx).Warn().
			Err(err).
			Str("host", req.URL.Host).
			Str("path", req.URL.Path).
			Int("attempt", attempt).
			Dur("wait", wait).
			Msg("provider 请求失败，准备重试")
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(pause), uint64(max)), ctx)
	err := backoff.RetryNotify(op, b, notify)

	if ctx.Err() != nil {
		// ctx 已取消：不再把残留响应交给上层（更可解释）。
		if last != nil {
			drainClose(last)
		}
		if err == nil {
			err = ctx.Err()
		}
		return nil, err
	}
	if last != nil {
		// 成功，或重试耗尽但拿到了 HTTP 响应：交给上层按状态码生成错误。
		return last, nil
	}
	return nil, err
}

func drainClose(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

// Options 描述 provider HTTP client 的网络策略。
type Options struct {
	ProxyURL   string
	Timeout    time.Duration
	RetryMax   int
	RetryPause time.Duration
}

// NewClient 构造用于 provider API 调用的 HTTP client。
//
// 规则：
// - proxyURL 非空：必须走代理
// - 内置 UA 池：每个请求随机 UA
// - 有界重试 + 固定间隔 + 总超时（总超时覆盖全部尝试与间隔）
func NewClient(opts Options) (*http.Client, error) {
	base := &http.Transport{
		Proxy:                 nil,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		MaxIdleConnsPerHost:   4,
	}

	proxyURL := strings.TrimSpace(opts.ProxyURL)
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, err
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("proxy url 无效：%q", proxyURL)
		}
		base.Proxy = http.ProxyURL(u)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	tr := &Transport{
		Base:       base,
		ua:         globalUA,
		RetryMax:   opts.RetryMax,
		RetryPause: opts.RetryPause,
	}
	return &http.Client{
		Transport: tr,
		Timeout:   timeout,
	}, nil
}

type uaPool struct {
	mu  sync.Mutex
	rnd *rand.Rand
	uas []string
}

func (p *uaPool) random() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.uas[p.rnd.Intn(len(p.uas))]
}

var globalUA = newUAPool()

func newUAPool() *uaPool {
	uas := []string{
		"moviebot/1.0 (+https://github.com/John-Robertt/moviebot)",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	}
	return &uaPool{
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
		uas: uas,
	}
}
