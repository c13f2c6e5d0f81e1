package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/moviebot/internal/bot"
	"github.com/John-Robertt/moviebot/internal/domain"
)

var _ bot.Responder = (*consoleResponder)(nil)

// consoleResponder 把 dispatcher 的回复渲染到终端（ask 子命令）。
//
// 交互终端下加粗标题、字段缩进；非 TTY 输出纯文本，便于管道处理。
type consoleResponder struct {
	w           io.Writer
	interactive bool

	mu    sync.Mutex
	count int
}

func newConsoleResponder(w io.Writer, interactive bool) *consoleResponder {
	return &consoleResponder{w: w, interactive: interactive}
}

func (c *consoleResponder) SendText(_ context.Context, _ string, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.separate()
	_, err := fmt.Fprintln(c.w, text)
	return err
}

func (c *consoleResponder) SendEmbed(_ context.Context, _ string, e domain.Embed) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.separate()
	_, err := io.WriteString(c.w, c.renderEmbed(e))
	return err
}

// separate 在多条回复之间插入空行。调用方须持有 mu。
func (c *consoleResponder) separate() {
	if c.count > 0 {
		fmt.Fprintln(c.w)
	}
	c.count++
}

func (c *consoleResponder) renderEmbed(e domain.Embed) string {
	var b strings.Builder

	title := strings.TrimSpace(e.Title)
	if c.interactive {
		fmt.Fprintf(&b, "\x1b[1m%s\x1b[0m\n", title)
	} else {
		fmt.Fprintf(&b, "# %s\n", title)
	}
	if d := strings.TrimSpace(e.Description); d != "" {
		b.WriteString(d)
		b.WriteByte('\n')
	}
	if e.ImageURL != "" {
		fmt.Fprintf(&b, "image: %s\n", e.ImageURL)
	}
	for i, f := range e.Fields {
		fmt.Fprintf(&b, "%2d. %s\n", i+1, f.Name)
		v := strings.TrimSpace(f.Value)
		if v == "" {
			continue
		}
		if c.interactive {
			v = truncate(v, 240)
		}
		fmt.Fprintf(&b, "    %s\n", v)
	}
	return b.String()
}

// truncate 按字符截断并补 "..."。
func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	rs := []rune(s)
	if max <= 0 || len(rs) <= max {
		return s
	}
	if max <= 3 {
		return string(rs[:max])
	}
	return string(rs[:max-3]) + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
