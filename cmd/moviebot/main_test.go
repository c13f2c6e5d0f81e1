package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/John-Robertt/moviebot/internal/config"
	"github.com/John-Robertt/moviebot/internal/domain"
)

func TestParseArgs(t *testing.T) {
	ca, err := parseArgs([]string{"--config", "a.yaml", "--env-file=.env.local", "!recommend", "list", "action"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if ca.ConfigPath != "a.yaml" || ca.EnvFile != ".env.local" {
		t.Fatalf("参数解析错误：%+v", ca)
	}
	if strings.Join(ca.Rest, " ") != "!recommend list action" {
		t.Fatalf("位置参数错误：%q", ca.Rest)
	}

	ca, err = parseArgs([]string{"--config=b.yaml", "--", "--weird", "text"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if ca.ConfigPath != "b.yaml" || len(ca.Rest) != 2 || ca.Rest[0] != "--weird" {
		t.Fatalf("-- 之后应全部视为位置参数：%+v", ca)
	}
}

func TestParseArgs_Errors(t *testing.T) {
	for _, args := range [][]string{
		{"--config"},
		{"--env-file"},
		{"--provider", "tmdb"},
		{"-x"},
	} {
		if _, err := parseArgs(args); err == nil {
			t.Fatalf("%q 期望错误，但得到 nil", args)
		}
	}
}

func TestConsoleResponder_Plain(t *testing.T) {
	var buf bytes.Buffer
	c := newConsoleResponder(&buf, false)
	ctx := context.Background()

	if err := c.SendText(ctx, "console", "Bot is working!"); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	err := c.SendEmbed(ctx, "console", domain.Embed{
		Title: "Movie Recommendations for action",
		Fields: []domain.EmbedField{
			{Name: "Heat", Value: "crime saga"},
			{Name: "Ronin", Value: ""},
		},
	})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	want := "Bot is working!\n\n# Movie Recommendations for action\n 1. Heat\n    crime saga\n 2. Ronin\n"
	if buf.String() != want {
		t.Fatalf("输出不符合预期：\n期望 %q\n实际 %q", want, buf.String())
	}
}

func TestConsoleResponder_InteractiveSingle(t *testing.T) {
	var buf bytes.Buffer
	c := newConsoleResponder(&buf, true)

	_ = c.SendEmbed(context.Background(), "console", domain.Embed{
		Title:       "Heat",
		Description: "LA crime saga",
		ImageURL:    "https://img/heat.jpg",
	})
	out := buf.String()
	if !strings.Contains(out, "\x1b[1mHeat\x1b[0m") {
		t.Fatalf("交互模式标题应加粗：%q", out)
	}
	if !strings.Contains(out, "LA crime saga\n") || !strings.Contains(out, "image: https://img/heat.jpg\n") {
		t.Fatalf("描述或图片缺失：%q", out)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdef", 5); got != "ab..." {
		t.Fatalf("期望 ab...，实际 %q", got)
	}
	if got := truncate("影片简介很长", 4); got != "影..." {
		t.Fatalf("应按字符截断，实际 %q", got)
	}
	if got := truncate(" short ", 10); got != "short" {
		t.Fatalf("期望 short，实际 %q", got)
	}
}

func TestFormatShortDuration(t *testing.T) {
	if got := formatShortDuration(1500 * time.Millisecond); got != "1.5s" {
		t.Fatalf("期望 1.5s，实际 %q", got)
	}
	if got := formatShortDuration(-time.Second); got != "0.0s" {
		t.Fatalf("负数应视为 0，实际 %q", got)
	}
}

func TestBuild_WiresProvider(t *testing.T) {
	cfg := config.Defaults()
	cfg.TMDB.APIKey = "k"

	a, err := build(cfg)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if a.dispatcher == nil || a.breaker == nil {
		t.Fatalf("依赖未装配：%+v", a)
	}
	if err := a.providerHealthy(); err != nil {
		t.Fatalf("新建熔断器应为关闭状态：%v", err)
	}

	cfg.Provider = "imdb"
	if _, err := build(cfg); err == nil {
		t.Fatalf("未知 provider 期望错误")
	}
}
