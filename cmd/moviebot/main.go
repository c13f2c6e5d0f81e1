package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/John-Robertt/moviebot/internal/bot"
	"github.com/John-Robertt/moviebot/internal/catalog"
	"github.com/John-Robertt/moviebot/internal/command"
	"github.com/John-Robertt/moviebot/internal/config"
	"github.com/John-Robertt/moviebot/internal/discord"
	"github.com/John-Robertt/moviebot/internal/domain"
	"github.com/John-Robertt/moviebot/internal/genre"
	"github.com/John-Robertt/moviebot/internal/infra/httpx"
	"github.com/John-Robertt/moviebot/internal/logging"
	"github.com/John-Robertt/moviebot/internal/provider"
	"github.com/John-Robertt/moviebot/internal/provider/tmdb"
	"github.com/John-Robertt/moviebot/internal/server"
	"github.com/John-Robertt/moviebot/internal/supervisor"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage()
		return
	}

	var code int
	switch args[0] {
	case "run":
		code = runCmd(args[1:])
	case "ask":
		code = askCmd(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "未知命令：%q\n\n", args[0])
		printUsage()
		code = 2
	}
	if code != 0 {
		os.Exit(code)
	}
}

func runCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printRunUsage()
			return 0
		}
	}
	ca, err := parseArgs(args)
	if err == nil && len(ca.Rest) > 0 {
		err = fmt.Errorf("run 不接受位置参数：%q", ca.Rest[0])
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printRunUsage()
		return 2
	}

	cfg, err := config.Load(config.Options{ConfigPath: ca.ConfigPath, EnvFile: ca.EnvFile, Mode: config.ModeRun})
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败（%s）：%v\n", config.Code(err), err)
		return 1
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: os.Stderr})

	a, err := build(cfg)
	if err != nil {
		logging.Error().Err(err).Msg("初始化失败")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tree := supervisor.New("moviebot", supervisor.DefaultConfig())
	tree.Add(&discord.Service{
		Token:         cfg.Discord.Token,
		Handler:       a.dispatcher,
		HandleTimeout: cfg.Bot.HandleTimeout,
	})
	if cfg.Metrics.Addr != "" {
		h := server.NewRouter(server.Check{Name: "provider", Fn: a.providerHealthy})
		tree.Add(supervisor.NewHTTPServerService("ops-http", server.New(cfg.Metrics.Addr, h), 5*time.Second))
		logging.Info().Str("addr", cfg.Metrics.Addr).Msg("运维端点已启用")
	}

	logging.Info().
		Str("provider", cfg.Provider).
		Int("retry_max", cfg.HTTP.RetryMax).
		Dur("retry_pause", cfg.HTTP.RetryPause).
		Dur("handle_timeout", cfg.Bot.HandleTimeout).
		Msg("moviebot 启动")

	if err := tree.Serve(ctx); err != nil {
		logging.Error().Err(err).Msg("服务异常退出")
		return 1
	}
	logging.Info().Msg("moviebot 已退出")
	return 0
}

func askCmd(args []string) int {
	if len(args) > 0 && isHelp(args[0]) {
		printAskUsage()
		return 0
	}
	ca, err := parseArgs(args)
	if err == nil && len(ca.Rest) == 0 {
		err = errors.New("缺少指令文本")
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printAskUsage()
		return 2
	}

	text := strings.Join(ca.Rest, " ")
	if _, ok := command.Parse(text); !ok {
		fmt.Fprintf(os.Stderr, "不是 bot 指令：%q（指令以 %s 开头，例如 \"!recommend random\"）\n", text, command.Prefix)
		return 2
	}

	cfg, err := config.Load(config.Options{ConfigPath: ca.ConfigPath, EnvFile: ca.EnvFile, Mode: config.ModeAsk})
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败（%s）：%v\n", config.Code(err), err)
		return 1
	}
	// ask 的 stdout 只留给回复内容；日志默认只输出 warn 及以上。
	level := cfg.Logging.Level
	if strings.EqualFold(level, "info") {
		level = "warn"
	}
	logging.Init(logging.Config{Level: level, Format: "console", Output: os.Stderr})

	a, err := build(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化失败：%v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Bot.HandleTimeout)
	defer cancel()

	out := newConsoleResponder(os.Stdout, isTTY(os.Stdout))
	started := time.Now()
	msg := domain.Message{ID: "console", ChannelID: "console", AuthorID: "console", Content: text}
	if err := a.dispatcher.Handle(ctx, msg, out); err != nil {
		fmt.Fprintf(os.Stderr, "输出回复失败：%v\n", err)
		return 1
	}
	if isTTY(os.Stderr) {
		fmt.Fprintf(os.Stderr, "完成（%s）\n", formatShortDuration(time.Since(started)))
	}
	return 0
}

// app 是按配置装配好的运行时依赖。
type app struct {
	dispatcher *bot.Dispatcher
	breaker    *provider.Breaker
}

func build(cfg config.Config) (app, error) {
	client, err := httpx.NewClient(httpx.Options{
		ProxyURL:   cfg.HTTP.ProxyURL,
		Timeout:    cfg.HTTP.Timeout,
		RetryMax:   cfg.HTTP.RetryMax,
		RetryPause: cfg.HTTP.RetryPause,
	})
	if err != nil {
		return app{}, fmt.Errorf("构造 http client 失败：%w", err)
	}

	br := provider.NewBreaker(tmdb.Provider{
		BaseURL:             cfg.TMDB.BaseURL,
		ImageBaseURL:        cfg.TMDB.ImageBaseURL,
		PlaceholderImageURL: cfg.TMDB.PlaceholderImageURL,
		Language:            cfg.TMDB.Language,
		APIKey:              cfg.TMDB.APIKey,
		BearerToken:         cfg.TMDB.BearerToken,
		Client:              client,
	}, provider.BreakerSettings{
		ConsecutiveFailures: cfg.Breaker.ConsecutiveFailures,
		OpenTimeout:         cfg.Breaker.OpenTimeout,
	})

	reg, err := provider.NewRegistry(br)
	if err != nil {
		return app{}, fmt.Errorf("初始化 provider registry 失败：%w", err)
	}
	cat, ok := reg.Get(cfg.Provider)
	if !ok {
		return app{}, fmt.Errorf("未知 provider：%q", cfg.Provider)
	}

	return app{
		dispatcher: bot.New(genre.New(cat, nil), catalog.New(cat, nil)),
		breaker:    br,
	}, nil
}

func (a app) providerHealthy() error {
	if a.breaker != nil && a.breaker.State() == gobreaker.StateOpen {
		return fmt.Errorf("%s 熔断中", a.breaker.Name())
	}
	return nil
}

type cliArgs struct {
	ConfigPath string
	EnvFile    string
	Rest       []string
}

// parseArgs 解析 --config/--env-file；其余参数按顺序放入 Rest。
// "--" 之后的参数一律视为位置参数。
func parseArgs(args []string) (cliArgs, error) {
	ca := cliArgs{}

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--":
			ca.Rest = append(ca.Rest, args[i+1:]...)
			return ca, nil
		case a == "--config" || a == "--env-file":
			if i+1 >= len(args) {
				return cliArgs{}, fmt.Errorf("%s 需要一个值", a)
			}
			i++
			if a == "--config" {
				ca.ConfigPath = args[i]
			} else {
				ca.EnvFile = args[i]
			}
		case strings.HasPrefix(a, "--config="):
			ca.ConfigPath = strings.TrimPrefix(a, "--config=")
		case strings.HasPrefix(a, "--env-file="):
			ca.EnvFile = strings.TrimPrefix(a, "--env-file=")
		case strings.HasPrefix(a, "-"):
			return cliArgs{}, fmt.Errorf("未知参数 %q", a)
		default:
			ca.Rest = append(ca.Rest, a)
		}
	}
	return ca, nil
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func printUsage() {
	fmt.Fprint(os.Stdout, `用法：
  moviebot run [--config FILE] [--env-file FILE]
  moviebot ask [--config FILE] [--env-file FILE] <指令文本>

命令：
  run    连接 Discord 并持续处理频道消息
  ask    在本地执行一条指令，把回复打印到 stdout（不需要 Discord token）

使用 "moviebot run --help" 或 "moviebot ask --help" 查看详细说明。
`)
}

func printRunUsage() {
	fmt.Fprint(os.Stdout, `用法：
  moviebot run [--config FILE] [--env-file FILE]

参数：
  --config    YAML 配置文件（未指定则读 $MOVIEBOT_CONFIG；都为空则只用默认值与环境变量）
  --env-file  .env 文件（未指定则尝试当前目录的 .env）
  -h, --help  显示帮助

必填环境变量：DISCORD_TOKEN，以及 TMDB_API_KEY 或 TMDB_BEARER_TOKEN。
`)
}

func printAskUsage() {
	fmt.Fprint(os.Stdout, `用法：
  moviebot ask [--config FILE] [--env-file FILE] <指令文本>

示例：
  moviebot ask '!recommend random'
  moviebot ask '!recommend list science fiction'
  moviebot ask -- '!recommend tv drama'

必填环境变量：TMDB_API_KEY 或 TMDB_BEARER_TOKEN。
`)
}
