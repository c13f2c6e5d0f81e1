// Package bot 是聊天指令的分发器：解析文本、调用类型目录与目录客户端、格式化回复。
//
// 约束：
// - 每条消息独立处理，不跨消息保存状态
// - bot 自己发出的消息、非指令文本一律静默忽略
// - provider/网络错误只写日志并回复用户友好的文案，不向上传播
// - 只有回复发送失败才返回 error
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/John-Robertt/moviebot/internal/catalog"
	"github.com/John-Robertt/moviebot/internal/command"
	"github.com/John-Robertt/moviebot/internal/domain"
	"github.com/John-Robertt/moviebot/internal/genre"
	"github.com/John-Robertt/moviebot/internal/logging"
	"github.com/John-Robertt/moviebot/internal/metrics"
	"github.com/John-Robertt/moviebot/internal/provider"
	"github.com/John-Robertt/moviebot/internal/selection"
)

// 用户可见文案。
const (
	MsgWorking        = "Bot is working!"
	MsgGenreNotFound  = "Sorry, I couldn't find the genre ID for the specified genre"
	MsgUnavailable    = "Sorry, I couldn't find a recommendation at the moment"
	MsgNoResults      = "Sorry, I couldn't find any recommendations for this genre"
	MsgMalformed      = "Sorry, there was an issue with the movie recommendation. Please try again later."
	MsgInvalidCommand = "Invalid command format. Please use the correct format: '!recommend random' or '!recommend <genre>' or '!recommend list <genre>'"
)

// HelpText 是 !help 的静态回复。
const HelpText = "**Available commands**\n" +
	"`!test` - check that the bot is online\n" +
	"`!help` - show this message\n" +
	"`!genres [tv]` - list the genres you can ask for\n" +
	"`!recommend random` - a random popular movie\n" +
	"`!recommend <genre>` - a random movie from a genre\n" +
	"`!recommend list <genre>` - popular movies from a genre\n" +
	"`!recommend tv <genre>` - popular TV shows from a genre"

// Responder 把回复发回消息所在的频道。
//
// 实现必须并发安全：多条消息可能同时在处理。
type Responder interface {
	SendText(ctx context.Context, channelID, text string) error
	SendEmbed(ctx context.Context, channelID string, e domain.Embed) error
}

// Genres 是 dispatcher 依赖的类型目录能力（*genre.Directory 实现）。
type Genres interface {
	Resolve(ctx context.Context, kind domain.MediaKind, name string) (domain.GenreID, error)
	Genres(ctx context.Context, kind domain.MediaKind) ([]domain.Genre, error)
}

// Recommender 是 dispatcher 依赖的取数能力（*catalog.Client 实现）。
type Recommender interface {
	FetchPopular(ctx context.Context, kind domain.MediaKind) (domain.Title, error)
	FetchOneByGenre(ctx context.Context, kind domain.MediaKind, id domain.GenreID) (domain.Title, error)
	FetchManyByGenre(ctx context.Context, kind domain.MediaKind, id domain.GenreID) ([]domain.Title, error)
}

// outcome 是 metrics 与日志中的处理结果标签。
const (
	outcomeOK          = "ok"
	outcomeInvalid     = "invalid"
	outcomeNotFound    = "genre_not_found"
	outcomeUnavailable = "unavailable"
	outcomeNoResults   = "no_results"
	outcomeMalformed   = "malformed"
	outcomeSendFailed  = "send_failed"
)

type Dispatcher struct {
	genres  Genres
	catalog Recommender
}

func New(genres Genres, catalog Recommender) *Dispatcher {
	return &Dispatcher{genres: genres, catalog: catalog}
}

// Handle 处理一条消息，通过 out 回复。
func (d *Dispatcher) Handle(ctx context.Context, msg domain.Message, out Responder) error {
	if msg.FromSelf {
		return nil
	}
	cmd, ok := command.Parse(msg.Content)
	if !ok {
		return nil
	}
	if out == nil {
		return errors.New("responder 不能为空")
	}

	if logging.CorrelationID(ctx) == "" {
		ctx = logging.WithCorrelationID(ctx, logging.NewCorrelationID())
	}
	log := logging.Ctx(ctx).With().
		Str("command", cmd.Kind.String()).
		Str("channel_id", msg.ChannelID).
		Str("author_id", msg.AuthorID).
		Logger()

	started := time.Now()
	outcome, err := d.dispatch(ctx, msg.ChannelID, cmd, out)
	dur := time.Since(started)
	if err != nil {
		outcome = outcomeSendFailed
	}

	metrics.CommandsTotal.WithLabelValues(cmd.Kind.String(), outcome).Inc()
	metrics.CommandDuration.WithLabelValues(cmd.Kind.String()).Observe(dur.Seconds())

	ev := log.Info()
	if err != nil {
		ev = log.Error().Err(err)
	}
	ev.Str("outcome", outcome).Dur("elapsed", dur).Msg("指令处理完成")
	return err
}

func (d *Dispatcher) dispatch(ctx context.Context, channelID string, cmd domain.Command, out Responder) (string, error) {
	switch cmd.Kind {
	case domain.CmdTest:
		return outcomeOK, out.SendText(ctx, channelID, MsgWorking)
	case domain.CmdHelp:
		return outcomeOK, out.SendText(ctx, channelID, HelpText)
	case domain.CmdGenres:
		return d.listGenres(ctx, channelID, cmd.Media, out)
	case domain.CmdRecommendRandom:
		t, err := d.catalog.FetchPopular(ctx, domain.KindMovie)
		return d.replyOne(ctx, channelID, t, err, out)
	case domain.CmdRecommendByGenre:
		id, outcome, err := d.resolve(ctx, channelID, domain.KindMovie, cmd.Genre, out)
		if outcome != "" {
			return outcome, err
		}
		t, err := d.catalog.FetchOneByGenre(ctx, domain.KindMovie, id)
		return d.replyOne(ctx, channelID, t, err, out)
	case domain.CmdRecommendListByGenre, domain.CmdRecommendTvListByGenre:
		return d.replyList(ctx, channelID, cmd, out)
	default:
		logging.Ctx(ctx).Debug().Str("reason", cmd.Reason).Msg("指令格式错误")
		return outcomeInvalid, out.SendText(ctx, channelID, MsgInvalidCommand)
	}
}

// resolve 在类型名无法解析时直接回复并返回非空 outcome。
func (d *Dispatcher) resolve(ctx context.Context, channelID string, kind domain.MediaKind, name string, out Responder) (domain.GenreID, string, error) {
	id, err := d.genres.Resolve(ctx, kind, name)
	if err == nil {
		return id, "", nil
	}
	logging.Ctx(ctx).Warn().Err(err).Str("genre", name).Str("kind", string(kind)).Msg("类型解析失败")
	return 0, outcomeNotFound, out.SendText(ctx, channelID, MsgGenreNotFound)
}

func (d *Dispatcher) replyOne(ctx context.Context, channelID string, t domain.Title, err error, out Responder) (string, error) {
	if err != nil {
		if isMalformed(err) {
			logging.Ctx(ctx).Warn().Err(err).Msg("推荐条目缺少字段")
			return outcomeMalformed, out.SendText(ctx, channelID, MsgMalformed)
		}
		logging.Ctx(ctx).Warn().Err(err).Msg("获取推荐失败")
		return outcomeUnavailable, out.SendText(ctx, channelID, MsgUnavailable)
	}
	return outcomeOK, out.SendEmbed(ctx, channelID, domain.Embed{
		Title:       t.Name,
		Description: selection.TruncateOverview(t.Overview),
		ImageURL:    t.ImageURL,
	})
}

func (d *Dispatcher) replyList(ctx context.Context, channelID string, cmd domain.Command, out Responder) (string, error) {
	kind := cmd.Media
	if kind == "" {
		kind = domain.KindMovie
	}
	id, outcome, err := d.resolve(ctx, channelID, kind, cmd.Genre, out)
	if outcome != "" {
		return outcome, err
	}

	titles, err := d.catalog.FetchManyByGenre(ctx, kind, id)
	if err != nil {
		if isMalformed(err) {
			logging.Ctx(ctx).Warn().Err(err).Msg("推荐条目缺少字段")
			return outcomeMalformed, out.SendText(ctx, channelID, MsgMalformed)
		}
		logging.Ctx(ctx).Warn().Err(err).Msg("获取推荐列表失败")
		return outcomeNoResults, out.SendText(ctx, channelID, MsgNoResults)
	}
	if len(titles) == 0 {
		return outcomeNoResults, out.SendText(ctx, channelID, MsgNoResults)
	}

	batches := selection.Batch(selection.Fields(titles), selection.BatchSize)
	for i, fields := range batches {
		e := domain.Embed{
			Title:  listTitle(kind, cmd.Genre, i+1, len(batches)),
			Fields: fields,
		}
		if err := out.SendEmbed(ctx, channelID, e); err != nil {
			return outcomeSendFailed, err
		}
	}
	return outcomeOK, nil
}

func (d *Dispatcher) listGenres(ctx context.Context, channelID string, kind domain.MediaKind, out Responder) (string, error) {
	if kind == "" {
		kind = domain.KindMovie
	}
	gs, err := d.genres.Genres(ctx, kind)
	if err != nil || len(gs) == 0 {
		logging.Ctx(ctx).Warn().Err(err).Str("kind", string(kind)).Msg("获取类型表失败")
		return outcomeUnavailable, out.SendText(ctx, channelID, MsgUnavailable)
	}

	names := make([]string, 0, len(gs))
	for _, g := range gs {
		names = append(names, g.Name)
	}
	label := "Movie"
	if kind == domain.KindTV {
		label = "TV"
	}
	return outcomeOK, out.SendText(ctx, channelID, fmt.Sprintf("%s genres: %s", label, strings.Join(names, ", ")))
}

func listTitle(kind domain.MediaKind, genreName string, i, n int) string {
	prefix := "Movie Recommendations for "
	if kind == domain.KindTV {
		prefix = "TV Show Recommendations for "
	}
	s := prefix + genreName
	if n > 1 {
		s += fmt.Sprintf(" (%d/%d)", i, n)
	}
	return s
}

func isMalformed(err error) bool {
	var me *provider.MalformedRecordError
	return errors.As(err, &me)
}

var (
	_ Genres      = (*genre.Directory)(nil)
	_ Recommender = (*catalog.Client)(nil)
)
