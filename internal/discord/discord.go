// Package discord 把 discordgo 会话接到 bot.Dispatcher 上。
package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/John-Robertt/moviebot/internal/bot"
	"github.com/John-Robertt/moviebot/internal/domain"
	"github.com/John-Robertt/moviebot/internal/logging"
)

// DefaultHandleTimeout 是单条消息处理（含 provider 重试）的上限。
const DefaultHandleTimeout = 30 * time.Second

// emptyFieldValue 用于替换空简介：Discord 拒绝空的 field value。
const emptyFieldValue = "No overview available."

const intents = discordgo.IntentsGuildMessages |
	discordgo.IntentsDirectMessages |
	discordgo.IntentsMessageContent

// Handler 是 Service 依赖的消息处理能力（*bot.Dispatcher 实现）。
type Handler interface {
	Handle(ctx context.Context, msg domain.Message, out bot.Responder) error
}

// Service 维护一个 Discord gateway 会话，实现 suture.Service。
//
// 约束：
// - 每条消息在 discordgo 自己的 goroutine 中处理，带独立超时与 correlation id
// - Serve 返回前等待所有在途消息处理结束
type Service struct {
	Token         string
	Handler       Handler
	HandleTimeout time.Duration
}

func (s *Service) String() string { return "discord" }

// Serve 打开会话并阻塞到 ctx 取消。
func (s *Service) Serve(ctx context.Context) error {
	if strings.TrimSpace(s.Token) == "" {
		return errors.New("discord token 不能为空")
	}
	if s.Handler == nil {
		return errors.New("discord handler 不能为空")
	}

	session, err := discordgo.New("Bot " + strings.TrimSpace(s.Token))
	if err != nil {
		return fmt.Errorf("创建 discord 会话失败：%w", err)
	}
	session.Identify.Intents = intents

	var (
		mu      sync.Mutex
		closing bool
		wg      sync.WaitGroup
	)
	remove := session.AddHandler(func(ds *discordgo.Session, m *discordgo.MessageCreate) {
		if m == nil || m.Message == nil {
			return
		}
		mu.Lock()
		if closing {
			mu.Unlock()
			return
		}
		wg.Add(1)
		mu.Unlock()
		defer wg.Done()
		s.dispatch(ctx, selfID(ds), m.Message, NewResponder(ds))
	})
	session.AddHandler(func(ds *discordgo.Session, r *discordgo.Ready) {
		if r == nil || r.User == nil {
			return
		}
		logging.Info().Str("user", r.User.Username).Str("user_id", r.User.ID).Msg("discord 已连接")
	})

	if err := session.Open(); err != nil {
		remove()
		return fmt.Errorf("连接 discord gateway 失败：%w", err)
	}

	<-ctx.Done()
	remove()
	mu.Lock()
	closing = true
	mu.Unlock()
	wg.Wait()
	if err := session.Close(); err != nil {
		logging.Warn().Err(err).Msg("关闭 discord 会话失败")
	}
	return ctx.Err()
}

func (s *Service) dispatch(parent context.Context, self string, m *discordgo.Message, out bot.Responder) {
	timeout := s.HandleTimeout
	if timeout <= 0 {
		timeout = DefaultHandleTimeout
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()
	ctx = logging.WithCorrelationID(ctx, logging.NewCorrelationID())

	if err := s.Handler.Handle(ctx, toMessage(m, self), out); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("message_id", m.ID).Msg("回复消息失败")
	}
}

func selfID(ds *discordgo.Session) string {
	if ds == nil || ds.State == nil || ds.State.User == nil {
		return ""
	}
	return ds.State.User.ID
}

func toMessage(m *discordgo.Message, self string) domain.Message {
	msg := domain.Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		Content:   m.Content,
	}
	if m.Author != nil {
		msg.AuthorID = m.Author.ID
		msg.FromSelf = self != "" && m.Author.ID == self
	}
	return msg
}

// sender 是 *discordgo.Session 中用于回复的子集。
type sender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Responder 通过 Discord REST API 发送回复。
type Responder struct {
	s sender
}

var _ bot.Responder = Responder{}

func NewResponder(s sender) Responder {
	return Responder{s: s}
}

func (r Responder) SendText(ctx context.Context, channelID, text string) error {
	_, err := r.s.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx))
	return err
}

func (r Responder) SendEmbed(ctx context.Context, channelID string, e domain.Embed) error {
	_, err := r.s.ChannelMessageSendEmbed(channelID, toEmbed(e), discordgo.WithContext(ctx))
	return err
}

func toEmbed(e domain.Embed) *discordgo.MessageEmbed {
	out := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: e.Description,
	}
	if e.ImageURL != "" {
		out.Image = &discordgo.MessageEmbedImage{URL: e.ImageURL}
	}
	for _, f := range e.Fields {
		v := f.Value
		if strings.TrimSpace(v) == "" {
			v = emptyFieldValue
		}
		out.Fields = append(out.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: v})
	}
	return out
}
