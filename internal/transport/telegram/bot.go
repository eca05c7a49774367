package telegram

import (
	"context"
	"fmt"
	"time"

	"github.com/sandevgo/loanpilot/internal/config"
	"github.com/sandevgo/loanpilot/internal/service/pipeline"
	"github.com/sandevgo/loanpilot/pkg/log"
	tele "gopkg.in/telebot.v3"
)

const baseContextKey = "base_context"

type Bot struct {
	bot      *tele.Bot
	cfg      *config.TelegramConfig
	pipeline *pipeline.Pipeline
	sender   *sender
}

func NewBot(
	ctx context.Context,
	cfg *config.TelegramConfig,
	p *pipeline.Pipeline,
) (*Bot, error) {
	pref := tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	bot := &Bot{
		bot:      b,
		cfg:      cfg,
		pipeline: p,
		sender:   newSender(b),
	}

	// Thread the process context (with logger) into every handler.
	b.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			c.Set(baseContextKey, ctx)
			return next(c)
		}
	})

	b.Handle("/start", bot.handleStart)
	b.Handle(tele.OnText, bot.handleMessage)

	return bot, nil
}

func (b *Bot) Start(ctx context.Context) error {
	log.FromCtx(ctx).Info().Msg("starting telegram bot")
	b.bot.Start()
	return nil
}

func (b *Bot) Shutdown(ctx context.Context) error {
	b.bot.Stop()
	return nil
}

func (b *Bot) handleStart(c tele.Context) error {
	return c.Send("Hi! Ask me anything about your loan: applications, disbursement, eligibility or repayment.")
}

func (b *Bot) handleMessage(c tele.Context) error {
	ctx := c.Get(baseContextKey).(context.Context)
	logger := log.FromCtx(ctx)
	sessionID := fmt.Sprintf("telegram-%d", c.Chat().ID)

	_ = c.Notify(tele.Typing)

	state, err := b.pipeline.Run(ctx, c.Text(), sessionID, nil)
	if err != nil {
		logger.Error().Err(err).Msg("pipeline run failed")
		return c.Send("Something went wrong on our side. Please try again in a moment.")
	}

	if err := b.sender.sendMarkdown(ctx, c.Chat(), state.FinalResponse, false); err != nil {
		return err
	}

	for _, action := range state.RecommendedActions {
		if err := c.Send(fmt.Sprintf("💡 %s", action.Description)); err != nil {
			logger.Error().Err(err).Msg("failed to send recommended action")
		}
	}
	return nil
}
