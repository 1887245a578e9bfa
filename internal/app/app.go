package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/maaaruch/shoppies-bot/internal/nomination"
	"github.com/maaaruch/shoppies-bot/internal/session"
)

// BotAPI is the subset of *tgbotapi.BotAPI the app uses.
type BotAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type App struct {
	bot      BotAPI
	sessions *session.Manager
	log      *zap.Logger
	logSalt  string

	wg sync.WaitGroup
}

func New(bot BotAPI, sessions *session.Manager, log *zap.Logger, logSalt string) *App {
	if log == nil {
		log = zap.NewNop()
	}
	return &App{
		bot:      bot,
		sessions: sessions,
		log:      log,
		logSalt:  logSalt,
	}
}

// Run consumes updates until ctx is done. Each update is handled on its own
// goroutine so a slow search does not hold up other chats.
func (a *App) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := a.bot.GetUpdatesChan(u)
	defer a.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return

		case update, ok := <-updates:
			if !ok {
				return
			}
			a.wg.Add(1)
			go func() {
				defer a.wg.Done()
				a.handleUpdate(ctx, update)
			}()
		}
	}
}

func (a *App) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("panic handling update", zap.Int("update_id", update.UpdateID), zap.Any("panic", r))
		}
	}()

	if update.Message != nil {
		a.handleMessage(ctx, update.Message)
	} else if update.CallbackQuery != nil {
		a.handleCallback(ctx, update.CallbackQuery)
	}
}

// hashUserID keeps raw Telegram IDs out of the logs.
func (a *App) hashUserID(userID int64) string {
	data := fmt.Sprintf("%s:%d", a.logSalt, userID)
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])[:16]
}

func (a *App) userLog(userID int64) *zap.Logger {
	return a.log.With(zap.String("user", a.hashUserID(userID)))
}

// ---------- Updates ----------

func (a *App) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	sess := a.sessions.Get(ctx, msg.From.ID)
	chatID := msg.Chat.ID

	if msg.IsCommand() {
		switch msg.Command() {
		case "start", "help":
			a.send(tgbotapi.NewMessage(chatID, welcomeText))

		case "search":
			a.handleSearch(ctx, chatID, sess, msg.CommandArguments())

		case "nominations":
			a.sendNominations(chatID, sess.Controller.Snapshot())

		case "submit":
			a.handleSubmit(ctx, chatID, sess)

		default:
			a.send(tgbotapi.NewMessage(chatID, "Unknown command. Try /help"))
		}
		return
	}

	a.handleSearch(ctx, chatID, sess, msg.Text)
}

func (a *App) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq.From == nil || cq.Message == nil {
		return
	}
	sess := a.sessions.Get(ctx, cq.From.ID)
	chatID := cq.Message.Chat.ID

	action, arg := parseCallback(cq.Data)
	answer := ""

	switch action {
	case actionNominate:
		answer = a.handleNominate(ctx, chatID, sess, arg)

	case actionRemove:
		answer = a.handleRemove(ctx, chatID, sess, arg)

	case actionSubmit:
		a.handleSubmit(ctx, chatID, sess)

	case actionDismiss:
		kind := nomination.AlertKind(arg)
		if kind.Valid() {
			sess.Controller.Dismiss(kind)
			a.deleteMessage(chatID, cq.Message.MessageID)
		}

	default:
		a.userLog(cq.From.ID).Debug("unknown callback", zap.String("data", cq.Data))
	}

	if _, err := a.bot.Request(tgbotapi.NewCallback(cq.ID, answer)); err != nil {
		a.log.Debug("answer callback", zap.Error(err))
	}
}

// ---------- Actions ----------

func (a *App) handleSearch(ctx context.Context, chatID int64, sess *session.Session, query string) {
	query = strings.TrimSpace(query)
	if query == "" {
		a.send(tgbotapi.NewMessage(chatID, "Send a movie title to search, e.g. /search Star Wars"))
		return
	}

	// Chat actions answer with `true`, not a Message, so they go through Request.
	if _, err := a.bot.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		a.log.Debug("chat action", zap.Error(err))
	}

	snap, err := sess.Controller.Search(ctx, query)
	if err != nil {
		a.userLog(sess.UserID).Debug("search", zap.String("query", query), zap.Error(err))
	}
	if snap.Query != query {
		// A newer search owns the results now; it will render them.
		return
	}
	a.sendResults(chatID, snap)
}

func (a *App) handleNominate(ctx context.Context, chatID int64, sess *session.Session, id string) string {
	snap, err := sess.Controller.Nominate(ctx, id)
	switch {
	case err == nil:
		a.sendNominations(chatID, snap)
		return "Nominated!"
	case errors.Is(err, nomination.ErrCapacityExceeded):
		a.flushAlerts(chatID, sess.Controller, snap)
		return ""
	case errors.Is(err, nomination.ErrAlreadyNominated):
		return "Already nominated"
	case errors.Is(err, nomination.ErrNotInResults):
		return "That movie is not in your latest search"
	case errors.Is(err, nomination.ErrSubmitInFlight):
		return msgSubmitting
	default:
		a.userLog(sess.UserID).Error("nominate", zap.String("id", id), zap.Error(err))
		return "Something went wrong, try again"
	}
}

func (a *App) handleRemove(ctx context.Context, chatID int64, sess *session.Session, id string) string {
	snap, err := sess.Controller.Remove(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, nomination.ErrNotNominated):
			return "Not in your nominations"
		case errors.Is(err, nomination.ErrSubmitInFlight):
			return msgSubmitting
		}
		a.userLog(sess.UserID).Error("remove", zap.String("id", id), zap.Error(err))
		return "Something went wrong, try again"
	}
	a.sendNominations(chatID, snap)
	return "Removed"
}

func (a *App) handleSubmit(ctx context.Context, chatID int64, sess *session.Session) {
	snap, err := sess.Controller.Submit(ctx)
	if errors.Is(err, nomination.ErrSubmitInFlight) {
		a.send(tgbotapi.NewMessage(chatID, msgSubmitting))
		return
	}
	a.flushAlerts(chatID, sess.Controller, snap)
}

// ---------- Rendering ----------

func (a *App) sendResults(chatID int64, snap nomination.Snapshot) {
	text, markup := renderResults(snap)
	m := tgbotapi.NewMessage(chatID, text)
	if markup != nil {
		m.ReplyMarkup = *markup
	}
	a.send(m)
}

func (a *App) sendNominations(chatID int64, snap nomination.Snapshot) {
	text, markup := renderNominations(snap)
	m := tgbotapi.NewMessage(chatID, text)
	if markup != nil {
		m.ReplyMarkup = *markup
	}
	a.send(m)
}

// flushAlerts sends one message per alert event, so a repeated trigger
// notifies again.
func (a *App) flushAlerts(chatID int64, ctrl *nomination.Controller, snap nomination.Snapshot) {
	for _, alert := range ctrl.Alerts() {
		text, markup := renderAlert(alert.Kind, snap)
		m := tgbotapi.NewMessage(chatID, text)
		m.ReplyMarkup = markup
		a.send(m)
	}
}

func (a *App) send(c tgbotapi.Chattable) {
	if _, err := a.bot.Send(c); err != nil {
		a.log.Warn("telegram send", zap.Error(err))
	}
}

func (a *App) deleteMessage(chatID int64, messageID int) {
	if _, err := a.bot.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		a.log.Debug("delete message", zap.Error(err))
	}
}
