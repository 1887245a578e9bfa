package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/maaaruch/shoppies-bot/internal/domain"
	"github.com/maaaruch/shoppies-bot/internal/nomination"
	"github.com/maaaruch/shoppies-bot/internal/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeBot struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	updates  chan tgbotapi.Update
	stopped  bool
}

func (f *fakeBot) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeBot) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeBot) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m.Text)
		}
	}
	return out
}

func (f *fakeBot) last(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent)
	m, ok := f.sent[len(f.sent)-1].(tgbotapi.MessageConfig)
	require.True(t, ok, "last sent is %T", f.sent[len(f.sent)-1])
	return m
}

func (f *fakeBot) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = nil
	f.requests = nil
}

type stubSearcher map[string][]domain.Movie

func (s stubSearcher) Search(_ context.Context, q string) ([]domain.Movie, error) {
	res, ok := s[q]
	if !ok {
		return nil, errors.New("no results")
	}
	return res, nil
}

type stubSubmitter struct {
	mu    sync.Mutex
	id    string
	err   error
	calls int
}

func (s *stubSubmitter) Submit(context.Context, []domain.Movie) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.id, s.err
}

func catalogue(n int) []domain.Movie {
	out := make([]domain.Movie, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, domain.Movie{ImdbID: fmt.Sprintf("tt%d", i), Title: fmt.Sprintf("Film %d", i), Year: "1999"})
	}
	return out
}

type harness struct {
	app       *App
	bot       *fakeBot
	submitter *stubSubmitter
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	bot := &fakeBot{updates: make(chan tgbotapi.Update)}
	sub := &stubSubmitter{id: "abc123"}
	searcher := stubSearcher{"film": catalogue(7)}

	sessions := session.NewManager(func(int64) *nomination.Controller {
		return nomination.NewController(nomination.Options{
			Searcher:     searcher,
			Submitter:    sub,
			ShareBaseURL: "https://share.test/",
		})
	}, nil)

	return &harness{app: New(bot, sessions, nil, "salt"), bot: bot, submitter: sub}
}

const userID = 100

func textUpdate(text string) tgbotapi.Update {
	msg := &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: userID},
		Chat:      &tgbotapi.Chat{ID: userID},
		Text:      text,
	}
	if strings.HasPrefix(text, "/") {
		cmd, _, _ := strings.Cut(text, " ")
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}}
	}
	return tgbotapi.Update{Message: msg}
}

func callbackUpdate(data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: userID},
		Message: &tgbotapi.Message{MessageID: 42, Chat: &tgbotapi.Chat{ID: userID}},
		Data:    data,
	}}
}

func (h *harness) do(u tgbotapi.Update) {
	h.app.handleUpdate(context.Background(), u)
}

func TestApp_PlainTextSearches(t *testing.T) {
	h := newHarness(t)

	h.do(textUpdate("film"))

	m := h.bot.last(t)
	assert.Contains(t, m.Text, "Results for “film”")
	kb, ok := m.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	assert.Len(t, kb.InlineKeyboard, 7)
}

func TestApp_SearchCommandAndNoResults(t *testing.T) {
	h := newHarness(t)

	h.do(textUpdate("/search unknown title"))

	assert.Equal(t, "No movies found for “unknown title”.", h.bot.last(t).Text)
}

func TestApp_EmptySearchPrompts(t *testing.T) {
	h := newHarness(t)

	h.do(textUpdate("/search"))

	assert.Contains(t, h.bot.last(t).Text, "Send a movie title")
}

func TestApp_NominateShowsList(t *testing.T) {
	h := newHarness(t)
	h.do(textUpdate("film"))

	h.do(callbackUpdate("nominate:tt3"))

	assert.Contains(t, h.bot.last(t).Text, "Your nominations (1/5)")
	assert.Contains(t, h.bot.last(t).Text, "1. Film 3 (1999)")
}

func TestApp_CapacityAlertRepeats(t *testing.T) {
	h := newHarness(t)
	h.do(textUpdate("film"))
	for i := 1; i <= 5; i++ {
		h.do(callbackUpdate(fmt.Sprintf("nominate:tt%d", i)))
	}
	h.bot.reset()

	h.do(callbackUpdate("nominate:tt6"))
	h.do(callbackUpdate("nominate:tt7"))

	var alerts int
	for _, text := range h.bot.texts() {
		if strings.Contains(text, "maximum number of nominations") {
			alerts++
		}
	}
	assert.Equal(t, 2, alerts)
}

func TestApp_RemoveCallback(t *testing.T) {
	h := newHarness(t)
	h.do(textUpdate("film"))
	h.do(callbackUpdate("nominate:tt1"))

	h.do(callbackUpdate("remove:tt1"))

	assert.Contains(t, h.bot.last(t).Text, "no nominations yet")
}

func TestApp_SubmitEmptyShowsAlertWithoutCallingService(t *testing.T) {
	h := newHarness(t)

	h.do(textUpdate("/submit"))

	assert.Contains(t, h.bot.last(t).Text, "at least one nomination")
	assert.Zero(t, h.submitter.calls)
}

func TestApp_SubmitSendsShareLink(t *testing.T) {
	h := newHarness(t)
	h.do(textUpdate("film"))
	h.do(callbackUpdate("nominate:tt1"))

	h.do(callbackUpdate("submit"))

	m := h.bot.last(t)
	assert.Contains(t, m.Text, "https://share.test/abc123")
	assert.Equal(t, 1, h.submitter.calls)

	h.do(textUpdate("/nominations"))
	assert.Contains(t, h.bot.last(t).Text, "no nominations yet")
}

func TestApp_SubmitFailureOffersRetry(t *testing.T) {
	h := newHarness(t)
	h.submitter.err = errors.New("store down")
	h.do(textUpdate("film"))
	h.do(callbackUpdate("nominate:tt1"))

	h.do(textUpdate("/submit"))

	m := h.bot.last(t)
	assert.Contains(t, m.Text, "Could not submit")
	h.do(textUpdate("/nominations"))
	assert.Contains(t, h.bot.last(t).Text, "Your nominations (1/5)")
}

func TestApp_DismissDeletesAlert(t *testing.T) {
	h := newHarness(t)
	h.do(textUpdate("/submit"))
	h.bot.reset()

	h.do(callbackUpdate("dismiss:empty_submission"))

	h.bot.mu.Lock()
	defer h.bot.mu.Unlock()
	require.Len(t, h.bot.requests, 2)
	del, ok := h.bot.requests[0].(tgbotapi.DeleteMessageConfig)
	require.True(t, ok)
	assert.Equal(t, 42, del.MessageID)
	_, ok = h.bot.requests[1].(tgbotapi.CallbackConfig)
	assert.True(t, ok)
}

func TestApp_UnknownCommand(t *testing.T) {
	h := newHarness(t)

	h.do(textUpdate("/vote"))

	assert.Contains(t, h.bot.last(t).Text, "Unknown command")
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		h.app.Run(ctx)
		close(done)
	}()

	h.bot.updates <- textUpdate("/start")
	require.Eventually(t, func() bool { return len(h.bot.texts()) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	h.bot.mu.Lock()
	defer h.bot.mu.Unlock()
	assert.True(t, h.bot.stopped)
}
