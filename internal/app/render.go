package app

import (
	"fmt"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/maaaruch/shoppies-bot/internal/nomination"
)

const maxMessageLen = 4000

const welcomeText = "🏆 The Shoppies nominations\n\n" +
	"Send any movie title (or /search Title) to look it up, then tap a movie to nominate it.\n" +
	"You can nominate up to 5 movies.\n\n" +
	"/nominations – show your current nominations\n" +
	"/submit – submit your nominations and get a shareable link"

const msgSubmitting = "Your nominations are being submitted, try again in a moment"

const (
	actionNominate = "nominate"
	actionRemove   = "remove"
	actionSubmit   = "submit"
	actionDismiss  = "dismiss"
)

// parseCallback splits "action:arg" callback data. Data without a colon is
// an action with no argument.
func parseCallback(data string) (action, arg string) {
	action, arg, _ = strings.Cut(data, ":")
	return strings.TrimSpace(action), strings.TrimSpace(arg)
}

func callbackData(action, arg string) string {
	if arg == "" {
		return action
	}
	return action + ":" + arg
}

func renderResults(snap nomination.Snapshot) (string, *tgbotapi.InlineKeyboardMarkup) {
	if len(snap.Results) == 0 {
		return fmt.Sprintf("No movies found for “%s”.", snap.Query), nil
	}

	var sb strings.Builder
	var rows [][]tgbotapi.InlineKeyboardButton

	sb.WriteString(fmt.Sprintf("Results for “%s”:\n\n", snap.Query))
	for _, m := range snap.Results {
		if m.Nominated {
			sb.WriteString(fmt.Sprintf("✅ %s\n", m.Label()))
			continue
		}
		sb.WriteString(fmt.Sprintf("• %s\n", m.Label()))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🏆 Nominate "+m.Label(), callbackData(actionNominate, m.ImdbID)),
		))
	}

	if left := nomination.Capacity - len(snap.Nominations); left > 0 {
		sb.WriteString(fmt.Sprintf("\n%d nomination(s) left.", left))
	} else {
		sb.WriteString("\nYou have used all your nominations.")
	}

	if len(rows) == 0 {
		return truncate(sb.String()), nil
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return truncate(sb.String()), &kb
}

func renderNominations(snap nomination.Snapshot) (string, *tgbotapi.InlineKeyboardMarkup) {
	if len(snap.Nominations) == 0 {
		return "You have no nominations yet. Send a movie title to search.", nil
	}

	var sb strings.Builder
	var rows [][]tgbotapi.InlineKeyboardButton

	sb.WriteString(fmt.Sprintf("Your nominations (%d/%d):\n\n", len(snap.Nominations), nomination.Capacity))
	for i, m := range snap.Nominations {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, m.Label()))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑 Remove "+m.Label(), callbackData(actionRemove, m.ImdbID)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("📨 Submit nominations", actionSubmit),
	))

	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return truncate(sb.String()), &kb
}

func renderAlert(kind nomination.AlertKind, snap nomination.Snapshot) (string, tgbotapi.InlineKeyboardMarkup) {
	dismiss := tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✖ Dismiss", callbackData(actionDismiss, string(kind))),
	)

	switch kind {
	case nomination.AlertMaxReached:
		return "⚠️ You have already reached the maximum number of nominations.",
			tgbotapi.NewInlineKeyboardMarkup(dismiss)

	case nomination.AlertEmptySubmission:
		return "⚠️ You need at least one nomination before submitting.",
			tgbotapi.NewInlineKeyboardMarkup(dismiss)

	case nomination.AlertSubmissionSucceeded:
		return "🎉 Your nominations were submitted!\nShare them: " + snap.ShareLink,
			tgbotapi.NewInlineKeyboardMarkup(
				tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL("🔗 Open shareable link", snap.ShareLink)),
				dismiss,
			)

	case nomination.AlertSubmissionFailed:
		return "❌ Could not submit your nominations. They are still saved, please try again.",
			tgbotapi.NewInlineKeyboardMarkup(
				tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🔁 Retry", actionSubmit)),
				dismiss,
			)
	}
	return string(kind), tgbotapi.NewInlineKeyboardMarkup(dismiss)
}

// truncate cuts text to maxMessageLen bytes without splitting a rune.
func truncate(text string) string {
	if len(text) <= maxMessageLen {
		return text
	}
	cut := maxMessageLen
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "\n\n(truncated)"
}
