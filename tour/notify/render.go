// Package notify forwards completed applications to the operator chat.
package notify

import (
	"fmt"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tourbot/core/telegram/format"
	"github.com/m3rciful/tourbot/tour/form"
)

// WriteButtonText labels the button that opens a chat with the client.
const WriteButtonText = "💬 Написать клиенту"

const messageTemplate = "🚀 *Новая заявка на тур\\!*\n\n" +
	"👤 *Клиент:* [%s](%s)\n" +
	"📱 @%s\n\n" +
	"📍 *Направление:* %s\n" +
	"📅 *Даты:* %s\n" +
	"💰 *Бюджет:* %s"

// ProfileLink is the deep link to a user's profile.
func ProfileLink(userID int64) string {
	return fmt.Sprintf("tg://user?id=%d", userID)
}

// Render builds the MarkdownV2 operator message and its inline keyboard.
// Every user-provided field is escaped exactly once.
func Render(rec form.Record) (string, *tele.ReplyMarkup) {
	username := rec.Username
	if username == "" {
		username = form.NoUsername
	}
	link := ProfileLink(rec.UserID)
	text := fmt.Sprintf(messageTemplate,
		format.EscapeMarkdownV2(rec.FirstName),
		link,
		format.EscapeMarkdownV2(username),
		format.EscapeMarkdownV2(rec.Direction),
		format.EscapeMarkdownV2(rec.Dates),
		format.EscapeMarkdownV2(rec.Budget),
	)

	markup := &tele.ReplyMarkup{}
	markup.Inline(markup.Row(markup.URL(WriteButtonText, link)))
	return text, markup
}
