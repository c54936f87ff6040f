// Package faq serves the static FAQ menu and its canned answers.
package faq

import (
	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/tourbot/core/telegram"
	"github.com/m3rciful/tourbot/core/telegram/helpers"
	"github.com/m3rciful/tourbot/core/telegram/keyboard"
)

// Callback tags carried by the menu buttons.
const (
	TagPay      = "faq_pay"
	TagCancel   = "faq_cancel"
	TagContacts = "faq_contacts"
)

// MenuText heads the FAQ menu.
const MenuText = "ℹ Выберите вопрос:"

type entry struct {
	tag    string
	button string
	answer string // MarkdownV2, pre-escaped
}

var entries = []entry{
	{
		tag:    TagPay,
		button: "💳 Оплата",
		answer: "💳 *Способы оплаты:*\n" +
			"\\- Картой онлайн\n" +
			"\\- Наличными в офисе\n" +
			"\\- По реквизитам через банк",
	},
	{
		tag:    TagCancel,
		button: "❌ Отмена тура",
		answer: "❌ *Условия отмены:*\n" +
			"\\- Без штрафа при отмене за 14 дней\n" +
			"\\- 50% возврат при отмене за 7 дней\n" +
			"\\- Менее 7 дней до поездки \\- стоимость не возвращается",
	},
	{
		tag:    TagContacts,
		button: "📞 Контакты",
		answer: "📞 *Контакты:*\n" +
			"\\- Менеджер: @your\\_manager\\_username\n" +
			"\\- Телефон: `+7 (XXX) XXX-XX-XX`\n" +
			"\\- Email: support@yourcompany\\.com",
	},
}

// Answer returns the MarkdownV2 text for tag.
func Answer(tag string) (string, bool) {
	for _, e := range entries {
		if e.tag == tag {
			return e.answer, true
		}
	}
	return "", false
}

// Tags lists the known callback tags in menu order.
func Tags() []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.tag
	}
	return out
}

// Menu builds the inline keyboard, one question per row. Buttons carry the
// bare tag as callback data.
func Menu() *tele.ReplyMarkup {
	btns := make([]keyboard.InlineBtn, len(entries))
	for i, e := range entries {
		btns[i] = keyboard.InlineBtn{Text: e.button, Data: e.tag}
	}
	return keyboard.InlineButtons(btns)
}

// ShowMenu replies with the FAQ menu.
func ShowMenu(c tele.Context) error {
	return helpers.SendWithMarkup(c, MenuText, Menu())
}

// Register binds every tag to a handler that edits the menu message into the answer.
func Register(reg *tg.Registry) error {
	for _, e := range entries {
		answer := e.answer
		if err := reg.RegisterCallback(e.tag, func(c tele.Context) error {
			return helpers.EditMDV2(c, answer)
		}); err != nil {
			return err
		}
	}
	return nil
}
