package format

import (
	"fmt"
	"regexp"
)

const (
	// MarkdownV1 denotes Telegram markdown version 1.
	MarkdownV1 = 1
	// MarkdownV2 denotes Telegram markdown version 2.
	MarkdownV2 = 2
)

// Entity types with their own MarkdownV2 escaping rules.
const (
	EntityPre         = "pre"
	EntityCode        = "code"
	EntityTextLink    = "text_link"
	EntityCustomEmoji = "custom_emoji"
)

// mdV2Specials lists the characters MarkdownV2 reserves outside entities.
const mdV2Specials = "_*[]()~`>#+-=|{}.!"

// '-' is escaped in mdV2Re so it is not read as a range inside the class.
var (
	mdV1Re     = regexp.MustCompile("([_*`\\[])")
	mdV2Re     = regexp.MustCompile("([_*\\[\\]()~`>#+\\-=|{}.!])")
	mdV2CodeRe = regexp.MustCompile("([`\\\\])")
	mdV2LinkRe = regexp.MustCompile(`([)\\])`)
)

// EscapeMarkdown escapes special characters for MarkdownV1 or V2.
// entityType narrows the V2 rules for text placed inside pre/code blocks or link targets.
func EscapeMarkdown(text string, version int, entityType string) (string, error) {
	switch version {
	case MarkdownV1:
		return mdV1Re.ReplaceAllString(text, `\$1`), nil
	case MarkdownV2:
		switch entityType {
		case EntityPre, EntityCode:
			return mdV2CodeRe.ReplaceAllString(text, `\$1`), nil
		case EntityTextLink, EntityCustomEmoji:
			return mdV2LinkRe.ReplaceAllString(text, `\$1`), nil
		}
		return mdV2Re.ReplaceAllString(text, `\$1`), nil
	}
	return "", fmt.Errorf("unsupported markdown version: %d", version)
}

// EscapeMarkdownV2 escapes any value for plain MarkdownV2 text. Non-strings are
// formatted with fmt.Sprint first. Escaping twice doubles the backslashes.
func EscapeMarkdownV2(v any) string {
	var text string
	switch x := v.(type) {
	case string:
		text = x
	case nil:
		text = ""
	default:
		text = fmt.Sprint(x)
	}
	return mdV2Re.ReplaceAllString(text, `\$1`)
}
