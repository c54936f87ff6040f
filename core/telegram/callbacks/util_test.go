package callbacks

import (
	"testing"

	tele "gopkg.in/telebot.v4"
)

func TestParseCallbackData(t *testing.T) {
	tests := []struct {
		name         string
		cb           *tele.Callback
		key, payload string
	}{
		{"nil", nil, "", ""},
		{"plain tag", &tele.Callback{Data: "faq_pay"}, "faq_pay", ""},
		{"unique encoding", &tele.Callback{Data: "\ffaq_cancel|x"}, "faq_cancel", "x"},
		{"unique resolved by telebot", &tele.Callback{Unique: "faq_contacts", Data: "p"}, "faq_contacts", "p"},
		{"spaces trimmed", &tele.Callback{Data: " faq_pay |1"}, "faq_pay", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, payload := ParseCallbackData(tt.cb)
			if key != tt.key || payload != tt.payload {
				t.Fatalf("got (%q, %q), want (%q, %q)", key, payload, tt.key, tt.payload)
			}
		})
	}
}
