package format

import (
	"strings"
	"testing"
)

func TestEscapeMarkdownV2EveryReservedChar(t *testing.T) {
	for _, r := range mdV2Specials {
		in := "a" + string(r) + "b"
		want := "a\\" + string(r) + "b"
		if got := EscapeMarkdownV2(in); got != want {
			t.Fatalf("EscapeMarkdownV2(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEscapeMarkdownV2LeavesOtherCharsAlone(t *testing.T) {
	in := "Турция, Бали 0123456789 ,/:;<?@ABC abc \\ $%&'\"^"
	if got := EscapeMarkdownV2(in); got != in {
		t.Fatalf("unreserved text changed: %q -> %q", in, got)
	}
}

func TestEscapeMarkdownV2Examples(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{"01-15 Aug", `01\-15 Aug`},
		{"100 000 RUB!", `100 000 RUB\!`},
		{"my_name", `my\_name`},
		{"a.b (c)", `a\.b \(c\)`},
		{42, "42"},
		{-1.5, `\-1\.5`},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := EscapeMarkdownV2(tt.in); got != tt.want {
			t.Fatalf("EscapeMarkdownV2(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEscapeMarkdownV2NotIdempotent(t *testing.T) {
	once := EscapeMarkdownV2("a.b")
	twice := EscapeMarkdownV2(once)
	if twice != `a\\.b` {
		t.Fatalf("double escape = %q", twice)
	}
}

func TestEscapeMarkdownVersions(t *testing.T) {
	got, err := EscapeMarkdown("*bold* _it_ [x] `c`", MarkdownV1, "")
	if err != nil {
		t.Fatalf("v1: %v", err)
	}
	if got != "\\*bold\\* \\_it\\_ \\[x] \\`c\\`" {
		t.Fatalf("v1 = %q", got)
	}

	got, err = EscapeMarkdown("x.y `z` \\", MarkdownV2, EntityCode)
	if err != nil {
		t.Fatalf("v2 code: %v", err)
	}
	if got != "x.y \\`z\\` \\\\" {
		t.Fatalf("v2 code = %q", got)
	}

	got, err = EscapeMarkdown("tg://user?id=1)", MarkdownV2, EntityTextLink)
	if err != nil {
		t.Fatalf("v2 link: %v", err)
	}
	if got != "tg://user?id=1\\)" {
		t.Fatalf("v2 link = %q", got)
	}

	if _, err := EscapeMarkdown("x", 3, ""); err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Fatalf("expected unsupported version error, got %v", err)
	}
}
