package channels

import (
	"strings"
	"testing"
)

func TestParseTelegramChatID(t *testing.T) {
	tests := []struct {
		input        string
		wantChatID   int64
		wantThreadID int
		wantErr      bool
	}{
		{"12345", 12345, 0, false},
		{"-1001234567:5", -1001234567, 5, false},
		{"invalid", 0, 0, true},
		{"123:invalid", 123, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			gotChatID, gotThreadID, err := parseTelegramChatID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseTelegramChatID() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if gotChatID != tt.wantChatID {
				t.Errorf("parseTelegramChatID() gotChatID = %v, want %v", gotChatID, tt.wantChatID)
			}
			if gotThreadID != tt.wantThreadID {
				t.Errorf("parseTelegramChatID() gotThreadID = %v, want %v", gotThreadID, tt.wantThreadID)
			}
		})
	}
}

func TestMarkdownToTelegramHTML(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bold", "**hi**", "<b>hi</b>"},
		{"heading stripped", "# Title", "Title"},
		{"link", "[docs](https://example.com)", `<a href="https://example.com">docs</a>`},
		{"inline code escaped", "`a < b`", "<code>a &lt; b</code>"},
		{"bullet", "- item", "• item"},
		{"html escaped", "1 < 2 & 3 > 2", "1 &lt; 2 &amp; 3 &gt; 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := markdownToTelegramHTML(tt.input); got != tt.want {
				t.Errorf("markdownToTelegramHTML(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestMarkdownToTelegramHTML_CodeBlockContentsUntouched(t *testing.T) {
	got := markdownToTelegramHTML("```\n**not bold** <tag>\n```")
	if !strings.Contains(got, "<pre><code>") {
		t.Fatalf("Expected pre/code wrapper, got %q", got)
	}
	if !strings.Contains(got, "**not bold**") {
		t.Errorf("Markdown inside a code fence must not be rewritten: %q", got)
	}
	if !strings.Contains(got, "&lt;tag&gt;") {
		t.Errorf("HTML inside a code fence must be escaped: %q", got)
	}
}
