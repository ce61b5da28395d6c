package sanitize

import (
	"strings"
	"testing"
)

func TestName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Test!@# Movie", "Test Movie"},
		{"  Padded  ", "Padded"},
		{"A/B\\C:D*E?F\"G<H>I|J", "ABCDEFGHIJ"},
		{"../../etc/passwd", "etcpasswd"},
		{"Episódio 1", "Episdio 1"},
		{"Movie (2020)", "Movie 2020"},
		{"snake_case-name", "snake_case-name"},
		{"tab\there\nnewline", "tab here newline"},
		{"!!!", ""},
		{"日本語", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Name(tt.in); got != tt.want {
			t.Errorf("Name(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNameWith(t *testing.T) {
	tests := []struct {
		in   string
		opts Options
		want string
	}{
		{"Movie (2020)!", Options{Parens: true}, "Movie (2020)"},
		{"Episódio Ação", Options{Transliterate: true}, "Episodio Acao"},
		{"Crème Brûlée (2001)", Options{Parens: true, Transliterate: true}, "Creme Brulee (2001)"},
		{"日本語 Show", Options{Transliterate: true}, "Show"},
	}
	for _, tt := range tests {
		if got := NameWith(tt.in, tt.opts); got != tt.want {
			t.Errorf("NameWith(%q, %+v) = %q, want %q", tt.in, tt.opts, got, tt.want)
		}
	}
}

func TestName_neverUnsafe(t *testing.T) {
	inputs := []string{
		"a/b", "a\\b", "a\x00b", "..", ".", "con:", "x|y", "😀 emoji", "‮evil", "semi;colon", "per%cent",
	}
	for _, in := range inputs {
		for _, opts := range []Options{{}, {Parens: true}, {Transliterate: true}} {
			got := NameWith(in, opts)
			if strings.ContainsAny(got, "/\\\x00:*?\"<>|.%;") {
				t.Errorf("NameWith(%q) = %q contains reserved character", in, got)
			}
			if got != strings.TrimSpace(got) {
				t.Errorf("NameWith(%q) = %q not trimmed", in, got)
			}
		}
	}
}

func TestOrFallback(t *testing.T) {
	if OrFallback("", Unknown) != "Unknown" {
		t.Error("empty should fall back")
	}
	if OrFallback("X", Unknown) != "X" {
		t.Error("non-empty kept")
	}
	if OrFallback(Name("###"), Unknown) != "Unknown" {
		t.Error("all-punctuation name should fall back")
	}
}

func TestLanguageTag(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Movie L", "Movie - Legendado"},
		{"Movie L (2020)", "Movie (2020) - Legendado"},
		{"Movie", "Movie - Dublado"},
		{"Movie l", "Movie l - Dublado"},
		{"A L B L", "A B L - Legendado"},
		{"The Lord", "Theord - Legendado"},
	}
	for _, tt := range tests {
		if got := LanguageTag(tt.in); got != tt.want {
			t.Errorf("LanguageTag(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSplitTitleYear(t *testing.T) {
	tests := []struct {
		in    string
		title string
		year  int
	}{
		{"Movie (2020)", "Movie", 2020},
		{"Movie(1999) ", "Movie", 1999},
		{"Movie (1800)", "Movie (1800)", 0},
		{"Movie (HD)", "Movie (HD)", 0},
		{"Movie", "Movie", 0},
		{"(2020)", "", 2020},
		{"Movie (20201)", "Movie (20201)", 0},
	}
	for _, tt := range tests {
		title, year := SplitTitleYear(tt.in)
		if title != tt.title || year != tt.year {
			t.Errorf("SplitTitleYear(%q) = %q, %d; want %q, %d", tt.in, title, year, tt.title, tt.year)
		}
	}
}

func TestYearFrom(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"2019", "2019"},
		{"2019-05-01", "2019"},
		{"0", ""},
		{"0000", ""},
		{"N/A", ""},
		{"null", ""},
		{"", ""},
		{"abcd", ""},
		{"1850", ""},
	}
	for _, tt := range tests {
		if got := YearFrom(tt.in); got != tt.want {
			t.Errorf("YearFrom(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
