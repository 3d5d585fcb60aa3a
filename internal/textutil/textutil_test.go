package textutil

import "testing"

func TestClean(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Blue backpack  ", "Blue backpack"},
		{"Library <Rm 204>", "Library <Rm 204>"},
		{"\tTom & Jerry mug\n", "Tom & Jerry mug"},
		{"   ", ""},
	}
	for _, tt := range tests {
		if got := Clean(tt.in); got != tt.want {
			t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHasMarkup(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"Blue backpack", false},
		{"Tom & Jerry mug", false},
		{"size < 10cm", false},
		{"it's the \"red\" one", false},
		{"Library, room 204", false},
		{"<b>Keys</b> on a ring", true},
		{"<script>alert(1)</script>Wallet", true},
		{"Library <Rm 204>", true},
		{"<Library Rm 204>", true},
		{"&lt;img src=x onerror=alert(1)&gt;", true},
		{"<!-- hidden -->note", true},
	}
	for _, tt := range tests {
		if got := HasMarkup(tt.in); got != tt.want {
			t.Errorf("HasMarkup(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTooLong(t *testing.T) {
	if TooLong("ščž", 3) {
		t.Error("expected three runes to fit a limit of three")
	}
	if !TooLong("abcd", 3) {
		t.Error("expected four runes to exceed a limit of three")
	}
}
