package media

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseDuration(t *testing.T) {
	cases := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"12.345\n", 12.345, false},
		{"  0.5  ", 0.5, false},
		{"42", 42, false},
		{"N/A", 0, true},
		{"", 0, true},
	}

	for _, tc := range cases {
		got, err := ParseDuration(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseDuration(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDuration(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseDuration(%q) = %g, want %g", tc.in, got, tc.want)
		}
	}
}

func TestWriteConcatList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.txt")
	if err := WriteConcatList(path, []string{"a.mp4", "b.mp4", "c.mp4"}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "file 'a.mp4'\nfile 'b.mp4'\nfile 'c.mp4'"
	if string(data) != want {
		t.Fatalf("manifest = %q, want %q", data, want)
	}
}

func TestEscapeDrawText(t *testing.T) {
	cases := []struct{ in, want string }{
		{"plain text", "plain text"},
		{"it's time", "it\\'s time"},
		{"scene: one", "scene\\: one"},
		{`back\slash`, `back\\slash`},
	}
	for _, tc := range cases {
		if got := EscapeDrawText(tc.in); got != tc.want {
			t.Errorf("EscapeDrawText(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatSeconds(t *testing.T) {
	if got := FormatSeconds(4.5); got != "4.500" {
		t.Fatalf("FormatSeconds(4.5) = %q", got)
	}
	if got := FormatSeconds(10); got != "10.000" {
		t.Fatalf("FormatSeconds(10) = %q", got)
	}
}
