package transfer

import (
	"regexp"
	"strings"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "report.pdf", "report.pdf"},
		{"path separators removed", "a/b\\c.txt", "abc.txt"},
		{"unsafe chars removed", `what<>:"|?*.mp4`, "what.mp4"},
		{"whitespace collapsed", "my   cool\t\tfile.mkv", "my cool file.mkv"},
		{"trimmed", "  padded.bin  ", "padded.bin"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFilename(tt.in); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeFilename_Truncates(t *testing.T) {
	long := strings.Repeat("a", 300) + ".mp4"
	got := SanitizeFilename(long)

	if len(got) > maxFilenameLength {
		t.Errorf("len = %d, want <= %d", len(got), maxFilenameLength)
	}
	if !strings.HasSuffix(got, ".mp4") {
		t.Errorf("extension lost: %q", got[len(got)-8:])
	}
}

func TestFilenameFromURL(t *testing.T) {
	if got := FilenameFromURL("https://example.com/files/video.mp4"); got != "video.mp4" {
		t.Errorf("FilenameFromURL() = %q, want video.mp4", got)
	}

	if got := FilenameFromURL("https://example.com/files/video.mp4?token=abc"); got != "video.mp4" {
		t.Errorf("FilenameFromURL() with query = %q, want video.mp4", got)
	}
}

func TestFilenameFromURL_SyntheticFallback(t *testing.T) {
	synthetic := regexp.MustCompile(`^download_\d+\.bin$`)

	for _, raw := range []string{
		"https://example.com/path/",
		"https://example.com",
		"https://example.com/",
	} {
		got := FilenameFromURL(raw)
		if !synthetic.MatchString(got) {
			t.Errorf("FilenameFromURL(%q) = %q, want download_<digits>.bin", raw, got)
		}
	}
}
