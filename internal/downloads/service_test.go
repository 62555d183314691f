package downloads

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tgmanager/tgmanager/internal/config"
)

func newTestService(t *testing.T) (*Service, string) {
	t.Helper()
	base := t.TempDir()
	svc := NewService(config.DownloadsConfig{BasePath: base}, zerolog.Nop())
	return svc, base
}

func writeFile(t *testing.T, base, folder, name, content string) {
	t.Helper()
	dir := filepath.Join(base, folder)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		want Category
	}{
		{"movie.mp4", CategoryVideo},
		{"movie.MKV", CategoryVideo},
		{"track.mp3", CategoryAudio},
		{"track.flac", CategoryAudio},
		{"photo.jpg", CategoryImage},
		{"manual.pdf", CategoryPDF},
		{"archive.zip", CategoryDocument},
		{"README", CategoryDocument},
	}
	for _, tt := range tests {
		if got := Classify(tt.name); got != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestList(t *testing.T) {
	svc, base := newTestService(t)
	writeFile(t, base, "completed", "movie.mp4", "vvvv")
	writeFile(t, base, "youtube/audio", "track.mp3", "aa")
	writeFile(t, base, "", "notes.txt", "n")

	entries, err := svc.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("List() len = %d, want 3", len(entries))
	}

	byName := map[string]Entry{}
	for _, e := range entries {
		byName[e.Name] = e
	}

	movie := byName["movie.mp4"]
	if movie.Folder != "completed" || movie.Category != CategoryVideo || movie.SizeBytes != 4 {
		t.Errorf("movie entry = %+v", movie)
	}

	track := byName["track.mp3"]
	if track.Folder != "youtube/audio" || track.Category != CategoryAudio {
		t.Errorf("track entry = %+v", track)
	}

	if byName["notes.txt"].Folder != "" {
		t.Errorf("root entry folder = %q, want empty", byName["notes.txt"].Folder)
	}
}

func TestList_StableIDs(t *testing.T) {
	svc, base := newTestService(t)
	writeFile(t, base, "completed", "movie.mp4", "vvvv")

	first, err := svc.List()
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.List()
	if err != nil {
		t.Fatal(err)
	}

	if first[0].ID != second[0].ID {
		t.Errorf("id changed across listings: %q vs %q", first[0].ID, second[0].ID)
	}

	want := fmt.Sprintf("completed_movie.mp4_%d", first[0].ModifiedAt)
	if first[0].ID != want {
		t.Errorf("ID = %q, want %q", first[0].ID, want)
	}
}

func TestList_EmptyRoot(t *testing.T) {
	svc := NewService(config.DownloadsConfig{BasePath: "/nonexistent/downloads"}, zerolog.Nop())

	entries, err := svc.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("List() len = %d, want 0", len(entries))
	}
}

func TestOpen(t *testing.T) {
	svc, base := newTestService(t)
	writeFile(t, base, "completed", "movie.mp4", "file body")

	f, entry, err := svc.Open("completed", "movie.mp4")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "file body" {
		t.Errorf("content = %q", data)
	}
	if entry.SizeBytes != int64(len("file body")) {
		t.Errorf("SizeBytes = %d", entry.SizeBytes)
	}
}

func TestOpen_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, _, err := svc.Open("completed", "missing.mp4")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Open() error = %v, want ErrNotFound", err)
	}
}

func TestResolve_RejectsTraversal(t *testing.T) {
	svc, _ := newTestService(t)

	tests := []struct {
		folder string
		name   string
	}{
		{"..", "secret.txt"},
		{"completed", "../../etc/passwd"},
		{"../outside", "file.txt"},
		{"completed/../..", "file.txt"},
	}
	for _, tt := range tests {
		if _, err := svc.Resolve(tt.folder, tt.name); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("Resolve(%q, %q) error = %v, want ErrInvalidPath", tt.folder, tt.name, err)
		}
	}

	// Containment check, not an existence check: valid shapes pass.
	if _, err := svc.Resolve("completed", "movie.mp4"); err != nil {
		t.Errorf("Resolve(valid) error = %v", err)
	}
}

func TestDelete(t *testing.T) {
	svc, base := newTestService(t)
	writeFile(t, base, "completed", "movie.mp4", "x")

	if err := svc.Delete("completed", "movie.mp4"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(base, "completed", "movie.mp4")); !os.IsNotExist(err) {
		t.Error("file still present after Delete()")
	}

	if err := svc.Delete("completed", "movie.mp4"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}
