package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tgmanager/tgmanager/internal/config"
	"github.com/tgmanager/tgmanager/internal/telegram"
)

const testThreshold = 20 * 1024 * 1024 // 20 MiB

type fakeSmallClient struct {
	content  string
	getCalls int
	getErr   error
	openErr  error
}

func (f *fakeSmallClient) GetFile(ctx context.Context, fileID string) (*telegram.File, error) {
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &telegram.File{FileID: fileID, FilePath: "documents/" + fileID}, nil
}

func (f *fakeSmallClient) OpenFile(ctx context.Context, filePath string) (io.ReadCloser, int64, error) {
	if f.openErr != nil {
		return nil, 0, f.openErr
	}
	return io.NopCloser(strings.NewReader(f.content)), int64(len(f.content)), nil
}

type fakeLargeClient struct {
	connected bool
	calls     int
	err       error
	progress  []int
	destDir   string
}

func (f *fakeLargeClient) Connect(ctx context.Context) error { f.connected = true; return nil }
func (f *fakeLargeClient) Disconnect() error                 { f.connected = false; return nil }
func (f *fakeLargeClient) IsConnected() bool                 { return f.connected }

func (f *fakeLargeClient) DownloadFile(ctx context.Context, ref telegram.FileRef, destName string, onProgress telegram.ProgressFunc) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	for _, p := range f.progress {
		if onProgress != nil {
			onProgress(p)
		}
	}
	destPath := filepath.Join(f.destDir, destName)
	if err := os.WriteFile(destPath, []byte("large file content"), 0644); err != nil {
		return "", err
	}
	return destPath, nil
}

func newTestRouter(small SmallFileClient, large telegram.LargeFileClient) *Router {
	return NewRouter(config.TransferConfig{
		LargeFileThreshold: testThreshold,
		HTTPTimeoutSeconds: 5,
	}, small, large, zerolog.Nop())
}

func TestSelectProtocol_SmallFiles(t *testing.T) {
	r := newTestRouter(&fakeSmallClient{}, &fakeLargeClient{connected: true})

	for _, size := range []int64{0, 1, 1024, testThreshold - 1, testThreshold} {
		source, err := r.SelectProtocol(size)
		if err != nil {
			t.Fatalf("SelectProtocol(%d) error = %v", size, err)
		}
		if source != SourcePlatformSmall {
			t.Errorf("SelectProtocol(%d) = %s, want %s", size, source, SourcePlatformSmall)
		}
	}
}

func TestSelectProtocol_LargeFiles(t *testing.T) {
	r := newTestRouter(&fakeSmallClient{}, &fakeLargeClient{connected: true})

	for _, size := range []int64{testThreshold + 1, 100 * 1024 * 1024, 2 * 1024 * 1024 * 1024} {
		source, err := r.SelectProtocol(size)
		if err != nil {
			t.Fatalf("SelectProtocol(%d) error = %v", size, err)
		}
		if source != SourcePlatformLarge {
			t.Errorf("SelectProtocol(%d) = %s, want %s", size, source, SourcePlatformLarge)
		}
	}
}

func TestSelectProtocol_LargeClientUnavailable(t *testing.T) {
	tests := []struct {
		name  string
		large telegram.LargeFileClient
	}{
		{"disconnected", &fakeLargeClient{connected: false}},
		{"nil client", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(&fakeSmallClient{}, tt.large)

			_, err := r.SelectProtocol(testThreshold + 1)
			if !errors.Is(err, ErrProtocolUnavailable) {
				t.Errorf("SelectProtocol() error = %v, want ErrProtocolUnavailable", err)
			}
		})
	}
}

func TestDownloadPlatformFile_SmallPath(t *testing.T) {
	destDir := t.TempDir()
	small := &fakeSmallClient{content: "small file content"}
	r := newTestRouter(small, nil)

	var gotProgress []int
	task, err := r.DownloadPlatformFile(context.Background(), PlatformFile{
		FileID:    "file-1",
		FileName:  "notes.txt",
		SizeBytes: 1024,
	}, destDir, func(p int) { gotProgress = append(gotProgress, p) })
	if err != nil {
		t.Fatalf("DownloadPlatformFile() error = %v", err)
	}

	if task.Status != StatusCompleted {
		t.Errorf("task.Status = %s, want %s", task.Status, StatusCompleted)
	}
	if task.Source != SourcePlatformSmall {
		t.Errorf("task.Source = %s, want %s", task.Source, SourcePlatformSmall)
	}

	data, err := os.ReadFile(filepath.Join(destDir, "notes.txt"))
	if err != nil {
		t.Fatalf("reading destination file: %v", err)
	}
	if string(data) != "small file content" {
		t.Errorf("destination content = %q", data)
	}

	// Pass-through transport: completion only.
	if len(gotProgress) == 0 || gotProgress[len(gotProgress)-1] != 100 {
		t.Errorf("progress = %v, want final 100", gotProgress)
	}
}

func TestDownloadPlatformFile_LargePath(t *testing.T) {
	destDir := t.TempDir()
	small := &fakeSmallClient{}
	large := &fakeLargeClient{connected: true, progress: []int{25, 50, 75}, destDir: destDir}
	r := newTestRouter(small, large)

	task, err := r.DownloadPlatformFile(context.Background(), PlatformFile{
		FileID:    "file-2",
		FileName:  "big.mkv",
		SizeBytes: testThreshold + 1,
	}, destDir, nil)
	if err != nil {
		t.Fatalf("DownloadPlatformFile() error = %v", err)
	}

	if task.Status != StatusCompleted {
		t.Errorf("task.Status = %s, want %s", task.Status, StatusCompleted)
	}
	if large.calls != 1 {
		t.Errorf("large client calls = %d, want 1", large.calls)
	}
	if small.getCalls != 0 {
		t.Errorf("small client used for a large transfer (%d calls)", small.getCalls)
	}
}

func TestDownloadPlatformFile_LargeUnavailableNoAttempt(t *testing.T) {
	large := &fakeLargeClient{connected: false}
	small := &fakeSmallClient{}
	r := newTestRouter(small, large)

	_, err := r.DownloadPlatformFile(context.Background(), PlatformFile{
		FileID:    "file-3",
		FileName:  "big.mkv",
		SizeBytes: testThreshold + 1,
	}, t.TempDir(), nil)

	if !errors.Is(err, ErrProtocolUnavailable) {
		t.Fatalf("DownloadPlatformFile() error = %v, want ErrProtocolUnavailable", err)
	}
	if large.calls != 0 {
		t.Errorf("large client attempted %d transfers, want 0", large.calls)
	}
	if small.getCalls != 0 {
		t.Errorf("small client attempted %d transfers, want 0 (no silent fallback)", small.getCalls)
	}
}

func TestDownloadPlatformFile_MissingFileID(t *testing.T) {
	r := newTestRouter(&fakeSmallClient{}, nil)

	_, err := r.DownloadPlatformFile(context.Background(), PlatformFile{}, t.TempDir(), nil)
	if !errors.Is(err, ErrValidation) {
		t.Errorf("DownloadPlatformFile() error = %v, want ErrValidation", err)
	}
}

func TestDownloadPlatformFile_ProgressMonotonic(t *testing.T) {
	destDir := t.TempDir()
	// Out-of-order coarse updates from the transport must never rewind
	// the task's recorded progress.
	large := &fakeLargeClient{connected: true, progress: []int{40, 20, 80, 60}, destDir: destDir}
	r := newTestRouter(&fakeSmallClient{}, large)

	task, err := r.DownloadPlatformFile(context.Background(), PlatformFile{
		FileID:    "file-4",
		FileName:  "big.bin",
		SizeBytes: testThreshold + 1,
	}, destDir, nil)
	if err != nil {
		t.Fatalf("DownloadPlatformFile() error = %v", err)
	}
	if task.ProgressPercent != 100 {
		t.Errorf("final ProgressPercent = %d, want 100", task.ProgressPercent)
	}
}

func TestDownloadURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "payload from server")
	}))
	defer server.Close()

	destDir := t.TempDir()
	r := newTestRouter(&fakeSmallClient{}, nil)

	task, err := r.DownloadURL(context.Background(), server.URL+"/files/data.bin", destDir, nil)
	if err != nil {
		t.Fatalf("DownloadURL() error = %v", err)
	}

	if task.Status != StatusCompleted {
		t.Errorf("task.Status = %s, want %s", task.Status, StatusCompleted)
	}
	data, err := os.ReadFile(filepath.Join(destDir, "data.bin"))
	if err != nil {
		t.Fatalf("reading destination file: %v", err)
	}
	if string(data) != "payload from server" {
		t.Errorf("destination content = %q", data)
	}
}

func TestDownloadURL_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	r := newTestRouter(&fakeSmallClient{}, nil)

	task, err := r.DownloadURL(context.Background(), server.URL+"/missing.bin", t.TempDir(), nil)
	if err == nil {
		t.Fatal("DownloadURL() error = nil, want failure")
	}
	if task.Status != StatusFailed {
		t.Errorf("task.Status = %s, want %s", task.Status, StatusFailed)
	}
	if task.Error == "" {
		t.Error("task.Error empty, want transport error recorded")
	}
}

func TestDownloadURL_InvalidScheme(t *testing.T) {
	r := newTestRouter(&fakeSmallClient{}, nil)

	_, err := r.DownloadURL(context.Background(), "ftp://example.com/file", t.TempDir(), nil)
	if !errors.Is(err, ErrValidation) {
		t.Errorf("DownloadURL() error = %v, want ErrValidation", err)
	}
}

func TestTasksListing(t *testing.T) {
	destDir := t.TempDir()
	small := &fakeSmallClient{content: "x"}
	r := newTestRouter(small, nil)

	task, err := r.DownloadPlatformFile(context.Background(), PlatformFile{
		FileID:   "file-5",
		FileName: "a.txt",
	}, destDir, nil)
	if err != nil {
		t.Fatalf("DownloadPlatformFile() error = %v", err)
	}

	tasks := r.Tasks()
	if len(tasks) != 1 {
		t.Fatalf("Tasks() len = %d, want 1", len(tasks))
	}

	got, err := r.Get(task.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusCompleted {
		t.Errorf("Get().Status = %s, want %s", got.Status, StatusCompleted)
	}

	if _, err := r.Get("nope"); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Get(unknown) error = %v, want ErrTaskNotFound", err)
	}
}

func TestYouTubeTaskLifecycle(t *testing.T) {
	r := newTestRouter(&fakeSmallClient{}, nil)

	task := r.RegisterYouTubeTask("https://youtu.be/abc123")
	if task.Source != SourceYouTube {
		t.Errorf("Source = %s, want %s", task.Source, SourceYouTube)
	}

	got, err := r.Get(task.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusTransferring {
		t.Errorf("Status = %s, want %s", got.Status, StatusTransferring)
	}

	r.CompleteTask(task.ID, "/downloads/youtube/video/clip.mp4")
	got, _ = r.Get(task.ID)
	if got.Status != StatusCompleted || got.ProgressPercent != 100 {
		t.Errorf("after complete: status=%s progress=%d", got.Status, got.ProgressPercent)
	}
	if got.DestinationPath != "/downloads/youtube/video/clip.mp4" {
		t.Errorf("DestinationPath = %q", got.DestinationPath)
	}

	tasks := r.Tasks()
	if len(tasks) != 1 || tasks[0].Source != SourceYouTube {
		t.Errorf("Tasks() = %+v, want the youtube task listed", tasks)
	}
}

func TestYouTubeTaskFailure(t *testing.T) {
	r := newTestRouter(&fakeSmallClient{}, nil)

	task := r.RegisterYouTubeTask("https://youtu.be/abc123")
	r.FailTask(task.ID, errors.New("exit code 1"))

	got, err := r.Get(task.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusFailed || got.Error != "exit code 1" {
		t.Errorf("after fail: status=%s error=%q", got.Status, got.Error)
	}

	// Unknown ids are ignored rather than panicking.
	r.CompleteTask("nope", "/tmp/x")
	r.FailTask("nope", errors.New("x"))
}
