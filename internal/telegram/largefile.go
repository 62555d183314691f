package telegram

import "context"

// FileRef identifies a platform file for the large-file protocol. Size is
// carried along so the downloader can report meaningful progress.
type FileRef struct {
	FileID    string
	AccessRef string // protocol-specific access handle, opaque to callers
	SizeBytes int64
}

// ProgressFunc receives coarse-grained transfer progress in percent.
type ProgressFunc func(percent int)

// LargeFileClient is the session-based secondary protocol able to transfer
// files far beyond the Bot API limit (~2 GiB). Implementations live outside
// this repository; the router only depends on this contract.
type LargeFileClient interface {
	Connect(ctx context.Context) error
	Disconnect() error
	IsConnected() bool

	// DownloadFile streams the referenced file to destName inside the
	// client's download root and returns the final path. Progress updates
	// are coarse-grained, not per-byte.
	DownloadFile(ctx context.Context, ref FileRef, destName string, onProgress ProgressFunc) (string, error)
}
