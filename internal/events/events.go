package events

import (
	"fmt"

	"PeerShare/internal/metrics"
)

// Kind identifies the type of an event.
type Kind uint8

const (
	KindFileUploaded Kind = iota + 1
	KindFileDownloaded
	KindFileNotFound
	KindError
	KindDownloadAttempt
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindFileUploaded:
		return "file_uploaded"
	case KindFileDownloaded:
		return "file_downloaded"
	case KindFileNotFound:
		return "file_not_found"
	case KindError:
		return "error"
	case KindDownloadAttempt:
		return "download_attempt"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Event is a lifecycle notification from the transfer pipeline.
type Event interface {
	Kind() Kind
}

// FileUploaded is emitted after a file has been hashed and stored.
type FileUploaded struct {
	Hash string `json:"fileHash"`
	Name string `json:"fileName"`
}

// FileDownloaded is emitted after content was written to its destination.
type FileDownloaded struct {
	Path string `json:"filePath"`
}

// FileNotFound reports a hash that is not stored locally. Downloads report
// terminal failures as Error instead.
type FileNotFound struct {
	Hash string `json:"fileHash"`
}

// Error carries a failure message for an upload or download.
type Error struct {
	Message string `json:"message"`
}

// DownloadAttempt wraps the snapshot of one download attempt.
type DownloadAttempt struct {
	Snapshot metrics.AttemptSnapshot `json:"snapshot"`
}

func (FileUploaded) Kind() Kind    { return KindFileUploaded }
func (FileDownloaded) Kind() Kind  { return KindFileDownloaded }
func (FileNotFound) Kind() Kind    { return KindFileNotFound }
func (Error) Kind() Kind           { return KindError }
func (DownloadAttempt) Kind() Kind { return KindDownloadAttempt }
