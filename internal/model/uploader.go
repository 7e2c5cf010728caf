package model

import "context"

// Uploader stores one JSON encoded scan report. Upload may be called from
// several goroutines, each call gets its own report.
type Uploader interface {
	Upload(ctx context.Context, report []byte) error
}

// UploadCloser is an Uploader holding resources, it is closed once the
// supervisor stops.
type UploadCloser interface {
	Uploader
	Close() error
}
