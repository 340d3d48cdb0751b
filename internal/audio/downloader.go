// Package audio downloads remote recordings to request-scoped temp files.
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"pos-voice-relay/internal/logger"
	"pos-voice-relay/internal/types"
)

const defaultExt = ".mp3"

// maxErrorBody caps how much of a failed response is kept as payload.
const maxErrorBody = 64 << 10

// File is a downloaded recording on local disk.
type File struct {
	Path string
	Size int64
}

// Name is the base file name, used as the multipart filename upstream.
func (f *File) Name() string { return filepath.Base(f.Path) }

// Open opens the file for reading.
func (f *File) Open() (*os.File, error) { return os.Open(f.Path) }

// Remove deletes the file. Removing an already removed file is not an error.
func (f *File) Remove() error {
	if f == nil || f.Path == "" {
		return nil
	}
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Downloader streams a URL into a uniquely named file under Dir.
type Downloader struct {
	client *http.Client
	dir    string
	log    *logger.Logger
}

// NewDownloader returns a Downloader. An empty dir means os.TempDir().
func NewDownloader(client *http.Client, dir string, log *logger.Logger) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	if dir == "" {
		dir = os.TempDir()
	}
	return &Downloader{client: client, dir: dir, log: log.Component("audio")}
}

// Fetch downloads rawURL. The caller owns the returned file and must Remove it.
func (d *Downloader) Fetch(ctx context.Context, rawURL string) (*File, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &types.UpstreamError{Service: "audio", StatusCode: resp.StatusCode, Payload: b}
	}

	f := &File{Path: filepath.Join(d.dir, uuid.New().String()+extension(rawURL))}
	out, err := os.OpenFile(f.Path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	n, copyErr := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if copyErr != nil || closeErr != nil {
		_ = f.Remove()
		return nil, fmt.Errorf("write temp file: %w", errors.Join(copyErr, closeErr))
	}
	f.Size = n

	d.log.WithField("path", f.Path).WithField("bytes", n).Debug("audio downloaded")
	return f, nil
}

// extension keeps the URL's file extension so the transcriber can infer the format.
func extension(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return defaultExt
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if ext == "" || len(ext) > 6 {
		return defaultExt
	}
	return ext
}
