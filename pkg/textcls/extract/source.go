package extract

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/cognicore/textcls/pkg/textcls/internalerr"
	"github.com/cognicore/textcls/pkg/textcls/stage"
)

// Source supplies the byte stream an Extractor parses.
type Source interface {
	// String describes the source in logs.
	String() string
	// Check validates the source during Init.
	Check(ctx context.Context, log *zap.Logger) stage.Result
	// Open returns the stream to parse.
	Open(ctx context.Context, log *zap.Logger) (io.ReadCloser, error)
	// Cleanup removes anything Open left behind.
	Cleanup(log *zap.Logger) error
}

// FileSource reads a local file. Archives are detected by extension and
// yield their first regular file.
type FileSource struct {
	Path string
}

func (s *FileSource) String() string { return s.Path }

// Check implements Source.
func (s *FileSource) Check(ctx context.Context, log *zap.Logger) stage.Result {
	return stage.CheckInput(log, "input", s.Path)
}

// Open implements Source.
func (s *FileSource) Open(ctx context.Context, log *zap.Logger) (io.ReadCloser, error) {
	rc, entry, err := OpenArchive(s.Path)
	if err != nil {
		return nil, err
	}
	if entry != "" {
		log.Info("reading archive entry", zap.String("archive", s.Path), zap.String("entry", entry))
	}
	return rc, nil
}

// Cleanup implements Source.
func (s *FileSource) Cleanup(log *zap.Logger) error { return nil }

// ArchiveKind is the container format inferred from a file name.
type ArchiveKind int

const (
	Plain ArchiveKind = iota
	Zip
	TarGzip
	TarBzip2
	Tar
	Gzip
	Bzip2
)

// DetectArchive infers the container format from the name's extension.
func DetectArchive(name string) ArchiveKind {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return Zip
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return TarGzip
	case strings.HasSuffix(lower, ".tar.bz"), strings.HasSuffix(lower, ".tar.bz2"),
		strings.HasSuffix(lower, ".tbz"), strings.HasSuffix(lower, ".tbz2"):
		return TarBzip2
	case strings.HasSuffix(lower, ".tar"):
		return Tar
	case strings.HasSuffix(lower, ".gz"):
		return Gzip
	case strings.HasSuffix(lower, ".bz2"):
		return Bzip2
	}
	return Plain
}

// Extension returns the canonical file extension of the kind.
func (k ArchiveKind) Extension() string {
	switch k {
	case Zip:
		return ".zip"
	case TarGzip:
		return ".tar.gz"
	case TarBzip2:
		return ".tar.bz2"
	case Tar:
		return ".tar"
	case Gzip:
		return ".gz"
	case Bzip2:
		return ".bz2"
	}
	return ""
}

// OpenArchive opens path, unwrapping compression and, for multi-file
// archives, positioning on the first regular file, whose name is returned.
// An archive without regular files yields internalerr.ErrEmptyArchive.
func OpenArchive(path string) (io.ReadCloser, string, error) {
	kind := DetectArchive(path)
	if kind == Zip {
		return openZip(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	switch kind {
	case Gzip, TarGzip:
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, "", fmt.Errorf("%s: %w", path, err)
		}
		if kind == Gzip {
			return readCloser{zr, closeAll(zr, f)}, "", nil
		}
		return firstTarEntry(path, zr, closeAll(zr, f))
	case Bzip2:
		return readCloser{bzip2.NewReader(f), f.Close}, "", nil
	case TarBzip2:
		return firstTarEntry(path, bzip2.NewReader(f), f.Close)
	case Tar:
		return firstTarEntry(path, f, f.Close)
	}
	return f, "", nil
}

func openZip(path string) (io.ReadCloser, string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", path, err)
	}
	for _, entry := range zr.File {
		if entry.FileInfo().IsDir() || strings.HasSuffix(entry.Name, "/") {
			continue
		}
		rc, err := entry.Open()
		if err != nil {
			zr.Close()
			return nil, "", fmt.Errorf("%s: %s: %w", path, entry.Name, err)
		}
		return readCloser{rc, closeAll(rc, zr)}, entry.Name, nil
	}
	zr.Close()
	return nil, "", fmt.Errorf("%s: %w", path, internalerr.ErrEmptyArchive)
}

func firstTarEntry(path string, r io.Reader, closer func() error) (io.ReadCloser, string, error) {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			closer()
			return nil, "", fmt.Errorf("%s: %w", path, internalerr.ErrEmptyArchive)
		}
		if err != nil {
			closer()
			return nil, "", fmt.Errorf("%s: %w", path, err)
		}
		if hdr.Typeflag == tar.TypeReg {
			return readCloser{tr, closer}, hdr.Name, nil
		}
	}
}

type readCloser struct {
	io.Reader
	close func() error
}

func (r readCloser) Close() error { return r.close() }

func closeAll(closers ...io.Closer) func() error {
	return func() error {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c.Close())
		}
		return errors.Join(errs...)
	}
}

// DefaultDownloadTimeout bounds a web download.
const DefaultDownloadTimeout = 10 * time.Minute

// WebSource downloads a URL to a temporary file and reads it like a
// FileSource. The temporary file is removed in Cleanup.
type WebSource struct {
	URL string
	// Dir holds the temporary download; empty means os.TempDir().
	Dir     string
	Timeout time.Duration
	Client  *http.Client

	file *FileSource
}

func (s *WebSource) String() string { return s.URL }

// Check validates the URL.
func (s *WebSource) Check(ctx context.Context, log *zap.Logger) stage.Result {
	u, err := url.Parse(s.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		log.Error("input URL must be http or https", zap.String("url", s.URL))
		return stage.InvalidOptions
	}
	return stage.Success
}

// TempName derives a unique local file name for the download, keeping the
// archive extension of the URL's last path segment.
func (s *WebSource) TempName() string {
	ext := ""
	if u, err := url.Parse(s.URL); err == nil {
		ext = DetectArchive(path.Base(u.Path)).Extension()
	}
	dir := s.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "textcls-"+ulid.MustNew(ulid.Now(), rand.Reader).String()+ext)
}

// Open downloads the URL and opens the local copy.
func (s *WebSource) Open(ctx context.Context, log *zap.Logger) (io.ReadCloser, error) {
	if s.file == nil {
		s.file = &FileSource{Path: s.TempName()}
	}
	started := time.Now()
	n, err := s.download(ctx, s.file.Path)
	if err != nil {
		return nil, err
	}
	log.Info("downloaded", zap.String("url", s.URL), zap.String("file", s.file.Path),
		zap.Int64("bytes", n), zap.Duration("elapsed", time.Since(started)))
	return s.file.Open(ctx, log)
}

func (s *WebSource) download(ctx context.Context, dest string) (int64, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultDownloadTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return 0, err
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download %s: %w", s.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download %s: %s", s.URL, resp.Status)
	}

	f, err := os.Create(dest)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("download %s: %w", s.URL, err)
	}
	return n, nil
}

// Cleanup removes the downloaded file.
func (s *WebSource) Cleanup(log *zap.Logger) error {
	if s.file == nil {
		return nil
	}
	if err := os.Remove(s.file.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	log.Debug("temporary download removed", zap.String("file", s.file.Path))
	return nil
}
