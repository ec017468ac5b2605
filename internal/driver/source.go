package driver

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/zstd"

	"github.com/dloss/linepipe/internal/errs"
)

// Source is one input the Stream Driver reads lines from. DisplayName
// returns "" for standard input, the absent-marker value FILENAME takes
// on stdin.
type Source interface {
	DisplayName() string
	Open() (io.ReadCloser, error)
}

// stdinSource reads os.Stdin; its DisplayName is empty.
type stdinSource struct{}

func NewStdinSource() Source                       { return stdinSource{} }
func (stdinSource) DisplayName() string             { return "" }
func (stdinSource) Open() (io.ReadCloser, error)    { return io.NopCloser(os.Stdin), nil }

// fileSource reads a path, applying transparent decompression with
// bzip2/gzip/zstd auto-detected by file extension (.bz2, .gz, .zst); the
// file's contents are not inspected.
type fileSource struct {
	path       string
	decompress string // "auto", "gzip", "bzip2", "zstd", "none"
}

func NewFileSource(path, decompress string) Source {
	return &fileSource{path: path, decompress: decompress}
}

func (s *fileSource) DisplayName() string { return s.path }

func (s *fileSource) Open() (io.ReadCloser, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errs.ErrIO, s.path, err)
	}

	mode := s.decompress
	if mode == "" || mode == "auto" {
		mode = detectCompression(s.path)
	}

	switch mode {
	case "none", "":
		return f, nil
	case "gzip":
		gz, err := gzip.NewReader(bufio.NewReader(f))
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: %s: %v", errs.ErrIO, s.path, err)
		}
		return wrapCloser{Reader: gz, closeFn: func() error { gz.Close(); return f.Close() }}, nil
	case "bzip2":
		bz, err := bzip2.NewReader(bufio.NewReader(f), nil)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: %s: %v", errs.ErrIO, s.path, err)
		}
		return wrapCloser{Reader: bz, closeFn: func() error { bz.Close(); return f.Close() }}, nil
	case "zstd":
		zr, err := zstd.NewReader(bufio.NewReader(f))
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: %s: %v", errs.ErrIO, s.path, err)
		}
		return wrapCloser{Reader: zr, closeFn: func() error { zr.Close(); return f.Close() }}, nil
	default:
		f.Close()
		return nil, fmt.Errorf("%w: %s: unknown decompress mode %q", errs.ErrUsage, s.path, mode)
	}
}

func detectCompression(path string) string {
	switch {
	case strings.HasSuffix(path, ".gz"):
		return "gzip"
	case strings.HasSuffix(path, ".bz2"):
		return "bzip2"
	case strings.HasSuffix(path, ".zst"):
		return "zstd"
	default:
		return "none"
	}
}

// wrapCloser adapts a plain io.Reader decompressor plus a combined close
// function into an io.ReadCloser.
type wrapCloser struct {
	io.Reader
	closeFn func() error
}

func (w wrapCloser) Close() error { return w.closeFn() }
