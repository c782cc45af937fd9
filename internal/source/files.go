package source

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	apperrors "github.com/swapnilprakashpatil/codemx/internal/errors"
)

// FindFile returns the lexicographically last file in dir whose lowercased
// name contains every keyword. Publishers version their releases in the
// file name, so last-sorted is newest.
func FindFile(dir string, keywords ...string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", apperrors.Wrap(apperrors.SourceMissing, "staging directory unreadable: "+dir, err)
	}

	best := ""
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		lower := strings.ToLower(entry.Name())
		ok := true
		for _, kw := range keywords {
			if !strings.Contains(lower, strings.ToLower(kw)) {
				ok = false
				break
			}
		}
		if ok && entry.Name() > best {
			best = entry.Name()
		}
	}
	if best == "" {
		return "", apperrors.Newf(apperrors.SourceMissing,
			"no file matching %v in %s", keywords, dir)
	}
	return filepath.Join(dir, best), nil
}

// FindZip locates the newest zip in dir matching the keywords
func FindZip(dir string, keywords ...string) (string, error) {
	path, err := FindFile(dir, append(keywords, ".zip")...)
	if err != nil {
		return "", err
	}
	return path, nil
}

// FindZipEntry returns the first entry in the archive whose lowercased
// name contains every keyword.
func FindZipEntry(r *zip.Reader, keywords ...string) *zip.File {
	for _, f := range r.File {
		lower := strings.ToLower(f.Name)
		ok := true
		for _, kw := range keywords {
			if !strings.Contains(lower, strings.ToLower(kw)) {
				ok = false
				break
			}
		}
		if ok {
			return f
		}
	}
	return nil
}

// OpenZip opens a zip archive, tagging failures as corrupt sources
func OpenZip(path string) (*zip.ReadCloser, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.SourceCorrupt, "cannot open archive "+path, err)
	}
	return zr, nil
}

// OpenFile opens a flat source file, transparently gunzipping *.gz.
// The caller closes the returned ReadCloser.
func OpenFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.SourceMissing, "cannot open "+path, err)
	}
	if !strings.HasSuffix(strings.ToLower(path), ".gz") {
		return f, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, apperrors.Wrap(apperrors.SourceCorrupt, "cannot gunzip "+path, err)
	}
	return &gzipReadCloser{gz: gz, f: f}, nil
}

type gzipReadCloser struct {
	gz *gzip.Reader
	f  *os.File
}

func (g *gzipReadCloser) Read(p []byte) (int, error) { return g.gz.Read(p) }

func (g *gzipReadCloser) Close() error {
	gzErr := g.gz.Close()
	fErr := g.f.Close()
	if gzErr != nil {
		return gzErr
	}
	return fErr
}
