package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// SeenFunc reports whether a document id was already processed in an earlier run.
type SeenFunc func(ctx context.Context, fileID string) (bool, error)

type DirectoryConfig struct {
	Root       string
	SkipHidden bool
	Uploader   string        // sender recorded for folder documents; default UnknownUploader
	CacheSize  int           // default 4096
	CacheTTL   time.Duration // default 24h
}

// DirectorySource hands out the newest unprocessed invoice file in a folder.
// Documents are identified by the sha256 of their content.
type DirectorySource struct {
	cfg    DirectoryConfig
	seen   SeenFunc
	known  *expirable.LRU[string, string] // stat key -> file id
	logger *slog.Logger
}

func NewDirectorySource(cfg DirectoryConfig, seen SeenFunc, logger *slog.Logger) *DirectorySource {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Uploader == "" {
		cfg.Uploader = UnknownUploader
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 4096
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
	return &DirectorySource{
		cfg:    cfg,
		seen:   seen,
		known:  expirable.NewLRU[string, string](cfg.CacheSize, nil, cfg.CacheTTL),
		logger: logger,
	}
}

func (s *DirectorySource) Name() string { return "directory" }

type candidate struct {
	path string
	info fs.FileInfo
}

func (s *DirectorySource) Next(ctx context.Context) (*Document, error) {
	if strings.TrimSpace(s.cfg.Root) == "" {
		return nil, errors.New("directory source: root is required")
	}

	cands, err := s.scan()
	if err != nil {
		return nil, err
	}

	for _, c := range cands {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		key := statKey(c.path, c.info)
		if _, ok := s.known.Get(key); ok {
			continue
		}

		fileID, err := hashFile(c.path)
		if err != nil {
			s.logger.Warn("ingest.directory.hash_failed", "path", c.path, "error", err)
			continue
		}
		if s.seen != nil {
			done, err := s.seen(ctx, fileID)
			if err != nil {
				return nil, fmt.Errorf("seen check: %w", err)
			}
			if done {
				s.known.Add(key, fileID)
				continue
			}
		}

		doc, err := s.checkout(c.path, fileID)
		if err != nil {
			return nil, err
		}
		s.known.Add(key, fileID)
		return doc, nil
	}
	return nil, nil
}

// scan lists supported files, newest first.
func (s *DirectorySource) scan() ([]candidate, error) {
	var out []candidate
	err := filepath.WalkDir(s.cfg.Root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			s.logger.Warn("ingest.directory.walk_error", "path", path, "error", walkErr)
			return nil
		}
		if s.cfg.SkipHidden && path != s.cfg.Root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		out = append(out, candidate{path: path, info: info})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk: %w", err)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].info.ModTime().After(out[j].info.ModTime())
	})
	return out, nil
}

// checkout copies path into a fresh temp dir owned by the returned Document.
func (s *DirectorySource) checkout(path, fileID string) (*Document, error) {
	doc, err := checkoutAs(path, fileID, s.cfg.Uploader, s.Name())
	if err != nil {
		return nil, err
	}
	s.logger.Info("ingest.directory.checkout", "path", path, "file_id", fileID, "tmp", doc.Path)
	return doc, nil
}

// CheckoutFile hands out a single local file as a Document, identified by
// the sha256 of its content.
func CheckoutFile(path, sender string) (*Document, error) {
	fileID, err := hashFile(path)
	if err != nil {
		return nil, err
	}
	return checkoutAs(path, fileID, sender, "file")
}

func checkoutAs(path, fileID, sender, origin string) (*Document, error) {
	tmpDir, err := os.MkdirTemp("", "invoice-doc-*")
	if err != nil {
		return nil, err
	}
	dst := filepath.Join(tmpDir, filepath.Base(path))
	if err := copyFile(path, dst); err != nil {
		_ = os.RemoveAll(tmpDir)
		return nil, fmt.Errorf("copy %s: %w", path, err)
	}
	return NewDocument(dst, fileID, sender, origin, tmpDir), nil
}

func statKey(path string, info fs.FileInfo) string {
	return fmt.Sprintf("%s|%d|%d", path, info.Size(), info.ModTime().UnixNano())
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func(in *os.File) {
		_ = in.Close()
	}(in)

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
