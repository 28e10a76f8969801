package ingest

import (
	"context"
	"log/slog"
	"os"
	"sync"
)

// Document is one downloaded invoice file. The receiver owns Path and must
// call Release when done, on every exit path.
type Document struct {
	Path   string
	FileID string
	Sender string
	Origin string

	once    sync.Once
	cleanup func() error
}

// NewDocument wraps a temp file whose enclosing directory is removed on Release.
func NewDocument(path, fileID, sender, origin, tempDir string) *Document {
	return &Document{
		Path:    path,
		FileID:  fileID,
		Sender:  sender,
		Origin:  origin,
		cleanup: func() error { return os.RemoveAll(tempDir) },
	}
}

// Release removes the document's temp files. It is safe to call more than once.
func (d *Document) Release() error {
	var err error
	d.once.Do(func() {
		if d.cleanup != nil {
			err = d.cleanup()
		}
	})
	return err
}

// Source is a document-source collaborator. Next returns (nil, nil) when
// nothing new is available.
type Source interface {
	Name() string
	Next(ctx context.Context) (*Document, error)
}

// Chain asks each source in order and returns the first document found.
// A failing source is logged and skipped for this cycle.
type Chain struct {
	sources []Source
	logger  *slog.Logger
}

func NewChain(logger *slog.Logger, sources ...Source) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{sources: sources, logger: logger}
}

func (c *Chain) Name() string { return "chain" }

func (c *Chain) Next(ctx context.Context) (*Document, error) {
	for _, s := range c.sources {
		doc, err := s.Next(ctx)
		if err != nil {
			c.logger.Warn("ingest.source.failed", "source", s.Name(), "error", err)
			continue
		}
		if doc != nil {
			c.logger.Info("ingest.source.document",
				"source", s.Name(),
				"file_id", doc.FileID,
				"sender", doc.Sender,
				"path", doc.Path,
			)
			return doc, nil
		}
		c.logger.Debug("ingest.source.empty", "source", s.Name())
	}
	return nil, nil
}
