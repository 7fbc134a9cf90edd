package project

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// LocalSourceStore is a SourceFetcher backed by tar.gz archives on local
// disk, one archive per project source tree, keyed by a generated
// sourceRef. Grounded on the teacher's disk-based file storage provider:
// same basePath/MkdirAll/checksum shape, narrowed to archive-shaped blobs
// instead of arbitrary single files.
type LocalSourceStore struct {
	basePath string
	mu       sync.RWMutex
}

// NewLocalSourceStore creates a LocalSourceStore rooted at basePath.
func NewLocalSourceStore(basePath string) (*LocalSourceStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("project: create source store directory: %w", err)
	}
	return &LocalSourceStore{basePath: basePath}, nil
}

// StoreSource archives files into a new sourceRef, returning its checksum
// alongside the ref for callers that want to record it.
func (s *LocalSourceStore) StoreSource(ctx context.Context, files []SourceFile) (sourceRef, checksum string, err error) {
	sourceRef = uuid.NewString() + ".tar.gz"
	fullPath := filepath.Join(s.basePath, sourceRef)

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Create(fullPath)
	if err != nil {
		return "", "", fmt.Errorf("project: create source archive: %w", err)
	}
	defer f.Close()

	hasher := sha256.New()
	gz := gzip.NewWriter(io.MultiWriter(f, hasher))
	tw := tar.NewWriter(gz)

	for _, file := range files {
		hdr := &tar.Header{
			Name: filepath.ToSlash(file.RelPath),
			Mode: 0o644,
			Size: int64(len(file.Content)),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			os.Remove(fullPath)
			return "", "", fmt.Errorf("project: write archive header: %w", err)
		}
		if _, err := tw.Write(file.Content); err != nil {
			os.Remove(fullPath)
			return "", "", fmt.Errorf("project: write archive content: %w", err)
		}
	}

	if err := tw.Close(); err != nil {
		os.Remove(fullPath)
		return "", "", fmt.Errorf("project: close archive writer: %w", err)
	}
	if err := gz.Close(); err != nil {
		os.Remove(fullPath)
		return "", "", fmt.Errorf("project: close gzip writer: %w", err)
	}

	return sourceRef, hex.EncodeToString(hasher.Sum(nil)), nil
}

// FetchSource implements SourceFetcher by reading the tar.gz archive at
// sourceRef and returning its entries.
func (s *LocalSourceStore) FetchSource(ctx context.Context, sourceRef string) ([]SourceFile, error) {
	if strings.Contains(sourceRef, "..") {
		return nil, fmt.Errorf("project: invalid source ref %q", sourceRef)
	}

	fullPath := filepath.Join(s.basePath, sourceRef)

	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := os.Open(fullPath)
	if err != nil {
		return nil, fmt.Errorf("project: open source archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("project: open gzip reader: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	var files []SourceFile
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("project: read archive entry: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		content, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("project: read archive entry content: %w", err)
		}
		files = append(files, SourceFile{RelPath: hdr.Name, Content: content})
	}
	return files, nil
}

// DeleteSource removes a stored archive.
func (s *LocalSourceStore) DeleteSource(ctx context.Context, sourceRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return os.Remove(filepath.Join(s.basePath, sourceRef))
}
