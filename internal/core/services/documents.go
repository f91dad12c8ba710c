package services

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/custodia-labs/askdocs/internal/core/domain"
	"github.com/custodia-labs/askdocs/internal/logger"
)

// IgnoreFileName lists gitignore-style patterns skipped by directory ingestion.
const IgnoreFileName = ".askdocsignore"

// directoryExtensions are the file types picked up by directory ingestion.
var directoryExtensions = map[string]bool{
	".pdf": true,
	".txt": true,
	".md":  true,
}

// IngestDirectory ingests every supported file under dir, one source per
// file keyed by its path relative to dir. Individual file failures are
// reported, not returned.
func (s *IngestionService) IngestDirectory(ctx context.Context, dir string) (*domain.DirectoryReport, error) {
	if dir == "" {
		dir = s.cfg.DocumentsDir
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidInput, dir)
	}

	start := s.now()
	ignore := LoadIgnore(dir)
	report := &domain.DirectoryReport{
		Dir:      dir,
		ByType:   make(map[domain.FileType]int),
		Failures: make(map[string]error),
	}

	logger.Section("Ingesting directory %s", dir)

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") || (ignore != nil && ignore.MatchesPath(rel+"/")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsSupportedFile(rel) || (ignore != nil && ignore.MatchesPath(rel)) {
			return nil
		}

		chunks, err := s.ingestPath(ctx, path, rel)
		if err != nil {
			report.FilesFailed++
			report.Failures[rel] = err
			logger.Warn("Failed to ingest %s: %v", rel, err)
			return nil
		}
		report.FilesProcessed++
		report.TotalChunks += chunks
		report.ByType[domain.FileTypeFromName(rel)]++
		return nil
	})
	report.Duration = s.now().Sub(start)
	if err != nil {
		return report, err
	}

	logger.Info("Directory %s: %d files, %d failed, %d chunks",
		dir, report.FilesProcessed, report.FilesFailed, report.TotalChunks)
	return report, nil
}

// IngestPath ingests a single file from disk with sourceID as its name.
func (s *IngestionService) IngestPath(ctx context.Context, path, sourceID string) (*domain.IngestReport, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return s.IngestFile(ctx, domain.FileUpload{Name: sourceID, Content: content})
}

func (s *IngestionService) ingestPath(ctx context.Context, path, rel string) (int, error) {
	if s.cfg.MaxFileSize > 0 {
		if info, err := os.Stat(path); err == nil && info.Size() > s.cfg.MaxFileSize {
			return 0, fmt.Errorf("%w: %s is %d bytes", domain.ErrFileTooLarge, rel, info.Size())
		}
	}
	report, err := s.IngestPath(ctx, path, rel)
	if err != nil {
		return 0, err
	}
	return report.ChunksCreated, nil
}

// IsSupportedFile reports whether directory ingestion picks up name.
func IsSupportedFile(name string) bool {
	return directoryExtensions[strings.ToLower(filepath.Ext(name))]
}

// LoadIgnore compiles the ignore file in dir. It returns nil when there is none.
func LoadIgnore(dir string) *gitignore.GitIgnore {
	data, err := os.ReadFile(filepath.Join(dir, IgnoreFileName))
	if err != nil {
		return nil
	}

	var patterns []string
	for line := range strings.SplitSeq(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	if len(patterns) == 0 {
		return nil
	}
	logger.Debug("Loaded %d ignore patterns from %s", len(patterns), IgnoreFileName)
	return gitignore.CompileIgnoreLines(patterns...)
}
