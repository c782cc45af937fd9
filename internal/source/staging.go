// Package source manages the on-disk layout of downloaded vocabulary
// artifacts: downloads/ holds fresh files, staging/<vocab>/ holds the files
// the loaders read, archive/ holds everything superseded.
package source

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/swapnilprakashpatil/codemx/internal/config"
	"github.com/swapnilprakashpatil/codemx/internal/logging"
)

// Layout holds the three working directories
type Layout struct {
	DownloadDir string
	StagingDir  string
	ArchiveDir  string
}

// LayoutFromConfig derives the layout from the configured data dir
func LayoutFromConfig(cfg *config.Config) Layout {
	return Layout{
		DownloadDir: cfg.DownloadDir(),
		StagingDir:  cfg.StagingDir(),
		ArchiveDir:  cfg.ArchiveDir(),
	}
}

// StagingPath returns the staging subdirectory for one vocabulary rule
func (l Layout) StagingPath(rule config.SourceRule) string {
	return filepath.Join(l.StagingDir, rule.Subdir)
}

// OrganizeResult summarizes one organize pass
type OrganizeResult struct {
	Staged   int
	Archived int
	Pruned   int
}

// Organize routes downloaded files into per-vocabulary staging directories
// by registry keyword match, archives unmatched downloads, then prunes
// staging files that no longer satisfy their keep rules.
func Organize(layout Layout, registry config.SourceRegistry, logger *logging.Logger) (*OrganizeResult, error) {
	res := &OrganizeResult{}

	for _, dir := range []string{layout.DownloadDir, layout.StagingDir, layout.ArchiveDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	for _, rule := range registry {
		if err := os.MkdirAll(layout.StagingPath(rule), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create staging subdir: %w", err)
		}
	}

	entries, err := os.ReadDir(layout.DownloadDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read downloads: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		src := filepath.Join(layout.DownloadDir, name)

		dest := ""
		for _, rule := range registry {
			if rule.MatchesZip(name) {
				dest = filepath.Join(layout.StagingPath(rule), name)
				break
			}
		}

		if dest != "" {
			if err := moveFile(src, dest); err != nil {
				return nil, err
			}
			res.Staged++
			logger.Info("staged download", map[string]interface{}{
				"file": name,
				"dest": dest,
			})
		} else {
			if err := moveFile(src, filepath.Join(layout.ArchiveDir, name)); err != nil {
				return nil, err
			}
			res.Archived++
			logger.Debug("archived unmatched download", map[string]interface{}{
				"file": name,
			})
		}
	}

	// Prune staging: files failing their rule's keep check move to archive.
	for _, rule := range registry {
		dir := layout.StagingPath(rule)
		staged, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range staged {
			if entry.IsDir() || rule.Keep(entry.Name()) {
				continue
			}
			src := filepath.Join(dir, entry.Name())
			if err := moveFile(src, filepath.Join(layout.ArchiveDir, entry.Name())); err != nil {
				return nil, err
			}
			res.Pruned++
			logger.Debug("pruned staging file", map[string]interface{}{
				"file": entry.Name(),
				"rule": rule.Subdir,
			})
		}
	}

	return res, nil
}

// moveFile renames, falling back to copy+remove across filesystems
func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to move %s: %w", src, err)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return fmt.Errorf("failed to move %s: %w", src, err)
	}
	return os.Remove(src)
}
