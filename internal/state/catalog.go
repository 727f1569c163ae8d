// internal/state/catalog.go
package state

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/sync/errgroup"

	"github.com/user/gopherlog/internal/types"
)

const (
	DefaultPreviewWidth   = 50
	DefaultCatalogWorkers = 4

	previewTail = "..."
)

// Catalog lists the sessions of a working directory by scanning its
// namespace directory. Summaries are derived from the logs on every call.
type Catalog struct {
	shareDir     string
	meta         *MetadataStore
	previewWidth int
	workers      int
}

// NewCatalog creates a catalog. Non-positive previewWidth or workers fall
// back to the defaults.
func NewCatalog(shareDir string, meta *MetadataStore, previewWidth, workers int) *Catalog {
	if previewWidth <= 0 {
		previewWidth = DefaultPreviewWidth
	}
	if workers <= 0 {
		workers = DefaultCatalogWorkers
	}
	return &Catalog{
		shareDir:     shareDir,
		meta:         meta,
		previewWidth: previewWidth,
		workers:      workers,
	}
}

type logFile struct {
	id   types.SessionID
	path string
}

// List returns summaries of the live sessions of workDir, newest first.
// Fork backups are never listed. An unregistered directory has no sessions.
func (c *Catalog) List(ctx context.Context, workDir string) ([]types.SessionSummary, error) {
	wd, err := CanonicalPath(workDir)
	if err != nil {
		return nil, err
	}
	md, err := c.meta.Load(ctx)
	if err != nil {
		return nil, err
	}
	record, ok := Find(md, wd)
	if !ok {
		return []types.SessionSummary{}, nil
	}

	files, err := c.liveLogs(NamespaceDir(c.shareDir, wd))
	if err != nil {
		return nil, err
	}

	summaries := make([]types.SessionSummary, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			summary := c.Summarize(gctx, file.path)
			// Summarize degrades on errors, cancellation included.
			if err := ctx.Err(); err != nil {
				return err
			}
			summary.ID = file.id
			summaries[i] = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := range summaries {
		summaries[i].IsCurrent = record.LastSessionID != nil && *record.LastSessionID == summaries[i].ID
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		if !summaries[i].ModifiedAt.Equal(summaries[j].ModifiedAt) {
			return summaries[i].ModifiedAt.After(summaries[j].ModifiedAt)
		}
		return summaries[i].ID < summaries[j].ID
	})
	return summaries, nil
}

func (c *Catalog) liveLogs(dir string) ([]logFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	var files []logFile
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != logExt {
			continue
		}
		stem := strings.TrimSuffix(name, logExt)
		if isBackupStem(stem) {
			continue
		}
		id, err := types.ParseSessionID(stem)
		if err != nil {
			slog.Debug("skipping foreign file in namespace", "path", filepath.Join(dir, name))
			continue
		}
		files = append(files, logFile{id: id, path: filepath.Join(dir, name)})
	}
	return files, nil
}

// Summarize derives the statistics of one log file. Failures yield a summary
// with zero counts and no preview.
func (c *Catalog) Summarize(ctx context.Context, path string) types.SessionSummary {
	summary := types.SessionSummary{
		ID:   types.SessionID(strings.TrimSuffix(filepath.Base(path), logExt)),
		Path: path,
	}
	info, err := os.Stat(path)
	if err != nil {
		slog.Warn("cannot stat session log", "path", path, "error", err)
		return summary
	}
	summary.ModifiedAt = info.ModTime()
	summary.Size = info.Size()

	log := OpenLog(path)
	if _, err := log.Restore(ctx); err != nil {
		slog.Warn("cannot summarize session log", "path", path, "error", err)
		return summary
	}

	for _, entry := range log.Entries() {
		if entry.IsCheckpoint() {
			summary.CheckpointCount++
			continue
		}
		msg := entry.Message
		if msg.Role != types.RoleUser && msg.Role != types.RoleAssistant {
			continue
		}
		summary.MessageCount++
		if msg.Role == types.RoleUser && summary.Preview == "" {
			if text, ok := msg.Content.FirstText(); ok && !types.IsSystemText(text) {
				summary.Preview = Preview(text, c.previewWidth)
			}
		}
	}
	return summary
}

// Preview flattens whitespace in text and truncates it to width display
// columns, ending truncated text with "...".
func Preview(text string, width int) string {
	flat := strings.Join(strings.Fields(text), " ")
	if runewidth.StringWidth(flat) <= width {
		return flat
	}
	return runewidth.Truncate(flat, width, previewTail)
}
