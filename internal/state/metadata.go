// internal/state/metadata.go
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/user/gopherlog/internal/types"
)

var ErrCorruptMetadata = errors.New("corrupt metadata document")

// MetadataStore is the JSON document listing every working directory ever
// used and its last active session. It is always loaded and saved whole.
type MetadataStore struct {
	path string
}

// NewMetadataStore creates a store backed by the document at path.
func NewMetadataStore(path string) *MetadataStore {
	return &MetadataStore{path: path}
}

func (s *MetadataStore) Path() string {
	return s.path
}

// Load reads the registry. A missing document yields an empty registry.
func (s *MetadataStore) Load(_ context.Context) (*types.Metadata, error) {
	slog.Debug("loading metadata", "path", s.path)
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Debug("no metadata file found, using empty registry")
			return &types.Metadata{WorkDirs: []types.WorkDir{}}, nil
		}
		return nil, fmt.Errorf("read metadata: %w", err)
	}

	var md types.Metadata
	if err := json.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptMetadata, s.path, err)
	}
	if md.WorkDirs == nil {
		md.WorkDirs = []types.WorkDir{}
	}
	return &md, nil
}

// Save rewrites the whole registry atomically.
func (s *MetadataStore) Save(_ context.Context, md *types.Metadata) error {
	if md == nil {
		return errors.New("metadata is required")
	}
	out := *md
	if out.WorkDirs == nil {
		out.WorkDirs = []types.WorkDir{}
	}
	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	data = append(data, '\n')

	slog.Debug("saving metadata", "path", s.path)
	if err := writeFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("save metadata: %w", err)
	}
	return nil
}

// SetLastSession records id as the active session of path. It reloads the
// document first so unrelated records written since are preserved.
func (s *MetadataStore) SetLastSession(ctx context.Context, path string, id types.SessionID) error {
	md, err := s.Load(ctx)
	if err != nil {
		return err
	}
	wd := FindOrCreate(md, path)
	wd.LastSessionID = &id
	return s.Save(ctx, md)
}

// LastSession returns the last active session of path, if any.
func (s *MetadataStore) LastSession(ctx context.Context, path string) (types.SessionID, bool, error) {
	md, err := s.Load(ctx)
	if err != nil {
		return "", false, err
	}
	wd, ok := Find(md, path)
	if !ok || wd.LastSessionID == nil {
		return "", false, nil
	}
	return *wd.LastSessionID, true, nil
}

// Find looks up the record of path.
func Find(md *types.Metadata, path string) (*types.WorkDir, bool) {
	for i := range md.WorkDirs {
		if md.WorkDirs[i].Path == path {
			return &md.WorkDirs[i], true
		}
	}
	return nil, false
}

// FindOrCreate returns the record of path, appending an empty one when the
// directory has never been seen. The returned pointer is valid until the next
// append to md.WorkDirs.
func FindOrCreate(md *types.Metadata, path string) *types.WorkDir {
	if wd, ok := Find(md, path); ok {
		return wd
	}
	md.WorkDirs = append(md.WorkDirs, types.WorkDir{Path: path})
	return &md.WorkDirs[len(md.WorkDirs)-1]
}
