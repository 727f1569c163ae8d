// internal/types/interfaces.go
package types

import "context"

type MetadataStore interface {
	Load(ctx context.Context) (*Metadata, error)
	Save(ctx context.Context, md *Metadata) error
	SetLastSession(ctx context.Context, path string, id SessionID) error
	LastSession(ctx context.Context, path string) (SessionID, bool, error)
}

type SessionCatalog interface {
	List(ctx context.Context, workDir string) ([]SessionSummary, error)
}
