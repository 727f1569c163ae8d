// Package state provides filesystem-backed storage implementations: the
// working-directory registry, per-session JSONL logs and the session catalog.
package state

import "github.com/user/gopherlog/internal/types"

// Compile-time interface compliance checks.
var _ types.MetadataStore = (*MetadataStore)(nil)
var _ types.SessionCatalog = (*Catalog)(nil)
