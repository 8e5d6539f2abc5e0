package sqlite

import (
	"github.com/arazimproject/dibit/internal/catalog"
	"github.com/arazimproject/dibit/internal/selection"
)

// Ensure SQLite stores implement the storage interfaces.
var (
	_ selection.Repository = (*SelectionStore)(nil)
	_ catalog.Store        = (*CatalogStore)(nil)
)
