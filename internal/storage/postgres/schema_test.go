package postgres

import (
	"context"
	"strings"
	"testing"
)

func TestEnsureSchemaRejectsBadTableName(t *testing.T) {
	for _, name := range []string{"", "Drop Table", "x;--", strings.Repeat("a", 64)} {
		err := EnsureSchema(context.Background(), "postgres://unused", name)
		if err == nil || !strings.Contains(err.Error(), "invalid table name") {
			t.Errorf("EnsureSchema(%q) error = %v, want invalid table name", name, err)
		}
	}
}

func TestNewDocumentStoreQuotesTable(t *testing.T) {
	s := NewDocumentStore(nil, "")
	if s.table != `"dibit_documents"` {
		t.Errorf("table = %s, want quoted default", s.table)
	}
}
