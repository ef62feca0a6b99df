package maintenance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/colby-usm/GrantGuru/internal/model"
	"github.com/colby-usm/GrantGuru/internal/store"
)

// SchemaVersion tags the backup document layout.
const SchemaVersion = "1.0"

// Document is the self-describing backup file.
type Document struct {
	Metadata Metadata            `json:"metadata"`
	Grants   []model.StoredRecord `json:"grants"`
}

// Metadata describes a Document.
type Metadata struct {
	ExportedAt    time.Time `json:"exported_at"`
	Count         int       `json:"count"`
	SchemaVersion string    `json:"schema_version"`
}

// Backup exports the grants table and restores it through the Reconciler.
type Backup struct {
	store      store.Store
	reconciler *store.Reconciler
	now        func() time.Time
}

// NewBackup returns a Backup over s.
func NewBackup(s store.Store) *Backup {
	return &Backup{store: s, reconciler: store.NewReconciler(s), now: time.Now}
}

// Export writes every stored grant to w as an indented Document.
func (b *Backup) Export(ctx context.Context, w io.Writer) (int, error) {
	grants, err := b.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("export: %w", err)
	}
	doc := Document{
		Metadata: Metadata{
			ExportedAt:    b.now().UTC().Truncate(time.Second),
			Count:         len(grants),
			SchemaVersion: SchemaVersion,
		},
		Grants: grants,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return 0, fmt.Errorf("export encode: %w", err)
	}
	return len(grants), nil
}

// Import reads a Document from r and reconciles its grants by opportunity
// number, so importing the same file twice leaves one copy of each grant.
// Surrogate IDs from the file are not reused.
func (b *Backup) Import(ctx context.Context, r io.Reader) (store.Result, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return store.Result{}, fmt.Errorf("import decode: %w", err)
	}
	if doc.Metadata.SchemaVersion != SchemaVersion {
		return store.Result{}, fmt.Errorf("import: unsupported schema version %q", doc.Metadata.SchemaVersion)
	}
	if doc.Metadata.Count != len(doc.Grants) {
		return store.Result{}, fmt.Errorf("import: metadata count %d does not match %d grants", doc.Metadata.Count, len(doc.Grants))
	}

	records := make([]model.CleanedRecord, 0, len(doc.Grants))
	for _, g := range doc.Grants {
		records = append(records, g.CleanedRecord)
	}
	return b.reconciler.Apply(ctx, records)
}
