package reorganize

import (
	"fmt"

	"github.com/doquedb/sydcore/internal/schema"
)

// Redo replays logs in order against registry, applying each
// record's Post image via the symmetric redo* function named after
// its Type. asOf is the reorganize boundary to
// publish after each record (normally the record's own log sequence
// position).
func Redo(logs []LogData, registry *schema.Registry, asOf func(LogData) schema.TransactionID) error {
	for _, rec := range logs {
		if err := redoOne(rec, registry, asOf(rec)); err != nil {
			return fmt.Errorf("reorganize: redo %s: %w", rec.Type, err)
		}
	}
	return nil
}

func redoOne(rec LogData, registry *schema.Registry, at schema.TransactionID) error {
	switch rec.Type {
	case CreateDatabase:
		return redoCreateDatabase(rec, registry, at)
	case DropDatabase:
		return redoDropDatabase(rec, registry, at)
	case MoveDatabase:
		return redoMoveDatabase(rec, registry, at)
	case CreateTable:
		return redoCreateTable(rec, registry, at)
	case DropTable:
		return redoDropTable(rec, registry, at)
	case AlterTable:
		return redoAlterTable(rec, registry, at)
	case CreateIndex:
		return redoCreateIndex(rec, registry, at)
	case DropIndex:
		return redoDropIndex(rec, registry, at)
	case CreateArea, DropArea, AlterArea:
		// Areas (storage placement hints) aren't modeled as catalog
		// objects in internal/schema; replaying them is a no-op here.
		return nil
	default:
		return fmt.Errorf("no redo function for %s", rec.Type)
	}
}

func redoCreateDatabase(rec LogData, registry *schema.Registry, at schema.TransactionID) error {
	registry.Commit(at, func(s *schema.Snapshot) {
		if _, exists := s.Database(rec.DatabaseID); exists {
			return
		}
		s.Databases()[rec.DatabaseID] = &schema.Database{
			ID:   rec.DatabaseID,
			Name: rec.Post["name"],
			Path: rec.Post["path"],
		}
	})
	return nil
}

func redoDropDatabase(rec LogData, registry *schema.Registry, at schema.TransactionID) error {
	registry.EraseDatabase(rec.DatabaseID)
	registry.ReCache(at)
	return nil
}

func redoMoveDatabase(rec LogData, registry *schema.Registry, at schema.TransactionID) error {
	registry.Commit(at, func(s *schema.Snapshot) {
		if db, ok := s.Database(rec.DatabaseID); ok {
			db.Path = rec.Post["path"]
		}
	})
	return nil
}

func redoCreateTable(rec LogData, registry *schema.Registry, at schema.TransactionID) error {
	tableID := rec.Post["tableID"]
	registry.Commit(at, func(s *schema.Snapshot) {
		db, ok := s.Database(rec.DatabaseID)
		if !ok {
			return
		}
		if db.Tables == nil {
			db.Tables = make(map[string]*schema.Table)
		}
		if _, exists := db.Tables[tableID]; exists {
			return
		}
		db.Tables[tableID] = &schema.Table{
			ID:         tableID,
			Name:       rec.Post["name"],
			DatabaseID: rec.DatabaseID,
			Indexes:    make(map[string]*schema.Index),
		}
	})
	return nil
}

func redoDropTable(rec LogData, registry *schema.Registry, at schema.TransactionID) error {
	registry.EraseTable(rec.DatabaseID, rec.Post["tableID"])
	registry.ReCache(at)
	return nil
}

func redoAlterTable(rec LogData, registry *schema.Registry, at schema.TransactionID) error {
	tableID := rec.Post["tableID"]
	registry.Commit(at, func(s *schema.Snapshot) {
		if t, ok := s.Table(rec.DatabaseID, tableID); ok {
			if name, ok := rec.Post["name"]; ok {
				t.Name = name
			}
		}
	})
	return nil
}

func redoCreateIndex(rec LogData, registry *schema.Registry, at schema.TransactionID) error {
	tableID := rec.Post["tableID"]
	indexID := rec.Post["indexID"]
	registry.Commit(at, func(s *schema.Snapshot) {
		t, ok := s.Table(rec.DatabaseID, tableID)
		if !ok {
			return
		}
		if t.Indexes == nil {
			t.Indexes = make(map[string]*schema.Index)
		}
		t.Indexes[indexID] = &schema.Index{
			ID:      indexID,
			Name:    rec.Post["name"],
			TableID: tableID,
			Kind:    rec.Post["kind"],
		}
	})
	return nil
}

func redoDropIndex(rec LogData, registry *schema.Registry, at schema.TransactionID) error {
	registry.EraseIndex(rec.DatabaseID, rec.Post["tableID"], rec.Post["indexID"])
	registry.ReCache(at)
	return nil
}
