package reorganize

import (
	"fmt"

	"github.com/doquedb/sydcore/internal/schema"
)

// Undo replays logs in reverse order against registry, restoring
// each record's Pre image.
func Undo(logs []LogData, registry *schema.Registry, asOf func(LogData) schema.TransactionID) error {
	for i := len(logs) - 1; i >= 0; i-- {
		rec := logs[i]
		if err := undoOne(rec, registry, asOf(rec)); err != nil {
			return fmt.Errorf("reorganize: undo %s: %w", rec.Type, err)
		}
	}
	return nil
}

func undoOne(rec LogData, registry *schema.Registry, at schema.TransactionID) error {
	switch rec.Type {
	case CreateDatabase:
		// Undoing a create is a drop: nothing existed before it.
		registry.EraseDatabase(rec.DatabaseID)
		registry.ReCache(at)
		return nil
	case DropDatabase:
		registry.Commit(at, func(s *schema.Snapshot) {
			s.Databases()[rec.DatabaseID] = &schema.Database{
				ID:   rec.DatabaseID,
				Name: rec.Pre["name"],
				Path: rec.Pre["path"],
			}
		})
		return nil
	case MoveDatabase:
		registry.Commit(at, func(s *schema.Snapshot) {
			if db, ok := s.Database(rec.DatabaseID); ok {
				db.Path = rec.Pre["path"]
			}
		})
		return nil
	case CreateTable:
		registry.EraseTable(rec.DatabaseID, rec.Post["tableID"])
		registry.ReCache(at)
		return nil
	case DropTable:
		tableID := rec.Pre["tableID"]
		registry.Commit(at, func(s *schema.Snapshot) {
			db, ok := s.Database(rec.DatabaseID)
			if !ok {
				return
			}
			if db.Tables == nil {
				db.Tables = make(map[string]*schema.Table)
			}
			db.Tables[tableID] = &schema.Table{
				ID:         tableID,
				Name:       rec.Pre["name"],
				DatabaseID: rec.DatabaseID,
				Indexes:    make(map[string]*schema.Index),
			}
		})
		return nil
	case AlterTable:
		tableID := rec.Pre["tableID"]
		registry.Commit(at, func(s *schema.Snapshot) {
			if t, ok := s.Table(rec.DatabaseID, tableID); ok {
				if name, ok := rec.Pre["name"]; ok {
					t.Name = name
				}
			}
		})
		return nil
	case CreateIndex:
		registry.EraseIndex(rec.DatabaseID, rec.Post["tableID"], rec.Post["indexID"])
		registry.ReCache(at)
		return nil
	case DropIndex:
		tableID := rec.Pre["tableID"]
		indexID := rec.Pre["indexID"]
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
				Name:    rec.Pre["name"],
				TableID: tableID,
				Kind:    rec.Pre["kind"],
			}
		})
		return nil
	case CreateArea, DropArea, AlterArea:
		return nil
	default:
		return fmt.Errorf("no undo function for %s", rec.Type)
	}
}
