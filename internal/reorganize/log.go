package reorganize

// LogData is one entry written to the database or system log for a
// dispatched DDL statement, the redo/undo driver's input.
// Post carries the state after the operation (what Redo re-applies);
// Pre carries the state before it (what Undo restores).
type LogData struct {
	Type       StatementType
	DatabaseID string
	Pre        map[string]string
	Post       map[string]string
}
