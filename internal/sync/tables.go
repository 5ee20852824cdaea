package sync

// SyncableTables is the fixed allow-list of tables that may be replicated
// between peers. Authentication, permission, and audit tables are permanently
// excluded; operations naming anything outside this set are discarded at the
// security gate.
var SyncableTables = map[string]bool{
	"notes":       true,
	"folders":     true,
	"tags":        true,
	"note_tags":   true,
	"attachments": true,
}

func IsSyncable(tableName string) bool {
	return SyncableTables[tableName]
}
