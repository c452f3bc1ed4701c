package shared

const (
	// LogFileName is the log file of the log-structured engine. Its presence in a
	// directory marks the directory as owned by that engine.
	LogFileName = ".data"

	// CompactFileName is the temporary file compaction writes before renaming it
	// over LogFileName.
	CompactFileName = ".data_tmp"

	// BoltFileName is the bbolt database file. Its presence marks the directory as
	// owned by the embedded engine.
	BoltFileName = "db"
)

// Engine names accepted by engine selection.
const (
	EngineKvs  = "kvs"
	EngineBolt = "bolt"
)
