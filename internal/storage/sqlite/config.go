package sqlite

// Config holds SQLite repository configuration derived from storage.Config.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.:
	//   "file:gold.db?_pragma=journal_mode(WAL)"
	//   "gold.db"
	DSN string

	// Table is the target table name. Dotted names such as "main.gold_rates"
	// are quoted per segment.
	Table string
}
