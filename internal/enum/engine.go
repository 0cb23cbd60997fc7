// Package enum holds the small closed vocabularies shared across the core:
// engine tags, container/install lifecycle states, and backup formats.
package enum

// Engine identifies a supported database engine.
type Engine string

const (
	EnginePostgreSQL  Engine = "postgresql"
	EngineMySQL       Engine = "mysql"
	EngineMariaDB     Engine = "mariadb"
	EngineSQLite      Engine = "sqlite"
	EngineDuckDB      Engine = "duckdb"
	EngineMongoDB     Engine = "mongodb"
	EngineFerretDB    Engine = "ferretdb"
	EngineRedis       Engine = "redis"
	EngineValkey      Engine = "valkey"
	EngineClickHouse  Engine = "clickhouse"
	EngineQdrant      Engine = "qdrant"
	EngineMeilisearch Engine = "meilisearch"
	EngineCouchDB     Engine = "couchdb"
	EngineCockroachDB Engine = "cockroachdb"
	EngineSurrealDB   Engine = "surrealdb"
	EngineQuestDB     Engine = "questdb"
	EngineTypeDB      Engine = "typedb"
)

// Values returns every supported engine tag, in the order they're listed in
// the data model.
func (Engine) Values() []string {
	return []string{
		string(EnginePostgreSQL), string(EngineMySQL), string(EngineMariaDB),
		string(EngineSQLite), string(EngineDuckDB), string(EngineMongoDB),
		string(EngineFerretDB), string(EngineRedis), string(EngineValkey),
		string(EngineClickHouse), string(EngineQdrant), string(EngineMeilisearch),
		string(EngineCouchDB), string(EngineCockroachDB), string(EngineSurrealDB),
		string(EngineQuestDB), string(EngineTypeDB),
	}
}

// Valid reports whether e is one of the known engine tags.
func (e Engine) Valid() bool {
	for _, v := range Engine("").Values() {
		if string(e) == v {
			return true
		}
	}
	return false
}

// FileBased reports whether the engine has no server process — the
// "database" is a single file and "running" means "file exists".
func (e Engine) FileBased() bool {
	return e == EngineSQLite || e == EngineDuckDB
}

// HasLogicalDatabases reports whether the engine supports per-database
// create/drop/rename. Redis, Valkey, QuestDB and TypeDB don't; file-based engines
// don't either (the file itself is the database).
func (e Engine) HasLogicalDatabases() bool {
	switch e {
	case EngineRedis, EngineValkey, EngineQuestDB, EngineTypeDB:
		return false
	default:
		return !e.FileBased()
	}
}
