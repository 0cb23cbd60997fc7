// Package enginemeta is the static per-engine descriptor table the
// engine families and the Binary Manager key off of: marker/client binary
// names, release archive URL shape, health-probe kind, version-parse
// regex, default port, and capability flags. Adding an engine means
// adding one entry here plus wiring it to a family.
package enginemeta

import (
	"regexp"

	"github.com/robertjbass/spindb/internal/enum"
	"github.com/robertjbass/spindb/internal/portutil"
)

// HealthProbe identifies how the Process Manager checks readiness.
type HealthProbe string

const (
	ProbePgIsReady     HealthProbe = "pg_isready"
	ProbeMySQLAdminPing HealthProbe = "mysqladmin_ping"
	ProbeTCPConnect     HealthProbe = "tcp_connect"
	ProbeMongosh        HealthProbe = "mongosh_eval"
	ProbeRedisCLIPing   HealthProbe = "redis_cli_ping"
	ProbeHTTPGet        HealthProbe = "http_get"
	ProbeFileExists     HealthProbe = "file_exists"
)

// Descriptor is everything generic engine machinery needs to know about
// one engine tag without hardcoding a switch on it.
type Descriptor struct {
	Engine enum.Engine

	// MarkerBinary is the executable whose presence proves the engine is
	// installed (§3 EngineInstallation invariant).
	MarkerBinary string
	// ClientBinary is the CLI client used for runScript/executeQuery.
	ClientBinary string
	// AdminBinary is used for createUser/createDatabase/dropDatabase when
	// the adapter shells out rather than using a direct driver.
	AdminBinary string
	// DumpBinary/RestoreBinary back backup/restore.
	DumpBinary    string
	RestoreBinary string

	// VersionFlag is passed to MarkerBinary to print its version.
	VersionFlag string
	// VersionRegex extracts a normalized X.Y.Z from that output.
	VersionRegex *regexp.Regexp

	// ArchiveURLTemplate is formatted with {baseURL}, {engine}, {version},
	// {platform}, {arch}, {ext} (§6).
	ArchiveURLTemplate string

	DefaultPort int
	PortRange   portutil.Range
	HealthProbe HealthProbe

	// VersionMap resolves a bare major or major.minor to the latest known
	// patch release (§4.4 resolveVersion).
	VersionMap map[string]string

	FileBased           bool
	HasLogicalDatabases bool
}

var versionRegexGeneric = regexp.MustCompile(`(\d+)\.(\d+)(?:\.(\d+))?`)

const defaultBaseURL = "https://downloads.spindb.dev/engines"

var table = map[enum.Engine]Descriptor{
	enum.EnginePostgreSQL: {
		Engine: enum.EnginePostgreSQL, MarkerBinary: "postgres", ClientBinary: "psql",
		AdminBinary: "psql", DumpBinary: "pg_dump", RestoreBinary: "pg_restore",
		VersionFlag: "--version", VersionRegex: versionRegexGeneric,
		ArchiveURLTemplate: defaultBaseURL + "/{engine}-{version}/{engine}-{version}-{platform}-{arch}.{ext}",
		DefaultPort:        5432, PortRange: portutil.Range{Lo: 5432, Hi: 5532},
		HealthProbe: ProbePgIsReady,
		VersionMap:  map[string]string{"16": "16.4.0", "15": "15.8.0", "14": "14.13.0"},
		HasLogicalDatabases: true,
	},
	enum.EngineCockroachDB: {
		Engine: enum.EngineCockroachDB, MarkerBinary: "cockroach", ClientBinary: "cockroach",
		AdminBinary: "cockroach", DumpBinary: "pg_dump", RestoreBinary: "pg_restore",
		VersionFlag: "version", VersionRegex: versionRegexGeneric,
		ArchiveURLTemplate: defaultBaseURL + "/{engine}-{version}/{engine}-{version}-{platform}-{arch}.{ext}",
		DefaultPort:        26257, PortRange: portutil.Range{Lo: 26257, Hi: 26357},
		HealthProbe: ProbeTCPConnect,
		VersionMap:  map[string]string{"23": "23.2.11", "24": "24.1.5"},
		HasLogicalDatabases: true,
	},
	enum.EngineMySQL: {
		Engine: enum.EngineMySQL, MarkerBinary: "mysqld", ClientBinary: "mysql",
		AdminBinary: "mysqladmin", DumpBinary: "mysqldump", RestoreBinary: "mysql",
		VersionFlag: "--version", VersionRegex: versionRegexGeneric,
		ArchiveURLTemplate: defaultBaseURL + "/{engine}-{version}/{engine}-{version}-{platform}-{arch}.{ext}",
		DefaultPort:        3306, PortRange: portutil.Range{Lo: 3306, Hi: 3406},
		HealthProbe: ProbeMySQLAdminPing,
		VersionMap:  map[string]string{"8": "8.4.2", "5": "5.7.44"},
		HasLogicalDatabases: true,
	},
	enum.EngineMariaDB: {
		Engine: enum.EngineMariaDB, MarkerBinary: "mariadbd", ClientBinary: "mariadb",
		AdminBinary: "mariadb-admin", DumpBinary: "mariadb-dump", RestoreBinary: "mariadb",
		VersionFlag: "--version", VersionRegex: versionRegexGeneric,
		ArchiveURLTemplate: defaultBaseURL + "/{engine}-{version}/{engine}-{version}-{platform}-{arch}.{ext}",
		DefaultPort:        3306, PortRange: portutil.Range{Lo: 3306, Hi: 3406},
		HealthProbe: ProbeMySQLAdminPing,
		VersionMap:  map[string]string{"11": "11.4.3", "10": "10.11.9"},
		HasLogicalDatabases: true,
	},
	enum.EngineSQLite: {
		Engine: enum.EngineSQLite, MarkerBinary: "sqlite3", ClientBinary: "sqlite3",
		VersionFlag: "--version", VersionRegex: versionRegexGeneric,
		ArchiveURLTemplate:  defaultBaseURL + "/{engine}-{version}/{engine}-{version}-{platform}-{arch}.{ext}",
		HealthProbe:         ProbeFileExists,
		VersionMap:          map[string]string{"3": "3.46.1"},
		FileBased:           true,
		HasLogicalDatabases: false,
	},
	enum.EngineDuckDB: {
		Engine: enum.EngineDuckDB, MarkerBinary: "duckdb", ClientBinary: "duckdb",
		VersionFlag: "--version", VersionRegex: versionRegexGeneric,
		ArchiveURLTemplate:  defaultBaseURL + "/{engine}-{version}/{engine}-{version}-{platform}-{arch}.{ext}",
		HealthProbe:         ProbeFileExists,
		VersionMap:          map[string]string{"1": "1.0.0", "0": "0.10.3"},
		FileBased:           true,
		HasLogicalDatabases: false,
	},
	enum.EngineMongoDB: {
		Engine: enum.EngineMongoDB, MarkerBinary: "mongod", ClientBinary: "mongosh",
		DumpBinary: "mongodump", RestoreBinary: "mongorestore",
		VersionFlag: "--version", VersionRegex: versionRegexGeneric,
		ArchiveURLTemplate: defaultBaseURL + "/{engine}-{version}/{engine}-{version}-{platform}-{arch}.{ext}",
		DefaultPort:        27017, PortRange: portutil.Range{Lo: 27017, Hi: 27117},
		HealthProbe: ProbeMongosh,
		VersionMap:  map[string]string{"7": "7.0.12", "6": "6.0.17"},
		HasLogicalDatabases: true,
	},
	enum.EngineFerretDB: {
		Engine: enum.EngineFerretDB, MarkerBinary: "ferretdb", ClientBinary: "mongosh",
		DumpBinary: "mongodump", RestoreBinary: "mongorestore",
		VersionFlag: "--version", VersionRegex: versionRegexGeneric,
		ArchiveURLTemplate: defaultBaseURL + "/{engine}-{version}/{engine}-{version}-{platform}-{arch}.{ext}",
		DefaultPort:        27017, PortRange: portutil.Range{Lo: 27017, Hi: 27117},
		HealthProbe: ProbeMongosh,
		VersionMap:  map[string]string{"2": "2.0.0", "1": "1.24.0"},
		HasLogicalDatabases: true,
	},
	enum.EngineRedis: {
		Engine: enum.EngineRedis, MarkerBinary: "redis-server", ClientBinary: "redis-cli",
		VersionFlag: "--version", VersionRegex: versionRegexGeneric,
		ArchiveURLTemplate: defaultBaseURL + "/{engine}-{version}/{engine}-{version}-{platform}-{arch}.{ext}",
		DefaultPort:        6379, PortRange: portutil.Range{Lo: 6379, Hi: 6479},
		HealthProbe: ProbeRedisCLIPing,
		VersionMap:  map[string]string{"7": "7.4.0", "6": "6.2.15"},
		HasLogicalDatabases: false,
	},
	enum.EngineValkey: {
		Engine: enum.EngineValkey, MarkerBinary: "valkey-server", ClientBinary: "valkey-cli",
		VersionFlag: "--version", VersionRegex: versionRegexGeneric,
		ArchiveURLTemplate: defaultBaseURL + "/{engine}-{version}/{engine}-{version}-{platform}-{arch}.{ext}",
		DefaultPort:        6379, PortRange: portutil.Range{Lo: 6379, Hi: 6479},
		HealthProbe: ProbeRedisCLIPing,
		VersionMap:  map[string]string{"8": "8.0.1", "7": "7.2.8"},
		HasLogicalDatabases: false,
	},
	enum.EngineClickHouse: {
		Engine: enum.EngineClickHouse, MarkerBinary: "clickhouse", ClientBinary: "clickhouse client",
		VersionFlag: "--version", VersionRegex: versionRegexGeneric,
		ArchiveURLTemplate: defaultBaseURL + "/{engine}-{version}/{engine}-{version}-{platform}-{arch}.{ext}",
		DefaultPort:        8123, PortRange: portutil.Range{Lo: 8123, Hi: 8223},
		HealthProbe: ProbeHTTPGet,
		VersionMap:  map[string]string{"24": "24.8.4"},
		HasLogicalDatabases: true,
	},
	enum.EngineQdrant: {
		Engine: enum.EngineQdrant, MarkerBinary: "qdrant", ClientBinary: "qdrant",
		VersionFlag: "--version", VersionRegex: versionRegexGeneric,
		ArchiveURLTemplate: defaultBaseURL + "/{engine}-{version}/{engine}-{version}-{platform}-{arch}.{ext}",
		DefaultPort:        6334, PortRange: portutil.Range{Lo: 6334, Hi: 6434},
		HealthProbe: ProbeHTTPGet,
		VersionMap:  map[string]string{"1": "1.11.3"},
		HasLogicalDatabases: true, // collections, addressed as "databases"
	},
	enum.EngineMeilisearch: {
		Engine: enum.EngineMeilisearch, MarkerBinary: "meilisearch", ClientBinary: "meilisearch",
		VersionFlag: "--version", VersionRegex: versionRegexGeneric,
		ArchiveURLTemplate: defaultBaseURL + "/{engine}-{version}/{engine}-{version}-{platform}-{arch}.{ext}",
		DefaultPort:        7700, PortRange: portutil.Range{Lo: 7700, Hi: 7800},
		HealthProbe: ProbeHTTPGet,
		VersionMap:  map[string]string{"1": "1.10.0"},
		HasLogicalDatabases: true, // indexes, addressed as "databases"
	},
	enum.EngineCouchDB: {
		Engine: enum.EngineCouchDB, MarkerBinary: "couchdb", ClientBinary: "couchdb",
		VersionFlag: "--version", VersionRegex: versionRegexGeneric,
		ArchiveURLTemplate: defaultBaseURL + "/{engine}-{version}/{engine}-{version}-{platform}-{arch}.{ext}",
		DefaultPort:        5984, PortRange: portutil.Range{Lo: 5984, Hi: 6084},
		HealthProbe: ProbeHTTPGet,
		VersionMap:  map[string]string{"3": "3.3.3"},
		HasLogicalDatabases: true,
	},
	enum.EngineSurrealDB: {
		Engine: enum.EngineSurrealDB, MarkerBinary: "surreal", ClientBinary: "surreal",
		VersionFlag: "version", VersionRegex: versionRegexGeneric,
		ArchiveURLTemplate: defaultBaseURL + "/{engine}-{version}/{engine}-{version}-{platform}-{arch}.{ext}",
		DefaultPort:        8000, PortRange: portutil.Range{Lo: 8000, Hi: 8100},
		HealthProbe: ProbeHTTPGet,
		VersionMap:  map[string]string{"2": "2.0.2", "1": "1.5.4"},
		HasLogicalDatabases: true,
	},
	enum.EngineQuestDB: {
		Engine: enum.EngineQuestDB, MarkerBinary: "questdb", ClientBinary: "questdb",
		VersionFlag: "-V", VersionRegex: versionRegexGeneric,
		ArchiveURLTemplate: defaultBaseURL + "/{engine}-{version}/{engine}-{version}-{platform}-{arch}.{ext}",
		DefaultPort:        9000, PortRange: portutil.Range{Lo: 9000, Hi: 9100},
		HealthProbe: ProbeHTTPGet,
		VersionMap:  map[string]string{"8": "8.1.1"},
		HasLogicalDatabases: false,
	},
	enum.EngineTypeDB: {
		Engine: enum.EngineTypeDB, MarkerBinary: "typedb", ClientBinary: "typedb",
		VersionFlag: "version", VersionRegex: versionRegexGeneric,
		ArchiveURLTemplate: defaultBaseURL + "/{engine}-{version}/{engine}-{version}-{platform}-{arch}.{ext}",
		DefaultPort:        1729, PortRange: portutil.Range{Lo: 1729, Hi: 1829},
		HealthProbe: ProbeTCPConnect,
		VersionMap:  map[string]string{"2": "2.28.0", "3": "3.0.5"},
		HasLogicalDatabases: false,
	},
}

// Get returns the descriptor for an engine tag, or ok=false if it isn't
// one of the seventeen supported engines.
func Get(e enum.Engine) (Descriptor, bool) {
	d, ok := table[e]
	return d, ok
}

// All returns every descriptor, for callers that need to iterate (e.g.
// the maintenance scheduler's update-cache refresh).
func All() []Descriptor {
	out := make([]Descriptor, 0, len(table))
	for _, d := range table {
		out = append(out, d)
	}
	return out
}
