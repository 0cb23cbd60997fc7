package enum

// ContainerStatus is the lifecycle state of a managed container.
//
// Server-engine containers move created -> running <-> stopped. File-based
// engine containers only ever report Running ("file exists") or Stopped
// ("file missing") — see Engine.FileBased.
type ContainerStatus string

const (
	ContainerCreated ContainerStatus = "created"
	ContainerRunning ContainerStatus = "running"
	ContainerStopped ContainerStatus = "stopped"
	ContainerLinked  ContainerStatus = "linked"
)

func (ContainerStatus) Values() []string {
	return []string{
		string(ContainerCreated), string(ContainerRunning),
		string(ContainerStopped), string(ContainerLinked),
	}
}

// InstallStatus is the lifecycle state of an engine binary installation.
type InstallStatus string

const (
	InstallNone        InstallStatus = "none"
	InstallDownloading InstallStatus = "downloading"
	InstallExtracting  InstallStatus = "extracting"
	InstallVerifying   InstallStatus = "verifying"
	InstallInstalled   InstallStatus = "installed"
)

// BackupFormat identifies the on-disk shape of a backup/dump file.
type BackupFormat string

const (
	FormatPlainSQL         BackupFormat = "plain_sql"
	FormatCompressedSQL    BackupFormat = "compressed_sql"
	FormatPostgresCustom   BackupFormat = "postgresql_custom"
	FormatMySQLDump        BackupFormat = "mysql_dump"
	FormatMariaDBDump      BackupFormat = "mariadb_dump"
	FormatRedisRDB         BackupFormat = "redis_rdb"
	FormatRedisText        BackupFormat = "redis_text"
	FormatMongoArchive     BackupFormat = "mongo_archive"
	FormatSQLiteFile       BackupFormat = "sqlite_file"
	FormatDuckDBFile       BackupFormat = "duckdb_file"
	FormatQdrantSnapshot   BackupFormat = "qdrant_snapshot"
	FormatClickHouseNative BackupFormat = "clickhouse_native"
	FormatUnknown          BackupFormat = "unknown"
)

// DataDownloadStatus mirrors a background task's progress.
type DataDownloadStatus string

const (
	DataDownloadPending     DataDownloadStatus = "pending"
	DataDownloadDownloading DataDownloadStatus = "downloading"
	DataDownloadCompleted   DataDownloadStatus = "completed"
	DataDownloadFailed      DataDownloadStatus = "failed"
)
