package engine

import (
	"bytes"
	"compress/gzip"
	"io"
	"os"

	"github.com/robertjbass/spindb/internal/enum"
)

// sniffLen is how many leading bytes DetectBackupFormat reads (§4.9: "the
// first 128 bytes").
const sniffLen = 128

var gzipMagic = []byte{0x1f, 0x8b}
var pgCustomMagic = []byte("PGDMP")

var textMarkers = []struct {
	marker []byte
	format enum.BackupFormat
	desc   string
}{
	{[]byte("-- MySQL dump"), enum.FormatMySQLDump, "MySQL plain-SQL dump"},
	{[]byte("-- MariaDB dump"), enum.FormatMariaDBDump, "MariaDB plain-SQL dump"},
	{[]byte("-- PostgreSQL database dump"), enum.FormatPlainSQL, "PostgreSQL plain-SQL dump"},
	{[]byte("# spindb redis text dump"), enum.FormatRedisText, "Redis/Valkey text dump"},
}

// DetectBackupFormat reads the first sniffLen bytes of path and
// identifies its format by magic number or textual marker (§4.9). It is
// shared by every adapter's DetectBackupFormat since the sniffing rules
// are engine-independent; only the resulting RestoreCommand hint differs
// per engine, which callers fill in after calling this.
func DetectBackupFormat(path string) (FormatInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return FormatInfo{}, err
	}
	defer f.Close()

	buf := make([]byte, sniffLen)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return FormatInfo{Format: enum.FormatUnknown, Description: "unreadable or empty file"}, nil
	}
	buf = buf[:n]

	if bytes.HasPrefix(buf, gzipMagic) {
		return FormatInfo{Format: enum.FormatCompressedSQL, Description: "gzip-compressed SQL dump"}, nil
	}
	if bytes.HasPrefix(buf, pgCustomMagic) {
		return FormatInfo{Format: enum.FormatPostgresCustom, Description: "PostgreSQL custom-format dump"}, nil
	}
	for _, tm := range textMarkers {
		if bytes.Contains(buf, tm.marker) {
			return FormatInfo{Format: tm.format, Description: tm.desc}, nil
		}
	}
	if bytes.HasPrefix(buf, []byte("REDIS")) {
		return FormatInfo{Format: enum.FormatRedisRDB, Description: "Redis RDB snapshot"}, nil
	}
	if bytes.HasPrefix(buf, []byte("SQLite format 3")) {
		return FormatInfo{Format: enum.FormatSQLiteFile, Description: "SQLite database file"}, nil
	}

	return FormatInfo{Format: enum.FormatUnknown, Description: "unrecognized format"}, nil
}

// SniffCompressedFormat decompresses the leading portion of a
// gzip-compressed dump and sniffs it for the same textual/magic markers
// DetectBackupFormat looks for, so restore() can attribute a compressed
// dump to the engine that actually produced it instead of accepting
// gzip's magic bytes alone (§4.9 restore: "if compressed, decompress
// in-process before piping to the client" implies the engine check
// happens on the decompressed content, not the envelope).
func SniffCompressedFormat(path string) (enum.BackupFormat, error) {
	f, err := os.Open(path)
	if err != nil {
		return enum.FormatUnknown, err
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return enum.FormatUnknown, err
	}
	defer zr.Close()

	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(zr, buf)
	if err != nil && n == 0 && err != io.EOF {
		return enum.FormatUnknown, err
	}
	buf = buf[:n]

	if bytes.HasPrefix(buf, pgCustomMagic) {
		return enum.FormatPostgresCustom, nil
	}
	for _, tm := range textMarkers {
		if bytes.Contains(buf, tm.marker) {
			return tm.format, nil
		}
	}
	return enum.FormatUnknown, nil
}
