// Package registerall wires all seventeen engine adapters into one
// engine.Registry. It lives in its own package, separate from
// internal/engine itself, because every family package imports
// internal/engine for the Config/Adapter types — importing them back
// from internal/engine would be a cycle.
package registerall

import (
	"github.com/robertjbass/spindb/internal/engine"
	"github.com/robertjbass/spindb/internal/engine/filefamily"
	"github.com/robertjbass/spindb/internal/engine/httpfamily"
	"github.com/robertjbass/spindb/internal/engine/mongofamily"
	"github.com/robertjbass/spindb/internal/engine/mysqlfamily"
	"github.com/robertjbass/spindb/internal/engine/pgfamily"
	"github.com/robertjbass/spindb/internal/engine/qdrant"
	"github.com/robertjbass/spindb/internal/engine/redisfamily"
	"github.com/robertjbass/spindb/internal/engine/surrealdb"
	"github.com/robertjbass/spindb/internal/engine/typedb"
	"github.com/robertjbass/spindb/internal/enum"
)

// New builds a Registry with all seventeen engine adapters registered.
// Per §9's "constructed Core aggregate, not singleton" design note this
// is a plain constructor, not a package-level init() side effect — the
// Core aggregate calls it once at startup, and tests build their own
// smaller registries with fakes instead.
func New() *engine.Registry {
	r := engine.NewRegistry()

	r.Register(enum.EnginePostgreSQL, func() (engine.Adapter, error) { return pgfamily.NewPostgreSQL(), nil })
	r.Register(enum.EngineCockroachDB, func() (engine.Adapter, error) { return pgfamily.NewCockroachDB(), nil })

	r.Register(enum.EngineMySQL, func() (engine.Adapter, error) { return mysqlfamily.NewMySQL(), nil })
	r.Register(enum.EngineMariaDB, func() (engine.Adapter, error) { return mysqlfamily.NewMariaDB(), nil })

	r.Register(enum.EngineSQLite, func() (engine.Adapter, error) { return filefamily.NewSQLite(), nil })
	r.Register(enum.EngineDuckDB, func() (engine.Adapter, error) { return filefamily.NewDuckDB(), nil })

	r.Register(enum.EngineRedis, func() (engine.Adapter, error) { return redisfamily.NewRedis(), nil })
	r.Register(enum.EngineValkey, func() (engine.Adapter, error) { return redisfamily.NewValkey(), nil })

	r.Register(enum.EngineMongoDB, func() (engine.Adapter, error) { return mongofamily.NewMongoDB(), nil })
	r.Register(enum.EngineFerretDB, func() (engine.Adapter, error) { return mongofamily.NewFerretDB(), nil })

	r.Register(enum.EngineClickHouse, func() (engine.Adapter, error) { return httpfamily.NewClickHouse(), nil })
	r.Register(enum.EngineMeilisearch, func() (engine.Adapter, error) { return httpfamily.NewMeilisearch(), nil })
	r.Register(enum.EngineCouchDB, func() (engine.Adapter, error) { return httpfamily.NewCouchDB(), nil })
	r.Register(enum.EngineQuestDB, func() (engine.Adapter, error) { return httpfamily.NewQuestDB(), nil })

	r.Register(enum.EngineQdrant, func() (engine.Adapter, error) { return qdrant.New(), nil })
	r.Register(enum.EngineSurrealDB, func() (engine.Adapter, error) { return surrealdb.New(), nil })
	r.Register(enum.EngineTypeDB, func() (engine.Adapter, error) { return typedb.New(), nil })

	return r
}
