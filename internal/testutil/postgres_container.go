//go:build integration

// Package testutil provides testcontainers-backed infrastructure for
// integration tests that need a real external database server to pull
// from, rather than one spindb itself supervises.
package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	postgresImage    = "postgres:16-alpine"
	postgresPort     = "5432/tcp"
	postgresUser     = "spindb"
	postgresPassword = "spindb"
	postgresDB       = "spindb_source"
	startupTimeout   = 60 * time.Second
)

// PostgresContainer is a disposable Postgres server standing in for a
// "remote" database the Pull Pipeline (§4.10) dumps from, via
// DumpFromConnectionString rather than through any managed container.
type PostgresContainer struct {
	Container testcontainers.Container
	host      string
	port      string
}

// StartPostgresContainer launches a throwaway Postgres server for
// integration tests to dump from.
func StartPostgresContainer(ctx context.Context) (*PostgresContainer, error) {
	req := testcontainers.ContainerRequest{
		Image:        postgresImage,
		ExposedPorts: []string{postgresPort},
		Env: map[string]string{
			"POSTGRES_USER":     postgresUser,
			"POSTGRES_PASSWORD": postgresPassword,
			"POSTGRES_DB":       postgresDB,
		},
		WaitingFor: wait.ForListeningPort(postgresPort).WithStartupTimeout(startupTimeout),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get host: %w", err)
	}
	mappedPort, err := container.MappedPort(ctx, "5432")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get mapped port: %w", err)
	}

	return &PostgresContainer{Container: container, host: host, port: mappedPort.Port()}, nil
}

// ConnectionString returns a postgresql:// URL suitable for
// Adapter.DumpFromConnectionString.
func (p *PostgresContainer) ConnectionString() string {
	return fmt.Sprintf("postgresql://%s:%s@%s:%s/%s", postgresUser, postgresPassword, p.host, p.port, postgresDB)
}

// Stop terminates the container.
func (p *PostgresContainer) Stop(ctx context.Context) error {
	if p.Container != nil {
		return p.Container.Terminate(ctx)
	}
	return nil
}
