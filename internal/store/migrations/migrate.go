// Package migrations embeds the control/time-series store schema and runs
// it through golang-migrate, grounded on the teacher's own migration
// tooling convention of shipping schema alongside the binary.
package migrations

import (
	"embed"
	"errors"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/tagflow/engine/internal/flowerr"
)

//go:embed *.sql
var fs embed.FS

// Up applies every pending migration against dsn.
func Up(dsn string) error {
	source, err := iofs.New(fs, ".")
	if err != nil {
		return flowerr.Wrap(flowerr.Fatal, err, "load embedded migrations")
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, dsn)
	if err != nil {
		return flowerr.Wrap(flowerr.Fatal, err, "open migration runner")
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return flowerr.Wrap(flowerr.Fatal, err, "apply migrations")
	}
	return nil
}
