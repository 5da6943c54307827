package migrations

import (
	"context"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

const createCatalogSQL = `
CREATE TABLE IF NOT EXISTS topics (
    id       SERIAL PRIMARY KEY,
    position INT   NOT NULL DEFAULT 0,
    data     JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS question_sets (
    ref  TEXT  PRIMARY KEY,
    data JSONB NOT NULL
);
`

var Migrations = migrate.NewMigrations()

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.Exec(createCatalogSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.Exec(`DROP TABLE IF EXISTS question_sets; DROP TABLE IF EXISTS topics`)
			return err
		},
	)
}
