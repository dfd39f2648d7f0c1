package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
)

// ChangesChannel is the Postgres NOTIFY channel carrying "<appID>:<collection>" payloads.
const ChangesChannel = "catalog_changes"

const schema = `
CREATE TABLE IF NOT EXISTS categories (
    id          UUID PRIMARY KEY,
    app_id      TEXT NOT NULL,
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    image_url   TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS categories_app_id_idx ON categories (app_id, created_at);

CREATE TABLE IF NOT EXISTS products (
    id             UUID PRIMARY KEY,
    app_id         TEXT NOT NULL,
    name           TEXT NOT NULL,
    price          DOUBLE PRECISION NOT NULL CHECK (price > 0),
    image_url      TEXT NOT NULL DEFAULT '',
    category       TEXT NOT NULL DEFAULT '',
    description    TEXT NOT NULL DEFAULT '',
    components_url TEXT NOT NULL DEFAULT '',
    video_url      TEXT NOT NULL DEFAULT '',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS products_app_id_category_idx ON products (app_id, category, created_at);
`

// EnsureSchema creates the catalog tables when they do not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB, logger *logrus.Logger) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		logger.Errorf("Repository: Failed to apply catalog schema: %v", err)
		return fmt.Errorf("could not apply schema: %w", err)
	}
	logger.Info("Repository: Catalog schema is up to date")
	return nil
}

func changePayload(appID, collection string) string {
	return appID + ":" + collection
}

// notifyChange announces a committed write. Failure only delays other instances until
// their next reconnect, so it is logged and not returned.
func notifyChange(ctx context.Context, db *sql.DB, appID, collection string, logger *logrus.Logger) {
	if _, err := db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, ChangesChannel, changePayload(appID, collection)); err != nil {
		logger.Warnf("Repository: Failed to publish change for %s: %v", collection, err)
	}
}
