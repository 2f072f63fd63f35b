package db

import (
	"github.com/pkg/errors"

	"github.com/hrygo/recollect/internal/profile"
	"github.com/hrygo/recollect/store"
	"github.com/hrygo/recollect/store/db/postgres"
	"github.com/hrygo/recollect/store/db/sqlite"
)

// NewDBDriver creates new db driver based on profile.
//
// SQLite is the default: zero-dependency single file, embeddings stored as a
// JSON text column, similarity computed in process. PostgreSQL stores
// embeddings in a native pgvector column.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	default:
		return nil, errors.Errorf("unknown db driver %q: only 'sqlite' and 'postgres' are supported", profile.Driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
