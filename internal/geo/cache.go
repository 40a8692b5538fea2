package geo

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	// registers the "sqlite" driver
	_ "modernc.org/sqlite"
)

var log = logrus.WithField("module", "geo")

// OpenCache opens (and creates when needed) the SQLite geocoding cache at path.
func OpenCache(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open geocode cache %s", path)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	err = InitSchema(db)
	if err != nil {
		db.Close()

		return nil, err
	}

	return db, nil
}

// InitSchema creates the cache table.
func InitSchema(db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: db is nil")
	}

	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS geocode_cache (
		query TEXT PRIMARY KEY,
		lat REAL NOT NULL,
		lon REAL NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	`)
	if err != nil {
		return errors.Wrap(err, "init schema: create geocode_cache")
	}

	return nil
}

// SQLiteCache maps geocoding queries to coordinates.
type SQLiteCache struct {
	DB *sql.DB
}

// NewSQLiteCache creates a cache on an initialized database.
func NewSQLiteCache(db *sql.DB) *SQLiteCache {
	return &SQLiteCache{DB: db}
}

func normalizeQuery(query string) string {
	return strings.ToLower(strings.Join(strings.Fields(query), " "))
}

// Get returns the cached coordinates of query. The boolean is false on a miss.
func (s *SQLiteCache) Get(ctx context.Context, query string) (Coordinates, bool, error) {
	if s.DB == nil {
		return Coordinates{}, false, errors.New("geocode cache: db is nil")
	}

	var c Coordinates
	err := s.DB.QueryRowContext(ctx, `
	SELECT lat, lon
	FROM geocode_cache
	WHERE query = ?;
	`, normalizeQuery(query)).Scan(&c.Lat, &c.Lon)
	if errors.Is(err, sql.ErrNoRows) {
		return Coordinates{}, false, nil
	}
	if err != nil {
		return Coordinates{}, false, errors.Wrapf(err, "get geocode cache %q", query)
	}

	return c, true, nil
}

// Put stores the coordinates of query.
func (s *SQLiteCache) Put(ctx context.Context, query string, c Coordinates) error {
	if s.DB == nil {
		return errors.New("geocode cache: db is nil")
	}
	key := normalizeQuery(query)
	if key == "" {
		return errors.New("insert geocode cache: empty query")
	}

	_, err := s.DB.ExecContext(ctx, `
	INSERT OR REPLACE INTO geocode_cache (query, lat, lon)
	VALUES (?, ?, ?);
	`, key, c.Lat, c.Lon)
	if err != nil {
		return errors.Wrapf(err, "insert geocode cache %q", query)
	}

	return nil
}

// CachedGeocoder answers from the cache and falls back to the wrapped geocoder, remembering its answers.
// Cache failures are logged and never fail a lookup.
type CachedGeocoder struct {
	Geocoder Geocoder
	Cache    *SQLiteCache
}

// Geocode implements Geocoder.
func (c *CachedGeocoder) Geocode(ctx context.Context, query string) (Coordinates, error) {
	entry := log.WithField("query", query)

	coords, ok, err := c.Cache.Get(ctx, query)
	if err != nil {
		entry.WithError(err).Warn("geocode cache lookup failed")
	}
	if ok {
		entry.Debug("geocode cache hit")

		return coords, nil
	}

	coords, err = c.Geocoder.Geocode(ctx, query)
	if err != nil {
		return Coordinates{}, err
	}

	err = c.Cache.Put(ctx, query, coords)
	if err != nil {
		entry.WithError(err).Warn("unable to store geocoding result")
	}

	return coords, nil
}
