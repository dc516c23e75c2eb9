package db_store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	migrate_mysql "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	"github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"
	"gopkg.in/guregu/null.v4"
)

type IsochronesDBStore struct {
	logger *logrus.Logger
	db     *sqlx.DB
}

type Isochrone struct {
	BoundaryId      string      `db:"boundary_id"`
	DurationMinutes int         `db:"duration_minutes"`
	Profile         string      `db:"profile"`
	KeepValues      null.String `db:"keep_values"`
	Lat             float64     `db:"lat"`
	Lon             float64     `db:"lon"`
	Polygon         []byte      `db:"polygon"`
	M2              null.Float  `db:"m2"`
	Updated         null.Int    `db:"updated"`
}

func (iso *Isochrone) Geometry() (*geojson.Geometry, error) {
	var geom geojson.Geometry

	err := json.Unmarshal(iso.Polygon, &geom)
	if err != nil {
		return nil, err
	}
	return &geom, nil
}

// Keys decodes KeepValues, a json object of column -> value.
func (iso *Isochrone) Keys() (map[string]string, error) {
	if !iso.KeepValues.Valid {
		return nil, nil
	}
	var keys map[string]string
	if err := json.Unmarshal([]byte(iso.KeepValues.String), &keys); err != nil {
		return nil, err
	}
	return keys, nil
}

const (
	isochroneColumns       = "boundary_id,duration_minutes,profile,keep_values,lat,lon,polygon,m2,updated"
	isochroneSelectColumns = "boundary_id,duration_minutes,profile,keep_values,lat,lon,ST_AsGeoJSON(polygon) as polygon,m2,updated"
)

// InsertOrUpdateIsochrone replaces the isochrone for the same boundary,
// duration and profile.
func (st *IsochronesDBStore) InsertOrUpdateIsochrone(ctx context.Context, iso *Isochrone) error {
	const baseInsertQuery = "INSERT into isochrones (" + isochroneColumns + ") VALUES (:boundary_id,:duration_minutes,:profile,:keep_values,:lat,:lon,ST_GeomFromGeoJSON(:polygon),:m2,:updated)"
	const insertUpdateQuery = baseInsertQuery + " ON DUPLICATE KEY UPDATE keep_values=VALUES(keep_values),lat=VALUES(lat),lon=VALUES(lon),polygon=VALUES(polygon),m2=VALUES(m2),updated=VALUES(updated)"

	_, err := st.db.NamedExecContext(ctx, insertUpdateQuery, iso)
	return err
}

// GetIsochronesForDuration returns all stored isochrones for a duration
// and profile, ordered by boundary id.
func (st *IsochronesDBStore) GetIsochronesForDuration(ctx context.Context, durationMinutes int, profile string) (isochrones []*Isochrone, err error) {
	const query = "SELECT " + isochroneSelectColumns + " FROM isochrones WHERE duration_minutes=? AND profile=? ORDER BY boundary_id"

	rows, err := st.db.QueryxContext(ctx, query, durationMinutes, profile)
	if err != nil {
		if err == sql.ErrNoRows {
			err = nil
		}
		return nil, err
	}
	defer func() { err = closeRows(rows, err) }()

	isochrones = make([]*Isochrone, 0, 64)

	for rows.Next() {
		var iso Isochrone

		if err := rows.StructScan(&iso); err != nil {
			return nil, err
		}

		isochrones = append(isochrones, &iso)
	}

	return isochrones, rows.Err()
}

func (st *IsochronesDBStore) migrate(config DBConfig, migratePath string) error {
	migrateConfig := &migrate_mysql.Config{
		MigrationsTable: "isochrones_schema_migrations",
		DatabaseName:    config.Db,
	}

	dbDriver, err := migrate_mysql.WithInstance(st.db.DB, migrateConfig)
	if err != nil {
		return err
	}

	if !strings.HasPrefix(migratePath, "file://") {
		migratePath = "file://" + migratePath
	}

	m, err := migrate.NewWithDatabaseInstance(migratePath, config.Db, dbDriver)
	if err != nil {
		return fmt.Errorf("failed to run isochrones DB migration: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return err
	}

	return nil
}

func (st *IsochronesDBStore) Close() error {
	return st.db.Close()
}

func NewIsochronesDBStore(config DBConfig, logger *logrus.Logger) (*IsochronesDBStore, error) {
	db, err := sqlx.Connect("mysql", config.AsDSN())
	if err != nil {
		return nil, err
	}

	if config.MaxPool > 0 {
		db.SetMaxOpenConns(config.MaxPool)
	}

	st := &IsochronesDBStore{
		logger: logger,
		db:     db,
	}

	if config.MigrationsPath == "" {
		logger.Infof("skipping isochrones db migrations: no path given")
	} else {
		logger.Infof("running isochrones db migrations")
		if err := st.migrate(config, config.MigrationsPath); err != nil {
			db.Close()
			return nil, err
		}
	}

	return st, nil
}

// closeRows closes 'rows', preferring 'origErr' over the close error.
func closeRows(rows *sqlx.Rows, origErr error) error {
	if closeErr := rows.Close(); origErr == nil {
		return closeErr
	}
	return origErr
}
