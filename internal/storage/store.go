// Package storage archives observations, their raw intensity matrices and
// computed search profiles in a local SQLite database. Re-ingesting a file
// with a name already in the archive replaces the old record.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pulsarpkg/arcfinder/internal/spectrum"
)

// ErrNotFound is returned when the requested observation or profile does
// not exist in the archive.
var ErrNotFound = errors.New("storage: not found")

// Store handles database operations. Connections are opened lazily, a
// write connection with WAL journaling and a separate read-only one.
type Store struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// New creates a store backed by the SQLite database at dbPath. The file
// and schema are created on first write.
func New(dbPath string) *Store {
	return &Store{dbPath: dbPath}
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (s *Store) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}

		if err = runSQLCommand(db, schemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *Store) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

// IngestObservation stores an observation's metadata and raw intensity
// matrix in one transaction and returns the new row ID. An observation
// with the same filename is replaced.
func (s *Store) IngestObservation(ctx context.Context, meta spectrum.Metadata, raw [][]float64) (observationID int64, err error) {
	if err = meta.Validate(); err != nil {
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		err = fmt.Errorf("beginning transaction: %w", err)
		return
	}
	defer rollbackWithError(tx, &err)

	result, err := tx.ExecContext(ctx, insertObservationSQL,
		meta.Filename,
		meta.Source,
		meta.Origin,
		meta.MJD,
		meta.CenterFrequency,
		meta.Bandwidth,
		meta.IntegrationTime,
		meta.ChannelCount,
		meta.SubintCount,
		meta.Rotate,
	)
	if err != nil {
		err = fmt.Errorf("inserting observation: %w", err)
		return
	}

	if observationID, err = result.LastInsertId(); err != nil {
		err = fmt.Errorf("reading observation id: %w", err)
		return
	}

	// The filename conflict clause replaces the observation row but the
	// replaced row's astrodata may survive under a reused id.
	if _, err = tx.ExecContext(ctx, deleteAstrodataSQL, observationID); err != nil {
		err = fmt.Errorf("deleting stale astrodata: %w", err)
		return
	}
	if _, err = tx.ExecContext(ctx, insertAstrodataSQL, observationID, encodeMatrix(raw)); err != nil {
		err = fmt.Errorf("inserting astrodata: %w", err)
		return
	}

	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("committing transaction: %w", err)
		return
	}
	return observationID, nil
}

// Observation returns the archived observation with the given ID.
func (s *Store) Observation(ctx context.Context, id int64) (obs *Observation, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, selectObservationSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	var o Observation
	err = scanObservation(stmt.QueryRowContext(ctx, id), &o)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("observation %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning observation: %w", err)
	}
	return &o, nil
}

// Observations lists archived observations matching the filter, ordered
// by ingestion time.
func (s *Store) Observations(ctx context.Context, filter Filter) (obs []Observation, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	query, args := buildListQuery(filter)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		err = fmt.Errorf("querying observations: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var o Observation
		if err = scanObservation(rows, &o); err != nil {
			err = fmt.Errorf("scanning observation: %w", err)
			return
		}
		obs = append(obs, o)
	}
	if err = rows.Err(); err != nil {
		err = fmt.Errorf("iterating observations: %w", err)
	}
	return
}

// ObservationData returns the raw intensity matrix of an observation.
func (s *Store) ObservationData(ctx context.Context, id int64) (raw [][]float64, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, selectAstrodataSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	var buf []byte
	err = stmt.QueryRowContext(ctx, id).Scan(&buf)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("astrodata for observation %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning astrodata: %w", err)
	}

	if raw, err = decodeMatrix(buf); err != nil {
		return nil, fmt.Errorf("decoding astrodata: %w", err)
	}
	return raw, nil
}

// DeleteObservation removes an observation together with its astrodata
// and profiles.
func (s *Store) DeleteObservation(ctx context.Context, id int64) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	result, err := db.ExecContext(ctx, deleteObservationSQL, id)
	if err != nil {
		return fmt.Errorf("deleting observation: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("observation %d: %w", id, ErrNotFound)
	}
	return nil
}

// SaveProfile stores a search profile of the given kind for an
// observation, replacing a previous profile of the same kind.
func (s *Store) SaveProfile(ctx context.Context, observationID int64, kind string, points []ProfilePoint) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	stmt, err := db.PrepareContext(ctx, insertProfileSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	if _, err = stmt.ExecContext(ctx, observationID, kind, encodeProfile(points)); err != nil {
		return fmt.Errorf("inserting profile: %w", err)
	}
	return nil
}

// Profile returns the stored search profile of the given kind.
func (s *Store) Profile(ctx context.Context, observationID int64, kind string) (points []ProfilePoint, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, selectProfileSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	var buf []byte
	err = stmt.QueryRowContext(ctx, observationID, kind).Scan(&buf)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s profile for observation %d: %w", kind, observationID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning profile: %w", err)
	}

	if points, err = decodeProfile(buf); err != nil {
		return nil, fmt.Errorf("decoding profile: %w", err)
	}
	return points, nil
}

// Close closes the database connections.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		switch {
		case writeErr != nil && readErr != nil:
			s.closeErr = errors.Join(writeErr, readErr)
		case writeErr != nil:
			s.closeErr = writeErr
		case readErr != nil:
			s.closeErr = readErr
		}
	})

	return s.closeErr
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanObservation(row rowScanner, o *Observation) error {
	return row.Scan(
		&o.ID,
		&o.Ingested,
		&o.Meta.Filename,
		&o.Meta.Source,
		&o.Meta.Origin,
		&o.Meta.MJD,
		&o.Meta.CenterFrequency,
		&o.Meta.Bandwidth,
		&o.Meta.IntegrationTime,
		&o.Meta.ChannelCount,
		&o.Meta.SubintCount,
		&o.Meta.Rotate,
	)
}

func buildListQuery(filter Filter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if filter.Source != "" {
		clauses = append(clauses, "source LIKE ?")
		args = append(args, "%"+filter.Source+"%")
	}
	if filter.MJDMin != 0 || filter.MJDMax != 0 {
		clauses = append(clauses, "mjd >= ? AND mjd <= ?")
		args = append(args, filter.MJDMin, filter.MJDMax)
	}
	if filter.FreqMin != 0 || filter.FreqMax != 0 {
		clauses = append(clauses, "freq >= ? AND freq <= ?")
		args = append(args, filter.FreqMin, filter.FreqMax)
	}

	query := selectObservationsSQL
	if len(clauses) > 0 {
		query += " \nWHERE \n    " + strings.Join(clauses, " AND ")
	}
	query += " \nORDER BY ctime, id"
	return query, args
}
