// Package store persists ground state searches in an SQLite database.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/fumin/tndmrg/dmrg"
)

const (
	tableRuns   = "runs"
	tableSweeps = "sweeps"

	queryTimeout = 3 * time.Second
)

var (
	ErrNotFound = errors.New("store: not found")
)

// Run is a ground state search of a transverse field Ising chain.
type Run struct {
	ID      int64
	Created time.Time
	L       int
	H       float64
	J       float64
	// Schedule is the sweep schedule in its textual form.
	Schedule string

	// Fields below are set by Finish, and are NaN before that.
	Energy        float64
	Magnetization float64
	Variance      float64
	// Exact is the exact ground state energy, NaN if not computed.
	Exact float64
}

// DB is a database of runs.
type DB struct {
	Path string
	db   *sql.DB
}

// Open opens the database at dbPath, creating the tables if needed.
func Open(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", dbPath))
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	if err := prepareDB(db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "")
	}
	return &DB{Path: dbPath, db: db}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	if err := d.db.Close(); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

// CreateRun inserts a run and returns its ID.
func (d *DB) CreateRun(r Run) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	if r.Created.IsZero() {
		r.Created = time.Now()
	}
	sqlStr := fmt.Sprintf(`INSERT INTO %s (created, l, h, j, schedule) VALUES (?, ?, ?, ?, ?)`, tableRuns)
	args := []any{r.Created.UTC().Format(time.RFC3339Nano), r.L, r.H, r.J, r.Schedule}
	res, err := d.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return -1, errors.Wrap(err, fmt.Sprintf("%s %#v", sqlStr, args))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return -1, errors.Wrap(err, "")
	}
	return id, nil
}

// AddSweep records the statistics of a sweep of run id.
func (d *DB) AddSweep(id int64, s dmrg.SweepStats) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	sqlStr := fmt.Sprintf(`INSERT OR REPLACE INTO %s (run, sweep, energy, max_bond_dim, discarded_weight, max_discarded_weight, mat_vec, duration_ns) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, tableSweeps)
	args := []any{id, s.Sweep, s.Energy, s.MaxBondDim, s.DiscardedWeight, s.MaxDiscardedWeight, s.MatVec, s.Duration.Nanoseconds()}
	if _, err := d.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return errors.Wrap(err, fmt.Sprintf("%s %#v", sqlStr, args))
	}
	return nil
}

// Finish records the observables of the final state of run id.
func (d *DB) Finish(id int64, energy, magnetization, variance, exact float64) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	sqlStr := fmt.Sprintf(`UPDATE %s SET energy=?, magnetization=?, variance=?, exact=? WHERE id=?`, tableRuns)
	args := []any{nullable(energy), nullable(magnetization), nullable(variance), nullable(exact), id}
	res, err := d.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("%s %#v", sqlStr, args))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "")
	}
	if n == 0 {
		return errors.Wrap(ErrNotFound, fmt.Sprintf("run %d", id))
	}
	return nil
}

// GetRun returns the run with the given id.
func (d *DB) GetRun(id int64) (Run, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	sqlStr := fmt.Sprintf(`SELECT id, created, l, h, j, schedule, energy, magnetization, variance, exact FROM %s WHERE id=?`, tableRuns)
	var r Run
	var created string
	var energy, magnetization, variance, exact sql.NullFloat64
	err := d.db.QueryRowContext(ctx, sqlStr, id).Scan(&r.ID, &created, &r.L, &r.H, &r.J, &r.Schedule, &energy, &magnetization, &variance, &exact)
	switch {
	case err == sql.ErrNoRows:
		return Run{}, errors.Wrap(ErrNotFound, fmt.Sprintf("run %d", id))
	case err != nil:
		return Run{}, errors.Wrap(err, "")
	}
	r.Created, err = time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return Run{}, errors.Wrap(err, "")
	}
	r.Energy, r.Magnetization, r.Variance, r.Exact = orNaN(energy), orNaN(magnetization), orNaN(variance), orNaN(exact)
	return r, nil
}

// Sweeps returns the sweeps of run id in order.
func (d *DB) Sweeps(id int64) ([]dmrg.SweepStats, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	sqlStr := fmt.Sprintf(`SELECT sweep, energy, max_bond_dim, discarded_weight, max_discarded_weight, mat_vec, duration_ns FROM %s WHERE run=? ORDER BY sweep`, tableSweeps)
	rows, err := d.db.QueryContext(ctx, sqlStr, id)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer rows.Close()

	sweeps := make([]dmrg.SweepStats, 0)
	for rows.Next() {
		var s dmrg.SweepStats
		var ns int64
		if err := rows.Scan(&s.Sweep, &s.Energy, &s.MaxBondDim, &s.DiscardedWeight, &s.MaxDiscardedWeight, &s.MatVec, &ns); err != nil {
			return nil, errors.Wrap(err, "")
		}
		s.Duration = time.Duration(ns)
		sweeps = append(sweeps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return sweeps, nil
}

func prepareDB(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	sqlStrs := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (id INTEGER PRIMARY KEY, created TEXT, l INTEGER, h REAL, j REAL, schedule TEXT, energy REAL, magnetization REAL, variance REAL, exact REAL) STRICT`, tableRuns),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (run INTEGER, sweep INTEGER, energy REAL, max_bond_dim INTEGER, discarded_weight REAL, max_discarded_weight REAL, mat_vec INTEGER, duration_ns INTEGER, PRIMARY KEY (run, sweep)) STRICT`, tableSweeps),
	}
	for _, sqlStr := range sqlStrs {
		if _, err := db.ExecContext(ctx, sqlStr); err != nil {
			return errors.Wrap(err, sqlStr)
		}
	}
	return nil
}

// nullable maps NaN to NULL, which SQLite cannot store as a REAL.
func nullable(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

func orNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
