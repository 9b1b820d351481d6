// Package store persists the peptide population searched for signature
// transitions, in SQLite or PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "github.com/mattn/go-sqlite3"

	"github.com/nielshulstaert/compomics-sigpep/pkg/core"
)

const (
	driverSQLite   = "sqlite3"
	driverPostgres = "pgx"
)

var sqlOpen = sql.Open

var schemas = map[string]string{
	driverSQLite: `
	CREATE TABLE IF NOT EXISTS peptide (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sequence TEXT NOT NULL,
		modifications TEXT NOT NULL DEFAULT '[]',
		protein TEXT NOT NULL DEFAULT '',
		neutral_mass DOUBLE NOT NULL,
		intensities TEXT NOT NULL DEFAULT '{}'
	);
	CREATE INDEX IF NOT EXISTS peptide_mass_idx ON peptide (neutral_mass);
	CREATE INDEX IF NOT EXISTS peptide_protein_idx ON peptide (protein);
	`,
	driverPostgres: `
	CREATE TABLE IF NOT EXISTS peptide (
		id BIGSERIAL PRIMARY KEY,
		sequence TEXT NOT NULL,
		modifications TEXT NOT NULL DEFAULT '[]',
		protein TEXT NOT NULL DEFAULT '',
		neutral_mass DOUBLE PRECISION NOT NULL,
		intensities TEXT NOT NULL DEFAULT '{}'
	);
	CREATE INDEX IF NOT EXISTS peptide_mass_idx ON peptide (neutral_mass);
	CREATE INDEX IF NOT EXISTS peptide_protein_idx ON peptide (protein);
	`,
}

// Store is a peptide table behind database/sql.
type Store struct {
	db     *sql.DB
	driver string
}

// DriverFor maps a DSN to a database/sql driver name and data source.
// postgres:// and postgresql:// URLs use pgx; anything else is a SQLite
// path, optionally prefixed with sqlite://.
func DriverFor(dsn string) (driver, source string) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return driverPostgres, dsn
	default:
		return driverSQLite, strings.TrimPrefix(dsn, "sqlite://")
	}
}

// Open connects to dsn and creates the peptide table if needed.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("empty peptide store DSN")
	}
	driver, source := DriverFor(dsn)
	db, err := sqlOpen(driver, source)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	s := &Store{db: db, driver: driver}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) createTables(ctx context.Context) error {
	for _, stmt := range strings.Split(schemas[s.driver], ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create tables: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Driver returns the database/sql driver in use.
func (s *Store) Driver() string { return s.driver }

// rebind rewrites ? placeholders to the driver's style.
func rebind(driver, query string) string {
	if driver != driverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// Insert stores peptides in one transaction.
func (s *Store) Insert(ctx context.Context, peptides ...*core.Peptide) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, rebind(s.driver, `
		INSERT INTO peptide (sequence, modifications, protein, neutral_mass, intensities)
		VALUES (?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("failed to prepare peptide statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range peptides {
		mods, err := json.Marshal(p.Modifications())
		if err != nil {
			return fmt.Errorf("encode modifications of %s: %w", p.Key(), err)
		}
		obs := p.ObservedIntensities()
		if obs == nil {
			obs = map[string]float64{}
		}
		intensities, err := json.Marshal(obs)
		if err != nil {
			return fmt.Errorf("encode intensities of %s: %w", p.Key(), err)
		}
		if _, err := stmt.ExecContext(ctx, p.Sequence(), string(mods), p.Protein(),
			p.PrecursorIon().Mass(), string(intensities)); err != nil {
			return fmt.Errorf("failed to insert peptide %s: %w", p.Key(), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert: %w", err)
	}
	return nil
}

const selectPeptides = `SELECT sequence, modifications, protein, intensities FROM peptide`

// All returns every stored peptide in insertion order.
func (s *Store) All(ctx context.Context) ([]*core.Peptide, error) {
	return s.query(ctx, selectPeptides+` ORDER BY id`)
}

// ByProtein returns the peptides of one protein accession.
func (s *Store) ByProtein(ctx context.Context, accession string) ([]*core.Peptide, error) {
	return s.query(ctx, selectPeptides+` WHERE protein = ? ORDER BY id`, accession)
}

// InMassRange returns the peptides whose neutral mass lies in [lo, hi].
func (s *Store) InMassRange(ctx context.Context, lo, hi float64) ([]*core.Peptide, error) {
	return s.query(ctx, selectPeptides+` WHERE neutral_mass >= ? AND neutral_mass <= ? ORDER BY id`, lo, hi)
}

// SignaturePeptides returns the peptides found in exactly one protein: one
// record per sequence and modifications, the first stored. Peptides without
// a protein accession are never signature peptides.
func (s *Store) SignaturePeptides(ctx context.Context) ([]*core.Peptide, error) {
	return s.query(ctx, selectPeptides+` WHERE id IN (
		SELECT MIN(id) FROM peptide
		GROUP BY sequence, modifications
		HAVING COUNT(DISTINCT protein) = 1 AND MIN(protein) <> ''
	) ORDER BY id`)
}

// ProteinsOf returns the sorted accessions of the proteins containing
// sequence, whatever its modifications.
func (s *Store) ProteinsOf(ctx context.Context, sequence string) ([]string, error) {
	return s.column(ctx, `SELECT DISTINCT protein FROM peptide
		WHERE sequence = ? AND protein <> '' ORDER BY protein`, sequence)
}

// ProteinCount returns the number of distinct protein accessions.
func (s *Store) ProteinCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT protein) FROM peptide WHERE protein <> ''`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count proteins: %w", err)
	}
	return n, nil
}

// Count returns the number of stored peptides.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM peptide`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count peptides: %w", err)
	}
	return n, nil
}

func (s *Store) column(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, rebind(s.driver, query), args...)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}
	return out, nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]*core.Peptide, error) {
	rows, err := s.db.QueryContext(ctx, rebind(s.driver, query), args...)
	if err != nil {
		return nil, fmt.Errorf("select peptides: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*core.Peptide
	for rows.Next() {
		var seq, modsJSON, protein, obsJSON string
		if err := rows.Scan(&seq, &modsJSON, &protein, &obsJSON); err != nil {
			return nil, fmt.Errorf("scan peptide: %w", err)
		}
		var mods []core.Modification
		if err := json.Unmarshal([]byte(modsJSON), &mods); err != nil {
			return nil, fmt.Errorf("decode modifications of %s: %w", seq, err)
		}
		var obs map[string]float64
		if err := json.Unmarshal([]byte(obsJSON), &obs); err != nil {
			return nil, fmt.Errorf("decode intensities of %s: %w", seq, err)
		}
		opts := []core.PeptideOption{core.WithProtein(protein)}
		if len(obs) > 0 {
			opts = append(opts, core.WithObservedIntensities(obs))
		}
		p, err := core.NewPeptide(seq, mods, opts...)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate peptides: %w", err)
	}
	return out, nil
}
