// Package sqlite writes signature transitions to SQLite database files
package sqlite

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nielshulstaert/compomics-sigpep/pkg/core"
	"github.com/nielshulstaert/compomics-sigpep/pkg/transition"
)

const (
	// Date format for HeaderTable (ISO 8601)
	headerDateFormat = "2006-01-02"
	schemaVersion    = 1
)

// Writer handles writing transitions to SQLite database files
type Writer struct {
	db             *sql.DB
	outputPath     string
	description    string
	transitionStmt *sql.Stmt
	barcodeStmt    *sql.Stmt
	backgroundStmt *sql.Stmt
	distStmt       *sql.Stmt
	transitionID   int
	finalized      bool
}

// NewWriter creates a new SQLite writer. description is stored in the
// HeaderTable on Finalize.
func NewWriter(outputPath, description string) (*Writer, error) {
	db, err := sql.Open("sqlite3", outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	w := &Writer{
		db:           db,
		outputPath:   outputPath,
		description:  description,
		transitionID: 1,
	}

	if err := w.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	if err := w.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}

	return w, nil
}

// createTables creates the required database schema
func (w *Writer) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS TransitionTable (
		TransitionId INTEGER PRIMARY KEY,
		Peptide TEXT NOT NULL,
		Sequence TEXT NOT NULL,
		Protein TEXT,
		PrecursorMass DOUBLE,
		PrecursorMZ DOUBLE,
		ChargeState INTEGER,
		Score DOUBLE,
		MassAccuracy TEXT,
		TargetIonTypes TEXT,
		BackgroundIonTypes TEXT,
		PrecursorCharges TEXT,
		ProductCharges TEXT,
		Barcode TEXT,
		BackgroundSize INTEGER,
		blobBarcodeMass BLOB
	);

	CREATE TABLE IF NOT EXISTS BarcodeTable (
		TransitionId INTEGER REFERENCES TransitionTable(TransitionId),
		Ion TEXT NOT NULL,
		IonType TEXT NOT NULL,
		Position INTEGER,
		Sequence TEXT,
		Charge INTEGER,
		MZ DOUBLE
	);

	CREATE TABLE IF NOT EXISTS BackgroundTable (
		TransitionId INTEGER REFERENCES TransitionTable(TransitionId),
		Peptide TEXT NOT NULL,
		Protein TEXT,
		PrecursorMass DOUBLE
	);

	CREATE TABLE IF NOT EXISTS DistributionTable (
		TransitionId INTEGER REFERENCES TransitionTable(TransitionId),
		MZ DOUBLE,
		Frequency INTEGER
	);

	CREATE TABLE IF NOT EXISTS HeaderTable (
		version INTEGER NOT NULL DEFAULT 0,
		CreationDate TEXT,
		Description TEXT,
		NoofTransitions INTEGER
	);
	`

	_, err := w.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	return nil
}

// prepareStatements prepares SQL statements for batch insertion
func (w *Writer) prepareStatements() error {
	var err error

	w.transitionStmt, err = w.db.Prepare(`
		INSERT INTO TransitionTable (
			TransitionId, Peptide, Sequence, Protein, PrecursorMass, PrecursorMZ,
			ChargeState, Score, MassAccuracy, TargetIonTypes, BackgroundIonTypes,
			PrecursorCharges, ProductCharges, Barcode, BackgroundSize, blobBarcodeMass
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare transition statement: %w", err)
	}

	w.barcodeStmt, err = w.db.Prepare(`
		INSERT INTO BarcodeTable (TransitionId, Ion, IonType, Position, Sequence, Charge, MZ)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare barcode statement: %w", err)
	}

	w.backgroundStmt, err = w.db.Prepare(`
		INSERT INTO BackgroundTable (TransitionId, Peptide, Protein, PrecursorMass)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare background statement: %w", err)
	}

	w.distStmt, err = w.db.Prepare(`
		INSERT INTO DistributionTable (TransitionId, MZ, Frequency)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare distribution statement: %w", err)
	}

	return nil
}

// WriteTransition writes a single transition and its barcode, background and
// background mass distribution rows.
func (w *Writer) WriteTransition(t *transition.SignatureTransition) error {
	target := t.Target()
	z := t.TargetPeptideChargeState()
	barcode := t.Barcode()

	_, err := w.transitionStmt.Exec(
		w.transitionID,
		target.Key(),
		target.Sequence(),
		target.Protein(),
		target.PrecursorIon().Mass(),
		target.PrecursorIon().MassOverCharge(z),
		z,
		t.Score(),
		t.MassAccuracy().String(),
		joinTypes(t.TargetProductIonTypes()),
		joinTypes(t.BackgroundProductIonTypes()),
		joinInts(t.PrecursorChargeStates()),
		joinInts(t.ProductChargeStates()),
		barcode.String(),
		t.BackgroundPrecursorIonSetSize(),
		encodeFloat64(t.BarcodeMZs(1)),
	)
	if err != nil {
		return fmt.Errorf("failed to insert transition: %w", err)
	}

	for _, charge := range t.ProductChargeStates() {
		for _, ion := range barcode {
			if _, err := w.barcodeStmt.Exec(w.transitionID, ion.Label(), ion.Type().String(),
				ion.Position(), ion.Sequence(), charge, ion.MassOverCharge(charge)); err != nil {
				return fmt.Errorf("failed to insert barcode ion: %w", err)
			}
		}
	}

	for _, p := range t.Background() {
		if _, err := w.backgroundStmt.Exec(w.transitionID, p.Key(), p.Protein(), p.PrecursorIon().Mass()); err != nil {
			return fmt.Errorf("failed to insert background peptide: %w", err)
		}
	}

	dist := t.BackgroundProductIonMassDistribution()
	mzs := make([]float64, 0, len(dist))
	for mz := range dist {
		mzs = append(mzs, mz)
	}
	sort.Float64s(mzs)
	for _, mz := range mzs {
		if _, err := w.distStmt.Exec(w.transitionID, mz, dist[mz]); err != nil {
			return fmt.Errorf("failed to insert mass distribution: %w", err)
		}
	}

	w.transitionID++
	return nil
}

// Written returns the number of transitions written so far.
func (w *Writer) Written() int { return w.transitionID - 1 }

// encodeFloat64 encodes values as a little-endian float64 blob
func encodeFloat64(values []float64) []byte {
	buf := make([]byte, len(values)*8)
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// DecodeFloat64 decodes a blob written by the writer.
func DecodeFloat64(buf []byte) []float64 {
	out := make([]float64, len(buf)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return out
}

func joinTypes(types []core.ProductIonType) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = t.String()
	}
	return strings.Join(parts, ",")
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ",")
}

// Finalize writes the header table and closes the database
func (w *Writer) Finalize() error {
	if w.finalized {
		return nil
	}
	w.finalized = true

	_, err := w.db.Exec(`
		INSERT INTO HeaderTable (version, CreationDate, Description, NoofTransitions)
		VALUES (?, ?, ?, ?)
	`, schemaVersion, time.Now().Format(headerDateFormat), w.description, w.Written())
	if err != nil {
		w.db.Close()
		return fmt.Errorf("failed to insert header: %w", err)
	}

	for _, stmt := range []*sql.Stmt{w.transitionStmt, w.barcodeStmt, w.backgroundStmt, w.distStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}

	if err := w.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}

// Close closes the database connection (alias for Finalize)
func (w *Writer) Close() error {
	return w.Finalize()
}
