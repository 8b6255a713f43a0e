package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/PEI-HAZARDS/gatewatch/internal/decision"
)

type DB struct {
	sql *sql.DB
	now func() time.Time
}

func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec("PRAGMA journal_mode = WAL"); err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		conn.Close()
		return nil, err
	}
	return &DB{sql: conn, now: time.Now}, nil
}

// SetNow replaces the time source. Used in tests only.
func (d *DB) SetNow(fn func() time.Time) {
	d.now = fn
}

func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) Migrate() error {
	_, err := d.sql.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create metadata: %w", err)
	}

	_, err = d.sql.Exec(`
		CREATE TABLE IF NOT EXISTS decisions (
			id          INTEGER PRIMARY KEY,
			gate        TEXT NOT NULL,
			type        TEXT NOT NULL,
			ts_ms       INTEGER NOT NULL,
			received_ms INTEGER NOT NULL,
			plate       TEXT NOT NULL DEFAULT '',
			un_number   TEXT NOT NULL DEFAULT '',
			decision    TEXT NOT NULL DEFAULT '',
			frame       BLOB NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create decisions: %w", err)
	}

	// Journals created before hazard codes were indexed lack kemler_code.
	if _, alterErr := d.sql.Exec(`ALTER TABLE decisions ADD COLUMN kemler_code TEXT NOT NULL DEFAULT ''`); alterErr != nil {
		if !isDuplicateColumnError(alterErr) {
			return fmt.Errorf("alter decisions add kemler_code: %w", alterErr)
		}
	}

	if _, err := d.sql.Exec(`CREATE INDEX IF NOT EXISTS idx_decisions_gate_ts ON decisions(gate, ts_ms DESC)`); err != nil {
		return fmt.Errorf("index decisions: %w", err)
	}
	if _, err := d.sql.Exec(`CREATE INDEX IF NOT EXISTS idx_decisions_received ON decisions(received_ms)`); err != nil {
		return fmt.Errorf("index decisions received: %w", err)
	}
	return nil
}

func isDuplicateColumnError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate column name")
}

// InsertDecision journals e for gate and returns the row id.
func (d *DB) InsertDecision(gate string, e decision.Event) (int64, error) {
	frame, err := decision.Encode(e)
	if err != nil {
		return 0, fmt.Errorf("encode decision: %w", err)
	}
	received := d.now()
	at := e.At(received)
	p := e.Payload
	res, err := d.sql.Exec(
		`INSERT INTO decisions (gate, type, ts_ms, received_ms, plate, un_number, kemler_code, decision, frame)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		gate, string(e.Type), at.UnixMilli(), received.UnixMilli(),
		p.LicensePlate, p.UNNumber, p.KemlerCode, string(p.Decision), frame,
	)
	if err != nil {
		return 0, fmt.Errorf("insert decision: %w", err)
	}
	return res.LastInsertId()
}

// RecentDecisions returns up to limit records for gate, newest first.
// limit <= 0 means no limit.
func (d *DB) RecentDecisions(gate string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := d.sql.Query(
		`SELECT id, gate, type, ts_ms, received_ms, plate, un_number, kemler_code, decision, frame
		 FROM decisions
		 WHERE gate = ?
		 ORDER BY ts_ms DESC, id DESC
		 LIMIT ?`,
		gate, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var typ, outcome string
		var tsMs, recvMs int64
		if err := rows.Scan(&r.ID, &r.Gate, &typ, &tsMs, &recvMs, &r.Plate, &r.UNNumber, &r.KemlerCode, &outcome, &r.Frame); err != nil {
			return nil, err
		}
		r.Type = decision.MessageType(typ)
		r.Decision = decision.Outcome(outcome)
		r.At = time.UnixMilli(tsMs)
		r.ReceivedAt = time.UnixMilli(recvMs)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Gates summarises the journal per gate, ordered by gate id.
func (d *DB) Gates() ([]GateCount, error) {
	rows, err := d.sql.Query(`SELECT gate, COUNT(*), MAX(ts_ms) FROM decisions GROUP BY gate ORDER BY gate`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GateCount
	for rows.Next() {
		var g GateCount
		var last int64
		if err := rows.Scan(&g.Gate, &g.Count, &last); err != nil {
			return nil, err
		}
		g.Last = time.UnixMilli(last)
		out = append(out, g)
	}
	return out, rows.Err()
}

// PruneBefore deletes records received before t and returns how many went.
func (d *DB) PruneBefore(t time.Time) (int64, error) {
	res, err := d.sql.Exec(`DELETE FROM decisions WHERE received_ms < ?`, t.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune decisions: %w", err)
	}
	return res.RowsAffected()
}

func (d *DB) SetMeta(key, value string) error {
	_, err := d.sql.Exec("INSERT OR REPLACE INTO metadata (key, value) VALUES (?,?)", key, value)
	return err
}

func (d *DB) GetMeta(key string) (string, error) {
	var value string
	err := d.sql.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// Touch records the current time as the journal's last modification.
func (d *DB) Touch() error {
	return d.SetMeta("last_modified", fmt.Sprintf("%d", d.now().UnixMilli()))
}

// LastModified returns the Unix ms of the last Touch, or 0.
func (d *DB) LastModified() int64 {
	v, _ := d.GetMeta("last_modified")
	if v == "" {
		return 0
	}
	var ts int64
	fmt.Sscanf(v, "%d", &ts)
	return ts
}
