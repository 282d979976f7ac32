package persist

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLSink persists the dependency table as two plain relational tables:
//
//	HEADER(MAGIC_CONSTANT BIGINT UNSIGNED, BUILD_INFO VARCHAR(255))
//	DEPTABLE(KEY_VERTEX INT UNSIGNED PRIMARY KEY, VALUE_VERTEX BLOB)
//
// VALUE_VERTEX holds an entire adjacency list: the concatenation of the
// key vertex's successors as 32-bit little-endian integers (EncodeEdges/
// DecodeEdges). There is deliberately no per-edge row or foreign key: the
// sink's only job is to round-trip each vertex's full blob, not to query
// edges relationally.
type MySQLSink struct {
	db     *sql.DB
	schema string
}

// OpenMySQLSink dials host:port/schema and ensures the HEADER/DEPTABLE
// tables exist, creating the schema's tables on first use.
func OpenMySQLSink(ctx context.Context, host string, port int, user, password, schema string) (*MySQLSink, error) {
	addr := host + ":" + strconv.Itoa(port)
	dsn := user
	if password != "" {
		dsn += ":" + password
	}
	dsn += "@tcp(" + addr + ")/" + schema + "?parseTime=true&interpolateParams=true"

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(8)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	sink := &MySQLSink{db: db, schema: schema}
	if err := sink.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return sink, nil
}

func (s *MySQLSink) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS HEADER (
  MAGIC_CONSTANT BIGINT UNSIGNED NOT NULL,
  BUILD_INFO VARCHAR(255) NOT NULL
)`)
	if err != nil {
		return fmt.Errorf("persist: create HEADER: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS DEPTABLE (
  KEY_VERTEX INT UNSIGNED NOT NULL PRIMARY KEY,
  VALUE_VERTEX BLOB NOT NULL
)`)
	if err != nil {
		return fmt.Errorf("persist: create DEPTABLE: %w", err)
	}
	return nil
}

// WriteHeader implements Sink.
func (s *MySQLSink) WriteHeader(ctx context.Context, buildInfo string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM HEADER"); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO HEADER (MAGIC_CONSTANT, BUILD_INFO) VALUES (?, ?)",
		MagicConstant, buildInfo); err != nil {
		return err
	}
	return tx.Commit()
}

// VerifyHeader implements Sink.
func (s *MySQLSink) VerifyHeader(ctx context.Context) (string, bool, error) {
	var magic uint64
	var buildInfo string
	err := s.db.QueryRowContext(ctx, "SELECT MAGIC_CONSTANT, BUILD_INFO FROM HEADER LIMIT 1").Scan(&magic, &buildInfo)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return buildInfo, magic == MagicConstant, nil
}

// UpsertRow implements Sink.
func (s *MySQLSink) UpsertRow(ctx context.Context, key uint32, blob []byte) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO DEPTABLE (KEY_VERTEX, VALUE_VERTEX) VALUES (?, ?) "+
			"ON DUPLICATE KEY UPDATE VALUE_VERTEX = VALUES(VALUE_VERTEX)",
		key, blob)
	return err
}

// SelectBlob implements Sink.
func (s *MySQLSink) SelectBlob(ctx context.Context, key uint32) ([]byte, bool, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT VALUE_VERTEX FROM DEPTABLE WHERE KEY_VERTEX = ?", key).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return blob, true, nil
}

// Close implements Sink.
func (s *MySQLSink) Close() error {
	return s.db.Close()
}
