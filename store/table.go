package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/resyncdb/resync/keys"
)

// Table is a handle onto one resource table. Records are stored as
// whole JSON documents; key fields are duplicated into indexed columns
// so lookups hit the primary key.
type Table struct {
	store     *Store
	name      string
	keyFields []string
}

// Name returns the table name.
func (t *Table) Name() string {
	return t.name
}

// KeyFields returns the ordered key fields of the table's primary key.
func (t *Table) KeyFields() []string {
	out := make([]string, len(t.keyFields))
	copy(out, t.keyFields)
	return out
}

// Get returns the record stored under key, or nil when absent. Compound
// tables take an ordered slice of key values; simple tables take the
// key value directly.
func (t *Table) Get(ctx context.Context, key any) (map[string]any, error) {
	db, err := t.store.conn()
	if err != nil {
		return nil, err
	}
	values, err := t.keyValues(key)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT doc FROM %q WHERE %s`, t.name, t.wherePK())
	var doc string
	err = db.QueryRowContext(ctx, query, values...).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read from %s: %w", t.name, err)
	}
	return decodeDoc(doc)
}

// Put stores a record, replacing any record with the same key. The
// record must be in normalized form: every key field a primitive.
func (t *Table) Put(ctx context.Context, record map[string]any) error {
	db, err := t.store.conn()
	if err != nil {
		return err
	}
	args, err := t.insertArgs(record)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, t.insertSQL(), args...); err != nil {
		return fmt.Errorf("failed to write to %s: %w", t.name, err)
	}
	return nil
}

// BulkPut stores a batch of records in one transaction.
func (t *Table) BulkPut(ctx context.Context, records []map[string]any) error {
	if len(records) == 0 {
		return nil
	}
	db, err := t.store.conn()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin bulk write: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, t.insertSQL())
	if err != nil {
		return fmt.Errorf("failed to prepare bulk write: %w", err)
	}
	defer stmt.Close()

	for _, record := range records {
		args, err := t.insertArgs(record)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to write to %s: %w", t.name, err)
		}
	}
	return tx.Commit()
}

// Delete removes the record stored under key. Deleting an absent key is
// a no-op.
func (t *Table) Delete(ctx context.Context, key any) error {
	db, err := t.store.conn()
	if err != nil {
		return err
	}
	values, err := t.keyValues(key)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`DELETE FROM %q WHERE %s`, t.name, t.wherePK())
	if _, err := db.ExecContext(ctx, query, values...); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", t.name, err)
	}
	return nil
}

// ToArray returns every record in the table in insertion order.
func (t *Table) ToArray(ctx context.Context) ([]map[string]any, error) {
	db, err := t.store.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf(`SELECT doc FROM %q ORDER BY rowid`, t.name))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", t.name, err)
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", t.name, err)
		}
		record, err := decodeDoc(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

// Count returns the number of records in the table.
func (t *Table) Count(ctx context.Context) (int, error) {
	db, err := t.store.conn()
	if err != nil {
		return 0, err
	}
	var count int
	err = db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %q`, t.name)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", t.name, err)
	}
	return count, nil
}

// Clear removes every record from the table.
func (t *Table) Clear(ctx context.Context) error {
	db, err := t.store.conn()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %q`, t.name)); err != nil {
		return fmt.Errorf("failed to clear %s: %w", t.name, err)
	}
	return nil
}

// keyValues coerces a caller key into the ordered column values of the
// primary key. Key columns are TEXT, so values go through the same
// string coercion the filter matcher uses.
func (t *Table) keyValues(key any) ([]any, error) {
	if len(t.keyFields) <= 1 {
		if _, isSlice := key.([]any); isSlice {
			return nil, fmt.Errorf("table %s has a simple key, got a compound key", t.name)
		}
		return []any{keys.PrimitiveString(key)}, nil
	}

	parts, ok := key.([]any)
	if !ok {
		return nil, fmt.Errorf("table %s has a compound key, got %T", t.name, key)
	}
	if len(parts) != len(t.keyFields) {
		return nil, fmt.Errorf("table %s expects %d key values, got %d",
			t.name, len(t.keyFields), len(parts))
	}
	values := make([]any, len(parts))
	for i, p := range parts {
		values[i] = keys.PrimitiveString(p)
	}
	return values, nil
}

// insertArgs extracts key column values and the JSON document from a
// normalized record.
func (t *Table) insertArgs(record map[string]any) ([]any, error) {
	args := make([]any, 0, len(t.keyFields)+1)
	for _, field := range t.keyFields {
		v, ok := record[field]
		if !ok || v == nil {
			return nil, fmt.Errorf("record for %s missing key field %q", t.name, field)
		}
		if _, isMap := v.(map[string]any); isMap {
			return nil, fmt.Errorf("record for %s has unnormalized key field %q", t.name, field)
		}
		args = append(args, keys.PrimitiveString(v))
	}

	doc, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record for %s: %w", t.name, err)
	}
	return append(args, string(doc)), nil
}

func (t *Table) insertSQL() string {
	cols := make([]string, 0, len(t.keyFields)+1)
	marks := make([]string, 0, len(t.keyFields)+1)
	for _, field := range t.keyFields {
		cols = append(cols, fmt.Sprintf("%q", field))
		marks = append(marks, "?")
	}
	cols = append(cols, "doc")
	marks = append(marks, "?")
	return fmt.Sprintf(`INSERT OR REPLACE INTO %q (%s) VALUES (%s)`,
		t.name, strings.Join(cols, ", "), strings.Join(marks, ", "))
}

func (t *Table) wherePK() string {
	clauses := make([]string, len(t.keyFields))
	for i, field := range t.keyFields {
		clauses[i] = fmt.Sprintf("%q = ?", field)
	}
	return strings.Join(clauses, " AND ")
}

func decodeDoc(doc string) (map[string]any, error) {
	var record map[string]any
	if err := json.Unmarshal([]byte(doc), &record); err != nil {
		return nil, fmt.Errorf("failed to decode stored record: %w", err)
	}
	return record, nil
}
