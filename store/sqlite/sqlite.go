// Package sqlite is a store backend on SQLite.
//
// Documents are stored as JSON, one table per entity kind. Unique values are
// claimed in a separate table whose primary key makes duplicate claims fail
// inside the same transaction as the document write. The connection pool is
// limited to a single writer, so every transaction is serialized and
// read-modify-write appends cannot lose updates.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/jacentio/murmur/constraint"
	"github.com/jacentio/murmur/model"
	"github.com/jacentio/murmur/store"
)

//go:embed schema.sql
var schemaSQL string

// Backend implements store.Backend on SQLite.
type Backend struct {
	db *sql.DB
}

var _ store.Backend = (*Backend)(nil)

// Open creates or opens a SQLite database at path and applies the schema.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - 5-second busy timeout for lock contention
//   - a single open connection (one writer at a time)
func Open(path string) (*Backend, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Backend{db: db}, nil
}

// Close closes the database connection.
func (b *Backend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

// Insert implements store.Backend.
func (b *Backend) Insert(ctx context.Context, kind model.Kind, doc model.Document, uniques []store.UniqueValue) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	body, err := encode(doc)
	if err != nil {
		return err
	}

	return b.inTx(ctx, func(tx *sql.Tx) error {
		for _, u := range uniques {
			if err := claim(ctx, tx, kind, u.Field, u.Value, doc.ID()); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO `+table+` (id, version, body) VALUES (?, 1, ?)`,
			doc.ID(), body,
		)
		if isConstraint(err) {
			return store.ErrAlreadyExists
		}
		return err
	})
}

// Get implements store.Backend.
func (b *Backend) Get(ctx context.Context, kind model.Kind, id string) (*store.Item, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	return get(ctx, b.db, kind, table, id)
}

// Update implements store.Backend.
func (b *Backend) Update(ctx context.Context, kind model.Kind, id string, set model.Document, swaps []store.UniqueSwap, expectedVersion int64) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}

	return b.inTx(ctx, func(tx *sql.Tx) error {
		item, err := get(ctx, tx, kind, table, id)
		if err != nil {
			return err
		}
		if item.Version != expectedVersion {
			return store.ErrConcurrentModification
		}

		for _, sw := range swaps {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM unique_constraints WHERE kind = ? AND field = ? AND value = ? AND owner_id = ?`,
				string(kind), sw.Field, sw.Old, id,
			); err != nil {
				return fmt.Errorf("release %s.%s: %w", kind, sw.Field, err)
			}
			if err := claim(ctx, tx, kind, sw.Field, sw.New, id); err != nil {
				return err
			}
		}

		doc := item.Doc
		for k, v := range set {
			doc[k] = v
		}
		return put(ctx, tx, table, doc, item.Version)
	})
}

// Delete implements store.Backend.
func (b *Backend) Delete(ctx context.Context, kind model.Kind, id string) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}

	return b.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return store.ErrNotFound
		}
		_, err = tx.ExecContext(ctx,
			`DELETE FROM unique_constraints WHERE kind = ? AND owner_id = ?`,
			string(kind), id,
		)
		return err
	})
}

// Find implements store.Backend. Predicates and ordering are evaluated by
// SQLite's JSON functions.
func (b *Backend) Find(ctx context.Context, kind model.Kind, q store.Query) ([]model.Document, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	var where []string
	var args []any
	for _, c := range q.Where {
		switch c.Op {
		case store.OpEq:
			where = append(where, `json_extract(body, ?) = ?`)
		case store.OpContains:
			where = append(where, `EXISTS (SELECT 1 FROM json_each(body, ?) WHERE json_each.value = ?)`)
		default:
			return nil, fmt.Errorf("%w: unknown operator %d", store.ErrInvalidQuery, c.Op)
		}
		args = append(args, jsonPath(c.Field), c.Value)
	}

	query := `SELECT version, body FROM ` + table
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	dir := `ASC`
	if q.Descending {
		dir = `DESC`
	}
	query += ` ORDER BY json_extract(body, ?) ` + dir + `, id ` + dir
	args = append(args, jsonPath(q.SortField()))
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		var version int64
		var body string
		if err := rows.Scan(&version, &body); err != nil {
			return nil, err
		}
		doc, err := decode(kind, body)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// LookupUnique implements store.Backend.
func (b *Backend) LookupUnique(ctx context.Context, kind model.Kind, field, value string) (string, bool, error) {
	var owner string
	err := b.db.QueryRowContext(ctx,
		`SELECT owner_id FROM unique_constraints WHERE kind = ? AND field = ? AND value = ?`,
		string(kind), field, value,
	).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return owner, true, nil
}

// ApplyEdges implements store.Backend.
func (b *Backend) ApplyEdges(ctx context.Context, ops []store.EdgeOp, at time.Time) error {
	type key struct {
		kind model.Kind
		id   string
	}

	return b.inTx(ctx, func(tx *sql.Tx) error {
		items := make(map[key]*store.Item)
		var order []key
		for _, op := range ops {
			k := key{op.Kind, op.ID}
			item, ok := items[k]
			if !ok {
				table, err := tableFor(op.Kind)
				if err != nil {
					return err
				}
				item, err = get(ctx, tx, op.Kind, table, op.ID)
				if err != nil {
					return err
				}
				items[k] = item
				order = append(order, k)
			}
			item.Doc[op.Field] = op.Apply(item.Doc.Refs(op.Field))
		}

		for _, k := range order {
			item := items[k]
			stamp := at.UTC()
			if prev := item.Doc.UpdatedAt(); !stamp.After(prev) {
				stamp = prev.Add(time.Nanosecond)
			}
			item.Doc[model.FieldUpdatedAt] = stamp

			table, _ := tableFor(k.kind)
			if err := put(ctx, tx, table, item.Doc, item.Version); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *Backend) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func get(ctx context.Context, q queryer, kind model.Kind, table, id string) (*store.Item, error) {
	var version int64
	var body string
	err := q.QueryRowContext(ctx, `SELECT version, body FROM `+table+` WHERE id = ?`, id).Scan(&version, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	doc, err := decode(kind, body)
	if err != nil {
		return nil, err
	}
	return &store.Item{Doc: doc, Version: version}, nil
}

func put(ctx context.Context, tx *sql.Tx, table string, doc model.Document, version int64) error {
	body, err := encode(doc)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE `+table+` SET version = version + 1, body = ? WHERE id = ? AND version = ?`,
		body, doc.ID(), version,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrConcurrentModification
	}
	return nil
}

func claim(ctx context.Context, tx *sql.Tx, kind model.Kind, field, value, owner string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO unique_constraints (kind, field, value, owner_id) VALUES (?, ?, ?, ?)`,
		string(kind), field, value, owner,
	)
	if isConstraint(err) {
		return constraint.NewUniquenessError(kind, field, value)
	}
	if err != nil {
		return fmt.Errorf("claim %s.%s: %w", kind, field, err)
	}
	return nil
}

func isConstraint(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.Code == sqlite3.ErrConstraint
}

func tableFor(kind model.Kind) (string, error) {
	schema, err := model.SchemaFor(kind)
	if err != nil {
		return "", err
	}
	return schema.Table, nil
}

func jsonPath(field string) string {
	return `$."` + field + `"`
}

func encode(doc model.Document) (string, error) {
	b, err := json.Marshal(model.EncodeWire(doc))
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	return string(b), nil
}

func decode(kind model.Kind, body string) (model.Document, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}
	return model.DecodeWire(kind, raw)
}
