// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package local

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/alrawaj/rawaj-web/internal/backend"
)

type column struct {
	Name string `db:"name"`
	Type string `db:"type"`
	PK   int    `db:"pk"`
}

// tableEngine turns backend requests into SQL against the exposed tables.
type tableEngine struct {
	db       *sqlx.DB
	policies map[string]policy
	now      func() time.Time

	mu      sync.RWMutex
	schemas map[string]map[string]column
}

func newTableEngine(db *sqlx.DB, policies map[string]policy, now func() time.Time) *tableEngine {
	return &tableEngine{
		db:       db,
		policies: policies,
		now:      now,
		schemas:  make(map[string]map[string]column),
	}
}

func (e *tableEngine) execute(ctx context.Context, userID string, req *backend.Request) ([]backend.Row, error) {
	pol, ok := e.policies[req.Table]
	if !ok {
		return nil, undefinedTable(req.Table)
	}
	cols, err := e.schema(ctx, req.Table)
	if err != nil {
		return nil, err
	}

	for _, f := range req.Filters {
		if err := checkColumn(req.Table, cols, f.Column); err != nil {
			return nil, err
		}
	}
	for _, o := range req.Orders {
		if err := checkColumn(req.Table, cols, o.Column); err != nil {
			return nil, err
		}
	}
	for _, c := range req.Columns {
		if err := checkColumn(req.Table, cols, c); err != nil {
			return nil, err
		}
	}

	a, err := e.access(ctx, userID)
	if err != nil {
		return nil, err
	}

	switch req.Action {
	case backend.ActionSelect:
		return e.selectRows(ctx, a, pol, req)
	case backend.ActionInsert:
		return nil, e.insertRows(ctx, a, pol, cols, req)
	case backend.ActionUpsert:
		return nil, e.upsertRow(ctx, a, pol, cols, req)
	case backend.ActionUpdate:
		return nil, e.updateRows(ctx, a, pol, cols, req)
	case backend.ActionDelete:
		return nil, e.deleteRows(ctx, a, pol, req)
	default:
		return nil, fmt.Errorf("unsupported action %q", req.Action)
	}
}

func (e *tableEngine) access(ctx context.Context, userID string) (*access, error) {
	a := &access{ctx: ctx, db: e.db, userID: userID}
	if userID == "" {
		return a, nil
	}
	if err := e.db.GetContext(ctx, &a.admin,
		`SELECT EXISTS(SELECT 1 FROM admins WHERE id = ?)`, userID); err != nil {
		return nil, fmt.Errorf("resolving caller role: %w", err)
	}
	return a, nil
}

func (e *tableEngine) schema(ctx context.Context, table string) (map[string]column, error) {
	e.mu.RLock()
	cols, ok := e.schemas[table]
	e.mu.RUnlock()
	if ok {
		return cols, nil
	}

	var list []column
	if err := e.db.SelectContext(ctx, &list,
		`SELECT name, type, pk FROM pragma_table_info(?)`, table); err != nil {
		return nil, fmt.Errorf("reading schema of %s: %w", table, err)
	}
	if len(list) == 0 {
		return nil, undefinedTable(table)
	}

	cols = make(map[string]column, len(list))
	for _, c := range list {
		cols[c.Name] = c
	}

	e.mu.Lock()
	e.schemas[table] = cols
	e.mu.Unlock()
	return cols, nil
}

func (e *tableEngine) selectRows(ctx context.Context, a *access, pol policy, req *backend.Request) ([]backend.Row, error) {
	matched, err := e.match(ctx, req.Table, req.Filters, req.Orders)
	if err != nil {
		return nil, err
	}

	out := make([]backend.Row, 0, len(matched))
	for _, row := range matched {
		if !pol.read(a, row) {
			continue
		}
		out = append(out, project(row, req.Columns))
	}
	return out, nil
}

func (e *tableEngine) insertRows(ctx context.Context, a *access, pol policy, cols map[string]column, req *backend.Request) error {
	if len(req.Rows) == 0 {
		return nil
	}

	tx, err := e.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, in := range req.Rows {
		row, err := e.prepareRow(req.Table, cols, in, true)
		if err != nil {
			return err
		}
		if !pol.canInsert(a, row) {
			return policyViolation(req.Table)
		}

		names := sortedKeys(row)
		args := make([]any, len(names))
		for i, n := range names {
			args[i] = row[n]
		}
		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			quoteIdent(req.Table), joinIdents(names), placeholders(len(names)))
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			if isUniqueViolation(err) {
				return uniqueViolation(req.Table)
			}
			return fmt.Errorf("inserting into %s: %w", req.Table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing insert: %w", err)
	}
	return nil
}

func (e *tableEngine) upsertRow(ctx context.Context, a *access, pol policy, cols map[string]column, req *backend.Request) error {
	if len(req.Rows) != 1 {
		return fmt.Errorf("upsert expects exactly one row, got %d", len(req.Rows))
	}
	key := req.OnConflict
	if key == "" {
		key = "id"
	}
	if err := checkColumn(req.Table, cols, key); err != nil {
		return err
	}

	keyValue, ok := req.Rows[0][key]
	var existing []backend.Row
	if ok && keyValue != nil {
		var err error
		existing, err = e.match(ctx, req.Table, []backend.Filter{{Column: key, Value: keyValue}}, nil)
		if err != nil {
			return err
		}
	}

	row, err := e.prepareRow(req.Table, cols, req.Rows[0], len(existing) == 0)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		if !pol.canInsert(a, row) {
			return policyViolation(req.Table)
		}
	} else if !pol.write(a, existing[0]) || !pol.write(a, row) {
		return policyViolation(req.Table)
	}

	names := sortedKeys(row)
	args := make([]any, len(names))
	var sets []string
	for i, n := range names {
		args[i] = row[n]
		if n != key {
			sets = append(sets, fmt.Sprintf("%s = excluded.%s", quoteIdent(n), quoteIdent(n)))
		}
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) ",
		quoteIdent(req.Table), joinIdents(names), placeholders(len(names)), quoteIdent(key))
	if len(sets) == 0 {
		query += "DO NOTHING"
	} else {
		query += "DO UPDATE SET " + strings.Join(sets, ", ")
	}

	if _, err := e.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return uniqueViolation(req.Table)
		}
		return fmt.Errorf("upserting into %s: %w", req.Table, err)
	}
	return nil
}

func (e *tableEngine) updateRows(ctx context.Context, a *access, pol policy, cols map[string]column, req *backend.Request) error {
	if len(req.Filters) == 0 {
		return missingFilter("UPDATE")
	}
	for name := range req.Patch {
		if err := checkColumn(req.Table, cols, name); err != nil {
			return err
		}
	}
	if err := e.authorizeMatched(ctx, a, pol, req); err != nil {
		return err
	}
	if len(req.Patch) == 0 {
		return nil
	}

	names := sortedKeys(req.Patch)
	sets := make([]string, len(names))
	args := make([]any, 0, len(names)+len(req.Filters))
	for i, n := range names {
		sets[i] = quoteIdent(n) + " = ?"
		args = append(args, req.Patch[n])
	}
	where, whereArgs := whereClause(req.Filters)
	args = append(args, whereArgs...)

	query := fmt.Sprintf("UPDATE %s SET %s%s", quoteIdent(req.Table), strings.Join(sets, ", "), where)
	if _, err := e.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return uniqueViolation(req.Table)
		}
		return fmt.Errorf("updating %s: %w", req.Table, err)
	}
	return nil
}

func (e *tableEngine) deleteRows(ctx context.Context, a *access, pol policy, req *backend.Request) error {
	if len(req.Filters) == 0 {
		return missingFilter("DELETE")
	}
	if err := e.authorizeMatched(ctx, a, pol, req); err != nil {
		return err
	}

	where, args := whereClause(req.Filters)
	if _, err := e.db.ExecContext(ctx, "DELETE FROM "+quoteIdent(req.Table)+where, args...); err != nil {
		return fmt.Errorf("deleting from %s: %w", req.Table, err)
	}
	return nil
}

// authorizeMatched rejects an update or delete that reaches any row the
// caller may not write.
func (e *tableEngine) authorizeMatched(ctx context.Context, a *access, pol policy, req *backend.Request) error {
	matched, err := e.match(ctx, req.Table, req.Filters, nil)
	if err != nil {
		return err
	}
	for _, row := range matched {
		if !pol.write(a, row) {
			return policyViolation(req.Table)
		}
	}
	return nil
}

func (e *tableEngine) match(ctx context.Context, table string, filters []backend.Filter, orders []backend.Order) ([]backend.Row, error) {
	where, args := whereClause(filters)
	query := "SELECT * FROM " + quoteIdent(table) + where

	if len(orders) > 0 {
		parts := make([]string, len(orders))
		for i, o := range orders {
			dir := "ASC"
			if o.Desc {
				dir = "DESC"
			}
			parts[i] = quoteIdent(o.Column) + " " + dir
		}
		query += " ORDER BY " + strings.Join(parts, ", ")
	}

	rows, err := e.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var out []backend.Row
	for rows.Next() {
		m := make(map[string]any)
		if err := rows.MapScan(m); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", table, err)
		}
		for k, v := range m {
			if b, ok := v.([]byte); ok {
				m[k] = string(b)
			}
		}
		out = append(out, backend.Row(m))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", table, err)
	}
	return out, nil
}

// prepareRow validates columns and, for new rows, fills a generated text
// primary key and created_at.
func (e *tableEngine) prepareRow(table string, cols map[string]column, in backend.Row, isNew bool) (backend.Row, error) {
	row := make(backend.Row, len(in)+2)
	for k, v := range in {
		if err := checkColumn(table, cols, k); err != nil {
			return nil, err
		}
		row[k] = v
	}
	if !isNew {
		return row, nil
	}

	if id, ok := cols["id"]; ok && id.PK == 1 && strings.EqualFold(id.Type, "TEXT") {
		if v, ok := row["id"]; !ok || v == nil || v == "" {
			row["id"] = uuid.NewString()
		}
	}
	if _, ok := cols["created_at"]; ok {
		if v, ok := row["created_at"]; !ok || v == nil || v == "" {
			row["created_at"] = backend.FormatTime(e.now())
		}
	}
	return row, nil
}

func project(row backend.Row, columns []string) backend.Row {
	if len(columns) == 0 {
		return row
	}
	out := make(backend.Row, len(columns))
	for _, c := range columns {
		out[c] = row[c]
	}
	return out
}

func whereClause(filters []backend.Filter) (string, []any) {
	if len(filters) == 0 {
		return "", nil
	}
	parts := make([]string, len(filters))
	args := make([]any, len(filters))
	for i, f := range filters {
		parts[i] = quoteIdent(f.Column) + " = ?"
		args[i] = f.Value
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

func checkColumn(table string, cols map[string]column, name string) error {
	if _, ok := cols[name]; !ok {
		return &backend.Error{
			Code:    backend.CodeUndefinedColumn,
			Message: fmt.Sprintf("column %s.%s does not exist", table, name),
			Status:  http.StatusBadRequest,
		}
	}
	return nil
}

func sortedKeys(row backend.Row) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// quoteIdent quotes a column or table name already checked against the schema.
func quoteIdent(name string) string {
	return `"` + name + `"`
}

func joinIdents(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func undefinedTable(table string) error {
	return &backend.Error{
		Code:    backend.CodeUndefinedTable,
		Message: fmt.Sprintf(`relation "public.%s" does not exist`, table),
		Status:  http.StatusNotFound,
	}
}

func policyViolation(table string) error {
	return &backend.Error{
		Code:    backend.CodeInsufficientAccess,
		Message: fmt.Sprintf(`new row violates row-level security policy for table "%s"`, table),
		Status:  http.StatusForbidden,
	}
}

func uniqueViolation(table string) error {
	return &backend.Error{
		Code:    backend.CodeUniqueViolation,
		Message: fmt.Sprintf(`duplicate key value violates unique constraint "%s_pkey"`, table),
		Status:  http.StatusConflict,
	}
}

func missingFilter(verb string) error {
	return &backend.Error{
		Code:    backend.CodeMissingFilter,
		Message: verb + " requires a WHERE clause",
		Status:  http.StatusBadRequest,
	}
}
