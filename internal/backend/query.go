// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Action is the kind of table request.
type Action string

// Table request actions.
const (
	ActionSelect Action = "select"
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
	ActionUpsert Action = "upsert"
	ActionDelete Action = "delete"
)

// Row is one table row keyed by column name.
type Row map[string]any

// Filter is an equality condition.
type Filter struct {
	Column string
	Value  any
}

// Order is a sort key.
type Order struct {
	Column string
	Desc   bool
}

// Request is a fully built table request handed to an Executor.
type Request struct {
	Table      string
	Action     Action
	Columns    []string
	Filters    []Filter
	Orders     []Order
	Rows       []Row
	Patch      Row
	OnConflict string
}

// Executor runs table requests.
type Executor interface {
	Execute(ctx context.Context, req *Request) ([]Row, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, req *Request) ([]Row, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, req *Request) ([]Row, error) {
	return f(ctx, req)
}

// Query builds a request against one table. Filters and ordering are
// added with the chaining methods; a terminal method sends it.
type Query struct {
	exec Executor
	req  Request
}

// NewQuery starts a query on table.
func NewQuery(exec Executor, table string) *Query {
	return &Query{exec: exec, req: Request{Table: table}}
}

// Select restricts the returned columns. "*" or an empty string selects all.
func (q *Query) Select(columns string) *Query {
	q.req.Columns = nil
	if columns = strings.TrimSpace(columns); columns == "" || columns == "*" {
		return q
	}
	for _, c := range strings.Split(columns, ",") {
		if c = strings.TrimSpace(c); c != "" {
			q.req.Columns = append(q.req.Columns, c)
		}
	}
	return q
}

// Eq adds an equality filter.
func (q *Query) Eq(column string, value any) *Query {
	q.req.Filters = append(q.req.Filters, Filter{Column: column, Value: value})
	return q
}

// Order adds a sort key.
func (q *Query) Order(column string, desc bool) *Query {
	q.req.Orders = append(q.req.Orders, Order{Column: column, Desc: desc})
	return q
}

// Rows runs a select and decodes all rows into dest, a pointer to a slice.
func (q *Query) Rows(ctx context.Context, dest any) error {
	rows, err := q.run(ctx, ActionSelect)
	if err != nil {
		return err
	}
	if rows == nil {
		rows = []Row{}
	}
	return decode(rows, dest)
}

// Single runs a select that must match exactly one row and decodes it
// into dest. It returns ErrNotFound when no row matches.
func (q *Query) Single(ctx context.Context, dest any) error {
	rows, err := q.run(ctx, ActionSelect)
	if err != nil {
		return err
	}
	switch len(rows) {
	case 0:
		return ErrNotFound
	case 1:
		return decode(rows[0], dest)
	default:
		return &Error{Code: CodeNoRows, Message: ErrNotFound.Message, Status: ErrNotFound.Status}
	}
}

// Insert adds one or more rows. Each value may be a Row, a map or a
// struct with json tags.
func (q *Query) Insert(ctx context.Context, values ...any) error {
	for _, v := range values {
		row, err := ToRow(v)
		if err != nil {
			return err
		}
		q.req.Rows = append(q.req.Rows, row)
	}
	_, err := q.run(ctx, ActionInsert)
	return err
}

// Update applies patch to the rows matched by the filters.
func (q *Query) Update(ctx context.Context, patch any) error {
	row, err := ToRow(patch)
	if err != nil {
		return err
	}
	q.req.Patch = row
	_, err = q.run(ctx, ActionUpdate)
	return err
}

// Upsert inserts row or, when conflictKey already exists, updates it.
func (q *Query) Upsert(ctx context.Context, value any, conflictKey string) error {
	row, err := ToRow(value)
	if err != nil {
		return err
	}
	q.req.Rows = []Row{row}
	q.req.OnConflict = conflictKey
	_, err = q.run(ctx, ActionUpsert)
	return err
}

// Delete removes the rows matched by the filters.
func (q *Query) Delete(ctx context.Context) error {
	_, err := q.run(ctx, ActionDelete)
	return err
}

func (q *Query) run(ctx context.Context, action Action) ([]Row, error) {
	req := q.req
	req.Action = action
	return q.exec.Execute(ctx, &req)
}

// ToRow converts a Row, map or json-tagged struct to a Row.
func ToRow(v any) (Row, error) {
	switch r := v.(type) {
	case Row:
		return copyRow(r), nil
	case map[string]any:
		return copyRow(r), nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding row: %w", err)
	}
	var row Row
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("encoding row: %w", err)
	}
	return row, nil
}

func copyRow(r map[string]any) Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func decode(src, dest any) error {
	data, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("decoding rows: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decoding rows: %w", err)
	}
	return nil
}
