// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package query

import (
	"strconv"
	"strings"
)

// SelectQuery is a column restricted read query over one table
type SelectQuery struct {
	table   Table
	columns []Attribute
	where   *Filter
	orderBy []Attribute
}

// Select starts a query over table returning the given columns
func Select(table Table, columns ...Attribute) *SelectQuery {
	return &SelectQuery{table: table, columns: columns}
}

// Where restricts the query with a parsed filter
func (q *SelectQuery) Where(f *Filter) *SelectQuery {
	q.where = f
	return q
}

// OrderBy sets the sort order, ascending
func (q *SelectQuery) OrderBy(attributes ...Attribute) *SelectQuery {
	q.orderBy = attributes
	return q
}

// Columns returns the selected columns in output order
func (q *SelectQuery) Columns() []Attribute {
	return q.columns
}

// SQL renders the query with postgres positional parameters
func (q *SelectQuery) SQL() (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(columnList(q.columns))
	sb.WriteString(" FROM ")
	sb.WriteString(q.table.name)

	var args []interface{}
	if q.where != nil && len(q.where.Predicates) > 0 {
		var where string
		where, args = q.where.render(0)
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}
	if len(q.orderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(columnList(q.orderBy))
	}
	return sb.String(), args
}

func columnList(attributes []Attribute) string {
	columns := make([]string, len(attributes))
	for i, a := range attributes {
		columns[i] = a.column
	}
	return strings.Join(columns, ", ")
}

// returns $n
func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}
