// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package query

import (
	"database/sql"

	"github.com/relabs-tech/hikingclubs/core/apperrors"
)

// Projection is a validated list of hiker attributes to return
type Projection struct {
	Attributes []Attribute
}

// Project keeps the requested names that are on the hiker allow-list, in the requested
// order and without duplicates. It fails if nothing is left: an empty projection never
// falls back to all columns.
func Project(requested []string) (*Projection, error) {
	return project(HikerAttributes, requested)
}

func project(allowList *AllowList, requested []string) (*Projection, error) {
	p := &Projection{}
	seen := map[string]bool{}
	for _, name := range requested {
		attribute, ok := allowList.Lookup(name)
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		p.Attributes = append(p.Attributes, attribute)
	}
	if len(p.Attributes) == 0 {
		return nil, apperrors.Validation(apperrors.NoValidAttributes, "No valid attributes selected")
	}
	return p, nil
}

// Names returns the projected attribute names in output order
func (p *Projection) Names() []string {
	names := make([]string, len(p.Attributes))
	for i, a := range p.Attributes {
		names[i] = a.name
	}
	return names
}

// Query returns the column restricted query over the hiker table
func (p *Projection) Query() *SelectQuery {
	return Select(HikerTable, p.Attributes...).OrderBy(HikerEmail)
}

// SQL renders the projection query
func (p *Projection) SQL() (string, []interface{}) {
	return p.Query().SQL()
}

// ScanRow scans the current row into a record keyed by attribute name
func (p *Projection) ScanRow(rows *sql.Rows) (map[string]interface{}, error) {
	return scanRecord(rows, p.Attributes)
}

func scanRecord(rows *sql.Rows, attributes []Attribute) (map[string]interface{}, error) {
	values := make([]interface{}, len(attributes))
	for i, a := range attributes {
		switch a.kind {
		case Integer:
			values[i] = &sql.NullInt64{}
		default:
			values[i] = &sql.NullString{}
		}
	}
	if err := rows.Scan(values...); err != nil {
		return nil, err
	}
	record := make(map[string]interface{}, len(attributes))
	for i, a := range attributes {
		switch v := values[i].(type) {
		case *sql.NullInt64:
			if v.Valid {
				record[a.name] = v.Int64
			} else {
				record[a.name] = nil
			}
		case *sql.NullString:
			if v.Valid {
				record[a.name] = v.String
			} else {
				record[a.name] = nil
			}
		}
	}
	return record, nil
}
