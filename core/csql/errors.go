// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package csql

import (
	"errors"

	"github.com/lib/pq"
)

// postgres error codes, see https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeUndefinedTable      = "42P01"
)

func hasCode(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == code
	}
	return false
}

// IsUniqueViolation returns true if err is a duplicate key error
func IsUniqueViolation(err error) bool {
	return hasCode(err, codeUniqueViolation)
}

// IsForeignKeyViolation returns true if err is caused by a violated foreign key
func IsForeignKeyViolation(err error) bool {
	return hasCode(err, codeForeignKeyViolation)
}

// IsUndefinedTable returns true if err says that a relation does not exist
func IsUndefinedTable(err error) bool {
	return hasCode(err, codeUndefinedTable)
}

// IgnoreUndefinedTable returns nil for "relation does not exist" errors and err otherwise.
// Used when tearing down the schema.
func IgnoreUndefinedTable(err error) error {
	if IsUndefinedTable(err) {
		return nil
	}
	return err
}
