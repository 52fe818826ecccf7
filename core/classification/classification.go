// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package classification maps a number of completed trails to an experience tier and
maintains the lookup table Join_Hikers2, which holds one row per distinct trail count.

Rows are created lazily the first time a count is seen. They are never updated or
deleted by the backend.
*/
package classification

import (
	"context"

	"github.com/relabs-tech/hikingclubs/core/apperrors"
	"github.com/relabs-tech/hikingclubs/core/csql"
	"github.com/relabs-tech/hikingclubs/core/logger"
)

// Tier is an experience level
type Tier string

// all tiers
const (
	Junior       Tier = "junior"
	Intermediate Tier = "intermediate"
	Senior       Tier = "senior"
)

// tier boundaries, lower bounds are inclusive
const (
	IntermediateFrom = 15
	SeniorFrom       = 30
)

// Tiers returns all tiers in ascending order
func Tiers() []Tier {
	return []Tier{Junior, Intermediate, Senior}
}

// Classify returns the tier for count. Negative counts are rejected.
func Classify(count int) (Tier, error) {
	switch {
	case count < 0:
		return "", apperrors.Validation(apperrors.InvalidInput, "number of trails completed must not be negative, got %d", count)
	case count < IntermediateFrom:
		return Junior, nil
	case count < SeniorFrom:
		return Intermediate, nil
	default:
		return Senior, nil
	}
}

const (
	existsQuery = `SELECT COUNT(*) FROM Join_Hikers2 WHERE NumofTrailsCompleted = $1`
	insertQuery = `INSERT INTO Join_Hikers2 (NumofTrailsCompleted, ExperienceLevel) VALUES ($1, $2)
ON CONFLICT (NumofTrailsCompleted) DO NOTHING`
)

// EnsureExists makes sure a classification row exists for count. It is idempotent and
// safe under concurrency: a row inserted by a racing caller counts as success.
func EnsureExists(ctx context.Context, q csql.Querier, count int) error {
	tier, err := Classify(count)
	if err != nil {
		return err
	}

	var n int
	if err := q.QueryRowContext(ctx, existsQuery, count).Scan(&n); err != nil {
		return apperrors.IO(apperrors.ClassificationInsertFailed, err, "cannot look up classification for %d trails", count)
	}
	if n > 0 {
		return nil
	}

	_, err = q.ExecContext(ctx, insertQuery, count, string(tier))
	if err != nil && !csql.IsUniqueViolation(err) {
		return apperrors.IO(apperrors.ClassificationInsertFailed, err, "Failed to insert numOfTrailsCompleted into Join_Hikers2")
	}
	logger.FromContext(ctx).Debugf("classification for %d trails is %s", count, tier)
	return nil
}
