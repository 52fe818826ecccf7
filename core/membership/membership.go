// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package membership maintains the relation between hikers and hiking clubs.

A club's NumofMembers is a counter that is kept in step with the hikers referencing
the club. It is changed only by relative updates and always in the same transaction
as the hiker row it accounts for. Every hiker's trail count has a classification
row in Join_Hikers2, see package classification.

By default deleting a hiker does not decrement its club and deleting a club does not
remove its hikers. A club that still has hikers cannot be deleted. With
CascadeDeletes both deletes keep the counters exact.
*/
package membership

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"strings"

	"github.com/relabs-tech/hikingclubs/core/apperrors"
	"github.com/relabs-tech/hikingclubs/core/classification"
	"github.com/relabs-tech/hikingclubs/core/csql"
	"github.com/relabs-tech/hikingclubs/core/logger"
	"github.com/relabs-tech/hikingclubs/core/pointers"
)

// Maintainer performs all writes on hikers and clubs
type Maintainer struct {
	DB *csql.DB
	// CascadeDeletes makes hiker deletes decrement the club counter and club deletes
	// remove the club's hikers
	CascadeDeletes bool
}

// HikerInput is a new hiker
type HikerInput struct {
	HikerEmail           string
	Name                 string
	NumOfTrailsCompleted int
	ClubEmail            string
}

// HikerUpdate changes a hiker. Nil fields keep their current value.
type HikerUpdate struct {
	HikerEmail              string
	NewName                 *string
	NewNumOfTrailsCompleted *int
	NewClubEmail            *string
}

// ClubInput is a new hiking club
type ClubInput struct {
	ClubEmail    string
	Name         string
	NumOfMembers int
}

// ClubUpdate changes a hiking club. Nil fields keep their current value.
type ClubUpdate struct {
	ClubEmail       string
	NewName         *string
	NewNumOfMembers *int
}

const (
	hikerExistsQuery  = `SELECT COUNT(*) FROM Join_Hikers1 WHERE HikerEmail = $1`
	clubExistsQuery   = `SELECT COUNT(*) FROM HikingClubs WHERE ClubEmail = $1`
	hikerCurrentQuery = `SELECT Name, NumofTrailsCompleted, ClubEmail FROM Join_Hikers1 WHERE HikerEmail = $1 FOR UPDATE`
	insertHikerQuery  = `INSERT INTO Join_Hikers1 (HikerEmail, Name, NumofTrailsCompleted, ClubEmail) VALUES ($1, $2, $3, $4)`
	updateHikerQuery  = `UPDATE Join_Hikers1 SET Name = $1, NumofTrailsCompleted = $2, ClubEmail = $3 WHERE HikerEmail = $4`
	deleteHikerQuery  = `DELETE FROM Join_Hikers1 WHERE HikerEmail = $1 RETURNING ClubEmail`
	adjustClubQuery   = `UPDATE HikingClubs SET NumofMembers = NumofMembers + $1 WHERE ClubEmail = $2`
	insertClubQuery   = `INSERT INTO HikingClubs (ClubEmail, Name, NumofMembers) VALUES ($1, $2, $3)`
	updateClubQuery   = `UPDATE HikingClubs SET Name = COALESCE($1, Name), NumofMembers = COALESCE($2, NumofMembers) WHERE ClubEmail = $3`
	deleteMembers     = `DELETE FROM Join_Hikers1 WHERE ClubEmail = $1`
	deleteClubQuery   = `DELETE FROM HikingClubs WHERE ClubEmail = $1`
)

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return apperrors.Validation(apperrors.MissingField, "%s is required", field)
	}
	return nil
}

// validCount checks that value fits the INTEGER count columns and is not negative
func validCount(field string, value int) error {
	if value < 0 {
		return apperrors.Validation(apperrors.InvalidInput, "%s must not be negative", field)
	}
	if value > math.MaxInt32 {
		return apperrors.Validation(apperrors.InvalidInput, "%s must not exceed %d", field, math.MaxInt32)
	}
	return nil
}

func exists(ctx context.Context, tx csql.Querier, query, key string) (bool, error) {
	var n int
	if err := tx.QueryRowContext(ctx, query, key).Scan(&n); err != nil {
		return false, apperrors.IO(apperrors.Unavailable, err, "cannot check existence of %s", key)
	}
	return n > 0, nil
}

// adjustClub changes the club's member counter by delta. It fails with ClubNotFound if
// no row was affected.
func adjustClub(ctx context.Context, tx csql.Querier, clubEmail string, delta int) error {
	res, err := tx.ExecContext(ctx, adjustClubQuery, delta, clubEmail)
	if err != nil {
		return apperrors.IO(apperrors.Unavailable, err, "cannot update member count of club %s", clubEmail)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.IO(apperrors.Unavailable, err, "cannot update member count of club %s", clubEmail)
	}
	if n == 0 {
		return apperrors.NotFoundf(apperrors.ClubNotFound, "Club does not exist: %s", clubEmail)
	}
	return nil
}

func rowsAffected(res interface{ RowsAffected() (int64, error) }, what string) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperrors.IO(apperrors.Unavailable, err, "cannot %s", what)
	}
	return n > 0, nil
}

// InsertHiker creates a hiker, makes sure its classification exists and increments
// the club's member counter, all in one transaction.
func (m *Maintainer) InsertHiker(ctx context.Context, in HikerInput) error {
	if err := required("hiker_email", in.HikerEmail); err != nil {
		return err
	}
	if err := required("name", in.Name); err != nil {
		return err
	}
	if err := required("club_email", in.ClubEmail); err != nil {
		return err
	}
	if err := validCount("num_of_trails", in.NumOfTrailsCompleted); err != nil {
		return err
	}

	ctx, rlog := logger.WithOperation(ctx, "insertHiker")
	return m.DB.WithTx(ctx, func(ctx context.Context, tx csql.Querier) error {
		found, err := exists(ctx, tx, hikerExistsQuery, in.HikerEmail)
		if err != nil {
			return err
		}
		if found {
			return apperrors.Conflict(apperrors.AlreadyExists, "Hiker already exists: %s", in.HikerEmail)
		}

		found, err = exists(ctx, tx, clubExistsQuery, in.ClubEmail)
		if err != nil {
			return err
		}
		if !found {
			return apperrors.NotFoundf(apperrors.ClubNotFound, "Club does not exist: %s", in.ClubEmail)
		}

		if err := classification.EnsureExists(ctx, tx, in.NumOfTrailsCompleted); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, insertHikerQuery, in.HikerEmail, in.Name, in.NumOfTrailsCompleted, in.ClubEmail)
		if err != nil {
			switch {
			case csql.IsUniqueViolation(err):
				return apperrors.Conflict(apperrors.AlreadyExists, "Hiker already exists: %s", in.HikerEmail)
			case csql.IsForeignKeyViolation(err):
				return apperrors.NotFoundf(apperrors.ClubNotFound, "Club does not exist: %s", in.ClubEmail)
			}
			return apperrors.IO(apperrors.Unavailable, err, "cannot insert hiker %s", in.HikerEmail)
		}

		if err := adjustClub(ctx, tx, in.ClubEmail, 1); err != nil {
			return err
		}
		rlog.Infof("inserted hiker %s into club %s", in.HikerEmail, in.ClubEmail)
		return nil
	})
}

// UpdateHiker changes name, trail count and club of a hiker. When the club changes,
// the old club's counter is decremented and the new club's counter incremented in the
// same transaction.
func (m *Maintainer) UpdateHiker(ctx context.Context, up HikerUpdate) error {
	if err := required("hiker_email", up.HikerEmail); err != nil {
		return err
	}
	if up.NewNumOfTrailsCompleted != nil {
		if err := validCount("new_num_of_trails", *up.NewNumOfTrailsCompleted); err != nil {
			return err
		}
	}

	ctx, rlog := logger.WithOperation(ctx, "updateHiker")
	return m.DB.WithTx(ctx, func(ctx context.Context, tx csql.Querier) error {
		found, err := exists(ctx, tx, hikerExistsQuery, up.HikerEmail)
		if err != nil {
			return err
		}
		if !found {
			return apperrors.NotFoundf(apperrors.NotFound, "Hiker does not exist: %s", up.HikerEmail)
		}

		if up.NewClubEmail != nil {
			found, err = exists(ctx, tx, clubExistsQuery, *up.NewClubEmail)
			if err != nil {
				return err
			}
			if !found {
				return apperrors.NotFoundf(apperrors.ClubNotFound, "Club does not exist: %s", *up.NewClubEmail)
			}
		}

		var (
			name        string
			count       int
			currentClub sql.NullString
		)
		err = tx.QueryRowContext(ctx, hikerCurrentQuery, up.HikerEmail).Scan(&name, &count, &currentClub)
		if errors.Is(err, csql.ErrNoRows) {
			return apperrors.Inconsistent("hiker %s vanished during update", up.HikerEmail)
		}
		if err != nil {
			return apperrors.IO(apperrors.Unavailable, err, "cannot read hiker %s", up.HikerEmail)
		}
		if !currentClub.Valid || currentClub.String == "" {
			return apperrors.Inconsistent("hiker %s has no club affiliation", up.HikerEmail)
		}

		name = pointers.ValueOr(up.NewName, name)
		count = pointers.ValueOr(up.NewNumOfTrailsCompleted, count)
		club := pointers.ValueOr(up.NewClubEmail, currentClub.String)

		if club != currentClub.String {
			// lock both club rows in email order so concurrent moves cannot deadlock
			moves := []struct {
				club  string
				delta int
			}{{currentClub.String, -1}, {club, 1}}
			if moves[1].club < moves[0].club {
				moves[0], moves[1] = moves[1], moves[0]
			}
			for _, mv := range moves {
				if err := adjustClub(ctx, tx, mv.club, mv.delta); err != nil {
					return err
				}
			}
			rlog.Infof("moved hiker %s from club %s to %s", up.HikerEmail, currentClub.String, club)
		}

		if err := classification.EnsureExists(ctx, tx, count); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, updateHikerQuery, name, count, club, up.HikerEmail); err != nil {
			return apperrors.IO(apperrors.Unavailable, err, "cannot update hiker %s", up.HikerEmail)
		}
		return nil
	})
}

// DeleteHiker deletes a hiker and returns whether a row was affected. With
// CascadeDeletes the club's counter is decremented.
func (m *Maintainer) DeleteHiker(ctx context.Context, hikerEmail string) (bool, error) {
	if err := required("hiker_email", hikerEmail); err != nil {
		return false, err
	}
	ctx, rlog := logger.WithOperation(ctx, "deleteHiker")
	deleted := false
	err := m.DB.WithTx(ctx, func(ctx context.Context, tx csql.Querier) error {
		var clubEmail string
		err := tx.QueryRowContext(ctx, deleteHikerQuery, hikerEmail).Scan(&clubEmail)
		if errors.Is(err, csql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return apperrors.IO(apperrors.Unavailable, err, "cannot delete hiker %s", hikerEmail)
		}
		deleted = true
		if !m.CascadeDeletes {
			rlog.Warnf("deleted hiker %s, member count of club %s is not adjusted", hikerEmail, clubEmail)
			return nil
		}
		return adjustClub(ctx, tx, clubEmail, -1)
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

// InsertClub creates a hiking club
func (m *Maintainer) InsertClub(ctx context.Context, in ClubInput) (bool, error) {
	if err := required("club_email", in.ClubEmail); err != nil {
		return false, err
	}
	if err := required("club_name", in.Name); err != nil {
		return false, err
	}
	if err := validCount("num_of_members", in.NumOfMembers); err != nil {
		return false, err
	}
	ctx, _ = logger.WithOperation(ctx, "insertClub")
	inserted := false
	err := m.DB.WithConn(ctx, func(ctx context.Context, q csql.Querier) error {
		res, err := q.ExecContext(ctx, insertClubQuery, in.ClubEmail, in.Name, in.NumOfMembers)
		if csql.IsUniqueViolation(err) {
			return apperrors.Conflict(apperrors.AlreadyExists, "Club already exists: %s", in.ClubEmail)
		}
		if err != nil {
			return apperrors.IO(apperrors.Unavailable, err, "cannot insert club %s", in.ClubEmail)
		}
		inserted, err = rowsAffected(res, "insert club")
		return err
	})
	return inserted, err
}

// UpdateClub changes name and member count of a club and returns whether the club
// exists.
func (m *Maintainer) UpdateClub(ctx context.Context, up ClubUpdate) (bool, error) {
	if err := required("club_email", up.ClubEmail); err != nil {
		return false, err
	}
	if up.NewNumOfMembers != nil {
		if err := validCount("new_num_of_members", *up.NewNumOfMembers); err != nil {
			return false, err
		}
	}
	ctx, rlog := logger.WithOperation(ctx, "updateClub")
	updated := false
	err := m.DB.WithConn(ctx, func(ctx context.Context, q csql.Querier) error {
		var members interface{}
		if up.NewNumOfMembers != nil {
			members = *up.NewNumOfMembers
			rlog.Warnf("member count of club %s is overwritten with %d", up.ClubEmail, *up.NewNumOfMembers)
		}
		var name interface{}
		if up.NewName != nil {
			name = *up.NewName
		}
		res, err := q.ExecContext(ctx, updateClubQuery, name, members, up.ClubEmail)
		if err != nil {
			return apperrors.IO(apperrors.Unavailable, err, "cannot update club %s", up.ClubEmail)
		}
		updated, err = rowsAffected(res, "update club")
		return err
	})
	return updated, err
}

// DeleteClub deletes a club and returns whether a row was affected. A club with hikers
// fails with ClubHasMembers unless CascadeDeletes is set, in which case its hikers are
// deleted first.
func (m *Maintainer) DeleteClub(ctx context.Context, clubEmail string) (bool, error) {
	if err := required("club_email", clubEmail); err != nil {
		return false, err
	}
	ctx, rlog := logger.WithOperation(ctx, "deleteClub")
	deleted := false
	err := m.DB.WithTx(ctx, func(ctx context.Context, tx csql.Querier) error {
		if m.CascadeDeletes {
			res, err := tx.ExecContext(ctx, deleteMembers, clubEmail)
			if err != nil {
				return apperrors.IO(apperrors.Unavailable, err, "cannot delete hikers of club %s", clubEmail)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				rlog.Infof("deleted %d hikers of club %s", n, clubEmail)
			}
		}
		res, err := tx.ExecContext(ctx, deleteClubQuery, clubEmail)
		if csql.IsForeignKeyViolation(err) {
			return apperrors.Conflict(apperrors.ClubHasMembers, "Club still has hikers: %s", clubEmail)
		}
		if err != nil {
			return apperrors.IO(apperrors.Unavailable, err, "cannot delete club %s", clubEmail)
		}
		deleted, err = rowsAffected(res, "delete club")
		return err
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}
