// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package reporting

import (
	"context"
	"database/sql"

	"github.com/relabs-tech/hikingclubs/core/apperrors"
	"github.com/relabs-tech/hikingclubs/core/csql"
)

// JoinedHiker is a hiker together with the classification of its trail count
type JoinedHiker struct {
	HikerEmail           string `json:"hikerEmail"`
	Name                 string `json:"name"`
	NumOfTrailsCompleted int64  `json:"numOfTrailsCompleted"`
	ExperienceLevel      string `json:"experienceLevel"`
	ClubEmail            string `json:"clubEmail"`
}

// Club is one hiking club
type Club struct {
	ClubEmail    string `json:"clubEmail"`
	Name         string `json:"name"`
	NumOfMembers int64  `json:"numOfMembers"`
}

// Trail is one trail on a mountain
type Trail struct {
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	Name          string  `json:"name"`
	ElevationGain int64   `json:"elevationGain"`
	Distance      float64 `json:"distance"`
}

const (
	joinedHikersQuery = `SELECT j1.HikerEmail, j1.Name, j1.NumofTrailsCompleted, j2.ExperienceLevel, j1.ClubEmail
FROM Join_Hikers1 j1 JOIN Join_Hikers2 j2 ON j1.NumofTrailsCompleted = j2.NumofTrailsCompleted
ORDER BY j1.HikerEmail`
	clubsQuery       = `SELECT ClubEmail, Name, NumofMembers FROM HikingClubs ORDER BY ClubEmail`
	trailsQuery      = `SELECT Latitude, Longitude, Name, ElevationGain, Distance FROM Have_Trails1 ORDER BY Name, Latitude, Longitude`
	countHikersQuery = `SELECT COUNT(*) FROM Join_Hikers1`
)

// JoinedHikers lists all hikers with their experience level
func JoinedHikers(ctx context.Context, q csql.Querier) ([]JoinedHiker, error) {
	return collect(ctx, q, "hikers", joinedHikersQuery, nil,
		func(rows *sql.Rows, h *JoinedHiker) error {
			return rows.Scan(&h.HikerEmail, &h.Name, &h.NumOfTrailsCompleted, &h.ExperienceLevel, &h.ClubEmail)
		})
}

// Clubs lists all hiking clubs
func Clubs(ctx context.Context, q csql.Querier) ([]Club, error) {
	return collect(ctx, q, "hiking clubs", clubsQuery, nil,
		func(rows *sql.Rows, c *Club) error {
			return rows.Scan(&c.ClubEmail, &c.Name, &c.NumOfMembers)
		})
}

// Trails lists all trails
func Trails(ctx context.Context, q csql.Querier) ([]Trail, error) {
	return collect(ctx, q, "trails", trailsQuery, nil,
		func(rows *sql.Rows, t *Trail) error {
			var elevation sql.NullInt64
			var distance sql.NullFloat64
			if err := rows.Scan(&t.Latitude, &t.Longitude, &t.Name, &elevation, &distance); err != nil {
				return err
			}
			t.ElevationGain = elevation.Int64
			t.Distance = distance.Float64
			return nil
		})
}

// CountHikers returns the number of hikers
func CountHikers(ctx context.Context, q csql.Querier) (int64, error) {
	var n int64
	if err := q.QueryRowContext(ctx, countHikersQuery).Scan(&n); err != nil {
		return 0, apperrors.IO(apperrors.Unavailable, err, "cannot count hikers")
	}
	return n, nil
}
