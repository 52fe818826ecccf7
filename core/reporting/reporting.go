// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package reporting contains the fixed analytical queries and listings of the backend.

None of the queries is assembled from user input. The only parameters are the trail
name of HikersByTrail and the big club threshold, both bound.
*/
package reporting

import (
	"context"
	"database/sql"

	"github.com/relabs-tech/hikingclubs/core/apperrors"
	"github.com/relabs-tech/hikingclubs/core/csql"
	"github.com/relabs-tech/hikingclubs/core/logger"
)

// BigClubThreshold is the aggregated member count a club must exceed to be reported
// by MaxTrailsByClub
const BigClubThreshold = 50

// ExperienceAverage is the average trail count of one experience level
type ExperienceAverage struct {
	ExperienceLevel         string  `json:"experienceLevel"`
	AvgNumOfTrailsCompleted float64 `json:"avgNumOfTrailsCompleted"`
}

// ClubMaximum is the highest trail count among the hikers of one club
type ClubMaximum struct {
	ClubEmail          string `json:"clubEmail"`
	MaxTrailsCompleted int64  `json:"maxTrailsCompleted"`
}

// RankedHiker is a hiker together with its experience level
type RankedHiker struct {
	HikerEmail      string `json:"hikerEmail"`
	Name            string `json:"name"`
	ExperienceLevel string `json:"experienceLevel"`
}

// Mountaineer is a hiker who has hiked every mountain
type Mountaineer struct {
	HikerEmail string `json:"hikerEmail"`
	Name       string `json:"name"`
}

// TrailHiker is a hiker who hiked a particular trail
type TrailHiker struct {
	HikerEmail string `json:"hikerEmail"`
	HikerName  string `json:"hikerName"`
	TrailName  string `json:"trailName"`
}

const (
	avgTrailsByExperienceQuery = `SELECT ExperienceLevel, AVG(NumofTrailsCompleted) AS AvgNumofTrailsCompleted
FROM Join_Hikers2
GROUP BY ExperienceLevel
ORDER BY ExperienceLevel`

	maxTrailsByClubQuery = `SELECT c.ClubEmail, MAX(h.NumofTrailsCompleted) AS MaxTrails
FROM HikingClubs c JOIN Join_Hikers1 h ON c.ClubEmail = h.ClubEmail
GROUP BY c.ClubEmail
HAVING SUM(c.NumofMembers) > $1
ORDER BY c.ClubEmail ASC`

	hikersWithHighestTrailsQuery = `SELECT h.HikerEmail, h.Name, h1.ExperienceLevel
FROM Join_Hikers2 h1 JOIN Join_Hikers1 h ON h1.NumofTrailsCompleted = h.NumofTrailsCompleted
WHERE h1.NumofTrailsCompleted >= ALL (
    SELECT AVG(h2.NumofTrailsCompleted)
    FROM Join_Hikers2 h2
    WHERE h2.ExperienceLevel = h1.ExperienceLevel
    GROUP BY h2.ExperienceLevel
)
ORDER BY h1.ExperienceLevel, h.HikerEmail`

	hikersWhoHikedAllMountainsQuery = `SELECT DISTINCT h.HikerEmail, j.Name
FROM Hike h JOIN Join_Hikers1 j ON h.HikerEmail = j.HikerEmail
WHERE NOT EXISTS (
    SELECT m.Latitude, m.Longitude FROM Mountains m
    EXCEPT
    SELECT h2.Latitude, h2.Longitude FROM Hike h2 WHERE h2.HikerEmail = h.HikerEmail
)
ORDER BY h.HikerEmail`

	hikersByTrailQuery = `SELECT h.HikerEmail, j.Name AS HikerName, t.Name AS TrailName
FROM Join_Hikers1 j
JOIN Hike h ON j.HikerEmail = h.HikerEmail
JOIN Have_Trails1 t ON h.Latitude = t.Latitude AND h.Longitude = t.Longitude
WHERE t.Name = $1
ORDER BY h.HikerEmail`
)

// collect runs query and scans every row with scan
func collect[T any](ctx context.Context, q csql.Querier, what, query string, args []interface{}, scan func(rows *sql.Rows, t *T) error) ([]T, error) {
	logger.FromContext(ctx).Debugf("report %s", what)
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.IO(apperrors.Unavailable, err, "cannot query %s", what)
	}
	defer rows.Close()

	result := []T{}
	for rows.Next() {
		var t T
		if err := scan(rows, &t); err != nil {
			return nil, apperrors.IO(apperrors.Unavailable, err, "cannot scan %s", what)
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.IO(apperrors.Unavailable, err, "cannot query %s", what)
	}
	return result, nil
}

// AvgTrailsByExperience returns the average trail count per experience level. The
// average is taken over classification rows, that is over distinct trail counts.
func AvgTrailsByExperience(ctx context.Context, q csql.Querier) ([]ExperienceAverage, error) {
	return collect(ctx, q, "average trails by experience", avgTrailsByExperienceQuery, nil,
		func(rows *sql.Rows, a *ExperienceAverage) error {
			return rows.Scan(&a.ExperienceLevel, &a.AvgNumOfTrailsCompleted)
		})
}

// MaxTrailsByClub returns the highest trail count of every big club. The threshold is
// applied to the sum of NumofMembers over the joined rows.
func MaxTrailsByClub(ctx context.Context, q csql.Querier) ([]ClubMaximum, error) {
	return collect(ctx, q, "max trails by club", maxTrailsByClubQuery, []interface{}{BigClubThreshold},
		func(rows *sql.Rows, m *ClubMaximum) error {
			return rows.Scan(&m.ClubEmail, &m.MaxTrailsCompleted)
		})
}

// HikersWithHighestTrails returns the hikers whose trail count is at or above the
// average of their experience level
func HikersWithHighestTrails(ctx context.Context, q csql.Querier) ([]RankedHiker, error) {
	return collect(ctx, q, "hikers with highest trails", hikersWithHighestTrailsQuery, nil,
		func(rows *sql.Rows, h *RankedHiker) error {
			return rows.Scan(&h.HikerEmail, &h.Name, &h.ExperienceLevel)
		})
}

// HikersWhoHikedAllMountains returns the hikers who hiked every mountain
func HikersWhoHikedAllMountains(ctx context.Context, q csql.Querier) ([]Mountaineer, error) {
	return collect(ctx, q, "hikers who hiked all mountains", hikersWhoHikedAllMountainsQuery, nil,
		func(rows *sql.Rows, m *Mountaineer) error {
			return rows.Scan(&m.HikerEmail, &m.Name)
		})
}

// HikersByTrail returns the hikers who hiked the trail with the given name
func HikersByTrail(ctx context.Context, q csql.Querier, trailName string) ([]TrailHiker, error) {
	if trailName == "" {
		return nil, apperrors.Validation(apperrors.MissingField, "trailName is required")
	}
	return collect(ctx, q, "hikers by trail", hikersByTrailQuery, []interface{}{trailName},
		func(rows *sql.Rows, h *TrailHiker) error {
			return rows.Scan(&h.HikerEmail, &h.HikerName, &h.TrailName)
		})
}
