// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package query

import (
	"context"

	"github.com/relabs-tech/hikingclubs/core/apperrors"
	"github.com/relabs-tech/hikingclubs/core/csql"
	"github.com/relabs-tech/hikingclubs/core/logger"
)

// Hiker is one row of the hiker table
type Hiker struct {
	HikerEmail           string `json:"hikerEmail"`
	Name                 string `json:"name"`
	NumOfTrailsCompleted int64  `json:"numOfTrailsCompleted"`
	ClubEmail            string `json:"clubEmail"`
}

// FindHikers returns all hikers matching the filter
func FindHikers(ctx context.Context, q csql.Querier, f *Filter) ([]Hiker, error) {
	query, args := Select(HikerTable, HikerEmail, HikerName, NumofTrailsCompleted, HikerClubEmail).
		Where(f).
		OrderBy(HikerEmail).
		SQL()
	logger.FromContext(ctx).Debugf("query: `%s` %v", query, args)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.IO(apperrors.Unavailable, err, "cannot select hikers")
	}
	defer rows.Close()

	hikers := []Hiker{}
	for rows.Next() {
		var h Hiker
		if err := rows.Scan(&h.HikerEmail, &h.Name, &h.NumOfTrailsCompleted, &h.ClubEmail); err != nil {
			return nil, apperrors.IO(apperrors.Unavailable, err, "cannot scan hiker")
		}
		hikers = append(hikers, h)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.IO(apperrors.Unavailable, err, "cannot select hikers")
	}
	return hikers, nil
}

// Fetch runs the projection and returns one record per hiker
func (p *Projection) Fetch(ctx context.Context, q csql.Querier) ([]map[string]interface{}, error) {
	query, args := p.SQL()
	logger.FromContext(ctx).Debugf("query: `%s`", query)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.IO(apperrors.Unavailable, err, "cannot project hikers")
	}
	defer rows.Close()

	records := []map[string]interface{}{}
	for rows.Next() {
		record, err := p.ScanRow(rows)
		if err != nil {
			return nil, apperrors.IO(apperrors.Unavailable, err, "cannot scan hiker")
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.IO(apperrors.Unavailable, err, "cannot project hikers")
	}
	return records, nil
}
