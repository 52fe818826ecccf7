// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package bootstrap (re)creates the hiking clubs tables and fills them with sample data.

All tables are dropped first; tables that do not exist yet are skipped. The table
definitions and the sample data are embedded into the binary.
*/
package bootstrap

import (
	"context"
	_ "embed" // for the embedded sql scripts
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/relabs-tech/hikingclubs/core/apperrors"
	"github.com/relabs-tech/hikingclubs/core/csql"
	"github.com/relabs-tech/hikingclubs/core/logger"
)

//go:embed schema.sql
var schemaSQL string

//go:embed seed.sql
var seedSQL string

// Tables are all tables of the backend, in drop order
var Tables = []string{"Hike", "Have_Trails1", "Mountains", "Join_Hikers1", "Join_Hikers2", "HikingClubs"}

// Summary describes a completed bootstrap
type Summary struct {
	Tables         []string `json:"tables"`
	Dropped        int      `json:"dropped"`
	SeedStatements int      `json:"seed_statements"`
}

// Statements splits a script into its statements
func Statements(script string) []string {
	var statements []string
	for _, s := range strings.Split(script, ";") {
		if s = strings.TrimSpace(s); s != "" {
			statements = append(statements, s)
		}
	}
	return statements
}

// Run drops and re-creates all tables and inserts the sample data. Creating the tables
// stops at the first error. Seed statements are all attempted, their errors are
// combined.
func Run(ctx context.Context, db *csql.DB) (Summary, error) {
	ctx, rlog := logger.WithOperation(ctx, "bootstrap")
	summary := Summary{Tables: Tables}
	err := db.WithConn(ctx, func(ctx context.Context, q csql.Querier) error {
		for _, table := range Tables {
			_, err := q.ExecContext(ctx, `DROP TABLE `+table+` CASCADE`)
			if err == nil {
				summary.Dropped++
				continue
			}
			if err = csql.IgnoreUndefinedTable(err); err != nil {
				return apperrors.IO(apperrors.Unavailable, err, "cannot drop table %s", table)
			}
			rlog.Debugf("table %s does not exist, skipping drop", table)
		}

		for _, statement := range Statements(schemaSQL) {
			if _, err := q.ExecContext(ctx, statement); err != nil {
				return apperrors.IO(apperrors.Unavailable, err, "cannot create tables")
			}
		}

		var result *multierror.Error
		for i, statement := range Statements(seedSQL) {
			if _, err := q.ExecContext(ctx, statement); err != nil {
				result = multierror.Append(result, fmt.Errorf("seed statement %d: %w", i+1, err))
				continue
			}
			summary.SeedStatements++
		}
		if err := result.ErrorOrNil(); err != nil {
			return apperrors.IO(apperrors.Unavailable, err, "cannot insert sample data")
		}
		return nil
	})
	if err != nil {
		return summary, err
	}
	rlog.Infof("tables initialized, dropped %d, %d seed statements", summary.Dropped, summary.SeedStatements)
	return summary, nil
}
