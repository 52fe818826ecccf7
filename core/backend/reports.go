// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/relabs-tech/hikingclubs/core/csql"
	"github.com/relabs-tech/hikingclubs/core/logger"
	"github.com/relabs-tech/hikingclubs/core/reporting"
)

// report is a read-only query returning the data of the envelope
type report func(ctx context.Context, q csql.Querier) (interface{}, error)

func (b *Backend) handleReport(router *mux.Router, path, operation string, fetch report) {
	logger.Default().Debugln("  handle route:", path, "GET")
	router.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		var data interface{}
		err := b.db.WithConn(r.Context(), func(ctx context.Context, q csql.Querier) (err error) {
			data, err = fetch(ctx, q)
			return
		})
		b.finish(w, r, operation, data, err)
	}).Methods(http.MethodOptions, http.MethodGet)
}

func (b *Backend) handleReports(router *mux.Router) {
	logger.Default().Debugln("reports")
	b.handleReport(router, "/avg-trails-by-experience", "avgTrailsByExperience", func(ctx context.Context, q csql.Querier) (interface{}, error) {
		return reporting.AvgTrailsByExperience(ctx, q)
	})
	b.handleReport(router, "/max-trails-by-club", "maxTrailsByClub", func(ctx context.Context, q csql.Querier) (interface{}, error) {
		return reporting.MaxTrailsByClub(ctx, q)
	})
	b.handleReport(router, "/hikers-highest-trails", "hikersHighestTrails", func(ctx context.Context, q csql.Querier) (interface{}, error) {
		return reporting.HikersWithHighestTrails(ctx, q)
	})
	b.handleReport(router, "/hikers-all-mountains", "hikersAllMountains", func(ctx context.Context, q csql.Querier) (interface{}, error) {
		return reporting.HikersWhoHikedAllMountains(ctx, q)
	})

	logger.Default().Debugln("listings")
	b.handleReport(router, "/join-hikers", "joinHikers", func(ctx context.Context, q csql.Querier) (interface{}, error) {
		return reporting.JoinedHikers(ctx, q)
	})
	b.handleReport(router, "/hiking-clubs", "hikingClubs", func(ctx context.Context, q csql.Querier) (interface{}, error) {
		return reporting.Clubs(ctx, q)
	})
	b.handleReport(router, "/have-trails", "haveTrails", func(ctx context.Context, q csql.Querier) (interface{}, error) {
		return reporting.Trails(ctx, q)
	})

	logger.Default().Debugln("  handle route: /count-hikers GET")
	router.HandleFunc("/count-hikers", func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		var count int64
		err := b.db.WithConn(r.Context(), func(ctx context.Context, q csql.Querier) (err error) {
			count, err = reporting.CountHikers(ctx, q)
			return
		})
		b.metrics.ObserveOperation("countHikers", err)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, countEnvelope{Success: true, Count: count})
	}).Methods(http.MethodOptions, http.MethodGet)
}
