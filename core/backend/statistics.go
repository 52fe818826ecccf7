// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/hikingclubs/core/apperrors"
	"github.com/relabs-tech/hikingclubs/core/bootstrap"
	"github.com/relabs-tech/hikingclubs/core/csql"
	"github.com/relabs-tech/hikingclubs/core/logger"
)

// tableStatistics represents information about a table
type tableStatistics struct {
	Table        string  `json:"table"`
	Count        int64   `json:"count"`
	SizeMB       float64 `json:"size_mb"`
	AverageSizeB float64 `json:"average_size_b"`
}

// statisticsDetails represents information about the backend tables
type statisticsDetails struct {
	Tables       []tableStatistics `json:"tables"`
	Bootstrapped *time.Time        `json:"bootstrapped,omitempty"`
	Version      string            `json:"version,omitempty"`
}

func (b *Backend) handleStatistics(router *mux.Router) {
	logger.Default().Debugln("statistics")
	logger.Default().Debugln("  handle statistics route: /statistics GET")
	router.HandleFunc("/statistics", func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		b.statistics(w, r)
	}).Methods(http.MethodOptions, http.MethodGet)
}

func (b *Backend) statistics(w http.ResponseWriter, r *http.Request) {
	s := statisticsDetails{Tables: []tableStatistics{}} // do not return null in json, but empty array

	// Sort the tables so that ETag is unchanged regardless of the order of tables
	tables := sort.StringSlice(append([]string{}, bootstrap.Tables...))
	tables.Sort()

	err := b.db.WithConn(r.Context(), func(ctx context.Context, q csql.Querier) error {
		for _, table := range tables {
			row := q.QueryRowContext(ctx, fmt.Sprintf(`SELECT pg_total_relation_size('%s.%s'), count(*) FROM %s.%s`,
				b.db.Schema, table, b.db.Schema, table))
			var size, count int64
			if err := row.Scan(&size, &count); err != nil {
				if csql.IsUndefinedTable(err) {
					continue
				}
				return apperrors.IO(apperrors.Unavailable, err, "cannot read statistics of %s", table)
			}
			var averageSize float64 = 0
			if count != 0 {
				averageSize = float64(size / count)
			}
			s.Tables = append(s.Tables, tableStatistics{
				Table:        table,
				Count:        count,
				SizeMB:       float64(size) / 1024. / 1024.,
				AverageSizeB: averageSize,
			})
		}
		return nil
	})
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).Errorln("Error 4028: statistics")
		http.Error(w, "Error 4028: ", http.StatusInternalServerError)
		return
	}

	var record bootstrapRecord
	at, err := b.Registry.Accessor(registryPrefix).Read(r.Context(), bootstrapKey, &record)
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).Warnln("cannot read bootstrap record")
	} else if !at.IsZero() {
		s.Bootstrapped = &at
		s.Version = record.Version
	}

	jsonData, _ := json.Marshal(s)
	etag := bytesToEtag(jsonData)
	w.Header().Set("Etag", etag)
	if ifNoneMatchFound(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Write(jsonData)
}

// bytesToEtag returns a strong entity tag for data
func bytesToEtag(data []byte) string {
	return fmt.Sprintf(`"%016x"`, xxhash.Sum64(data))
}

// ifNoneMatchFound returns true if etag is listed in the If-None-Match header
func ifNoneMatchFound(ifNoneMatch, etag string) bool {
	etag = strings.TrimPrefix(etag, "W/")
	for _, candidate := range strings.Split(ifNoneMatch, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}
