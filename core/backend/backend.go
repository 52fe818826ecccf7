// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/hashicorp/go-multierror"

	"github.com/relabs-tech/hikingclubs/core/csql"
	"github.com/relabs-tech/hikingclubs/core/logger"
	"github.com/relabs-tech/hikingclubs/core/membership"
	"github.com/relabs-tech/hikingclubs/core/metrics"
	"github.com/relabs-tech/hikingclubs/core/notify"
	"github.com/relabs-tech/hikingclubs/core/registry"
	"github.com/relabs-tech/hikingclubs/core/schema"
)

// Backend is the hiking clubs rest backend
type Backend struct {
	db         *csql.DB
	router     *mux.Router
	maintainer *membership.Maintainer
	validator  *schema.Validator
	notifier   notify.Notifier
	metrics    *metrics.Metrics
	staticDir  string
	// Registry is the JSON object registry for this backend's schema
	Registry registry.Registry
}

// Builder is a builder helper for the Backend
type Builder struct {
	// DB is a postgres database. This is mandatory.
	DB *csql.DB
	// Router is a mux router. This is mandatory.
	Router *mux.Router
	// Notifier receives change events for hikers and clubs. This is optional.
	Notifier notify.Notifier
	// Metrics collects request and operation metrics. If nil, new metrics are created.
	Metrics *metrics.Metrics
	// CascadeDeletes makes deletes keep the club member counters exact
	CascadeDeletes bool
	// StaticDir is served under / if it exists. This is optional.
	StaticDir string
}

// New realizes the actual backend. It creates the registry (if it does
// not exist) and adds actual routes to router
func New(bb *Builder) (*Backend, error) {
	if bb.DB == nil {
		return nil, errors.New("DB is missing")
	}
	if bb.Router == nil {
		return nil, errors.New("Router is missing")
	}

	validator, err := schema.Requests()
	if err != nil {
		return nil, err
	}
	reg, err := registry.New(context.Background(), bb.DB)
	if err != nil {
		return nil, err
	}

	b := &Backend{
		db:     bb.DB,
		router: bb.Router,
		maintainer: &membership.Maintainer{
			DB:             bb.DB,
			CascadeDeletes: bb.CascadeDeletes,
		},
		validator: validator,
		notifier:  bb.Notifier,
		metrics:   bb.Metrics,
		staticDir: bb.StaticDir,
		Registry:  reg,
	}
	if b.notifier == nil {
		b.notifier = notify.Noop{}
	}
	if b.metrics == nil {
		b.metrics = metrics.New()
	}
	if err := b.metrics.RegisterDB(bb.DB.DB, "hikingclubs"); err != nil {
		logger.Default().WithError(err).Warnln("cannot register database pool metrics")
	}

	b.handleRoutes(b.router)
	return b, nil
}

// MustNew is New but panics on error
func MustNew(bb *Builder) *Backend {
	b, err := New(bb)
	if err != nil {
		panic(err)
	}
	return b
}

// Router returns the router of the backend
func (b *Backend) Router() *mux.Router {
	return b.router
}

func (b *Backend) handleRoutes(router *mux.Router) {
	logger.Default().Debugln("backend: HandleRoutes")

	logger.AddRequestID(router)
	b.handleCORS()
	router.Use(b.metrics.Middleware())
	b.handleCompression()

	b.handleAdmin(router)
	b.handleHikers(router)
	b.handleClubs(router)
	b.handleReports(router)
	b.handleStatistics(router)
	b.handleVersion(router)
	router.Handle("/metrics", b.metrics.Handler()).Methods(http.MethodGet)
	b.handleStatic(router)
}

func (b *Backend) handleStatic(router *mux.Router) {
	if b.staticDir == "" {
		return
	}
	if info, err := os.Stat(b.staticDir); err != nil || !info.IsDir() {
		logger.Default().Warnf("static directory %s not found, not serving static files", b.staticDir)
		return
	}
	logger.Default().Debugln("  handle static files from", b.staticDir)
	router.PathPrefix("/").Handler(http.FileServer(http.Dir(b.staticDir))).Methods(http.MethodGet, http.MethodHead)
}

// Close releases notifier and database. All errors are combined.
func (b *Backend) Close() error {
	var result *multierror.Error
	if err := b.notifier.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := b.db.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
