// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/relabs-tech/hikingclubs/core/bootstrap"
	"github.com/relabs-tech/hikingclubs/core/logger"
	"github.com/relabs-tech/hikingclubs/core/notify"
)

// registry key and prefix of the bootstrap record
const (
	registryPrefix = "hikingclubs"
	bootstrapKey   = "bootstrap"
)

// bootstrapRecord is stored in the registry after every successful bootstrap
type bootstrapRecord struct {
	bootstrap.Summary
	Version string `json:"version"`
}

func (b *Backend) handleAdmin(router *mux.Router) {
	logger.Default().Debugln("admin")
	logger.Default().Debugln("  handle route: /check-db-connection GET")
	router.HandleFunc("/check-db-connection", func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		b.checkDBConnection(w, r)
	}).Methods(http.MethodOptions, http.MethodGet)

	logger.Default().Debugln("  handle route: /initiate-hiking-clubs POST")
	router.HandleFunc("/initiate-hiking-clubs", func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		b.initiateHikingClubs(w, r)
	}).Methods(http.MethodOptions, http.MethodPost)
}

// checkDBConnection always answers 200, the body tells whether the database is reachable
func (b *Backend) checkDBConnection(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := b.db.Ping(r.Context()); err != nil {
		logger.FromContext(r.Context()).WithError(err).Errorln("Error 4003: database not reachable")
		w.Write([]byte("unable to connect"))
		return
	}
	w.Write([]byte("connected"))
}

func (b *Backend) initiateHikingClubs(w http.ResponseWriter, r *http.Request) {
	rlog := logger.FromContext(r.Context())
	summary, err := bootstrap.Run(r.Context(), b.db)
	b.metrics.ObserveOperation("initiateHikingClubs", err)
	if err != nil {
		rlog.WithError(err).Errorln("Error 4004: bootstrap failed")
		writeJSON(w, http.StatusOK, successEnvelope{Success: false})
		return
	}

	record := bootstrapRecord{Summary: summary, Version: Version}
	if err := b.Registry.Accessor(registryPrefix).Write(r.Context(), bootstrapKey, record); err != nil {
		rlog.WithError(err).Errorln("Error 4005: cannot record bootstrap")
	}
	b.publish(r.Context(), notify.ResourceAll, notify.OperationCreate, time.Now().UTC().Format(time.RFC3339), record)
	writeJSON(w, http.StatusOK, successEnvelope{Success: true})
}
