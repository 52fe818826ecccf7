// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"context"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/hikingclubs/core/apperrors"
	"github.com/relabs-tech/hikingclubs/core/csql"
	"github.com/relabs-tech/hikingclubs/core/logger"
	"github.com/relabs-tech/hikingclubs/core/membership"
	"github.com/relabs-tech/hikingclubs/core/notify"
	"github.com/relabs-tech/hikingclubs/core/query"
	"github.com/relabs-tech/hikingclubs/core/reporting"
)

type insertHikerRequest struct {
	HikerEmail  string  `json:"hiker_email"`
	Name        string  `json:"name"`
	NumOfTrails FlexInt `json:"num_of_trails"`
	ClubEmail   string  `json:"club_email"`
}

type updateHikerRequest struct {
	HikerEmail     string  `json:"hiker_email"`
	NewName        *string `json:"new_name"`
	NewNumOfTrails FlexInt `json:"new_num_of_trails"`
	NewClubEmail   *string `json:"new_club_email"`
}

type deleteHikerRequest struct {
	HikerEmail string `json:"hiker_email"`
}

type conditionsRequest struct {
	Conditions string `json:"conditions"`
}

type projectionRequest struct {
	Attributes []string `json:"attributes"`
}

type trailRequest struct {
	TrailName string `json:"trailName"`
}

// finish counts the operation and writes either data or the error
func (b *Backend) finish(w http.ResponseWriter, r *http.Request, operation string, data interface{}, err error) {
	b.metrics.ObserveOperation(operation, err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, data)
}

// publish sends a change event. A failure is logged only, the change is already committed.
func (b *Backend) publish(ctx context.Context, resource string, operation notify.Operation, key string, payload interface{}) {
	event := notify.Event{Resource: resource, Operation: operation, Key: key}
	if payload != nil {
		event.Payload, _ = json.Marshal(payload)
	}
	if err := b.notifier.Notify(ctx, event); err != nil {
		logger.FromContext(ctx).WithError(err).Errorf("Error 4801: cannot publish %s event for %s %s", operation, resource, key)
	}
}

func (b *Backend) handleHikers(router *mux.Router) {
	logger.Default().Debugln("hikers")
	logger.Default().Debugln("  handle route: /insert-hiker POST")
	router.HandleFunc("/insert-hiker", func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		b.insertHiker(w, r)
	}).Methods(http.MethodOptions, http.MethodPost)

	logger.Default().Debugln("  handle route: /update-hiker POST")
	router.HandleFunc("/update-hiker", func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		b.updateHiker(w, r)
	}).Methods(http.MethodOptions, http.MethodPost)

	logger.Default().Debugln("  handle route: /delete-hiker POST")
	router.HandleFunc("/delete-hiker", func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		b.deleteHiker(w, r)
	}).Methods(http.MethodOptions, http.MethodPost)

	logger.Default().Debugln("  handle route: /hikers-with-conditions POST")
	router.HandleFunc("/hikers-with-conditions", func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		b.hikersWithConditions(w, r)
	}).Methods(http.MethodOptions, http.MethodPost)

	logger.Default().Debugln("  handle route: /project-attributes POST")
	router.HandleFunc("/project-attributes", func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		b.projectAttributes(w, r)
	}).Methods(http.MethodOptions, http.MethodPost)

	logger.Default().Debugln("  handle route: /hikers-by-trail POST")
	router.HandleFunc("/hikers-by-trail", func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		b.hikersByTrail(w, r)
	}).Methods(http.MethodOptions, http.MethodPost)
}

func (b *Backend) insertHiker(w http.ResponseWriter, r *http.Request) {
	var req insertHikerRequest
	err := b.decodeBody(r, "insert-hiker", &req)
	if err == nil && !req.NumOfTrails.Valid {
		err = apperrors.Validation(apperrors.MissingField, "num_of_trails is required")
	}
	if err == nil {
		err = b.maintainer.InsertHiker(r.Context(), membership.HikerInput{
			HikerEmail:           req.HikerEmail,
			Name:                 req.Name,
			NumOfTrailsCompleted: req.NumOfTrails.Value,
			ClubEmail:            req.ClubEmail,
		})
	}
	if err == nil {
		b.publish(r.Context(), notify.ResourceHiker, notify.OperationCreate, req.HikerEmail, query.Hiker{
			HikerEmail:           req.HikerEmail,
			Name:                 req.Name,
			NumOfTrailsCompleted: int64(req.NumOfTrails.Value),
			ClubEmail:            req.ClubEmail,
		})
	}
	b.finish(w, r, "insertHiker", true, err)
}

func (b *Backend) updateHiker(w http.ResponseWriter, r *http.Request) {
	var req updateHikerRequest
	err := b.decodeBody(r, "update-hiker", &req)
	if err == nil {
		err = b.maintainer.UpdateHiker(r.Context(), membership.HikerUpdate{
			HikerEmail:              req.HikerEmail,
			NewName:                 optional(req.NewName),
			NewNumOfTrailsCompleted: req.NewNumOfTrails.Ptr(),
			NewClubEmail:            optional(req.NewClubEmail),
		})
	}
	if err == nil {
		b.publish(r.Context(), notify.ResourceHiker, notify.OperationUpdate, req.HikerEmail, nil)
	}
	b.finish(w, r, "updateHiker", true, err)
}

func (b *Backend) deleteHiker(w http.ResponseWriter, r *http.Request) {
	var req deleteHikerRequest
	err := b.decodeBody(r, "delete-hiker", &req)
	if err == nil {
		var deleted bool
		deleted, err = b.maintainer.DeleteHiker(r.Context(), req.HikerEmail)
		if err == nil && !deleted {
			err = apperrors.NotFoundf(apperrors.NotFound, "Hiker does not exist: %s", req.HikerEmail)
		}
	}
	if err == nil {
		b.publish(r.Context(), notify.ResourceHiker, notify.OperationDelete, req.HikerEmail, nil)
	}
	b.finish(w, r, "deleteHiker", true, err)
}

func (b *Backend) hikersWithConditions(w http.ResponseWriter, r *http.Request) {
	var req conditionsRequest
	var hikers []query.Hiker
	err := b.decodeBody(r, "hikers-with-conditions", &req)
	if err == nil {
		var filter *query.Filter
		filter, err = query.ParseConditions(req.Conditions)
		if err == nil {
			err = b.db.WithConn(r.Context(), func(ctx context.Context, q csql.Querier) (err error) {
				hikers, err = query.FindHikers(ctx, q, filter)
				return
			})
		}
	}
	b.finish(w, r, "hikersWithConditions", hikers, err)
}

func (b *Backend) projectAttributes(w http.ResponseWriter, r *http.Request) {
	var req projectionRequest
	var records []map[string]interface{}
	err := b.decodeBody(r, "project-attributes", &req)
	if err == nil {
		var projection *query.Projection
		projection, err = query.Project(req.Attributes)
		if err == nil {
			err = b.db.WithConn(r.Context(), func(ctx context.Context, q csql.Querier) (err error) {
				records, err = projection.Fetch(ctx, q)
				return
			})
		}
	}
	b.finish(w, r, "projectAttributes", records, err)
}

func (b *Backend) hikersByTrail(w http.ResponseWriter, r *http.Request) {
	var req trailRequest
	var hikers []reporting.TrailHiker
	err := b.decodeBody(r, "hikers-by-trail", &req)
	if err == nil {
		err = b.db.WithConn(r.Context(), func(ctx context.Context, q csql.Querier) (err error) {
			hikers, err = reporting.HikersByTrail(ctx, q, req.TrailName)
			return
		})
	}
	b.finish(w, r, "hikersByTrail", hikers, err)
}
