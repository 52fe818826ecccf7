// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/relabs-tech/hikingclubs/core/apperrors"
	"github.com/relabs-tech/hikingclubs/core/logger"
	"github.com/relabs-tech/hikingclubs/core/membership"
	"github.com/relabs-tech/hikingclubs/core/notify"
	"github.com/relabs-tech/hikingclubs/core/reporting"
)

type insertClubRequest struct {
	ClubEmail    string  `json:"club_email"`
	ClubName     string  `json:"club_name"`
	NumOfMembers FlexInt `json:"num_of_members"`
}

type updateClubRequest struct {
	ClubEmail       string  `json:"club_email"`
	NewName         *string `json:"new_name"`
	NewNumOfMembers FlexInt `json:"new_num_of_members"`
}

type deleteClubRequest struct {
	ClubEmail string `json:"club_email"`
}

func (b *Backend) handleClubs(router *mux.Router) {
	logger.Default().Debugln("hiking clubs")
	logger.Default().Debugln("  handle route: /insert-hiking-club POST")
	router.HandleFunc("/insert-hiking-club", func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		b.insertClub(w, r)
	}).Methods(http.MethodOptions, http.MethodPost)

	logger.Default().Debugln("  handle route: /update-hiking-club POST")
	router.HandleFunc("/update-hiking-club", func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		b.updateClub(w, r)
	}).Methods(http.MethodOptions, http.MethodPost)

	logger.Default().Debugln("  handle route: /delete-hiking-club POST")
	router.HandleFunc("/delete-hiking-club", func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		b.deleteClub(w, r)
	}).Methods(http.MethodOptions, http.MethodPost)
}

func (b *Backend) insertClub(w http.ResponseWriter, r *http.Request) {
	var req insertClubRequest
	err := b.decodeBody(r, "insert-hiking-club", &req)
	if err == nil && !req.NumOfMembers.Valid {
		err = apperrors.Validation(apperrors.MissingField, "num_of_members is required")
	}
	if err == nil {
		_, err = b.maintainer.InsertClub(r.Context(), membership.ClubInput{
			ClubEmail:    req.ClubEmail,
			Name:         req.ClubName,
			NumOfMembers: req.NumOfMembers.Value,
		})
	}
	if err == nil {
		b.publish(r.Context(), notify.ResourceClub, notify.OperationCreate, req.ClubEmail, reporting.Club{
			ClubEmail:    req.ClubEmail,
			Name:         req.ClubName,
			NumOfMembers: int64(req.NumOfMembers.Value),
		})
	}
	b.finish(w, r, "insertClub", true, err)
}

func (b *Backend) updateClub(w http.ResponseWriter, r *http.Request) {
	var req updateClubRequest
	err := b.decodeBody(r, "update-hiking-club", &req)
	if err == nil {
		var updated bool
		updated, err = b.maintainer.UpdateClub(r.Context(), membership.ClubUpdate{
			ClubEmail:       req.ClubEmail,
			NewName:         optional(req.NewName),
			NewNumOfMembers: req.NewNumOfMembers.Ptr(),
		})
		if err == nil && !updated {
			err = apperrors.NotFoundf(apperrors.ClubNotFound, "Club does not exist: %s", req.ClubEmail)
		}
	}
	if err == nil {
		b.publish(r.Context(), notify.ResourceClub, notify.OperationUpdate, req.ClubEmail, nil)
	}
	b.finish(w, r, "updateClub", true, err)
}

func (b *Backend) deleteClub(w http.ResponseWriter, r *http.Request) {
	var req deleteClubRequest
	err := b.decodeBody(r, "delete-hiking-club", &req)
	if err == nil {
		var deleted bool
		deleted, err = b.maintainer.DeleteClub(r.Context(), req.ClubEmail)
		if err == nil && !deleted {
			err = apperrors.NotFoundf(apperrors.ClubNotFound, "Club does not exist: %s", req.ClubEmail)
		}
	}
	if err == nil {
		b.publish(r.Context(), notify.ResourceClub, notify.OperationDelete, req.ClubEmail, nil)
	}
	b.finish(w, r, "deleteClub", true, err)
}
