// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/relabs-tech/hikingclubs/core/apperrors"
	"github.com/relabs-tech/hikingclubs/core/logger"
	"github.com/relabs-tech/hikingclubs/core/pointers"
	"github.com/relabs-tech/hikingclubs/core/schema"
)

// maximum accepted size of a request body
const maxBodySize = 1 << 20

// Every JSON response carries success. Successful responses carry data (or count),
// failed responses a message.
type successEnvelope struct {
	Success bool `json:"success"`
}

type dataEnvelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

type countEnvelope struct {
	Success bool  `json:"success"`
	Count   int64 `json:"count"`
}

type messageEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		logger.Default().WithError(err).Errorln("Error 4001: marshal response")
		http.Error(w, "Error 4001", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(jsonData)
}

func writeData(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, dataEnvelope{Success: true, Data: data})
}

// writeError converts err into a failure envelope. Business-rule violations are logged as
// warning and their message is returned, everything else is logged as error and returned
// as internal server error.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	rlog := logger.FromContext(r.Context())
	status := apperrors.HTTPStatus(err)
	if apperrors.IsBusiness(err) {
		rlog.WithField("code", apperrors.CodeOf(err)).Warnln(err)
	} else {
		rlog.WithError(err).Errorln("Error 4002: operation failed")
	}
	writeJSON(w, status, messageEnvelope{Success: false, Message: apperrors.Message(err)})
}

// decodeBody validates the request body against the schema of route and decodes it
// into v
func (b *Backend) decodeBody(r *http.Request, route string, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return apperrors.Validation(apperrors.InvalidInput, "cannot read request body")
	}
	if len(body) > maxBodySize {
		return apperrors.Validation(apperrors.InvalidInput, "request body too large")
	}
	if err := b.validator.ValidateBytes(body, schema.RequestSchemaID(route)); err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return apperrors.Validation(apperrors.InvalidInput, "invalid request body: %v", err)
	}
	return nil
}

// FlexInt is an optional 32 bit integer in a request body. It accepts JSON numbers and
// numeric strings, since the browser frontend posts form values as strings. Null
// and the empty string leave it unset.
type FlexInt struct {
	Value int
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*f = FlexInt{}
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		s = strings.TrimSpace(str)
		if s == "" {
			*f = FlexInt{}
			return nil
		}
	}
	// counts are postgres INTEGER columns
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return apperrors.Validation(apperrors.InvalidInput, "%s is not an integer in range", s)
	}
	*f = FlexInt{Value: int(n), Valid: true}
	return nil
}

// Ptr returns a pointer to the value or nil if unset
func (f FlexInt) Ptr() *int {
	if !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}

// optional returns nil for absent or blank strings
func optional(s *string) *string {
	if strings.TrimSpace(pointers.SafeString(s)) == "" {
		return nil
	}
	return s
}
