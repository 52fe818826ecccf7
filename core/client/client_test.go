package client

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRouter() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/hiking-clubs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Test", r.Header.Get("X-Test"))
		w.Write([]byte(`{"success":true,"data":[{"clubEmail":"a@b.c","name":"Peaks","numOfMembers":2}]}`))
	}).Methods(http.MethodGet)
	router.HandleFunc("/insert-hiker", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"success":false,"message":"Club does not exist: x@y.z"}`))
	}).Methods(http.MethodPost)
	router.HandleFunc("/count-hikers", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"count":7}`))
	}).Methods(http.MethodGet)
	router.HandleFunc("/hikers-with-conditions", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"data":[]}`))
	}).Methods(http.MethodPost)
	return router
}

func TestClientGet(t *testing.T) {
	c := NewWithRouter(testRouter())

	clubs, err := c.Clubs()
	require.NoError(t, err)
	require.Len(t, clubs, 1)
	assert.Equal(t, "a@b.c", clubs[0].ClubEmail)
	assert.Equal(t, int64(2), clubs[0].NumOfMembers)

	count, err := c.CountHikers()
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)
}

func TestClientFailure(t *testing.T) {
	c := NewWithRouter(testRouter())

	err := c.InsertHiker(Hiker{HikerEmail: "h@e.x", Name: "H", NumOfTrails: 1, ClubEmail: "x@y.z"})
	require.Error(t, err)
	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, http.StatusNotFound, failure.Status)
	assert.Equal(t, "Club does not exist: x@y.z", failure.Message)
}

func TestClientRaw(t *testing.T) {
	c := NewWithRouter(testRouter())

	var raw []byte
	status, err := c.RawGet("/hiking-clubs", &raw)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(raw), `"success":true`)

	status, err = c.RawGet("/does-not-exist", nil)
	assert.Error(t, err)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestClientWithHeader(t *testing.T) {
	base := NewWithRouter(testRouter())
	c := base.WithHeader("X-Test", "yes")

	_, header, err := c.RawGetWithHeader("/hiking-clubs", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "yes", header.Get("X-Test"))

	// the base client is not modified
	_, header, err = base.RawGetWithHeader("/hiking-clubs", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, header.Get("X-Test"))
}

func TestClientWithURL(t *testing.T) {
	server := httptest.NewServer(testRouter())
	defer server.Close()

	c := NewWithURL(server.URL + "/")
	hikers, err := c.HikersWithConditions("NumofTrailsCompleted > 100")
	require.NoError(t, err)
	assert.Empty(t, hikers)

	count, err := c.CountHikers()
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)
}
