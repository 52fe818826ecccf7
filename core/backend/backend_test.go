package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/hikingclubs/core/client"
	"github.com/relabs-tech/hikingclubs/core/csql"
	"github.com/relabs-tech/hikingclubs/core/notify"
)

type recordingNotifier struct {
	mutex  sync.Mutex
	events []notify.Event
}

func (n *recordingNotifier) Notify(_ context.Context, event notify.Event) error {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *recordingNotifier) Close() error { return nil }

func (n *recordingNotifier) Events() []notify.Event {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	return append([]notify.Event{}, n.events...)
}

func newTestBackend(t *testing.T) (*Backend, sqlmock.Sqlmock, *recordingNotifier) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec(regexp.QuoteMeta(`CREATE table IF NOT EXISTS public."_registry_"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	notifier := &recordingNotifier{}
	b, err := New(&Builder{
		DB:       csql.New(db, csql.Options{}),
		Router:   mux.NewRouter(),
		Notifier: notifier,
	})
	require.NoError(t, err)
	return b, mock, notifier
}

func q(s string) string {
	return regexp.QuoteMeta(s)
}

func countRows(n int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"count"}).AddRow(n)
}

func TestNewRequiresDBAndRouter(t *testing.T) {
	_, err := New(&Builder{Router: mux.NewRouter()})
	assert.Error(t, err)

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	_, err = New(&Builder{DB: csql.New(db, csql.Options{})})
	assert.Error(t, err)
}

func TestInsertHikerRoute(t *testing.T) {
	b, mock, notifier := newTestBackend(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q(`SELECT COUNT(*) FROM Join_Hikers1 WHERE HikerEmail = $1`)).WithArgs("h@x.com").WillReturnRows(countRows(0))
	mock.ExpectQuery(q(`SELECT COUNT(*) FROM HikingClubs WHERE ClubEmail = $1`)).WithArgs("c@x.com").WillReturnRows(countRows(1))
	mock.ExpectQuery(q(`SELECT COUNT(*) FROM Join_Hikers2 WHERE NumofTrailsCompleted = $1`)).WithArgs(12).WillReturnRows(countRows(1))
	mock.ExpectExec(q(`INSERT INTO Join_Hikers1`)).WithArgs("h@x.com", "Al", 12, "c@x.com").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q(`UPDATE HikingClubs SET NumofMembers = NumofMembers + $1`)).WithArgs(1, "c@x.com").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// the frontend posts counts as strings
	var env client.Envelope
	status, err := client.NewWithRouter(b.Router()).RawPost("/insert-hiker",
		[]byte(`{"hiker_email":"h@x.com","name":"Al","num_of_trails":"12","club_email":"c@x.com"}`), &env)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)
	assert.JSONEq(t, `true`, string(env.Data))
	require.NoError(t, mock.ExpectationsWereMet())

	events := notifier.Events()
	require.Len(t, events, 1)
	assert.Equal(t, notify.ResourceHiker, events[0].Resource)
	assert.Equal(t, notify.OperationCreate, events[0].Operation)
	assert.Equal(t, "h@x.com", events[0].Key)
}

func TestInsertHikerRouteClubNotFound(t *testing.T) {
	b, mock, notifier := newTestBackend(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q(`SELECT COUNT(*) FROM Join_Hikers1 WHERE HikerEmail = $1`)).WithArgs("h@x.com").WillReturnRows(countRows(0))
	mock.ExpectQuery(q(`SELECT COUNT(*) FROM HikingClubs WHERE ClubEmail = $1`)).WithArgs("nope@x.com").WillReturnRows(countRows(0))
	mock.ExpectRollback()

	err := client.NewWithRouter(b.Router()).InsertHiker(client.Hiker{
		HikerEmail:  "h@x.com",
		Name:        "Al",
		NumOfTrails: 3,
		ClubEmail:   "nope@x.com",
	})
	var failure *client.Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, http.StatusNotFound, failure.Status)
	assert.Equal(t, "Club does not exist: nope@x.com", failure.Message)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Empty(t, notifier.Events())
}

func TestInsertHikerRouteMissingField(t *testing.T) {
	b, mock, _ := newTestBackend(t)

	var env client.Envelope
	status, err := client.NewWithRouter(b.Router()).RawPost("/insert-hiker",
		map[string]interface{}{"hiker_email": "h@x.com", "name": "Al", "club_email": "c@x.com"}, &env)
	assert.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, env.Success)
	assert.NotEmpty(t, env.Message)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteHikerRouteNotFound(t *testing.T) {
	b, mock, _ := newTestBackend(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q(`DELETE FROM Join_Hikers1 WHERE HikerEmail = $1 RETURNING ClubEmail`)).WithArgs("ghost@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"clubemail"}))
	mock.ExpectCommit()

	err := client.NewWithRouter(b.Router()).DeleteHiker("ghost@x.com")
	var failure *client.Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, http.StatusNotFound, failure.Status)
	assert.Contains(t, failure.Message, "Hiker does not exist")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHikersWithConditionsRoute(t *testing.T) {
	b, mock, _ := newTestBackend(t)

	mock.ExpectQuery(q(`SELECT HikerEmail, Name, NumofTrailsCompleted, ClubEmail FROM Join_Hikers1 WHERE NumofTrailsCompleted >= $1 ORDER BY HikerEmail`)).
		WithArgs(int64(20)).
		WillReturnRows(sqlmock.NewRows([]string{"hikeremail", "name", "numoftrailscompleted", "clubemail"}).
			AddRow("anna@hikers.ca", "Anna", 42, "alpine@clubs.ca"))

	hikers, err := client.NewWithRouter(b.Router()).HikersWithConditions("NumofTrailsCompleted >= 20")
	require.NoError(t, err)
	require.Len(t, hikers, 1)
	assert.Equal(t, "anna@hikers.ca", hikers[0].HikerEmail)
	assert.Equal(t, int64(42), hikers[0].NumOfTrailsCompleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHikersWithConditionsInvalidAttribute(t *testing.T) {
	b, mock, _ := newTestBackend(t)

	_, err := client.NewWithRouter(b.Router()).HikersWithConditions("Password = 'x'")
	var failure *client.Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, http.StatusBadRequest, failure.Status)
	assert.Equal(t, "Invalid attribute: Password", failure.Message)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectAttributesRoute(t *testing.T) {
	b, mock, _ := newTestBackend(t)

	mock.ExpectQuery(q(`SELECT Name, ClubEmail FROM Join_Hikers1 ORDER BY HikerEmail`)).
		WillReturnRows(sqlmock.NewRows([]string{"name", "clubemail"}).
			AddRow("Anna", "alpine@clubs.ca").
			AddRow("Ben", nil))

	records, err := client.NewWithRouter(b.Router()).ProjectAttributes("Name", "Unknown", "ClubEmail")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Anna", records[0]["Name"])
	assert.Equal(t, "alpine@clubs.ca", records[0]["ClubEmail"])
	assert.Nil(t, records[1]["ClubEmail"])
	require.NoError(t, mock.ExpectationsWereMet())

	_, err = client.NewWithRouter(b.Router()).ProjectAttributes("Unknown")
	var failure *client.Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, http.StatusBadRequest, failure.Status)
}

func TestCountHikersRoute(t *testing.T) {
	b, mock, _ := newTestBackend(t)

	mock.ExpectQuery(q(`SELECT COUNT(*) FROM Join_Hikers1`)).WillReturnRows(countRows(7))

	count, err := client.NewWithRouter(b.Router()).CountHikers()
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRouteEmpty(t *testing.T) {
	b, mock, _ := newTestBackend(t)

	mock.ExpectQuery(q(`SELECT c.ClubEmail, MAX(h.NumofTrailsCompleted)`)).
		WithArgs(50).
		WillReturnRows(sqlmock.NewRows([]string{"clubemail", "maxtrails"}))

	var raw []byte
	status, err := client.NewWithRouter(b.Router()).RawGet("/max-trails-by-club", &raw)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"success":true,"data":[]}`, string(raw))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckDBConnection(t *testing.T) {
	b, _, _ := newTestBackend(t)

	var raw []byte
	status, err := client.NewWithRouter(b.Router()).RawGet("/check-db-connection", &raw)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "connected", string(raw))
}

func TestVersion(t *testing.T) {
	b, _, _ := newTestBackend(t)

	var version map[string]string
	_, err := client.NewWithRouter(b.Router()).RawGet("/version", &version)
	require.NoError(t, err)
	assert.Equal(t, Version, version["version"])
}

func TestCORSPreflight(t *testing.T) {
	b, _, _ := newTestBackend(t)

	r := httptest.NewRequest(http.MethodOptions, "/insert-hiker", nil)
	rec := httptest.NewRecorder()
	b.Router().ServeHTTP(rec, r)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
}

func TestMetricsEndpoint(t *testing.T) {
	b, mock, _ := newTestBackend(t)
	mock.ExpectQuery(q(`SELECT COUNT(*) FROM Join_Hikers1`)).WillReturnRows(countRows(1))

	c := client.NewWithRouter(b.Router())
	_, err := c.CountHikers()
	require.NoError(t, err)

	var raw []byte
	_, err = c.RawGet("/metrics", &raw)
	require.NoError(t, err)
	body := string(raw)
	assert.True(t, strings.Contains(body, `hikingclubs_operations_total{operation="countHikers",outcome="success"} 1`), body)
	assert.Contains(t, body, `route="/count-hikers"`)
}

func TestInsertClubRouteReportsSuccessOnZeroRows(t *testing.T) {
	b, mock, notifier := newTestBackend(t)

	mock.ExpectExec(q(`INSERT INTO HikingClubs (ClubEmail, Name, NumofMembers) VALUES ($1, $2, $3)`)).
		WithArgs("c@x.com", "Alpine", 0).WillReturnResult(sqlmock.NewResult(0, 0))

	var env client.Envelope
	status, err := client.NewWithRouter(b.Router()).RawPost("/insert-hiking-club",
		[]byte(`{"club_email":"c@x.com","club_name":"Alpine","num_of_members":0}`), &env)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Len(t, notifier.Events(), 1)
}

func TestCountOutOfIntegerRangeIsBadRequest(t *testing.T) {
	b, mock, notifier := newTestBackend(t)
	c := client.NewWithRouter(b.Router())

	bodies := map[string]string{
		"/insert-hiker":       `{"hiker_email":"h@x.com","name":"Al","num_of_trails":3000000000,"club_email":"c@x.com"}`,
		"/update-hiker":       `{"hiker_email":"h@x.com","new_num_of_trails":"3000000000"}`,
		"/insert-hiking-club": `{"club_email":"c@x.com","club_name":"Alpine","num_of_members":2147483648}`,
		"/update-hiking-club": `{"club_email":"c@x.com","new_num_of_members":"2147483648"}`,
	}
	for path, body := range bodies {
		t.Run(path, func(t *testing.T) {
			var env client.Envelope
			status, err := c.RawPost(path, []byte(body), &env)
			assert.Error(t, err)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.False(t, env.Success)
		})
	}
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Empty(t, notifier.Events())
}
