//go:build integration

package test

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/suite"

	"github.com/relabs-tech/hikingclubs/core/client"
	"github.com/relabs-tech/hikingclubs/core/notify"
	"github.com/relabs-tech/hikingclubs/core/pointers"
	"github.com/relabs-tech/hikingclubs/core/reporting"
)

type HikingClubsTestSuite struct {
	IntegrationTestSuite
}

func TestHikingClubsTestSuite(t *testing.T) {
	suite.Run(t, &HikingClubsTestSuite{})
}

func (s *HikingClubsTestSuite) hiker(email string) reporting.JoinedHiker {
	hikers, err := s.client.JoinedHikers()
	s.Require().NoError(err)
	for _, h := range hikers {
		if h.HikerEmail == email {
			return h
		}
	}
	s.FailNow("hiker not found", email)
	return reporting.JoinedHiker{}
}

func (s *HikingClubsTestSuite) members(clubEmail string) int64 {
	clubs, err := s.client.Clubs()
	s.Require().NoError(err)
	for _, c := range clubs {
		if c.ClubEmail == clubEmail {
			return c.NumOfMembers
		}
	}
	s.FailNow("club not found", clubEmail)
	return 0
}

// requireCountersMatch checks that the sum of the club counters equals the number of hikers
func (s *HikingClubsTestSuite) requireCountersMatch() {
	clubs, err := s.client.Clubs()
	s.Require().NoError(err)
	var sum int64
	for _, c := range clubs {
		sum += c.NumOfMembers
	}
	count, err := s.client.CountHikers()
	s.Require().NoError(err)
	s.Require().Equal(count, sum)
}

func (s *HikingClubsTestSuite) requireFailure(err error, status int) *client.Failure {
	var failure *client.Failure
	s.Require().ErrorAs(err, &failure)
	s.Require().Equal(status, failure.Status, failure.Message)
	return failure
}

func (s *HikingClubsTestSuite) TestSeed() {
	count, err := s.client.CountHikers()
	s.Require().NoError(err)
	s.Equal(int64(7), count)
	s.requireCountersMatch()

	var connected []byte
	_, err = s.client.RawGet("/check-db-connection", &connected)
	s.Require().NoError(err)
	s.Equal("connected", string(connected))
}

func (s *HikingClubsTestSuite) TestTablesLiveInTestSchema() {
	var n int
	err := s.dbConn.QueryRowContext(context.Background(),
		`SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = $1 AND table_name = 'join_hikers1'`,
		testSchema).Scan(&n)
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *HikingClubsTestSuite) TestInsertHikerCreatesClassification() {
	err := s.client.InsertHiker(client.Hiker{HikerEmail: "ivy@hikers.ca", Name: "Ivy Park", NumOfTrails: 77, ClubEmail: "island@clubs.ca"})
	s.Require().NoError(err)

	ivy := s.hiker("ivy@hikers.ca")
	s.Equal("senior", ivy.ExperienceLevel)
	s.Equal(int64(77), ivy.NumOfTrailsCompleted)
	s.Equal(int64(1), s.members("island@clubs.ca"))
	s.requireCountersMatch()

	err = s.client.InsertHiker(client.Hiker{HikerEmail: "ivy@hikers.ca", Name: "Ivy Park", NumOfTrails: 1, ClubEmail: "island@clubs.ca"})
	s.requireFailure(err, http.StatusConflict)
	s.Equal(int64(1), s.members("island@clubs.ca"))
}

func (s *HikingClubsTestSuite) TestInsertHikerUnknownClub() {
	err := s.client.InsertHiker(client.Hiker{HikerEmail: "zed@hikers.ca", Name: "Zed", NumOfTrails: 91, ClubEmail: "nowhere@clubs.ca"})
	failure := s.requireFailure(err, http.StatusNotFound)
	s.Contains(failure.Message, "nowhere@clubs.ca")

	count, err := s.client.CountHikers()
	s.Require().NoError(err)
	s.Equal(int64(7), count)

	// the classification insert is rolled back with the hiker
	hikers, err := s.client.HikersWithConditions("NumofTrailsCompleted = 91")
	s.Require().NoError(err)
	s.Empty(hikers)
}

func (s *HikingClubsTestSuite) TestConcurrentClassificationInserts() {
	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.client.InsertHiker(client.Hiker{
				HikerEmail:  fmt.Sprintf("crowd%d@hikers.ca", i),
				Name:        fmt.Sprintf("Crowd %d", i),
				NumOfTrails: 44,
				ClubEmail:   "coast@clubs.ca",
			})
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		s.NoError(err, "insert %d", i)
	}

	hikers, err := s.client.HikersWithConditions("NumofTrailsCompleted = 44")
	s.Require().NoError(err)
	s.Len(hikers, n)
	s.Equal(int64(1+n), s.members("coast@clubs.ca"))
	s.requireCountersMatch()
}

func (s *HikingClubsTestSuite) TestUpdateHikerMovesClub() {
	err := s.client.UpdateHiker(client.HikerUpdate{HikerEmail: "chen@hikers.ca", NewClubEmail: pointers.To("island@clubs.ca")})
	s.Require().NoError(err)

	chen := s.hiker("chen@hikers.ca")
	s.Equal("island@clubs.ca", chen.ClubEmail)
	s.Equal("Chen Wei", chen.Name)
	s.Equal(int64(3), chen.NumOfTrailsCompleted)
	s.Equal(int64(2), s.members("alpine@clubs.ca"))
	s.Equal(int64(1), s.members("island@clubs.ca"))
	s.requireCountersMatch()

	err = s.client.UpdateHiker(client.HikerUpdate{HikerEmail: "chen@hikers.ca", NewClubEmail: pointers.To("nowhere@clubs.ca")})
	s.requireFailure(err, http.StatusNotFound)
	s.Equal("island@clubs.ca", s.hiker("chen@hikers.ca").ClubEmail)
}

func (s *HikingClubsTestSuite) TestUpdateHikerBlankFieldsKeepValues() {
	_, err := s.client.RawPost("/update-hiker",
		[]byte(`{"hiker_email":"ben@hikers.ca","new_name":"","new_num_of_trails":"31","new_club_email":""}`), nil)
	s.Require().NoError(err)

	ben := s.hiker("ben@hikers.ca")
	s.Equal("Ben Okafor", ben.Name)
	s.Equal(int64(31), ben.NumOfTrailsCompleted)
	s.Equal("senior", ben.ExperienceLevel)
	s.Equal("alpine@clubs.ca", ben.ClubEmail)
}

func (s *HikingClubsTestSuite) TestDeleteClubWithMembers() {
	err := s.client.DeleteClub("alpine@clubs.ca")
	s.requireFailure(err, http.StatusConflict)

	s.Require().NoError(s.client.DeleteClub("island@clubs.ca"))
	err = s.client.DeleteClub("island@clubs.ca")
	s.requireFailure(err, http.StatusNotFound)
}

func (s *HikingClubsTestSuite) TestConditionsAreParameterized() {
	hikers, err := s.client.HikersWithConditions("NumofTrailsCompleted >= 25 AND ClubEmail = 'northshore@clubs.ca'")
	s.Require().NoError(err)
	s.Require().Len(hikers, 1)
	s.Equal("dana@hikers.ca", hikers[0].HikerEmail)

	hikers, err = s.client.HikersWithConditions("Name = 'x OR 1=1'")
	s.Require().NoError(err)
	s.Empty(hikers)

	_, err = s.client.HikersWithConditions("Name = 'x'; DROP TABLE Join_Hikers1")
	if err != nil {
		s.requireFailure(err, http.StatusBadRequest)
	}
	count, err := s.client.CountHikers()
	s.Require().NoError(err)
	s.Equal(int64(7), count)
}

func (s *HikingClubsTestSuite) TestProjection() {
	records, err := s.client.ProjectAttributes("Name", "Password", "Name")
	s.Require().NoError(err)
	s.Require().Len(records, 7)
	s.Equal("Anna Berg", records[0]["Name"])
	s.Len(records[0], 1)
}

func (s *HikingClubsTestSuite) TestReports() {
	var mountaineers []reporting.Mountaineer
	s.Require().NoError(s.client.Get("/hikers-all-mountains", &mountaineers))
	s.Require().Len(mountaineers, 1)
	s.Equal("anna@hikers.ca", mountaineers[0].HikerEmail)

	var averages []reporting.ExperienceAverage
	s.Require().NoError(s.client.Get("/avg-trails-by-experience", &averages))
	s.Len(averages, 3)

	trailHikers, err := s.client.HikersByTrail("Grouse Grind")
	s.Require().NoError(err)
	s.Len(trailHikers, 3)

	var statistics map[string]interface{}
	_, err = s.client.RawGet("/statistics", &statistics)
	s.Require().NoError(err)
	s.NotEmpty(statistics["bootstrapped"])
}

func (s *HikingClubsTestSuite) TestChangeEvents() {
	if !s.kafkaEnabled() {
		s.T().Skip("set " + KafkaTestsEnv + " to run the kafka tests")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     []string{s.kafkaAddr},
		Topic:       notify.DefaultTopic,
		StartOffset: kafka.FirstOffset,
		MaxWait:     100 * time.Millisecond,
	})
	defer reader.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.Require().NoError(s.client.InsertClub(client.Club{ClubEmail: "events@clubs.ca", ClubName: "Events", NumOfMembers: 0}))
	for {
		msg, err := reader.ReadMessage(ctx)
		s.Require().NoError(err)
		var event notify.Event
		s.Require().NoError(json.Unmarshal(msg.Value, &event))
		if event.Key == "events@clubs.ca" {
			s.Equal(notify.ResourceClub, event.Resource)
			s.Equal(notify.OperationCreate, event.Operation)
			return
		}
	}
}
