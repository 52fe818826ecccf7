// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package client

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/relabs-tech/hikingclubs/core/query"
	"github.com/relabs-tech/hikingclubs/core/reporting"
)

// Envelope is the body of every JSON response of the backend
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	Count   *int64          `json:"count,omitempty"`
}

// Failure is a response with success false
type Failure struct {
	Status  int
	Message string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", f.Status, f.Message)
}

// Hiker is the body of a hiker insert
type Hiker struct {
	HikerEmail  string `json:"hiker_email"`
	Name        string `json:"name"`
	NumOfTrails int    `json:"num_of_trails"`
	ClubEmail   string `json:"club_email"`
}

// HikerUpdate is the body of a hiker update. Nil fields keep their value.
type HikerUpdate struct {
	HikerEmail     string  `json:"hiker_email"`
	NewName        *string `json:"new_name,omitempty"`
	NewNumOfTrails *int    `json:"new_num_of_trails,omitempty"`
	NewClubEmail   *string `json:"new_club_email,omitempty"`
}

// Club is the body of a club insert
type Club struct {
	ClubEmail    string `json:"club_email"`
	ClubName     string `json:"club_name"`
	NumOfMembers int    `json:"num_of_members"`
}

// ClubUpdate is the body of a club update. Nil fields keep their value.
type ClubUpdate struct {
	ClubEmail       string  `json:"club_email"`
	NewName         *string `json:"new_name,omitempty"`
	NewNumOfMembers *int    `json:"new_num_of_members,omitempty"`
}

// envelope checks the envelope and decodes its data into result
func envelope(status int, env Envelope, err error, result interface{}) error {
	if !env.Success {
		if env.Message == "" && err != nil {
			return err
		}
		return &Failure{Status: status, Message: env.Message}
	}
	if err != nil {
		return err
	}
	if result != nil && len(env.Data) > 0 {
		return json.Unmarshal(env.Data, result)
	}
	return nil
}

// Post posts body to path and decodes the data of the envelope into result. A
// response with success false returns a *Failure.
func (c Client) Post(path string, body interface{}, result interface{}) error {
	var env Envelope
	status, err := c.RawPost(path, body, &env)
	return envelope(status, env, err, result)
}

// Get gets path and decodes the data of the envelope into result. A response with
// success false returns a *Failure.
func (c Client) Get(path string, result interface{}) error {
	var env Envelope
	status, err := c.RawGet(path, &env)
	return envelope(status, env, err, result)
}

// InsertHiker inserts a hiker
func (c Client) InsertHiker(h Hiker) error {
	return c.Post("/insert-hiker", h, nil)
}

// UpdateHiker updates a hiker
func (c Client) UpdateHiker(up HikerUpdate) error {
	return c.Post("/update-hiker", up, nil)
}

// DeleteHiker deletes a hiker
func (c Client) DeleteHiker(hikerEmail string) error {
	return c.Post("/delete-hiker", map[string]string{"hiker_email": hikerEmail}, nil)
}

// InsertClub inserts a hiking club
func (c Client) InsertClub(club Club) error {
	return c.Post("/insert-hiking-club", club, nil)
}

// UpdateClub updates a hiking club
func (c Client) UpdateClub(up ClubUpdate) error {
	return c.Post("/update-hiking-club", up, nil)
}

// DeleteClub deletes a hiking club
func (c Client) DeleteClub(clubEmail string) error {
	return c.Post("/delete-hiking-club", map[string]string{"club_email": clubEmail}, nil)
}

// HikersWithConditions returns the hikers matching conditions
func (c Client) HikersWithConditions(conditions string) ([]query.Hiker, error) {
	var hikers []query.Hiker
	err := c.Post("/hikers-with-conditions", map[string]string{"conditions": conditions}, &hikers)
	return hikers, err
}

// ProjectAttributes returns the requested attributes of all hikers
func (c Client) ProjectAttributes(attributes ...string) ([]map[string]interface{}, error) {
	var records []map[string]interface{}
	err := c.Post("/project-attributes", map[string][]string{"attributes": attributes}, &records)
	return records, err
}

// HikersByTrail returns the hikers who hiked trailName
func (c Client) HikersByTrail(trailName string) ([]reporting.TrailHiker, error) {
	var hikers []reporting.TrailHiker
	err := c.Post("/hikers-by-trail", map[string]string{"trailName": trailName}, &hikers)
	return hikers, err
}

// JoinedHikers lists all hikers
func (c Client) JoinedHikers() ([]reporting.JoinedHiker, error) {
	var hikers []reporting.JoinedHiker
	err := c.Get("/join-hikers", &hikers)
	return hikers, err
}

// Clubs lists all hiking clubs
func (c Client) Clubs() ([]reporting.Club, error) {
	var clubs []reporting.Club
	err := c.Get("/hiking-clubs", &clubs)
	return clubs, err
}

// CountHikers returns the number of hikers
func (c Client) CountHikers() (int64, error) {
	var env Envelope
	status, err := c.RawGet("/count-hikers", &env)
	if err := envelope(status, env, err, nil); err != nil {
		return 0, err
	}
	if env.Count == nil {
		return 0, fmt.Errorf("count missing in response")
	}
	return *env.Count, nil
}

// Initiate drops, re-creates and seeds all tables
func (c Client) Initiate() error {
	var env Envelope
	status, err := c.RawPost("/initiate-hiking-clubs", nil, &env)
	if err != nil {
		return err
	}
	if !env.Success {
		return &Failure{Status: status, Message: "initiate failed"}
	}
	return nil
}
