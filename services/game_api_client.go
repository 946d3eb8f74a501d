// clan-league-system/services/game_api_client.go
package services

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"

	"clan-league-system/utils"
)

// WarOpponent identifies the clan the queried clan is currently at war with.
type WarOpponent struct {
	Tag  string `json:"tag"`
	Name string `json:"name"`
}

// ClanInfo is the subset of the game API clan payload the service mirrors.
type ClanInfo struct {
	Tag       string `json:"tag"`
	Name      string `json:"name"`
	ClanLevel int64  `json:"clanLevel"`
	Members   int64  `json:"members"`
}

// OpponentSource resolves the active war opponent for a clan tag.
// The registration flow uses it when the caller omits the rival tag.
type OpponentSource interface {
	CurrentOpponent(tag string) (*WarOpponent, error)
}

// ClanInfoSource looks up static clan metadata from the game API.
type ClanInfoSource interface {
	ClanInfo(tag string) (*ClanInfo, error)
}

// GameAPIClient talks to the third-party game API for war and clan metadata.
type GameAPIClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewGameAPIClient(baseURL, token string) *GameAPIClient {
	return &GameAPIClient{
		BaseURL: baseURL,
		Token:   token,
		Client:  utils.HTTPClient,
	}
}

type currentWarResponse struct {
	State    string       `json:"state"`
	Reason   string       `json:"reason"`
	Opponent *WarOpponent `json:"opponent"`
}

// CurrentOpponent calls /clans/{tag}/currentwar; a nil opponent means the
// clan has no active war.
func (c *GameAPIClient) CurrentOpponent(tag string) (*WarOpponent, error) {
	body, err := c.get(fmt.Sprintf("%s/clans/%s/currentwar", c.BaseURL, encodeTag(tag)))
	if err != nil {
		return nil, err
	}

	var war currentWarResponse
	if err := json.Unmarshal(body, &war); err != nil {
		return nil, err
	}
	if war.Opponent == nil || war.Opponent.Tag == "" {
		return nil, nil
	}
	return war.Opponent, nil
}

// ClanInfo calls /clans/{tag}.
func (c *GameAPIClient) ClanInfo(tag string) (*ClanInfo, error) {
	body, err := c.get(fmt.Sprintf("%s/clans/%s", c.BaseURL, encodeTag(tag)))
	if err != nil {
		return nil, err
	}

	var info ClanInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *GameAPIClient) get(url string) ([]byte, error) {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		log.Printf("Game API %s returned %d: %s", url, resp.StatusCode, string(body))
		return nil, fmt.Errorf("game api request failed: %d", resp.StatusCode)
	}
	return body, nil
}

// encodeTag strips the hash and re-escapes it for the path segment.
func encodeTag(tag string) string {
	return url.PathEscape("#" + strings.ToUpper(strings.TrimPrefix(tag, "#")))
}
