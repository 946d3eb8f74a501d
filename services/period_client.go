// clan-league-system/services/period_client.go
package services

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"clan-league-system/utils"
)

// PeriodInfo is the upstream competition calendar: the label of the round
// currently in effect and the one scheduled after it. Labels are local
// datetimes in the same format round creation accepts.
type PeriodInfo struct {
	CurrentRound         string `json:"CurrentRound"`
	CurrentRoundSyncTime string `json:"CurrentRoundSyncTime"`
	FutureRound          string `json:"FutureRound"`
	FutureRoundSyncTime  string `json:"FutureRoundSyncTime"`
}

// PeriodSource feeds the round sync scheduler.
type PeriodSource interface {
	Fetch() (*PeriodInfo, error)
}

// PeriodClient polls the league calendar endpoint.
type PeriodClient struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func NewPeriodClient(baseURL, apiKey string) *PeriodClient {
	return &PeriodClient{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  utils.HTTPClient,
	}
}

func (c *PeriodClient) Fetch() (*PeriodInfo, error) {
	req, err := http.NewRequest("POST", c.BaseURL+"/api/gettime_global.php", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", c.APIKey)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		log.Printf("Period API returned %d: %s", resp.StatusCode, string(body))
		return nil, fmt.Errorf("period request failed: %d", resp.StatusCode)
	}

	var out PeriodInfo
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
