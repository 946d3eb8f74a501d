// clan-league-system/services/oracle_client.go
package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// OracleDecision is the war-decider response. The oracle is treated as
// authoritative whenever one side of a pairing has no local ledger entry.
// Err set means the oracle itself could not determine a result.
type OracleDecision struct {
	MyTag      string `json:"myTag"`
	MyName     string `json:"myName"`
	OppTag     string `json:"oppTag"`
	OppName    string `json:"oppName"`
	WinTag     string `json:"winTag"`
	WinName    string `json:"winName"`
	MatchType  string `json:"matchType"`
	ExplainEN  string `json:"explain_en"`
	RoundScore int64  `json:"roundScore"`
	Err        bool   `json:"err"`
}

// WarOracle adjudicates a pairing the service cannot resolve locally.
type WarOracle interface {
	Decide(tag string, isGlobal bool) (*OracleDecision, error)
}

// OracleClient posts to the external war-decider service.
type OracleClient struct {
	BaseURL string
	Client  *http.Client
}

func NewOracleClient(baseURL string) *OracleClient {
	return &OracleClient{
		BaseURL: baseURL,
		Client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *OracleClient) Decide(tag string, isGlobal bool) (*OracleDecision, error) {
	reqBody := map[string]interface{}{
		"myTag":    tag,
		"isGlobal": isGlobal,
	}
	jsonData, _ := json.Marshal(reqBody)

	req, err := http.NewRequest("POST", c.BaseURL+"/api/wardecider", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("isAdmin", "true")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		log.Printf("Oracle /wardecider returned %d: %s", resp.StatusCode, string(body))
		return nil, fmt.Errorf("oracle request failed: %d", resp.StatusCode)
	}

	var out OracleDecision
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
