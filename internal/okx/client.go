// Package okx is a minimal OKX REST client covering the account-balance
// endpoint this agent needs.
package okx

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const defaultBaseURL = "https://www.okx.com"

// Client talks to the OKX v5 REST API.
type Client struct {
	apiKey     string
	secretKey  string
	passphrase string
	baseURL    string
	simulated  bool
	httpClient *http.Client
}

// NewClient creates an OKX client. When simulated is set the demo-trading
// header is attached to every request.
func NewClient(apiKey, secretKey, passphrase, baseURL string, simulated bool) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:     apiKey,
		secretKey:  secretKey,
		passphrase: passphrase,
		baseURL:    baseURL,
		simulated:  simulated,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// AssetDetail is one per-currency balance line.
type AssetDetail struct {
	Ccy      string  `json:"ccy"`
	AvailBal float64 `json:"availBal,string"`
}

// Balance is the account equity snapshot.
type Balance struct {
	TotalEq float64       `json:"totalEq,string"`
	Details []AssetDetail `json:"details"`
}

type balanceResponse struct {
	Code string    `json:"code"`
	Msg  string    `json:"msg"`
	Data []Balance `json:"data"`
}

// AccountBalance fetches total equity and per-currency available balances.
// Pass an empty ccy for all currencies.
func (c *Client) AccountBalance(ctx context.Context, ccy string) (*Balance, error) {
	path := "/api/v5/account/balance"
	if ccy != "" {
		path += "?" + url.Values{"ccy": []string{ccy}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	c.authenticate(req, http.MethodGet, path, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching account balance: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error: %s", string(body))
	}

	var decoded balanceResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("error parsing account balance: %w", err)
	}
	if decoded.Code != "0" {
		return nil, fmt.Errorf("API error %s: %s", decoded.Code, decoded.Msg)
	}
	if len(decoded.Data) == 0 {
		return nil, fmt.Errorf("empty account balance response")
	}

	return &decoded.Data[0], nil
}

// authenticate attaches the OK-ACCESS-* headers. OKX signs
// timestamp+method+path+body with HMAC-SHA256 and base64 encodes the digest.
func (c *Client) authenticate(req *http.Request, method, path, body string) {
	ts := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(ts + method + path + body))
	sign := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	req.Header.Set("OK-ACCESS-KEY", c.apiKey)
	req.Header.Set("OK-ACCESS-SIGN", sign)
	req.Header.Set("OK-ACCESS-TIMESTAMP", ts)
	req.Header.Set("OK-ACCESS-PASSPHRASE", c.passphrase)
	req.Header.Set("Content-Type", "application/json")
	if c.simulated {
		req.Header.Set("x-simulated-trading", "1")
	}
}

// AvailableAssets flattens the balance details into a currency→amount map,
// keeping only positive balances.
func (b *Balance) AvailableAssets() map[string]float64 {
	assets := make(map[string]float64, len(b.Details))
	for _, d := range b.Details {
		if d.AvailBal > 0 {
			assets[d.Ccy] = d.AvailBal
		}
	}
	return assets
}
