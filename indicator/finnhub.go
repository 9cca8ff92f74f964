package indicator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const DefaultFinnhubURL = "https://finnhub.io"

// finnhubLookback 请求窗口长度。
const finnhubLookback = 10000 * time.Second

// FinnhubClient 调用 /api/v1/indicator?indicator=BBANDS。
type FinnhubClient struct {
	BaseURL    string
	Token      string
	Symbol     string // 例如 BINANCE:ETHUSDT
	Resolution string // 例如 "1"
	Params     Params
	HTTPClient *http.Client

	now func() time.Time
}

func NewFinnhubClient(token, symbol, resolution string, p Params) *FinnhubClient {
	return &FinnhubClient{
		BaseURL:    DefaultFinnhubURL,
		Token:      token,
		Symbol:     symbol,
		Resolution: resolution,
		Params:     p,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
	}
}

type finnhubResp struct {
	Lower  []float64 `json:"lowerband"`
	Middle []float64 `json:"middleband"`
	Upper  []float64 `json:"upperband"`
	Status string    `json:"s"`
}

func (c *FinnhubClient) Bands(ctx context.Context) (Bands, error) {
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	to := now()
	from := to.Add(-finnhubLookback)

	q := url.Values{}
	q.Set("symbol", c.Symbol)
	q.Set("indicator", "BBANDS")
	q.Set("resolution", c.Resolution)
	q.Set("from", strconv.FormatInt(from.Unix(), 10))
	q.Set("to", strconv.FormatInt(to.Unix(), 10))
	q.Set("timeperiod", strconv.Itoa(c.Params.TimePeriod))
	q.Set("nbdevup", strconv.FormatFloat(c.Params.NbDevUp, 'f', -1, 64))
	q.Set("nbdevdn", strconv.FormatFloat(c.Params.NbDevDn, 'f', -1, 64))
	q.Set("token", c.Token)

	endpoint := strings.TrimRight(c.BaseURL, "/") + "/api/v1/indicator?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Bands{}, err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return Bands{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return Bands{}, fmt.Errorf("finnhub indicator status %d", resp.StatusCode)
	}

	var r finnhubResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return Bands{}, fmt.Errorf("decode finnhub indicator: %w", err)
	}
	lower, ok1 := last(r.Lower)
	middle, ok2 := last(r.Middle)
	upper, ok3 := last(r.Upper)
	if !ok1 || !ok2 || !ok3 {
		return Bands{}, ErrNoData
	}
	return Bands{Lower: lower, Middle: middle, Upper: upper}, nil
}
