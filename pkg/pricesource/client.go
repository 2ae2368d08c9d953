// pkg/pricesource/client.go
package pricesource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"StockRadar/pkg/config"
	"StockRadar/pkg/model"
)

// Client 行情API客户端
type Client struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
}

// quoteResponse 行情API响应结构
type quoteResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		Symbol        string  `json:"symbol"`
		LastPrice     float64 `json:"last_price"`
		PreviousClose float64 `json:"previous_close"`
	} `json:"data"`
}

// NewClient 创建新的行情客户端
func NewClient(cfg *config.Config) *Client {
	return &Client{
		APIKey:  cfg.PriceSource.APIKey,
		BaseURL: cfg.PriceSource.BaseURL,
		Client: &http.Client{
			Timeout: cfg.PriceSource.Timeout.Std(),
		},
	}
}

// FetchQuote 获取单个标的的最新价和昨收价
func (c *Client) FetchQuote(ctx context.Context, symbol string) (*model.Quote, error) {
	endpoint := fmt.Sprintf("%s/v1/quote?symbol=%s", c.BaseURL, url.QueryEscape(symbol))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("执行HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API返回非200状态码: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}

	var quoteResp quoteResponse
	if err := json.Unmarshal(body, &quoteResp); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}

	if quoteResp.Code != 0 {
		return nil, fmt.Errorf("API返回错误: %s", quoteResp.Msg)
	}

	return &model.Quote{
		Symbol:    symbol,
		LastPrice: quoteResp.Data.LastPrice,
		PrevClose: quoteResp.Data.PreviousClose,
		Timestamp: time.Now(),
	}, nil
}
