// pkg/pricesource/interface.go
package pricesource

import (
	"context"

	"StockRadar/pkg/model"
)

// QuoteFetcher 行情数据获取接口
type QuoteFetcher interface {
	FetchQuote(ctx context.Context, symbol string) (*model.Quote, error)
}
