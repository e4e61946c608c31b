package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/kicksync/internal/model"
	"github.com/hitoshi/kicksync/internal/security"
)

// TypeRetailFeed はRetailFeedAdapterのアダプター種別。
const TypeRetailFeed = "retail_feed"

// RetailFeedAdapter はoffset/count方式でページングする小売アグリゲーター
// APIのアダプター。APIキーヘッダー認証を使用する。
//
// 設定キー: api_key（必須）、endpoint（必須）、source_name、page_size、max_pages
type RetailFeedAdapter struct {
	guard   security.OutboundGuardService
	limiter *rate.Limiter
	logger  *slog.Logger
	opts    Options
}

// NewRetailFeedAdapter はRetailFeedAdapterの新しいインスタンスを生成する。
func NewRetailFeedAdapter(guard security.OutboundGuardService, logger *slog.Logger, opts Options) *RetailFeedAdapter {
	return &RetailFeedAdapter{
		guard:   guard,
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSec), 1),
		logger:  logger,
		opts:    opts,
	}
}

// retailFeedEnvelope はRetail Feed APIの一覧レスポンス。
type retailFeedEnvelope struct {
	Items []json.RawMessage `json:"items"`
	Total int               `json:"total"`
}

// retailFeedItem はRetail Feed APIの商品レスポンス。
type retailFeedItem struct {
	SKU          string       `json:"sku"`
	Name         string       `json:"name"`
	Manufacturer string       `json:"manufacturer"`
	ProductType  string       `json:"product_type"`
	StyleCode    string       `json:"style_code"`
	Color        string       `json:"color"`
	Gender       string       `json:"gender"`
	ImageURL     string       `json:"image_url"`
	Photos       []string     `json:"photos"`
	Details      string       `json:"details"`
	MSRP         *json.Number `json:"msrp"`
	ReleasedAt   string       `json:"released_at"`
	Offers       []struct {
		Shop      string       `json:"shop"`
		Amount    *json.Number `json:"amount"`
		Link      string       `json:"link"`
		Available bool         `json:"available"`
		Affiliate bool         `json:"affiliate"`
	} `json:"offers"`
}

// Fetch はRetail Feed APIをページングしながら商品を取得・正規化する。
func (a *RetailFeedAdapter) Fetch(ctx context.Context, config map[string]string) *FetchResult {
	res := &FetchResult{}

	apiKey := config["api_key"]
	if apiKey == "" {
		res.Errors = append(res.Errors, model.NewMissingCredentialError("api_key").Error())
		return res
	}

	endpoint := config["endpoint"]
	if endpoint == "" {
		res.Errors = append(res.Errors, model.NewMissingCredentialError("endpoint").Error())
		return res
	}
	if err := a.guard.ValidateEndpoint(endpoint); err != nil {
		res.Errors = append(res.Errors, model.NewFetchFailedError(0, err.Error()).Error())
		return res
	}

	sourceName := configString(config, "source_name", TypeRetailFeed)
	pageSize := configInt(config, "page_size", a.opts.DefaultPageSize)
	maxPages := configInt(config, "max_pages", a.opts.DefaultMaxPages)

	client := a.guard.NewSafeClient(a.opts.Timeout)

	for page := 0; page < maxPages; page++ {
		if err := a.limiter.Wait(ctx); err != nil {
			res.Errors = append(res.Errors, model.NewFetchFailedError(page+1, err.Error()).Error())
			break
		}

		offset := page * pageSize
		envelope, err := a.fetchPage(ctx, client, endpoint, apiKey, offset, pageSize)
		if err != nil {
			a.logger.Error("ソースAPIのページ取得に失敗しました",
				slog.String("adapter", TypeRetailFeed),
				slog.Int("offset", offset),
				slog.String("error", err.Error()),
			)
			res.Errors = append(res.Errors, model.NewFetchFailedError(page+1, err.Error()).Error())
			break
		}

		if len(envelope.Items) == 0 {
			break
		}
		res.TotalFetched += len(envelope.Items)

		for _, raw := range envelope.Items {
			product, err := a.normalize(raw, sourceName)
			if err != nil {
				res.Errors = append(res.Errors, model.NewNormalizeFailedError(err.Error()).Error())
				continue
			}
			res.Products = append(res.Products, *product)
		}

		// 総件数に達したか、ページサイズ未満なら終端
		if len(envelope.Items) < pageSize || (envelope.Total > 0 && offset+len(envelope.Items) >= envelope.Total) {
			break
		}
	}

	return res
}

// fetchPage は1ページ分の生データを取得する。
func (a *RetailFeedAdapter) fetchPage(
	ctx context.Context,
	client *http.Client,
	endpoint, apiKey string,
	offset, count int,
) (*retailFeedEnvelope, error) {
	reqURL, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("エンドポイントURLのパースに失敗しました: %w", err)
	}

	q := reqURL.Query()
	q.Set("offset", strconv.Itoa(offset))
	q.Set("count", strconv.Itoa(count))
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("X-API-Key", apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Kicksync/1.0 Catalog Sync")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ソースAPIがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var envelope retailFeedEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	return &envelope, nil
}

// normalize は生の商品データをNormalizedProductへ変換する。
// SKUと商品名を欠く商品は不正データとして拒否する。
func (a *RetailFeedAdapter) normalize(raw json.RawMessage, sourceName string) (*model.NormalizedProduct, error) {
	var item retailFeedItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, fmt.Errorf("商品JSONのパースに失敗しました: %w", err)
	}

	if item.SKU == "" {
		return nil, fmt.Errorf("skuが空の商品データ")
	}
	if item.Name == "" {
		return nil, fmt.Errorf("nameが空の商品データ (sku=%s)", item.SKU)
	}

	product := &model.NormalizedProduct{
		SourceID:    item.SKU,
		SourceName:  sourceName,
		StyleID:     item.StyleCode,
		SKU:         item.SKU,
		Name:        item.Name,
		Brand:       item.Manufacturer,
		Category:    item.ProductType,
		Colorway:    item.Color,
		Gender:      item.Gender,
		ImageURL:    item.ImageURL,
		Images:      item.Photos,
		Description: item.Details,
		RetailPrice: parsePrice(item.MSRP),
	}

	if item.ReleasedAt != "" {
		if t, err := time.Parse(time.RFC3339, item.ReleasedAt); err == nil {
			product.ReleaseDate = &t
		}
	}

	for _, offer := range item.Offers {
		if offer.Shop == "" {
			continue
		}
		product.VendorPrices = append(product.VendorPrices, model.NormalizedVendorPrice{
			VendorSlug:     strings.ToLower(offer.Shop),
			Price:          parsePrice(offer.Amount),
			URL:            offer.Link,
			InStock:        offer.Available,
			IsAffiliateURL: offer.Affiliate,
		})
	}

	return product, nil
}

// compile-time interface check
var _ Adapter = (*RetailFeedAdapter)(nil)
