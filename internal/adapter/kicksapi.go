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

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/hitoshi/kicksync/internal/model"
	"github.com/hitoshi/kicksync/internal/security"
)

// TypeKicksAPI はKicksAPIAdapterのアダプター種別。
const TypeKicksAPI = "kicks_api"

// maxResponseSize はソースAPIレスポンスの最大読み取りサイズ（5MB）。
const maxResponseSize = 5 * 1024 * 1024

// Options はアダプター共通の動作パラメータ。
type Options struct {
	Timeout         time.Duration // ソースAPI呼び出しのタイムアウト
	DefaultPageSize int           // 設定で上書きされない場合のページサイズ
	DefaultMaxPages int           // 設定で上書きされない場合のページ数上限
	RequestsPerSec  float64       // ソースAPIへの秒間リクエスト上限
}

// KicksAPIAdapter はpage/limit方式でページングするスニーカーマーケットプレイス
// APIのアダプター。Bearerトークン認証を使用する。
//
// 設定キー: api_key（必須）、endpoint（必須）、source_name、page_size、max_pages
type KicksAPIAdapter struct {
	guard   security.OutboundGuardService
	limiter *rate.Limiter
	logger  *slog.Logger
	opts    Options
}

// NewKicksAPIAdapter はKicksAPIAdapterの新しいインスタンスを生成する。
func NewKicksAPIAdapter(guard security.OutboundGuardService, logger *slog.Logger, opts Options) *KicksAPIAdapter {
	return &KicksAPIAdapter{
		guard:   guard,
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSec), 1),
		logger:  logger,
		opts:    opts,
	}
}

// kicksAPIEnvelope はKicks APIの一覧レスポンス。
// 個々の商品はRawMessageのまま保持し、1件の不正データが
// ページ全体のデコードを失敗させないようにする。
type kicksAPIEnvelope struct {
	Data []json.RawMessage `json:"data"`
}

// kicksAPIProduct はKicks APIの商品レスポンス。
type kicksAPIProduct struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Brand       string       `json:"brand"`
	Category    string       `json:"category"`
	StyleID     string       `json:"styleId"`
	SKU         string       `json:"sku"`
	Slug        string       `json:"slug"`
	Colorway    string       `json:"colorway"`
	Gender      string       `json:"gender"`
	Thumbnail   string       `json:"thumbnail"`
	ImageLinks  []string     `json:"imageLinks"`
	Description string       `json:"description"`
	RetailPrice *json.Number `json:"retailPrice"`
	ReleaseDate string       `json:"releaseDate"`
	Vendors     []struct {
		Vendor    string       `json:"vendor"`
		Price     *json.Number `json:"price"`
		URL       string       `json:"url"`
		InStock   bool         `json:"inStock"`
		Affiliate bool         `json:"affiliate"`
	} `json:"vendors"`
}

// Fetch はKicks APIをページングしながら商品を取得・正規化する。
func (a *KicksAPIAdapter) Fetch(ctx context.Context, config map[string]string) *FetchResult {
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

	sourceName := configString(config, "source_name", TypeKicksAPI)
	pageSize := configInt(config, "page_size", a.opts.DefaultPageSize)
	maxPages := configInt(config, "max_pages", a.opts.DefaultMaxPages)

	client := a.guard.NewSafeClient(a.opts.Timeout)

	for page := 1; page <= maxPages; page++ {
		if err := a.limiter.Wait(ctx); err != nil {
			res.Errors = append(res.Errors, model.NewFetchFailedError(page, err.Error()).Error())
			break
		}

		raws, err := a.fetchPage(ctx, client, endpoint, apiKey, page, pageSize)
		if err != nil {
			// トランスポートエラーは残ページを中断し、取得済み分を返す
			a.logger.Error("ソースAPIのページ取得に失敗しました",
				slog.String("adapter", TypeKicksAPI),
				slog.Int("page", page),
				slog.String("error", err.Error()),
			)
			res.Errors = append(res.Errors, model.NewFetchFailedError(page, err.Error()).Error())
			break
		}

		if len(raws) == 0 {
			break
		}
		res.TotalFetched += len(raws)

		for _, raw := range raws {
			product, err := a.normalize(raw, sourceName)
			if err != nil {
				// 1件の不正データはスキップして残りを処理する
				res.Errors = append(res.Errors, model.NewNormalizeFailedError(err.Error()).Error())
				continue
			}
			res.Products = append(res.Products, *product)
		}

		// ページサイズ未満は最終ページ
		if len(raws) < pageSize {
			break
		}
	}

	return res
}

// fetchPage は1ページ分の生データを取得する。
func (a *KicksAPIAdapter) fetchPage(
	ctx context.Context,
	client *http.Client,
	endpoint, apiKey string,
	page, pageSize int,
) ([]json.RawMessage, error) {
	reqURL, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("エンドポイントURLのパースに失敗しました: %w", err)
	}

	q := reqURL.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(pageSize))
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
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

	var envelope kicksAPIEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	return envelope.Data, nil
}

// normalize は生の商品データをNormalizedProductへ変換する。
// IDとタイトルを欠く商品は不正データとして拒否する。
func (a *KicksAPIAdapter) normalize(raw json.RawMessage, sourceName string) (*model.NormalizedProduct, error) {
	var kp kicksAPIProduct
	if err := json.Unmarshal(raw, &kp); err != nil {
		return nil, fmt.Errorf("商品JSONのパースに失敗しました: %w", err)
	}

	if kp.ID == "" {
		return nil, fmt.Errorf("idが空の商品データ")
	}
	if kp.Title == "" {
		return nil, fmt.Errorf("titleが空の商品データ (id=%s)", kp.ID)
	}

	product := &model.NormalizedProduct{
		SourceID:    kp.ID,
		SourceName:  sourceName,
		StyleID:     kp.StyleID,
		SKU:         kp.SKU,
		Slug:        kp.Slug,
		Name:        kp.Title,
		Brand:       kp.Brand,
		Category:    kp.Category,
		Colorway:    kp.Colorway,
		Gender:      kp.Gender,
		ImageURL:    kp.Thumbnail,
		Images:      kp.ImageLinks,
		Description: kp.Description,
		RetailPrice: parsePrice(kp.RetailPrice),
	}

	if kp.ReleaseDate != "" {
		if t, err := time.Parse("2006-01-02", kp.ReleaseDate); err == nil {
			product.ReleaseDate = &t
		}
		// パース不能な日付は欠損として扱う（致命的としない）
	}

	for _, v := range kp.Vendors {
		if v.Vendor == "" {
			continue
		}
		product.VendorPrices = append(product.VendorPrices, model.NormalizedVendorPrice{
			VendorSlug:     strings.ToLower(v.Vendor),
			Price:          parsePrice(v.Price),
			URL:            v.URL,
			InStock:        v.InStock,
			IsAffiliateURL: v.Affiliate,
		})
	}

	return product, nil
}

// parsePrice はJSON数値を10進数価格へ変換する。nil・不正値はNULL価格になる。
func parsePrice(n *json.Number) decimal.NullDecimal {
	if n == nil {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// compile-time interface check
var _ Adapter = (*KicksAPIAdapter)(nil)
