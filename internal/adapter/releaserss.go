package adapter

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/kicksync/internal/model"
	"github.com/hitoshi/kicksync/internal/security"
)

// TypeReleaseRSS はReleaseRSSAdapterのアダプター種別。
const TypeReleaseRSS = "release_rss"

// ReleaseRSSAdapter はスニーカーのリリースカレンダーRSS/Atomフィードを
// 取り込むアダプター。価格情報を持たないカタログ専用ソースで、
// 新商品の登場をドロップアラートへ流すために使用する。
//
// 設定キー: feed_url（必須）、source_name、brand
type ReleaseRSSAdapter struct {
	guard  security.OutboundGuardService
	logger *slog.Logger
	opts   Options
}

// NewReleaseRSSAdapter はReleaseRSSAdapterの新しいインスタンスを生成する。
func NewReleaseRSSAdapter(guard security.OutboundGuardService, logger *slog.Logger, opts Options) *ReleaseRSSAdapter {
	return &ReleaseRSSAdapter{
		guard:  guard,
		logger: logger,
		opts:   opts,
	}
}

// Fetch はリリースフィードを1回取得し、各記事を商品として正規化する。
// RSSフィードにページングはないため1リクエストで完結する。
func (a *ReleaseRSSAdapter) Fetch(ctx context.Context, config map[string]string) *FetchResult {
	res := &FetchResult{}

	feedURL := config["feed_url"]
	if feedURL == "" {
		res.Errors = append(res.Errors, model.NewMissingCredentialError("feed_url").Error())
		return res
	}
	if err := a.guard.ValidateEndpoint(feedURL); err != nil {
		res.Errors = append(res.Errors, model.NewFetchFailedError(0, err.Error()).Error())
		return res
	}

	sourceName := configString(config, "source_name", TypeReleaseRSS)
	defaultBrand := configString(config, "brand", "")

	body, err := a.fetchFeed(ctx, feedURL)
	if err != nil {
		a.logger.Error("リリースフィードの取得に失敗しました",
			slog.String("adapter", TypeReleaseRSS),
			slog.String("feed_url", feedURL),
			slog.String("error", err.Error()),
		)
		res.Errors = append(res.Errors, model.NewFetchFailedError(1, err.Error()).Error())
		return res
	}

	parser := gofeed.NewParser()
	feed, err := parser.ParseString(body)
	if err != nil {
		res.Errors = append(res.Errors, model.NewFetchFailedError(1, fmt.Sprintf("フィードのパースに失敗しました: %s", err)).Error())
		return res
	}

	res.TotalFetched = len(feed.Items)

	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		product, err := a.normalize(item, sourceName, defaultBrand)
		if err != nil {
			res.Errors = append(res.Errors, model.NewNormalizeFailedError(err.Error()).Error())
			continue
		}
		res.Products = append(res.Products, *product)
	}

	return res
}

// fetchFeed はSSRF防止クライアントでフィード本文を取得する。
func (a *ReleaseRSSAdapter) fetchFeed(ctx context.Context, feedURL string) (string, error) {
	client := a.guard.NewSafeClient(a.opts.Timeout)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return "", fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", "Kicksync/1.0 Catalog Sync")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("リリースフィードがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	return string(body), nil
}

// normalize はフィード記事をカタログ専用のNormalizedProductへ変換する。
// GUIDまたはリンクをソースIDとして使用し、どちらも無い記事は拒否する。
func (a *ReleaseRSSAdapter) normalize(item *gofeed.Item, sourceName, defaultBrand string) (*model.NormalizedProduct, error) {
	sourceID := item.GUID
	if sourceID == "" {
		sourceID = item.Link
	}
	if sourceID == "" {
		return nil, fmt.Errorf("GUIDとリンクの両方が空の記事")
	}
	if item.Title == "" {
		return nil, fmt.Errorf("タイトルが空の記事 (guid=%s)", sourceID)
	}

	product := &model.NormalizedProduct{
		SourceID:    sourceID,
		SourceName:  sourceName,
		Name:        item.Title,
		Brand:       defaultBrand,
		Description: item.Description,
	}

	if len(item.Categories) > 0 {
		product.Category = item.Categories[0]
	}
	if item.Image != nil {
		product.ImageURL = item.Image.URL
	}
	if item.PublishedParsed != nil {
		t := *item.PublishedParsed
		product.ReleaseDate = &t
	}

	return product, nil
}

// compile-time interface check
var _ Adapter = (*ReleaseRSSAdapter)(nil)
