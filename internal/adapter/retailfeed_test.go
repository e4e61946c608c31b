package adapter

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRetailFeedAdapter_Fetch_StopsAtTotal(t *testing.T) {
	var offsets []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offset := r.URL.Query().Get("offset")
		offsets = append(offsets, offset)

		if got := r.Header.Get("X-API-Key"); got != "test-key" {
			t.Errorf("X-API-Keyヘッダーが不正です: %s", got)
		}

		switch offset {
		case "0":
			fmt.Fprint(w, `{"total": 3, "items": [
				{"sku": "S1", "name": "Air Force 1"},
				{"sku": "S2", "name": "Gazelle"}
			]}`)
		case "2":
			// offset+件数が総件数に到達 → 終端
			fmt.Fprint(w, `{"total": 3, "items": [
				{"sku": "S3", "name": "Old Skool"}
			]}`)
		default:
			t.Errorf("余分なoffsetが要求されました: %s", offset)
			fmt.Fprint(w, `{"total": 3, "items": []}`)
		}
	}))
	defer server.Close()

	a := NewRetailFeedAdapter(&mockOutboundGuard{}, testLogger(), testOptions())
	res := a.Fetch(context.Background(), map[string]string{
		"api_key":  "test-key",
		"endpoint": server.URL,
	})

	if len(res.Errors) != 0 {
		t.Fatalf("予期しないエラー: %v", res.Errors)
	}
	if len(res.Products) != 3 {
		t.Fatalf("商品件数が3ではありません: %d", len(res.Products))
	}
	if len(offsets) != 2 {
		t.Errorf("リクエスト回数が2ではありません: %v", offsets)
	}
}

func TestRetailFeedAdapter_Fetch_MissingCredentials(t *testing.T) {
	a := NewRetailFeedAdapter(&mockOutboundGuard{}, testLogger(), testOptions())

	res := a.Fetch(context.Background(), map[string]string{
		"api_key": "test-key",
	})

	if len(res.Products) != 0 {
		t.Errorf("商品件数が0ではありません: %d", len(res.Products))
	}
	if len(res.Errors) != 1 {
		t.Fatalf("エラー件数が1ではありません: %v", res.Errors)
	}
}

func TestRetailFeedAdapter_Normalize_Offers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"total": 1, "items": [
			{"sku": "S1", "name": "Chuck 70", "manufacturer": "Converse",
			 "style_code": "162050C", "msrp": 85,
			 "released_at": "2025-06-01T00:00:00Z",
			 "offers": [
				{"shop": "Foot Locker", "amount": 79.99, "link": "https://fl.example/s1", "available": true, "affiliate": true}
			 ]}
		]}`)
	}))
	defer server.Close()

	a := NewRetailFeedAdapter(&mockOutboundGuard{}, testLogger(), testOptions())
	res := a.Fetch(context.Background(), map[string]string{
		"api_key":  "test-key",
		"endpoint": server.URL,
	})

	if len(res.Products) != 1 {
		t.Fatalf("商品件数が1ではありません: %d", len(res.Products))
	}

	p := res.Products[0]
	if p.SourceID != "S1" || p.SKU != "S1" {
		t.Errorf("ソースIDとSKUが不正です: %s / %s", p.SourceID, p.SKU)
	}
	if p.StyleID != "162050C" {
		t.Errorf("スタイルIDが不正です: %s", p.StyleID)
	}
	if !p.RetailPrice.Valid || p.RetailPrice.Decimal.String() != "85" {
		t.Errorf("定価が不正です: %+v", p.RetailPrice)
	}
	if len(p.VendorPrices) != 1 {
		t.Fatalf("ベンダー価格件数が1ではありません: %d", len(p.VendorPrices))
	}
	vp := p.VendorPrices[0]
	if vp.VendorSlug != "foot locker" {
		t.Errorf("ベンダースラッグが不正です: %s", vp.VendorSlug)
	}
	if !vp.InStock || !vp.IsAffiliateURL {
		t.Errorf("在庫・アフィリエイトフラグが不正です: %+v", vp)
	}
}
