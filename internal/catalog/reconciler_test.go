package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/kicksync/internal/model"
	"github.com/hitoshi/kicksync/internal/repository"
)

// memProductRepo はテスト用のインメモリProductRepository。
type memProductRepo struct {
	products  map[string]*model.Product
	createErr func(p *model.Product) error
}

func newMemProductRepo() *memProductRepo {
	return &memProductRepo{products: make(map[string]*model.Product)}
}

func (m *memProductRepo) FindByID(_ context.Context, id string) (*model.Product, error) {
	if p, ok := m.products[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (m *memProductRepo) FindBySourceIdentity(_ context.Context, sourceID, sourceName string) (*model.Product, error) {
	for _, p := range m.products {
		if p.SourceID == sourceID && p.SourceName == sourceName {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memProductRepo) FindByStyleOrSKU(_ context.Context, styleID, sku string) (*model.Product, error) {
	for _, p := range m.products {
		if styleID != "" && (p.StyleID == styleID || p.SKU == styleID) {
			cp := *p
			return &cp, nil
		}
		if sku != "" && (p.StyleID == sku || p.SKU == sku) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memProductRepo) ListByIDs(_ context.Context, ids []string) ([]*model.Product, error) {
	var out []*model.Product
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memProductRepo) Create(_ context.Context, p *model.Product) error {
	if m.createErr != nil {
		if err := m.createErr(p); err != nil {
			return err
		}
	}
	cp := *p
	m.products[p.ID] = &cp
	return nil
}

func (m *memProductRepo) Update(_ context.Context, p *model.Product) error {
	cp := *p
	m.products[p.ID] = &cp
	return nil
}

func (m *memProductRepo) UpdateLowestPrice(_ context.Context, productID string, price decimal.NullDecimal) error {
	if p, ok := m.products[productID]; ok {
		p.CurrentLowestPrice = price
	}
	return nil
}

// memVendorRepo はテスト用のインメモリVendorRepository。
type memVendorRepo struct {
	vendors map[string]*model.Vendor // slug -> vendor
}

func newMemVendorRepo(slugs ...string) *memVendorRepo {
	m := &memVendorRepo{vendors: make(map[string]*model.Vendor)}
	for i, slug := range slugs {
		m.vendors[slug] = &model.Vendor{ID: fmt.Sprintf("vendor-%d", i+1), Slug: slug, Name: slug}
	}
	return m
}

func (m *memVendorRepo) FindBySlug(_ context.Context, slug string) (*model.Vendor, error) {
	if v, ok := m.vendors[slug]; ok {
		return v, nil
	}
	return nil, nil
}

func (m *memVendorRepo) List(_ context.Context) ([]*model.Vendor, error) {
	var out []*model.Vendor
	for _, v := range m.vendors {
		out = append(out, v)
	}
	return out, nil
}

// memVendorPriceRepo はテスト用のインメモリVendorPriceRepository。
type memVendorPriceRepo struct {
	prices map[string]*model.VendorPrice // productID+vendorID -> price
}

func newMemVendorPriceRepo() *memVendorPriceRepo {
	return &memVendorPriceRepo{prices: make(map[string]*model.VendorPrice)}
}

func priceKey(productID, vendorID string) string {
	return productID + "/" + vendorID
}

func (m *memVendorPriceRepo) FindByProductAndVendor(_ context.Context, productID, vendorID string) (*model.VendorPrice, error) {
	if vp, ok := m.prices[priceKey(productID, vendorID)]; ok {
		cp := *vp
		return &cp, nil
	}
	return nil, nil
}

func (m *memVendorPriceRepo) Create(_ context.Context, vp *model.VendorPrice) error {
	cp := *vp
	m.prices[priceKey(vp.ProductID, vp.VendorID)] = &cp
	return nil
}

func (m *memVendorPriceRepo) Update(_ context.Context, vp *model.VendorPrice) error {
	cp := *vp
	m.prices[priceKey(vp.ProductID, vp.VendorID)] = &cp
	return nil
}

func (m *memVendorPriceRepo) ListInStockPrices(_ context.Context, productID string) ([]decimal.Decimal, error) {
	var out []decimal.Decimal
	for _, vp := range m.prices {
		if vp.ProductID == productID && vp.InStock && vp.Price.Valid {
			out = append(out, vp.Price.Decimal)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LessThan(out[j]) })
	return out, nil
}

// passthroughSanitizer はテスト用の素通しサニタイザー。
type passthroughSanitizer struct{}

func (passthroughSanitizer) Sanitize(raw string) string { return raw }

var (
	_ repository.ProductRepository     = (*memProductRepo)(nil)
	_ repository.VendorRepository      = (*memVendorRepo)(nil)
	_ repository.VendorPriceRepository = (*memVendorPriceRepo)(nil)
)

func newTestReconciler(
	productRepo *memProductRepo,
	vendorRepo *memVendorRepo,
	priceRepo *memVendorPriceRepo,
) *Reconciler {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return NewReconciler(productRepo, vendorRepo, priceRepo, passthroughSanitizer{}, logger)
}

func dec(s string) decimal.NullDecimal {
	d, _ := decimal.NewFromString(s)
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

func TestReconciler_IdempotentResync(t *testing.T) {
	productRepo := newMemProductRepo()
	priceRepo := newMemVendorPriceRepo()
	r := newTestReconciler(productRepo, newMemVendorRepo("stockx"), priceRepo)

	input := []model.NormalizedProduct{{
		SourceID:   "p1",
		SourceName: "kicks_api",
		Name:       "Air Max 90",
		VendorPrices: []model.NormalizedVendorPrice{
			{VendorSlug: "stockx", Price: dec("120"), InStock: true},
		},
	}}

	report1 := r.Process(context.Background(), input)
	if report1.NewProducts != 1 || report1.UpdatedProducts != 0 {
		t.Fatalf("初回実行の集計が不正です: %+v", report1)
	}
	if report1.VendorPricesUpserted != 1 {
		t.Errorf("初回のベンダー価格UPSERT数が不正です: %d", report1.VendorPricesUpserted)
	}

	report2 := r.Process(context.Background(), input)
	if report2.NewProducts != 0 || report2.UpdatedProducts != 1 {
		t.Fatalf("再実行の集計が不正です: %+v", report2)
	}
	if report2.VendorPricesUpserted != 1 {
		t.Errorf("再実行のベンダー価格UPSERT数が不正です: %d", report2.VendorPricesUpserted)
	}
	if len(productRepo.products) != 1 {
		t.Errorf("商品レコード数が1ではありません: %d", len(productRepo.products))
	}
}

func TestReconciler_CrossSourceDedup(t *testing.T) {
	productRepo := newMemProductRepo()
	r := newTestReconciler(productRepo, newMemVendorRepo(), newMemVendorPriceRepo())

	report1 := r.Process(context.Background(), []model.NormalizedProduct{{
		SourceID:   "p1",
		SourceName: "kicks_api",
		StyleID:    "CN8490-002",
		Name:       "Air Max 90",
	}})
	if report1.NewProducts != 1 {
		t.Fatalf("初回が新規になっていません: %+v", report1)
	}

	// 別ソースだが同じstyle_id → 既存レコードへ統合されること
	report2 := r.Process(context.Background(), []model.NormalizedProduct{{
		SourceID:   "S999",
		SourceName: "retail_feed",
		StyleID:    "CN8490-002",
		Name:       "Nike Air Max 90",
	}})
	if report2.NewProducts != 0 || report2.UpdatedProducts != 1 {
		t.Fatalf("クロスソース統合の集計が不正です: %+v", report2)
	}
	if len(productRepo.products) != 1 {
		t.Errorf("商品レコード数が1ではありません: %d", len(productRepo.products))
	}
}

func TestReconciler_FieldNonRegression(t *testing.T) {
	productRepo := newMemProductRepo()
	r := newTestReconciler(productRepo, newMemVendorRepo(), newMemVendorPriceRepo())

	r.Process(context.Background(), []model.NormalizedProduct{{
		SourceID:   "p1",
		SourceName: "kicks_api",
		Name:       "Dunk Low",
		Colorway:   "Black",
		Brand:      "Nike",
	}})

	// colorway空の再取得で既存値が消えないこと
	r.Process(context.Background(), []model.NormalizedProduct{{
		SourceID:   "p1",
		SourceName: "kicks_api",
		Name:       "Dunk Low",
		Colorway:   "",
	}})

	p, _ := productRepo.FindBySourceIdentity(context.Background(), "p1", "kicks_api")
	if p.Colorway != "Black" {
		t.Errorf("カラーウェイが既存値を維持していません: %q", p.Colorway)
	}
	if p.Brand != "Nike" {
		t.Errorf("ブランドが既存値を維持していません: %q", p.Brand)
	}
}

func TestReconciler_RestockDetection(t *testing.T) {
	productRepo := newMemProductRepo()
	priceRepo := newMemVendorPriceRepo()
	r := newTestReconciler(productRepo, newMemVendorRepo("stockx"), priceRepo)

	run := func(inStock bool) *Report {
		return r.Process(context.Background(), []model.NormalizedProduct{{
			SourceID:   "p1",
			SourceName: "kicks_api",
			Name:       "Air Jordan 1",
			VendorPrices: []model.NormalizedVendorPrice{
				{VendorSlug: "stockx", Price: dec("200"), InStock: inStock},
			},
		}})
	}

	stockChangedAt := func() *time.Time {
		p, _ := productRepo.FindBySourceIdentity(context.Background(), "p1", "kicks_api")
		vp, _ := priceRepo.FindByProductAndVendor(context.Background(), p.ID, "vendor-1")
		return vp.StockChangedAt
	}

	// 1回目: 初回観測 → 復活ではない、遷移記録なし
	report1 := run(true)
	if report1.RestockedProducts != 0 {
		t.Fatalf("初回観測が復活として検出されています: %+v", report1)
	}
	if stockChangedAt() != nil {
		t.Error("初回観測でstock_changed_atが設定されています")
	}

	// 2回目: 在庫切れ → 遷移記録あり、復活ではない
	report2 := run(false)
	if report2.RestockedProducts != 0 {
		t.Fatalf("在庫切れが復活として検出されています: %+v", report2)
	}
	changed2 := stockChangedAt()
	if changed2 == nil {
		t.Fatal("在庫切れ遷移でstock_changed_atが設定されていません")
	}

	// 3回目: 復活 → 検出あり、遷移記録更新
	report3 := run(true)
	if report3.RestockedProducts != 1 || len(report3.RestockedProductIDs) != 1 {
		t.Fatalf("在庫復活が検出されていません: %+v", report3)
	}
	changed3 := stockChangedAt()
	if changed3 == nil || !changed3.After(*changed2) {
		t.Error("復活遷移でstock_changed_atが更新されていません")
	}

	// 4回目: 在庫継続 → 検出なし、遷移記録は変わらない
	report4 := run(true)
	if report4.RestockedProducts != 0 {
		t.Fatalf("在庫継続が復活として検出されています: %+v", report4)
	}
	if changed4 := stockChangedAt(); !changed4.Equal(*changed3) {
		t.Error("在庫フラグが変化していないのにstock_changed_atが更新されています")
	}
}

func TestReconciler_LowestPrice(t *testing.T) {
	productRepo := newMemProductRepo()
	r := newTestReconciler(productRepo, newMemVendorRepo("stockx", "goat", "flightclub"), newMemVendorPriceRepo())

	r.Process(context.Background(), []model.NormalizedProduct{{
		SourceID:   "p1",
		SourceName: "kicks_api",
		Name:       "Yeezy 350",
		VendorPrices: []model.NormalizedVendorPrice{
			{VendorSlug: "stockx", Price: dec("120"), InStock: true},
			{VendorSlug: "goat", Price: dec("90"), InStock: false},
			{VendorSlug: "flightclub", Price: dec("150"), InStock: true},
		},
	}})

	p, _ := productRepo.FindBySourceIdentity(context.Background(), "p1", "kicks_api")
	if !p.CurrentLowestPrice.Valid || p.CurrentLowestPrice.Decimal.String() != "120" {
		t.Errorf("最安値が在庫あり価格の最小になっていません: %+v", p.CurrentLowestPrice)
	}

	// 全ベンダー在庫切れ → NULLへ戻ること
	r.Process(context.Background(), []model.NormalizedProduct{{
		SourceID:   "p1",
		SourceName: "kicks_api",
		Name:       "Yeezy 350",
		VendorPrices: []model.NormalizedVendorPrice{
			{VendorSlug: "stockx", Price: dec("120"), InStock: false},
			{VendorSlug: "goat", Price: dec("90"), InStock: false},
			{VendorSlug: "flightclub", Price: dec("150"), InStock: false},
		},
	}})

	p, _ = productRepo.FindBySourceIdentity(context.Background(), "p1", "kicks_api")
	if p.CurrentLowestPrice.Valid {
		t.Errorf("全ベンダー在庫切れで最安値がNULLになっていません: %+v", p.CurrentLowestPrice)
	}
}

func TestReconciler_UnknownVendorSkipped(t *testing.T) {
	productRepo := newMemProductRepo()
	r := newTestReconciler(productRepo, newMemVendorRepo("stockx"), newMemVendorPriceRepo())

	report := r.Process(context.Background(), []model.NormalizedProduct{{
		SourceID:   "p1",
		SourceName: "kicks_api",
		Name:       "Air Max 90",
		VendorPrices: []model.NormalizedVendorPrice{
			{VendorSlug: "unknown-shop", Price: dec("100"), InStock: true},
			{VendorSlug: "stockx", Price: dec("120"), InStock: true},
		},
	}})

	if report.NewProducts != 1 {
		t.Fatalf("商品本体の取り込みが失敗しています: %+v", report)
	}
	if report.VendorPricesUpserted != 1 {
		t.Errorf("既知ベンダーの価格が取り込まれていません: %d", report.VendorPricesUpserted)
	}
	if len(report.Errors) != 1 {
		t.Fatalf("未登録ベンダーのエラーが記録されていません: %v", report.Errors)
	}
}

func TestReconciler_PerItemErrorIsolation(t *testing.T) {
	productRepo := newMemProductRepo()
	productRepo.createErr = func(p *model.Product) error {
		if p.SourceID == "bad" {
			return fmt.Errorf("書き込み失敗")
		}
		return nil
	}
	r := newTestReconciler(productRepo, newMemVendorRepo(), newMemVendorPriceRepo())

	report := r.Process(context.Background(), []model.NormalizedProduct{
		{SourceID: "p1", SourceName: "kicks_api", Name: "Air Max 90"},
		{SourceID: "bad", SourceName: "kicks_api", Name: "Broken"},
		{SourceID: "p3", SourceName: "kicks_api", Name: "Dunk Low"},
	})

	if report.NewProducts != 2 {
		t.Errorf("正常な商品が取り込まれていません: %+v", report)
	}
	if len(report.Errors) != 1 {
		t.Fatalf("エラー件数が1ではありません: %v", report.Errors)
	}
	if len(productRepo.products) != 2 {
		t.Errorf("商品レコード数が2ではありません: %d", len(productRepo.products))
	}
}
