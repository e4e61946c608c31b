package sync

import (
	"context"
	"fmt"
	"testing"

	"github.com/hitoshi/kicksync/internal/adapter"
	"github.com/hitoshi/kicksync/internal/catalog"
	"github.com/hitoshi/kicksync/internal/model"
)

// mockAdapter はテスト用のAdapter。
type mockAdapter struct {
	fetchFunc func(ctx context.Context, config map[string]string) *adapter.FetchResult
	gotConfig map[string]string
}

func (m *mockAdapter) Fetch(ctx context.Context, config map[string]string) *adapter.FetchResult {
	m.gotConfig = config
	if m.fetchFunc != nil {
		return m.fetchFunc(ctx, config)
	}
	return &adapter.FetchResult{}
}

// mockProcessor はテスト用のProductProcessor。
type mockProcessor struct {
	report    *catalog.Report
	processed []model.NormalizedProduct
}

func (m *mockProcessor) Process(_ context.Context, products []model.NormalizedProduct) *catalog.Report {
	m.processed = products
	if m.report != nil {
		return m.report
	}
	return &catalog.Report{}
}

// mockChecker はテスト用のAlertChecker。
type mockChecker struct {
	checkFunc func(ctx context.Context, newIDs, restockedIDs []string) error
	newIDs    []string
	restocked []string
	called    bool
}

func (m *mockChecker) CheckBatch(ctx context.Context, newIDs, restockedIDs []string) error {
	m.called = true
	m.newIDs = newIDs
	m.restocked = restockedIDs
	if m.checkFunc != nil {
		return m.checkFunc(ctx, newIDs, restockedIDs)
	}
	return nil
}

func newTestRunner(a adapter.Adapter, processor *mockProcessor, checker *mockChecker) *Runner {
	registry := adapter.NewRegistry()
	if a != nil {
		registry.Register("test_adapter", a)
	}
	return NewRunner(registry, processor, checker, nopMetrics{}, testLogger())
}

func testSource() *model.FeedSource {
	return &model.FeedSource{
		ID:          "src-1",
		Name:        "Kicks API",
		AdapterType: "test_adapter",
		Config:      map[string]string{"api_key": "k", "endpoint": "https://api.example.com"},
	}
}

func TestRunner_Sync_UnknownAdapter(t *testing.T) {
	a := &mockAdapter{}
	processor := &mockProcessor{}
	r := newTestRunner(a, processor, &mockChecker{})

	source := testSource()
	source.AdapterType = "nonexistent"

	err := r.Sync(context.Background(), source)
	if err == nil {
		t.Fatal("未知のアダプター種別がエラーになっていません")
	}
	// フェッチ・取り込みとも試行されないこと
	if a.gotConfig != nil {
		t.Error("未知のアダプター種別でフェッチが試行されています")
	}
	if processor.processed != nil {
		t.Error("未知のアダプター種別で取り込みが実行されています")
	}
}

func TestRunner_Sync_PipelineFlow(t *testing.T) {
	a := &mockAdapter{
		fetchFunc: func(_ context.Context, _ map[string]string) *adapter.FetchResult {
			return &adapter.FetchResult{
				Products: []model.NormalizedProduct{
					{SourceID: "p1", SourceName: "Kicks API", Name: "Air Max 90"},
				},
				TotalFetched: 1,
			}
		},
	}
	processor := &mockProcessor{
		report: &catalog.Report{
			NewProducts:         1,
			NewProductIDs:       []string{"id-1"},
			RestockedProducts:   1,
			RestockedProductIDs: []string{"id-2"},
		},
	}
	checker := &mockChecker{}
	r := newTestRunner(a, processor, checker)

	if err := r.Sync(context.Background(), testSource()); err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}

	if a.gotConfig["source_name"] != "Kicks API" {
		t.Errorf("ソース名が設定に注入されていません: %v", a.gotConfig)
	}
	if len(processor.processed) != 1 {
		t.Fatalf("取り込み件数が1ではありません: %d", len(processor.processed))
	}
	if !checker.called {
		t.Fatal("アラート評価が実行されていません")
	}
	if len(checker.newIDs) != 1 || checker.newIDs[0] != "id-1" {
		t.Errorf("新規商品IDの受け渡しが不正です: %v", checker.newIDs)
	}
	if len(checker.restocked) != 1 || checker.restocked[0] != "id-2" {
		t.Errorf("再入荷商品IDの受け渡しが不正です: %v", checker.restocked)
	}
}

func TestRunner_Sync_TotalFetchFailure(t *testing.T) {
	a := &mockAdapter{
		fetchFunc: func(_ context.Context, _ map[string]string) *adapter.FetchResult {
			return &adapter.FetchResult{
				Errors: []string{"[MISSING_CREDENTIAL] 必須の認証情報が設定されていません: api_key"},
			}
		},
	}
	processor := &mockProcessor{}
	r := newTestRunner(a, processor, &mockChecker{})

	err := r.Sync(context.Background(), testSource())
	if err == nil {
		t.Fatal("全件失敗のフェッチが同期エラーになっていません")
	}
	if processor.processed != nil {
		t.Error("全件失敗のフェッチで取り込みが実行されています")
	}
}

func TestRunner_Sync_PartialErrorsStillSucceed(t *testing.T) {
	a := &mockAdapter{
		fetchFunc: func(_ context.Context, _ map[string]string) *adapter.FetchResult {
			return &adapter.FetchResult{
				Products: []model.NormalizedProduct{
					{SourceID: "p1", SourceName: "Kicks API", Name: "Air Max 90"},
				},
				TotalFetched: 2,
				Errors:       []string{"[NORMALIZE_FAILED] 商品データの正規化に失敗しました: titleが空の商品データ"},
			}
		},
	}
	r := newTestRunner(a, &mockProcessor{}, &mockChecker{})

	if err := r.Sync(context.Background(), testSource()); err != nil {
		t.Fatalf("部分エラーのランが同期失敗になっています: %v", err)
	}
}

func TestRunner_Sync_AlertFailureDoesNotFailSync(t *testing.T) {
	a := &mockAdapter{
		fetchFunc: func(_ context.Context, _ map[string]string) *adapter.FetchResult {
			return &adapter.FetchResult{
				Products: []model.NormalizedProduct{
					{SourceID: "p1", SourceName: "Kicks API", Name: "Air Max 90"},
				},
				TotalFetched: 1,
			}
		},
	}
	checker := &mockChecker{
		checkFunc: func(context.Context, []string, []string) error {
			return fmt.Errorf("アラート取得に失敗")
		},
	}
	r := newTestRunner(a, &mockProcessor{}, checker)

	// カタログ書き込みは適用済みのため、アラート評価の失敗で同期を失敗させない
	if err := r.Sync(context.Background(), testSource()); err != nil {
		t.Fatalf("アラート評価の失敗が同期失敗になっています: %v", err)
	}
}
