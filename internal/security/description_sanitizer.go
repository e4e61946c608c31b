// Package security はパイプラインのセキュリティ機能を提供する。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// DescriptionSanitizerService はマーケットプレイス由来の商品説明文の
// サニタイズインターフェース。ソースAPIはHTML混じりの説明文を返すことが
// あるため、保存前にプレーンテキストへ落とす。
type DescriptionSanitizerService interface {
	// Sanitize は説明文からすべてのHTMLタグを除去したテキストを返す。
	// 空文字列の入力には空文字列を返す。同一入力に対して冪等。
	Sanitize(raw string) string
}

// descriptionSanitizer はDescriptionSanitizerServiceの実装。
// bluemondayのStrictPolicy（全タグ除去）を保持し、スレッドセーフに動作する。
type descriptionSanitizer struct {
	policy *bluemonday.Policy
}

// NewDescriptionSanitizer はDescriptionSanitizerServiceの新しいインスタンスを生成する。
// 商品説明はカタログ上で装飾なしに表示されるため、許可タグは一切設けない。
func NewDescriptionSanitizer() *descriptionSanitizer {
	return &descriptionSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は説明文からすべてのHTMLタグを除去したテキストを返す。
// タグ除去で生じる余分な空白は前後のみ詰める。
func (s *descriptionSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}
