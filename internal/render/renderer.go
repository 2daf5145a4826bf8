// Package render は記事Markdown本文のHTML変換を提供する。
// LLMが生成したMarkdownをUI表示用のサニタイズ済みHTMLに変換する。
package render

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
)

// Sanitizer はHTMLサニタイズのインターフェース。
// security.ContentSanitizerServiceの部分集合として定義する。
type Sanitizer interface {
	Sanitize(rawHTML string) string
}

// Renderer はMarkdown→サニタイズ済みHTMLの変換器。
// LLM出力はMarkdown検証を行わずそのまま保存されるため、
// 表示用HTMLにする段階で必ずサニタイズを通す。
type Renderer struct {
	sanitizer Sanitizer
}

// NewRenderer はRendererの新しいインスタンスを生成する。
func NewRenderer(sanitizer Sanitizer) *Renderer {
	return &Renderer{sanitizer: sanitizer}
}

// ToHTML はMarkdown本文をサニタイズ済みHTMLに変換する。
func (r *Renderer) ToHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("MarkdownのHTML変換に失敗しました: %w", err)
	}
	return r.sanitizer.Sanitize(buf.String()), nil
}
