package title

import (
	"regexp"
	"strings"
)

// enumeratorRe は行頭の連番（例: "1. " "2) " "3- "）にマッチする。
var enumeratorRe = regexp.MustCompile(`^\d+[.)-]?\s*`)

// quoteReplacer は引用符を除去する。
var quoteReplacer = strings.NewReplacer(`"`, "", `'`, "")

// ParseTitles はLLMの出力テキストからタイトル候補を抽出する。
// 行ごとに分割し、行頭の連番と引用符を除去してトリムする。
// 空になった行は破棄する。候補が1件も残らない場合は空スライスを返す
// （エラーにはしない）。
func ParseTitles(text string) []string {
	lines := strings.Split(text, "\n")

	titles := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		cleaned := enumeratorRe.ReplaceAllString(strings.TrimSpace(line), "")
		cleaned = strings.TrimSpace(quoteReplacer.Replace(cleaned))
		if cleaned == "" {
			continue
		}
		titles = append(titles, cleaned)
	}

	return titles
}

// StripQuotes は保存済みタイトルから迷い込んだ引用符を除去する。
// タイトルのクリーンアップ処理で使用する。
func StripQuotes(text string) string {
	return strings.TrimSpace(quoteReplacer.Replace(text))
}
