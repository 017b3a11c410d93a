package translator

import (
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Temperature used for every translation request.
const Temperature = 0.2

// 模型有时会把译文包在标签里返回，例如 <译文>...</译文>
var wrappedOutputRe = regexp.MustCompile(`(?s)^<.*?>(.*?)</.*?>`)

// BookTitle returns the file stem of the document, used as the book title.
func BookTitle(documentPath string) string {
	base := filepath.Base(documentPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// BuildSystemPrompt 构造系统提示词，书名取自文件名
func BuildSystemPrompt(title, extraRequirements string) string {
	prompt := "你是专业的书籍翻译员，你需要对这本《" + title + "》进行翻译。" +
		"翻译时务必根据这本书的内容进行翻译，保持信达雅。" +
		"请根据用户的输入片段直接输出翻译结果，不要解释。"
	if extraRequirements != "" {
		prompt += "\n\n额外要求: " + extraRequirements
	}
	return prompt
}

// BuildUserPrompt 将原文包在固定标签中，并注明目标语言
func BuildUserPrompt(text, targetLanguage string) string {
	return "<原文片段>" + text + "</原文片段>\n\n" +
		"<要求>目标语言：" + LanguageName(targetLanguage) + "\n" +
		"直接输出翻译结果，不需要用XML标签包裹。</要求>"
}

// ExtractTranslation returns the content of the first tag pair when the raw
// output starts with one, otherwise the raw output unchanged.
func ExtractTranslation(raw string) string {
	if m := wrappedOutputRe.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return raw
}

// LanguageName turns a BCP 47 code such as "zh-Hans" or "ja" into the
// language's own name. Anything that is not a plain code is returned as is.
func LanguageName(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" || len(lang) > 12 || !isASCIITag(lang) {
		return lang
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return lang
	}
	if name := display.Self.Name(tag); name != "" {
		return name
	}
	return lang
}

func isASCIITag(s string) bool {
	for _, r := range s {
		if !(r == '-' || r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}
