package service

import "strings"

// TextVerdict 文本答案的质量判定
type TextVerdict int

const (
	TextValid    TextVerdict = iota
	TextTooShort             // 去空格后不足3个字符
	TextSpam                 // 超过6个字符且只由单一字符重复构成，如 "aaaaaaa"
)

// ClassifyTextAnswer 纯函数，同一字符串在任何调用方得到同一判定
func ClassifyTextAnswer(text string) TextVerdict {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < 3 {
		return TextTooShort
	}

	if len(trimmed) > 6 {
		distinct := make(map[rune]bool)
		for _, r := range trimmed {
			distinct[r] = true
			if len(distinct) > 1 {
				break
			}
		}
		if len(distinct) == 1 {
			return TextSpam
		}
	}

	return TextValid
}
