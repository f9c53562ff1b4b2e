package util

import "strings"

const (
	KakaoSeeMorePadding = 500
	KakaoZeroWidthSpace = "\u200b"
)

// ApplyKakaoSeeMorePadding 는 instruction 한 줄 뒤에 제로폭 문자를 채워
// 본문이 카카오톡 '전체보기' 아래로 접히게 만든다.
func ApplyKakaoSeeMorePadding(text, instruction string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	message := strings.TrimSpace(instruction)

	var b strings.Builder
	b.Grow(len(message) + len(text) + KakaoSeeMorePadding*len(KakaoZeroWidthSpace) + 1)
	b.WriteString(message)
	b.WriteString(strings.Repeat(KakaoZeroWidthSpace, KakaoSeeMorePadding))
	if !strings.HasPrefix(text, "\n") {
		b.WriteByte('\n')
	}
	b.WriteString(text)
	return b.String()
}

// StripLeadingHeader 는 본문 첫 줄이 header 와 같으면 그 줄(과 뒤따르는 빈 줄)을 지운다.
func StripLeadingHeader(text, header string) string {
	header = strings.TrimSpace(header)
	if header == "" || !strings.HasPrefix(text, header) {
		return text
	}
	rest := strings.TrimPrefix(text, header)
	rest = strings.TrimPrefix(rest, "\r")
	rest = strings.TrimPrefix(rest, "\n")
	rest = strings.TrimPrefix(rest, "\r")
	rest = strings.TrimPrefix(rest, "\n")
	return rest
}

// SeeMore 는 header 를 접히지 않는 첫 줄로 두고 나머지 본문을 접는다.
func SeeMore(header, body string) string {
	return ApplyKakaoSeeMorePadding(StripLeadingHeader(body, header), header)
}

// JoinLines 는 빈 줄을 건너뛰고 줄바꿈으로 잇는다.
func JoinLines(lines ...string) string {
	var kept []string
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, "\n")
}
