package mailparse

import (
	"regexp"
	"strings"
)

var (
	// 尖括号形式：任意非 '>' 字符
	bracketedRegex = regexp.MustCompile(`<([^>]+)>`)

	// 裸地址：本地部分 [A-Za-z0-9._%+-]+，'@'，带点的主机名，至少两个字母的顶级域
	bareAddressRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
)

// ExtractAddress 从宽松格式的收件人头中提取第一个地址。
//
// 先查找 <...> 形式的地址；不存在时回退为第一个符合常规地址语法的片段。
// 只返回第一个匹配，头部缺失或畸形时返回 ("", false)，从不报错。
func ExtractAddress(raw string) (string, bool) {
	if strings.TrimSpace(raw) == "" {
		return "", false
	}

	if m := bracketedRegex.FindStringSubmatch(raw); m != nil {
		if addr := strings.TrimSpace(m[1]); addr != "" {
			return addr, true
		}
	}

	if addr := bareAddressRegex.FindString(raw); addr != "" {
		return addr, true
	}

	return "", false
}
