// Package alias 实现别名密钥与邮箱地址之间的确定性映射。
//
// 用户从不注册地址：任意密钥经 SHA-256 得到 64 位十六进制摘要，
// 摘要加上配置的域名即为该密钥唯一可读取的地址。
package alias

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode/utf8"

	"ghostinbox/backend/internal/domain"
)

const (
	// MinSecretLength 密钥最少字符数
	MinSecretLength = 8
	// DigestLength 摘要固定长度
	DigestLength = 64
)

// ValidateSecret 校验密钥长度，必须在任何网络访问之前调用。
func ValidateSecret(secret string) error {
	if utf8.RuneCountInString(secret) < MinSecretLength {
		return domain.ErrInvalidSecret
	}
	return nil
}

// Derive 计算密钥的摘要：SHA-256，不加盐，小写十六进制。
func Derive(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// ScopedAddress 拼接摘要与域名。
func ScopedAddress(digest, mailDomain string) string {
	return digest + "@" + mailDomain
}

// Matches 判断候选地址是否等于摘要对应的地址（忽略大小写）。
//
// 这是系统中唯一的授权检查，任何返回给调用方的邮件都必须通过它。
func Matches(candidate, digest, mailDomain string) bool {
	if candidate == "" || digest == "" {
		return false
	}
	return strings.EqualFold(candidate, ScopedAddress(digest, mailDomain))
}

// IsDigest 判断字符串是否为 64 位小写十六进制。
func IsDigest(s string) bool {
	if len(s) != DigestLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// IsScopedAddress 判断地址是否属于配置域名，且本地部分形如摘要。
func IsScopedAddress(address, mailDomain string) bool {
	at := strings.LastIndexByte(address, '@')
	if at < 0 {
		return false
	}
	if !strings.EqualFold(address[at+1:], mailDomain) {
		return false
	}
	return IsDigest(strings.ToLower(address[:at]))
}

// LogKey 返回摘要前 8 位，用于日志，避免完整摘要落盘。
func LogKey(digest string) string {
	if len(digest) <= 8 {
		return digest
	}
	return digest[:8]
}
