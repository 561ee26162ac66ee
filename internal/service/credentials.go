package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// passwordAlphabet 初始密码字符集（去掉了易混淆字符）
const passwordAlphabet = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// generatedPasswordLength 初始密码长度
const generatedPasswordLength = 12

// generateUsername 按 first.last.<4位十六进制> 生成用户名
func generateUsername(firstName, lastName string) string {
	suffix := make([]byte, 2)
	if _, err := rand.Read(suffix); err != nil {
		// crypto/rand 失败时退化为固定后缀，调用方会因用户名冲突重试
		suffix = []byte{0, 0}
	}
	first := sanitizeNamePart(firstName)
	last := sanitizeNamePart(lastName)
	return fmt.Sprintf("%s.%s.%s", first, last, hex.EncodeToString(suffix))
}

// sanitizeNamePart 用户名片段只保留字母数字并转小写
func sanitizeNamePart(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "user"
	}
	return b.String()
}

// generatePassword 生成随机初始密码
func generatePassword() (string, error) {
	var b strings.Builder
	max := big.NewInt(int64(len(passwordAlphabet)))
	for i := 0; i < generatedPasswordLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(passwordAlphabet[n.Int64()])
	}
	return b.String(), nil
}
