// Package hash 提供密码哈希与校验。
package hash

import "golang.org/x/crypto/bcrypt"

// MaxPasswordBytes 是 bcrypt 实际参与运算的输入长度上限。
const MaxPasswordBytes = 72

// truncate 截断到 MaxPasswordBytes 字节。注册与登录必须使用同一规则，
// 否则超长密码在两端得到的输入不同，账号将无法登录。
func truncate(password string) []byte {
	b := []byte(password)
	if len(b) > MaxPasswordBytes {
		b = b[:MaxPasswordBytes]
	}
	return b
}

// HashPassword 使用 bcrypt 生成密码哈希。
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword(truncate(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPasswordHash 校验明文密码与哈希是否匹配。
func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), truncate(password)) == nil
}
