package model

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// 検証で使用するフィールド長の上限。
// パスワードの上限はbcryptが受け付ける入力長（72バイト）に合わせる。
const (
	MaxEmailLength    = 100
	MaxPasswordLength = 72
	MaxNameLength     = 100
)

// User はサービス利用ユーザーを表す。
// Passwordはエンコード済みハッシュのみを保持し、平文は構築後に残らない。
type User struct {
	ID       int64
	Email    string
	Password string
	Salt     string
	Name     string
}

// NewUser は新規ユーザーを生成する。
// ソルトは構築時に一度だけ生成され、以後再生成されない。
func NewUser(email string) *User {
	return &User{
		Email: email,
		Salt:  generateSalt(),
	}
}

// DisplayName は表示名を返す。未設定の場合は "Anonymous {id}" を返す。
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return fmt.Sprintf("Anonymous %d", u.ID)
}

// Validate はユーザーのフィールド検証を行い、フィールド名→エラーメッセージの
// マップを返す。マップが空なら妥当。
// メールアドレスの一意性チェックはストア参照が必要なため、マネージャ層が担当する。
func (u *User) Validate() map[string]string {
	errors := make(map[string]string)
	if u.Email == "" {
		errors["email"] = "Email address is required."
	} else if strings.Index(u.Email, "@") < 1 {
		errors["email"] = "Email address appears to be invalid."
	} else if len(u.Email) > MaxEmailLength {
		errors["email"] = "Email address can't be longer than 100 characters."
	}
	if u.Password == "" {
		errors["password"] = "Password is required."
	} else if len(u.Password) > MaxPasswordLength {
		errors["password"] = "Password can't be longer than 72 characters."
	}
	if len(u.Name) > MaxNameLength {
		errors["name"] = "Name can't be longer than 100 characters."
	}
	return errors
}

// generateSalt は保存用にエンコードされたランダムソルトを生成する。
// パスワードハッシュ（bcrypt）はソルトを内包するため認証には使用しないが、
// スキーマ上のsaltカラムを埋めるために保持する。
func generateSalt() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// crypto/randの失敗は実行環境の異常。ゼロソルトで続行しない。
		panic(fmt.Sprintf("failed to generate salt: %v", err))
	}
	return hex.EncodeToString(b)
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    int64
	ExpiresAt time.Time
	CreatedAt time.Time
}
