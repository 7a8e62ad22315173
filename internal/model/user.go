// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの役割を表す。
type Role string

const (
	// RoleTrainer はパーソナルトレーナー。エクササイズ・顧客・プランを管理する。
	RoleTrainer Role = "trainer"
	// RoleCustomer はトレーナーに紐付く顧客。
	RoleCustomer Role = "customer"
)

// Valid は定義済みのロールかどうかを返す。
func (r Role) Valid() bool {
	return r == RoleTrainer || r == RoleCustomer
}

// User はサービス利用ユーザー（トレーナーまたは顧客）を表す。
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	TrainerID string    `json:"trainerId,omitempty"` // 顧客のみ。担当トレーナーのユーザーID
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsTrainer はトレーナーかどうかを返す。
func (u *User) IsTrainer() bool {
	return u != nil && u.Role == RoleTrainer
}

// Credential はメールアドレスとパスワードハッシュによるログイン情報を表す。
type Credential struct {
	UserID       string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Session はユーザーのログインセッションを表す。
// LastActiveAtからSessionTimeoutを超えて操作がない場合は失効する。
type Session struct {
	ID           string
	UserID       string
	Role         Role
	CreatedAt    time.Time
	LastActiveAt time.Time
	ExpiresAt    time.Time
}

// Actor は操作を実行する認証済みユーザーを表す。
type Actor struct {
	UserID string
	Role   Role
}
