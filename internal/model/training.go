package model

import "time"

// Goal は顧客が設定する目標を表す。
type Goal struct {
	ID          string    `json:"id"`
	CustomerID  string    `json:"customerId"`
	Name        string    `json:"name"`
	TargetValue float64   `json:"targetValue"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Message はトレーナーと顧客の間でやり取りされるメッセージを表す。
// 作成後は変更されない。
type Message struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"senderId"`
	RecipientID string    `json:"recipientId"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	SentAt      time.Time `json:"sentAt"`
}

// MuscleGroup はエクササイズの対象部位を表す。
type MuscleGroup string

const (
	MuscleGroupChest     MuscleGroup = "chest"
	MuscleGroupBack      MuscleGroup = "back"
	MuscleGroupLegs      MuscleGroup = "legs"
	MuscleGroupShoulders MuscleGroup = "shoulders"
	MuscleGroupArms      MuscleGroup = "arms"
	MuscleGroupCore      MuscleGroup = "core"
	MuscleGroupFullBody  MuscleGroup = "full_body"
)

// MuscleGroups は定義済みの対象部位一覧。
var MuscleGroups = []MuscleGroup{
	MuscleGroupChest,
	MuscleGroupBack,
	MuscleGroupLegs,
	MuscleGroupShoulders,
	MuscleGroupArms,
	MuscleGroupCore,
	MuscleGroupFullBody,
}

const (
	// MinDifficulty はエクササイズ難易度の下限。
	MinDifficulty = 0
	// MaxDifficulty はエクササイズ難易度の上限。
	MaxDifficulty = 5
	// MaxDescriptionLength はエクササイズ説明文の最大文字数。
	MaxDescriptionLength = 200
)

// Exercise はトレーナーが管理する共通のエクササイズカタログを表す。
type Exercise struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Difficulty  int         `json:"difficulty"`
	MuscleGroup MuscleGroup `json:"muscleGroup"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// PlanEntry はプラン内のエクササイズ参照とセット数・回数を表す。
type PlanEntry struct {
	ExerciseID string `json:"exerciseId"`
	Sets       int    `json:"sets"`
	Reps       int    `json:"reps"`
}

// Plan は顧客1人に紐付く日単位のトレーニングプランを表す。
// Entriesの順序は実施順を表す。
type Plan struct {
	ID         string      `json:"id"`
	CustomerID string      `json:"customerId"`
	Name       string      `json:"name"`
	Entries    []PlanEntry `json:"entries"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}
