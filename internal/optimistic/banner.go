package optimistic

import (
	"sync"
	"time"
)

// DefaultBannerTimeout はバナーを自動で閉じるまでの時間。
const DefaultBannerTimeout = 3 * time.Second

// Banner はリモート操作の失敗をユーザーに知らせる一時的なメッセージ。
// 表示から一定時間後に自動で消える。
type Banner struct {
	mu      sync.Mutex
	message string
	delay   time.Duration
	timer   *time.Timer
	seq     uint64
}

// NewBanner はBannerを生成する。delayが0以下の場合はDefaultBannerTimeoutを使用する。
func NewBanner(delay time.Duration) *Banner {
	if delay <= 0 {
		delay = DefaultBannerTimeout
	}
	return &Banner{delay: delay}
}

// Show はメッセージを表示し、自動で閉じるタイマーを開始する。
// 表示中に呼ばれた場合はメッセージを置き換え、タイマーをやり直す。
func (b *Banner) Show(message string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.timer != nil {
		b.timer.Stop()
	}
	b.seq++
	seq := b.seq
	b.message = message
	b.timer = time.AfterFunc(b.delay, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		// 後から表示されたメッセージは消さない
		if b.seq == seq {
			b.message = ""
			b.timer = nil
		}
	})
}

// Message は表示中のメッセージを返す。表示されていなければ空文字列。
func (b *Banner) Message() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.message
}

// Dismiss はメッセージを即座に消す。
func (b *Banner) Dismiss() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.seq++
	b.message = ""
}
