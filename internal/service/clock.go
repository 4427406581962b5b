package service

import "time"

// 统一用 UTC，sqlite 按字符串比较时间
func utcNow() time.Time { return time.Now().UTC() }

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
