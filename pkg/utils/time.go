package utils

import (
	"time"
)

// 시간 함수 (테스트를 위해 오버라이드 가능)
var timeNow = time.Now

// GetTimeNow는 현재 시간을 반환합니다.
func GetTimeNow() time.Time {
	return timeNow()
}

// SetTimeNow는 시간 함수를 설정하고 이전 함수를 반환합니다. (테스트용)
func SetTimeNow(fn func() time.Time) func() time.Time {
	old := timeNow
	timeNow = fn
	return old
}
