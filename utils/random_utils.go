package utils

import (
	"crypto/rand"
)

// 追踪码字符集，去掉了易混淆的 0/O/1/I
const trackingCodeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// GenerateTrackingCode 生成形如 GC-XXXXXXXXXX 的设备追踪码
func GenerateTrackingCode() string {
	buf := make([]byte, 10)
	if _, err := rand.Read(buf); err != nil {
		panic("generate tracking code failed")
	}

	code := make([]byte, 10)
	for i, b := range buf {
		code[i] = trackingCodeAlphabet[int(b)%len(trackingCodeAlphabet)]
	}

	return "GC-" + string(code)
}
