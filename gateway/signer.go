package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// timeNowMillis 可在测试中替换。
var timeNowMillis = func() int64 { return time.Now().UnixMilli() }

// Signer 生成 FTX 风格的请求签名头。
type Signer struct {
	APIKey     string
	Secret     string
	Subaccount string
}

// Sign 返回 hex(HMAC-SHA256(secret, payload))。
func (s Signer) Sign(payload string) string {
	mac := hmac.New(sha256.New, []byte(s.Secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Apply 为请求设置签名头。signPath 以 /api/ 开头并包含 query。
func (s Signer) Apply(req *http.Request, method, signPath string, body []byte) {
	ts := strconv.FormatInt(timeNowMillis(), 10)
	payload := ts + method + signPath + string(body)
	req.Header.Set("FTX-KEY", s.APIKey)
	req.Header.Set("FTX-SIGN", s.Sign(payload))
	req.Header.Set("FTX-TS", ts)
	if s.Subaccount != "" {
		req.Header.Set("FTX-SUBACCOUNT", url.PathEscape(s.Subaccount))
	}
}
