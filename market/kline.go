package market

import "time"

// Kline represents OHLC data.
type Kline struct {
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	Ts     time.Time
}

// LatestKline 返回开始时间最晚的一根 K 线；空切片返回 false。
func LatestKline(ks []Kline) (Kline, bool) {
	if len(ks) == 0 {
		return Kline{}, false
	}
	latest := ks[0]
	for _, k := range ks[1:] {
		if k.Ts.After(latest.Ts) {
			latest = k
		}
	}
	return latest, true
}
