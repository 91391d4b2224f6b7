package worker

import "time"

// RateLimiter counts requests in the current wall-clock second. It is owned
// by one session and is not safe for concurrent use.
type RateLimiter struct {
	ceiling int
	second  int64
	count   int
}

func NewRateLimiter(ceiling int) *RateLimiter {
	return &RateLimiter{ceiling: ceiling}
}

// Allow records one request at now and reports whether it fits the budget.
func (r *RateLimiter) Allow(now time.Time) bool {
	sec := now.Unix()
	if sec != r.second {
		r.second = sec
		r.count = 0
	}
	r.count++
	return r.count <= r.ceiling
}
