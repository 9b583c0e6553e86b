package telegram

import (
	"errors"
	"time"

	"github.com/mymmrac/telego/telegoapi"
)

// Outcome classifies a platform response for the apply stage. Code carries
// the platform's numeric error code when one was returned; RetryAfter is
// positive when the platform asked the bot to back off.
type Outcome struct {
	Code       int
	RetryAfter time.Duration
	Err        error
}

func (o Outcome) OK() bool {
	return o.Err == nil
}

// RateLimited reports whether the platform returned a back-off request with
// an explicit wait time.
func (o Outcome) RateLimited() bool {
	return o.RetryAfter > 0
}

// Rejected reports whether the platform refused the request in a way a retry
// cannot fix.
func (o Outcome) Rejected(codes ...int) bool {
	for _, c := range codes {
		if o.Code == c {
			return true
		}
	}
	return false
}

// Classify maps an error from a bot API call onto an Outcome. Transport
// failures have Code 0 and are treated as transient by callers.
func Classify(err error) Outcome {
	if err == nil {
		return Outcome{}
	}

	var apiErr *telegoapi.Error
	if errors.As(err, &apiErr) {
		o := Outcome{Code: apiErr.ErrorCode, Err: err}
		if apiErr.Parameters != nil && apiErr.Parameters.RetryAfter > 0 {
			o.RetryAfter = time.Duration(apiErr.Parameters.RetryAfter) * time.Second
		}
		return o
	}
	return Outcome{Err: err}
}
