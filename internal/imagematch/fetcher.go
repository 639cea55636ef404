package imagematch

import "context"

// FetchStatus tags the variant held by a FetchOutcome.
type FetchStatus int

// Fetch statuses.
const (
	FetchSuccess FetchStatus = iota
	FetchNotFound
	FetchRateLimited
	FetchTransientError
	FetchPermanentError
)

// String implements fmt.Stringer.
func (s FetchStatus) String() string {
	switch s {
	case FetchSuccess:
		return "success"
	case FetchNotFound:
		return "not_found"
	case FetchRateLimited:
		return "rate_limited"
	case FetchTransientError:
		return "transient_error"
	case FetchPermanentError:
		return "permanent_error"
	default:
		return "unknown"
	}
}

// FetchOutcome is the result of retrieving one image.
// Body is set only for FetchSuccess; Reason explains the failure variants.
type FetchOutcome struct {
	Reason string
	Body   []byte
	Status FetchStatus
}

// Success builds a successful outcome.
func Success(body []byte) FetchOutcome {
	return FetchOutcome{Status: FetchSuccess, Body: body}
}

// NotFound builds a not-found outcome.
func NotFound() FetchOutcome {
	return FetchOutcome{Status: FetchNotFound, Reason: "not found"}
}

// RateLimited builds a rate-limited outcome.
func RateLimited() FetchOutcome {
	return FetchOutcome{Status: FetchRateLimited, Reason: "rate limited"}
}

// TransientError builds a retryable failure outcome.
func TransientError(reason string) FetchOutcome {
	return FetchOutcome{Status: FetchTransientError, Reason: reason}
}

// PermanentError builds a non-retryable failure outcome.
func PermanentError(reason string) FetchOutcome {
	return FetchOutcome{Status: FetchPermanentError, Reason: reason}
}

// Fetcher retrieves image bytes. Implementations own timeouts and retries.
type Fetcher interface {
	Fetch(ctx context.Context, url string) FetchOutcome
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, url string) FetchOutcome

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, url string) FetchOutcome {
	return f(ctx, url)
}
