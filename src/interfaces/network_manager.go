package interfaces

import "context"

// -----------------------------------------------------------------------------
// INetworkManager defines the contract for HTTP requests with retry,
// timeout and rate-limit handling.
// -----------------------------------------------------------------------------

type INetworkManager interface {

	// -----------------------------------------------------------------------------

	// Get performs a GET request with query parameters and headers.
	// Returns the response body as bytes or an error.
	Get(ctx context.Context, url string, params map[string]string, headers map[string]string) ([]byte, error)

	// -----------------------------------------------------------------------------

	// PostJSON performs a POST request with a JSON body and headers.
	PostJSON(ctx context.Context, url string, body any, headers map[string]string) ([]byte, error)

	// -----------------------------------------------------------------------------

	// PostJSONOnce performs a POST request with a single attempt, never
	// retried. Required for order placement: the upstream may have accepted
	// a request that failed on our side, so re-sending can repeat the
	// financial side effect.
	PostJSONOnce(ctx context.Context, url string, body any, headers map[string]string) ([]byte, error)
}
