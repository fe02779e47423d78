package middleware

// Keys set on the gin context by the middleware chain.
const (
	// RequestIDKey holds the request correlation id (string). The logger reads
	// the same key.
	RequestIDKey = "request_id"
	// APIClientKey holds a masked form of the API key that authenticated the
	// request.
	APIClientKey = "api_client"
)
