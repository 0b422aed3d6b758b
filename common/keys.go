package common

type contextKey string

// HttpClientKey carries the *http.Client used for outgoing requests.
const HttpClientKey contextKey = "http-client"
