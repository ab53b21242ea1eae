package common

// RequestIDHeaderName is the HTTP header used to carry the request id
// assigned by the boundary layer.
const RequestIDHeaderName = "X-Request-Id"
