package http

var (
	BearerToken = bearerToken
	ClientIP    = clientIP
)
