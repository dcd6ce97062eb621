package response

// 业务错误码沿用 HTTP 语义，HTTP 状态码统一 200
const (
	CodeOK              = 0
	CodeBadRequest      = 400
	CodeUnauthorized    = 401
	CodeForbidden       = 403
	CodeNotFound        = 404
	CodeConflict        = 409
	CodeTooManyRequests = 429
	CodeServerError     = 500
	CodeBadGateway      = 502
	CodeServerBusy      = 503
	CodeTimeout         = 504
)

var CodeMsgMap = map[int]string{
	CodeOK:              "OK",
	CodeBadRequest:      "Bad Request",
	CodeUnauthorized:    "Unauthorized",
	CodeForbidden:       "Forbidden",
	CodeNotFound:        "Not Found",
	CodeConflict:        "Conflict",
	CodeTooManyRequests: "Too Many Requests",
	CodeServerError:     "Internal Server Error",
	CodeBadGateway:      "Bad Gateway",
	CodeServerBusy:      "Server Busy",
	CodeTimeout:         "Timeout",
}
