package http

// APIResponse is the envelope every signal endpoint answers with. Status
// mirrors the HTTP status code.
type APIResponse struct {
	Status  int         `json:"status" example:"200"`
	Message string      `json:"message" example:"OK"`
	Data    interface{} `json:"data,omitempty"`
}

// APIResponse400Err is the envelope of a rejected pick, outcome or history
// request.
type APIResponse400Err struct {
	Status  int               `json:"status" example:"400"`
	Message string            `json:"message" example:"Bad Request"`
	Data    []ValidationError `json:"data,omitempty"`
}

// APIResponse429Err is returned when a consumer exceeds its pick rate.
type APIResponse429Err struct {
	Status  int    `json:"status" example:"429"`
	Message string `json:"message" example:"Too Many Requests"`
	Data    string `json:"data,omitempty" example:"too many picks, try again shortly"`
}

// APIResponse503Err is returned when no signal could be produced.
type APIResponse503Err struct {
	Status  int    `json:"status" example:"503"`
	Message string `json:"message" example:"Service Unavailable"`
	Data    string `json:"data,omitempty"`
}

// ValidationError describes one rejected request field, named by its JSON or
// query key.
type ValidationError struct {
	Code    string                 `json:"code,omitempty" example:"ERR_ONEOF"`
	Field   string                 `json:"field,omitempty" example:"class"`
	Message string                 `json:"message,omitempty" example:"class must be one of: short, long"`
	Params  map[string]interface{} `json:"params,omitempty"`
}
