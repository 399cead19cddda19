package apperror

// ErrorBody is the JSON shape of a failure.  Internal details never appear
// here; RequestID lets operators correlate the response with server logs.
type ErrorBody struct {
	Code       Code     `json:"code"`
	Message    string   `json:"message"`
	Details    []string `json:"details,omitempty"`
	RetryAfter int      `json:"retry_after,omitempty"`
	RequestID  string   `json:"request_id,omitempty"`
}

// ErrorResponse is the envelope written for every failed request.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ToErrorResponse converts an error into its client-safe envelope and the
// status to send.  Errors outside the taxonomy collapse to INTERNAL_ERROR.
func ToErrorResponse(err error, requestID string) (int, ErrorResponse) {
	appErr, ok := As(err)
	if !ok {
		appErr = Internal(err)
	}
	body := ErrorBody{
		Code:       appErr.Code,
		Message:    appErr.Message,
		Details:    appErr.Details,
		RetryAfter: appErr.RetryAfterSeconds(),
		RequestID:  requestID,
	}
	if appErr.Code == CodeInternal {
		body.Message = "Internal server error"
		body.Details = nil
	}
	return appErr.HTTPStatus(), ErrorResponse{Error: body}
}
