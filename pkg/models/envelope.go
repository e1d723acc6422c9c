package models

import (
	"time"

	"github.com/google/uuid"
)

// Request wraps every request body sent to the content service
type Request struct {
	ID      string      `json:"id,omitempty"`
	Ver     string      `json:"ver,omitempty"`
	Request interface{} `json:"request"`
}

// Response is the envelope returned by every content service call
type Response struct {
	ID           string         `json:"id"`
	Ver          string         `json:"ver"`
	Ts           string         `json:"ts"`
	Params       ResponseParams `json:"params"`
	ResponseCode string         `json:"responseCode"`
	Result       interface{}    `json:"result"`
}

// ResponseParams carries the status and error details of a response
type ResponseParams struct {
	ResMsgID string `json:"resmsgid"`
	MsgID    string `json:"msgid,omitempty"`
	Status   string `json:"status"`
	Err      string `json:"err,omitempty"`
	ErrMsg   string `json:"errmsg,omitempty"`
}

// Response codes
const (
	ResponseCodeOK               = "OK"
	ResponseCodeClientError      = "CLIENT_ERROR"
	ResponseCodeResourceNotFound = "RESOURCE_NOT_FOUND"
	ResponseCodeServerError      = "SERVER_ERROR"
)

// Response statuses
const (
	ResponseStatusSuccessful = "successful"
	ResponseStatusFailed     = "failed"
)

// NewResponse builds a successful envelope for an API id
func NewResponse(apiID string, result interface{}) *Response {
	return &Response{
		ID:  apiID,
		Ver: "1.0",
		Ts:  time.Now().UTC().Format(time.RFC3339),
		Params: ResponseParams{
			ResMsgID: uuid.New().String(),
			Status:   ResponseStatusSuccessful,
		},
		ResponseCode: ResponseCodeOK,
		Result:       result,
	}
}

// NewErrorResponse builds a failed envelope
func NewErrorResponse(apiID, responseCode, errCode, errMsg string) *Response {
	return &Response{
		ID:  apiID,
		Ver: "1.0",
		Ts:  time.Now().UTC().Format(time.RFC3339),
		Params: ResponseParams{
			ResMsgID: uuid.New().String(),
			Status:   ResponseStatusFailed,
			Err:      errCode,
			ErrMsg:   errMsg,
		},
		ResponseCode: responseCode,
		Result:       map[string]interface{}{},
	}
}
