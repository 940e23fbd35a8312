package errors

import (
	stderrors "errors"
)

// Payload is the serializable form of an error sent back by process-pool and
// cluster workers.
type Payload struct {
	Code    ErrorCode      `json:"code,omitempty"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Cause   string         `json:"cause,omitempty"`
}

// ToPayload converts any error to a Payload. Non-AppErrors only keep their message.
func ToPayload(err error) *Payload {
	if err == nil {
		return nil
	}
	appErr, ok := AsAppError(err)
	if !ok {
		return &Payload{Message: err.Error()}
	}
	p := &Payload{Code: appErr.Code, Message: appErr.Message, Details: appErr.Details}
	if appErr.Cause != nil {
		p.Cause = appErr.Cause.Error()
	}
	return p
}

// FromPayload rebuilds an error from its Payload.
func FromPayload(p *Payload) error {
	if p == nil {
		return nil
	}
	if p.Code == "" {
		return stderrors.New(p.Message)
	}
	e := &AppError{Code: p.Code, Message: p.Message, Details: p.Details}
	if p.Cause != "" {
		e.Cause = stderrors.New(p.Cause)
	}
	return e
}
