package api

import (
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/listenupapp/labelsync/internal/errors"
	"github.com/listenupapp/labelsync/internal/http/response"
)

// EnvelopeVersion is the response envelope format version.
const EnvelopeVersion = response.Version

// APIEnvelope is the body of every successful response.
type APIEnvelope = response.Envelope

// APIErrorEnvelope is the body of every failed response.
type APIErrorEnvelope = response.ErrorEnvelope

// EnvelopeTransformer wraps huma response bodies in the versioned envelope.
// Errors become an APIErrorEnvelope; everything else is data.
func EnvelopeTransformer(_ huma.Context, status string, v any) (any, error) {
	code, _ := strconv.Atoi(status)

	switch body := v.(type) {
	case APIEnvelope, APIErrorEnvelope:
		return body, nil
	case *APIError:
		return response.Failure(body.Code, body.Message, body.Details), nil
	case *domainerrors.Error:
		return response.Failure(string(body.Code), body.Message, body.Details), nil
	case error:
		return response.Failure(statusToCode(code), body.Error(), nil), nil
	}

	if code >= 400 {
		return response.Failure(statusToCode(code), "request failed", v), nil
	}
	return response.Success(v), nil
}
