package responses

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	pkgerrors "github.com/angelmondragon/harvest-fulfillment/pkg/errors"
	"github.com/angelmondragon/harvest-fulfillment/pkg/logger"
)

// RequestIDHeader carries the request id on requests and responses.
const RequestIDHeader = "X-Request-Id"

// Envelope is the body of every JSON response. Exactly one of Data and Error
// is set.
type Envelope struct {
	Data  any        `json:"data,omitempty"`
	Error *ErrorBody `json:"error,omitempty"`
}

// ErrorBody is the public face of a failed request. RequestID lets a buyer or
// seller quote the failure back to support.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Envelope{Data: data})
}

// clientFacing codes keep their own message; everything else answers with
// the generic public message for its code.
var clientFacing = map[pkgerrors.Code]bool{
	pkgerrors.CodeValidation:       true,
	pkgerrors.CodeInvalidSignature: true,
	pkgerrors.CodeNotFound:         true,
	pkgerrors.CodeConflict:         true,
	pkgerrors.CodeStateConflict:    true,
	pkgerrors.CodeIdempotency:      true,
}

func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := pkgerrors.As(err)
	if typed == nil {
		code := pkgerrors.Classify(err)
		typed = pkgerrors.Wrap(code, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	body := &ErrorBody{
		Code:      string(typed.Code()),
		Message:   meta.PublicMessage,
		RequestID: w.Header().Get(RequestIDHeader),
		Retryable: meta.Retryable,
	}
	if clientFacing[typed.Code()] && typed.Message() != "" {
		body.Message = typed.Message()
	}
	if meta.DetailsAllowed {
		body.Details = typed.Details()
	}

	if logg != nil {
		fields := pkgerrors.LogFields(err)
		fields["http_status"] = meta.HTTPStatus
		ctx = logg.WithFields(ctx, fields)
		if meta.HTTPStatus >= http.StatusInternalServerError {
			logg.Error(ctx, "request.error", err)
		} else {
			logg.Warn(ctx, "request.rejected")
		}
	}

	writeJSON(w, meta.HTTPStatus, Envelope{Error: body})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf(`{"level":"error","msg":"failed to encode response","err":"%v"}`, err)
	}
}
