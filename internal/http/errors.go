package http

import (
	"errors"
	"net/http"
	"strings"

	"moneyboard/internal/auth"
	"moneyboard/internal/core"
	"moneyboard/internal/log"
)

// writeError maps a service error onto its status code. Only unexpected
// failures are logged at error level.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	logger := log.FromContext(ctx)

	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		UnprocessableEntityError(verr.Field, "invalid input: "+verr.Reason).Write(w)
	case errors.Is(err, core.ErrValidation):
		UnprocessableEntityError("", "invalid input: "+err.Error()).Write(w)
	case errors.Is(err, core.ErrNotAuthenticated):
		UnauthorizedError().Write(w)
	case errors.Is(err, core.ErrPermissionDenied):
		// The session went away underneath the request; the client signs
		// out on 401.
		logger.DebugContext(ctx, "Store denied access", "error", err, "path", r.URL.Path)
		UnauthorizedError().Write(w)
	case errors.Is(err, core.ErrNotFound):
		NotFoundError("not found").Write(w)
	case errors.Is(err, core.ErrForbidden):
		ForbiddenError(forbiddenMessage(err)).Write(w)
	default:
		fields := log.NewFields()
		fields[log.FieldMethod] = r.Method
		fields[log.FieldPath] = r.URL.Path
		if owner, ok := auth.PrincipalFromContext(ctx); ok {
			fields = fields.WithOwner(owner)
		}
		log.NewStructuredLogger(logger).LogError(ctx, "Request failed", err, log.ComponentHTTP, r.Method+" "+r.URL.Path, fields)
		InternalServerError().Write(w)
	}
}

// forbiddenMessage keeps the service's reason and drops the wrapped
// sentinel text.
func forbiddenMessage(err error) string {
	reason := strings.TrimSuffix(err.Error(), ": "+core.ErrForbidden.Error())
	if reason == core.ErrForbidden.Error() {
		return reason
	}
	return core.ErrForbidden.Error() + ": " + reason
}
