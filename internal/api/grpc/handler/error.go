package handler

import (
	"sort"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/status"

	"github.com/dtroode/identity-server/internal/apierrors"
)

// handleError converts a service error into a gRPC status. Validation
// failures carry their per-field messages as a BadRequest detail.
func handleError(err error) error {
	apiErr := apierrors.From(err)
	st := status.New(apiErr.GRPCCode(), apiErr.Message)

	if len(apiErr.Fields) == 0 {
		return st.Err()
	}

	fields := make([]string, 0, len(apiErr.Fields))
	for field := range apiErr.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	badRequest := &errdetails.BadRequest{}
	for _, field := range fields {
		badRequest.FieldViolations = append(badRequest.FieldViolations, &errdetails.BadRequest_FieldViolation{
			Field:       field,
			Description: apiErr.Fields[field],
		})
	}

	detailed, detailErr := st.WithDetails(badRequest)
	if detailErr != nil {
		return st.Err()
	}
	return detailed.Err()
}
