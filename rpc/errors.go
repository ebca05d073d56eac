package rpc

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/jacekv/minisol/runtime"
)

// ErrNotFound reports an account the ledger has no record of.
var ErrNotFound = errors.New("rpc: account not found")

// mapErr converts a ledger validation error into a gRPC status. Execution
// errors never reach this path; they travel inside TxStatus.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var code codes.Code
	switch runtime.KindOf(err) {
	case runtime.KindDecode:
		code = codes.InvalidArgument
	case runtime.KindPrivilege:
		code = codes.PermissionDenied
	case runtime.KindFunds:
		code = codes.FailedPrecondition
	case runtime.KindState:
		code = codes.FailedPrecondition
	case runtime.KindArithmetic:
		code = codes.OutOfRange
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}

// mapRPC converts a gRPC status back into the client-side error surface.
func mapRPC(err error) error {
	if err == nil {
		return nil
	}
	if st, ok := status.FromError(err); ok && st.Code() == codes.NotFound {
		return ErrNotFound
	}
	return err
}
