package backend

import "errors"

// Sentinel errors for jobs backend failures. Server prose is mapped onto these at the adapter
// boundary; nothing above this package compares message strings.
var (
	ErrUnreachable       = errors.New("jobs backend unreachable")
	ErrTimeout           = errors.New("jobs backend timeout")
	ErrRequestFailed     = errors.New("jobs backend request failed")
	ErrCredentialInvalid = errors.New("credential invalid or expired")
	ErrDuplicateJob      = errors.New("job already exists")
	ErrUnsupported       = errors.New("operation not supported by this backend")
	ErrDecode            = errors.New("invalid jobs backend response")
)

// credentialSentinels are the exact messages the server uses to signal a bad credential.
var credentialSentinels = map[string]bool{
	"invalid token please login again": true,
	"Invalid token or expired":         true,
	"Token or user details missing":    true,
}

const duplicateJobMessage = "Job Already Exist !"

// IsCredentialSentinel reports whether msg is one of the server's credential-invalid messages.
func IsCredentialSentinel(msg string) bool {
	return credentialSentinels[msg]
}
