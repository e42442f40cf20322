package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientCredits           = errors.New("Insufficient credits")
	ErrInsufficientCreditsAtFinalize = errors.New("Insufficient credits at finalize; claim declined")
	ErrAlreadyApproved               = errors.New("Already approved by this role")
	ErrSameApprover                  = errors.New("The second approval must come from a different user")
	ErrAlreadyFinalized              = errors.New("Claim already finalized")
	ErrInvalidTransition             = errors.New("Invalid state transition")
	ErrDuplicateClaim                = errors.New("A claim for this umbrella and qualification is already in progress")
	ErrNotFound                      = errors.New("Not found")

	ErrUnknownUmbrella      = errors.New("Unknown umbrella")
	ErrUnknownQualification = errors.New("Unknown qualification")
	ErrInvalidHours         = errors.New("Theory and practical hours must be non-negative and not both zero")
	ErrInvalidAmount        = errors.New("Amount must be a non-negative number")
	ErrInvalidRole          = errors.New("Approver role must be poc or admin")
)

// Entity-specific not-found errors; all match ErrNotFound with errors.Is.
var (
	ErrStudentNotFound       = fmt.Errorf("Student %w", ErrNotFound)
	ErrClaimNotFound         = fmt.Errorf("Claim %w", ErrNotFound)
	ErrPendingCreditNotFound = fmt.Errorf("Pending credit %w", ErrNotFound)
	ErrCertificateNotFound   = fmt.Errorf("Certificate %w", ErrNotFound)
)
