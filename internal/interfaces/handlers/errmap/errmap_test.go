package errmap

import (
	"errors"
	"fmt"
	"testing"

	"bprd-credits/internal/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	cases := map[error]int{
		domain.ErrClaimNotFound:                                 fiber.StatusNotFound,
		fmt.Errorf("create: %w", domain.ErrInsufficientCredits): fiber.StatusUnprocessableEntity,
		domain.ErrInsufficientCreditsAtFinalize:                 fiber.StatusUnprocessableEntity,
		domain.ErrDuplicateClaim:                                fiber.StatusConflict,
		domain.ErrAlreadyApproved:                               fiber.StatusConflict,
		domain.ErrSameApprover:                                  fiber.StatusConflict,
		domain.ErrAlreadyFinalized:                              fiber.StatusConflict,
		domain.ErrInvalidTransition:                             fiber.StatusConflict,
		domain.ErrUnknownUmbrella:                               fiber.StatusBadRequest,
		domain.ErrInvalidHours:                                  fiber.StatusBadRequest,
		errors.New("connection reset"):                          fiber.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, Status(err), err.Error())
	}
}
