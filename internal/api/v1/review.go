package apiv1

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/Agape/app/models"
)

type reviewFunc func(ctx context.Context, withdrawalID uint) (*models.Withdrawal, error)

func (s *APIServer) reviewWithdrawal(c *fiber.Ctx, review reviewFunc) error {
	id, err := paramID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	wd, err := review(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(wd)
}
