package apiv1

import (
	"github.com/go-playground/validator/v10"

	"github.com/ManuelReschke/Agape/internal/pkg/config"
	"github.com/ManuelReschke/Agape/internal/pkg/ledger"
	"github.com/ManuelReschke/Agape/internal/pkg/plans"
	"github.com/ManuelReschke/Agape/internal/pkg/queries"
	"github.com/ManuelReschke/Agape/internal/pkg/referral"
	"github.com/ManuelReschke/Agape/internal/pkg/settlement"
	"github.com/ManuelReschke/Agape/internal/pkg/users"
	"github.com/ManuelReschke/Agape/internal/pkg/withdrawal"
)

// Services are the core components the API calls into
type Services struct {
	Users      *users.Service
	Catalog    *plans.Catalog
	Settlement *settlement.Engine
	Ledger     *ledger.Ledger
	Referral   *referral.Engine
	Withdrawal *withdrawal.Workflow
	Queries    *queries.Service
	Settings   config.Settings
}

// APIServer turns HTTP requests into calls of the settlement core
type APIServer struct {
	svc      Services
	validate *validator.Validate
}

// NewAPIServer creates a new API server instance
func NewAPIServer(svc Services) *APIServer {
	return &APIServer{svc: svc, validate: validator.New()}
}
