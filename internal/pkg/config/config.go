// Package config holds the tunable business constants of the settlement core.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/Agape/internal/pkg/env"
)

const (
	DefaultReferralBonusRate = "0.05"
	DefaultWithdrawalFeeRate = "0.05"
	DefaultMinimumWithdrawal = "25.00"
	DefaultLockWaitTimeout   = 5 * time.Second
)

// Settings are read once at startup and passed to the engines.
type Settings struct {
	// ReferralBonusRate is the share of a plan contribution paid to the referrer
	ReferralBonusRate decimal.Decimal
	// WithdrawalFeeRate is the share of a withdrawal kept as fee
	WithdrawalFeeRate decimal.Decimal
	// MinimumWithdrawal is enforced by the API, not by the core
	MinimumWithdrawal decimal.Decimal
	// LockWaitTimeout bounds how long a transaction waits for a row lock
	LockWaitTimeout time.Duration
}

// Default returns the settings used when nothing is configured.
func Default() Settings {
	return Settings{
		ReferralBonusRate: decimal.RequireFromString(DefaultReferralBonusRate),
		WithdrawalFeeRate: decimal.RequireFromString(DefaultWithdrawalFeeRate),
		MinimumWithdrawal: decimal.RequireFromString(DefaultMinimumWithdrawal),
		LockWaitTimeout:   DefaultLockWaitTimeout,
	}
}

// Load reads the settings from the environment and validates them.
func Load() (Settings, error) {
	s := Default()

	var err error
	if s.ReferralBonusRate, err = decimalFromEnv("REFERRAL_BONUS_RATE", s.ReferralBonusRate); err != nil {
		return s, err
	}
	if s.WithdrawalFeeRate, err = decimalFromEnv("WITHDRAWAL_FEE_RATE", s.WithdrawalFeeRate); err != nil {
		return s, err
	}
	if s.MinimumWithdrawal, err = decimalFromEnv("MIN_WITHDRAWAL_AMOUNT", s.MinimumWithdrawal); err != nil {
		return s, err
	}
	s.LockWaitTimeout = env.GetEnvDuration("DB_LOCK_WAIT_TIMEOUT", s.LockWaitTimeout)

	return s, s.Validate()
}

// Validate rejects rates outside [0,1), a negative floor and a lock timeout below one second.
func (s Settings) Validate() error {
	one := decimal.NewFromInt(1)
	if s.ReferralBonusRate.IsNegative() || s.ReferralBonusRate.GreaterThanOrEqual(one) {
		return errors.New("referral bonus rate must be in [0, 1)")
	}
	if s.WithdrawalFeeRate.IsNegative() || s.WithdrawalFeeRate.GreaterThanOrEqual(one) {
		return errors.New("withdrawal fee rate must be in [0, 1)")
	}
	if s.MinimumWithdrawal.IsNegative() {
		return errors.New("minimum withdrawal must not be negative")
	}
	if s.LockWaitTimeout < time.Second {
		return errors.New("lock wait timeout must be at least 1s")
	}
	return nil
}

func decimalFromEnv(key string, def decimal.Decimal) (decimal.Decimal, error) {
	raw := strings.TrimSpace(env.GetEnv(key, ""))
	if raw == "" {
		return def, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return def, errors.New(key + " is not a decimal: " + raw)
	}
	return v, nil
}
