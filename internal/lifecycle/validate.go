package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"github.com/cloudnautic/accountctl/internal/identity"
)

// AccessValidator confirms cross-account access into a new account.
type AccessValidator interface {
	Validate(ctx context.Context, accountID, roleName string) error
}

// RoleValidator assumes the provider-created access role inside a new
// account and performs a caller-identity check. IAM propagation for the
// role takes a while after creation, so attempts are retried with
// exponential backoff; running out of attempts is a warning for the
// caller, not a fatal error.
type RoleValidator struct {
	Broker *identity.Broker
	Mgmt   *identity.Lease
	Logger zerolog.Logger

	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxTries        uint
}

// NewRoleValidator builds a validator with the standard retry pacing.
func NewRoleValidator(broker *identity.Broker, mgmt *identity.Lease, logger zerolog.Logger) *RoleValidator {
	return &RoleValidator{
		Broker:          broker,
		Mgmt:            mgmt,
		Logger:          logger,
		InitialInterval: 5 * time.Second,
		MaxInterval:     30 * time.Second,
		MaxTries:        6,
	}
}

func (v *RoleValidator) Validate(ctx context.Context, accountID, roleName string) error {
	roleARN := fmt.Sprintf("arn:aws:iam::%s:role/%s", accountID, roleName)

	attempt := 0
	operation := func() (*identity.Identity, error) {
		attempt++
		lease, err := v.Broker.AssumeFrom(ctx, v.Mgmt, roleARN, "lifecycle-validation")
		if err != nil {
			v.Logger.Warn().
				Err(err).
				Int("attempt", attempt).
				Str("role_arn", roleARN).
				Msg("validation assume-role not yet possible, will retry")
			return nil, err
		}
		return v.Broker.WhoAmI(ctx, lease)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = v.InitialInterval
	bo.MaxInterval = v.MaxInterval

	ident, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(v.MaxTries),
	)
	if err != nil {
		return fmt.Errorf("validating access to account %s: %w", accountID, err)
	}

	v.Logger.Info().
		Str("account_id", accountID).
		Str("arn", ident.ARN).
		Msg("validated cross-account access")
	return nil
}
