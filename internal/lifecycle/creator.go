package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	orgtypes "github.com/aws/aws-sdk-go-v2/service/organizations/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"

	"github.com/cloudnautic/accountctl/internal/aws"
	"github.com/cloudnautic/accountctl/internal/orgtree"
)

// CounterStore is the sequence-number surface the creator depends on.
type CounterStore interface {
	Read(ctx context.Context, path string) (int, error)
	IncrementFrom(ctx context.Context, path string, expected int) (int, error)
}

// OUResolver is the organizational-unit surface the creator depends on.
type OUResolver interface {
	FindByName(ctx context.Context, name string) (*orgtree.OU, error)
	ResolveDirect(ctx context.Context, id string) (*orgtree.OU, error)
	Move(ctx context.Context, accountID, destOUID string) error
}

// Creator drives the creation state machine: counter snapshot, email
// derivation, CreateAccount, status polling, OU placement, access
// validation, and the single counter commit. The counter only advances
// after the creation it fed has durably succeeded.
type Creator struct {
	Org       aws.OrganizationsAPI
	Counter   CounterStore
	Resolver  OUResolver
	Validator AccessValidator

	EmailPrefix    string
	EmailDomain    string
	ParameterPath  string
	ValidationRole string

	PollInterval    time.Duration
	PollMaxAttempts int
	Wait            WaitStrategy
	Logger          zerolog.Logger
}

// Run executes one creation. Fatal errors before any mutating call return
// a nil record; after submission the returned record reflects the terminal
// state even when err is non-nil.
func (c *Creator) Run(ctx context.Context, req CreateRequest) (*AccountRecord, error) {
	rec := &AccountRecord{
		Name:      req.Name,
		CreatedAt: time.Now().UTC(),
	}

	var uniqueNumber *int
	if req.EmailOverride != "" {
		rec.Email = req.EmailOverride
		c.Logger.Info().Str("email", rec.Email).Msg("using provided email, counter skipped")
	} else {
		n, err := c.Counter.Read(ctx, c.ParameterPath)
		if err != nil {
			return nil, err
		}
		uniqueNumber = &n
		rec.UniqueNumber = uniqueNumber
		rec.Email = GenerateEmail(c.EmailPrefix, n, req.Name, c.EmailDomain)
		c.Logger.Info().Int("unique_number", n).Str("email", rec.Email).Msg("account email derived from counter")
	}

	// With a custom email and no OU flags, placement is skipped entirely.
	skipOU := req.EmailOverride != "" && req.OUName == "" && req.OUID == ""

	var targetOU *orgtree.OU
	if !skipOU {
		var err error
		if req.OUID != "" {
			targetOU, err = c.Resolver.ResolveDirect(ctx, req.OUID)
		} else {
			targetOU, err = c.Resolver.FindByName(ctx, req.OUName)
		}
		if err != nil {
			return nil, err
		}
		rec.OUID = targetOU.ID
		rec.OUName = targetOU.Name
	}

	if req.DryRun {
		rec.Status = StatusDryRun
		ev := c.Logger.Info().Str("account_name", req.Name).Str("email", rec.Email)
		if uniqueNumber != nil {
			ev = ev.Int("counter", *uniqueNumber).Int("counter_after_commit", *uniqueNumber+1)
		}
		ev.Msg("dry run, no changes made")
		return rec, nil
	}

	var tags []orgtypes.Tag
	for k, v := range req.Tags {
		tags = append(tags, orgtypes.Tag{Key: awssdk.String(k), Value: awssdk.String(v)})
	}

	out, err := c.Org.CreateAccount(ctx, &organizations.CreateAccountInput{
		Email:       awssdk.String(rec.Email),
		AccountName: awssdk.String(req.Name),
		Tags:        tags,
	})
	if err != nil {
		return nil, fmt.Errorf("CreateAccount: %w", err)
	}
	requestID := awssdk.ToString(out.CreateAccountStatus.Id)
	c.Logger.Info().Str("request_id", requestID).Msg("account creation submitted")

	accountID, err := c.pollCreation(ctx, requestID)
	if err != nil {
		rec.Status = StatusFailed
		rec.FailureReason = err.Error()
		if errors.Is(err, ErrCreationTimeout) {
			rec.Retriable = true
		}
		return rec, err
	}
	rec.AccountID = accountID

	if targetOU != nil {
		if err := c.Resolver.Move(ctx, accountID, targetOU.ID); err != nil {
			// The account exists; a failed move is partial success, never
			// a rollback.
			rec.OUMoveFailed = true
			rec.Warnings = append(rec.Warnings, "account created but ou move failed: "+err.Error())
			c.Logger.Warn().Err(err).Str("account_id", accountID).Msg("ou move failed")
		}
	}

	if c.Validator != nil {
		if err := c.Validator.Validate(ctx, accountID, c.ValidationRole); err != nil {
			rec.Warnings = append(rec.Warnings, "access validation failed: "+err.Error())
			c.Logger.Warn().Err(err).Str("account_id", accountID).Msg("could not validate account access")
		} else {
			rec.Validated = true
		}
	}

	if uniqueNumber != nil {
		committed := true
		if _, err := c.Counter.IncrementFrom(ctx, c.ParameterPath, *uniqueNumber); err != nil {
			committed = false
			rec.Warnings = append(rec.Warnings, "counter increment failed: "+err.Error())
			c.Logger.Warn().Err(err).Msg("counter increment failed, account exists regardless")
		}
		rec.CounterCommitted = &committed
	}

	rec.Status = StatusSucceeded
	return rec, nil
}

// pollCreation polls the creation request until a terminal state or the
// attempt bound. Transient describe errors consume an attempt and stay in
// the loop.
func (c *Creator) pollCreation(ctx context.Context, requestID string) (string, error) {
	for attempt := 1; attempt <= c.PollMaxAttempts; attempt++ {
		out, err := c.Org.DescribeCreateAccountStatus(ctx, &organizations.DescribeCreateAccountStatusInput{
			CreateAccountRequestId: awssdk.String(requestID),
		})
		if err != nil {
			ev := c.Logger.Warn().Int("attempt", attempt).Int("max_attempts", c.PollMaxAttempts)
			var ae smithy.APIError
			if errors.As(err, &ae) {
				ev = ev.Str("code", ae.ErrorCode())
			}
			ev.Err(err).Msg("describe creation status failed, retrying")
			c.Wait(c.PollInterval)
			continue
		}

		status := out.CreateAccountStatus
		c.Logger.Info().
			Str("state", string(status.State)).
			Int("attempt", attempt).
			Int("max_attempts", c.PollMaxAttempts).
			Msg("account creation status")

		switch status.State {
		case orgtypes.CreateAccountStateSucceeded:
			return awssdk.ToString(status.AccountId), nil
		case orgtypes.CreateAccountStateFailed:
			return "", fmt.Errorf("%w: %s", ErrCreationFailed, string(status.FailureReason))
		}

		c.Wait(c.PollInterval)
	}
	return "", ErrCreationTimeout
}
