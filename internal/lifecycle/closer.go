package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	orgtypes "github.com/aws/aws-sdk-go-v2/service/organizations/types"
	"github.com/rs/zerolog"

	"github.com/cloudnautic/accountctl/internal/aws"
)

// MemberAccount is a live snapshot of a member account used during closure
// resolution. Never cached across invocations.
type MemberAccount struct {
	ID     string
	Name   string
	Email  string
	Status string
}

// ConfirmFunc asks the operator to confirm a bulk closure before any
// mutating call. Returning false aborts the run.
type ConfirmFunc func(accounts []MemberAccount) (bool, error)

// Closer drives the closure state machine: target resolution, precondition
// checks, the closure request, and optional status polling. Closing an
// already-closed account is success, and one account's failure never aborts
// the rest of a bulk run.
type Closer struct {
	Org     aws.OrganizationsAPI
	Confirm ConfirmFunc

	PollInterval    time.Duration
	PollMaxAttempts int
	Wait            WaitStrategy
	Logger          zerolog.Logger
}

// Run executes one closure. The outcome slice holds one entry per resolved
// target; err is non-nil for fatal resolution and policy errors, and for
// bulk runs where at least one account failed.
func (c *Closer) Run(ctx context.Context, req CloseRequest) ([]ClosureOutcome, error) {
	mgmtID, err := c.managementAccountID(ctx)
	if err != nil {
		return nil, err
	}

	switch {
	case req.Target.All:
		return c.closeAll(ctx, req, mgmtID)
	case req.Target.Email != "":
		acct, err := c.findByEmail(ctx, req.Target.Email)
		if err != nil {
			return nil, err
		}
		return c.closeSingle(ctx, req, *acct, mgmtID)
	case req.Target.AccountID != "":
		acct, err := c.describeAccount(ctx, req.Target.AccountID)
		if err != nil {
			return nil, err
		}
		return c.closeSingle(ctx, req, *acct, mgmtID)
	default:
		return nil, fmt.Errorf("no closure target given")
	}
}

func (c *Closer) closeSingle(ctx context.Context, req CloseRequest, acct MemberAccount, mgmtID string) ([]ClosureOutcome, error) {
	// Hard policy stop, before any call and regardless of dry-run.
	if acct.ID == mgmtID {
		return nil, fmt.Errorf("%w: %s", ErrManagementAccount, acct.ID)
	}

	outcome := c.closeOne(ctx, req, acct)
	if outcome.Error != "" {
		return []ClosureOutcome{outcome}, fmt.Errorf("closing account %s: %s", acct.ID, outcome.Error)
	}
	return []ClosureOutcome{outcome}, nil
}

func (c *Closer) closeAll(ctx context.Context, req CloseRequest, mgmtID string) ([]ClosureOutcome, error) {
	members, err := c.listMembers(ctx, mgmtID)
	if err != nil {
		return nil, err
	}

	var active, skipped []MemberAccount
	for _, m := range members {
		if m.Status == CloseStateActive {
			active = append(active, m)
		} else {
			skipped = append(skipped, m)
		}
	}

	c.Logger.Info().
		Int("total", len(members)).
		Int("active", len(active)).
		Int("already_closed", len(skipped)).
		Msg("resolved member accounts")

	var outcomes []ClosureOutcome
	for _, m := range skipped {
		outcomes = append(outcomes, ClosureOutcome{
			AccountID:      m.ID,
			Name:           m.Name,
			Email:          m.Email,
			PreviousStatus: m.Status,
			FinalStatus:    CloseStateAlreadyClosed,
		})
	}

	if len(active) == 0 {
		c.Logger.Info().Msg("no active member accounts to close")
		return outcomes, nil
	}

	// Self-imposed provider ceiling: 10% of member accounts per rolling
	// 30-day window, floored at 10 and capped at 1000. No local history is
	// kept, so a large batch only gets a pre-flight warning.
	ceiling := RateCeiling(len(members))
	if len(active) > ceiling {
		c.Logger.Warn().
			Int("batch", len(active)).
			Int("ceiling", ceiling).
			Msg("batch exceeds the provider's 30-day closure ceiling; later closures may be rejected")
	}

	if req.DryRun {
		for _, m := range active {
			outcomes = append(outcomes, ClosureOutcome{
				AccountID:      m.ID,
				Name:           m.Name,
				Email:          m.Email,
				PreviousStatus: m.Status,
				FinalStatus:    CloseStateActive,
			})
		}
		c.Logger.Info().Int("would_close", len(active)).Msg("dry run, no changes made")
		return outcomes, nil
	}

	if c.Confirm == nil {
		return nil, fmt.Errorf("bulk closure requires confirmation")
	}
	ok, err := c.Confirm(active)
	if err != nil {
		return nil, fmt.Errorf("reading confirmation: %w", err)
	}
	if !ok {
		return nil, ErrAborted
	}

	failures := 0
	for i, m := range active {
		c.Logger.Info().
			Int("index", i+1).
			Int("count", len(active)).
			Str("account_id", m.ID).
			Str("account_name", m.Name).
			Msg("closing account")

		outcome := c.closeOne(ctx, req, m)
		if outcome.Error != "" {
			failures++
		}
		outcomes = append(outcomes, outcome)
	}

	if failures > 0 {
		return outcomes, fmt.Errorf("%d of %d account(s) failed to close", failures, len(active))
	}
	return outcomes, nil
}

// closeOne runs precheck, closure request, and polling for a single
// account. Failures are captured in the outcome, never panicking the run.
func (c *Closer) closeOne(ctx context.Context, req CloseRequest, acct MemberAccount) ClosureOutcome {
	outcome := ClosureOutcome{
		AccountID:      acct.ID,
		Name:           acct.Name,
		Email:          acct.Email,
		PreviousStatus: acct.Status,
	}

	// Idempotency: a non-active account needs no close call at all.
	if acct.Status != CloseStateActive {
		outcome.FinalStatus = CloseStateAlreadyClosed
		c.Logger.Info().
			Str("account_id", acct.ID).
			Str("status", acct.Status).
			Msg("account not active, skipping closure")
		return outcome
	}

	if req.DryRun {
		outcome.FinalStatus = CloseStateActive
		c.Logger.Info().Str("account_id", acct.ID).Msg("dry run, would close account")
		return outcome
	}

	already, err := c.requestClose(ctx, acct.ID)
	if err != nil {
		outcome.FinalStatus = CloseStateActive
		outcome.Error = err.Error()
		c.Logger.Error().Err(err).Str("account_id", acct.ID).Msg("closure request rejected")
		return outcome
	}
	if already {
		outcome.FinalStatus = CloseStateAlreadyClosed
		c.Logger.Info().Str("account_id", acct.ID).Msg("account already closed")
		return outcome
	}
	outcome.RequestedClosure = true

	if req.NoWait {
		outcome.FinalStatus = CloseStateRequested
		return outcome
	}

	outcome.FinalStatus = c.pollClosure(ctx, acct.ID)
	return outcome
}

// requestClose issues the closure call, treating "already closed" from the
// provider as success.
func (c *Closer) requestClose(ctx context.Context, accountID string) (alreadyClosed bool, err error) {
	_, err = c.Org.CloseAccount(ctx, &organizations.CloseAccountInput{
		AccountId: awssdk.String(accountID),
	})
	if err != nil {
		var closed *orgtypes.AccountAlreadyClosedException
		if errors.As(err, &closed) {
			return true, nil
		}
		return false, fmt.Errorf("CloseAccount(%s): %w", accountID, err)
	}
	return false, nil
}

// pollClosure waits for the account to leave ACTIVE. Closure is
// asynchronous; running out the bound is a warning, not a failure.
func (c *Closer) pollClosure(ctx context.Context, accountID string) string {
	for attempt := 1; attempt <= c.PollMaxAttempts; attempt++ {
		acct, err := c.describeAccount(ctx, accountID)
		if err != nil {
			c.Logger.Warn().
				Err(err).
				Int("attempt", attempt).
				Msg("describe account failed during closure poll, retrying")
			c.Wait(c.PollInterval)
			continue
		}

		c.Logger.Info().
			Str("account_id", accountID).
			Str("status", acct.Status).
			Int("attempt", attempt).
			Int("max_attempts", c.PollMaxAttempts).
			Msg("account closure status")

		if acct.Status != CloseStateActive {
			return acct.Status
		}
		c.Wait(c.PollInterval)
	}

	c.Logger.Warn().
		Str("account_id", accountID).
		Msg("account still active after polling bound; closure may still complete")
	return CloseStateActive
}

func (c *Closer) managementAccountID(ctx context.Context) (string, error) {
	out, err := c.Org.DescribeOrganization(ctx, &organizations.DescribeOrganizationInput{})
	if err != nil {
		return "", fmt.Errorf("DescribeOrganization: %w", err)
	}
	return awssdk.ToString(out.Organization.MasterAccountId), nil
}

func (c *Closer) describeAccount(ctx context.Context, accountID string) (*MemberAccount, error) {
	out, err := c.Org.DescribeAccount(ctx, &organizations.DescribeAccountInput{
		AccountId: awssdk.String(accountID),
	})
	if err != nil {
		return nil, fmt.Errorf("DescribeAccount(%s): %w", accountID, err)
	}
	return accountFrom(*out.Account), nil
}

// findByEmail scans the paginated account list for an exact email match;
// the provider has no server-side lookup by email.
func (c *Closer) findByEmail(ctx context.Context, email string) (*MemberAccount, error) {
	paginator := organizations.NewListAccountsPaginator(c.Org, &organizations.ListAccountsInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("ListAccounts: %w", err)
		}
		for _, a := range page.Accounts {
			if awssdk.ToString(a.Email) == email {
				return accountFrom(a), nil
			}
		}
	}
	return nil, fmt.Errorf("%w: no account with email %s", ErrAccountNotFound, email)
}

// listMembers fetches every account in the organization except the
// management account, in discovery order.
func (c *Closer) listMembers(ctx context.Context, mgmtID string) ([]MemberAccount, error) {
	var members []MemberAccount
	paginator := organizations.NewListAccountsPaginator(c.Org, &organizations.ListAccountsInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("ListAccounts: %w", err)
		}
		for _, a := range page.Accounts {
			if awssdk.ToString(a.Id) == mgmtID {
				continue
			}
			members = append(members, *accountFrom(a))
		}
	}
	return members, nil
}

func accountFrom(a orgtypes.Account) *MemberAccount {
	return &MemberAccount{
		ID:     awssdk.ToString(a.Id),
		Name:   awssdk.ToString(a.Name),
		Email:  awssdk.ToString(a.Email),
		Status: string(a.Status),
	}
}

// RateCeiling computes the provider's self-imposed closure ceiling for a
// rolling 30-day window: 10% of member accounts, bounded to [10, 1000].
func RateCeiling(totalMembers int) int {
	n := (totalMembers + 9) / 10
	if n > 1000 {
		n = 1000
	}
	if n < 10 {
		n = 10
	}
	return n
}
