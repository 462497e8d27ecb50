// Package identity implements the cross-account credential broker. Every
// component that must act in a non-local account (management, automation,
// or a freshly created member account) goes through Acquire; nothing else
// in the tool touches raw STS calls.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cloudnautic/accountctl/internal/aws"
)

// ErrAuth marks authentication and authorization failures. These are fatal
// and never retried: the same credentials cannot start succeeding.
var ErrAuth = errors.New("authentication failed")

// Source selects how credentials for an operation are obtained. At most one
// of Profile and RoleARN is set; with neither, the ambient default chain is
// passed through unchanged.
type Source struct {
	Profile     string
	RoleARN     string
	Region      string
	SessionName string
}

// Lease holds temporary credentials scoped to a single logical operation.
// Leases are never persisted and never reused across unrelated operations.
type Lease struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Expiry          *time.Time
	Region          string
}

// SessionCredentials converts the lease for client construction.
func (l *Lease) SessionCredentials() aws.SessionCredentials {
	return aws.SessionCredentials{
		AccessKeyID:     l.AccessKeyID,
		SecretAccessKey: l.SecretAccessKey,
		SessionToken:    l.SessionToken,
		Region:          l.Region,
	}
}

// Identity is the result of an STS caller-identity check.
type Identity struct {
	AccountID string `json:"account_id"`
	ARN       string `json:"arn"`
	UserID    string `json:"user_id"`
}

// Broker exchanges a local identity for operation-scoped credential leases.
type Broker struct {
	factory *aws.ClientFactory
	logger  zerolog.Logger

	// Injection points for tests.
	ambient func(ctx context.Context, profile, region string) (*Lease, error)
	assume  func(ctx context.Context, source *Lease, roleARN, sessionName string) (*Lease, error)
}

// NewBroker creates a broker backed by the shared client factory.
func NewBroker(factory *aws.ClientFactory, logger zerolog.Logger) *Broker {
	b := &Broker{factory: factory, logger: logger}
	b.ambient = b.ambientLease
	b.assume = b.assumeLease
	return b
}

// Acquire obtains a credential lease for the given source. The role-ARN
// path assumes the role from the ambient default chain; the profile path
// resolves the named shared-config profile; with neither, ambient
// credentials pass through.
func (b *Broker) Acquire(ctx context.Context, src Source) (*Lease, error) {
	if src.RoleARN != "" {
		base, err := b.ambient(ctx, "", src.Region)
		if err != nil {
			return nil, err
		}
		sessionName := src.SessionName
		if sessionName == "" {
			sessionName = "accountctl"
		}
		sessionName = sessionName + "-" + uuid.New().String()[:8]
		return b.assume(ctx, base, src.RoleARN, sessionName)
	}
	return b.ambient(ctx, src.Profile, src.Region)
}

// AssumeFrom assumes roleARN using an existing lease as the source
// identity, for cross-account hops that must not start from the ambient
// chain (validating a freshly created member account from the management
// account).
func (b *Broker) AssumeFrom(ctx context.Context, source *Lease, roleARN, sessionNameHint string) (*Lease, error) {
	if sessionNameHint == "" {
		sessionNameHint = "accountctl"
	}
	sessionName := sessionNameHint + "-" + uuid.New().String()[:8]
	return b.assume(ctx, source, roleARN, sessionName)
}

// WhoAmI resolves the caller identity behind a lease.
func (b *Broker) WhoAmI(ctx context.Context, lease *Lease) (*Identity, error) {
	arn, account, userID, err := b.factory.GetCallerIdentity(ctx, lease.SessionCredentials())
	if err != nil {
		return nil, fmt.Errorf("resolving caller identity: %w: %w", ErrAuth, err)
	}
	return &Identity{AccountID: account, ARN: arn, UserID: userID}, nil
}

func (b *Broker) ambientLease(ctx context.Context, profile, region string) (*Lease, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config (profile %q): %w: %w", profile, ErrAuth, err)
	}

	creds, err := cfg.Credentials.Retrieve(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving credentials (profile %q): %w: %w", profile, ErrAuth, err)
	}

	lease := &Lease{
		AccessKeyID:     creds.AccessKeyID,
		SecretAccessKey: creds.SecretAccessKey,
		SessionToken:    creds.SessionToken,
		Region:          cfg.Region,
	}
	if region != "" {
		lease.Region = region
	}
	if creds.CanExpire {
		expiry := creds.Expires
		lease.Expiry = &expiry
	}
	return lease, nil
}

func (b *Broker) assumeLease(ctx context.Context, source *Lease, roleARN, sessionName string) (*Lease, error) {
	out, err := b.factory.AssumeRole(ctx, source.SessionCredentials(), roleARN, sessionName)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuth, err)
	}

	c := out.Credentials
	lease := &Lease{
		AccessKeyID:     awssdk.ToString(c.AccessKeyId),
		SecretAccessKey: awssdk.ToString(c.SecretAccessKey),
		SessionToken:    awssdk.ToString(c.SessionToken),
		Region:          source.Region,
	}
	if c.Expiration != nil {
		lease.Expiry = c.Expiration
	}

	b.logger.Debug().
		Str("role_arn", roleARN).
		Str("session_name", sessionName).
		Msg("assumed role")
	return lease, nil
}
