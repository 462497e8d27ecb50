// Package aws provides the AWS SDK v2 adapter layer with rate limiting and
// per-invocation read caching for the Organizations, SSM, and STS clients.
package aws

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/rs/zerolog"
)

// SessionCredentials holds the credential material needed to create AWS clients.
type SessionCredentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Region          string
}

// ClientFactory creates rate-limited AWS service clients from credential
// leases. One factory serves a whole invocation.
type ClientFactory struct {
	rateLimiter *RateLimiter
	logger      zerolog.Logger
	cache       *ResponseCache
}

// NewClientFactory creates a new AWS client factory.
func NewClientFactory(logger zerolog.Logger) *ClientFactory {
	return &ClientFactory{
		rateLimiter: NewRateLimiter(10),
		logger:      logger,
		cache:       NewResponseCache(5 * time.Minute),
	}
}

// NewClientFactoryWithRate creates a factory with a custom rate limit.
func NewClientFactoryWithRate(logger zerolog.Logger, ratePerSec int, cacheTTL time.Duration) *ClientFactory {
	return &ClientFactory{
		rateLimiter: NewRateLimiter(ratePerSec),
		logger:      logger,
		cache:       NewResponseCache(cacheTTL),
	}
}

func (f *ClientFactory) awsConfig(creds SessionCredentials) aws.Config {
	return aws.Config{
		Region: creds.Region,
		Credentials: credentials.NewStaticCredentialsProvider(
			creds.AccessKeyID,
			creds.SecretAccessKey,
			creds.SessionToken,
		),
		RetryMaxAttempts: 5,
	}
}

func (f *ClientFactory) logAPICall(service, operation string, err error) {
	ev := f.logger.Debug().Str("service", service).Str("operation", operation)
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg("aws api call")
}

// Cache returns the factory's response cache.
func (f *ClientFactory) Cache() *ResponseCache { return f.cache }

// --- Service client factories ---

func (f *ClientFactory) STSClient(creds SessionCredentials) *sts.Client {
	return sts.NewFromConfig(f.awsConfig(creds))
}

func (f *ClientFactory) SSMClient(creds SessionCredentials) *ssm.Client {
	return ssm.NewFromConfig(f.awsConfig(creds))
}

func (f *ClientFactory) OrganizationsClient(creds SessionCredentials) *organizations.Client {
	return organizations.NewFromConfig(f.awsConfig(creds))
}

// Organizations returns the rate-limited Organizations API surface for the
// given credentials. All lifecycle engine calls go through this wrapper.
func (f *ClientFactory) Organizations(creds SessionCredentials) OrganizationsAPI {
	return &limitedOrg{
		inner:   f.OrganizationsClient(creds),
		factory: f,
	}
}

// --- Convenience operations ---

// GetCallerIdentity performs sts:GetCallerIdentity.
func (f *ClientFactory) GetCallerIdentity(ctx context.Context, creds SessionCredentials) (arn, account, userID string, err error) {
	f.rateLimiter.Wait("sts")
	f.logAPICall("sts", "GetCallerIdentity", nil)

	client := f.STSClient(creds)
	result, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		f.logAPICall("sts", "GetCallerIdentity", err)
		return "", "", "", fmt.Errorf("GetCallerIdentity: %w", err)
	}
	return aws.ToString(result.Arn), aws.ToString(result.Account), aws.ToString(result.UserId), nil
}

// AssumeRole calls STS AssumeRole and returns the temporary credentials.
func (f *ClientFactory) AssumeRole(ctx context.Context, creds SessionCredentials, roleARN, sessionName string) (*sts.AssumeRoleOutput, error) {
	f.rateLimiter.Wait("sts")
	f.logAPICall("sts", "AssumeRole", nil)

	client := f.STSClient(creds)
	out, err := client.AssumeRole(ctx, &sts.AssumeRoleInput{
		RoleArn:         &roleARN,
		RoleSessionName: &sessionName,
	})
	if err != nil {
		f.logAPICall("sts", "AssumeRole", err)
		return nil, fmt.Errorf("AssumeRole(%s): %w", roleARN, err)
	}
	return out, nil
}

// --- Rate Limiter ---

type RateLimiter struct {
	mu         sync.Mutex
	ratePerSec int
	lastCall   map[string]time.Time
}

func NewRateLimiter(ratePerSec int) *RateLimiter {
	return &RateLimiter{
		ratePerSec: ratePerSec,
		lastCall:   make(map[string]time.Time),
	}
}

func (rl *RateLimiter) Wait(service string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	minInterval := time.Second / time.Duration(rl.ratePerSec)
	last, ok := rl.lastCall[service]
	if ok {
		elapsed := time.Since(last)
		if elapsed < minInterval {
			time.Sleep(minInterval - elapsed)
		}
	}
	rl.lastCall[service] = time.Now()
}

// --- Response Cache ---

type cacheEntry struct {
	data      any
	expiresAt time.Time
}

// ResponseCache provides in-memory TTL caching for stable read-only
// responses (organization description, root listing). Account state is
// never cached; closure targets are always fetched live.
type ResponseCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	ttl     time.Duration
}

func NewResponseCache(ttl time.Duration) *ResponseCache {
	return &ResponseCache{
		entries: make(map[string]*cacheEntry),
		ttl:     ttl,
	}
}

// Get retrieves a cached value. Returns nil and false if not found or expired.
func (c *ResponseCache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.data, true
}

// Put stores a value in the cache.
func (c *ResponseCache) Put(key string, data any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &cacheEntry{data: data, expiresAt: time.Now().Add(c.ttl)}
}
