package aws

import (
	"context"
	"testing"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	orgtypes "github.com/aws/aws-sdk-go-v2/service/organizations/types"
	"github.com/rs/zerolog"
)

func TestResponseCache_PutGet(t *testing.T) {
	cache := NewResponseCache(1 * time.Minute)

	cache.Put("key1", "value1")
	cache.Put("key2", 42)

	v, ok := cache.Get("key1")
	if !ok || v != "value1" {
		t.Fatalf("expected 'value1', got %v (ok=%v)", v, ok)
	}

	v, ok = cache.Get("key2")
	if !ok || v != 42 {
		t.Fatalf("expected 42, got %v (ok=%v)", v, ok)
	}
}

func TestResponseCache_Miss(t *testing.T) {
	cache := NewResponseCache(1 * time.Minute)

	_, ok := cache.Get("nonexistent")
	if ok {
		t.Fatal("expected cache miss for nonexistent key")
	}
}

func TestResponseCache_Expiry(t *testing.T) {
	cache := NewResponseCache(1 * time.Millisecond)

	cache.Put("key1", "value1")
	time.Sleep(5 * time.Millisecond)

	_, ok := cache.Get("key1")
	if ok {
		t.Fatal("expected cache miss for expired key")
	}
}

func TestRateLimiter_Sequencing(t *testing.T) {
	rl := NewRateLimiter(100) // 100 req/s = 10ms interval

	start := time.Now()
	rl.Wait("organizations")
	rl.Wait("organizations")
	elapsed := time.Since(start)

	// Second call should have waited ~10ms
	if elapsed < 5*time.Millisecond {
		t.Fatalf("expected rate limiter to enforce delay, elapsed: %v", elapsed)
	}
}

func TestRateLimiter_DifferentServices(t *testing.T) {
	rl := NewRateLimiter(10) // 10 req/s = 100ms interval

	start := time.Now()
	rl.Wait("organizations")
	rl.Wait("sts") // Different service, should not wait
	elapsed := time.Since(start)

	if elapsed > 50*time.Millisecond {
		t.Fatalf("expected no delay for different services, elapsed: %v", elapsed)
	}
}

type countingOrg struct {
	OrganizationsAPI
	describeOrgCalls int
	listRootsCalls   int
}

func (c *countingOrg) DescribeOrganization(ctx context.Context, params *organizations.DescribeOrganizationInput, optFns ...func(*organizations.Options)) (*organizations.DescribeOrganizationOutput, error) {
	c.describeOrgCalls++
	return &organizations.DescribeOrganizationOutput{
		Organization: &orgtypes.Organization{
			MasterAccountId: awssdk.String("111111111111"),
		},
	}, nil
}

func (c *countingOrg) ListRoots(ctx context.Context, params *organizations.ListRootsInput, optFns ...func(*organizations.Options)) (*organizations.ListRootsOutput, error) {
	c.listRootsCalls++
	return &organizations.ListRootsOutput{
		Roots: []orgtypes.Root{{Id: awssdk.String("r-abcd")}},
	}, nil
}

func TestLimitedOrg_DescribeOrganizationCached(t *testing.T) {
	factory := NewClientFactoryWithRate(zerolog.Nop(), 1000, time.Minute)
	inner := &countingOrg{}
	org := &limitedOrg{inner: inner, factory: factory}

	for i := 0; i < 3; i++ {
		out, err := org.DescribeOrganization(context.Background(), &organizations.DescribeOrganizationInput{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if awssdk.ToString(out.Organization.MasterAccountId) != "111111111111" {
			t.Fatal("unexpected management account id")
		}
	}

	if inner.describeOrgCalls != 1 {
		t.Fatalf("expected 1 remote DescribeOrganization call, got %d", inner.describeOrgCalls)
	}
}

func TestLimitedOrg_ListRootsCached(t *testing.T) {
	factory := NewClientFactoryWithRate(zerolog.Nop(), 1000, time.Minute)
	inner := &countingOrg{}
	org := &limitedOrg{inner: inner, factory: factory}

	for i := 0; i < 2; i++ {
		out, err := org.ListRoots(context.Background(), &organizations.ListRootsInput{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(out.Roots) != 1 {
			t.Fatalf("expected 1 root, got %d", len(out.Roots))
		}
	}

	if inner.listRootsCalls != 1 {
		t.Fatalf("expected 1 remote ListRoots call, got %d", inner.listRootsCalls)
	}
}
