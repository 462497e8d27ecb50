package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/organizations"
)

// limitedOrg wraps the Organizations client with the factory's per-service
// rate limiter and debug logging. DescribeOrganization and ListRoots are
// stable for the life of an invocation and served from the response cache;
// everything else always goes to the wire.
type limitedOrg struct {
	inner   OrganizationsAPI
	factory *ClientFactory
}

func (o *limitedOrg) wait(operation string) {
	o.factory.rateLimiter.Wait("organizations")
	o.factory.logAPICall("organizations", operation, nil)
}

func (o *limitedOrg) CreateAccount(ctx context.Context, params *organizations.CreateAccountInput, optFns ...func(*organizations.Options)) (*organizations.CreateAccountOutput, error) {
	o.wait("CreateAccount")
	return o.inner.CreateAccount(ctx, params, optFns...)
}

func (o *limitedOrg) DescribeCreateAccountStatus(ctx context.Context, params *organizations.DescribeCreateAccountStatusInput, optFns ...func(*organizations.Options)) (*organizations.DescribeCreateAccountStatusOutput, error) {
	o.wait("DescribeCreateAccountStatus")
	return o.inner.DescribeCreateAccountStatus(ctx, params, optFns...)
}

func (o *limitedOrg) ListRoots(ctx context.Context, params *organizations.ListRootsInput, optFns ...func(*organizations.Options)) (*organizations.ListRootsOutput, error) {
	if params.NextToken == nil {
		if cached, ok := o.factory.cache.Get("organizations:roots"); ok {
			return cached.(*organizations.ListRootsOutput), nil
		}
	}
	o.wait("ListRoots")
	out, err := o.inner.ListRoots(ctx, params, optFns...)
	if err == nil && params.NextToken == nil && out.NextToken == nil {
		o.factory.cache.Put("organizations:roots", out)
	}
	return out, err
}

func (o *limitedOrg) ListOrganizationalUnitsForParent(ctx context.Context, params *organizations.ListOrganizationalUnitsForParentInput, optFns ...func(*organizations.Options)) (*organizations.ListOrganizationalUnitsForParentOutput, error) {
	o.wait("ListOrganizationalUnitsForParent")
	return o.inner.ListOrganizationalUnitsForParent(ctx, params, optFns...)
}

func (o *limitedOrg) DescribeOrganizationalUnit(ctx context.Context, params *organizations.DescribeOrganizationalUnitInput, optFns ...func(*organizations.Options)) (*organizations.DescribeOrganizationalUnitOutput, error) {
	o.wait("DescribeOrganizationalUnit")
	return o.inner.DescribeOrganizationalUnit(ctx, params, optFns...)
}

func (o *limitedOrg) ListParents(ctx context.Context, params *organizations.ListParentsInput, optFns ...func(*organizations.Options)) (*organizations.ListParentsOutput, error) {
	o.wait("ListParents")
	return o.inner.ListParents(ctx, params, optFns...)
}

func (o *limitedOrg) MoveAccount(ctx context.Context, params *organizations.MoveAccountInput, optFns ...func(*organizations.Options)) (*organizations.MoveAccountOutput, error) {
	o.wait("MoveAccount")
	return o.inner.MoveAccount(ctx, params, optFns...)
}

func (o *limitedOrg) DescribeAccount(ctx context.Context, params *organizations.DescribeAccountInput, optFns ...func(*organizations.Options)) (*organizations.DescribeAccountOutput, error) {
	o.wait("DescribeAccount")
	return o.inner.DescribeAccount(ctx, params, optFns...)
}

func (o *limitedOrg) DescribeOrganization(ctx context.Context, params *organizations.DescribeOrganizationInput, optFns ...func(*organizations.Options)) (*organizations.DescribeOrganizationOutput, error) {
	if cached, ok := o.factory.cache.Get("organizations:describe-org"); ok {
		return cached.(*organizations.DescribeOrganizationOutput), nil
	}
	o.wait("DescribeOrganization")
	out, err := o.inner.DescribeOrganization(ctx, params, optFns...)
	if err == nil {
		o.factory.cache.Put("organizations:describe-org", out)
	}
	return out, err
}

func (o *limitedOrg) ListAccounts(ctx context.Context, params *organizations.ListAccountsInput, optFns ...func(*organizations.Options)) (*organizations.ListAccountsOutput, error) {
	o.wait("ListAccounts")
	return o.inner.ListAccounts(ctx, params, optFns...)
}

func (o *limitedOrg) CloseAccount(ctx context.Context, params *organizations.CloseAccountInput, optFns ...func(*organizations.Options)) (*organizations.CloseAccountOutput, error) {
	o.wait("CloseAccount")
	return o.inner.CloseAccount(ctx, params, optFns...)
}
