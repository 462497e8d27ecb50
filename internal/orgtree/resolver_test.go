package orgtree

import (
	"context"
	"strconv"
	"testing"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	orgtypes "github.com/aws/aws-sdk-go-v2/service/organizations/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudnautic/accountctl/internal/aws"
)

// fakeOrg serves a static OU tree. Child listings are paginated two entries
// per page to exercise the paginator loop.
type fakeOrg struct {
	aws.OrganizationsAPI

	rootID    string
	children  map[string][]orgtypes.OrganizationalUnit
	parents   map[string]string
	moveCalls []organizations.MoveAccountInput
	listCalls int
}

func (f *fakeOrg) ListRoots(ctx context.Context, params *organizations.ListRootsInput, optFns ...func(*organizations.Options)) (*organizations.ListRootsOutput, error) {
	return &organizations.ListRootsOutput{
		Roots: []orgtypes.Root{{Id: awssdk.String(f.rootID)}},
	}, nil
}

func (f *fakeOrg) ListOrganizationalUnitsForParent(ctx context.Context, params *organizations.ListOrganizationalUnitsForParentInput, optFns ...func(*organizations.Options)) (*organizations.ListOrganizationalUnitsForParentOutput, error) {
	f.listCalls++
	all := f.children[awssdk.ToString(params.ParentId)]

	start := 0
	if params.NextToken != nil {
		start, _ = strconv.Atoi(awssdk.ToString(params.NextToken))
	}
	end := start + 2
	if end > len(all) {
		end = len(all)
	}

	out := &organizations.ListOrganizationalUnitsForParentOutput{
		OrganizationalUnits: all[start:end],
	}
	if end < len(all) {
		out.NextToken = awssdk.String(strconv.Itoa(end))
	}
	return out, nil
}

func (f *fakeOrg) DescribeOrganizationalUnit(ctx context.Context, params *organizations.DescribeOrganizationalUnitInput, optFns ...func(*organizations.Options)) (*organizations.DescribeOrganizationalUnitOutput, error) {
	id := awssdk.ToString(params.OrganizationalUnitId)
	for _, ous := range f.children {
		for _, ou := range ous {
			if awssdk.ToString(ou.Id) == id {
				return &organizations.DescribeOrganizationalUnitOutput{
					OrganizationalUnit: &ou,
				}, nil
			}
		}
	}
	return nil, &orgtypes.OrganizationalUnitNotFoundException{}
}

func (f *fakeOrg) ListParents(ctx context.Context, params *organizations.ListParentsInput, optFns ...func(*organizations.Options)) (*organizations.ListParentsOutput, error) {
	parent := f.parents[awssdk.ToString(params.ChildId)]
	return &organizations.ListParentsOutput{
		Parents: []orgtypes.Parent{{Id: awssdk.String(parent)}},
	}, nil
}

func (f *fakeOrg) MoveAccount(ctx context.Context, params *organizations.MoveAccountInput, optFns ...func(*organizations.Options)) (*organizations.MoveAccountOutput, error) {
	f.moveCalls = append(f.moveCalls, *params)
	return &organizations.MoveAccountOutput{}, nil
}

func ou(id, name string) orgtypes.OrganizationalUnit {
	return orgtypes.OrganizationalUnit{Id: awssdk.String(id), Name: awssdk.String(name)}
}

func sandboxTree() *fakeOrg {
	return &fakeOrg{
		rootID: "r-abcd",
		children: map[string][]orgtypes.OrganizationalUnit{
			"r-abcd": {ou("ou-1", "Infrastructure"), ou("ou-2", "Workloads"), ou("ou-3", "Suspended")},
			"ou-2":   {ou("ou-21", "Prod"), ou("ou-22", "Sandbox")},
			"ou-22":  {ou("ou-221", "Deep")},
		},
		parents: map[string]string{},
	}
}

func TestFindByNameTopLevel(t *testing.T) {
	r := NewResolver(sandboxTree(), zerolog.Nop())
	found, err := r.FindByName(context.Background(), "Workloads")
	require.NoError(t, err)
	assert.Equal(t, "ou-2", found.ID)
}

func TestFindByNameNested(t *testing.T) {
	r := NewResolver(sandboxTree(), zerolog.Nop())
	found, err := r.FindByName(context.Background(), "Sandbox")
	require.NoError(t, err)
	assert.Equal(t, "ou-22", found.ID)
	assert.Equal(t, "Sandbox", found.Name)
}

func TestFindByNameAbsent(t *testing.T) {
	fake := sandboxTree()
	r := NewResolver(fake, zerolog.Nop())
	_, err := r.FindByName(context.Background(), "NoSuchOU")
	assert.ErrorIs(t, err, ErrNotFound)
	// the walk must have visited every level and terminated
	assert.GreaterOrEqual(t, fake.listCalls, 4)
}

func TestFindByNameExactMatchOnly(t *testing.T) {
	r := NewResolver(sandboxTree(), zerolog.Nop())
	_, err := r.FindByName(context.Background(), "sandbox")
	assert.ErrorIs(t, err, ErrNotFound, "match must be case-sensitive exact")
}

func TestResolveDirect(t *testing.T) {
	r := NewResolver(sandboxTree(), zerolog.Nop())
	found, err := r.ResolveDirect(context.Background(), "ou-21")
	require.NoError(t, err)
	assert.Equal(t, "Prod", found.Name)
}

func TestResolveDirectUnknown(t *testing.T) {
	r := NewResolver(sandboxTree(), zerolog.Nop())
	_, err := r.ResolveDirect(context.Background(), "ou-nope")
	assert.Error(t, err)
}

func TestMove(t *testing.T) {
	fake := sandboxTree()
	fake.parents["123456789012"] = "r-abcd"
	r := NewResolver(fake, zerolog.Nop())

	require.NoError(t, r.Move(context.Background(), "123456789012", "ou-22"))
	require.Len(t, fake.moveCalls, 1)
	call := fake.moveCalls[0]
	assert.Equal(t, "r-abcd", awssdk.ToString(call.SourceParentId))
	assert.Equal(t, "ou-22", awssdk.ToString(call.DestinationParentId))
}

func TestMoveSkipsWhenAlreadyPlaced(t *testing.T) {
	fake := sandboxTree()
	fake.parents["123456789012"] = "ou-22"
	r := NewResolver(fake, zerolog.Nop())

	require.NoError(t, r.Move(context.Background(), "123456789012", "ou-22"))
	assert.Empty(t, fake.moveCalls, "move must be skipped when already in target ou")
}
