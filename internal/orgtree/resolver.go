// Package orgtree resolves organizational units and performs account
// placement moves within the organization tree.
package orgtree

import (
	"context"
	"errors"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	"github.com/rs/zerolog"

	"github.com/cloudnautic/accountctl/internal/aws"
)

// ErrNotFound means no OU with the requested name exists anywhere in the tree.
var ErrNotFound = errors.New("organizational unit not found")

// maxDepth bounds the tree walk against malformed or absurdly deep trees.
// AWS caps OU nesting at five levels; anything past this is a broken tree.
const maxDepth = 16

// OU is a resolved organizational unit.
type OU struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Resolver finds OUs by name or id and moves accounts between parents.
type Resolver struct {
	api    aws.OrganizationsAPI
	logger zerolog.Logger
}

// NewResolver creates a resolver over the given Organizations surface.
func NewResolver(api aws.OrganizationsAPI, logger zerolog.Logger) *Resolver {
	return &Resolver{api: api, logger: logger}
}

// RootID returns the id of the organization root.
func (r *Resolver) RootID(ctx context.Context) (string, error) {
	out, err := r.api.ListRoots(ctx, &organizations.ListRootsInput{})
	if err != nil {
		return "", fmt.Errorf("ListRoots: %w", err)
	}
	if len(out.Roots) == 0 {
		return "", fmt.Errorf("organization has no root")
	}
	return awssdk.ToString(out.Roots[0].Id), nil
}

type parentEntry struct {
	id    string
	depth int
}

// FindByName walks the OU tree breadth-first from the organization root and
// returns the first OU whose name matches exactly. The walk uses an
// explicit queue with a depth cap rather than recursion.
func (r *Resolver) FindByName(ctx context.Context, name string) (*OU, error) {
	rootID, err := r.RootID(ctx)
	if err != nil {
		return nil, err
	}

	queue := []parentEntry{{id: rootID, depth: 0}}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current.depth >= maxDepth {
			r.logger.Warn().
				Str("parent_id", current.id).
				Int("depth", current.depth).
				Msg("ou tree deeper than expected, pruning walk")
			continue
		}

		paginator := organizations.NewListOrganizationalUnitsForParentPaginator(r.api,
			&organizations.ListOrganizationalUnitsForParentInput{
				ParentId: awssdk.String(current.id),
			})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return nil, fmt.Errorf("ListOrganizationalUnitsForParent(%s): %w", current.id, err)
			}
			for _, ou := range page.OrganizationalUnits {
				if awssdk.ToString(ou.Name) == name {
					return &OU{
						ID:   awssdk.ToString(ou.Id),
						Name: awssdk.ToString(ou.Name),
					}, nil
				}
				queue = append(queue, parentEntry{
					id:    awssdk.ToString(ou.Id),
					depth: current.depth + 1,
				})
			}
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// ResolveDirect validates that an OU id exists, skipping the tree walk.
func (r *Resolver) ResolveDirect(ctx context.Context, id string) (*OU, error) {
	out, err := r.api.DescribeOrganizationalUnit(ctx, &organizations.DescribeOrganizationalUnitInput{
		OrganizationalUnitId: awssdk.String(id),
	})
	if err != nil {
		return nil, fmt.Errorf("DescribeOrganizationalUnit(%s): %w", id, err)
	}
	return &OU{
		ID:   awssdk.ToString(out.OrganizationalUnit.Id),
		Name: awssdk.ToString(out.OrganizationalUnit.Name),
	}, nil
}

// Move places an account under the destination OU. When the account is
// already there the move is skipped.
func (r *Resolver) Move(ctx context.Context, accountID, destOUID string) error {
	parents, err := r.api.ListParents(ctx, &organizations.ListParentsInput{
		ChildId: awssdk.String(accountID),
	})
	if err != nil {
		return fmt.Errorf("ListParents(%s): %w", accountID, err)
	}
	if len(parents.Parents) == 0 {
		return fmt.Errorf("account %s has no parent", accountID)
	}
	sourceID := awssdk.ToString(parents.Parents[0].Id)

	if sourceID == destOUID {
		r.logger.Info().
			Str("account_id", accountID).
			Str("ou_id", destOUID).
			Msg("account already in target ou")
		return nil
	}

	_, err = r.api.MoveAccount(ctx, &organizations.MoveAccountInput{
		AccountId:           awssdk.String(accountID),
		SourceParentId:      awssdk.String(sourceID),
		DestinationParentId: awssdk.String(destOUID),
	})
	if err != nil {
		return fmt.Errorf("MoveAccount(%s -> %s): %w", accountID, destOUID, err)
	}

	r.logger.Info().
		Str("account_id", accountID).
		Str("from", sourceID).
		Str("to", destOUID).
		Msg("account moved to ou")
	return nil
}
