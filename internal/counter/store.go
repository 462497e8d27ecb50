// Package counter implements the shared sequence-number store backing
// collision-free account emails. The value lives in an SSM parameter in the
// automation account and is only ever incremented, never decremented.
package counter

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/rs/zerolog"

	"github.com/cloudnautic/accountctl/internal/aws"
)

var (
	// ErrNotFound means the counter parameter does not exist; a
	// configuration problem, reported before any mutating call.
	ErrNotFound = errors.New("counter parameter not found")

	// ErrMalformed means the stored value is not a non-negative integer.
	ErrMalformed = errors.New("counter parameter malformed")

	// ErrWrite marks a rejected counter commit. The dependent account
	// already exists when this surfaces, so callers report it as a warning
	// and never roll back.
	ErrWrite = errors.New("counter write failed")
)

// Store reads and advances the sequence counter. The remote store offers no
// compare-and-swap; Read returns a snapshot and IncrementFrom must only be
// called after the dependent creation has durably succeeded.
type Store struct {
	api    aws.SSMAPI
	logger zerolog.Logger
}

// NewStore creates a counter store over the given parameter-store surface.
func NewStore(api aws.SSMAPI, logger zerolog.Logger) *Store {
	return &Store{api: api, logger: logger}
}

// Read returns the current counter value at path.
func (s *Store) Read(ctx context.Context, path string) (int, error) {
	out, err := s.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name: awssdk.String(path),
	})
	if err != nil {
		var notFound *ssmtypes.ParameterNotFound
		if errors.As(err, &notFound) {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return 0, fmt.Errorf("GetParameter(%s): %w", path, err)
	}

	raw := awssdk.ToString(out.Parameter.Value)
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("%w: %s holds %q", ErrMalformed, path, raw)
	}
	return value, nil
}

// IncrementFrom writes expected+1 to path. Exactly one attempt is made: a
// blind retry after an ambiguous failure could advance the counter twice
// and corrupt email uniqueness. The parameter store has no conditional
// write, so the expected value is logged to make a lost race visible.
func (s *Store) IncrementFrom(ctx context.Context, path string, expected int) (int, error) {
	next := expected + 1
	_, err := s.api.PutParameter(ctx, &ssm.PutParameterInput{
		Name:      awssdk.String(path),
		Value:     awssdk.String(strconv.Itoa(next)),
		Type:      ssmtypes.ParameterTypeString,
		Overwrite: awssdk.Bool(true),
	})
	if err != nil {
		return 0, fmt.Errorf("%w: PutParameter(%s): %w", ErrWrite, path, err)
	}

	s.logger.Info().
		Str("parameter", path).
		Int("from", expected).
		Int("to", next).
		Msg("sequence counter advanced")
	return next, nil
}
