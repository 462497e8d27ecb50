package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	awsops "github.com/cloudnautic/accountctl/internal/aws"
	"github.com/cloudnautic/accountctl/internal/config"
	"github.com/cloudnautic/accountctl/internal/identity"
	"github.com/cloudnautic/accountctl/internal/lifecycle"
	"github.com/cloudnautic/accountctl/internal/logging"
)

// commonFlags are the flags shared by every subcommand.
type commonFlags struct {
	configPath        string
	mgmtProfile       string
	managementRoleARN string
}

func (f *commonFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.configPath, "config", config.DefaultConfigFile, "Path to the YAML configuration file")
	fs.StringVar(&f.mgmtProfile, "mgmt-profile", "", "Shared-config profile for management account access")
	fs.StringVar(&f.managementRoleARN, "management-role-arn", "", "Role ARN to assume for management account access")
}

// mgmtSession acquires the management credential lease and echoes the
// resolved caller identity to the diagnostic stream before anything else
// runs against the organization.
func mgmtSession(ctx context.Context, cfg config.Config, broker *identity.Broker, logger zerolog.Logger, sessionHint string) (*identity.Lease, error) {
	lease, err := broker.Acquire(ctx, identity.Source{
		Profile:     cfg.MgmtProfile,
		RoleARN:     cfg.ManagementRoleARN,
		Region:      cfg.Region,
		SessionName: sessionHint,
	})
	if err != nil {
		return nil, fmt.Errorf("acquiring management credentials: %w", err)
	}

	ident, err := broker.WhoAmI(ctx, lease)
	if err != nil {
		return nil, err
	}
	logger.Info().
		Str("account_id", ident.AccountID).
		Str("arn", ident.ARN).
		Msg("management identity resolved")
	return lease, nil
}

// toolSetup builds the shared logger, client factory, and broker from a
// loaded configuration.
func toolSetup(cfg config.Config) (zerolog.Logger, *awsops.ClientFactory, *identity.Broker) {
	logger := logging.NewLogger(cfg.LogLevel)
	factory := awsops.NewClientFactory(logger)
	broker := identity.NewBroker(factory, logger)
	return logger, factory, broker
}

func printJSON(v any) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}

// confirmBulkClosure prompts the operator before a bulk closure. Only the
// exact answer "yes" proceeds. A non-interactive stdin refuses outright so
// a piped run can never destroy an organization by accident.
func confirmBulkClosure(accounts []lifecycle.MemberAccount) (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false, fmt.Errorf("bulk closure needs an interactive terminal; use --dry-run to preview")
	}

	fmt.Fprintf(os.Stderr, "About to close %d account(s):\n", len(accounts))
	for _, a := range accounts {
		fmt.Fprintf(os.Stderr, "  %s  %s  <%s>\n", a.ID, a.Name, a.Email)
	}
	fmt.Fprint(os.Stderr, "Type 'yes' to continue: ")

	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(answer) == "yes", nil
}
