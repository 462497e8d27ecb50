package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloudnautic/accountctl/internal/config"
	"github.com/cloudnautic/accountctl/internal/lifecycle"
)

// RegisterCloseCommands adds the `accountctl close-account` command.
func RegisterCloseCommands(root *cobra.Command) {
	var (
		common    commonFlags
		accountID string
		email     string
		all       bool
		dryRun    bool
		noWait    bool
	)

	cmd := &cobra.Command{
		Use:   "close-account (--account-id ID | --email E | --all)",
		Short: "Close a member account, or every member account",
		Long: `Close member accounts in the organization.

Targets are resolved live: by account id, by exact email match over the
account list, or every non-management member with --all. Already-closed
accounts count as success. Closing the management account is always
refused. Bulk closure asks for interactive confirmation before the first
mutating call.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			targets := 0
			for _, set := range []bool{accountID != "", email != "", all} {
				if set {
					targets++
				}
			}
			if targets != 1 {
				return fmt.Errorf("exactly one of --account-id, --email, or --all is required")
			}

			cfg, err := config.Load(common.configPath)
			if err != nil {
				return err
			}
			cfg = config.Merge(cfg, config.Overrides{
				MgmtProfile:       common.mgmtProfile,
				ManagementRoleARN: common.managementRoleARN,
			})
			if err := config.ValidateManagement(cfg); err != nil {
				return err
			}

			req := lifecycle.CloseRequest{
				Target: lifecycle.CloseTarget{AccountID: accountID, Email: email, All: all},
				DryRun: dryRun,
				NoWait: noWait,
			}
			return runClose(cmd.Context(), cfg, req)
		},
	}

	common.register(cmd.Flags())
	cmd.Flags().StringVar(&accountID, "account-id", "", "Close the account with this id")
	cmd.Flags().StringVar(&email, "email", "", "Close the account with this exact email")
	cmd.Flags().BoolVar(&all, "all", false, "Close every member account except the management account")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Resolve targets and print what would be closed")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "Request closure without polling for the status change")

	root.AddCommand(cmd)
}

func runClose(ctx context.Context, cfg config.Config, req lifecycle.CloseRequest) error {
	logger, factory, broker := toolSetup(cfg)

	mgmt, err := mgmtSession(ctx, cfg, broker, logger, "lifecycle-close-account")
	if err != nil {
		return err
	}

	closer := &lifecycle.Closer{
		Org:             factory.Organizations(mgmt.SessionCredentials()),
		Confirm:         confirmBulkClosure,
		PollInterval:    time.Duration(cfg.Polling.IntervalSeconds) * time.Second,
		PollMaxAttempts: cfg.Polling.MaxAttempts,
		Wait:            time.Sleep,
		Logger:          logger,
	}

	outcomes, err := closer.Run(ctx, req)
	if len(outcomes) == 1 && !req.Target.All {
		printJSON(outcomes[0])
	} else if outcomes != nil {
		printJSON(outcomes)
	}
	return err
}
