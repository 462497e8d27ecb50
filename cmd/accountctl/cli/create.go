package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloudnautic/accountctl/internal/config"
	"github.com/cloudnautic/accountctl/internal/counter"
	"github.com/cloudnautic/accountctl/internal/identity"
	"github.com/cloudnautic/accountctl/internal/lifecycle"
	"github.com/cloudnautic/accountctl/internal/orgtree"
)

// RegisterCreateCommands adds the `accountctl create-account` command.
func RegisterCreateCommands(root *cobra.Command) {
	var (
		common            commonFlags
		dryRun            bool
		email             string
		ouName            string
		ouID              string
		automationProfile string
		automationRoleARN string
	)

	cmd := &cobra.Command{
		Use:   "create-account <name>",
		Short: "Create a member account with a counter-derived email",
		Long: `Create a member account in the organization.

The account email is derived from the SSM sequence counter as
{prefix}+{n}-{slug(name)}@{domain}; the counter only advances after the
creation has succeeded. --email bypasses the counter entirely. The new
account is moved into the destination OU and its cross-account role is
validated before the result is printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if ouName != "" && ouID != "" {
				return fmt.Errorf("--ou-name and --ou-id are mutually exclusive")
			}

			cfg, err := config.Load(common.configPath)
			if err != nil {
				return err
			}
			cfg = config.Merge(cfg, config.Overrides{
				MgmtProfile:       common.mgmtProfile,
				ManagementRoleARN: common.managementRoleARN,
				AutomationProfile: automationProfile,
				AutomationRoleARN: automationRoleARN,
				OUName:            ouName,
				OUID:              ouID,
				Email:             email,
			})
			if err := config.ValidateCreate(cfg); err != nil {
				return err
			}
			if cfg.EmailOverride == "" && cfg.DefaultOUName == "" && cfg.OUID == "" {
				return fmt.Errorf("destination OU required: set default_ou_name or ou_id, or pass --ou-name / --ou-id")
			}

			return runCreate(cmd.Context(), cfg, args[0], dryRun)
		},
	}

	common.register(cmd.Flags())
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Resolve everything and print the projected result without creating")
	cmd.Flags().StringVar(&email, "email", "", "Use this email instead of deriving one from the counter")
	cmd.Flags().StringVar(&ouName, "ou-name", "", "Destination OU by name (breadth-first exact match)")
	cmd.Flags().StringVar(&ouID, "ou-id", "", "Destination OU by id")
	cmd.Flags().StringVar(&automationProfile, "automation-profile", "", "Shared-config profile for the SSM counter")
	cmd.Flags().StringVar(&automationRoleARN, "automation-role-arn", "", "Role ARN to assume for the SSM counter")

	root.AddCommand(cmd)
}

func runCreate(ctx context.Context, cfg config.Config, name string, dryRun bool) error {
	logger, factory, broker := toolSetup(cfg)

	mgmt, err := mgmtSession(ctx, cfg, broker, logger, "lifecycle-create-account")
	if err != nil {
		return err
	}

	// The counter lives in the automation account; with an explicit email
	// it is never consulted, so no automation lease is acquired.
	var store lifecycle.CounterStore
	if cfg.EmailOverride == "" {
		auto, err := broker.Acquire(ctx, identity.Source{
			Profile:     cfg.AutomationProfile,
			RoleARN:     cfg.AutomationRoleARN,
			Region:      cfg.Region,
			SessionName: "lifecycle-ssm-read",
		})
		if err != nil {
			return fmt.Errorf("acquiring automation credentials: %w", err)
		}
		store = counter.NewStore(factory.SSMClient(auto.SessionCredentials()), logger)
	}

	org := factory.Organizations(mgmt.SessionCredentials())
	creator := &lifecycle.Creator{
		Org:             org,
		Counter:         store,
		Resolver:        orgtree.NewResolver(org, logger),
		Validator:       lifecycle.NewRoleValidator(broker, mgmt, logger),
		EmailPrefix:     cfg.Email.Prefix,
		EmailDomain:     cfg.Email.Domain,
		ParameterPath:   cfg.SSMParameterPath,
		ValidationRole:  cfg.ValidationRoleName,
		PollInterval:    time.Duration(cfg.Polling.IntervalSeconds) * time.Second,
		PollMaxAttempts: cfg.Polling.MaxAttempts,
		Wait:            time.Sleep,
		Logger:          logger,
	}

	rec, err := creator.Run(ctx, lifecycle.CreateRequest{
		Name:          name,
		EmailOverride: cfg.EmailOverride,
		OUName:        cfg.DefaultOUName,
		OUID:          cfg.OUID,
		Tags:          cfg.Tags,
		DryRun:        dryRun,
	})
	if rec != nil {
		printJSON(rec)
	}
	return err
}
