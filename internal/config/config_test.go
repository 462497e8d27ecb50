package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultPollAttempt, cfg.Polling.MaxAttempts)
	assert.Equal(t, DefaultPollSecs, cfg.Polling.IntervalSeconds)
	assert.Equal(t, "OrganizationAccountAccessRole", cfg.ValidationRoleName)
}

func TestLoadParsesFullConfig(t *testing.T) {
	path := writeConfig(t, `
mgmt_profile: mgmt
automation_role_arn: arn:aws:iam::222222222222:role/Automation
region: us-east-1
ssm_parameter_path: /org/account-number
email:
  prefix: will
  domain: example.com
default_ou_name: Sandbox
tags:
  team: platform
polling:
  max_attempts: 12
  interval_seconds: 3
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "mgmt", cfg.MgmtProfile)
	assert.Equal(t, "arn:aws:iam::222222222222:role/Automation", cfg.AutomationRoleARN)
	assert.Equal(t, "/org/account-number", cfg.SSMParameterPath)
	assert.Equal(t, "will", cfg.Email.Prefix)
	assert.Equal(t, "example.com", cfg.Email.Domain)
	assert.Equal(t, "Sandbox", cfg.DefaultOUName)
	assert.Equal(t, map[string]string{"team": "platform"}, cfg.Tags)
	assert.Equal(t, 12, cfg.Polling.MaxAttempts)
	assert.Equal(t, 3, cfg.Polling.IntervalSeconds)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "email: [unclosed")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestMergeOverridesFileValues(t *testing.T) {
	cfg := Default()
	cfg.MgmtProfile = "file-profile"
	cfg.DefaultOUName = "FileOU"

	merged := Merge(cfg, Overrides{
		MgmtProfile: "cli-profile",
		OUID:        "ou-root-aaaa1111",
		Email:       "ops+custom@example.com",
	})

	assert.Equal(t, "cli-profile", merged.MgmtProfile)
	assert.Equal(t, "FileOU", merged.DefaultOUName, "unset override must not clobber file value")
	assert.Equal(t, "ou-root-aaaa1111", merged.OUID)
	assert.Equal(t, "ops+custom@example.com", merged.EmailOverride)
}

func TestValidateCreateRequiresManagementAccess(t *testing.T) {
	err := ValidateCreate(Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "management_role_arn")
}

func TestValidateCreateRequiresCounterFields(t *testing.T) {
	cfg := Default()
	cfg.MgmtProfile = "mgmt"
	cfg.AutomationProfile = "automation"

	err := ValidateCreate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ssm_parameter_path")
	assert.Contains(t, err.Error(), "email.prefix")
	assert.Contains(t, err.Error(), "email.domain")
}

func TestValidateCreateEmailOverrideSkipsCounterFields(t *testing.T) {
	cfg := Default()
	cfg.MgmtProfile = "mgmt"
	cfg.EmailOverride = "ops+custom@example.com"

	assert.NoError(t, ValidateCreate(cfg))
}

func TestValidateCreateRejectsBadEmailOverride(t *testing.T) {
	cfg := Default()
	cfg.MgmtProfile = "mgmt"
	cfg.EmailOverride = "not-an-address"

	assert.Error(t, ValidateCreate(cfg))
}

func TestValidateCreateRequiresAutomationAccess(t *testing.T) {
	cfg := Default()
	cfg.MgmtProfile = "mgmt"
	cfg.SSMParameterPath = "/org/account-number"
	cfg.Email = EmailConfig{Prefix: "will", Domain: "example.com"}

	err := ValidateCreate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "automation_role_arn")
}
