package cmd

import (
	"fmt"

	"github.com/grovetools/deskd/cli"
	"github.com/grovetools/deskd/config"
	"github.com/grovetools/deskd/errors"
	"github.com/grovetools/deskd/logging"
	"github.com/grovetools/deskd/schema"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewConfigCmd returns the configuration commands.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate the deskd configuration",
	}
	cmd.AddCommand(newConfigShowCmd(), newConfigValidateCmd(), newConfigSchemaCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the configuration after merging deskd.override.* and applying
defaults. Without a config file the defaults are shown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				return printValue(cmd.OutOrStdout(), cfg)
			}

			out := cmd.OutOrStdout()
			if path != "" {
				fmt.Fprintf(out, "# Source: %s\n", path)
			} else {
				fmt.Fprintln(out, "# Source: defaults (no config file)")
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Fprint(out, string(data))
			return nil
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a configuration file against the schema",
		Long: `Validate a configuration file. The file is checked against the JSON schema
first, so unknown keys are reported, then loaded to check values the schema
cannot express.

Examples:
  deskd config validate
  deskd config validate ./deskd.toml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cli.GetOptions(cmd).ConfigFile
			if len(args) == 1 {
				path = args[0]
			}
			path, err := cli.InitConfig(path)
			if err != nil {
				return err
			}
			pretty := logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout())
			if path == "" {
				pretty.WarnPretty("No config file found; defaults apply")
				return nil
			}

			if err := validateFile(path); err != nil {
				return err
			}
			pretty.Success("Configuration is valid")
			pretty.Path("file", path)
			return nil
		},
	}
}

// validateFile runs schema and semantic validation on path.
func validateFile(path string) error {
	schemaData, err := config.GenerateSchema()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to generate schema")
	}
	validator, err := schema.NewValidator(schemaData)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to compile schema")
	}

	raw, err := config.LoadRaw(path)
	if err != nil {
		return err
	}
	if err := validator.Validate(raw); err != nil {
		if derr, ok := errors.As(err); ok {
			return derr.WithDetail("path", path)
		}
		return err
	}

	_, err = config.Load(path)
	return err
}

func newConfigSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of deskd.yml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.GenerateSchema()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}
