package cmd

import (
	"errors"
	"fmt"
	"os"
	"streamline/config"
	"streamline/database"
	"streamline/logger"
	"streamline/models"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	ruleDescription string
	ruleActive      bool
	ruleNewPattern  string
	ruleActiveOnly  bool
	ruleImportUser  string
)

var ruleCmd = &cobra.Command{
	Use:     "rule",
	Short:   "Manage block rules",
	Long:    `Block rules are URL substrings. Any request whose full URL contains an active rule's pattern is answered with a 403.`,
	Aliases: []string{"rules", "r"},
}

func ruleFail(format string, err error) {
	logger.Error(format, err)
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	if errors.Is(err, database.ErrRuleNotFound) {
		os.Exit(3)
	}
	os.Exit(1)
}

var ruleListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List all block rules in store order",
	Aliases: []string{"ls"},
	Run: func(cmd *cobra.Command, args []string) {
		rules, err := database.GetAllBlockRules()
		if err != nil {
			ruleFail("Failed to list rules: %v", err)
		}
		if len(rules) == 0 {
			fmt.Println("No block rules found. Add one with 'streamline rule add <pattern>'.")
			return
		}
		writer := new(tabwriter.Writer)
		writer.Init(os.Stdout, 0, 8, 2, ' ', 0)
		fmt.Fprintln(writer, "ACTIVE\tPATTERN\tDESCRIPTION")
		fmt.Fprintln(writer, "------\t-------\t-----------")
		shown := 0
		for _, r := range rules {
			if ruleActiveOnly && !r.Active {
				continue
			}
			mark := " "
			if r.Active {
				mark = "x"
			}
			fmt.Fprintf(writer, "[%s]\t%s\t%s\n", mark, r.Pattern, r.Description)
			shown++
		}
		writer.Flush()
		fmt.Printf("\n%d rule(s) shown.\n", shown)
	},
}

var ruleAddCmd = &cobra.Command{
	Use:   "add <pattern>",
	Short: "Add a block rule (inactive unless --active)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		rule := models.BlockRule{Pattern: args[0], Active: ruleActive, Description: strings.TrimSpace(ruleDescription)}
		if err := database.AddBlockRule(rule); err != nil {
			ruleFail("Failed to add rule: %v", err)
		}
		logger.Info("Rule %q added (active=%t)", rule.Pattern, rule.Active)
		fmt.Printf("Rule %q added.\n", rule.Pattern)
	},
}

var ruleEditCmd = &cobra.Command{
	Use:   "edit <pattern>",
	Short: "Edit a block rule's pattern, description or activation",
	Long: `Edits the rule identified by <pattern>. --pattern renames it and --description
replaces its description. The rule keeps its activation unless --active is given.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		current, err := database.GetBlockRule(args[0])
		if err != nil {
			ruleFail("Failed to load rule: %v", err)
		}
		updated := current
		if cmd.Flags().Changed("pattern") {
			updated.Pattern = ruleNewPattern
		}
		if cmd.Flags().Changed("description") {
			updated.Description = strings.TrimSpace(ruleDescription)
		}
		if cmd.Flags().Changed("active") {
			updated.Active = ruleActive
		}
		if err := database.UpdateBlockRule(current.Pattern, updated); err != nil {
			ruleFail("Failed to edit rule: %v", err)
		}
		logger.Info("Rule %q edited (now %q, active=%t)", current.Pattern, updated.Pattern, updated.Active)
		fmt.Printf("Rule %q updated.\n", updated.Pattern)
	},
}

var ruleDeleteCmd = &cobra.Command{
	Use:     "delete <pattern>...",
	Short:   "Delete block rules",
	Aliases: []string{"rm"},
	Args:    cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		n, err := database.DeleteBlockRules(args...)
		if err != nil {
			ruleFail("Failed to delete rules: %v", err)
		}
		logger.Info("Deleted %d rule(s): %s", n, strings.Join(args, ", "))
		fmt.Printf("Deleted %d rule(s).\n", n)
	},
}

func newActivationCmd(use, short string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <pattern>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			n, err := database.SetBlockRulesActive(active, args...)
			if err != nil {
				ruleFail("Failed to change rule activation: %v", err)
			}
			logger.Info("Set active=%t on %d rule(s)", active, n)
			fmt.Printf("Updated %d rule(s). Restart the proxy for the change to take effect.\n", n)
		},
	}
}

var ruleImportCmd = &cobra.Command{
	Use:   "import [config_main.json]",
	Short: "Import rules from the legacy JSON configuration",
	Long: `Reads config_main.json (default rules.legacy_path) and the config_user.json it
points at, and upserts every rule. --user-file reads a config_user.json directly.
The legacy server_port is stored as the proxy port when no port setting exists yet.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var (
			rules   []models.BlockRule
			skipped int
			err     error
			legacy  config.LegacyMain
		)
		if ruleImportUser != "" {
			rules, skipped, err = config.ReadLegacyRules(ruleImportUser)
		} else {
			mainPath := config.AppConfig.Rules.LegacyPath
			if len(args) == 1 {
				mainPath = args[0]
			}
			legacy, rules, skipped, err = config.LoadLegacy(mainPath)
		}
		if err != nil {
			ruleFail("Failed to read legacy rules: %v", err)
		}

		for _, r := range rules {
			if err := database.UpsertBlockRule(r); err != nil {
				ruleFail("Failed to import rule: %v", err)
			}
		}
		if legacy.ServerPort != "" {
			stored, err := database.GetSetting(models.ProxyPortKey)
			if err == nil && stored == "" {
				if _, perr := config.ParsePort(legacy.ServerPort); perr == nil {
					if err := database.SetSetting(models.ProxyPortKey, legacy.ServerPort); err != nil {
						logger.Error("Failed to store legacy proxy port: %v", err)
					}
				}
			}
		}
		logger.Info("Imported %d legacy rule(s), skipped %d", len(rules), skipped)
		fmt.Printf("Imported %d rule(s)", len(rules))
		if skipped > 0 {
			fmt.Printf(", skipped %d invalid entr(ies)", skipped)
		}
		fmt.Println(".")
	},
}

var ruleExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export rules in the legacy config_user.json format (stdout by default)",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		rules, err := database.GetAllBlockRules()
		if err != nil {
			ruleFail("Failed to list rules: %v", err)
		}
		data, err := config.ExportLegacyRules(rules)
		if err != nil {
			ruleFail("Failed to encode rules: %v", err)
		}
		if len(args) == 0 {
			os.Stdout.Write(data)
			fmt.Println()
			return
		}
		if err := os.WriteFile(args[0], data, 0640); err != nil {
			ruleFail("Failed to write export: %v", err)
		}
		fmt.Printf("Exported %d rule(s) to %s.\n", len(rules), args[0])
	},
}

func init() {
	ruleListCmd.Flags().BoolVar(&ruleActiveOnly, "active", false, "Show only active rules")

	ruleAddCmd.Flags().StringVarP(&ruleDescription, "description", "d", "", "Rule description")
	ruleAddCmd.Flags().BoolVar(&ruleActive, "active", false, "Activate the rule immediately")

	ruleEditCmd.Flags().StringVar(&ruleNewPattern, "pattern", "", "New pattern")
	ruleEditCmd.Flags().StringVarP(&ruleDescription, "description", "d", "", "New description")
	ruleEditCmd.Flags().BoolVar(&ruleActive, "active", false, "Set activation (--active=false to deactivate)")

	ruleImportCmd.Flags().StringVar(&ruleImportUser, "user-file", "", "Read a config_user.json directly")

	ruleCmd.AddCommand(ruleListCmd, ruleAddCmd, ruleEditCmd, ruleDeleteCmd,
		newActivationCmd("enable", "Activate block rules", true),
		newActivationCmd("disable", "Deactivate block rules", false),
		ruleImportCmd, ruleExportCmd)
	rootCmd.AddCommand(ruleCmd)
}
