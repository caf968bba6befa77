package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "iei",
	Short: "ExposureGraph CLI",
	Long:  "A CLI for the identity exposure graph and scoring service.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		loadConfig()
		// Env var overrides are applied in newClient()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table", "Output format: table, json, raw")
	rootCmd.PersistentFlags().StringVar(&outputField, "field", "", "Print only this field (use with -format=raw)")

	rootCmd.AddCommand(healthCmd())
	rootCmd.AddCommand(graphCmd())
	rootCmd.AddCommand(rolesCmd())
	rootCmd.AddCommand(scoreCmd())
	rootCmd.AddCommand(collectCmd())
}

// --- health ---

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			result, err := client.get("/v1/sys/health")
			if err != nil {
				printError(err.Error())
				return nil
			}
			printResult(result)
			return nil
		},
	}
}

// --- graph ---

func graphCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "graph", Short: "Feed the identity graph"}

	identityCmd := &cobra.Command{
		Use:   "identity <file>",
		Short: "Upsert role records from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				printError(err.Error())
				return nil
			}
			var records []map[string]any
			if err := json.Unmarshal(data, &records); err != nil {
				printError("parsing " + args[0] + ": " + err.Error())
				return nil
			}
			client := newClient()
			result, err := client.post("/v1/graph/identity", map[string]any{"records": records})
			if err != nil {
				printError(err.Error())
				return nil
			}
			printResult(result)
			return nil
		},
	}

	usageCmd := &cobra.Command{
		Use:   "usage <file>",
		Short: "Annotate usage from a JSON file mapping role ARN to actions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			windowStart, _ := cmd.Flags().GetString("window-start")
			data, err := os.ReadFile(args[0])
			if err != nil {
				printError(err.Error())
				return nil
			}
			var usage map[string][]string
			if err := json.Unmarshal(data, &usage); err != nil {
				printError("parsing " + args[0] + ": " + err.Error())
				return nil
			}
			body := map[string]any{"usage": usage}
			if windowStart != "" {
				body["window_start"] = windowStart
			}
			client := newClient()
			result, err := client.post("/v1/graph/usage", body)
			if err != nil {
				printError(err.Error())
				return nil
			}
			printResult(result)
			return nil
		},
	}
	usageCmd.Flags().String("window-start", "", "Lookback window start (RFC3339, default: server lookback)")

	cmd.AddCommand(identityCmd, usageCmd)
	return cmd
}

// --- roles ---

func rolesCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "roles", Short: "Inspect roles in the graph"}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List role ARNs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			result, err := client.get("/v1/roles")
			if err != nil {
				printError(err.Error())
				return nil
			}
			if roles, ok := result["roles"].([]any); ok {
				for _, r := range roles {
					fmt.Println(r)
				}
				return nil
			}
			printResult(result)
			return nil
		},
	}

	metricsCmd := &cobra.Command{
		Use:   "metrics <arn>",
		Short: "Show usage metrics and risk level for a role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			result, err := client.get("/v1/roles/metrics?arn=" + queryEscape(args[0]))
			if err != nil {
				printError(err.Error())
				return nil
			}
			printResult(result)
			return nil
		},
	}

	scoreCmd := &cobra.Command{
		Use:   "score <arn>",
		Short: "Compute the exposure score for a role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			result, err := client.get("/v1/roles/score?arn=" + queryEscape(args[0]))
			if err != nil {
				printError(err.Error())
				return nil
			}
			printResult(result)
			return nil
		},
	}

	cmd.AddCommand(listCmd, metricsCmd, scoreCmd)
	return cmd
}

// --- score ---

func scoreCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "score", Short: "Scoring pass operations"}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Score every role and publish the results",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			result, err := client.post("/v1/score/run", nil)
			if err != nil {
				printError(err.Error())
				return nil
			}
			printResult(result)
			return nil
		},
	}

	cmd.AddCommand(runCmd)
	return cmd
}

// --- collect ---

func collectCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "collect", Short: "Trigger server-side AWS collection"}

	identityCmd := &cobra.Command{
		Use:   "identity",
		Short: "Enumerate IAM roles and policies into the graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			result, err := client.post("/v1/collect/identity", nil)
			if err != nil {
				printError(err.Error())
				return nil
			}
			printResult(result)
			return nil
		},
	}

	usageCmd := &cobra.Command{
		Use:   "usage",
		Short: "Aggregate CloudTrail events into usage edges",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			result, err := client.post("/v1/collect/usage", nil)
			if err != nil {
				printError(err.Error())
				return nil
			}
			printResult(result)
			return nil
		},
	}

	cmd.AddCommand(identityCmd, usageCmd)
	return cmd
}
