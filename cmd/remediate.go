package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/relay-bss/batchmender/internal/config"
	"github.com/relay-bss/batchmender/internal/remediate/oe"
	"github.com/relay-bss/batchmender/internal/remediate/solution"
	"github.com/relay-bss/batchmender/internal/runtimeapi"
	"github.com/relay-bss/batchmender/models"
	"github.com/spf13/cobra"
)

// solutionTicketStatus and oeTicketStatus mirror the outcome tables in
// internal/batch and internal/gateway: the CLI's single-item routes run an
// engine directly, with no executor or façade in between, so the terminal
// ticket-status mapping is duplicated here in miniature.
var solutionTicketStatus = map[string]models.TicketStatus{
	"COMPLETED": models.TicketResolved,
	"SKIPPED":   models.TicketClosed,
	"FAILED":    models.TicketRejected,
}

var oeTicketStatus = map[string]models.TicketStatus{
	"REMEDIATED":   models.TicketResolved,
	"NOT_IMPACTED": models.TicketClosed,
	"SKIPPED":      models.TicketClosed,
	"FAILED":       models.TicketPending,
}

var remediateCmd = &cobra.Command{
	Use:   "remediate",
	Short: "Run one item through a remediation engine directly",
	Long: `Drives a single Solution or OE item through its remediation engine
without going through the gateway's scheduler or REST façade. Useful for
exercising a specific stuck record by hand, e.g. while investigating a
problem ticket.`,
}

var (
	remediateSkipValidation bool
	remediateTicketID       string
	remediateDryRun         bool
	remediateFallbackEmail  string
)

var remediateSolutionCmd = &cobra.Command{
	Use:   "solution <solution_id>",
	Short: "Run the Solution migration engine against one solution id",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemediateSolution,
}

var remediateOECmd = &cobra.Command{
	Use:   "oe <service_id>",
	Short: "Run the OE attachment engine against one service id",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemediateOE,
}

func init() {
	remediateSolutionCmd.Flags().BoolVar(&remediateSkipValidation, "skip-validation", false,
		"skip the VALIDATE step and proceed straight to DELETE")
	remediateSolutionCmd.Flags().StringVar(&remediateTicketID, "ticket-id", "",
		"problem ticket id to update with the final outcome")

	remediateOECmd.Flags().BoolVar(&remediateDryRun, "dry-run", false,
		"analyse and report the patch without persisting or triggering sync")
	remediateOECmd.Flags().StringVar(&remediateFallbackEmail, "fallback-email", "",
		"email to use for PIC_Email when enrichment resolution leaves it empty")
	remediateOECmd.Flags().StringVar(&remediateTicketID, "ticket-id", "",
		"problem ticket id to update with the final outcome")

	remediateCmd.AddCommand(remediateSolutionCmd, remediateOECmd)
}

func runRemediateSolution(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	client := runtimeapi.New(cfg.Runtime)
	engine := solution.New(client, solution.PollConfigFromRemediate(cfg.Remediate))

	result := engine.Run(cmd.Context(), args[0], solution.RunOptions{SkipValidation: remediateSkipValidation})
	if remediateTicketID != "" {
		status, ok := solutionTicketStatus[result.FinalState]
		if !ok {
			status = models.TicketRejected
		}
		if err := client.UpdateTicket(cmd.Context(), remediateTicketID, status, result.FinalState, result.Message()); err != nil {
			fmt.Fprintf(os.Stderr, "warning: updating ticket %s failed: %v\n", remediateTicketID, err)
		}
	}
	return printJSON(result)
}

func runRemediateOE(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	client := runtimeapi.New(cfg.Runtime)
	engine := oe.New(client)

	if remediateDryRun {
		preview, err := engine.Preview(cmd.Context(), args[0], oe.RunOptions{FallbackEmail: remediateFallbackEmail})
		if err != nil {
			return err
		}
		return printJSON(preview)
	}

	result := engine.Run(cmd.Context(), args[0], oe.RunOptions{FallbackEmail: remediateFallbackEmail})
	if remediateTicketID != "" {
		status, ok := oeTicketStatus[result.FinalState]
		if !ok {
			status = models.TicketPending
		}
		if err := client.UpdateTicket(cmd.Context(), remediateTicketID, status, result.FinalState, result.Message()); err != nil {
			fmt.Fprintf(os.Stderr, "warning: updating ticket %s failed: %v\n", remediateTicketID, err)
		}
	}
	return printJSON(result)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
