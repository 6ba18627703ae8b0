package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/charmbracelet/huh"
	"github.com/relay-bss/batchmender/internal/config"
	"github.com/relay-bss/batchmender/internal/runtimeapi"
	"github.com/relay-bss/batchmender/models"
	"github.com/spf13/cobra"
	yaml "go.yaml.in/yaml/v3"
)

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "List, add, remove, or migrate recurring batch schedules",
}

var schedulerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every schedule known to the runtime",
	RunE:  runSchedulerList,
}

var schedulerAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a new schedule, interactively if no flags are given",
	RunE:  runSchedulerAdd,
}

var schedulerRemoveCmd = &cobra.Command{
	Use:   "remove <schedule_id>",
	Short: "Delete a schedule",
	Args:  cobra.ExactArgs(1),
	RunE:  runSchedulerRemove,
}

var schedulerExportCmd = &cobra.Command{
	Use:   "export <file.yaml>",
	Short: "Write every schedule to a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE:  runSchedulerExport,
}

var schedulerImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Create schedules from a YAML file previously produced by 'export'",
	Args:  cobra.ExactArgs(1),
	RunE:  runSchedulerImport,
}

var (
	addName         string
	addCategory     string
	addRecurrence   string
	addCronExpr     string
	addWindowStart  string
	addWindowEnd    string
	addTimezone     string
	addMaxBatchSize int
	addActive       bool
)

func init() {
	schedulerAddCmd.Flags().StringVar(&addName, "name", "", "schedule name")
	schedulerAddCmd.Flags().StringVar(&addCategory, "category", "", "SolutionEmpty | PartialDataMissing")
	schedulerAddCmd.Flags().StringVar(&addRecurrence, "recurrence", "", "once | daily | weekdays | weekly | custom")
	schedulerAddCmd.Flags().StringVar(&addCronExpr, "cron", "", "5-field cron expression, only used when --recurrence=custom")
	schedulerAddCmd.Flags().StringVar(&addWindowStart, "window-start", "00:00:00", "window start time, HH:MM:SS")
	schedulerAddCmd.Flags().StringVar(&addWindowEnd, "window-end", "06:00:00", "window end time, HH:MM:SS")
	schedulerAddCmd.Flags().StringVar(&addTimezone, "timezone", "UTC", "IANA timezone name")
	schedulerAddCmd.Flags().IntVar(&addMaxBatchSize, "max-batch-size", 100, "maximum items processed per execution")
	schedulerAddCmd.Flags().BoolVar(&addActive, "active", true, "activate the schedule immediately")

	schedulerCmd.AddCommand(schedulerListCmd, schedulerAddCmd, schedulerRemoveCmd, schedulerExportCmd, schedulerImportCmd)
}

func newRuntimeClient() (*runtimeapi.Client, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if cfg.Runtime.BaseURL == "" {
		return nil, fmt.Errorf("runtime.base_url is not configured; run 'batchmender config edit' first")
	}
	return runtimeapi.New(cfg.Runtime), nil
}

func runSchedulerList(cmd *cobra.Command, args []string) error {
	client, err := newRuntimeClient()
	if err != nil {
		return err
	}
	raws, err := client.ListSchedules(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing schedules: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tACTIVE\tRECURRENCE\tWINDOW\tNEXT RUN")
	for _, raw := range raws {
		sched, perr := runtimeapi.ParseSchedule(raw)
		if perr != nil {
			fmt.Fprintf(os.Stderr, "warning: skipping unparseable schedule: %v\n", perr)
			continue
		}
		next := "—"
		if sched.NextExecutionAt != nil {
			next = sched.NextExecutionAt.Format("2006-01-02T15:04:05Z07:00")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%s\t%s-%s %s\t%s\n",
			sched.ID, sched.Name, sched.Category, sched.Active, sched.Recurrence,
			sched.WindowStart, sched.WindowEnd, sched.Timezone, next)
	}
	return w.Flush()
}

func runSchedulerAdd(cmd *cobra.Command, args []string) error {
	client, err := newRuntimeClient()
	if err != nil {
		return err
	}

	if addName == "" {
		if err := runSchedulerAddForm(); err != nil {
			return err
		}
	}
	if addName == "" {
		return fmt.Errorf("schedule name is required")
	}

	draft := runtimeapi.ScheduleDraft{
		Name:           addName,
		Category:       models.ScheduleCategory(addCategory),
		Recurrence:     models.Recurrence(addRecurrence),
		RecurrenceExpr: addCronExpr,
		WindowStart:    addWindowStart,
		WindowEnd:      addWindowEnd,
		Timezone:       addTimezone,
		MaxBatchSize:   addMaxBatchSize,
		Active:         addActive,
	}
	id, err := client.CreateSchedule(cmd.Context(), draft)
	if err != nil {
		return fmt.Errorf("creating schedule: %w", err)
	}
	fmt.Printf("created schedule %s (%s)\n", id, addName)
	return nil
}

// runSchedulerAddForm walks the operator through the same fields as the
// flag set.
func runSchedulerAddForm() error {
	maxBatch := fmt.Sprintf("%d", addMaxBatchSize)
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Schedule name").Value(&addName),
			huh.NewSelect[string]().
				Title("Category").
				Options(
					huh.NewOption("Solution stuck empty", string(models.CategorySolutionEmpty)),
					huh.NewOption("OE partial data missing", string(models.CategoryPartialDataMissing)),
				).
				Value(&addCategory),
			huh.NewSelect[string]().
				Title("Recurrence").
				Options(
					huh.NewOption("Once", string(models.RecurrenceOnce)),
					huh.NewOption("Daily", string(models.RecurrenceDaily)),
					huh.NewOption("Weekdays", string(models.RecurrenceWeekdays)),
					huh.NewOption("Weekly", string(models.RecurrenceWeekly)),
					huh.NewOption("Custom (cron)", string(models.RecurrenceCustom)),
				).
				Value(&addRecurrence),
			huh.NewInput().Title("Cron expression (only for custom)").Value(&addCronExpr),
			huh.NewInput().Title("Window start (HH:MM:SS)").Value(&addWindowStart),
			huh.NewInput().Title("Window end (HH:MM:SS)").Value(&addWindowEnd),
			huh.NewInput().Title("Timezone (IANA name)").Value(&addTimezone),
			huh.NewInput().Title("Max batch size").Value(&maxBatch),
			huh.NewConfirm().Title("Activate immediately?").Value(&addActive),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}
	if _, err := fmt.Sscanf(maxBatch, "%d", &addMaxBatchSize); err != nil {
		return fmt.Errorf("invalid max batch size %q", maxBatch)
	}
	return nil
}

func runSchedulerRemove(cmd *cobra.Command, args []string) error {
	client, err := newRuntimeClient()
	if err != nil {
		return err
	}
	if err := client.DeleteSchedule(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("deleting schedule %s: %w", args[0], err)
	}
	fmt.Printf("deleted schedule %s\n", args[0])
	return nil
}

// exportedSchedules is the document shape written by 'scheduler export' and
// read back by 'scheduler import'. Only the fields meaningful to re-create a
// schedule are carried; execution counters are left behind since they belong
// to the run history of the original record, not the definition.
type exportedSchedules struct {
	Schedules []exportedSchedule `yaml:"schedules"`
}

type exportedSchedule struct {
	Name              string           `yaml:"name"`
	Active            bool             `yaml:"active"`
	Category          string           `yaml:"category"`
	Recurrence        string           `yaml:"recurrence"`
	RecurrenceExpr    string           `yaml:"recurrence_expr,omitempty"`
	WindowStart       string           `yaml:"window_start_time"`
	WindowEnd         string           `yaml:"window_end_time"`
	Timezone          string           `yaml:"timezone"`
	MaxBatchSize      int              `yaml:"max_batch_size"`
	SelectionCriteria map[string]any   `yaml:"selection_criteria,omitempty"`
}

func runSchedulerExport(cmd *cobra.Command, args []string) error {
	client, err := newRuntimeClient()
	if err != nil {
		return err
	}
	raws, err := client.ListSchedules(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing schedules: %w", err)
	}

	doc := exportedSchedules{}
	for _, raw := range raws {
		sched, perr := runtimeapi.ParseSchedule(raw)
		if perr != nil {
			fmt.Fprintf(os.Stderr, "warning: skipping unparseable schedule: %v\n", perr)
			continue
		}
		doc.Schedules = append(doc.Schedules, exportedSchedule{
			Name:              sched.Name,
			Active:            sched.Active,
			Category:          string(sched.Category),
			Recurrence:        string(sched.Recurrence),
			RecurrenceExpr:    sched.RecurrenceExpr,
			WindowStart:       sched.WindowStart,
			WindowEnd:         sched.WindowEnd,
			Timezone:          sched.Timezone,
			MaxBatchSize:      sched.MaxBatchSize,
			SelectionCriteria: sched.SelectionCriteria,
		})
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding schedules: %w", err)
	}
	if err := os.WriteFile(args[0], out, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", args[0], err)
	}
	fmt.Printf("wrote %d schedules to %s\n", len(doc.Schedules), args[0])
	return nil
}

func runSchedulerImport(cmd *cobra.Command, args []string) error {
	client, err := newRuntimeClient()
	if err != nil {
		return err
	}
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}
	var doc exportedSchedules
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parsing %s: %w", args[0], err)
	}

	created := 0
	for _, s := range doc.Schedules {
		draft := runtimeapi.ScheduleDraft{
			Name:              s.Name,
			Active:            s.Active,
			Category:          models.ScheduleCategory(s.Category),
			Recurrence:        models.Recurrence(s.Recurrence),
			RecurrenceExpr:    s.RecurrenceExpr,
			WindowStart:       s.WindowStart,
			WindowEnd:         s.WindowEnd,
			Timezone:          s.Timezone,
			MaxBatchSize:      s.MaxBatchSize,
			SelectionCriteria: s.SelectionCriteria,
		}
		id, err := client.CreateSchedule(cmd.Context(), draft)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to import %q: %v\n", s.Name, err)
			continue
		}
		created++
		fmt.Printf("created schedule %s (%s)\n", id, s.Name)
	}
	fmt.Printf("imported %d/%d schedules\n", created, len(doc.Schedules))
	return nil
}
