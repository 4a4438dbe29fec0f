package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// NewPipelineCmd создаёт группу команд для управления pipeline.
func NewPipelineCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Manage pipelines",
	}

	cmd.AddCommand(
		newPipelineListCmd(clientFn, outputFn),
		newPipelineCreateCmd(clientFn, outputFn),
		newPipelineShowCmd(clientFn, outputFn),
		newPipelineRunCmd(clientFn, outputFn),
		newPipelineCancelCmd(clientFn, outputFn),
		newPipelineWatchCmd(clientFn, outputFn),
	)

	return cmd
}

func newPipelineListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pipelines",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			pipelines, err := client.ListPipelines(ListOpts{Status: status})
			if err != nil {
				return err
			}

			out.Print(summaryHeaders(), summaryRows(pipelines), pipelines)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (PENDING, RUNNING, COMPLETED, FAILED, CANCELLED)")

	return cmd
}

func newPipelineCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var file string
	var execute bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a pipeline from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read pipeline file: %w", err)
			}

			var req CreatePipelineRequest
			if err := json.Unmarshal(data, &req); err != nil {
				return fmt.Errorf("parse pipeline file: %w", err)
			}
			req.Execute = execute

			p, err := client.CreatePipeline(req)
			if err != nil {
				return err
			}

			out.Successf("Pipeline created: %s", p.ID)
			out.Print(pipelineHeaders(), [][]string{pipelineRow(p)}, p)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Pipeline definition file (JSON)")
	cmd.Flags().BoolVar(&execute, "execute", false, "Start execution immediately")
	cmd.MarkFlagRequired("file")

	return cmd
}

func newPipelineShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show pipeline details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			p, err := client.GetPipeline(args[0])
			if err != nil {
				return err
			}

			out.Detail(pipelineDetail(p), p)

			if len(p.Errors) > 0 && !out.jsonMode {
				out.Errorf("%d step error(s):", len(p.Errors))
				for _, e := range p.Errors {
					out.Errorf("  %s: %s", e.StepID, e.Error)
				}
			}
			return nil
		},
	}
}

func newPipelineRunCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "run ID",
		Short: "Start pipeline execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			p, err := client.ExecutePipeline(args[0])
			if err != nil {
				return err
			}

			out.Successf("Pipeline execution started: %s", p.ID)
			return nil
		},
	}
}

func newPipelineCancelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel a pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			p, err := client.CancelPipeline(args[0])
			if err != nil {
				return err
			}

			out.Successf("Cancel requested: %s (status: %s)", p.ID, p.Status)
			return nil
		},
	}
}

func newPipelineWatchCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch ID",
		Short: "Poll pipeline status until it finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			for {
				p, err := client.GetPipeline(args[0])
				if err != nil {
					return err
				}

				switch p.Status {
				case "COMPLETED", "FAILED", "CANCELLED":
					out.Detail(pipelineDetail(p), p)
					if p.Status != "COMPLETED" {
						return fmt.Errorf("pipeline finished with status %s", p.Status)
					}
					return nil
				default:
					out.Successf("status=%s current_step=%s", p.Status, p.CurrentStep)
				}

				time.Sleep(interval)
			}
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Polling interval")

	return cmd
}

// NewStatsCmd создаёт команду просмотра статистики.
func NewStatsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show registry statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			stats, err := client.GetStatistics()
			if err != nil {
				return err
			}

			headers := []string{"TOTAL", "PENDING", "RUNNING", "COMPLETED", "FAILED", "CANCELLED", "STEPS"}
			rows := [][]string{{
				strconv.Itoa(stats.Total),
				strconv.Itoa(stats.Pending),
				strconv.Itoa(stats.Running),
				strconv.Itoa(stats.Completed),
				strconv.Itoa(stats.Failed),
				strconv.Itoa(stats.Cancelled),
				strconv.Itoa(stats.StepsExecuted),
			}}

			out.Print(headers, rows, stats)
			return nil
		},
	}
}

// NewCleanupCmd создаёт команду очистки реестра.
func NewCleanupCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var maxAge time.Duration

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove finished pipelines older than max-age",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			resp, err := client.Cleanup(maxAge.Seconds())
			if err != nil {
				return err
			}

			out.Successf("Removed %d pipeline(s) from registry", resp.Removed)
			if resp.ArchivePurged >= 0 {
				out.Successf("Purged %d record(s) from archive", resp.ArchivePurged)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&maxAge, "max-age", time.Hour, "Age threshold for finished pipelines")

	return cmd
}

// NewArchiveCmd создаёт группу команд для работы с архивом.
func NewArchiveCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Browse execution history",
	}

	var status string
	var limit int

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List archived executions",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			pipelines, err := client.ListArchive(ListOpts{Status: status, Limit: limit})
			if err != nil {
				return err
			}

			out.Print(summaryHeaders(), summaryRows(pipelines), pipelines)
			return nil
		},
	}
	listCmd.Flags().StringVar(&status, "status", "", "Filter by status")
	listCmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	showCmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show archived execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			p, err := client.GetArchived(args[0])
			if err != nil {
				return err
			}

			out.Detail(pipelineDetail(p), p)
			return nil
		},
	}

	cmd.AddCommand(listCmd, showCmd)
	return cmd
}

// --- Табличное представление ---

func summaryHeaders() []string {
	return []string{"ID", "NAME", "STATUS", "STEPS", "ERRORS", "CREATED"}
}

func summaryRows(pipelines []PipelineSummaryResponse) [][]string {
	rows := make([][]string, len(pipelines))
	for i, p := range pipelines {
		rows[i] = []string{
			p.ID,
			p.Name,
			p.Status,
			strconv.Itoa(p.StepCount),
			strconv.Itoa(p.ErrorCount),
			p.CreatedAt,
		}
	}
	return rows
}

func pipelineHeaders() []string {
	return []string{"ID", "NAME", "STATUS", "CURRENT_STEP", "DURATION_MS", "CREATED"}
}

func pipelineRow(p *PipelineResponse) []string {
	return []string{
		p.ID,
		p.Name,
		p.Status,
		p.CurrentStep,
		strconv.FormatInt(p.DurationMs, 10),
		p.CreatedAt,
	}
}

// pipelineDetail — вертикальное представление pipeline для команд show.
func pipelineDetail(p *PipelineResponse) [][2]string {
	return [][2]string{
		{"ID", p.ID},
		{"Name", p.Name},
		{"Status", p.Status},
		{"Current step", p.CurrentStep},
		{"Steps", strconv.Itoa(len(p.Steps))},
		{"Results", strconv.Itoa(len(p.Results))},
		{"Errors", strconv.Itoa(len(p.Errors))},
		{"Duration (ms)", strconv.FormatInt(p.DurationMs, 10)},
		{"Created", p.CreatedAt},
	}
}
