package cli

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/Genflow/internal/domain"
	"github.com/shaiso/Genflow/internal/worker"
)

// NewJobCmd создаёт группу команд для работы с jobs.
// defaultMaxRetries — значение --max-retries по умолчанию.
func NewJobCmd(clientFn func() *Client, outputFn func() *Output, defaultMaxRetries int) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Enqueue and run jobs",
	}

	cmd.AddCommand(
		newJobEnqueueCmd(clientFn, outputFn, defaultMaxRetries),
		newJobRunCmd(outputFn, defaultMaxRetries),
		newJobTypesCmd(outputFn),
	)

	return cmd
}

// jobFlags — общие флаги создания job.
type jobFlags struct {
	jobType      string
	generationID string
	stepID       string
	payload      string
	maxRetries   int
}

func (f *jobFlags) register(cmd *cobra.Command, defaultMaxRetries int) {
	cmd.Flags().StringVar(&f.jobType, "type", "", "Job type (structure_text, solve_tasks, refine_text, fix_format)")
	cmd.Flags().StringVar(&f.generationID, "generation-id", "", "Generation ID (default: random)")
	cmd.Flags().StringVar(&f.stepID, "step-id", "", "Step ID")
	cmd.Flags().StringVar(&f.payload, "payload", "", "Payload as JSON object, - for stdin")
	cmd.Flags().IntVar(&f.maxRetries, "max-retries", defaultMaxRetries, "Maximum number of retries")
	cmd.MarkFlagRequired("type")
}

func (f *jobFlags) build(cmd *cobra.Command) (*domain.Job, error) {
	payload, err := parsePayload(f.payload, cmd.InOrStdin())
	if err != nil {
		return nil, err
	}

	generationID := uuid.New()
	if f.generationID != "" {
		if generationID, err = uuid.Parse(f.generationID); err != nil {
			return nil, fmt.Errorf("invalid generation-id: %w", err)
		}
	}

	stepID, err := parseOptionalUUID("step-id", f.stepID)
	if err != nil {
		return nil, err
	}

	return domain.NewJob(domain.JobType(f.jobType), generationID, stepID, payload, f.maxRetries)
}

func newJobEnqueueCmd(clientFn func() *Client, outputFn func() *Output, defaultMaxRetries int) *cobra.Command {
	var flags jobFlags

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Publish a job to the ready queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			job, err := flags.build(cmd)
			if err != nil {
				return err
			}
			publisher, err := clientFn().Publisher(cmd.Context())
			if err != nil {
				return err
			}
			if err := publisher.PublishJob(cmd.Context(), job); err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "TYPE", "GENERATION_ID", "MAX_RETRIES"},
				[][]string{{job.ID.String(), string(job.Type), job.GenerationID.String(), strconv.Itoa(job.MaxRetries)}},
				job,
			)
			out.Success("Job enqueued")
			return nil
		},
	}

	flags.register(cmd, defaultMaxRetries)
	return cmd
}

func newJobRunCmd(outputFn func() *Output, defaultMaxRetries int) *cobra.Command {
	var flags jobFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a job locally without the queue",
		Long: "Run a job in-process through the worker runner and print the result.\n" +
			"Only workers that need no external services are registered (fix_format).",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			job, err := flags.build(cmd)
			if err != nil {
				return err
			}

			runner := worker.NewRunner(worker.RunnerConfig{
				Registry: worker.NewRegistry(&worker.FormatFixWorker{}),
			})
			result := runner.Run(cmd.Context(), job)

			if out.jsonMode {
				out.JSON(result)
			} else {
				out.Table(
					[]string{"JOB_ID", "TYPE", "STATUS", "ERROR"},
					[][]string{{job.ID.String(), string(job.Type), string(job.Status), result.ErrorCode()}},
				)
				if text, ok := result.Output["text"].(string); ok {
					out.Line("")
					out.Line(text)
				}
			}

			if !result.Success {
				return fmt.Errorf("job failed: %s", result.Error.Message)
			}
			return nil
		},
	}

	flags.register(cmd, defaultMaxRetries)
	return cmd
}

func newJobTypesCmd(outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List known job types",
		RunE: func(cmd *cobra.Command, args []string) error {
			types := domain.KnownJobTypes()
			rows := make([][]string, len(types))
			for i, t := range types {
				rows[i] = []string{string(t)}
			}
			outputFn().Print([]string{"TYPE"}, rows, types)
			return nil
		},
	}
}
