package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/Genflow/internal/domain"
	"github.com/shaiso/Genflow/internal/lifecycle"
	"github.com/shaiso/Genflow/internal/repo"
)

// NewStepCmd создаёт группу команд для управления steps.
func NewStepCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "step",
		Short: "Manage generation steps",
	}

	cmd.AddCommand(
		newStepCreateCmd(clientFn, outputFn),
	)

	return cmd
}

func newStepCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var generationID, stepType, payload string
	var force bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a PENDING step",
		Long: "Create a PENDING step with the input hash of its payload.\n" +
			"If a step of the same type with the same input already succeeded\n" +
			"in this generation, it is printed instead (use --force to create anyway).",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			genID, err := uuid.Parse(generationID)
			if err != nil {
				return fmt.Errorf("invalid generation-id: %w", err)
			}
			input, err := parsePayload(payload, cmd.InOrStdin())
			if err != nil {
				return err
			}
			hash, err := lifecycle.CalculateInputHash(input)
			if err != nil {
				return err
			}

			pool, err := clientFn().Pool(cmd.Context())
			if err != nil {
				return err
			}
			steps := repo.NewStepRepo(pool)

			if !force {
				existing, err := steps.FindSucceededByHash(cmd.Context(), genID, stepType, hash)
				switch {
				case err == nil:
					out.Print(stepHeaders, [][]string{stepRow(*existing)}, existing)
					out.Success("Step with the same input already succeeded, reusing it")
					return nil
				case !errors.Is(err, repo.ErrNotFound):
					return err
				}
			}

			step := domain.NewStep(genID, stepType, hash)
			if err := steps.Create(cmd.Context(), &step); err != nil {
				return err
			}

			out.Print(stepHeaders, [][]string{stepRow(step)}, step)
			out.Success("Step created")
			return nil
		},
	}

	cmd.Flags().StringVar(&generationID, "generation-id", "", "Parent generation ID")
	cmd.Flags().StringVar(&stepType, "type", "", "Step type")
	cmd.Flags().StringVar(&payload, "payload", "", "Step input as JSON object, - for stdin")
	cmd.Flags().BoolVar(&force, "force", false, "Create even if an identical step already succeeded")
	cmd.MarkFlagRequired("generation-id")
	cmd.MarkFlagRequired("type")

	return cmd
}

var stepHeaders = []string{"ID", "TYPE", "STATUS", "PROGRESS", "INPUT_HASH"}

func stepRow(s domain.Step) []string {
	return []string{
		s.ID.String(),
		s.Type,
		string(s.Status),
		strconv.Itoa(s.Progress),
		shortHash(s.InputHash),
	}
}
