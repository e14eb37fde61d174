package cli

import (
	"github.com/spf13/cobra"

	"github.com/shaiso/Genflow/internal/lifecycle"
)

// NewHashCmd создаёт команду расчёта input_hash для payload шага.
func NewHashCmd(outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "hash [JSON|-]",
		Short: "Compute the input hash of a step payload",
		Long: "Compute the canonical SHA-256 input hash of a JSON object.\n" +
			"Key order does not affect the result. Use - to read from stdin.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			arg := "-"
			if len(args) == 1 {
				arg = args[0]
			}

			payload, err := parsePayload(arg, cmd.InOrStdin())
			if err != nil {
				return err
			}

			hash, err := lifecycle.CalculateInputHash(payload)
			if err != nil {
				return err
			}

			out := outputFn()
			if out.jsonMode {
				out.JSON(map[string]string{"input_hash": hash})
				return nil
			}
			out.Line(hash)
			return nil
		},
	}
}
