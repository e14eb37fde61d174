package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/Genflow/internal/domain"
	"github.com/shaiso/Genflow/internal/events"
	"github.com/shaiso/Genflow/internal/lifecycle"
	"github.com/shaiso/Genflow/internal/repo"
)

// NewGenerationCmd создаёт группу команд для управления generations.
func NewGenerationCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "generation",
		Aliases: []string{"gen"},
		Short:   "Manage generations",
	}

	cmd.AddCommand(
		newGenerationCreateCmd(clientFn, outputFn),
		newGenerationShowCmd(clientFn, outputFn),
		newGenerationTransitionCmd(clientFn, outputFn),
		newGenerationTransitionsCmd(outputFn),
	)

	return cmd
}

func newGenerationCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var userID, moduleType, input string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a generation in DRAFT",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			uid := uuid.New()
			if userID != "" {
				var err error
				if uid, err = uuid.Parse(userID); err != nil {
					return fmt.Errorf("invalid user-id: %w", err)
				}
			}

			inputMap, err := parsePayload(input, cmd.InOrStdin())
			if err != nil {
				return err
			}

			pool, err := clientFn().Pool(cmd.Context())
			if err != nil {
				return err
			}

			g := domain.NewGeneration(uid, moduleType, inputMap)
			if err := repo.NewGenerationRepo(pool).Create(cmd.Context(), &g); err != nil {
				return err
			}

			out.Print(generationHeaders, [][]string{generationRow(g)}, g)
			out.Success("Generation created")
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user-id", "", "Owner user ID (default: random)")
	cmd.Flags().StringVar(&moduleType, "module-type", "", "Module type")
	cmd.Flags().StringVar(&input, "input", "", "Input as JSON object, - for stdin")
	cmd.MarkFlagRequired("module-type")

	return cmd
}

func newGenerationShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show GENERATION_ID",
		Short: "Show a generation and its steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid generation id: %w", err)
			}

			pool, err := clientFn().Pool(cmd.Context())
			if err != nil {
				return err
			}

			g, err := repo.NewGenerationRepo(pool).GetByID(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("generation %s: %w", id, err)
			}
			steps, err := repo.NewStepRepo(pool).ListByGeneration(cmd.Context(), id)
			if err != nil {
				return err
			}

			if out.jsonMode {
				out.JSON(struct {
					*domain.Generation
					Steps []domain.Step `json:"steps"`
				}{g, steps})
				return nil
			}

			out.Table(generationHeaders, [][]string{generationRow(*g)})
			out.Line("")

			rows := make([][]string, len(steps))
			for i, s := range steps {
				rows[i] = []string{
					s.ID.String(),
					s.Type,
					string(s.Status),
					strconv.Itoa(s.Progress),
					shortHash(s.InputHash),
					formatTime(s.FinishedAt),
				}
			}
			out.Table([]string{"STEP_ID", "TYPE", "STATUS", "PROGRESS", "INPUT_HASH", "FINISHED"}, rows)
			return nil
		},
	}
}

func newGenerationTransitionCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "transition GENERATION_ID STATUS",
		Short: "Move a generation to another status",
		Long: "Move a generation to another status through the state machine.\n" +
			"Disallowed transitions are rejected; see 'generation transitions'.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid generation id: %w", err)
			}
			to, ok := domain.ParseGenerationStatus(strings.ToUpper(args[1]))
			if !ok {
				return fmt.Errorf("unknown status %q", args[1])
			}

			client := clientFn()
			// брокер нужен до смены статуса: без него событие потеряется
			publisher, err := client.Publisher(cmd.Context())
			if err != nil {
				return err
			}
			pool, err := client.Pool(cmd.Context())
			if err != nil {
				return err
			}

			g, err := transitionGeneration(cmd.Context(), repo.NewStore(pool, nil, nil), publisher, id, to)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Generation %s is now %s", g.ID, g.Status))
			return nil
		},
	}
}

// generationTransitioner — смена статуса и чтение генерации (repo.Store).
type generationTransitioner interface {
	UpdateGeneration(ctx context.Context, id uuid.UUID, fields events.GenerationFields) error
	GetGeneration(ctx context.Context, id uuid.UUID) (*domain.Generation, error)
}

// eventPublisher — публикация доменного события (mq.Publisher).
type eventPublisher interface {
	PublishEvent(ctx context.Context, name string, event any) error
}

// transitionGeneration меняет статус и публикует GenerationUpdated
// в genflow.events, как это делает воркер.
func transitionGeneration(ctx context.Context, store generationTransitioner, pub eventPublisher, id uuid.UUID, to domain.GenerationStatus) (*domain.Generation, error) {
	if err := store.UpdateGeneration(ctx, id, events.GenerationFields{Status: to}); err != nil {
		return nil, err
	}

	g, err := store.GetGeneration(ctx, id)
	if err != nil {
		return nil, err
	}

	event := events.GenerationUpdated{
		GenerationID: g.ID,
		Status:       g.Status,
		OccurredAt:   g.UpdatedAt,
	}
	if err := pub.PublishEvent(ctx, event.EventName(), event); err != nil {
		return g, fmt.Errorf("generation %s moved to %s, event not published: %w", id, g.Status, err)
	}
	return g, nil
}

func newGenerationTransitionsCmd(outputFn func() *Output) *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "transitions",
		Short: "Print the generation status transition table",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := lifecycle.GenerationStatuses()
			if from != "" {
				st, ok := domain.ParseGenerationStatus(strings.ToUpper(from))
				if !ok {
					return fmt.Errorf("unknown status %q", from)
				}
				statuses = []domain.GenerationStatus{st}
			}

			table := make(map[domain.GenerationStatus][]domain.GenerationStatus, len(statuses))
			rows := make([][]string, len(statuses))
			for i, st := range statuses {
				allowed := lifecycle.AllowedTransitions(st)
				table[st] = allowed

				names := make([]string, len(allowed))
				for j, a := range allowed {
					names[j] = string(a)
				}
				to := strings.Join(names, ", ")
				if to == "" {
					to = "-"
				}
				rows[i] = []string{string(st), to}
			}

			outputFn().Print([]string{"FROM", "TO"}, rows, table)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Show transitions from a single status")
	return cmd
}

var generationHeaders = []string{"ID", "MODULE_TYPE", "STATUS", "CREATED", "FINISHED"}

func generationRow(g domain.Generation) []string {
	return []string{
		g.ID.String(),
		g.ModuleType,
		string(g.Status),
		formatTime(&g.CreatedAt),
		formatTime(g.FinishedAt),
	}
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	if h == "" {
		return "-"
	}
	return h
}
