package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/openmule/gacua/internal/agent"
	"github.com/openmule/gacua/internal/computer"
	"github.com/openmule/gacua/internal/events"
	"github.com/openmule/gacua/internal/grounding"
	"github.com/openmule/gacua/internal/llm"
	"github.com/openmule/gacua/internal/observability"
	"github.com/openmule/gacua/internal/schemas"
	"github.com/openmule/gacua/internal/store"
	"github.com/openmule/gacua/internal/tools"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// request is the envelope for client-initiated requests read from stdin.
type request struct {
	Type      string                     `json:"type"`
	UserInput *schemas.UserInputRequest  `json:"userInput,omitempty"`
	Review    *schemas.ToolReviewRequest `json:"toolReview,omitempty"`
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the agent, reading requests from stdin and writing events to stdout.",
	Long: `Serve starts the agent runtime. It reads JSON-lines requests from stdin:

  {"type": "user_input", "userInput": {"sessionId": "", "input": "...", "model": "..."}}
  {"type": "tool_review", "toolReview": {"sessionId": "...", "reviewId": "...", "choice": "accept_once"}}

and writes every session event to stdout as one JSON object per line.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, os.Stdin, os.Stdout)
	},
}

func runServe(ctx context.Context, in io.Reader, out io.Writer) error {
	logger := observability.GetLogger()

	st, err := store.New(cfg.Storage.Root, logger)
	if err != nil {
		return err
	}
	gen, err := llm.NewClient(ctx, llm.Options{
		APIKey:            cfg.LLM.APIKey,
		RequestsPerMinute: cfg.LLM.RequestsPerMinute,
	}, logger)
	if err != nil {
		return fmt.Errorf("creating LLM client: %w", err)
	}

	hub := events.NewHub(logger, cfg.Events.BufferSize)
	defer hub.Shutdown()

	comp := computer.NewHTTPClient(cfg.Computer.Endpoint, cfg.Computer.Timeout, logger)
	detector := grounding.NewDetector(gen, cfg.LLM.GroundingModel, logger)
	loop := agent.NewLoop(st, gen, detector, comp, tools.NewCatalog(), hub, logger)
	manager := agent.NewManager(loop, st, hub, cfg.LLM.PlannerModel, logger)
	defer manager.Shutdown()

	group, ctx := errgroup.WithContext(ctx)

	// Event printer: one JSON object per line on stdout.
	eventCh, unsubscribe := hub.Subscribe()
	defer unsubscribe()
	group.Go(func() error {
		enc := json.NewEncoder(out)
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev, ok := <-eventCh:
				if !ok {
					return nil
				}
				if err := enc.Encode(ev); err != nil {
					return fmt.Errorf("writing event: %w", err)
				}
			}
		}
	})

	// Request reader: dispatch each stdin line to the manager.
	group.Go(func() error {
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			if err := ctx.Err(); err != nil {
				return nil
			}
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			if err := dispatch(ctx, manager, line); err != nil {
				logger.Warn("Rejected request", zap.Error(err))
			}
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("reading requests: %w", err)
		}
		// stdin closed; keep serving events until cancelled.
		<-ctx.Done()
		return nil
	})

	logger.Info("Agent runtime started",
		zap.String("plannerModel", cfg.LLM.PlannerModel),
		zap.String("groundingModel", cfg.LLM.GroundingModel),
		zap.String("computerEndpoint", cfg.Computer.Endpoint))

	return group.Wait()
}

func dispatch(ctx context.Context, manager *agent.Manager, line []byte) error {
	var req request
	if err := json.Unmarshal(line, &req); err != nil {
		return fmt.Errorf("invalid request JSON: %w", err)
	}
	switch req.Type {
	case "user_input":
		if req.UserInput == nil {
			return fmt.Errorf("user_input request missing payload")
		}
		_, err := manager.HandleUserInput(ctx, *req.UserInput)
		return err
	case "tool_review":
		if req.Review == nil {
			return fmt.Errorf("tool_review request missing payload")
		}
		return manager.HandleToolReview(ctx, *req.Review)
	default:
		return fmt.Errorf("unknown request type %q", req.Type)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
