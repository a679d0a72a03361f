package cli

import (
	"context"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/spf13/cobra"

	"github.com/hupe1980/agentmem/core"
	"github.com/hupe1980/agentmem/engine"
	"github.com/hupe1980/agentmem/logging"
	"github.com/hupe1980/agentmem/model"
	"github.com/hupe1980/agentmem/model/anthropic"
	"github.com/hupe1980/agentmem/model/openai"
	"github.com/hupe1980/agentmem/prompt"
)

var (
	blueprintPath string
	providerFlag  string
	verboseFlag   bool
)

var runCmd = &cobra.Command{
	Use:   "run [message]",
	Short: "Run one message through an agent thread",
	Long:  "Creates a thread from a blueprint, sends the message, drains the event loop and prints the rendered context. Without --provider a deterministic mock model is used.",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		message := strings.Join(args, " ")

		bp := defaultBlueprint()
		if blueprintPath != "" {
			loaded, err := core.LoadBlueprint(blueprintPath)
			if err != nil {
				exitErr("load blueprint", err)
			}
			bp = *loaded
		}

		s, err := openStore()
		if err != nil {
			exitErr("open store", err)
		}
		defer s.Close()

		logLevel := logging.LogLevelWarn
		if verboseFlag {
			logLevel = logging.LogLevelDebug
		}

		e := engine.New(func(o *engine.Options) {
			o.Store = s
			o.Model = pickModel(bp)
			o.Logger = logging.NewSlogLogger(logLevel, "text", false)
		})

		thread, err := e.CreateThread(ctx, bp, "")
		if err != nil {
			exitErr("create thread", err)
		}
		if err := e.EnqueueEvent(ctx, thread.ID, core.NewUserMessageEvent(message)); err != nil {
			exitErr("enqueue message", err)
		}
		e.Wait(thread.ID)

		result, err := e.BuildContext(ctx, thread.ID, prompt.Options{})
		if err != nil {
			exitErr("build context", err)
		}
		fmt.Printf("thread: %s\n\n", thread.ID)
		for _, m := range result.Messages {
			fmt.Printf("[%s]\n%s\n\n", m.Role, m.Text)
		}
	},
}

func init() {
	runCmd.Flags().StringVarP(&blueprintPath, "blueprint", "b", "", "Blueprint YAML file")
	runCmd.Flags().StringVarP(&providerFlag, "provider", "p", "", "Model provider: anthropic, openai or mock (default: blueprint provider, else mock)")
	runCmd.Flags().BoolVarP(&verboseFlag, "verbose", "v", false, "Debug logging")
}

func defaultBlueprint() core.Blueprint {
	return core.Blueprint{
		Name: "assistant",
		InitialChunks: []core.BlueprintChunk{
			{Type: core.ChunkTypeSystem, Text: "You are a helpful assistant."},
		},
	}
}

func pickModel(bp core.Blueprint) model.Model {
	provider := providerFlag
	if provider == "" {
		provider = bp.LLM.Provider
	}
	switch provider {
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			if bp.LLM.Model != "" {
				o.Model = sdk.Model(bp.LLM.Model)
			}
		})
	case "openai":
		return openai.NewModel(func(o *openai.Options) {
			if bp.LLM.Model != "" {
				o.Model = bp.LLM.Model
			}
		})
	default:
		return model.NewMockModel("mock")
	}
}
