package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var showSteps bool

var inspectCmd = &cobra.Command{
	Use:   "inspect [thread-id]",
	Short: "Inspect stored threads",
	Long:  "Without arguments, lists all threads in the database. With a thread id, dumps the thread's current state as JSON.",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		s, err := openStore()
		if err != nil {
			exitErr("open store", err)
		}
		defer s.Close()

		if len(args) == 0 {
			threads, err := s.ListThreads(ctx)
			if err != nil {
				exitErr("list threads", err)
			}
			if len(threads) == 0 {
				fmt.Println("no threads")
				return
			}
			for _, t := range threads {
				parent := "-"
				if t.ParentThreadID != "" {
					parent = t.ParentThreadID
				}
				fmt.Printf("%s  %-20s  parent=%s  updated=%s\n",
					t.ID, t.Blueprint.Name, parent, t.UpdatedAt.Format("2006-01-02 15:04:05"))
			}
			return
		}

		thread, err := s.GetThread(ctx, args[0])
		if err != nil {
			exitErr("get thread", err)
		}
		state, err := s.GetState(ctx, thread.CurrentStateID)
		if err != nil {
			exitErr("get state", err)
		}

		out := map[string]any{
			"thread": thread,
			"state":  state,
		}
		if showSteps {
			steps, err := s.ListSteps(ctx, thread.ID)
			if err != nil {
				exitErr("list steps", err)
			}
			out["steps"] = steps
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			exitErr("encode", err)
		}
	},
}

func init() {
	inspectCmd.Flags().BoolVar(&showSteps, "steps", false, "Include the thread's step audit records")
}
