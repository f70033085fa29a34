package explorer

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/zeu5/royale-rl/policies"
	"github.com/zeu5/royale-rl/types"
)

// Explorer lets a user browse a recorded q-learning policy alongside the
// traces of the episodes that trained it.
type Explorer struct {
	PolicyFile string
	TracesFile string

	Policy *policies.QLearning
	Traces []*types.Trace
}

// Create an explorer of q tables and trace
func NewExplorer(policyFile string, tracesFile string) (*Explorer, error) {
	policy, err := policies.LoadQLearning(policyFile)
	if err != nil {
		return nil, err
	}
	traces, err := readTraces(tracesFile)
	if err != nil {
		return nil, err
	}
	return &Explorer{
		PolicyFile: policyFile,
		TracesFile: tracesFile,
		Policy:     policy,
		Traces:     traces,
	}, nil
}

func readTraces(path string) ([]*types.Trace, error) {
	traces := make([]*types.Trace, 0)
	file, err := os.Open(path)
	if err != nil {
		return traces, fmt.Errorf("error reading file: %s", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	maxTraceSize := 5 * 1024 * 1024
	scanner.Buffer(make([]byte, maxTraceSize), maxTraceSize)
	for scanner.Scan() {
		bs := scanner.Bytes()
		if len(bs) == 0 {
			continue
		}
		if len(bs) >= maxTraceSize {
			return traces, errors.New("error trace too big")
		}
		t := types.NewTrace()
		if err := json.Unmarshal(bs, t); err != nil {
			return traces, fmt.Errorf("error reading file contents: %s", err)
		}
		traces = append(traces, t)
	}
	if err := scanner.Err(); err != nil {
		return traces, fmt.Errorf("failed to read traces: %s", err)
	}
	return traces, nil
}

func (e *Explorer) key(obs types.Observation) string {
	return policies.Key(obs, e.Policy.Bins())
}

// Example invocation - royale-rl explore results/policies/QLearning_0.json results/traces/QLearning_0.jsonl
func ExploreCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "explore [policy_output] [trace_output]",
		Short: "Explore the choices of a q-table and the traces",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			exp, err := NewExplorer(args[0], args[1])
			if err != nil {
				return err
			}

			exp.Interact(cmd.InOrStdin(), cmd.OutOrStdout())
			return nil
		},
	}
}
