package explorer

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/zeu5/royale-rl/actions"
	"github.com/zeu5/royale-rl/types"
)

func readLine(reader *bufio.Reader) (string, error) {
	s, err := reader.ReadString('\n')
	if err != nil && s == "" {
		return "", err
	}
	return strings.TrimSpace(s), nil
}

// Interact runs the main menu loop until the user quits or in is exhausted.
func (e *Explorer) Interact(in io.Reader, out io.Writer) {
	fmt.Fprintf(out, "%s", e.header())
	reader := bufio.NewReader(in)
	for {
		fmt.Fprintf(out, "%s", e.prompt())

		optionS, err := readLine(reader)
		if err != nil {
			return
		}
		option, err := strconv.Atoi(optionS)
		if err != nil {
			fmt.Fprintln(out, "Invalid input! Try again")
			continue
		}
		fmt.Fprintln(out, "------------------------------------")
		switch option {
		case 1:
			fmt.Fprintf(out, "%s", e.getInitialStates())
		case 2:
			fmt.Fprintf(out, "Enter the state key: ")
			stateK, err := readLine(reader)
			if err != nil {
				return
			}
			fmt.Fprintf(out, "%s", e.getQValues(stateK))
		case 3:
			fmt.Fprintf(out, "%s", e.getSummary())
		case 4:
			fmt.Fprintf(out, "Enter trace number (1-%d): ", len(e.Traces))
			traceNoS, err := readLine(reader)
			if err != nil {
				return
			}
			traceNo, err := strconv.Atoi(traceNoS)
			if err != nil {
				fmt.Fprintln(out, "Invalid input! Not a number. Try again")
				continue
			}
			if traceNo < 1 || traceNo > len(e.Traces) {
				fmt.Fprintf(out, "Invalid input! Should be between (1-%d). Try again\n", len(e.Traces))
				continue
			}
			if !e.interactTrace(traceNo-1, reader, out) {
				return
			}
		case 5:
			fmt.Fprintln(out, "Quitting! Thank you")
			return
		default:
			fmt.Fprintln(out, "Wrong choice! Try again!")
		}
	}
}

func actionName(a string) string {
	id, err := strconv.Atoi(a)
	if err != nil {
		return a
	}
	m, err := actions.Decode(id)
	if err != nil {
		return a
	}
	return m.String()
}

func (e *Explorer) getQValues(state string) string {
	values, ok := e.Policy.Table().GetAll(state)
	if !ok {
		return "No such state in the q table\n"
	}
	if len(values) == 0 {
		return "No values in the q table for the corresponding state\n"
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return values[keys[i]] > values[keys[j]] })

	out := "Q values are:\n"
	for _, k := range keys {
		out += fmt.Sprintf("%s (%s): %f\n", k, actionName(k), values[k])
	}
	return out
}

func (e *Explorer) getInitialStates() string {
	initialStates := make(map[string]int)
	for _, t := range e.Traces {
		first, ok := t.Get(0)
		if !ok {
			continue
		}
		initialStates[e.key(first.Observation)] += 1
	}
	keys := make([]string, 0, len(initialStates))
	for k := range initialStates {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := "Initial states are:\n"
	for _, k := range keys {
		out += fmt.Sprintf("%s: %d\n", k, initialStates[k])
	}
	return out
}

func (e *Explorer) getSummary() string {
	out := fmt.Sprintf("%d states in the q table, epsilon %.3f\n", e.Policy.Table().States(), e.Policy.Epsilon())
	for i, t := range e.Traces {
		out += fmt.Sprintf("%d: %d steps, return %.2f, result %s\n", i+1, t.Len(), t.Return(), t.Result())
	}
	return out
}

func (e *Explorer) header() string {
	return `
Welcome to the q table explorer!
	`
}

func (e *Explorer) prompt() string {
	return `
------------------------------------
Select one of the following options:
1. Show initial states
2. Show QValues
3. Show trace summary
4. Explore a trace
5. Quit
Enter your choice: `
}

func (e *Explorer) tracePrompt() string {
	return `
---------------------------------------------
Step(s) QValues(d) Prev(p) Last(l) Quit(q): `
}

func describe(s types.Step) string {
	return fmt.Sprintf("Observation: %s\nAction: %d (%s)\nReward: %.3f\nNext: %s\nElixir: %d Hand: %d Result: %s\n",
		s.Observation, s.Action, actionName(strconv.Itoa(s.Action)), s.Reward, s.Next,
		s.Info.Elixir, s.Info.HandSize, s.Info.BattleResult)
}

// interactTrace walks a trace step by step. It returns false when the
// input ended.
func (e *Explorer) interactTrace(traceNo int, reader *bufio.Reader, out io.Writer) bool {
	stepCount := 0
	trace := e.Traces[traceNo]
	if trace.Len() == 0 {
		fmt.Fprintln(out, "Empty trace!")
		return true
	}
	fmt.Fprintln(out, "---------------------------------------------")
	for {
		s, _ := trace.Get(stepCount)
		fmt.Fprintf(out, "For step %d\n%s", stepCount+1, describe(s))
		fmt.Fprintf(out, "%s", e.tracePrompt())
		option, err := readLine(reader)
		if err != nil {
			return false
		}
		fmt.Fprintln(out, "---------------------------------------------")
		switch option {
		case "s":
			if stepCount == trace.Len()-1 {
				fmt.Fprintln(out, "No more steps!")
				continue
			}
			stepCount += 1
		case "d":
			fmt.Fprintf(out, "%s", e.getQValues(e.key(s.Observation)))
		case "p":
			if stepCount == 0 {
				fmt.Fprintln(out, "No more steps!")
				continue
			}
			stepCount -= 1
		case "l":
			stepCount = trace.Len() - 1
		case "q":
			return true
		default:
			fmt.Fprintln(out, "Invalid option! Try again.")
		}
	}
}
