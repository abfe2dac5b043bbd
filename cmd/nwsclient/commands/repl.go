package commands

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/bigcomputing/nws/pkg/nwsclient"
)

// verbCompletions lists the command words the tab completer suggests,
// two-word verbs included, mirroring the verb table internal/protocol
// dispatches on.
var verbCompletions = []string{
	"declare var", "delete ws", "delete var", "store",
	"fetch", "fetchTry", "find", "findTry",
	"ifetch", "ifetchTry", "ifind", "ifindTry",
	"list vars", "list wss", "mktemp ws",
	"open ws", "use ws", "deadman", "disconnect", "quit",
}

func suggest(line string) []string {
	var out []string
	for _, v := range verbCompletions {
		if strings.HasPrefix(v, line) {
			out = append(out, v)
		}
	}
	return out
}

// attach is nwsclient's interactive command line, modeled directly on
// pkg/miniclient.Conn.Attach: a liner-backed prompt with tab completion
// and disconnect/quit shortcuts, reconnection handled once up front by
// Dial's backoff loop rather than per-command.
func attach(conn *nwsclient.Conn, addr, workspace string, deadman bool) {
	if deadman {
		fmt.Println("CAUTION: this connection is flagged deadman -- disconnecting will stop nwsd")
	}
	fmt.Println("use 'disconnect' or 'quit' to exit, ^d also exits")
	fmt.Println()

	input := liner.NewLiner()
	defer input.Close()

	input.SetCtrlCAborts(true)
	input.SetTabCompletionStyle(liner.TabPrints)
	input.SetCompleter(suggest)

	prompt := fmt.Sprintf("nwsclient:%s$ ", addr)
	if workspace != "" {
		prompt = fmt.Sprintf("nwsclient:%s[%s]$ ", addr, workspace)
	}

	for {
		line, err := input.Prompt(prompt)
		if err == liner.ErrPromptAborted {
			continue
		} else if err == io.EOF {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		input.AppendHistory(line)

		if line == "disconnect" || line == "quit" {
			break
		}

		runLine(conn, line)
	}
}

// twoWordVerbs names every verb internal/protocol dispatches on by its
// first two words rather than its first.
var twoWordVerbs = map[string]bool{
	"declare var": true, "mktemp ws": true,
	"delete ws": true, "delete var": true,
	"list vars": true, "list wss": true,
	"open ws": true, "use ws": true,
}

func splitVerb(tokens []string) (verb string, rest []string) {
	if len(tokens) >= 2 && twoWordVerbs[tokens[0]+" "+tokens[1]] {
		return tokens[0] + " " + tokens[1], tokens[2:]
	}
	return tokens[0], tokens[1:]
}

func runLine(conn *nwsclient.Conn, line string) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return
	}
	verb, args := splitVerb(tokens)

	var err error
	switch verb {
	case "declare var":
		err = expect(args, 3, "declare var <ws> <var> <mode>", func() error {
			return conn.DeclareVar(args[0], args[1], args[2])
		})
	case "delete ws":
		err = expect(args, 1, "delete ws <ws>", func() error {
			return conn.DeleteWorkspace(args[0])
		})
	case "delete var":
		err = expect(args, 2, "delete var <ws> <var>", func() error {
			return conn.DeleteVar(args[0], args[1])
		})
	case "store":
		err = expect(args, 4, "store <ws> <var> <type> <value>", func() error {
			typ, perr := strconv.ParseUint(args[2], 10, 32)
			if perr != nil {
				return perr
			}
			return conn.Store(args[0], args[1], uint32(typ), []byte(strings.Join(args[3:], " ")))
		})
	case "fetch", "fetchTry", "find", "findTry":
		err = expect(args, 2, verb+" <ws> <var>", func() error {
			return printResult(getByVerb(conn, verb, args[0], args[1], "", 0))
		})
	case "ifetch", "ifetchTry", "ifind", "ifindTry":
		err = expect(args, 4, verb+" <ws> <var> <vid> <index>", func() error {
			index, perr := strconv.ParseInt(args[3], 10, 64)
			if perr != nil {
				return perr
			}
			return printResult(getByVerb(conn, verb, args[0], args[1], args[2], index))
		})
	case "list vars":
		err = expect(args, 1, "list vars <ws>", func() error {
			listing, lerr := conn.ListVars(args[0])
			if lerr != nil {
				return lerr
			}
			fmt.Print(listing)
			return nil
		})
	case "list wss":
		pattern := ""
		if len(args) > 0 {
			pattern = args[0]
		}
		listing, lerr := conn.ListWorkspaces(pattern)
		err = lerr
		if lerr == nil {
			fmt.Print(listing)
		}
	case "mktemp ws":
		template := "__ws__%d"
		if len(args) > 0 {
			template = args[0]
		}
		name, merr := conn.MktempWorkspace(template)
		err = merr
		if merr == nil {
			fmt.Println(name)
		}
	case "open ws":
		err = expect(args, 1, "open ws <ws> [owner] [persistent] [create]", func() error {
			return conn.OpenWorkspace(args[0], argAt(args, 1, ""), yesNo(argAt(args, 2, "no")), yesNo(argAt(args, 3, "yes")))
		})
	case "use ws":
		err = expect(args, 1, "use ws <ws> [owner] [persistent] [create]", func() error {
			return conn.UseWorkspace(args[0], argAt(args, 1, ""), yesNo(argAt(args, 2, "no")), yesNo(argAt(args, 3, "yes")))
		})
	case "deadman":
		err = conn.Deadman()
	default:
		fmt.Printf("unknown command %q\n", verb)
		return
	}

	if err != nil {
		fmt.Println(err)
	}
}

func expect(args []string, n int, usage string, fn func() error) error {
	if len(args) < n {
		return fmt.Errorf("usage: %s", usage)
	}
	return fn()
}

func argAt(args []string, i int, def string) string {
	if i < 0 || i >= len(args) {
		return def
	}
	return args[i]
}

func yesNo(s string) bool { return s == "yes" }

func getByVerb(conn *nwsclient.Conn, verb, ws, varName, vid string, index int64) (*nwsclient.Result, error) {
	switch verb {
	case "fetch":
		return conn.Fetch(ws, varName)
	case "fetchTry":
		return conn.FetchTry(ws, varName)
	case "find":
		return conn.Find(ws, varName)
	case "findTry":
		return conn.FindTry(ws, varName)
	case "ifetch":
		return conn.IFetch(ws, varName, vid, index)
	case "ifetchTry":
		return conn.IFetchTry(ws, varName, vid, index)
	case "ifind":
		return conn.IFind(ws, varName, vid, index)
	default:
		return conn.IFindTry(ws, varName, vid, index)
	}
}

func printResult(res *nwsclient.Result, err error) error {
	if err != nil {
		return err
	}
	fmt.Printf("vid=%s index=%d type=%d\n%s\n", res.VID, res.Index, res.Type, res.Value)
	return nil
}
