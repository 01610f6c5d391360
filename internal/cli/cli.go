// Package cli parses speach command-line arguments.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandServe   Command = "serve"
	CommandStart   Command = "start"
	CommandStop    Command = "stop"
	CommandToggle  Command = "toggle"
	CommandStatus  Command = "status"
	CommandHistory Command = "history"
	CommandDevices Command = "devices"
	CommandDoctor  Command = "doctor"
	CommandVersion Command = "version"
	CommandHelp    Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandServe:   {},
	CommandStart:   {},
	CommandStop:    {},
	CommandToggle:  {},
	CommandStatus:  {},
	CommandHistory: {},
	CommandDevices: {},
	CommandDoctor:  {},
	CommandVersion: {},
	CommandHelp:    {},
}

type Parsed struct {
	Command    Command
	ConfigPath string
	ShowHelp   bool
	// StartListening asks serve to begin listening immediately.
	StartListening bool
	// JSON prints status/history as raw snapshot JSON.
	JSON bool
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
			if err := parseCommandFlags(&parsed, args[i+1:]); err != nil {
				return Parsed{}, err
			}
			return parsed, nil
		}
	}

	return parsed, nil
}

// parseCommandFlags accepts the few flags allowed after a command.
func parseCommandFlags(parsed *Parsed, rest []string) error {
	for _, arg := range rest {
		switch {
		case arg == "--start" && parsed.Command == CommandServe:
			parsed.StartListening = true
		case arg == "--json" && (parsed.Command == CommandStatus || parsed.Command == CommandHistory):
			parsed.JSON = true
		default:
			return fmt.Errorf("unexpected arguments after command %q", parsed.Command)
		}
	}
	return nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] <command> [flags]

Commands:
  serve     Own the recognition session and accept commands (--start listens immediately)
  start     Begin continuous listening
  stop      Stop listening once the current segment ends
  toggle    Start listening, or stop when already listening
  status    Print the current snapshot (--json for raw output)
  history   Print recent utterances, newest first (--json for raw output)
  devices   List available input devices
  doctor    Run configuration and environment checks
  version   Print version information
  help      Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/speach/config.yaml)
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
