package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type Command string

const (
	CommandUpload    Command = "upload"
	CommandQuestions Command = "questions"
	CommandInterview Command = "interview"
	CommandHistory   Command = "history"
	CommandStatus    Command = "status"
	CommandToggle    Command = "toggle"
	CommandNext      Command = "next"
	CommandPrevious  Command = "previous"
	CommandJump      Command = "jump"
	CommandDevices   Command = "devices"
	CommandDoctor    Command = "doctor"
	CommandVersion   Command = "version"
	CommandHelp      Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandUpload:    {},
	CommandQuestions: {},
	CommandInterview: {},
	CommandHistory:   {},
	CommandStatus:    {},
	CommandToggle:    {},
	CommandNext:      {},
	CommandPrevious:  {},
	CommandJump:      {},
	CommandDevices:   {},
	CommandDoctor:    {},
	CommandVersion:   {},
	CommandHelp:      {},
}

type Parsed struct {
	Command    Command
	ConfigPath string
	ShowHelp   bool

	// CVPath is set by --cv for questions and interview.
	CVPath string
	// File is the upload document.
	File string
	// Question is the zero-based jump target.
	Question int
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
			if err := parseCommandArgs(&parsed, args[i+1:]); err != nil {
				return Parsed{}, err
			}
			return parsed, nil
		}
	}

	return parsed, nil
}

func parseCommandArgs(parsed *Parsed, rest []string) error {
	switch parsed.Command {
	case CommandUpload:
		if len(rest) != 1 || strings.HasPrefix(rest[0], "-") {
			return errors.New("upload requires exactly one file path")
		}
		parsed.File = rest[0]
		return nil

	case CommandJump:
		if len(rest) != 1 {
			return errors.New("jump requires a question number")
		}
		n, err := strconv.Atoi(rest[0])
		if err != nil || n < 1 {
			return fmt.Errorf("invalid question number %q", rest[0])
		}
		parsed.Question = n - 1
		return nil

	case CommandQuestions, CommandInterview:
		for i := 0; i < len(rest); i++ {
			if rest[i] != "--cv" {
				return fmt.Errorf("unexpected arguments after command %q", parsed.Command)
			}
			i++
			if i >= len(rest) {
				return errors.New("--cv requires a path")
			}
			parsed.CVPath = rest[i]
		}
		return nil
	}

	if len(rest) > 0 {
		return fmt.Errorf("unexpected arguments after command %q", parsed.Command)
	}
	return nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] <command> [args]

Commands:
  upload FILE          Upload a CV (.pdf, .doc, .docx) and keep its text for the next interview
  questions [--cv F]   Generate and print interview questions
  interview [--cv F]   Run an interactive interview
  history              List previous interviews
  status               Print the running interview's current question state
  toggle               Start or stop recording the current question
  next                 Move to the next question
  previous             Move to the previous question
  jump N               Move to question N
  devices              List available input devices
  doctor               Run configuration and environment checks
  version              Print version information
  help                 Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/rehearse/config.jsonc)
  --cv PATH       Read CV text from a plain-text file instead of the last upload
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
