package command

import (
	"fmt"
	"strings"

	"github.com/google/shlex"
)

// ParseError describes malformed command text.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return "invalid command: " + e.Reason
}

func parseErr(input, format string, a ...any) error {
	return &ParseError{Input: input, Reason: fmt.Sprintf(format, a...)}
}

// Parse turns operator text into a Command.
//
//	help
//	<object> <action> [positional...] [key=value...]
//	export <format> [key=value...]
func Parse(text string) (Command, error) {
	tokens, err := shlex.Split(text)
	if err != nil {
		return Command{}, parseErr(text, "%v", err)
	}
	if len(tokens) == 0 {
		return Command{}, parseErr(text, "empty command")
	}

	head := strings.ToLower(tokens[0])
	if head == "help" || head == "?" {
		args, params, err := splitParams(text, tokens[1:])
		if err != nil {
			return Command{}, err
		}
		return New(Help, Object{Kind: None}, args, params), nil
	}

	kind, ok := objects[head]
	if !ok {
		return Command{}, parseErr(text, "unknown object %q", tokens[0])
	}

	if kind == Export {
		if len(tokens) < 2 || strings.Contains(tokens[1], "=") {
			return Command{}, parseErr(text, "export needs a format")
		}
		args, params, err := splitParams(text, tokens[2:])
		if err != nil {
			return Command{}, err
		}
		return New(Run, ExportObject(strings.ToLower(tokens[1])), args, params), nil
	}

	if len(tokens) < 2 {
		return Command{}, parseErr(text, "missing action for %s", kind)
	}
	action, ok := actions[strings.ToLower(tokens[1])]
	if !ok {
		return Command{}, parseErr(text, "unknown action %q", tokens[1])
	}
	args, params, err := splitParams(text, tokens[2:])
	if err != nil {
		return Command{}, err
	}

	object := Object{Kind: kind}
	if kind == Module {
		if len(args) > 0 {
			object.Name, args = args[0], args[1:]
		} else if action == Help || action == Run {
			return Command{}, parseErr(text, "module %s needs a module name", action)
		}
	}
	return New(action, object, args, params), nil
}

func splitParams(input string, tokens []string) ([]string, map[string]string, error) {
	var args []string
	params := make(map[string]string)
	for _, tok := range tokens {
		key, value, found := strings.Cut(tok, "=")
		if !found {
			args = append(args, tok)
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" || strings.ContainsAny(key, " \t") {
			return nil, nil, parseErr(input, "malformed parameter %q", tok)
		}
		if _, dup := params[key]; dup {
			return nil, nil, parseErr(input, "duplicate parameter %q", key)
		}
		params[key] = value
	}
	return args, params, nil
}
