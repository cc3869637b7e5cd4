package export

import (
	"errors"

	"github.com/bitrise-io/go-utils/v2/command"
)

type createdCommand struct {
	name string
	args []string
}

type fakeCommandFactory struct {
	commands *[]createdCommand
	failOn   string
}

func (f fakeCommandFactory) Create(name string, args []string, opts *command.Opts) command.Command {
	*f.commands = append(*f.commands, createdCommand{name: name, args: args})
	for i, arg := range args {
		if arg == "--key" && i+1 < len(args) && args[i+1] == f.failOn {
			return fakeCommand{err: errors.New("exit status 1"), output: "envman: invalid value"}
		}
	}
	return fakeCommand{}
}

type fakeCommand struct {
	err    error
	output string
}

func (c fakeCommand) PrintableCommandArgs() string                       { return "" }
func (c fakeCommand) Run() error                                         { return c.err }
func (c fakeCommand) RunAndReturnExitCode() (int, error)                 { return 0, c.err }
func (c fakeCommand) RunAndReturnTrimmedOutput() (string, error)         { return c.output, c.err }
func (c fakeCommand) RunAndReturnTrimmedCombinedOutput() (string, error) { return c.output, c.err }
func (c fakeCommand) Start() error                                       { return c.err }
func (c fakeCommand) Wait() error                                        { return c.err }
