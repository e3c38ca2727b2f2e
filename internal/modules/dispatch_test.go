package modules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tycode-ai/tycode/pkg/chatmodel"
)

type echoCommand struct{ name string }

func (e echoCommand) Name() string        { return e.name }
func (e echoCommand) Description() string { return "echo" }
func (e echoCommand) Usage() string        { return "/" + e.name }
func (e echoCommand) Execute(ctx context.Context, args []string) ([]chatmodel.Message, error) {
	return []chatmodel.Message{chatmodel.AssistantMessage("handled:" + e.name)}, nil
}

func TestDispatcher_FallsThroughWhenNotSlashPrefixed(t *testing.T) {
	d := NewDispatcher()
	d.Register(echoCommand{name: "help"})

	handled, msgs, err := d.Dispatch(context.Background(), "hello there")
	require.NoError(t, err)
	assert.False(t, handled)
	assert.Nil(t, msgs)
}

func TestDispatcher_FallsThroughWhenNoCommandMatches(t *testing.T) {
	d := NewDispatcher()
	d.Register(echoCommand{name: "help"})

	handled, _, err := d.Dispatch(context.Background(), "/nope")
	require.NoError(t, err)
	assert.False(t, handled)
}

func TestDispatcher_DispatchesFirstTokenCaseInsensitively(t *testing.T) {
	d := NewDispatcher()
	d.Register(echoCommand{name: "help"})

	handled, msgs, err := d.Dispatch(context.Background(), "/HELP")
	require.NoError(t, err)
	assert.True(t, handled)
	require.Len(t, msgs, 1)
	assert.Equal(t, "handled:help", msgs[0].TextOnly())
}

func TestDispatcher_PassesRemainingTokensAsArgs(t *testing.T) {
	var gotArgs []string
	d := NewDispatcher()
	d.Register(argCapture{fn: func(args []string) { gotArgs = args }})

	_, _, err := d.Dispatch(context.Background(), "/sessions list extra")
	require.NoError(t, err)
	assert.Equal(t, []string{"list", "extra"}, gotArgs)
}

type argCapture struct{ fn func([]string) }

func (a argCapture) Name() string        { return "sessions" }
func (a argCapture) Description() string { return "" }
func (a argCapture) Usage() string        { return "/sessions" }
func (a argCapture) Execute(ctx context.Context, args []string) ([]chatmodel.Message, error) {
	a.fn(args)
	return nil, nil
}

func TestDispatcher_RegisterModuleMergesCommands(t *testing.T) {
	d := NewDispatcher()
	tl := NewTaskListModule(nil, "s1")
	_ = tl // TaskListModule contributes no slash commands; ensure RegisterModule tolerates that

	m := fakeModule{cmds: []SlashCommand{echoCommand{name: "custom"}}}
	d.RegisterModule(m)

	handled, msgs, err := d.Dispatch(context.Background(), "/custom")
	require.NoError(t, err)
	assert.True(t, handled)
	require.Len(t, msgs, 1)
}

type fakeModule struct {
	Base
	cmds []SlashCommand
}

func (f fakeModule) SlashCommands() []SlashCommand { return f.cmds }
