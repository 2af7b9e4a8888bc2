package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/cmdmesh/core"
	"github.com/hupe1980/cmdmesh/cursor"
	"github.com/hupe1980/cmdmesh/decoder"
	"github.com/hupe1980/cmdmesh/internal/testutil"
	"github.com/hupe1980/cmdmesh/logging"
	"github.com/hupe1980/cmdmesh/node"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var fixedNow = time.UnixMilli(1700000000000)

// recorder remembers which executors ran and with which context.
type recorder struct {
	mu    sync.Mutex
	calls []string
	last  *core.Context
}

func (r *recorder) exec(name string) core.Executor {
	return func(c *core.Context) (core.Response, error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.calls = append(r.calls, name)
		r.last = c
		return core.NoResponse, nil
	}
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func newDispatcher(t *testing.T, roots ...*node.Node) *Dispatcher {
	t.Helper()
	tree, err := node.NewBuilder().Register(roots...).Build()
	require.NoError(t, err)
	return New(tree, func(o *Options) {
		o.Now = func() time.Time { return fixedNow }
	})
}

func dispatch(t *testing.T, d *Dispatcher, text string) (Result, *testutil.Source) {
	t.Helper()
	src := testutil.NewSource(text)
	res, err := d.Dispatch(context.Background(), src)
	require.NoError(t, err)
	return res, src
}

func TestDispatch_LiteralRequiresSeparator(t *testing.T) {
	rec := &recorder{}
	d := newDispatcher(t, node.Literal("foo").Executes(rec.exec("foo")))

	tests := map[string]struct {
		input string
		want  Status
	}{
		"exact":         {input: "foo", want: StatusHandled},
		"case folded":   {input: "FOO", want: StatusHandled},
		"leading space": {input: "  foo", want: StatusHandled},
		"trailing":      {input: "foo   ", want: StatusHandled},
		"prefix only":   {input: "foobar", want: StatusUnhandled},
		"empty":         {input: "", want: StatusUnhandled},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			res, _ := dispatch(t, d, tc.input)
			assert.Equal(t, tc.want, res.Status)
		})
	}
}

func TestDispatch_LiteralBeatsString(t *testing.T) {
	rec := &recorder{}
	member := node.Literal("member", "m")
	member.String("name").Executes(rec.exec("name"))
	member.Literal("list", "l").Executes(rec.exec("list"))
	d := newDispatcher(t, member)

	res, _ := dispatch(t, d, "member list")
	assert.Equal(t, StatusHandled, res.Status)
	assert.Equal(t, "member list", res.Command)

	res, _ = dispatch(t, d, "m Alice")
	assert.Equal(t, StatusHandled, res.Status)
	assert.Equal(t, "member", res.Command)
	assert.Equal(t, "Alice", core.Require[string](rec.last, "name"))

	assert.Equal(t, []string{"list", "name"}, rec.Calls())
}

func TestDispatch_DeepestExecutorWins(t *testing.T) {
	rec := &recorder{}
	system := node.Literal("system", "s").Executes(rec.exec("system"))
	member := system.Literal("member", "m").Executes(rec.exec("member"))
	member.String("name").Executes(rec.exec("name"))
	d := newDispatcher(t, system)

	tests := map[string]struct {
		input string
		calls []string
	}{
		"full path":      {input: "system member Alice", calls: []string{"name"}},
		"quoted name":    {input: `s m "Alice Smith"`, calls: []string{"name"}},
		"member only":    {input: "system member", calls: []string{"member"}},
		"system only":    {input: "system", calls: []string{"system"}},
		"trailing token": {input: "system member Alice extra", calls: nil},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			before := len(rec.Calls())
			dispatch(t, d, tc.input)
			got := rec.Calls()[before:]
			if tc.calls == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tc.calls, got)
		})
	}
}

func TestDispatch_FailedBranchDropsBindings(t *testing.T) {
	rec := &recorder{}
	root := node.Literal("a")
	node.Typed[bool](root, "flag", decoder.Boolean{}).Literal("x").Executes(rec.exec("flag"))
	root.String("name").Executes(rec.exec("name"))
	d := newDispatcher(t, root)

	res, _ := dispatch(t, d, "a on")
	require.Equal(t, StatusHandled, res.Status)
	assert.Equal(t, []string{"name"}, rec.Calls())
	assert.False(t, rec.last.Has("flag"))
	assert.Equal(t, "on", core.Require[string](rec.last, "name"))

	res, _ = dispatch(t, d, "a on x")
	require.Equal(t, StatusHandled, res.Status)
	assert.True(t, core.Require[bool](rec.last, "flag"))
}

func TestDispatch_GreedyAndList(t *testing.T) {
	rec := &recorder{}
	sw := node.Literal("switch", "sw")
	sw.Literal("move", "mv", "m").Greedy("time").Executes(rec.exec("move"))
	sw.List("members").Executes(rec.exec("switch"))
	d := newDispatcher(t, sw)

	res, _ := dispatch(t, d, "sw mv 2 hours  ago")
	require.Equal(t, StatusHandled, res.Status)
	assert.Equal(t, "2 hours  ago", core.Require[string](rec.last, "time"))

	res, _ = dispatch(t, d, `switch Alice  "Bob Smith" Carol`)
	require.Equal(t, StatusHandled, res.Status)
	assert.Equal(t, []string{"Alice", "Bob Smith", "Carol"}, core.GetAll[string](rec.last, "members"))
	args := rec.last.Arguments("members")
	require.Len(t, args, 3)
	assert.Equal(t, `"Bob Smith"`, args[1].Raw)

	// "move" alone: the greedy child needs input, so the list takes "move".
	res, _ = dispatch(t, d, "switch move")
	require.Equal(t, StatusHandled, res.Status)
	assert.Equal(t, []string{"move"}, core.GetAll[string](rec.last, "members"))

	res, _ = dispatch(t, d, "switch")
	assert.Equal(t, StatusUnhandled, res.Status)
}

func TestDispatch_Attachment(t *testing.T) {
	rec := &recorder{}
	imp := node.Literal("import")
	imp.Attachment("file").Executes(rec.exec("file"))
	imp.Greedy("url").Executes(rec.exec("url"))
	d := newDispatcher(t, imp)

	att := &core.Attachment{Filename: "export.json"}
	src := testutil.NewSourceBuilder("import").Attachment(att).Build()
	res, err := d.Dispatch(context.Background(), src)
	require.NoError(t, err)
	require.Equal(t, StatusHandled, res.Status)
	assert.Same(t, att, core.Require[*core.Attachment](rec.last, "file"))

	res, _ = dispatch(t, d, "import https://example.com/pk.json")
	require.Equal(t, StatusHandled, res.Status)
	assert.Equal(t, "https://example.com/pk.json", core.Require[string](rec.last, "url"))

	res, _ = dispatch(t, d, "import")
	assert.Equal(t, StatusUnhandled, res.Status)
}

func TestDispatch_Unhandled(t *testing.T) {
	rec := &recorder{}
	d := newDispatcher(t, node.Literal("help").Executes(rec.exec("help")))

	res, src := dispatch(t, d, "gibberish")
	assert.Equal(t, StatusUnhandled, res.Status)
	assert.False(t, res.Handled())
	assert.NotEmpty(t, res.InvocationID)
	assert.Empty(t, src.Sent())
	assert.Empty(t, rec.Calls())
}

func TestDispatch_InvalidInput(t *testing.T) {
	rec := &recorder{}
	user := node.Literal("user")
	node.Typed[decoder.Snowflake](user, "id", decoder.SnowflakeDecoder{}).Executes(rec.exec("id"))
	d := newDispatcher(t, user)

	res, src := dispatch(t, d, "user 99999999999999999999999")
	assert.Equal(t, StatusInvalid, res.Status)
	require.NotNil(t, res.Invalid)
	assert.Equal(t, "id", res.Invalid.Name)
	assert.True(t, errors.Is(res.Invalid, core.ErrInvalidInput))
	assert.Equal(t, []testutil.Sent{{Text: "Invalid value for id.", Kind: core.Failure}}, src.Sent())

	// A non-numeric token is a plain non-match.
	res, src = dispatch(t, d, "user abc")
	assert.Equal(t, StatusUnhandled, res.Status)
	assert.Empty(t, src.Sent())

	// Another branch taking the input wins over the recorded invalid value.
	fallback := node.Literal("user")
	node.Typed[decoder.Snowflake](fallback, "id", decoder.SnowflakeDecoder{}).Executes(rec.exec("id"))
	fallback.String("name").Executes(rec.exec("name"))
	d = newDispatcher(t, fallback)
	res, _ = dispatch(t, d, "user 99999999999999999999999")
	assert.Equal(t, StatusHandled, res.Status)
	assert.Equal(t, "name", rec.Calls()[len(rec.Calls())-1])
}

func TestDispatch_FaultContainment(t *testing.T) {
	const secret = "connection refused: postgres://admin:hunter2@db"

	tests := map[string]core.Executor{
		"error": func(*core.Context) (core.Response, error) {
			return core.NoResponse, errors.New(secret)
		},
		"panic": func(*core.Context) (core.Response, error) {
			panic(secret)
		},
		"missing argument": func(c *core.Context) (core.Response, error) {
			core.Require[string](c, secret)
			return core.NoResponse, nil
		},
	}

	for name, exec := range tests {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelDebug, Format: "json", Output: &buf})

			tree := node.NewBuilder().Register(node.Literal("explode").Executes(exec)).MustBuild()
			d := New(tree, func(o *Options) {
				o.Logger = logger
				o.Now = func() time.Time { return fixedNow }
			})

			res, src := dispatch(t, d, "explode")
			assert.Equal(t, StatusFaulted, res.Status)
			require.NotNil(t, res.Fault)
			assert.Equal(t, int64(1700000000000), res.Fault.Timestamp)
			assert.Equal(t, res.InvocationID, res.Fault.InvocationID)
			assert.Equal(t, "explode", res.Fault.Command)

			sent := src.Sent()
			require.Len(t, sent, 1)
			assert.Equal(t, core.Failure, sent[0].Kind)
			assert.Equal(t, "An unexpected error occurred.\nTimestamp: `1700000000000`", sent[0].Text)
			assert.NotContains(t, sent[0].Text, "hunter2")

			logs := buf.String()
			assert.Contains(t, logs, "dispatch.fault")
			assert.Contains(t, logs, "hunter2")
			assert.Contains(t, logs, "stack_trace")
		})
	}
}

func TestDispatch_FaultTemplate(t *testing.T) {
	tree := node.NewBuilder().Register(node.Literal("x").Executes(func(*core.Context) (core.Response, error) {
		return core.NoResponse, errors.New("boom")
	})).MustBuild()
	d := New(tree, func(o *Options) {
		o.Config.FaultTemplate = "Something broke ({{.Command}}) at {{.Timestamp}}"
		o.Now = func() time.Time { return fixedNow }
	})

	_, src := dispatch(t, d, "x")
	assert.Equal(t, "Something broke (x) at 1700000000000", src.Last().Text)
}

func TestDispatch_DecoderPanicContained(t *testing.T) {
	root := node.Literal("p")
	node.Typed[int](root, "n", panicDecoder{}).Executes(func(*core.Context) (core.Response, error) {
		return core.NoResponse, nil
	})
	d := newDispatcher(t, root)

	res, src := dispatch(t, d, "p 1")
	assert.Equal(t, StatusFaulted, res.Status)
	assert.Len(t, src.Sent(), 1)
}

type panicDecoder struct{}

func (panicDecoder) Decode(*cursor.Cursor, core.Source) (int, error) { panic("decoder bug") }
func (panicDecoder) DecodeStructured(any) (int, error)              { panic("decoder bug") }

func TestDispatch_DeliversResponse(t *testing.T) {
	tree := node.NewBuilder().Register(
		node.Literal("ping").Executes(func(*core.Context) (core.Response, error) {
			return core.SuccessResponse("pong"), nil
		}),
		node.Literal("whisper").Executes(func(c *core.Context) (core.Response, error) {
			_, err := c.Respond("psst", core.Plain, true)
			return core.NoResponse, err
		}),
	).MustBuild()
	d := New(tree)

	res, src := dispatch(t, d, "ping")
	assert.Equal(t, core.SuccessResponse("pong"), res.Response)
	assert.Equal(t, []string{"✅ pong"}, src.Texts())

	_, src = dispatch(t, d, "whisper")
	assert.Equal(t, []testutil.Sent{{Text: "psst", Kind: core.Plain, Private: true}}, src.Sent())
}

func TestDispatch_RespondErrorReturned(t *testing.T) {
	tree := node.NewBuilder().Register(node.Literal("ping").Executes(func(*core.Context) (core.Response, error) {
		return core.PlainResponse("pong"), nil
	})).MustBuild()
	d := New(tree)

	deliveryErr := errors.New("channel gone")
	src := testutil.NewSourceBuilder("ping").RespondError(deliveryErr).Build()
	res, err := d.Dispatch(context.Background(), src)
	assert.ErrorIs(t, err, deliveryErr)
	assert.Equal(t, StatusHandled, res.Status)
}

type mockSource struct {
	mock.Mock
}

func (m *mockSource) Text() string {
	return m.Called().String(0)
}

func (m *mockSource) Attachment() *core.Attachment {
	a, _ := m.Called().Get(0).(*core.Attachment)
	return a
}

func (m *mockSource) Respond(ctx context.Context, text string, kind core.ResponseKind, private bool) (string, error) {
	args := m.Called(ctx, text, kind, private)
	return args.String(0), args.Error(1)
}

func TestDispatch_FaultRespondsThroughSource(t *testing.T) {
	tree := node.NewBuilder().Register(node.Literal("explode").Executes(func(*core.Context) (core.Response, error) {
		return core.NoResponse, errors.New("boom")
	})).MustBuild()
	d := New(tree, func(o *Options) { o.Now = func() time.Time { return fixedNow } })

	src := &mockSource{}
	src.On("Text").Return("explode")
	src.On("Respond", mock.Anything, "An unexpected error occurred.\nTimestamp: `1700000000000`", core.Failure, false).
		Return("msg-1", nil).Once()

	res, err := d.Dispatch(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, StatusFaulted, res.Status)
	src.AssertExpectations(t)
}

func TestDispatch_ContextCancelled(t *testing.T) {
	rec := &recorder{}
	d := newDispatcher(t, node.Literal("foo").Executes(rec.exec("foo")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := d.Dispatch(ctx, testutil.NewSource("foo"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rec.Calls())
	assert.Empty(t, d.Active())
}

func TestDispatch_CancelAndActive(t *testing.T) {
	started := make(chan string, 1)
	tree := node.NewBuilder().Register(node.Literal("wait").Executes(func(c *core.Context) (core.Response, error) {
		started <- c.InvocationID()
		<-c.Context().Done()
		return core.NoResponse, c.Context().Err()
	})).MustBuild()
	d := New(tree)

	done := make(chan Result, 1)
	go func() {
		res, _ := d.Dispatch(context.Background(), testutil.NewSource("wait"))
		done <- res
	}()

	id := <-started
	assert.Equal(t, []string{id}, d.Active())
	assert.False(t, d.Cancel("unknown"))
	assert.True(t, d.Cancel(id))

	select {
	case res := <-done:
		assert.Equal(t, StatusFaulted, res.Status)
		assert.ErrorIs(t, res.Fault, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("invocation was not cancelled")
	}
	assert.Empty(t, d.Active())
}

func TestDispatch_Timeout(t *testing.T) {
	tree := node.NewBuilder().Register(node.Literal("slow").Executes(func(c *core.Context) (core.Response, error) {
		<-c.Context().Done()
		return core.NoResponse, c.Context().Err()
	})).MustBuild()
	d := New(tree, func(o *Options) { o.Config.Timeout = 20 * time.Millisecond })

	res, _ := dispatch(t, d, "slow")
	assert.Equal(t, StatusFaulted, res.Status)
	assert.ErrorIs(t, res.Fault, context.DeadlineExceeded)
}

func TestDispatch_Callbacks(t *testing.T) {
	rec := &recorder{}
	d := newDispatcher(t, node.Literal("ok").Executes(rec.exec("ok")))

	var lines []string
	d.Callbacks().Register(NewLoggingCallback(CallbackAfterDispatch, func(m string) { lines = append(lines, m) }))

	res, _ := dispatch(t, d, "ok")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "status=handled")
	assert.Contains(t, lines[0], res.InvocationID)

	rejected := errors.New("muted channel")
	d.Callbacks().Register(NewFunctionCallback(CallbackBeforeDispatch, func(context.Context, *CallbackContext) error {
		return rejected
	}))
	_, err := d.Dispatch(context.Background(), testutil.NewSource("ok"))
	assert.ErrorIs(t, err, rejected)
	assert.Equal(t, []string{"ok"}, rec.Calls())
}

func TestDispatch_Concurrent(t *testing.T) {
	member := node.Literal("member")
	member.String("name").Executes(func(c *core.Context) (core.Response, error) {
		return core.PlainResponse("hello " + core.Require[string](c, "name")), nil
	})
	d := newDispatcher(t, member)

	var g errgroup.Group
	for i := 0; i < 64; i++ {
		i := i
		g.Go(func() error {
			name := fmt.Sprintf("m%d", i)
			src := testutil.NewSource("member " + name)
			res, err := d.Dispatch(context.Background(), src)
			if err != nil {
				return err
			}
			if res.Status != StatusHandled {
				return fmt.Errorf("%s: status %s", name, res.Status)
			}
			if got := src.Last().Text; got != "hello "+name {
				return fmt.Errorf("%s: got %q", name, got)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Empty(t, d.Active())
}

func TestDispatch_StructuredLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelInfo, Format: "json", Output: &buf})
	tree := node.NewBuilder().Register(node.Literal("ok").Executes(func(c *core.Context) (core.Response, error) {
		c.LogInfo("ok.ran")
		return core.NoResponse, nil
	})).MustBuild()
	d := New(tree, func(o *Options) { o.Logger = logger })

	res, _ := dispatch(t, d, "ok")
	out := buf.String()
	assert.Contains(t, out, `"msg":"dispatch.completed"`)
	assert.Contains(t, out, `"component":"dispatch"`)
	assert.Contains(t, out, `"msg":"ok.ran"`)
	assert.Contains(t, out, `"component":"command"`)
	assert.Contains(t, out, res.InvocationID)
	assert.True(t, strings.Contains(out, `"status":"handled"`))
}

func TestNew_NilSource(t *testing.T) {
	d := New(node.NewBuilder().MustBuild())
	_, err := d.Dispatch(context.Background(), nil)
	assert.Error(t, err)
	assert.NotNil(t, d.Tree())
}
