package runner

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hupe1980/cmdmesh/core"
	"github.com/hupe1980/cmdmesh/dispatch"
	"github.com/hupe1980/cmdmesh/internal/testutil"
	"github.com/hupe1980/cmdmesh/node"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoDispatcher(t *testing.T) *dispatch.Dispatcher {
	t.Helper()
	echo := node.Literal("echo")
	echo.Greedy("text").Executes(func(c *core.Context) (core.Response, error) {
		return core.PlainResponse(core.Require[string](c, "text")), nil
	})
	tree, err := node.NewBuilder().Register(echo).Build()
	require.NoError(t, err)
	return dispatch.New(tree)
}

func TestRunner_Strip(t *testing.T) {
	r := New(echoDispatcher(t), func(o *Options) { o.BotID = "42" })

	tests := map[string]struct {
		line    string
		rest    string
		mention bool
		ok      bool
	}{
		"pf>":           {line: "pf>echo hi", rest: "echo hi", ok: true},
		"pf; spaced":    {line: "pf;   echo hi", rest: "echo hi", ok: true},
		"upper":         {line: "PF!echo", rest: "echo", ok: true},
		"colon":         {line: "pf:echo", rest: "echo", ok: true},
		"mention":       {line: "<@42> echo", rest: "echo", mention: true, ok: true},
		"nick mention":  {line: "<@!42>", rest: "", mention: true, ok: true},
		"other mention": {line: "<@43> echo", rest: "<@43> echo"},
		"no prefix":     {line: "hello there", rest: "hello there"},
		"mid-line":      {line: "say pf>echo", rest: "say pf>echo"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			rest, mention, ok := r.Strip(tc.line)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.mention, mention)
			assert.Equal(t, tc.rest, rest)
		})
	}
}

func TestRunner_NoPrefixes(t *testing.T) {
	r := New(echoDispatcher(t), func(o *Options) { o.Prefixes = nil })
	_, _, ok := r.Strip("pf>echo")
	assert.False(t, ok)
}

func TestRunner_HandleDispatches(t *testing.T) {
	r := New(echoDispatcher(t))
	src := testutil.NewSource("pf>echo hello world")

	report, err := r.Handle(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDispatched, report.Outcome)
	assert.Equal(t, dispatch.StatusHandled, report.Result.Status)
	assert.Equal(t, "hello world", src.Last().Text)
}

func TestRunner_GreetingAndFallback(t *testing.T) {
	var greeted, proxied []string
	r := New(echoDispatcher(t), func(o *Options) {
		o.BotID = "42"
		o.Greeting = func(_ context.Context, src core.Source) error {
			greeted = append(greeted, src.Text())
			return nil
		}
		o.Fallback = func(_ context.Context, src core.Source) error {
			proxied = append(proxied, src.Text())
			return nil
		}
	})

	report, err := r.Handle(context.Background(), testutil.NewSource("<@42>  "))
	require.NoError(t, err)
	assert.Equal(t, OutcomeGreeting, report.Outcome)

	report, err = r.Handle(context.Background(), testutil.NewSource("a: hello from Alice"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeFallback, report.Outcome)

	assert.Equal(t, []string{"<@42>  "}, greeted)
	assert.Equal(t, []string{"a: hello from Alice"}, proxied)

	// A bare text prefix is a command line, not a greeting.
	report, err = r.Handle(context.Background(), testutil.NewSource("pf>"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDispatched, report.Outcome)
	assert.Equal(t, dispatch.StatusUnhandled, report.Result.Status)

	stats := r.Stats()
	assert.Equal(t, 1, stats[OutcomeGreeting])
	assert.Equal(t, 1, stats[OutcomeFallback])
	assert.Equal(t, 1, stats[OutcomeDispatched])
}

func TestRunner_UnknownAndErrors(t *testing.T) {
	var unknown []string
	failure := errors.New("webhook missing")
	r := New(echoDispatcher(t), func(o *Options) {
		o.Unknown = func(_ context.Context, src core.Source) error {
			unknown = append(unknown, src.Text())
			return nil
		}
		o.Fallback = func(context.Context, core.Source) error { return failure }
	})

	_, err := r.Handle(context.Background(), testutil.NewSource("pf>frobnicate"))
	require.NoError(t, err)
	assert.Equal(t, []string{"frobnicate"}, unknown)

	report, err := r.Handle(context.Background(), testutil.NewSource("plain message"))
	assert.ErrorIs(t, err, failure)
	assert.Equal(t, OutcomeFallback, report.Outcome)

	// Without a bot id a mention is not a prefix.
	report, err = r.Handle(context.Background(), testutil.NewSource("<@42>"))
	assert.ErrorIs(t, err, failure)
	assert.Equal(t, OutcomeFallback, report.Outcome)
}

func TestRunner_ServeBoundsConcurrency(t *testing.T) {
	var running, peak atomic.Int32
	slow := node.Literal("slow").Executes(func(c *core.Context) (core.Response, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		running.Add(-1)
		return core.SuccessResponse("done"), nil
	})
	tree := node.NewBuilder().Register(slow).MustBuild()
	r := New(dispatch.New(tree), func(o *Options) { o.MaxConcurrentInvocations = 3 })

	sources := make(chan core.Source)
	var sent []*testutil.Source
	for i := 0; i < 12; i++ {
		sent = append(sent, testutil.NewSource("pf>slow"))
	}
	go func() {
		defer close(sources)
		for _, s := range sent {
			sources <- s
		}
	}()

	require.NoError(t, r.Serve(context.Background(), sources))
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Equal(t, 12, r.Stats()[OutcomeDispatched])
	for _, s := range sent {
		assert.Equal(t, []string{"✅ done"}, s.Texts())
	}
}

func TestRunner_ServeStopsOnCancel(t *testing.T) {
	r := New(echoDispatcher(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := r.Serve(ctx, make(chan core.Source))
	assert.ErrorIs(t, err, context.Canceled)
}
