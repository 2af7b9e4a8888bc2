package runner

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/hupe1980/cmdmesh/core"
	"github.com/hupe1980/cmdmesh/dispatch"
	"github.com/hupe1980/cmdmesh/logging"
	"golang.org/x/sync/errgroup"
)

// Handler reacts to a line the dispatcher did not run.
type Handler func(ctx context.Context, src core.Source) error

// Options holds configuration overrides passed to New().
type Options struct {
	// Prefixes introduce a command, e.g. "pf>". Matching ignores case.
	Prefixes []string
	// BotID adds "<@BotID>" and "<@!BotID>" as prefixes. A line that is only
	// the mention triggers Greeting.
	BotID string
	// MaxConcurrentInvocations bounds the lines Serve handles at once.
	// Zero means unbounded.
	MaxConcurrentInvocations int
	// Greeting runs for a bare bot mention.
	Greeting Handler
	// Fallback runs for lines without a prefix (for example to proxy the
	// message).
	Fallback Handler
	// Unknown runs for prefixed lines that matched no command.
	Unknown Handler
	// Logging services.
	Logger logging.Logger
}

// Outcome classifies what the runner did with a line.
type Outcome int

const (
	// OutcomeIgnored means nothing handled the line.
	OutcomeIgnored Outcome = iota
	// OutcomeDispatched means the line went through the dispatcher.
	OutcomeDispatched
	// OutcomeGreeting means the Greeting handler ran.
	OutcomeGreeting
	// OutcomeFallback means the Fallback handler ran.
	OutcomeFallback
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeDispatched:
		return "dispatched"
	case OutcomeGreeting:
		return "greeting"
	case OutcomeFallback:
		return "fallback"
	default:
		return "ignored"
	}
}

// Report describes the handling of one line.
type Report struct {
	Outcome Outcome
	// Result is set for OutcomeDispatched.
	Result dispatch.Result
}

// Runner feeds chat lines to a Dispatcher: it strips the invocation prefix,
// routes bare mentions and unprefixed lines to their handlers and bounds
// concurrent handling. Public methods are safe for concurrent use.
type Runner struct {
	dispatcher *dispatch.Dispatcher
	prefix     *regexp.Regexp
	maxConc    int
	greeting   Handler
	fallback   Handler
	unknown    Handler
	logger     logging.Logger

	mu      sync.Mutex
	handled map[Outcome]int
}

// New constructs a Runner with optional overrides.
func New(d *dispatch.Dispatcher, optFns ...func(o *Options)) *Runner {
	opts := Options{
		Prefixes:                 []string{"pf>", "pf;", "pf!", "pf:"},
		MaxConcurrentInvocations: 10,
		Logger:                   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	logger := opts.Logger
	if sl, ok := logger.(*logging.StructuredLogger); ok {
		logger = sl.WithComponent("runner")
	}

	return &Runner{
		dispatcher: d,
		prefix:     compilePrefix(opts.Prefixes, opts.BotID),
		maxConc:    opts.MaxConcurrentInvocations,
		greeting:   opts.Greeting,
		fallback:   opts.Fallback,
		unknown:    opts.Unknown,
		logger:     logger,
		handled:    map[Outcome]int{},
	}
}

// compilePrefix builds ^(?:(?P<mention><@!?BOTID>)|p1|p2...)\s*. It
// returns nil when there is nothing to match.
func compilePrefix(prefixes []string, botID string) *regexp.Regexp {
	var alts []string
	if botID != "" {
		alts = append(alts, `(?P<mention><@!?`+regexp.QuoteMeta(botID)+`>)`)
	}
	for _, p := range prefixes {
		if p = strings.TrimSpace(p); p != "" {
			alts = append(alts, regexp.QuoteMeta(p))
		}
	}
	if len(alts) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?i)^(?:` + strings.Join(alts, "|") + `)\s*`)
}

// Strip removes the invocation prefix from line. ok is false when the line
// has no prefix; mention reports whether the prefix was a bot mention.
func (r *Runner) Strip(line string) (rest string, mention, ok bool) {
	if r.prefix == nil {
		return line, false, false
	}
	loc := r.prefix.FindStringSubmatchIndex(line)
	if loc == nil {
		return line, false, false
	}
	if i := r.prefix.SubexpIndex("mention"); i > 0 {
		mention = loc[2*i] >= 0
	}
	return line[loc[1]:], mention, true
}

// prefixed exposes the command text without its invocation prefix.
type prefixed struct {
	core.Source
	text string
}

func (p prefixed) Text() string { return p.text }

// Handle processes one line synchronously.
func (r *Runner) Handle(ctx context.Context, src core.Source) (Report, error) {
	rest, mention, ok := r.Strip(src.Text())
	if !ok {
		if r.fallback == nil {
			return r.count(Report{Outcome: OutcomeIgnored}), nil
		}
		r.logger.Debug("runner.fallback")
		if err := r.fallback(ctx, src); err != nil {
			return Report{Outcome: OutcomeFallback}, fmt.Errorf("fallback: %w", err)
		}
		return r.count(Report{Outcome: OutcomeFallback}), nil
	}

	if strings.TrimSpace(rest) == "" && mention {
		if r.greeting == nil {
			return r.count(Report{Outcome: OutcomeIgnored}), nil
		}
		r.logger.Debug("runner.greeting")
		if err := r.greeting(ctx, src); err != nil {
			return Report{Outcome: OutcomeGreeting}, fmt.Errorf("greeting: %w", err)
		}
		return r.count(Report{Outcome: OutcomeGreeting}), nil
	}

	res, err := r.dispatcher.Dispatch(ctx, prefixed{Source: src, text: rest})
	report := Report{Outcome: OutcomeDispatched, Result: res}
	if err != nil {
		return report, err
	}
	if res.Status == dispatch.StatusUnhandled && r.unknown != nil {
		r.logger.Debug("runner.unknown", "invocation_id", res.InvocationID)
		if err := r.unknown(ctx, prefixed{Source: src, text: rest}); err != nil {
			return report, fmt.Errorf("unknown command handler: %w", err)
		}
	}
	return r.count(report), nil
}

// Serve handles every source received until sources is closed or ctx is
// done, running up to MaxConcurrentInvocations lines at once. Errors of
// individual lines are logged and do not stop the loop.
func (r *Runner) Serve(ctx context.Context, sources <-chan core.Source) error {
	var g errgroup.Group
	if r.maxConc > 0 {
		g.SetLimit(r.maxConc)
	}

	for {
		select {
		case <-ctx.Done():
			_ = g.Wait()
			return ctx.Err()
		case src, ok := <-sources:
			if !ok {
				return g.Wait()
			}
			g.Go(func() error {
				r.handleLogged(ctx, src)
				return nil
			})
		}
	}
}

func (r *Runner) handleLogged(ctx context.Context, src core.Source) {
	report, err := r.Handle(ctx, src)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		r.logger.Debug("runner.cancelled", "error", err.Error())
	default:
		r.logger.Warn("runner.failed", "outcome", report.Outcome.String(), "error", err.Error())
	}
}

func (r *Runner) count(report Report) Report {
	r.mu.Lock()
	r.handled[report.Outcome]++
	r.mu.Unlock()
	return report
}

// Stats returns how many lines ended in each outcome.
func (r *Runner) Stats() map[Outcome]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[Outcome]int, len(r.handled))
	for k, v := range r.handled {
		out[k] = v
	}
	return out
}

// Dispatcher returns the underlying dispatcher.
func (r *Runner) Dispatcher() *dispatch.Dispatcher { return r.dispatcher }
