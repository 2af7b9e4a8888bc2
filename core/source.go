package core

import "context"

// ResponseKind selects how a response is presented to the user.
type ResponseKind int

const (
	// Plain is an undecorated response.
	Plain ResponseKind = iota
	// Success reports a completed action.
	Success
	// Warning reports a recoverable problem.
	Warning
	// Failure reports that the command could not be carried out.
	Failure
)

// String returns the lower-case name of the kind.
func (k ResponseKind) String() string {
	switch k {
	case Plain:
		return "plain"
	case Success:
		return "success"
	case Warning:
		return "warning"
	case Failure:
		return "failure"
	default:
		return "unknown"
	}
}

// Decorate prefixes text with the marker chat surfaces use for the kind.
func (k ResponseKind) Decorate(text string) string {
	switch k {
	case Success:
		return "✅ " + text
	case Warning:
		return "⚠️ " + text
	case Failure:
		return "❌ " + text
	default:
		return text
	}
}

// Attachment is an out-of-band object (typically a file) that arrived with
// the command text.
type Attachment struct {
	ID          uint64 `mapstructure:"id" json:"id"`
	Filename    string `mapstructure:"filename" json:"filename"`
	URL         string `mapstructure:"url" json:"url"`
	ContentType string `mapstructure:"content_type" json:"content_type,omitempty"`
	Size        int64  `mapstructure:"size" json:"size,omitempty"`
}

// Source is the invoking surface of a command. Concrete adapters (chat
// message, console line, platform interaction) live with the surrounding
// application.
type Source interface {
	// Text returns the raw command text with any invocation prefix removed.
	Text() string
	// Attachment returns the attached object, or nil when none was sent.
	Attachment() *Attachment
	// Respond delivers text to the user and returns an adapter specific
	// handle (message id, echoed line, ...).
	Respond(ctx context.Context, text string, kind ResponseKind, private bool) (string, error)
}

// Response is the result of a leaf executor. A zero Response means the
// executor already responded (or had nothing to say).
type Response struct {
	Text    string
	Kind    ResponseKind
	Private bool
}

// Empty reports whether there is nothing to deliver.
func (r Response) Empty() bool { return r.Text == "" }

// NoResponse is returned by executors that responded on their own.
var NoResponse = Response{}

// PlainResponse returns an undecorated public response.
func PlainResponse(text string) Response { return Response{Text: text, Kind: Plain} }

// SuccessResponse returns a public success response.
func SuccessResponse(text string) Response { return Response{Text: text, Kind: Success} }

// WarningResponse returns a public warning response.
func WarningResponse(text string) Response { return Response{Text: text, Kind: Warning} }

// FailureResponse returns a public failure response.
func FailureResponse(text string) Response { return Response{Text: text, Kind: Failure} }
