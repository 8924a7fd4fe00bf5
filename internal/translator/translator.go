// Package translator maps logical suggest requests to query results and back.
// It owns request validation and response encoding; transport concerns stay
// with the caller.
package translator

import (
	"net/http"
	"time"

	"github.com/ASHISH26940/suggestd/internal/query"
)

// Content types of the two response shapes.
const (
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain; charset=utf-8"
)

// Status is the classification of a response.
type Status int

const (
	StatusOK Status = iota
	StatusBadRequest
)

func (s Status) String() string {
	if s == StatusOK {
		return "ok"
	}
	return "bad_request"
}

// Request is one inbound call as delivered by the session loop.
type Request struct {
	Method string
	Target string
	Body   []byte
}

// Response is what the session loop should transmit.
type Response struct {
	Status      Status
	ContentType string
	Body        []byte
	// Err is set for rejected requests.
	Err *Error
}

// Suggester is the query engine as seen by the translator.
type Suggester interface {
	Suggest(identifier string) query.Result
}

// Recorder receives per-request observations.
type Recorder interface {
	RecordQuery(matches int, elapsed time.Duration)
	RecordRejected(reason string)
}

type noopRecorder struct{}

func (noopRecorder) RecordQuery(int, time.Duration) {}
func (noopRecorder) RecordRejected(string)          {}

// Option configures a Translator.
type Option func(*Translator)

// WithRecorder reports every handled request to r.
func WithRecorder(r Recorder) Option {
	return func(t *Translator) {
		if r != nil {
			t.recorder = r
		}
	}
}

// Translator validates requests for one endpoint and answers them through a Suggester.
type Translator struct {
	engine   Suggester
	endpoint string
	recorder Recorder
}

// New creates a Translator serving endpoint.
func New(engine Suggester, endpoint string, opts ...Option) *Translator {
	t := &Translator{
		engine:   engine,
		endpoint: endpoint,
		recorder: noopRecorder{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Endpoint returns the path this translator answers on.
func (t *Translator) Endpoint() string {
	return t.endpoint
}

// Handle runs the full pipeline for one request: route check, method check,
// body decoding, query and encoding. It never panics on bad input; every
// failure becomes a bad_request response.
func (t *Translator) Handle(req Request) Response {
	// The target must equal the endpoint exactly; a query string is a different target.
	if req.Target != t.endpoint {
		return t.reject(RouteMismatch)
	}
	if req.Method != http.MethodPost {
		return t.reject(UnsupportedMethod)
	}

	identifier, err := Decode(req.Body)
	if err != nil {
		return t.reject(KindOf(err))
	}

	start := time.Now()
	result := t.engine.Suggest(identifier)
	t.recorder.RecordQuery(len(result), time.Since(start))

	body, err := Encode(result)
	if err != nil {
		return t.reject(EncodeFailure)
	}
	return Response{
		Status:      StatusOK,
		ContentType: ContentTypeJSON,
		Body:        body,
	}
}

func (t *Translator) reject(kind ErrorKind) Response {
	t.recorder.RecordRejected(kind.String())
	return Response{
		Status:      StatusBadRequest,
		ContentType: ContentTypeText,
		Body:        EncodeError(kind),
		Err:         &Error{Kind: kind},
	}
}
