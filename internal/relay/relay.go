package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultTimeout   = 10 * time.Second
	DefaultUserAgent = "Contact Form Relay"
)

// Client-facing messages. The landing page shows them verbatim.
const (
	MsgMethodNotAllowed = "Método no permitido. Solo se aceptan solicitudes POST."
	MsgInvalidBody      = "Cuerpo de la solicitud inválido o vacío."
	MsgBodyTooLarge     = "El cuerpo de la solicitud es demasiado grande."
	MsgMisconfigured    = "Error de configuración del servidor. Por favor, contacta al administrador."
	MsgTimeout          = "La operación tardó demasiado en responder. Por favor, inténtalo de nuevo."
	MsgSuccess          = "Formulario enviado con éxito."
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Outcome is the normalized body returned to the landing page.
type Outcome struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// ErrorBody is returned for requests rejected before any forwarding.
type ErrorBody struct {
	Error string `json:"error"`
}

// Response is what the HTTP layer writes back: status, extra headers and a
// JSON-encodable body.
type Response struct {
	Status int
	Header http.Header
	Body   any
}

type Options struct {
	// UpstreamURL may be empty; submissions then fail as a configuration error.
	UpstreamURL  string
	Timeout      time.Duration
	UserAgent    string
	Client       *http.Client
	Logger       zerolog.Logger
	RedactFields []string
}

// Relay forwards form submissions to the spreadsheet collector. It holds no
// per-request state and is safe for concurrent use.
type Relay struct {
	upstreamURL  string
	timeout      time.Duration
	userAgent    string
	client       *http.Client
	logger       zerolog.Logger
	redactFields []string
}

func New(opts Options) *Relay {
	r := &Relay{
		upstreamURL:  opts.UpstreamURL,
		timeout:      opts.Timeout,
		userAgent:    opts.UserAgent,
		client:       opts.Client,
		logger:       opts.Logger.With().Str("component", "relay").Logger(),
		redactFields: opts.RedactFields,
	}
	if r.timeout <= 0 {
		r.timeout = DefaultTimeout
	}
	if r.userAgent == "" {
		r.userAgent = DefaultUserAgent
	}
	if r.client == nil {
		r.client = &http.Client{}
	}
	return r
}

// Configured reports whether an upstream URL was supplied.
func (r *Relay) Configured() bool {
	return r.upstreamURL != ""
}

// Handle runs one submission through the guard sequence and returns the
// response to send. Each guard is terminal.
func (r *Relay) Handle(ctx context.Context, method string, body []byte) Response {
	log := r.log(ctx)

	if method != http.MethodPost {
		log.Warn().Str("fault", "caller").Str("method", method).Msg("method not allowed")
		return Response{
			Status: http.StatusMethodNotAllowed,
			Header: http.Header{"Allow": []string{http.MethodPost}},
			Body:   ErrorBody{Error: MsgMethodNotAllowed},
		}
	}

	sub, err := ParseSubmission(body)
	if err != nil {
		log.Warn().Str("fault", "caller").Err(err).Msg("invalid submission body")
		return Response{Status: http.StatusBadRequest, Body: ErrorBody{Error: MsgInvalidBody}}
	}

	log.Info().RawJSON("payload", sub.Redacted(r.redactFields)).Msg("submission received")

	if !r.Configured() {
		log.Error().Str("fault", "operator").Msg("upstream URL is not configured (GOOGLE_SCRIPT_FROM)")
		return errorResponse(http.StatusInternalServerError, MsgMisconfigured)
	}

	res := r.Forward(ctx, sub)
	return r.respond(log, res)
}

func (r *Relay) respond(log *zerolog.Logger, res Result) Response {
	switch res.Kind {
	case TimedOut:
		log.Error().Str("fault", "upstream").Dur("timeout", r.timeout).Err(res.Err).Msg("upstream request timed out")
		return errorResponse(http.StatusGatewayTimeout, MsgTimeout)

	case UpstreamError:
		msg := res.Message
		if msg == "" {
			msg = fmt.Sprintf("Error de Apps Script: %d - %s", res.StatusCode, http.StatusText(res.StatusCode))
		}
		log.Error().Str("fault", "upstream").Int("upstream_status", res.StatusCode).Str("upstream_message", msg).Msg("upstream returned an error status")
		return errorResponse(res.StatusCode, msg)

	case Rejected:
		log.Error().Str("fault", "upstream").Str("upstream_message", res.Message).Msg("upstream reported an error")
		return Response{Status: http.StatusBadRequest, Body: json.RawMessage(res.Body)}

	case Delivered:
		log.Info().Int("upstream_status", res.StatusCode).Msg("submission delivered")
		return Response{
			Status: http.StatusOK,
			Body: Outcome{
				Status:  StatusSuccess,
				Message: MsgSuccess,
				Data:    json.RawMessage(res.Body),
			},
		}

	default:
		log.Error().Str("fault", "internal").Err(res.Err).Msg("unexpected relay failure")
		return errorResponse(http.StatusInternalServerError, "Error interno del servidor: "+publicDetail(res.Err))
	}
}

// publicDetail is the part of a failure safe to show the caller. Transport
// errors carry the collector URL, which is a write credential for the sheet,
// so only the underlying cause is kept.
func publicDetail(err error) string {
	if err == nil {
		return "unknown error"
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err.Error()
	}
	return err.Error()
}

// log prefers the request-scoped logger installed by the HTTP middleware.
func (r *Relay) log(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		scoped := l.With().Str("component", "relay").Logger()
		return &scoped
	}
	return &r.logger
}

func errorResponse(status int, msg string) Response {
	return Response{Status: status, Body: Outcome{Status: StatusError, Message: msg}}
}
