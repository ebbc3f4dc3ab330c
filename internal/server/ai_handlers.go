package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"blogosphere/internal/ai"
	"blogosphere/internal/middleware"
	"blogosphere/internal/models"
	"blogosphere/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel/attribute"
)

type generateRequest struct {
	Topic     string    `json:"topic"`
	WordCount wordCount `json:"wordCount"`
}

// wordCount accepts a JSON number or a numeric string. Anything without a
// leading integer decodes to 0, which the generator treats as the default.
type wordCount int

func (w *wordCount) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = strings.TrimSpace(unquoted)
	}
	*w = wordCount(leadingInt(raw))
	return nil
}

// leadingInt parses the optional sign and digits at the start of s, so
// "300", "300.5" and "300 words" all give 300.
func leadingInt(s string) int {
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

type summarizeRequest struct {
	Content string `json:"content"`
}

type sseChunk struct {
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Stream outcomes recorded by AIStreams.
const (
	outcomeCompleted  = "completed"
	outcomeRejected   = "rejected"
	outcomeUpstream   = "upstream_error"
	outcomeClientGone = "client_gone"
)

// GenerateContent handles POST /api/ai/generate-content
// @Summary Generate a blog post
// @Description Streams the post as server-sent events: data: {"content":"..."} frames, then data: [DONE].
// @Tags ai
// @Accept json
// @Produce text/event-stream
// @Security BearerAuth
// @Param request body object{topic=string,wordCount=int} true "Generation request"
// @Failure 400 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /ai/generate-content [post]
func (s *Server) GenerateContent(c *fiber.Ctx) error {
	var req generateRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	return s.relay(c, "generate", "Generation failed", func(ctx context.Context) (ai.Stream, error) {
		return s.aiService.Generate(ctx, req.Topic, int(req.WordCount))
	})
}

// Summarize handles POST /api/ai/summarize
// @Summary Summarize content
// @Description Streams the summary as server-sent events.
// @Tags ai
// @Accept json
// @Produce text/event-stream
// @Security BearerAuth
// @Param request body object{content=string} true "Content to summarize"
// @Failure 400 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /ai/summarize [post]
func (s *Server) Summarize(c *fiber.Ctx) error {
	var req summarizeRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	return s.relay(c, "summarize", "Summarization failed", func(ctx context.Context) (ai.Stream, error) {
		return s.aiService.Summarize(ctx, req.Content)
	})
}

// relay opens the upstream stream before anything is written, so open
// failures still get a JSON error with a proper status. Once the stream is
// open the response is committed as an event stream.
func (s *Server) relay(c *fiber.Ctx, kind, failMsg string, open func(context.Context) (ai.Stream, error)) error {
	start := time.Now()
	ctx, span := observability.StartSpan(c.UserContext(), "ai."+kind, attribute.String("ai.kind", kind))
	ctx, cancel := context.WithCancel(ctx)

	stream, err := open(ctx)
	if err != nil {
		cancel()
		defer span.End()
		outcome := outcomeRejected
		if models.HasCode(err, models.CodeUpstream) {
			outcome = outcomeUpstream
			middleware.Logger.ErrorContext(ctx, "ai upstream open failed",
				slog.String("kind", kind), slog.String("error", err.Error()))
		}
		span.SetAttributes(attribute.String("ai.outcome", outcome))
		observability.AIStreams.WithLabelValues(kind, outcome).Inc()
		return respondError(c, err)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer span.End()
		defer cancel()
		defer func() { _ = stream.Close() }()

		outcome := pump(ctx, w, stream, failMsg)
		span.SetAttributes(attribute.String("ai.outcome", outcome))
		observability.AIStreams.WithLabelValues(kind, outcome).Inc()
		observability.AIStreamDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}))
	return nil
}

// pump copies fragments from stream to w as SSE frames until the upstream
// ends, fails, or the client stops reading.
func pump(ctx context.Context, w *bufio.Writer, stream ai.Stream, failMsg string) string {
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			if _, err := io.WriteString(w, "data: [DONE]\n\n"); err != nil {
				return outcomeClientGone
			}
			if err := w.Flush(); err != nil {
				return outcomeClientGone
			}
			return outcomeCompleted
		}
		if err != nil {
			middleware.Logger.ErrorContext(ctx, "ai stream failed", slog.String("error", err.Error()))
			if writeEvent(w, sseChunk{Error: failMsg}) == nil {
				_ = w.Flush()
			}
			return outcomeUpstream
		}

		if err := writeEvent(w, sseChunk{Content: chunk}); err != nil {
			return outcomeClientGone
		}
		if err := w.Flush(); err != nil {
			return outcomeClientGone
		}
	}
}

func writeEvent(w io.Writer, v sseChunk) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, "data: "); err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return err
	}
	_, err = io.WriteString(w, "\n\n")
	return err
}
