package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/dmcsvoices/creative-ai-agents/internal/backend"
	"github.com/dmcsvoices/creative-ai-agents/internal/log"
	"github.com/dmcsvoices/creative-ai-agents/internal/pubsub"
	"github.com/dmcsvoices/creative-ai-agents/internal/tracing"
)

// DefaultMaxRounds bounds a session when the config does not.
const DefaultMaxRounds = 20

// RoleTool marks transcript turns holding tool output. Agent replies use
// backend.RoleAssistant and the opening task uses backend.RoleUser.
const RoleTool = "tool"

// Turn is one transcript entry of a session.
type Turn struct {
	SessionID string
	Agent     string
	Role      string
	Content   string
	Round     int
	Tool      string // set on tool result turns
}

// SessionConfig wires a session's collaborators.
type SessionConfig struct {
	Client    backend.ChatClient
	Agents    []Agent
	Tools     *Registry
	MaxRounds int
	Broker    *pubsub.Broker[Turn] // optional, nil drops events
	Tracer    trace.Tracer         // optional, nil disables tracing
}

// Session drives a group chat over the configured agents until one of them
// says TERMINATE, a tool ends the conversation, or the round budget runs
// out. Agents speak round-robin; each sees the full transcript with the
// other agents' replies presented as user messages.
type Session struct {
	id        string
	client    backend.ChatClient
	agents    []Agent
	tools     *Registry
	maxRounds int
	broker    *pubsub.Broker[Turn]
	tracer    trace.Tracer
}

// NewSession validates the configuration and builds a session.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("session needs a chat client")
	}
	if len(cfg.Agents) < 2 {
		return nil, fmt.Errorf("session needs at least 2 agents, got %d", len(cfg.Agents))
	}
	if cfg.Tools == nil {
		return nil, fmt.Errorf("session needs a tool registry")
	}
	maxRounds := cfg.MaxRounds
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}
	return &Session{
		id:        uuid.NewString(),
		client:    cfg.Client,
		agents:    cfg.Agents,
		tools:     cfg.Tools,
		maxRounds: maxRounds,
		broker:    cfg.Broker,
		tracer:    tracer,
	}, nil
}

// ID returns the session's identifier.
func (s *Session) ID() string { return s.id }

// Run executes the group chat for the given task and returns the transcript.
// The transcript is returned even on error so callers can harvest whatever
// the agents produced before the failure.
func (s *Session) Run(ctx context.Context, task string) ([]Turn, error) {
	var span trace.Span
	ctx, span = s.tracer.Start(ctx, tracing.SpanSession,
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer span.End()
	span.SetAttributes(attribute.String(tracing.AttrSessionID, s.id))

	transcript := []Turn{{
		SessionID: s.id,
		Agent:     "user",
		Role:      backend.RoleUser,
		Content:   task,
	}}
	s.publish(pubsub.TurnEvent, transcript[0])
	log.Info(log.CatAgent, "session started",
		"session", s.id, "agents", len(s.agents), "max_rounds", s.maxRounds)

	for round := 1; round <= s.maxRounds; round++ {
		speaker := s.agents[(round-1)%len(s.agents)]

		reply, err := s.client.Complete(ctx, speaker.Model, s.viewFor(speaker, transcript))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return transcript, fmt.Errorf("agent %s round %d: %w", speaker.Name, round, err)
		}

		turn := Turn{
			SessionID: s.id,
			Agent:     speaker.Name,
			Role:      backend.RoleAssistant,
			Content:   reply,
			Round:     round,
		}
		transcript = append(transcript, turn)
		log.Debug(log.CatAgent, "agent turn",
			"session", s.id, "agent", speaker.Name, "round", round, "chars", len(reply))

		if call, ok := ParseToolCall(reply); ok {
			turn.Tool = call.Tool
			s.publish(pubsub.ToolCallEvent, turn)

			result := s.tools.Run(ctx, speaker.Name, call)
			resultTurn := Turn{
				SessionID: s.id,
				Agent:     speaker.Name,
				Role:      RoleTool,
				Content:   result,
				Round:     round,
				Tool:      call.Tool,
			}
			transcript = append(transcript, resultTurn)
			s.publish(pubsub.ToolResultEvent, resultTurn)

			if strings.Contains(result, TerminateSentinel) {
				s.finish(span, resultTurn, round)
				return transcript, nil
			}
			continue
		}

		s.publish(pubsub.TurnEvent, turn)
		if strings.Contains(reply, TerminateSentinel) {
			s.finish(span, turn, round)
			return transcript, nil
		}
	}

	log.Warn(log.CatAgent, "session hit round budget",
		"session", s.id, "max_rounds", s.maxRounds)
	span.SetAttributes(attribute.Int(tracing.AttrRounds, s.maxRounds))
	span.SetStatus(codes.Ok, "")
	return transcript, nil
}

func (s *Session) finish(span trace.Span, last Turn, rounds int) {
	s.publish(pubsub.TerminatedEvent, last)
	span.SetAttributes(attribute.Int(tracing.AttrRounds, rounds))
	span.SetStatus(codes.Ok, "")
	log.Info(log.CatAgent, "session terminated",
		"session", s.id, "rounds", rounds, "by", last.Agent)
}

func (s *Session) publish(eventType pubsub.EventType, turn Turn) {
	if s.broker != nil {
		s.broker.Publish(eventType, turn)
	}
}

// viewFor renders the transcript from one agent's perspective: its own
// system message plus the tool protocol first, its own replies as assistant
// turns, everyone else's speech as user turns labeled with the speaker.
func (s *Session) viewFor(a Agent, transcript []Turn) []backend.Message {
	msgs := make([]backend.Message, 0, len(transcript)+1)
	msgs = append(msgs, backend.Message{
		Role:    backend.RoleSystem,
		Content: a.SystemMessage + "\n\n" + s.tools.Instructions(),
	})
	for _, t := range transcript {
		switch {
		case t.Role == RoleTool:
			msgs = append(msgs, backend.Message{
				Role:    backend.RoleUser,
				Name:    t.Agent,
				Content: fmt.Sprintf("Tool %s result:\n%s", t.Tool, t.Content),
			})
		case t.Agent == a.Name:
			msgs = append(msgs, backend.Message{
				Role:    backend.RoleAssistant,
				Name:    t.Agent,
				Content: t.Content,
			})
		case t.Role == backend.RoleUser:
			msgs = append(msgs, backend.Message{
				Role:    backend.RoleUser,
				Content: t.Content,
			})
		default:
			msgs = append(msgs, backend.Message{
				Role:    backend.RoleUser,
				Name:    t.Agent,
				Content: fmt.Sprintf("%s: %s", t.Agent, t.Content),
			})
		}
	}
	return msgs
}
