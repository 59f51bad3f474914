package session

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/jinzhu/copier"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/knolabs/daela/core/actions"
	"github.com/knolabs/daela/core/events"
	"github.com/knolabs/daela/core/llms"
	"github.com/knolabs/daela/core/transcript"
)

// defaultFillers cover actions that bring no filler pool of their own.
var defaultFillers = []string{
	"One moment, please.",
	"Let me check that for you.",
	"Just a second while I look into that.",
}

// executeToolCalls runs every selected action to completion, one at a time,
// then prompts the model once more so it can phrase the results for the
// participant. A single failing action never ends the session; its failure is
// recorded and handed back to the model like any other result.
func (s *Session) executeToolCalls(ctx context.Context, userMessage string, response *llms.Response) {
	ctx, span := tracer.Start(ctx, "execute tool calls")
	defer span.End()

	// The prompt that phrases the results must not see the raw result
	// entries appended below, so the history is captured first.
	history := s.historyMessages()

	var calls []llms.ToolCall
	copier.Copy(&calls, response.ToolCalls)
	exchange := []llms.Message{{
		Role:      llms.RoleAssistant,
		Content:   response.Content,
		ToolCalls: calls,
	}}

	for _, call := range response.ToolCalls {
		span.SetAttributes(attribute.String("action.name", call.Name))

		action, ok := s.registry.Lookup(call.Name)
		if !ok {
			logger.WarnContext(ctx, "Model selected an unregistered action", "action", call.Name)
			exchange = append(exchange, toolMessage(call.ID, fmt.Sprintf("No action named %q is available.", call.Name)))
			continue
		}

		if action.Descriptor().AttachesFrame {
			s.respondWithFrame(ctx, userMessage, action, call)
			return
		}

		s.speakFiller(ctx, action)

		s.notify(events.NewActionStarted(call.Name))
		result, err := s.executeWithTimeout(ctx, action, call.Arguments)
		s.notify(events.NewActionCompleted(call.Name, call.ID, result, err))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "action failed")
			logger.ErrorContext(ctx, "Action failed", "action", call.Name, "error", err)

			s.store.Append(transcript.Message{
				Role:    transcript.RoleSystem,
				Content: fmt.Sprintf("Action %s failed: %v", call.Name, err),
			})
			exchange = append(exchange, toolMessage(call.ID, fmt.Sprintf("The action failed: %v", err)))
			continue
		}

		if result != "" {
			s.store.Append(transcript.Message{Role: transcript.RoleAssistant, Content: result})
		}
		exchange = append(exchange, toolMessage(call.ID, result))
	}

	followUp, err := s.chatModel.Prompt(ctx,
		llms.WithSystemPrompt(s.instructions),
		llms.WithMessages(append(history, exchange...)...),
	)
	if err != nil {
		s.containFailure(ctx, fmt.Errorf("failed to prompt chat model with action results: %w", err))
		return
	}
	if followUp.Content != "" {
		s.respond(ctx, followUp.Content)
	}
}

// respondWithFrame re-issues the triggering user message to the model with
// the latest cached camera frame attached. With an empty cache the message is
// re-issued without an image and the model is told there is nothing to see.
func (s *Session) respondWithFrame(ctx context.Context, userMessage string, action actions.Action, call llms.ToolCall) {
	ctx, span := tracer.Start(ctx, "respond with frame")
	defer span.End()

	s.speakFiller(ctx, action)

	message := llms.Message{Role: llms.RoleUser, Content: userMessage}
	frame, ok := s.frames.Get()
	if ok {
		message.Image = &llms.ImageAttachment{MIME: frame.MIME, Data: frame.Data}
	} else {
		logger.WarnContext(ctx, "No frame cached for image analysis", "action", call.Name)
		message.Content = userMessage + "\n(No camera frame is currently available.)"
	}

	history := s.historyMessages()
	if len(history) > 0 {
		// The triggering message is re-issued with the frame attached in
		// its place.
		history = history[:len(history)-1]
	}

	followUp, err := s.chatModel.Prompt(ctx,
		llms.WithSystemPrompt(s.instructions),
		llms.WithMessages(append(history, message)...),
	)
	if err != nil {
		s.containFailure(ctx, fmt.Errorf("failed to prompt chat model with frame: %w", err))
		return
	}

	if ok {
		s.markLastUserMessageImage()
	}
	if followUp.Content != "" {
		s.respond(ctx, followUp.Content)
	}
}

func (s *Session) markLastUserMessageImage() {
	// The transcript is append-only; the image marker rides on the record
	// of the follow-up instead of mutating the original entry.
	s.store.Append(transcript.Message{
		Role:     transcript.RoleSystem,
		Content:  "A camera frame was attached to the previous message.",
		HasImage: true,
	})
}

// speakFiller keeps the participant informed during action work. Skipped when
// the assistant already has the floor.
func (s *Session) speakFiller(ctx context.Context, action actions.Action) {
	last, ok := s.store.Last()
	if ok && last.Role == transcript.RoleAssistant {
		return
	}

	pool := action.Fillers()
	if len(pool) == 0 {
		pool = defaultFillers
	}
	s.respond(ctx, pool[rand.IntN(len(pool))])
}

// executeWithTimeout bounds a single handler run. The handler keeps running
// in its goroutine past the deadline; only the session stops waiting for it.
func (s *Session) executeWithTimeout(ctx context.Context, action actions.Action, arguments string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.actionTimeout)
	defer cancel()

	type outcome struct {
		result string
		err    error
	}

	done := make(chan outcome, 1)
	go func() {
		result, err := action.Execute(ctx, arguments)
		done <- outcome{result: result, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("action %s did not finish within %s: %w", action.Name(), s.actionTimeout, ctx.Err())
	case out := <-done:
		return out.result, out.err
	}
}

func toolMessage(callID, content string) llms.Message {
	return llms.Message{Role: llms.RoleTool, ToolCallID: callID, Content: content}
}
