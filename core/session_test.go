package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/knolabs/daela/core/actions"
	"github.com/knolabs/daela/core/events"
	"github.com/knolabs/daela/core/llms"
	"github.com/knolabs/daela/core/transcript"
	"github.com/knolabs/daela/core/transport"
)

type promptResult struct {
	response *llms.Response
	err      error
}

// scriptedModel replays a fixed sequence of responses and records every
// prompt it receives.
type scriptedModel struct {
	mu      sync.Mutex
	script  []promptResult
	prompts []llms.PromptOptions
}

func (m *scriptedModel) Prompt(_ context.Context, opts ...llms.PromptOption) (*llms.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var options llms.PromptOptions
	for _, opt := range opts {
		opt(&options)
	}
	m.prompts = append(m.prompts, options)

	if len(m.script) == 0 {
		return &llms.Response{Content: "unscripted reply"}, nil
	}
	next := m.script[0]
	m.script = m.script[1:]
	return next.response, next.err
}

func (m *scriptedModel) promptCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

func (m *scriptedModel) prompt(i int) llms.PromptOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prompts[i]
}

type recordingSpeaker struct {
	mu     sync.Mutex
	spoken []string
	stops  int
}

func (r *recordingSpeaker) Speak(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spoken = append(r.spoken, text)
	return nil
}

func (r *recordingSpeaker) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops++
	return nil
}

func (r *recordingSpeaker) stopCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stops
}

type fakeTransport struct {
	mu         sync.Mutex
	connectErr error
	callbacks  transport.Callbacks
	sent       []string
	closed     int
}

func (f *fakeTransport) Connect(_ context.Context, _ string, callbacks transport.Callbacks) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callbacks = callbacks
	return nil
}

func (f *fakeTransport) SendChatMessage(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeTransport) PublishSpeech(_ []byte) error { return nil }

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeTransport) sentMessages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func (f *fakeTransport) roomCallbacks() transport.Callbacks {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.callbacks
}

type countingWriter struct {
	mu     sync.Mutex
	writes int
	lastN  int
}

func (w *countingWriter) Write(store *transcript.Store) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writes++
	w.lastN = store.Len()
	return nil
}

func startSession(t *testing.T, agent *Session) <-chan error {
	t.Helper()
	runErr := make(chan error, 1)
	go func() { runErr <- agent.Run(context.Background()) }()
	return runErr
}

func waitForResponse(t *testing.T, responses <-chan string) string {
	t.Helper()
	select {
	case text := <-responses:
		return text
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a response")
		return ""
	}
}

func waitForRun(t *testing.T, runErr <-chan error) error {
	t.Helper()
	select {
	case err := <-runErr:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the session to finish")
		return nil
	}
}

func TestNewRequiresChatModel(t *testing.T) {
	if _, err := New(); err == nil {
		t.Fatal("expected error when no chat model is configured")
	}
}

func TestEachSessionGetsAUniqueID(t *testing.T) {
	first, err := New(WithChatModel(&scriptedModel{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := New(WithChatModel(&scriptedModel{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.ID() == "" || first.ID() == second.ID() {
		t.Fatalf("expected distinct non-empty ids, got %q and %q", first.ID(), second.ID())
	}
}

func TestNewRejectsDuplicateActionNames(t *testing.T) {
	echo := func(_ context.Context, _ struct{}) (string, error) { return "", nil }
	_, err := New(
		WithChatModel(&scriptedModel{}),
		WithActions(
			actions.New("ping", "first", echo),
			actions.New("ping", "second", echo),
		),
	)

	var duplicateErr actions.DuplicateActionError
	if !errors.As(err, &duplicateErr) {
		t.Fatalf("expected DuplicateActionError, got %v", err)
	}
}

func TestGreetingIsSpokenOnceForTheFirstParticipantOnly(t *testing.T) {
	model := &scriptedModel{script: []promptResult{
		{response: &llms.Response{Content: "Hi there."}},
	}}
	responses := make(chan string, 16)

	agent, err := New(
		WithChatModel(model),
		WithGreeting("Welcome to the office."),
		WithResponseCallback(func(text string) { responses <- text }),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	runErr := startSession(t, agent)

	agent.Dispatch(events.NewParticipantJoined("alice"))
	if got := waitForResponse(t, responses); got != "Welcome to the office." {
		t.Fatalf("expected greeting, got %q", got)
	}

	agent.Dispatch(events.NewParticipantJoined("bob"))
	agent.Dispatch(events.NewUserText("hello"))
	if got := waitForResponse(t, responses); got != "Hi there." {
		t.Fatalf("expected model reply after second join, got %q", got)
	}

	agent.Close()
	if err := waitForRun(t, runErr); err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
}

func TestMessagesBeforeAnyParticipantAreDropped(t *testing.T) {
	model := &scriptedModel{}
	responses := make(chan string, 16)

	agent, err := New(
		WithChatModel(model),
		WithGreeting("Hello."),
		WithResponseCallback(func(text string) { responses <- text }),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	runErr := startSession(t, agent)

	agent.Dispatch(events.NewUserText("anyone there?"))
	agent.Dispatch(events.NewParticipantJoined("alice"))
	waitForResponse(t, responses)

	if got := model.promptCount(); got != 0 {
		t.Fatalf("expected no prompts for a message sent before the greeting, got %d", got)
	}

	agent.Close()
	waitForRun(t, runErr)
}

func TestStateTransitionsAcrossAFullSession(t *testing.T) {
	var (
		mu     sync.Mutex
		states []State
	)
	agent, err := New(
		WithChatModel(&scriptedModel{}),
		WithStateChangeCallback(func(state State) {
			mu.Lock()
			states = append(states, state)
			mu.Unlock()
		}),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	runErr := startSession(t, agent)

	agent.Dispatch(events.NewParticipantJoined("alice"))
	agent.Dispatch(events.NewParticipantLeft("alice"))
	if err := waitForRun(t, runErr); err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	expected := []State{StateAwaitingParticipant, StateGreeting, StateActive, StateClosing, StateClosed}
	if len(states) != len(expected) {
		t.Fatalf("expected states %v, got %v", expected, states)
	}
	for i, state := range expected {
		if states[i] != state {
			t.Fatalf("expected state %d to be %s, got %s", i, state, states[i])
		}
	}
}

func TestUserTurnIsRecordedAndAnswered(t *testing.T) {
	model := &scriptedModel{script: []promptResult{
		{response: &llms.Response{Content: "A cleaning takes about an hour."}},
	}}
	speaker := &recordingSpeaker{}
	responses := make(chan string, 16)

	agent, err := New(
		WithChatModel(model),
		WithInstructions("You are a dental assistant."),
		WithSpeechOutput(speaker),
		WithResponseCallback(func(text string) { responses <- text }),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	runErr := startSession(t, agent)

	agent.Dispatch(events.NewParticipantJoined("alice"))
	agent.Dispatch(events.NewUserText("How long does a cleaning take?"))
	if got := waitForResponse(t, responses); got != "A cleaning takes about an hour." {
		t.Fatalf("unexpected reply: %q", got)
	}

	prompt := model.prompt(0)
	if prompt.Instructions != "You are a dental assistant." {
		t.Fatalf("expected instructions on the prompt, got %q", prompt.Instructions)
	}
	if len(prompt.Messages) != 1 || prompt.Messages[0].Role != llms.RoleUser {
		t.Fatalf("expected a single user message in the prompt, got %v", prompt.Messages)
	}

	agent.Close()
	waitForRun(t, runErr)

	snapshot := agent.Transcript().Snapshot()
	if len(snapshot) != 2 {
		t.Fatalf("expected user and assistant entries, got %d", len(snapshot))
	}
	if snapshot[0].Role != transcript.RoleUser || snapshot[1].Role != transcript.RoleAssistant {
		t.Fatalf("unexpected transcript roles: %s, %s", snapshot[0].Role, snapshot[1].Role)
	}

	speaker.mu.Lock()
	defer speaker.mu.Unlock()
	if len(speaker.spoken) != 1 || speaker.spoken[0] != "A cleaning takes about an hour." {
		t.Fatalf("expected the reply to be spoken, got %v", speaker.spoken)
	}
}

func TestModelFailureIsContainedWithAnApology(t *testing.T) {
	model := &scriptedModel{script: []promptResult{
		{err: errors.New("model unavailable")},
		{response: &llms.Response{Content: "Second turn works."}},
	}}
	responses := make(chan string, 16)

	agent, err := New(
		WithChatModel(model),
		WithResponseCallback(func(text string) { responses <- text }),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	runErr := startSession(t, agent)

	agent.Dispatch(events.NewParticipantJoined("alice"))
	agent.Dispatch(events.NewUserText("hello"))
	if got := waitForResponse(t, responses); got != apologyLine {
		t.Fatalf("expected apology, got %q", got)
	}

	if agent.State() != StateActive {
		t.Fatalf("expected session to stay active after a contained failure, got %s", agent.State())
	}

	agent.Dispatch(events.NewUserText("still there?"))
	if got := waitForResponse(t, responses); got != "Second turn works." {
		t.Fatalf("expected ordinary handling after the apology, got %q", got)
	}

	agent.Close()
	waitForRun(t, runErr)
}

func TestActionIsExecutedAndResultsArePhrased(t *testing.T) {
	model := &scriptedModel{script: []promptResult{
		{response: &llms.Response{ToolCalls: []llms.ToolCall{
			{ID: "call_1", Name: "ping", Arguments: `{}`},
		}}},
		{response: &llms.Response{Content: "All done."}},
	}}
	responses := make(chan string, 16)

	var executed int
	ping := actions.New("ping", "liveness probe",
		func(_ context.Context, _ struct{}) (string, error) {
			executed++
			return "pong", nil
		},
		actions.WithFillers("Working on it."),
	)

	completions := make(chan events.ActionCompleted, 4)
	agent, err := New(
		WithChatModel(model),
		WithActions(ping),
		WithResponseCallback(func(text string) { responses <- text }),
		WithActionCompletedCallback(func(event events.ActionCompleted) { completions <- event }),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	runErr := startSession(t, agent)

	agent.Dispatch(events.NewParticipantJoined("alice"))
	agent.Dispatch(events.NewUserText("run the probe"))

	if got := waitForResponse(t, responses); got != "Working on it." {
		t.Fatalf("expected filler before the action, got %q", got)
	}
	if got := waitForResponse(t, responses); got != "All done." {
		t.Fatalf("expected phrased result, got %q", got)
	}
	if executed != 1 {
		t.Fatalf("expected the action to run exactly once, got %d", executed)
	}

	select {
	case completed := <-completions:
		if completed.Name != "ping" || completed.Result != "pong" || completed.Err != nil {
			t.Fatalf("unexpected completion event: %+v", completed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the completion event")
	}

	followUp := model.prompt(1)
	var sawToolResult bool
	for _, msg := range followUp.Messages {
		if msg.Role == llms.RoleTool && msg.ToolCallID == "call_1" && msg.Content == "pong" {
			sawToolResult = true
		}
	}
	if !sawToolResult {
		t.Fatalf("expected the follow-up prompt to carry the tool result, got %v", followUp.Messages)
	}
	if len(followUp.Tools) != 0 {
		t.Fatal("expected no tools advertised on the phrasing prompt")
	}

	agent.Close()
	waitForRun(t, runErr)
}

func TestFillerIsSkippedWhenAssistantSpokeLast(t *testing.T) {
	model := &scriptedModel{script: []promptResult{
		{response: &llms.Response{ToolCalls: []llms.ToolCall{
			{ID: "call_1", Name: "first", Arguments: `{}`},
			{ID: "call_2", Name: "second", Arguments: `{}`},
		}}},
		{response: &llms.Response{Content: "Both done."}},
	}}
	responses := make(chan string, 16)

	first := actions.New("first", "first probe",
		func(_ context.Context, _ struct{}) (string, error) { return "first result", nil },
		actions.WithFillers("Filler one."),
	)
	second := actions.New("second", "second probe",
		func(_ context.Context, _ struct{}) (string, error) { return "second result", nil },
		actions.WithFillers("Filler two."),
	)

	agent, err := New(
		WithChatModel(model),
		WithActions(first, second),
		WithResponseCallback(func(text string) { responses <- text }),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	runErr := startSession(t, agent)

	agent.Dispatch(events.NewParticipantJoined("alice"))
	agent.Dispatch(events.NewUserText("run both probes"))

	if got := waitForResponse(t, responses); got != "Filler one." {
		t.Fatalf("expected the first action's filler, got %q", got)
	}

	// The first action's result entry holds the floor, so the second
	// action runs without its own filler.
	if got := waitForResponse(t, responses); got != "Both done." {
		t.Fatalf("expected no second filler before the phrased result, got %q", got)
	}

	agent.Close()
	waitForRun(t, runErr)
}

func TestActionTimeoutIsReportedAndSessionSurvives(t *testing.T) {
	model := &scriptedModel{script: []promptResult{
		{response: &llms.Response{ToolCalls: []llms.ToolCall{
			{ID: "call_1", Name: "slow", Arguments: `{}`},
		}}},
		{response: &llms.Response{Content: "That took too long, sorry."}},
	}}
	responses := make(chan string, 16)

	release := make(chan struct{})
	slow := actions.New("slow", "never finishes in time",
		func(ctx context.Context, _ struct{}) (string, error) {
			<-release
			return "late", nil
		},
		actions.WithFillers("Hold on."),
	)

	agent, err := New(
		WithChatModel(model),
		WithActions(slow),
		WithActionTimeout(20*time.Millisecond),
		WithResponseCallback(func(text string) { responses <- text }),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer close(release)
	runErr := startSession(t, agent)

	agent.Dispatch(events.NewParticipantJoined("alice"))
	agent.Dispatch(events.NewUserText("do the slow thing"))

	waitForResponse(t, responses) // filler
	if got := waitForResponse(t, responses); got != "That took too long, sorry." {
		t.Fatalf("expected phrased timeout, got %q", got)
	}
	if agent.State() != StateActive {
		t.Fatalf("expected session to stay active after a timeout, got %s", agent.State())
	}

	followUp := model.prompt(1)
	var sawFailure bool
	for _, msg := range followUp.Messages {
		if msg.Role == llms.RoleTool && strings.Contains(msg.Content, "did not finish within") {
			sawFailure = true
		}
	}
	if !sawFailure {
		t.Fatalf("expected the timeout to be handed back to the model, got %v", followUp.Messages)
	}

	var sawSystemEntry bool
	for _, msg := range agent.Transcript().Snapshot() {
		if msg.Role == transcript.RoleSystem && strings.Contains(msg.Content, "Action slow failed") {
			sawSystemEntry = true
		}
	}
	if !sawSystemEntry {
		t.Fatal("expected a system transcript entry recording the failure")
	}

	agent.Close()
	waitForRun(t, runErr)
}

func TestUnregisteredActionSelectionIsHandedBackToTheModel(t *testing.T) {
	model := &scriptedModel{script: []promptResult{
		{response: &llms.Response{ToolCalls: []llms.ToolCall{
			{ID: "call_1", Name: "no_such_action", Arguments: `{}`},
		}}},
		{response: &llms.Response{Content: "I can't do that."}},
	}}
	responses := make(chan string, 16)

	agent, err := New(
		WithChatModel(model),
		WithActions(actions.New("ping", "probe",
			func(_ context.Context, _ struct{}) (string, error) { return "pong", nil })),
		WithResponseCallback(func(text string) { responses <- text }),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	runErr := startSession(t, agent)

	agent.Dispatch(events.NewParticipantJoined("alice"))
	agent.Dispatch(events.NewUserText("do the impossible"))
	if got := waitForResponse(t, responses); got != "I can't do that." {
		t.Fatalf("unexpected reply: %q", got)
	}

	followUp := model.prompt(1)
	var sawRefusal bool
	for _, msg := range followUp.Messages {
		if msg.Role == llms.RoleTool && strings.Contains(msg.Content, "No action named") {
			sawRefusal = true
		}
	}
	if !sawRefusal {
		t.Fatalf("expected a tool message naming the missing action, got %v", followUp.Messages)
	}

	agent.Close()
	waitForRun(t, runErr)
}

func TestFrameAttachingActionReissuesTheMessageWithTheLatestFrame(t *testing.T) {
	model := &scriptedModel{script: []promptResult{
		{response: &llms.Response{ToolCalls: []llms.ToolCall{
			{ID: "call_1", Name: "analyze_image", Arguments: `{}`},
		}}},
		{response: &llms.Response{Content: "That looks like a healthy molar."}},
	}}
	responses := make(chan string, 16)

	analyze := actions.New("analyze_image", "look at the camera feed",
		func(_ context.Context, _ struct{}) (string, error) { return "", nil },
		actions.WithFrameAttachment(),
		actions.WithFillers("Let me take a look."),
	)

	agent, err := New(
		WithChatModel(model),
		WithActions(analyze),
		WithResponseCallback(func(text string) { responses <- text }),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	runErr := startSession(t, agent)

	frame := []byte{0x01, 0x02, 0x03}
	agent.Dispatch(events.NewParticipantJoined("alice"))
	agent.Dispatch(events.NewFrameReceived("video/vp8", frame))
	agent.Dispatch(events.NewUserText("what do you see?"))

	waitForResponse(t, responses) // filler
	if got := waitForResponse(t, responses); got != "That looks like a healthy molar." {
		t.Fatalf("unexpected analysis reply: %q", got)
	}

	if got := model.promptCount(); got != 2 {
		t.Fatalf("expected exactly two prompts, got %d", got)
	}
	second := model.prompt(1)
	last := second.Messages[len(second.Messages)-1]
	if last.Role != llms.RoleUser || last.Content != "what do you see?" {
		t.Fatalf("expected the triggering message to be re-issued, got %+v", last)
	}
	if last.Image == nil || last.Image.MIME != "video/vp8" || len(last.Image.Data) != len(frame) {
		t.Fatalf("expected the cached frame on the re-issued message, got %+v", last.Image)
	}

	var sawImageMarker bool
	for _, msg := range agent.Transcript().Snapshot() {
		if msg.HasImage {
			sawImageMarker = true
		}
	}
	if !sawImageMarker {
		t.Fatal("expected the transcript to record the image attachment")
	}

	agent.Close()
	waitForRun(t, runErr)
}

func TestFrameAttachingActionWithoutACachedFrameAnnotatesTheMessage(t *testing.T) {
	model := &scriptedModel{script: []promptResult{
		{response: &llms.Response{ToolCalls: []llms.ToolCall{
			{ID: "call_1", Name: "analyze_image", Arguments: `{}`},
		}}},
		{response: &llms.Response{Content: "I can't see anything yet."}},
	}}
	responses := make(chan string, 16)

	analyze := actions.New("analyze_image", "look at the camera feed",
		func(_ context.Context, _ struct{}) (string, error) { return "", nil },
		actions.WithFrameAttachment(),
	)

	agent, err := New(
		WithChatModel(model),
		WithActions(analyze),
		WithResponseCallback(func(text string) { responses <- text }),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	runErr := startSession(t, agent)

	agent.Dispatch(events.NewParticipantJoined("alice"))
	agent.Dispatch(events.NewUserText("what do you see?"))

	waitForResponse(t, responses) // filler
	waitForResponse(t, responses)

	second := model.prompt(1)
	last := second.Messages[len(second.Messages)-1]
	if last.Image != nil {
		t.Fatal("expected no image attachment with an empty frame cache")
	}
	if !strings.Contains(last.Content, "No camera frame is currently available") {
		t.Fatalf("expected the message to note the missing frame, got %q", last.Content)
	}

	agent.Close()
	waitForRun(t, runErr)
}

func TestUserSpeechInterruptsSpeechOutput(t *testing.T) {
	model := &scriptedModel{script: []promptResult{
		{response: &llms.Response{Content: "Still here."}},
	}}
	speaker := &recordingSpeaker{}
	responses := make(chan string, 16)

	agent, err := New(
		WithChatModel(model),
		WithSpeechOutput(speaker),
		WithResponseCallback(func(text string) { responses <- text }),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	runErr := startSession(t, agent)

	agent.Dispatch(events.NewParticipantJoined("alice"))
	agent.Dispatch(events.NewUserSpeechStarted())
	agent.Dispatch(events.NewUserText("wait, one more thing"))
	waitForResponse(t, responses)

	if got := speaker.stopCount(); got != 1 {
		t.Fatalf("expected one interrupt before the next turn, got %d", got)
	}

	agent.Close()
	waitForRun(t, runErr)
}

func TestParticipantLeavingPersistsTheTranscriptAndCloses(t *testing.T) {
	writer := &countingWriter{}
	agent, err := New(
		WithChatModel(&scriptedModel{}),
		WithGreeting("Hello."),
		WithTranscriptWriter(writer),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	runErr := startSession(t, agent)

	agent.Dispatch(events.NewParticipantJoined("alice"))
	agent.Dispatch(events.NewParticipantLeft("alice"))
	if err := waitForRun(t, runErr); err != nil {
		t.Fatalf("expected a clean close, got %v", err)
	}

	writer.mu.Lock()
	defer writer.mu.Unlock()
	if writer.writes != 1 {
		t.Fatalf("expected one transcript write, got %d", writer.writes)
	}
	if writer.lastN == 0 {
		t.Fatal("expected the persisted transcript to carry the greeting")
	}
	if agent.State() != StateClosed {
		t.Fatalf("expected closed state, got %s", agent.State())
	}
}

func TestConnectionLossSurfacesAsTransportError(t *testing.T) {
	agent, err := New(WithChatModel(&scriptedModel{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	runErr := startSession(t, agent)

	agent.Dispatch(events.NewParticipantJoined("alice"))
	agent.Dispatch(events.NewConnectionLost(errors.New("link down")))

	err = waitForRun(t, runErr)
	if !errors.Is(err, ErrConnectionLost) {
		t.Fatalf("expected ErrConnectionLost, got %v", err)
	}
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if agent.State() != StateClosed {
		t.Fatalf("expected closed state after connection loss, got %s", agent.State())
	}
}

func TestConnectFailureClosesTheSessionImmediately(t *testing.T) {
	roomTransport := &fakeTransport{connectErr: errors.New("dial refused")}
	agent, err := New(
		WithChatModel(&scriptedModel{}),
		WithTransport(roomTransport),
		WithRoom("dental-office"),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = agent.Run(context.Background())
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if transportErr.Op != "connect" {
		t.Fatalf("expected connect op, got %q", transportErr.Op)
	}
	if agent.State() != StateClosed {
		t.Fatalf("expected closed state, got %s", agent.State())
	}
}

func TestFrameFloodDuringARunningActionDoesNotStallTheSession(t *testing.T) {
	model := &scriptedModel{script: []promptResult{
		{response: &llms.Response{ToolCalls: []llms.ToolCall{
			{ID: "call_1", Name: "slow", Arguments: `{}`},
		}}},
		{response: &llms.Response{Content: "Done after the flood."}},
	}}
	roomTransport := &fakeTransport{}
	responses := make(chan string, 16)

	proceed := make(chan struct{})
	slow := actions.New("slow", "waits for the flood",
		func(_ context.Context, _ struct{}) (string, error) {
			<-proceed
			return "ok", nil
		},
		actions.WithFillers("Hold on."),
	)

	agent, err := New(
		WithChatModel(model),
		WithTransport(roomTransport),
		WithRoom("dental-office"),
		WithActions(slow),
		WithResponseCallback(func(text string) { responses <- text }),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	runErr := startSession(t, agent)

	for roomTransport.roomCallbacks().OnVideoFrame == nil {
		time.Sleep(time.Millisecond)
	}
	callbacks := roomTransport.roomCallbacks()
	callbacks.OnParticipantJoined("alice")
	agent.Dispatch(events.NewUserText("start the slow thing"))
	waitForResponse(t, responses) // filler, the handler is now blocked

	// Far more frames than the event channel could ever hold arrive while
	// the loop is busy inside the action.
	for i := 0; i < 500; i++ {
		callbacks.OnVideoFrame("video/vp8", []byte{byte(i)})
	}
	close(proceed)

	if got := waitForResponse(t, responses); got != "Done after the flood." {
		t.Fatalf("expected the session to answer after the flood, got %q", got)
	}

	frame, ok := agent.Frames().Get()
	if !ok {
		t.Fatal("expected the cache to hold a frame")
	}
	if len(frame.Data) != 1 || frame.Data[0] != byte(499%256) {
		t.Fatalf("expected the latest flooded frame, got %v", frame.Data)
	}

	agent.Close()
	if err := waitForRun(t, runErr); err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
}

func TestRepliesAreFannedOutToTheTransport(t *testing.T) {
	model := &scriptedModel{script: []promptResult{
		{response: &llms.Response{Content: "Of course."}},
	}}
	roomTransport := &fakeTransport{}
	responses := make(chan string, 16)

	agent, err := New(
		WithChatModel(model),
		WithTransport(roomTransport),
		WithRoom("dental-office"),
		WithGreeting("Welcome."),
		WithResponseCallback(func(text string) { responses <- text }),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	runErr := startSession(t, agent)

	// Drive the session the way the room would.
	for roomTransport.roomCallbacks().OnChatMessage == nil {
		time.Sleep(time.Millisecond)
	}
	callbacks := roomTransport.roomCallbacks()
	callbacks.OnParticipantJoined("alice")
	waitForResponse(t, responses)
	callbacks.OnChatMessage("can you help me?")
	waitForResponse(t, responses)

	sent := roomTransport.sentMessages()
	if len(sent) != 2 || sent[0] != "Welcome." || sent[1] != "Of course." {
		t.Fatalf("expected greeting and reply on the chat channel, got %v", sent)
	}

	// A deliberate room disconnect closes the session cleanly.
	callbacks.OnDisconnected(nil)
	if err := waitForRun(t, runErr); err != nil {
		t.Fatalf("expected a clean close on deliberate disconnect, got %v", err)
	}
	if roomTransport.closed == 0 {
		t.Fatal("expected the transport to be closed on shutdown")
	}
}
