package chat

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat-backend/internal/vectorindex"
	"docchat-backend/internal/vectorindex/memory"
	"docchat-backend/models"
)

type fakeProvider struct {
	mu      sync.Mutex
	answers []string
	err     error
	delay   time.Duration
	calls   int32
	active  int32
	maxSeen int32
}

func (f *fakeProvider) Generate(ctx context.Context, systemPrompt string, history []models.ChatTurn, userTurn string) (string, error) {
	n := atomic.AddInt32(&f.active, 1)
	defer atomic.AddInt32(&f.active, -1)
	for {
		seen := atomic.LoadInt32(&f.maxSeen)
		if n <= seen || atomic.CompareAndSwapInt32(&f.maxSeen, seen, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return "", f.err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.answers) == 0 {
		return "generated answer", nil
	}
	answer := f.answers[0]
	f.answers = f.answers[1:]
	return answer, nil
}

type fakeQueryEmbedder struct{}

func (fakeQueryEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

type memArchive struct {
	mu   sync.Mutex
	recs []models.MessageRecord
}

func (a *memArchive) Archive(ctx context.Context, rec models.MessageRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recs = append(a.recs, rec)
	return nil
}

func seedIndex(t *testing.T, index vectorindex.Index, texts ...string) {
	t.Helper()
	points := make([]vectorindex.Point, len(texts))
	for i, text := range texts {
		points[i] = vectorindex.Point{
			SourceID:   "doc-1",
			ChunkIndex: i,
			Vector:     []float32{1, 0, 0},
			Text:       text,
		}
	}
	require.NoError(t, index.Upsert(context.Background(), points))
}

func newTestOrchestrator(provider GenerationProvider, index vectorindex.Index, archive TranscriptArchiver) *Orchestrator {
	return NewOrchestrator(
		NewSessionStore(),
		NewReformulator(provider, nil),
		NewRetriever(fakeQueryEmbedder{}, index, 10),
		NewGenerator(provider),
		archive,
		nil,
		nil,
	)
}

func TestRespondGroundedAnswer(t *testing.T) {
	index := memory.NewStorage()
	seedIndex(t, index, "Apples are red.", "Bananas are yellow.")
	provider := &fakeProvider{answers: []string{"Apples are red."}}
	archive := &memArchive{}
	o := newTestOrchestrator(provider, index, archive)

	answer, err := o.Respond(context.Background(), "s1", "What color are apples?")
	require.NoError(t, err)
	assert.Equal(t, "Apples are red.", answer.Text)
	assert.Len(t, answer.Sources, 2)

	history := o.History("s1")
	require.Len(t, history, 2)
	assert.Equal(t, "What color are apples?", history[0].Content)
	assert.Equal(t, "Apples are red.", history[1].Content)

	require.Len(t, archive.recs, 1)
	assert.Equal(t, "s1", archive.recs[0].SessionID)
}

func TestRespondRefusesOnEmptyIndex(t *testing.T) {
	provider := &fakeProvider{}
	o := newTestOrchestrator(provider, memory.NewStorage(), nil)

	answer, err := o.Respond(context.Background(), "s1", "What color are apples?")
	require.NoError(t, err)
	assert.Equal(t, RefusalMessage, answer.Text)
	assert.Empty(t, answer.Sources)
	assert.Equal(t, int32(0), atomic.LoadInt32(&provider.calls), "an ungroundable question must not reach the provider")

	// The refusal is still a completed turn and lands in history.
	assert.Len(t, o.History("s1"), 2)
}

func TestRespondFailureLeavesHistoryUntouched(t *testing.T) {
	index := memory.NewStorage()
	seedIndex(t, index, "Apples are red.")
	provider := &fakeProvider{err: errors.New("provider down")}
	archive := &memArchive{}
	o := newTestOrchestrator(provider, index, archive)

	_, err := o.Respond(context.Background(), "s1", "What color are apples?")
	require.Error(t, err)
	assert.Empty(t, o.History("s1"), "a failed turn must not append history")
	assert.Empty(t, archive.recs)
}

func TestRespondSerializesSameSession(t *testing.T) {
	index := memory.NewStorage()
	seedIndex(t, index, "Apples are red.")
	provider := &fakeProvider{delay: 20 * time.Millisecond}
	o := newTestOrchestrator(provider, index, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := o.Respond(context.Background(), "same", "question")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&provider.maxSeen), "turns for one session must not overlap")
	history := o.History("same")
	assert.Len(t, history, 10)
	for i, turn := range history {
		if i%2 == 0 {
			assert.Equal(t, models.RoleUser, turn.Role)
		} else {
			assert.Equal(t, models.RoleAssistant, turn.Role)
		}
	}
}

func TestReformulateFirstTurnVerbatim(t *testing.T) {
	provider := &fakeProvider{}
	r := NewReformulator(provider, nil)

	got := r.Reformulate(context.Background(), nil, "What color are apples?")
	assert.Equal(t, "What color are apples?", got)
	assert.Equal(t, int32(0), atomic.LoadInt32(&provider.calls))
}

func TestReformulateFallsBackOnProviderError(t *testing.T) {
	provider := &fakeProvider{err: errors.New("provider down")}
	r := NewReformulator(provider, nil)
	history := []models.ChatTurn{
		{Role: models.RoleUser, Content: "Tell me about apples."},
		{Role: models.RoleAssistant, Content: "Apples are red."},
	}

	got := r.Reformulate(context.Background(), history, "what about their taste?")
	assert.Equal(t, "what about their taste?", got, "reformulation failure must never fail the turn")
}

func TestReformulateRewritesWithHistory(t *testing.T) {
	provider := &fakeProvider{answers: []string{"What do apples taste like?"}}
	r := NewReformulator(provider, nil)
	history := []models.ChatTurn{
		{Role: models.RoleUser, Content: "Tell me about apples."},
		{Role: models.RoleAssistant, Content: "Apples are red."},
	}

	got := r.Reformulate(context.Background(), history, "what about their taste?")
	assert.Equal(t, "What do apples taste like?", got)
}

func TestGeneratorRefusalShortCircuit(t *testing.T) {
	provider := &fakeProvider{}
	g := NewGenerator(provider)

	answer, err := g.Generate(context.Background(), nil, "anything", nil)
	require.NoError(t, err)
	assert.Equal(t, RefusalMessage, answer)
	assert.Equal(t, int32(0), atomic.LoadInt32(&provider.calls))
}
