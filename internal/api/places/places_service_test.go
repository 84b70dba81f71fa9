package places

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	generativeAI "github.com/FACorreiaa/go-trip-planner-ai/internal/api/generative_ai"
	"github.com/FACorreiaa/go-trip-planner-ai/internal/types"
)

type MockCompletionService struct {
	mock.Mock
}

func (m *MockCompletionService) Complete(ctx context.Context, messages []types.ChatMessage, opts generativeAI.CompletionOptions) (string, error) {
	args := m.Called(ctx, messages[len(messages)-1].Content)
	return args.String(0), args.Error(1)
}

func (m *MockCompletionService) Stream(ctx context.Context, messages []types.ChatMessage, opts generativeAI.CompletionOptions, onChunk func(string)) error {
	args := m.Called(ctx, messages)
	return args.Error(0)
}

func (m *MockCompletionService) Provider() string { return "mock" }

func setupPlacesTest() (*ServiceImpl, *MockCompletionService) {
	llm := new(MockCompletionService)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return NewService(llm, logger), llm
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves and caches", func(t *testing.T) {
		svc, llm := setupPlacesTest()
		llm.On("Complete", mock.Anything, "paris").
			Return(`{"name":"Paris","mainText":"Paris","secondaryText":"Île-de-France, France","country":"France"}`, nil).Once()

		p, err := svc.Resolve(ctx, "paris")
		require.NoError(t, err)
		assert.Equal(t, "Paris", p.Name)
		assert.Equal(t, "France", p.Country)

		p2, err := svc.Resolve(ctx, "  PARIS ")
		require.NoError(t, err)
		assert.Equal(t, "Paris", p2.Name)
		llm.AssertNumberOfCalls(t, "Complete", 1)
	})

	t.Run("fills mainText from name", func(t *testing.T) {
		svc, llm := setupPlacesTest()
		llm.On("Complete", mock.Anything, "goa").Return(`{"name":"Goa","country":"India"}`, nil)

		p, err := svc.Resolve(ctx, "goa")
		require.NoError(t, err)
		assert.Equal(t, "Goa", p.MainText)
	})

	t.Run("unparseable reply", func(t *testing.T) {
		svc, llm := setupPlacesTest()
		llm.On("Complete", mock.Anything, "xyz").Return("I am not sure", nil)

		_, err := svc.Resolve(ctx, "xyz")
		assert.Error(t, err)
	})

	t.Run("empty query", func(t *testing.T) {
		svc, _ := setupPlacesTest()
		_, err := svc.Resolve(ctx, "  ")
		assert.Error(t, err)
	})
}

func TestResolveAll(t *testing.T) {
	svc, llm := setupPlacesTest()
	llm.On("Complete", mock.Anything, "rome").Return(`{"name":"Rome","country":"Italy"}`, nil)
	llm.On("Complete", mock.Anything, "atlantis").Return("", errors.New("upstream down"))
	llm.On("Complete", mock.Anything, "kyoto").Return(`{"name":"Kyoto","country":"Japan"}`, nil)

	got := svc.ResolveAll(context.Background(), []string{"rome", "atlantis", "kyoto"})
	require.Len(t, got, 3)
	assert.Equal(t, "Rome", got[0].Name)
	assert.Equal(t, "atlantis", got[1].Name)
	assert.Equal(t, "Kyoto", got[2].Name)
}
