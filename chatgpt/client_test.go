package chatgpt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/natexcvi/go-chatgpt/cache"
	cachemocks "github.com/natexcvi/go-chatgpt/cache/mocks"
	"github.com/natexcvi/go-chatgpt/engines"
	enginemocks "github.com/natexcvi/go-chatgpt/engines/mocks"
	"github.com/natexcvi/go-chatgpt/retry"
	"github.com/natexcvi/go-chatgpt/transcript"
	transcriptmocks "github.com/natexcvi/go-chatgpt/transcript/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPrompt() *engines.ChatPrompt {
	return &engines.ChatPrompt{
		History: []*engines.ChatMessage{
			{Role: engines.ConvRoleSystem, Text: "You are terse."},
			{Role: engines.ConvRoleUser, Text: "What's the weather in Paris?"},
		},
	}
}

func weatherFunction() engines.FunctionSpecs {
	return engines.FunctionSpecs{
		Name:        "get_weather",
		Description: "Get the current weather",
		Parameters: &engines.ParameterSpecs{
			Type: "object",
			Properties: map[string]*engines.ParameterSpecs{
				"city": {Type: "string"},
			},
			Required: []string{"city"},
		},
	}
}

func assistant(text string) *engines.ChatMessage {
	return &engines.ChatMessage{Role: engines.ConvRoleAssistant, Text: text}
}

func response(msgs ...*engines.ChatMessage) *engines.ChatResponse {
	res := &engines.ChatResponse{}
	for i, msg := range msgs {
		res.Choices = append(res.Choices, engines.ResponseChoice{Index: i, Message: msg, FinishReason: "stop"})
	}
	return res
}

func noSleep(policy retry.Policy) retry.Policy {
	policy.Sleep = func(context.Context, time.Duration) error { return nil }
	return policy
}

func TestComplete(t *testing.T) {
	testCases := []struct {
		name       string
		opts       Options
		res        *engines.ChatResponse
		expected   *Output
		expErr     error
		expWrites  int
		expCaching bool
	}{
		{
			name:       "single text choice",
			opts:       Options{},
			res:        response(assistant("Sunny.")),
			expected:   &Output{Choices: []Choice{{Kind: ChoiceText, Text: "Sunny."}}},
			expWrites:  1,
			expCaching: true,
		},
		{
			name: "three choices",
			opts: Options{N: 3},
			res:  response(assistant("a"), assistant("b"), assistant("c")),
			expected: &Output{
				Choices: []Choice{
					{Kind: ChoiceText, Text: "a"},
					{Kind: ChoiceText, Text: "b"},
					{Kind: ChoiceText, Text: "c"},
				},
				Multi: true,
			},
			expWrites:  3,
			expCaching: true,
		},
		{
			name: "function call",
			opts: Options{Functions: []engines.FunctionSpecs{weatherFunction()}},
			res: response(&engines.ChatMessage{
				Role:         engines.ConvRoleAssistant,
				FunctionCall: &engines.FunctionCall{Name: "get_weather", Args: `{"city":"Paris"}`},
			}),
			expected: &Output{Choices: []Choice{{
				Kind:  ChoiceFunctionCall,
				Calls: []FunctionInvocation{{Name: "get_weather", Args: map[string]any{"city": "Paris"}}},
			}}},
			expWrites:  1,
			expCaching: true,
		},
		{
			name: "tool calls",
			opts: Options{Tools: []engines.FunctionSpecs{weatherFunction()}},
			res: response(&engines.ChatMessage{
				Role: engines.ConvRoleAssistant,
				ToolCalls: []engines.ToolCall{
					{ID: "call_1", Type: engines.ToolTypeFunction, Function: engines.FunctionCall{Name: "get_weather", Args: `{"city":"Paris"}`}},
					{ID: "call_2", Type: engines.ToolTypeFunction, Function: engines.FunctionCall{Name: "get_weather", Args: `{"city":"Rome"}`}},
				},
			}),
			expected: &Output{Choices: []Choice{{
				Kind: ChoiceFunctionCall,
				Calls: []FunctionInvocation{
					{ID: "call_1", Name: "get_weather", Args: map[string]any{"city": "Paris"}},
					{ID: "call_2", Name: "get_weather", Args: map[string]any{"city": "Rome"}},
				},
			}}},
			expWrites:  1,
			expCaching: true,
		},
		{
			name: "call without function calling enabled",
			opts: Options{},
			res: response(&engines.ChatMessage{
				Role:         engines.ConvRoleAssistant,
				FunctionCall: &engines.FunctionCall{Name: "get_weather", Args: `{"city":"Paris"}`},
			}),
			expected: &Output{Choices: []Choice{{
				Kind: ChoiceRaw,
				Message: &engines.ChatMessage{
					Role:         engines.ConvRoleAssistant,
					FunctionCall: &engines.FunctionCall{Name: "get_weather", Args: `{"city":"Paris"}`},
				},
			}}},
			expWrites:  1,
			expCaching: true,
		},
		{
			name: "malformed function arguments",
			opts: Options{Functions: []engines.FunctionSpecs{weatherFunction()}},
			res: response(&engines.ChatMessage{
				Role:         engines.ConvRoleAssistant,
				FunctionCall: &engines.FunctionCall{Name: "get_weather", Args: `{"city": Paris`},
			}),
			expErr: ErrMalformedFunctionArguments,
		},
		{
			name: "arguments that are not an object",
			opts: Options{Functions: []engines.FunctionSpecs{weatherFunction()}},
			res: response(&engines.ChatMessage{
				Role:         engines.ConvRoleAssistant,
				FunctionCall: &engines.FunctionCall{Name: "get_weather", Args: `null`},
			}),
			expErr: ErrMalformedFunctionArguments,
		},
		{
			name:   "no choices",
			opts:   Options{},
			res:    &engines.ChatResponse{},
			expErr: ErrMalformedResponse,
		},
		{
			name:   "choice without message",
			opts:   Options{},
			res:    &engines.ChatResponse{Choices: []engines.ResponseChoice{{Index: 0}}},
			expErr: ErrMalformedResponse,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			engine := enginemocks.NewMockEngine(ctrl)
			store := cachemocks.NewMockStore(ctrl)
			sink := transcriptmocks.NewMockSink(ctrl)
			prompt := testPrompt()

			engine.EXPECT().Chat(gomock.Any(), gomock.Any()).DoAndReturn(
				func(_ context.Context, req *engines.ChatRequest) (*engines.ChatResponse, error) {
					assert.Equal(t, DefaultModel, req.Model)
					assert.Equal(t, prompt, req.Prompt)
					return tc.res, nil
				},
			)
			sink.EXPECT().Write(gomock.Any(), gomock.Any()).Return(nil).Times(tc.expWrites)
			if tc.expCaching {
				store.EXPECT().Set(cache.Fingerprint(prompt), gomock.Any()).Return(nil)
			}

			client := NewClient(engine, store, transcript.NewLogger(sink))
			output, err := client.Complete(context.Background(), prompt, tc.opts)
			if tc.expErr != nil {
				require.ErrorIs(t, err, tc.expErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, output)
			assert.Equal(t, tc.expected.Multi, output.IsMulti())
		})
	}
}

func TestCompleteSendsRequestOptions(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := enginemocks.NewMockEngine(ctrl)
	engine.EXPECT().Chat(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req *engines.ChatRequest) (*engines.ChatResponse, error) {
			assert.Equal(t, "gpt-3.5-turbo", req.Model)
			assert.Equal(t, float32(0.7), req.Temperature)
			assert.Equal(t, 2, req.N)
			assert.Len(t, req.Functions, 1)
			return response(assistant("a"), assistant("b")), nil
		},
	)
	client := NewClient(engine, cache.NewMemoryStore(), transcript.NewLogger(transcript.NewDirSink(t.TempDir())))
	output, err := client.Complete(context.Background(), testPrompt(), Options{
		Model:       "gpt-3.5-turbo",
		Temperature: 0.7,
		N:           2,
		Functions:   []engines.FunctionSpecs{weatherFunction()},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, output.Texts())
}

func TestCompleteCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := enginemocks.NewMockEngine(ctrl)
	engine.EXPECT().Chat(gomock.Any(), gomock.Any()).Return(response(assistant("Sunny.")), nil).Times(1)
	store := cache.NewMemoryStore()
	client := NewClient(engine, store, transcript.NewLogger(transcript.NewDirSink(t.TempDir())))

	// results are cached even when the cache is not read
	first, err := client.Complete(context.Background(), testPrompt(), Options{})
	require.NoError(t, err)
	require.Equal(t, []string{cache.Fingerprint(testPrompt())}, store.Keys())

	second, err := client.Complete(context.Background(), testPrompt(), Options{UseCache: true})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCompleteCacheMissCallsRemote(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := enginemocks.NewMockEngine(ctrl)
	engine.EXPECT().Chat(gomock.Any(), gomock.Any()).Return(response(assistant("Sunny.")), nil).Times(2)
	client := NewClient(engine, cache.NewMemoryStore(), transcript.NewLogger(transcript.NewDirSink(t.TempDir())))

	_, err := client.Complete(context.Background(), testPrompt(), Options{UseCache: true})
	require.NoError(t, err)
	// a different conversation has a different key
	_, err = client.Complete(context.Background(), testPrompt().With(assistant("Sunny."), &engines.ChatMessage{
		Role: engines.ConvRoleUser,
		Text: "And in Rome?",
	}), Options{UseCache: true})
	require.NoError(t, err)
}

func TestCompleteAnswersFromStreamedEntry(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := enginemocks.NewMockEngine(ctrl)
	store := cache.NewMemoryStore()
	data, err := json.Marshal(&cacheEntry{Texts: []string{"Hello", "Hi"}})
	require.NoError(t, err)
	require.NoError(t, store.Set(cache.Fingerprint(testPrompt()), data))
	client := NewClient(engine, store, transcript.NewLogger(transcriptmocks.NewMockSink(ctrl)))

	output, err := client.Complete(context.Background(), testPrompt(), Options{UseCache: true, N: 2})
	require.NoError(t, err)
	assert.True(t, output.IsMulti())
	assert.Equal(t, []string{"Hello", "Hi"}, output.Texts())

	output, err = client.Complete(context.Background(), testPrompt(), Options{UseCache: true})
	require.NoError(t, err)
	assert.False(t, output.IsMulti())
	assert.Equal(t, Choice{Kind: ChoiceText, Text: "Hello"}, output.Single())
}

func TestCompleteCacheErrors(t *testing.T) {
	storeFailure := errors.New("store unavailable")
	t.Run("read", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		store := cachemocks.NewMockStore(ctrl)
		store.EXPECT().Contains(gomock.Any()).Return(false, storeFailure)
		client := NewClient(enginemocks.NewMockEngine(ctrl), store, transcript.NewLogger(transcriptmocks.NewMockSink(ctrl)))
		_, err := client.Complete(context.Background(), testPrompt(), Options{UseCache: true})
		assert.ErrorIs(t, err, ErrCacheRead)
		assert.ErrorIs(t, err, storeFailure)
	})
	t.Run("write", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		engine := enginemocks.NewMockEngine(ctrl)
		engine.EXPECT().Chat(gomock.Any(), gomock.Any()).Return(response(assistant("Sunny.")), nil)
		store := cachemocks.NewMockStore(ctrl)
		store.EXPECT().Set(gomock.Any(), gomock.Any()).Return(storeFailure)
		sink := transcriptmocks.NewMockSink(ctrl)
		sink.EXPECT().Write(gomock.Any(), gomock.Any()).Return(nil)
		client := NewClient(engine, store, transcript.NewLogger(sink))
		_, err := client.Complete(context.Background(), testPrompt(), Options{})
		assert.ErrorIs(t, err, ErrCacheWrite)
		assert.ErrorIs(t, err, storeFailure)
	})
	t.Run("undecodable entry is a miss", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		engine := enginemocks.NewMockEngine(ctrl)
		engine.EXPECT().Chat(gomock.Any(), gomock.Any()).Return(response(assistant("Sunny.")), nil)
		store := cache.NewMemoryStore()
		require.NoError(t, store.Set(cache.Fingerprint(testPrompt()), []byte("not json")))
		client := NewClient(engine, store, transcript.NewLogger(transcript.NewDirSink(t.TempDir())))
		output, err := client.Complete(context.Background(), testPrompt(), Options{UseCache: true})
		require.NoError(t, err)
		assert.Equal(t, "Sunny.", output.Single().Text)
	})
}

func TestCompleteTranscriptFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := enginemocks.NewMockEngine(ctrl)
	engine.EXPECT().Chat(gomock.Any(), gomock.Any()).Return(response(assistant("Sunny.")), nil)
	sink := transcriptmocks.NewMockSink(ctrl)
	sink.EXPECT().Write(gomock.Any(), gomock.Any()).Return(errors.New("read-only file system"))
	// no Set expectation: nothing is cached when logging fails
	client := NewClient(engine, cachemocks.NewMockStore(ctrl), transcript.NewLogger(sink))
	_, err := client.Complete(context.Background(), testPrompt(), Options{})
	assert.ErrorIs(t, err, transcript.ErrLogWrite)
}

func TestCompleteRetries(t *testing.T) {
	remoteErr := &engines.RemoteServiceError{StatusCode: 503, Err: errors.New("overloaded")}
	testCases := []struct {
		name      string
		failures  int
		attempts  int
		expWaits  []time.Duration
		expErr    error
		expOutput string
	}{
		{
			name:      "recovers",
			failures:  2,
			attempts:  5,
			expWaits:  []time.Duration{time.Second, 2 * time.Second},
			expOutput: "Sunny.",
		},
		{
			name:     "exhausted",
			failures: 3,
			attempts: 3,
			expWaits: []time.Duration{time.Second, 2 * time.Second},
			expErr:   retry.ErrMaxRetriesExceeded,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			engine := enginemocks.NewMockEngine(ctrl)
			calls := []*gomock.Call{
				engine.EXPECT().Chat(gomock.Any(), gomock.Any()).Return(nil, remoteErr).Times(tc.failures),
			}
			if tc.expErr == nil {
				calls = append(calls, engine.EXPECT().Chat(gomock.Any(), gomock.Any()).Return(response(assistant(tc.expOutput)), nil))
			}
			gomock.InOrder(calls...)

			var waits []time.Duration
			policy := retry.DefaultPolicy()
			policy.MaxAttempts = tc.attempts
			policy.Sleep = func(_ context.Context, d time.Duration) error {
				waits = append(waits, d)
				return nil
			}
			client := NewClient(engine, cache.NewMemoryStore(), transcript.NewLogger(transcript.NewDirSink(t.TempDir()))).
				WithRetryPolicy(policy)

			output, err := client.Complete(context.Background(), testPrompt(), Options{})
			assert.Equal(t, tc.expWaits, waits)
			if tc.expErr != nil {
				require.ErrorIs(t, err, tc.expErr)
				assert.ErrorIs(t, err, remoteErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expOutput, output.Single().Text)
		})
	}
}

func TestCompleteDoesNotRetryLocalErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := enginemocks.NewMockEngine(ctrl)
	engine.EXPECT().Chat(gomock.Any(), gomock.Any()).Return(nil, context.Canceled).Times(1)
	client := NewClient(engine, cache.NewMemoryStore(), transcript.NewLogger(transcriptmocks.NewMockSink(ctrl))).
		WithRetryPolicy(noSleep(retry.DefaultPolicy()))
	_, err := client.Complete(context.Background(), testPrompt(), Options{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, retry.ErrMaxRetriesExceeded)
}

func TestCompleteAsync(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := enginemocks.NewMockEngine(ctrl)
	gomock.InOrder(
		engine.EXPECT().Chat(gomock.Any(), gomock.Any()).Return(nil, &engines.RemoteServiceError{StatusCode: 429, Err: errors.New("rate limited")}),
		engine.EXPECT().Chat(gomock.Any(), gomock.Any()).Return(response(assistant("a"), assistant("b")), nil),
	)
	client := NewClient(engine, cache.NewMemoryStore(), transcript.NewLogger(transcript.NewDirSink(t.TempDir()))).
		WithRetryPolicy(noSleep(retry.DefaultPolicy()))

	result := <-client.CompleteAsync(context.Background(), testPrompt(), Options{N: 2})
	output, err := result.Get()
	require.NoError(t, err)
	assert.True(t, output.IsMulti())
	assert.Equal(t, []string{"a", "b"}, output.Texts())
}

func TestCompleteAsyncCancelledDuringBackoff(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := enginemocks.NewMockEngine(ctrl)
	ctx, cancel := context.WithCancel(context.Background())
	engine.EXPECT().Chat(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, *engines.ChatRequest) (*engines.ChatResponse, error) {
			cancel()
			return nil, &engines.RemoteServiceError{StatusCode: 500, Err: errors.New("boom")}
		},
	).Times(1)
	policy := retry.DefaultPolicy()
	policy.InitialBackoff = time.Hour
	client := NewClient(engine, cache.NewMemoryStore(), transcript.NewLogger(transcriptmocks.NewMockSink(ctrl))).
		WithRetryPolicy(policy)

	select {
	case result := <-client.CompleteAsync(ctx, testPrompt(), Options{}):
		assert.ErrorIs(t, result.Error(), context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("backoff was not abandoned")
	}
}

func TestCompleteCacheWithFewerChoicesIsMiss(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := enginemocks.NewMockEngine(ctrl)
	gomock.InOrder(
		engine.EXPECT().Chat(gomock.Any(), gomock.Any()).Return(response(assistant("a")), nil),
		engine.EXPECT().Chat(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req *engines.ChatRequest) (*engines.ChatResponse, error) {
				assert.Equal(t, 3, req.N)
				return response(assistant("x"), assistant("y"), assistant("z")), nil
			},
		),
	)
	client := NewClient(engine, cache.NewMemoryStore(), transcript.NewLogger(transcript.NewDirSink(t.TempDir())))

	_, err := client.Complete(context.Background(), testPrompt(), Options{})
	require.NoError(t, err)

	output, err := client.Complete(context.Background(), testPrompt(), Options{UseCache: true, N: 3})
	require.NoError(t, err)
	assert.True(t, output.IsMulti())
	assert.Equal(t, []string{"x", "y", "z"}, output.Texts())

	// the wider entry now answers a narrower request
	output, err = client.Complete(context.Background(), testPrompt(), Options{UseCache: true, N: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, output.Texts())
}
