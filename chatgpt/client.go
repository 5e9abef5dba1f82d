// Package chatgpt issues chat completion requests with caching, retries
// and transcript logging.
//
// A request goes through the same steps whether it is blocking,
// asynchronous or streamed: the conversation is fingerprinted, the cache
// is consulted when asked to, the remote call runs under the retry
// policy, each returned choice is logged to a transcript and the result
// is cached under the fingerprint.
package chatgpt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/natexcvi/go-chatgpt/cache"
	"github.com/natexcvi/go-chatgpt/engines"
	"github.com/natexcvi/go-chatgpt/retry"
	"github.com/natexcvi/go-chatgpt/transcript"
	"github.com/samber/mo"
	log "github.com/sirupsen/logrus"
)

const DefaultModel = "gpt-4"

var (
	ErrMalformedFunctionArguments = errors.New("malformed function call arguments")
	ErrMalformedResponse          = errors.New("malformed completion response")
	ErrCacheWrite                 = errors.New("failed to write cache")
	ErrCacheRead                  = errors.New("failed to read cache")
)

type Options struct {
	// Model defaults to DefaultModel.
	Model       string
	Temperature float32
	// UseCache answers from the cache when the conversation was seen
	// before. Results are cached regardless.
	UseCache bool
	// N is the number of choices to request. Defaults to 1.
	N         int
	Functions []engines.FunctionSpecs
	Tools     []engines.FunctionSpecs
}

func (opts Options) withDefaults() Options {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.N < 1 {
		opts.N = 1
	}
	return opts
}

func (opts Options) functionCalling() bool {
	return len(opts.Functions) > 0 || len(opts.Tools) > 0
}

func (opts Options) multi() bool {
	return opts.N > 1
}

func (opts Options) request(prompt *engines.ChatPrompt) *engines.ChatRequest {
	return &engines.ChatRequest{
		Prompt:      prompt,
		Model:       opts.Model,
		Temperature: opts.Temperature,
		N:           opts.N,
		Functions:   opts.Functions,
		Tools:       opts.Tools,
	}
}

type Client struct {
	engine engines.Engine
	store  cache.Store
	logger *transcript.Logger
	policy retry.Policy
}

func NewClient(engine engines.Engine, store cache.Store, logger *transcript.Logger) *Client {
	return &Client{
		engine: engine,
		store:  store,
		logger: logger,
		policy: retry.DefaultPolicy(),
	}
}

func (c *Client) WithRetryPolicy(policy retry.Policy) *Client {
	c.policy = policy
	return c
}

type callFunc[T any] func(op func(ctx context.Context) (T, error)) (T, error)

// Complete requests a completion and blocks until it is normalized,
// logged and cached. Backoff between retries blocks the caller.
func (c *Client) Complete(ctx context.Context, prompt *engines.ChatPrompt, opts Options) (*Output, error) {
	return c.complete(prompt, opts, func(op func(ctx context.Context) (*engines.ChatResponse, error)) (*engines.ChatResponse, error) {
		return retry.Do(ctx, c.policy, op)
	})
}

// CompleteAsync is Complete on a separate goroutine. Backoff waits are
// abandoned as soon as ctx is done.
func (c *Client) CompleteAsync(ctx context.Context, prompt *engines.ChatPrompt, opts Options) <-chan mo.Result[*Output] {
	result := make(chan mo.Result[*Output], 1)
	go func() {
		defer close(result)
		output, err := c.complete(prompt, opts, func(op func(ctx context.Context) (*engines.ChatResponse, error)) (*engines.ChatResponse, error) {
			return (<-retry.DoAsync(ctx, c.policy, op)).Get()
		})
		result <- mo.TupleToResult(output, err)
	}()
	return result
}

func (c *Client) complete(prompt *engines.ChatPrompt, opts Options, call callFunc[*engines.ChatResponse]) (*Output, error) {
	opts = opts.withDefaults()
	key := cache.Fingerprint(prompt)
	if opts.UseCache {
		entry, err := c.cached(key)
		if err != nil {
			return nil, err
		}
		if output := entry.output(opts.N); output != nil {
			log.Debugf("cache hit for %s", key)
			return output, nil
		}
	}
	req := opts.request(prompt)
	res, err := call(func(ctx context.Context) (*engines.ChatResponse, error) {
		return c.engine.Chat(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("completion failed: %w", err)
	}
	return c.normalize(prompt, key, res, opts)
}

// CompleteStream opens a delta stream. Only opening the stream is
// retried; a failure after the first chunk surfaces through the stream.
func (c *Client) CompleteStream(ctx context.Context, prompt *engines.ChatPrompt, opts Options) (*DeltaStream, error) {
	return c.completeStream(prompt, opts, func(op func(ctx context.Context) (engines.ChunkStream, error)) (engines.ChunkStream, error) {
		return retry.Do(ctx, c.policy, op)
	})
}

func (c *Client) CompleteStreamAsync(ctx context.Context, prompt *engines.ChatPrompt, opts Options) <-chan mo.Result[*DeltaStream] {
	result := make(chan mo.Result[*DeltaStream], 1)
	go func() {
		defer close(result)
		stream, err := c.completeStream(prompt, opts, func(op func(ctx context.Context) (engines.ChunkStream, error)) (engines.ChunkStream, error) {
			return (<-retry.DoAsync(ctx, c.policy, op)).Get()
		})
		result <- mo.TupleToResult(stream, err)
	}()
	return result
}

func (c *Client) completeStream(prompt *engines.ChatPrompt, opts Options, call callFunc[engines.ChunkStream]) (*DeltaStream, error) {
	opts = opts.withDefaults()
	key := cache.Fingerprint(prompt)
	if opts.UseCache {
		entry, err := c.cached(key)
		if err != nil {
			return nil, err
		}
		if texts := entry.texts(opts.N); texts != nil {
			log.Debugf("cache hit for %s, replaying %d choices", key, len(texts))
			return newDeltaStream(&replayStream{texts: texts}, len(texts), opts.multi(), nil), nil
		}
	}
	req := opts.request(prompt)
	chunks, err := call(func(ctx context.Context) (engines.ChunkStream, error) {
		return c.engine.ChatStream(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open stream: %w", err)
	}
	return newDeltaStream(chunks, opts.N, opts.multi(), func(texts []string) error {
		return c.finishStream(prompt, key, texts)
	}), nil
}

// finishStream logs one transcript per choice and caches the final texts.
func (c *Client) finishStream(prompt *engines.ChatPrompt, key string, texts []string) error {
	for _, text := range texts {
		msg := &engines.ChatMessage{Role: engines.ConvRoleAssistant, Text: text}
		if err := c.logger.Log(prompt, msg); err != nil {
			return err
		}
	}
	return c.storeEntry(key, &cacheEntry{Texts: texts})
}

// cacheEntry holds either a normalized completion or the texts of a
// finished stream.
type cacheEntry struct {
	Output *Output  `json:"output,omitempty"`
	Texts  []string `json:"texts,omitempty"`
}

// output answers a completion request for n choices. An entry holding
// fewer choices is a miss.
func (e *cacheEntry) output(n int) *Output {
	multi := n > 1
	switch {
	case e == nil:
		return nil
	case e.Output != nil:
		if len(e.Output.Choices) < n {
			return nil
		}
		output := *e.Output
		output.Multi = multi
		output.Choices = output.Choices[:n]
		return &output
	case len(e.Texts) >= n:
		return textOutput(e.Texts[:n], multi)
	}
	return nil
}

// texts answers a stream request for n choices. Only text can be
// replayed, so a completion holding calls is a miss.
func (e *cacheEntry) texts(n int) []string {
	switch {
	case e == nil:
		return nil
	case e.Output != nil:
		if len(e.Output.Choices) < n {
			return nil
		}
		choices := e.Output.Choices[:n]
		for _, choice := range choices {
			if choice.Kind != ChoiceText {
				return nil
			}
		}
		return (&Output{Choices: choices}).Texts()
	case len(e.Texts) >= n:
		return e.Texts[:n]
	}
	return nil
}

// cached returns nil on a miss. An entry that no longer decodes counts as
// a miss and is overwritten by the next result.
func (c *Client) cached(key string) (*cacheEntry, error) {
	found, err := c.store.Contains(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCacheRead, err)
	}
	if !found {
		return nil, nil
	}
	data, err := c.store.Get(key)
	if errors.Is(err, cache.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCacheRead, err)
	}
	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		log.Warnf("ignoring undecodable cache entry %s: %s", key, err)
		return nil, nil
	}
	return &entry, nil
}

func (c *Client) storeEntry(key string, entry *cacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCacheWrite, err)
	}
	if err := c.store.Set(key, data); err != nil {
		return fmt.Errorf("%w: %w", ErrCacheWrite, err)
	}
	return nil
}
