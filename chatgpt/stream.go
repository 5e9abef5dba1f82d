package chatgpt

import (
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/hashicorp/go-multierror"
	"github.com/natexcvi/go-chatgpt/engines"
)

// Delta is a non-empty text increment for one choice.
type Delta struct {
	Text  string
	Index int
}

// DeltaStream yields the text deltas of a streamed completion in arrival
// order. Once the remote stream is exhausted the accumulated text of every
// choice is logged and cached; closing the stream early skips both.
//
//	for stream.Next() {
//		fmt.Print(stream.Current().Text)
//	}
//	if err := stream.Err(); err != nil { ... }
type DeltaStream struct {
	chunks  engines.ChunkStream
	texts   []string
	multi   bool
	finish  func(texts []string) error
	chunk   *engines.ChatChunk
	pos     int
	current Delta
	err     error
	done    bool
}

func newDeltaStream(chunks engines.ChunkStream, n int, multi bool, finish func(texts []string) error) *DeltaStream {
	return &DeltaStream{
		chunks: chunks,
		texts:  make([]string, n),
		multi:  multi,
		finish: finish,
	}
}

// Next advances to the next delta. It returns false when the stream is
// exhausted, failed or was closed.
func (s *DeltaStream) Next() bool {
	if s.done {
		return false
	}
	for {
		if s.chunk != nil {
			for s.pos < len(s.chunk.Choices) {
				choice := s.chunk.Choices[s.pos]
				s.pos++
				if choice.Delta == nil || choice.Delta.Text == "" {
					continue
				}
				if choice.Index < 0 || choice.Index >= len(s.texts) {
					s.fail(fmt.Errorf("%w: choice index %d out of range for %d choices", ErrMalformedResponse, choice.Index, len(s.texts)))
					return false
				}
				s.texts[choice.Index] += choice.Delta.Text
				s.current = Delta{Text: choice.Delta.Text, Index: choice.Index}
				return true
			}
			s.chunk = nil
		}
		chunk, err := s.chunks.Recv()
		if errors.Is(err, io.EOF) {
			s.complete()
			return false
		}
		if err != nil {
			s.fail(err)
			return false
		}
		s.chunk, s.pos = chunk, 0
	}
}

func (s *DeltaStream) Current() Delta {
	return s.current
}

// Err returns the error that ended the stream, if any.
func (s *DeltaStream) Err() error {
	return s.err
}

// Texts returns the text accumulated so far for every choice.
func (s *DeltaStream) Texts() []string {
	texts := make([]string, len(s.texts))
	copy(texts, s.texts)
	return texts
}

// Multi reports whether more than one choice was requested.
func (s *DeltaStream) Multi() bool {
	return s.multi
}

// Close abandons the stream. Nothing is logged or cached for an abandoned
// stream. Closing a finished stream is a no-op.
func (s *DeltaStream) Close() error {
	if s.done {
		return nil
	}
	s.done = true
	return s.chunks.Close()
}

// All ranges over the remaining deltas. A failure is yielded once as the
// last element. Breaking out of the loop closes the stream.
func (s *DeltaStream) All() iter.Seq2[Delta, error] {
	return func(yield func(Delta, error) bool) {
		defer s.Close()
		for s.Next() {
			if !yield(s.Current(), nil) {
				return
			}
		}
		if err := s.Err(); err != nil {
			yield(Delta{}, err)
		}
	}
}

func (s *DeltaStream) complete() {
	s.done = true
	var result *multierror.Error
	if err := s.chunks.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to close stream: %w", err))
	}
	if s.finish != nil {
		if err := s.finish(s.Texts()); err != nil {
			result = multierror.Append(result, err)
		}
	}
	s.err = result.ErrorOrNil()
}

func (s *DeltaStream) fail(err error) {
	s.done = true
	s.err = err
	if closeErr := s.chunks.Close(); closeErr != nil {
		s.err = multierror.Append(err, fmt.Errorf("failed to close stream: %w", closeErr))
	}
}

// replayStream serves cached texts as a single chunk per choice.
type replayStream struct {
	texts []string
	pos   int
}

func (r *replayStream) Recv() (*engines.ChatChunk, error) {
	if r.pos >= len(r.texts) {
		return nil, io.EOF
	}
	chunk := &engines.ChatChunk{
		Choices: []engines.ChunkChoice{{
			Index: r.pos,
			Delta: &engines.ChatMessage{Role: engines.ConvRoleAssistant, Text: r.texts[r.pos]},
		}},
	}
	r.pos++
	return chunk, nil
}

func (r *replayStream) Close() error {
	return nil
}
