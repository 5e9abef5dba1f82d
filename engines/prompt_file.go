package engines

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var ErrEmptyPrompt = errors.New("conversation has no messages")

type promptFile struct {
	Messages []*ChatMessage `yaml:"messages"`
}

// ParsePrompt reads a conversation written either as a list of messages or
// as a mapping with a `messages` key. JSON input is accepted as well.
func ParsePrompt(data []byte) (*ChatPrompt, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("invalid conversation: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, ErrEmptyPrompt
	}
	var messages []*ChatMessage
	switch root := node.Content[0]; root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&messages); err != nil {
			return nil, fmt.Errorf("invalid conversation: %w", err)
		}
	case yaml.MappingNode:
		var file promptFile
		if err := root.Decode(&file); err != nil {
			return nil, fmt.Errorf("invalid conversation: %w", err)
		}
		messages = file.Messages
	default:
		return nil, fmt.Errorf("invalid conversation: expected a list of messages")
	}
	if len(messages) == 0 {
		return nil, ErrEmptyPrompt
	}
	for i, msg := range messages {
		if msg == nil {
			return nil, fmt.Errorf("message %d is empty", i)
		}
		switch msg.Role {
		case ConvRoleSystem, ConvRoleUser, ConvRoleAssistant, ConvRoleFunction, ConvRoleTool:
		default:
			return nil, fmt.Errorf("message %d has unknown role %q", i, msg.Role)
		}
	}
	return &ChatPrompt{History: messages}, nil
}

func LoadPrompt(path string) (*ChatPrompt, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation: %w", err)
	}
	return ParsePrompt(data)
}
