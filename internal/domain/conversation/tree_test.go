package conversation

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func buildTree() *Tree {
	now := time.Now()
	u1 := &UserMessage{MessageBase: MessageBase{ID: "u1", ConversationID: "c1", CreatedAt: now, Parts: []Part{
		&TextPart{PartBase: PartBase{ID: "p1"}, Content: ptr("Hello")},
	}}}
	a1 := &AgentMessage{MessageBase: MessageBase{ID: "a1", ConversationID: "c1", ParentID: ptr("u1"), CreatedAt: now.Add(time.Second), Parts: []Part{
		&TextPart{PartBase: PartBase{ID: "p2"}, Content: ptr("Hi ")},
		&TextPart{PartBase: PartBase{ID: "p3"}, Content: ptr("there")},
		&StepCompletionPart{PartBase: PartBase{ID: "p4"}, Usage: Usage{TotalTokens: 3}},
	}}, Status: AgentStatusFinished}
	u2 := &UserMessage{MessageBase: MessageBase{ID: "u2", ConversationID: "c1", ParentID: ptr("a1"), CreatedAt: now.Add(2 * time.Second)}}
	a2 := &AgentMessage{MessageBase: MessageBase{ID: "a2", ConversationID: "c1", ParentID: ptr("u2"), CreatedAt: now.Add(3 * time.Second)}, Status: AgentStatusInProgress}
	a3 := &AgentMessage{MessageBase: MessageBase{ID: "a3", ConversationID: "c1", ParentID: ptr("u1"), CreatedAt: now.Add(4 * time.Second)}, Status: AgentStatusInProgress}
	return NewTree(&Conversation{ID: "c1"}, []*UserMessage{u1, u2}, []*AgentMessage{a1, a2, a3})
}

func TestTreeThread(t *testing.T) {
	tree := buildTree()

	tests := []struct {
		name string
		leaf string
		want []string
	}{
		{name: "main branch", leaf: "a2", want: []string{"u1", "a1", "u2", "a2"}},
		{name: "regenerated branch", leaf: "a3", want: []string{"u1", "a3"}},
		{name: "root only", leaf: "u1", want: []string{"u1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := tree.Thread(tt.leaf)
			require.NoError(t, err)
			ids := make([]string, len(path))
			for i, m := range path {
				ids[i] = m.Base().ID
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	t.Run("unknown leaf", func(t *testing.T) {
		_, err := tree.Thread("nope")
		var missing *MissingMessageError
		require.True(t, errors.As(err, &missing))
		assert.Equal(t, "c1", missing.ConversationID)
	})
}

func TestTreeRejectsSameRoleParent(t *testing.T) {
	u1 := &UserMessage{MessageBase: MessageBase{ID: "u1"}}
	u2 := &UserMessage{MessageBase: MessageBase{ID: "u2", ParentID: ptr("u1")}}
	tree := NewTree(&Conversation{ID: "c"}, []*UserMessage{u1, u2}, nil)
	_, err := tree.Thread("u2")
	assert.Error(t, err)
}

func TestText(t *testing.T) {
	tree := buildTree()
	a1, ok := tree.AgentMessage("a1")
	require.True(t, ok)
	assert.Equal(t, "Hi there", Text(a1))

	a2, ok := tree.AgentMessage("a2")
	require.True(t, ok)
	assert.Empty(t, Text(a2))

	_, ok = tree.AgentMessage("u1")
	assert.False(t, ok)
}

func TestMessagesOrderedByCreation(t *testing.T) {
	msgs := buildTree().Messages()
	require.Len(t, msgs, 5)
	assert.Equal(t, "u1", msgs[0].Base().ID)
	assert.Equal(t, "a3", msgs[4].Base().ID)
}

func TestAgentStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to AgentStatus
		want     bool
	}{
		{AgentStatusInProgress, AgentStatusFinished, true},
		{AgentStatusInProgress, AgentStatusError, true},
		{AgentStatusInProgress, AgentStatusInterrupted, true},
		{AgentStatusInProgress, AgentStatusInProgress, false},
		{AgentStatusFinished, AgentStatusError, false},
		{AgentStatusInterrupted, AgentStatusInterrupted, false},
		{AgentStatusError, AgentStatusFinished, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}
