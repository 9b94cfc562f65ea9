package conversation

import (
	"fmt"
	"sort"
)

// Tree is a conversation with all of its messages and their parts.
type Tree struct {
	Conversation  *Conversation
	UserMessages  []*UserMessage
	AgentMessages []*AgentMessage

	index map[string]Message
}

func NewTree(conv *Conversation, users []*UserMessage, agents []*AgentMessage) *Tree {
	t := &Tree{
		Conversation:  conv,
		UserMessages:  users,
		AgentMessages: agents,
		index:         make(map[string]Message, len(users)+len(agents)),
	}
	for _, m := range users {
		t.index[m.ID] = m
	}
	for _, m := range agents {
		t.index[m.ID] = m
	}
	return t
}

func (t *Tree) Message(id string) (Message, bool) {
	m, ok := t.index[id]
	return m, ok
}

func (t *Tree) AgentMessage(id string) (*AgentMessage, bool) {
	m, ok := t.index[id].(*AgentMessage)
	return m, ok
}

// Messages returns every message ordered by creation time.
func (t *Tree) Messages() []Message {
	out := make([]Message, 0, len(t.index))
	for _, m := range t.UserMessages {
		out = append(out, m)
	}
	for _, m := range t.AgentMessages {
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Base().CreatedAt.Before(out[j].Base().CreatedAt)
	})
	return out
}

// Thread walks parent links from leafID up to the root and returns the path root first.
func (t *Tree) Thread(leafID string) ([]Message, error) {
	var path []Message
	seen := make(map[string]struct{})
	id := leafID
	for {
		m, ok := t.index[id]
		if !ok {
			return nil, &MissingMessageError{ConversationID: t.conversationID(), MessageID: id}
		}
		if _, loop := seen[id]; loop {
			return nil, fmt.Errorf("message %s: parent chain loops", id)
		}
		seen[id] = struct{}{}
		path = append(path, m)

		parent := m.Base().ParentID
		if parent == nil {
			break
		}
		if next, ok := t.index[*parent]; ok && next.Role() == m.Role() {
			return nil, fmt.Errorf("message %s: parent %s has the same role", id, *parent)
		}
		id = *parent
	}

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

func (t *Tree) conversationID() string {
	if t.Conversation == nil {
		return ""
	}
	return t.Conversation.ID
}
