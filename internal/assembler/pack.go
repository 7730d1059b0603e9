package assembler

import (
	"github.com/rcliao/chat-memory/internal/model"
	"github.com/rcliao/chat-memory/internal/store"
	"github.com/rcliao/chat-memory/internal/tokenizer"
)

// Input is everything that may enter a request.
type Input struct {
	Core     []model.Record // core prompt lines in stored order
	Memories []store.Match  // most relevant first
	Turns    []model.Record // chronological, newest last
	Current  *model.Message // the new user message; never dropped
}

// Result is an assembled context.
type Result struct {
	Messages        []model.Message `json:"messages"`
	Tokens          int             `json:"tokens"`
	Budget          int             `json:"budget"`
	Memories        []store.Match   `json:"memories"`
	Turns           []model.Record  `json:"turns"`
	DroppedMemories int             `json:"dropped_memories"`
	DroppedTurns    int             `json:"dropped_turns"`
}

// Pack fits in into budget tokens. Memories are dropped least relevant
// first, then turns oldest first. The core prompt and the current message
// are never dropped; if they alone exceed the budget Pack returns a
// *BudgetExceededError.
func Pack(in Input, c tokenizer.Counter, budget int) (*Result, error) {
	var head []model.Message
	if text := store.CorePromptText(in.Core); text != "" {
		head = append(head, model.Message{Role: model.RoleSystem, Content: text})
	}
	need := c.CountMessages(head)
	if need > budget {
		return nil, &BudgetExceededError{Need: need, Budget: budget}
	}
	if in.Current != nil {
		need = c.CountMessages(append(head[:len(head):len(head)], *in.Current))
		if need > budget {
			return nil, &BudgetExceededError{Need: need, Budget: budget}
		}
	}

	inTurns := make(map[string]bool, len(in.Turns))
	for _, t := range in.Turns {
		inTurns[t.ID] = true
	}
	memories := make([]store.Match, 0, len(in.Memories))
	for _, m := range in.Memories {
		if !inTurns[m.ID] {
			memories = append(memories, m)
		}
	}

	p := &packer{
		counter:  c,
		head:     head,
		current:  in.Current,
		memories: memories,
		turns:    in.Turns,
		keepMem:  len(memories),
	}

	// drop using additive per-item costs first, then confirm on the whole list
	total := need
	memCost := make([]int, len(memories))
	for i, m := range memories {
		memCost[i] = p.cost(memoryMessage(m))
		total += memCost[i]
	}
	turnCost := make([]int, len(in.Turns))
	for i, t := range in.Turns {
		turnCost[i] = p.cost(turnMessage(t))
		total += turnCost[i]
	}
	for total > budget {
		switch {
		case p.keepMem > 0:
			total -= memCost[p.keepMem-1]
		case p.firstTurn < len(p.turns):
			total -= turnCost[p.firstTurn]
		}
		if !p.dropOne() {
			break
		}
	}

	for {
		msgs := p.messages()
		n := c.CountMessages(msgs)
		if n <= budget {
			return &Result{
				Messages:        msgs,
				Tokens:          n,
				Budget:          budget,
				Memories:        p.memories[:p.keepMem],
				Turns:           p.turns[p.firstTurn:],
				DroppedMemories: len(p.memories) - p.keepMem,
				DroppedTurns:    p.firstTurn,
			}, nil
		}
		if !p.dropOne() {
			return nil, &BudgetExceededError{Need: n, Budget: budget}
		}
	}
}

type packer struct {
	counter   tokenizer.Counter
	head      []model.Message
	current   *model.Message
	memories  []store.Match
	turns     []model.Record
	keepMem   int // memories[:keepMem] survive
	firstTurn int // turns[firstTurn:] survive
}

func (p *packer) cost(m model.Message) int {
	return p.counter.CountMessages([]model.Message{m}) - p.counter.CountMessages(nil)
}

// dropOne removes the least relevant memory, or else the oldest turn.
func (p *packer) dropOne() bool {
	switch {
	case p.keepMem > 0:
		p.keepMem--
	case p.firstTurn < len(p.turns):
		p.firstTurn++
	default:
		return false
	}
	return true
}

// messages renders the survivors: core prompt, memories by relevance,
// turns oldest to newest, then the current message.
func (p *packer) messages() []model.Message {
	out := make([]model.Message, 0, len(p.head)+p.keepMem+len(p.turns)-p.firstTurn+1)
	out = append(out, p.head...)
	for _, m := range p.memories[:p.keepMem] {
		out = append(out, memoryMessage(m))
	}
	for _, t := range p.turns[p.firstTurn:] {
		out = append(out, turnMessage(t))
	}
	if p.current != nil {
		out = append(out, *p.current)
	}
	return out
}

func memoryMessage(m store.Match) model.Message {
	return model.Message{Role: model.RoleSystem, Content: m.Text}
}

func turnMessage(r model.Record) model.Message {
	role := r.Role
	if role == "" {
		role = model.RoleUser
	}
	return model.Message{Role: role, Content: r.Text}
}
