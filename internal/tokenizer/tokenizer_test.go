package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rcliao/chat-memory/internal/model"
)

func TestApproxCount(t *testing.T) {
	var a Approx
	assert.Equal(t, 0, a.Count(""))
	assert.Equal(t, 1, a.Count("abc"))
	assert.Equal(t, 1, a.Count("abcd"))
	assert.Equal(t, 2, a.Count("abcde"))
}

func TestApproxCountMessagesIsAdditive(t *testing.T) {
	var a Approx
	msgs := []model.Message{
		{Role: model.RoleSystem, Content: "you are a companion"},
		{Role: model.RoleUser, Content: "hello there"},
		{Role: model.RoleAssistant, Content: "hi!"},
	}

	base := a.CountMessages(nil)
	sum := base
	for _, m := range msgs {
		sum += a.CountMessages([]model.Message{m}) - base
	}
	assert.Equal(t, sum, a.CountMessages(msgs))
	assert.Equal(t, replyPriming, base)
}
