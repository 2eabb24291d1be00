package chat

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/suPer8Hu/sitechat/internal/logger"
)

const persona = "You are a chatbot that will be placed on the %s website to answer any customer's questions. " +
	"Answer the question like a good customer service agent might. Be friendly and personable when answering. " +
	"Ensure you consider things like the day and future days when answering questions. " +
	"Elaborate on answers when you feel more information would be helpful."

// Assembler builds and extends transcripts. The priming message is rendered
// from the clock on every new conversation; only the rendered text is stored.
type Assembler struct {
	siteName string
	loc      *time.Location
	now      func() time.Time
}

func NewAssembler(siteName string, loc *time.Location) *Assembler {
	if siteName == "" {
		siteName = "our"
	}
	if loc == nil {
		loc = time.Local
	}
	return &Assembler{siteName: siteName, loc: loc, now: time.Now}
}

func (a *Assembler) Initialize() []Message {
	today := a.now().In(a.loc)
	yesterday := today.AddDate(0, 0, -1)
	tomorrow := today.AddDate(0, 0, 1)

	text := fmt.Sprintf("Today is %s, the %d of %s. Yesterday was %s, and tomorrow will be %s. ",
		today.Weekday(), today.Day(), today.Month(), yesterday.Weekday(), tomorrow.Weekday()) +
		fmt.Sprintf(persona, a.siteName)

	return []Message{{Role: RoleSystem, Content: text}}
}

// AppendTurn never trims or deduplicates; the full history is resent on
// every request.
func (a *Assembler) AppendTurn(msgs []Message, role Role, content string) []Message {
	out := make([]Message, len(msgs), len(msgs)+1)
	copy(out, msgs)
	return append(out, Message{Role: role, Content: content})
}

// Restore returns the stored transcript of conv, or a fresh one when conv is
// nil or its blob is corrupt.
func (a *Assembler) Restore(conv *Conversation) []Message {
	if conv == nil {
		return a.Initialize()
	}
	msgs, err := conv.Messages()
	if err != nil {
		logger.Log.WithFields(logrus.Fields{
			"session_id":      conv.SessionID,
			"conversation_id": conv.ID,
		}).WithError(err).Warn("discarding unreadable transcript")
		return a.Initialize()
	}
	return msgs
}
