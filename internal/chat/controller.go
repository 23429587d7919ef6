// Package chat mediates between a front end and the store: lazy session
// creation, title assignment, selection bookkeeping, cascade deletion and
// search-filtered listing. A Controller belongs to a single control flow;
// completion calls run off that flow and hand their Reply back to it.
package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/minho5235/jammin/internal/db"
	"github.com/minho5235/jammin/internal/models"
	"go.uber.org/zap"
)

// ErrEmptyInput marks a whitespace-only send. Front ends ignore it
// silently: no session is created and no completion is issued.
var ErrEmptyInput = errors.New("empty input")

// titleRunes is how much of the first message becomes the session title.
const titleRunes = 15

// Store is the persistence surface the controller drives.
type Store interface {
	CreateSession(title string) (int64, error)
	DeleteSession(id int64) bool
	SaveMessage(sessionID int64, sender, content string) error
	AllSessions() []models.Session
	SearchSessions(keyword string) []models.Session
	Messages(sessionID int64) []models.Message
}

// Completer is the completion gateway surface.
type Completer interface {
	Complete(ctx context.Context, prompt string) string
}

// Reply is a finished completion, tagged with the session it was
// requested for. The tag is captured at request time, so a reply is never
// attributed to whatever session happens to be active when it lands.
type Reply struct {
	SessionID int64
	Content   string
}

// Send is the result of accepting a user message. Complete performs the
// blocking gateway call; run it off the main flow and pass the Reply back
// through AcceptReply.
type Send struct {
	SessionID      int64
	SessionCreated bool
	Message        models.Message
	Complete       func(ctx context.Context) Reply
}

// Deletion describes the list and selection state after a session was
// removed.
type Deletion struct {
	// Next is the session promoted into the deleted row, nil when the
	// listing emptied out or the deleted session was not the active one.
	Next     *models.Session
	Messages []models.Message
}

// Controller owns the active-session reference and the listing currently
// shown by the front end. Zero active id means the session-less "new
// chat" state.
type Controller struct {
	store    Store
	gateway  Completer
	logger   *zap.Logger
	activeID int64
	listing  []models.Session
	keyword  string
}

func NewController(store Store, gateway Completer, logger *zap.Logger) *Controller {
	return &Controller{
		store:   store,
		gateway: gateway,
		logger:  logger,
		listing: []models.Session{},
	}
}

// ActiveSession returns the id of the active session, 0 when none.
func (c *Controller) ActiveSession() int64 {
	return c.activeID
}

// Keyword returns the search filter currently applied to the listing.
func (c *Controller) Keyword() string {
	return c.keyword
}

// Listing returns the sessions in display order, as last refreshed.
func (c *Controller) Listing() []models.Session {
	return c.listing
}

// ActiveIndex returns the row of the active session in the listing, -1
// when it is absent (no active session, or filtered out by search).
func (c *Controller) ActiveIndex() int {
	if c.activeID == 0 {
		return -1
	}
	for i, sess := range c.listing {
		if sess.ID == c.activeID {
			return i
		}
	}
	return -1
}

// ListSessions refreshes the listing. A non-empty keyword filters it by
// case-insensitive substring match over titles and message contents; an
// empty keyword restores the full listing. The active session is left
// alone either way.
func (c *Controller) ListSessions(keyword string) []models.Session {
	c.keyword = strings.TrimSpace(keyword)
	c.refresh()
	return c.listing
}

// SelectSession makes id the active session and returns its history in
// creation order.
func (c *Controller) SelectSession(id int64) []models.Message {
	c.activeID = id
	return c.store.Messages(id)
}

// NewSession returns to the session-less state: no active session, search
// cleared, full listing restored.
func (c *Controller) NewSession() []models.Session {
	c.activeID = 0
	c.keyword = ""
	c.refresh()
	return c.listing
}

// SendMessage accepts user input. On the first send without an active
// session it creates one, titled from the text. The user message is
// persisted before the completion work is handed out.
func (c *Controller) SendMessage(text string) (*Send, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	created := false
	if c.activeID == 0 {
		id, err := c.store.CreateSession(deriveTitle(text))
		switch {
		case errors.Is(err, db.ErrUnavailable):
			// Memory-only run: keep going, nothing will persist.
		case err != nil:
			c.logger.Warn("session creation failed", zap.Error(err))
		default:
			c.activeID = id
			created = true
			// A brand-new session always shows up, even mid-search.
			c.keyword = ""
			c.refresh()
		}
	}

	if err := c.store.SaveMessage(c.activeID, models.SenderUser, text); err != nil {
		c.logger.Warn("user message not saved", zap.Int64("session_id", c.activeID), zap.Error(err))
	}

	// Capture the target session now; the reply must land here even if
	// the user switches sessions before it arrives.
	target := c.activeID
	return &Send{
		SessionID:      target,
		SessionCreated: created,
		Message:        models.Message{SessionID: target, Sender: models.SenderUser, Content: text},
		Complete: func(ctx context.Context) Reply {
			return Reply{SessionID: target, Content: c.gateway.Complete(ctx, text)}
		},
	}, nil
}

// AcceptReply persists a finished completion under its captured session.
// Call it from the main flow only.
func (c *Controller) AcceptReply(reply Reply) {
	if err := c.store.SaveMessage(reply.SessionID, models.SenderAssistant, reply.Content); err != nil {
		c.logger.Warn("reply not saved", zap.Int64("session_id", reply.SessionID), zap.Error(err))
	}
}

// DeleteSession removes a session and its messages. The listing is only
// touched once the store confirms. When the active session is deleted and
// others remain, the session now occupying the same row (or the last row)
// becomes active and its history is returned.
func (c *Controller) DeleteSession(id int64) (*Deletion, bool) {
	row := -1
	for i, sess := range c.listing {
		if sess.ID == id {
			row = i
			break
		}
	}

	if !c.store.DeleteSession(id) {
		return nil, false
	}

	wasActive := id == c.activeID
	c.refresh()

	if !wasActive {
		return &Deletion{}, true
	}

	if len(c.listing) == 0 {
		c.activeID = 0
		c.keyword = ""
		c.refresh()
		return &Deletion{}, true
	}

	if row < 0 || row >= len(c.listing) {
		row = len(c.listing) - 1
	}
	next := c.listing[row]
	c.activeID = next.ID
	return &Deletion{Next: &next, Messages: c.store.Messages(next.ID)}, true
}

func (c *Controller) refresh() {
	if c.keyword == "" {
		c.listing = c.store.AllSessions()
	} else {
		c.listing = c.store.SearchSessions(c.keyword)
	}
}

// deriveTitle keeps the first titleRunes runes of the text, marking the
// cut with an ellipsis.
func deriveTitle(text string) string {
	runes := []rune(text)
	if len(runes) > titleRunes {
		return string(runes[:titleRunes]) + "..."
	}
	return text
}
