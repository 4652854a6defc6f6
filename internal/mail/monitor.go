package mail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	gomail "github.com/emersion/go-message/mail"
	"github.com/google/uuid"

	"github.com/mvdbosch/bookwish/internal/logger"
	"github.com/mvdbosch/bookwish/internal/model"
)

// ItemCreator is the store contract the monitor needs.
type ItemCreator interface {
	CreateItem(ctx context.Context, item model.Item) error
}

// Config holds the mailbox settings.
type Config struct {
	Server         string
	Port           int
	Address        string
	Password       string
	Folder         string
	AllowedSenders []string
	Interval       time.Duration
}

// Enabled reports whether the monitor has enough configuration to run.
func (c Config) Enabled() bool {
	return c.Address != "" && c.Password != ""
}

// Monitor polls an IMAP mailbox and creates wishlist items from unseen
// messages. Parsing failures and duplicates never stop the poll loop.
type Monitor struct {
	cfg     Config
	creator ItemCreator
	log     logger.Logger
}

// NewMonitor creates a Monitor.
func NewMonitor(cfg Config, creator ItemCreator, log logger.Logger) *Monitor {
	if cfg.Folder == "" {
		cfg.Folder = "INBOX"
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	return &Monitor{cfg: cfg, creator: creator, log: log}
}

// Start polls the mailbox until ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	m.log.Info("email monitor started",
		logger.String("server", m.cfg.Server),
		logger.String("account", m.cfg.Address),
		logger.Duration("interval", m.cfg.Interval))

	for {
		added, err := m.CheckMailbox(ctx)
		if err != nil {
			m.log.Error("mailbox check failed", logger.Error(err))
		} else if added > 0 {
			m.log.Info("items added from email", logger.Int("count", added))
		}

		select {
		case <-ctx.Done():
			m.log.Info("email monitor stopped")
			return
		case <-time.After(m.cfg.Interval):
		}
	}
}

// CheckMailbox connects, processes unseen messages, and marks the ones that
// produced items as seen. It returns the number of items created.
func (m *Monitor) CheckMailbox(ctx context.Context) (int, error) {
	c, err := client.DialTLS(fmt.Sprintf("%s:%d", m.cfg.Server, m.cfg.Port), nil)
	if err != nil {
		return 0, fmt.Errorf("dial imap: %w", err)
	}
	defer c.Logout()

	if err := c.Login(m.cfg.Address, m.cfg.Password); err != nil {
		return 0, fmt.Errorf("imap login: %w", err)
	}

	if _, err := c.Select(m.cfg.Folder, false); err != nil {
		return 0, fmt.Errorf("select %s: %w", m.cfg.Folder, err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	ids, err := c.Search(criteria)
	if err != nil {
		return 0, fmt.Errorf("imap search: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	section := &imap.BodySectionName{}
	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, []imap.FetchItem{imap.FetchEnvelope, section.FetchItem()}, messages)
	}()

	totalAdded := 0
	processed := new(imap.SeqSet)
	for msg := range messages {
		added := m.processMessage(ctx, msg, section)
		totalAdded += added
		if added > 0 {
			processed.AddNum(msg.SeqNum)
		}
	}
	if err := <-done; err != nil {
		return totalAdded, fmt.Errorf("imap fetch: %w", err)
	}

	if !processed.Empty() {
		flags := []interface{}{imap.SeenFlag}
		if err := c.Store(processed, imap.FormatFlagsOp(imap.AddFlags, true), flags, nil); err != nil {
			m.log.Warn("mark seen failed", logger.Error(err))
		}
	}

	return totalAdded, nil
}

func (m *Monitor) processMessage(ctx context.Context, msg *imap.Message, section *imap.BodySectionName) int {
	if msg.Envelope == nil {
		return 0
	}

	sender := ""
	if len(msg.Envelope.From) > 0 {
		sender = msg.Envelope.From[0].Address()
	}
	if !senderAllowed(sender, m.cfg.AllowedSenders) {
		m.log.Warn("sender not allowed", logger.String("sender", sender))
		return 0
	}

	body := m.plainTextBody(msg.GetBody(section))
	requests := ExtractRequests(msg.Envelope.Subject, body)
	if len(requests) == 0 {
		return 0
	}

	added := 0
	for _, req := range requests {
		item, err := model.NewItem(uuid.New().String(), req.Author, req.Title, model.ViaEmail)
		if err != nil {
			continue
		}
		err = m.creator.CreateItem(ctx, item)
		switch {
		case errors.Is(err, model.ErrDuplicate):
			m.log.Info("already on wishlist", logger.String("line", item.RawLine()))
		case err != nil:
			m.log.Error("create item failed", logger.String("line", item.RawLine()), logger.Error(err))
		default:
			m.log.Info("added from email", logger.String("line", item.RawLine()), logger.String("sender", sender))
			added++
		}
	}
	return added
}

// plainTextBody extracts the first text/plain part of the message.
func (m *Monitor) plainTextBody(r io.Reader) string {
	if r == nil {
		return ""
	}
	mr, err := gomail.CreateReader(r)
	if err != nil {
		return ""
	}
	for {
		p, err := mr.NextPart()
		if err != nil {
			return ""
		}
		if h, ok := p.Header.(*gomail.InlineHeader); ok {
			ct, _, _ := h.ContentType()
			if ct == "" || strings.HasPrefix(ct, "text/plain") {
				b, err := io.ReadAll(p.Body)
				if err != nil {
					return ""
				}
				return string(b)
			}
		}
	}
}
