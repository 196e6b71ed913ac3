// Package gmail adapts the Gmail API to the mailbox capability the pipeline
// consumes. One Client is built per connected account; the OAuth token source
// refreshes expired access tokens transparently.
package gmail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/InboxSlash/inbox-slash/internal/config"
	"github.com/InboxSlash/inbox-slash/internal/history"
	"github.com/InboxSlash/inbox-slash/internal/model"
)

// gmailUser addresses the authenticated mailbox in every API call.
const gmailUser = "me"

// Client implements history.Mailbox against the Gmail API.
type Client struct {
	svc        *gmail.Service
	maxResults int64
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker

	mu        sync.Mutex
	labels    map[string]string // label name -> id
	selfEmail string
}

// NewFactory returns a MailboxFactory building one Client per account.
func NewFactory(gmailCfg config.GmailConfig, pipelineCfg config.PipelineConfig) history.MailboxFactory {
	return func(ctx context.Context, acct *model.Account) (history.Mailbox, error) {
		return NewClient(ctx, gmailCfg, pipelineCfg, acct)
	}
}

// NewClient creates a Gmail client for one connected account.
func NewClient(ctx context.Context, gmailCfg config.GmailConfig, pipelineCfg config.PipelineConfig, acct *model.Account) (*Client, error) {
	oauthCfg := &oauth2.Config{
		ClientID:     gmailCfg.ClientID,
		ClientSecret: gmailCfg.ClientSecret,
		Scopes:       []string{gmail.GmailModifyScope, gmail.GmailComposeScope},
		Endpoint:     google.Endpoint,
	}

	token := &oauth2.Token{
		AccessToken:  acct.AccessToken,
		RefreshToken: acct.RefreshToken,
		Expiry:       time.Unix(acct.ExpiresAt, 0),
	}

	svc, err := gmail.NewService(ctx, option.WithTokenSource(oauthCfg.TokenSource(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	rps := gmailCfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}

	return &Client{
		svc:        svc,
		maxResults: pipelineCfg.MaxResults,
		limiter:    rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "gmail",
			MaxRequests: 3,
			Timeout:     30 * time.Second,
		}),
		labels: make(map[string]string),
	}, nil
}

// call paces and guards one API call.
func (c *Client) call(ctx context.Context, fn func() error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return normalizeError(err)
}

// normalizeError maps provider 404s onto history.ErrNotFound so the pipeline
// can tell the snoozed/deleted race apart from transient failures.
func normalizeError(err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
		return fmt.Errorf("%w: %s", history.ErrNotFound, gerr.Message)
	}
	return err
}

// CurrentHistoryID returns the mailbox's latest change-sequence position.
func (c *Client) CurrentHistoryID(ctx context.Context) (uint64, error) {
	var profile *gmail.Profile
	err := c.call(ctx, func() error {
		p, err := c.svc.Users.GetProfile(gmailUser).Context(ctx).Do()
		profile = p
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get profile: %w", err)
	}

	c.mu.Lock()
	c.selfEmail = profile.EmailAddress
	c.mu.Unlock()

	return profile.HistoryId, nil
}

// profileEmail returns the authenticated address, fetching it once.
func (c *Client) profileEmail(ctx context.Context) (string, error) {
	c.mu.Lock()
	cached := c.selfEmail
	c.mu.Unlock()
	if cached != "" {
		return cached, nil
	}
	if _, err := c.CurrentHistoryID(ctx); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selfEmail, nil
}

// EnsureLabel returns the id of the named label, creating it if missing.
// Resolved ids are cached per client.
func (c *Client) EnsureLabel(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	if id, ok := c.labels[name]; ok {
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	var list *gmail.ListLabelsResponse
	err := c.call(ctx, func() error {
		l, err := c.svc.Users.Labels.List(gmailUser).Context(ctx).Do()
		list = l
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to list labels: %w", err)
	}

	c.mu.Lock()
	for _, l := range list.Labels {
		c.labels[l.Name] = l.Id
	}
	if id, ok := c.labels[name]; ok {
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	var created *gmail.Label
	err = c.call(ctx, func() error {
		l, err := c.svc.Users.Labels.Create(gmailUser, &gmail.Label{
			Name:                  name,
			LabelListVisibility:   "labelShow",
			MessageListVisibility: "show",
		}).Context(ctx).Do()
		created = l
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to create label %q: %w", name, err)
	}

	c.mu.Lock()
	c.labels[name] = created.Id
	c.mu.Unlock()
	return created.Id, nil
}

// ModifyLabels adds and removes labels on one message.
func (c *Client) ModifyLabels(ctx context.Context, messageID string, add, remove []string) error {
	err := c.call(ctx, func() error {
		_, err := c.svc.Users.Messages.Modify(gmailUser, messageID, &gmail.ModifyMessageRequest{
			AddLabelIds:    add,
			RemoveLabelIds: remove,
		}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to modify labels on message %s: %w", messageID, err)
	}
	return nil
}

// ArchiveThread removes the inbox label from the whole thread.
func (c *Client) ArchiveThread(ctx context.Context, threadID string) error {
	err := c.call(ctx, func() error {
		_, err := c.svc.Users.Threads.Modify(gmailUser, threadID, &gmail.ModifyThreadRequest{
			RemoveLabelIds: []string{history.LabelInbox},
		}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to archive thread %s: %w", threadID, err)
	}
	return nil
}

// MarkSpam moves the whole thread to spam.
func (c *Client) MarkSpam(ctx context.Context, threadID string) error {
	err := c.call(ctx, func() error {
		_, err := c.svc.Users.Threads.Modify(gmailUser, threadID, &gmail.ModifyThreadRequest{
			AddLabelIds:    []string{history.LabelSpam},
			RemoveLabelIds: []string{history.LabelInbox},
		}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to mark thread %s as spam: %w", threadID, err)
	}
	return nil
}
