package strapi

import (
	"context"
	"strings"

	"github.com/eringen/cmsblog/content"
)

// SubmitSubscription creates a newsletter subscriber. It reports whether the
// backend accepted the entry.
func (c *Client) SubmitSubscription(ctx context.Context, email string) bool {
	err := c.post(ctx, pathSubscribers, content.Subscriber{Email: strings.TrimSpace(email)})
	if err != nil {
		c.fail(ctx, "subscribe", err)
		return false
	}
	return true
}

// SubmitContactMessage stores a contact form message.
func (c *Client) SubmitContactMessage(ctx context.Context, msg content.ContactMessage) bool {
	msg.Name = strings.TrimSpace(msg.Name)
	msg.Email = strings.TrimSpace(msg.Email)
	if err := c.post(ctx, pathContactMessages, msg); err != nil {
		c.fail(ctx, "contact message", err)
		return false
	}
	return true
}
