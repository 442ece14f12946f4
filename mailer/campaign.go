package mailer

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Recipient is one campaign target. Data overrides campaign-level data for
// this recipient during rendering.
type Recipient struct {
	Email string
	Name  string
	Data  map[string]any
}

// Campaign is a bulk send of one template to many recipients.
type Campaign struct {
	ID           string
	TemplateName string
	From         string
	Recipients   []Recipient
	// Data is the shared rendering context for every recipient.
	Data map[string]any
}

// DeliveryStatus is the terminal state of one recipient's delivery.
type DeliveryStatus string

const (
	DeliverySent   DeliveryStatus = "sent"
	DeliveryFailed DeliveryStatus = "failed"
)

// Delivery records the outcome for one recipient. Attempts counts the
// provider calls made for this recipient; it is zero when rendering
// failed before any delivery was tried.
type Delivery struct {
	Recipient Recipient
	Status    DeliveryStatus
	Attempts  int
	Error     string
}

// CampaignResult summarizes a campaign send.
type CampaignResult struct {
	CampaignID string
	Sent       int
	Failed     int
	Deliveries []Delivery
}

// SendCampaign renders and delivers the campaign to every recipient with
// bounded concurrency. One recipient failing never aborts the rest; the
// per-recipient outcome is in the result. The returned error is reserved
// for campaign-level problems (unknown template, cancelled context).
func (m *Mailer) SendCampaign(ctx context.Context, campaign Campaign) (*CampaignResult, error) {
	if campaign.ID == "" {
		campaign.ID = uuid.New().String()
	}
	// Fail fast if the template does not exist instead of failing every
	// recipient individually. Rendering stays per recipient; a required
	// subject token may be satisfied by recipient data alone.
	if !m.catalog.Has(campaign.TemplateName) {
		return nil, errors.Wrapf(ErrTemplateNotFound, "%s", campaign.TemplateName)
	}

	log := m.log.With(map[string]interface{}{"campaign": campaign.ID})
	log.Info("sending campaign template=%s recipients=%d", campaign.TemplateName, len(campaign.Recipients))

	result := &CampaignResult{
		CampaignID: campaign.ID,
		Deliveries: make([]Delivery, len(campaign.Recipients)),
	}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)
	for i, recipient := range campaign.Recipients {
		i, recipient := i, recipient
		g.Go(func() error {
			delivery := Delivery{Recipient: recipient, Status: DeliverySent}
			attempts, err := m.sendTo(gctx, campaign, recipient)
			delivery.Attempts = attempts
			if err != nil {
				delivery.Status = DeliveryFailed
				delivery.Error = err.Error()
			}
			mu.Lock()
			result.Deliveries[i] = delivery
			if delivery.Status == DeliverySent {
				result.Sent++
			} else {
				result.Failed++
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}

	log.Info("campaign done sent=%d failed=%d", result.Sent, result.Failed)
	return result, nil
}

func (m *Mailer) sendTo(ctx context.Context, campaign Campaign, recipient Recipient) (int, error) {
	data := make(map[string]any, len(campaign.Data)+len(recipient.Data)+2)
	for k, v := range campaign.Data {
		data[k] = v
	}
	data["email"] = recipient.Email
	if recipient.Name != "" {
		data["name"] = recipient.Name
	}
	for k, v := range recipient.Data {
		data[k] = v
	}
	rendered, err := m.catalog.Render(campaign.TemplateName, data)
	if err != nil {
		return 0, err
	}
	return m.send(ctx, Message{
		From:    campaign.From,
		To:      recipient.Email,
		Subject: rendered.Subject,
		HTML:    rendered.HTML,
	})
}
