package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/fundedgiants/fundedgiants-web-18-sub000/internal/affiliates"
	"github.com/fundedgiants/fundedgiants-web-18-sub000/internal/orders"
)

type OrderReader interface {
	GetOrder(ctx context.Context, orderID string) (*orders.Order, error)
}

type ProfileReader interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
}

type ReferralReader interface {
	GetReferralByOrder(ctx context.Context, orderID string) (*affiliates.Referral, error)
	GetByID(ctx context.Context, id string) (*affiliates.Affiliate, error)
}

type Mailer interface {
	Enabled() bool
	Send(ctx context.Context, e Email) error
}

type CRM interface {
	Forward(ctx context.Context, p CRMPayload) error
}

// Result reports which post-payment effects ran for an order.
type Result struct {
	OrderID          string `json:"order_id"`
	Skipped          bool   `json:"skipped,omitempty"`
	Message          string `json:"message,omitempty"`
	ConfirmationSent bool   `json:"confirmation_sent"`
	CommissionAlert  bool   `json:"commission_alert"`
}

// Notifier runs the side effects of a confirmed payment.
type Notifier struct {
	Orders     OrderReader
	Profiles   ProfileReader
	Affiliates ReferralReader
	Mailer     Mailer
	CRM        CRM
	Now        func() time.Time
}

// Notify looks up the order and its buyer, sends the confirmation, forwards
// the purchase to the CRM and, for attributed orders, sends the affiliate's
// commission alert. Only a missing order or a failed confirmation is an error.
// The confirmation goes first: it is the only step that makes the caller retry,
// and nothing else has happened yet when it fails.
func (n *Notifier) Notify(ctx context.Context, orderID string) (Result, error) {
	res := Result{OrderID: orderID}
	order, err := n.Orders.GetOrder(ctx, orderID)
	if err != nil {
		return res, fmt.Errorf("notify order %s: %w", orderID, err)
	}

	profile, err := n.Profiles.GetProfile(ctx, order.UserID)
	if err != nil {
		log.Printf("[notify] order=%s profile %s: %v", orderID, order.UserID, err)
	}

	mail := n.Mailer.Enabled()
	if mail {
		if profile == nil || profile.Email == "" {
			log.Printf("[notify] order=%s: no email for user %s, confirmation skipped", orderID, order.UserID)
		} else {
			if err := n.sendConfirmation(ctx, order, profile); err != nil {
				return res, err
			}
			res.ConfirmationSent = true
		}
	}

	if err := n.CRM.Forward(ctx, n.crmPayload(order, profile)); err != nil {
		log.Printf("[notify] order=%s crm: %v", orderID, err)
	}

	if !mail {
		res.Skipped = true
		res.Message = "email not configured, notifications skipped"
		log.Printf("[notify] order=%s: %s", orderID, res.Message)
		return res, nil
	}

	if order.AffiliateCode != nil && *order.AffiliateCode != "" {
		sent, err := n.sendCommissionAlert(ctx, order)
		if err != nil {
			log.Printf("[notify] order=%s commission alert: %v", orderID, err)
		}
		res.CommissionAlert = sent
	}
	return res, nil
}

func (n *Notifier) now() time.Time {
	if n.Now != nil {
		return n.Now()
	}
	return time.Now()
}

func (n *Notifier) crmPayload(o *orders.Order, p *Profile) CRMPayload {
	out := CRMPayload{
		Event:       "purchase",
		OrderID:     o.ID,
		UserID:      o.UserID,
		ProgramID:   o.ProgramID,
		ProgramName: o.ProgramName,
		Addons:      o.Addons,
		Discount:    o.Discount,
		TotalPrice:  o.TotalPrice,
		Provider:    o.Provider,
		PaidAt:      n.now().UTC(),
	}
	if out.Addons == nil {
		out.Addons = []orders.Addon{}
	}
	if p != nil {
		out.Email, out.FullName = p.Email, p.FullName
	}
	if o.DiscountCode != nil {
		out.DiscountCode = *o.DiscountCode
	}
	if o.AffiliateCode != nil {
		out.AffiliateCode = *o.AffiliateCode
	}
	return out
}

func (n *Notifier) sendConfirmation(ctx context.Context, o *orders.Order, p *Profile) error {
	data := struct {
		Name, Program, OrderID, Total, Discount, Provider string
		Addons                                            []orders.Addon
	}{
		Name:     nameOr(p.FullName, "trader"),
		Program:  o.ProgramName,
		OrderID:  o.ID,
		Total:    o.TotalPrice.StringFixed(2),
		Provider: o.Provider,
		Addons:   o.Addons,
	}
	if o.Discount.IsPositive() {
		data.Discount = o.Discount.StringFixed(2)
	}
	html, err := render(confirmationTmpl, data)
	if err != nil {
		return err
	}
	if err := n.Mailer.Send(ctx, Email{
		To:      p.Email,
		Subject: "Your " + o.ProgramName + " purchase is confirmed",
		HTML:    html,
	}); err != nil {
		return fmt.Errorf("send confirmation for order %s: %w", o.ID, err)
	}
	log.Printf("[notify] order=%s confirmation sent to %s", o.ID, p.Email)
	return nil
}

// sendCommissionAlert mails the referring affiliate. Missing records are
// logged and skipped.
func (n *Notifier) sendCommissionAlert(ctx context.Context, o *orders.Order) (bool, error) {
	ref, err := n.Affiliates.GetReferralByOrder(ctx, o.ID)
	if errors.Is(err, affiliates.ErrReferralNotFound) {
		log.Printf("[notify] order=%s has affiliate %s but no referral", o.ID, *o.AffiliateCode)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	aff, err := n.Affiliates.GetByID(ctx, ref.AffiliateID)
	if err != nil {
		return false, fmt.Errorf("affiliate %s: %w", ref.AffiliateID, err)
	}
	profile, err := n.Profiles.GetProfile(ctx, aff.UserID)
	if err != nil {
		return false, fmt.Errorf("affiliate profile %s: %w", aff.UserID, err)
	}
	if profile.Email == "" {
		return false, nil
	}

	html, err := render(commissionTmpl, map[string]string{
		"Name":       nameOr(profile.FullName, "partner"),
		"Program":    o.ProgramName,
		"Code":       aff.Code,
		"Commission": ref.Commission.StringFixed(2),
		"Status":     string(ref.Status),
	})
	if err != nil {
		return false, err
	}
	if err := n.Mailer.Send(ctx, Email{To: profile.Email, Subject: "New commission earned", HTML: html}); err != nil {
		return false, err
	}
	return true, nil
}

func nameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
