package funnel

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/ManuelReschke/MemberGate/internal/pkg/ledger"
)

var ErrReferralNotFound = errors.New("funnel: referral code not found")

// ExportCSV writes the pending then paid members of a code.
func (s *Service) ExportCSV(ctx context.Context, referralID string, w io.Writer) error {
	doc, err := s.store.FindReferralByID(ctx, referralID)
	if err != nil {
		return err
	}
	if doc == nil {
		return ErrReferralNotFound
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"name", "email", "phone", "status"}); err != nil {
		return err
	}
	for _, list := range []ledger.List{ledger.PendingUsers, ledger.PaidUsers} {
		users, err := s.store.Members(ctx, doc.ID, list)
		if err != nil {
			return fmt.Errorf("load %s of %s: %w", list, doc.Code, err)
		}
		status := "pending"
		if list == ledger.PaidUsers {
			status = "paid"
		}
		for _, u := range users {
			if err := cw.Write([]string{u.Name, u.Email, u.PhoneNumber, status}); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// Audit returns every counter that disagrees with its list.
func (s *Service) Audit(ctx context.Context) ([]ledger.Drift, error) {
	docs, err := s.store.Referrals(ctx)
	if err != nil {
		return nil, err
	}
	var drifts []ledger.Drift
	for _, doc := range docs {
		drifts = append(drifts, doc.Drifts()...)
	}
	return drifts, nil
}
