package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/authsession/session"
)

// sessionView is what inspect prints. The payment token is never shown.
type sessionView struct {
	ID          string            `json:"id"`
	CartID      string            `json:"cart_id"`
	CartVersion int64             `json:"cart_version"`
	TokenType   session.TokenType `json:"token_type"`
	CustomerID  string            `json:"customer_id,omitempty"`
	AnonymousID string            `json:"anonymous_id,omitempty"`
	Status      session.Status    `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	ExpiresAt   time.Time         `json:"expires_at"`
	BillingName string            `json:"billing_name"`
	HasShipping bool              `json:"has_shipping"`
	HasSetup    bool              `json:"has_authentication_setup_data"`
}

func newInspectCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <session-id>",
		Short: "Print a live session without its payment token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.store()
			if err != nil {
				return err
			}
			defer store.Close()

			sess, err := store.GetSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if sess == nil {
				return fmt.Errorf("session %s is absent, used or expired", args[0])
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(viewOf(sess))
		},
	}
}

func viewOf(s *session.Session) sessionView {
	return sessionView{
		ID:          s.ID,
		CartID:      s.CartID,
		CartVersion: s.CartVersion,
		TokenType:   s.TokenType,
		CustomerID:  s.CustomerID,
		AnonymousID: s.AnonymousID,
		Status:      s.Status,
		CreatedAt:   s.CreatedAt,
		ExpiresAt:   s.ExpiresAt,
		BillingName: s.BillingDetails.Name,
		HasShipping: s.ShippingDetails != nil,
		HasSetup:    len(s.AuthenticationSetupData) > 0,
	}
}
