package main

import (
	"context"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/spf13/cobra"

	"tracker-api/internal/db"
	"tracker-api/internal/httpx/auth"
	"tracker-api/internal/httpx/mw"
	"tracker-api/internal/store"
)

func newTokenCommand() *cobra.Command {
	var userID, email string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token for an existing user (development)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (userID == "") == (email == "") {
				return goerr.New("exactly one of --user or --email is required")
			}
			cfg, _, apClose, err := loadConfig()
			defer apClose()
			if err != nil {
				return err
			}
			if email != "" {
				drv, closeDB, err := db.Open(cfg)
				if err != nil {
					return err
				}
				defer closeDB()
				ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
				defer cancel()
				u, err := store.New(drv).UserByEmail(ctx, email)
				if err != nil {
					return goerr.Wrap(err, "lookup user", goerr.V("email", email))
				}
				userID = u.ID
			}
			tok, err := auth.SignAccess(cfg, userID, mw.KindUser)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&email, "email", "", "user email")
	return cmd
}
