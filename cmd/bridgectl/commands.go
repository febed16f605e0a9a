package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/desk-bridge/internal/auth"
	"github.com/spec-kit/desk-bridge/internal/config"
	"github.com/spec-kit/desk-bridge/internal/telegram"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "bridgectl",
		Short:         "Operate the Telegram to Zoho Desk bridge.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newWebhookCmd(), newTokenCmd())
	return root
}

func newWebhookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Register or inspect the bot webhook.",
	}

	set := &cobra.Command{
		Use:   "set",
		Short: "Point the bot at <base-url>/telegram-webhook.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, bot, err := loadBot()
			if err != nil {
				return err
			}
			base, _ := cmd.Flags().GetString("url")
			if base == "" {
				base = cfg.App.WebhookURL
			}
			target, err := telegram.WebhookURL(base)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Telegram.Timeout())
			defer cancel()
			if err := bot.SetWebhook(ctx, target); err != nil {
				return fmt.Errorf("set webhook: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "webhook set to %s\n", target)
			return nil
		},
	}
	set.Flags().String("url", "", "Public base URL of the bridge (defaults to WEBHOOK_URL).")

	info := &cobra.Command{
		Use:   "info",
		Short: "Print the webhook Telegram currently has registered.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, bot, err := loadBot()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Telegram.Timeout())
			defer cancel()
			info, err := bot.WebhookInfo(ctx)
			if err != nil {
				return fmt.Errorf("get webhook info: %w", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		},
	}

	cmd.AddCommand(set, info)
	return cmd
}

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage admin API tokens.",
	}

	issue := &cobra.Command{
		Use:   "issue",
		Short: "Sign an admin token with ADMIN_JWT_SECRET.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			operator, _ := cmd.Flags().GetString("operator")
			rawScopes, _ := cmd.Flags().GetStringSlice("scope")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			scopes, err := parseScopes(rawScopes)
			if err != nil {
				return err
			}
			ttlMinutes := cfg.Auth.AdminTokenTTLMinutes
			if ttl > 0 {
				ttlMinutes = int(ttl / time.Minute)
			}
			token, expires, err := auth.NewTokenManager(cfg.Auth.AdminJWTSecret, ttlMinutes).GenerateToken(operator, scopes)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expires.UTC().Format(time.RFC3339))
			return nil
		},
	}
	issue.Flags().String("operator", "operator", "Name recorded in the token subject.")
	issue.Flags().StringSlice("scope", nil, "Scopes to grant (webhook:read, webhook:write, journal:read). Defaults to all.")
	issue.Flags().Duration("ttl", 0, "Token lifetime (defaults to ADMIN_TOKEN_TTL_MINUTES).")

	cmd.AddCommand(issue)
	return cmd
}

func loadBot() (*config.Config, *telegram.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Telegram.Configured() {
		return nil, nil, errors.New("TELEGRAM_BOT_TOKEN and TELEGRAM_GROUP_CHAT_ID must be set")
	}
	bot, err := telegram.New(cfg.Telegram, zap.NewNop())
	if err != nil {
		return nil, nil, err
	}
	return cfg, bot, nil
}

func parseScopes(raw []string) ([]auth.Scope, error) {
	known := make(map[auth.Scope]struct{}, len(auth.AllScopes))
	for _, s := range auth.AllScopes {
		known[s] = struct{}{}
	}
	scopes := make([]auth.Scope, 0, len(raw))
	for _, r := range raw {
		scope := auth.Scope(r)
		if _, ok := known[scope]; !ok {
			return nil, fmt.Errorf("unknown scope %q", r)
		}
		scopes = append(scopes, scope)
	}
	return scopes, nil
}
