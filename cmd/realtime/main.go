package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/amoylab/hublink/internal/auth/jwt"
	"github.com/amoylab/hublink/internal/common/config"
	"github.com/amoylab/hublink/pkg/version"
)

var (
	configPath string

	chatOpts  chatOptions
	tokenOpts tokenOptions

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of realtime",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "realtime version %s\n", version.Get())
		},
	}

	testCmd = &cobra.Command{
		Use:   "test",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfgPath, err := config.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("configuration file %s is invalid: %w", cfgPath, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration file %s is valid\n", cfgPath)
			return nil
		},
	}

	tokenCmd = &cobra.Command{
		Use:   "token",
		Short: "Issue a development credential for a local bus",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := jwt.NewService(jwt.Config{
				SecretKey: tokenOpts.secret,
				Duration:  tokenOpts.ttl,
				Issuer:    "realtime-cli",
			})
			if err != nil {
				return err
			}
			tok, err := svc.GenerateToken(tokenOpts.subject, tokenOpts.email, tokenOpts.name, tokenOpts.role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	chatCmd = &cobra.Command{
		Use:   "chat",
		Short: "Join a conversation and chat from the terminal",
		Long: `Connects to the message bus, authenticates, joins a conversation room and
prints inbound events. Every line read from stdin is sent as a message;
lines starting with a slash are commands (/join, /leave, /conversations,
/unread, /quit).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, chatOpts)
		},
	}

	rootCmd = &cobra.Command{
		Use:          "realtime",
		Short:        "Realtime session client",
		Long:         `Realtime session client for the marketplace message bus`,
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "conf", "c", "realtime.yaml", "path to configuration file")

	chatCmd.Flags().StringVar(&chatOpts.user, "user", "", "user id; derived from the credential when empty")
	chatCmd.Flags().StringVar(&chatOpts.token, "token", "", "bearer credential; overrides auth.token")
	chatCmd.Flags().StringVar(&chatOpts.room, "room", "", "conversation to join")
	chatCmd.Flags().StringVar(&chatOpts.email, "email", "", "sender email attached to messages")
	chatCmd.Flags().StringVar(&chatOpts.name, "name", "", "display name used in typing indicators")

	tokenCmd.Flags().StringVar(&tokenOpts.subject, "subject", "", "user id to put in the sub claim")
	tokenCmd.Flags().StringVar(&tokenOpts.secret, "secret", os.Getenv("REALTIME_DEV_SECRET"), "HS256 signing secret (at least 32 characters)")
	tokenCmd.Flags().DurationVar(&tokenOpts.ttl, "ttl", 24*time.Hour, "credential lifetime")
	tokenCmd.Flags().StringVar(&tokenOpts.email, "email", "", "email claim")
	tokenCmd.Flags().StringVar(&tokenOpts.name, "name", "", "name claim")
	tokenCmd.Flags().StringVar(&tokenOpts.role, "role", "customer", "role claim")

	rootCmd.AddCommand(versionCmd, testCmd, tokenCmd, chatCmd)
}

type tokenOptions struct {
	subject string
	secret  string
	ttl     time.Duration
	email   string
	name    string
	role    string
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
