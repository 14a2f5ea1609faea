package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/Domenick1991/visitbooking/config"
	"github.com/Domenick1991/visitbooking/internal/auth"
	"github.com/Domenick1991/visitbooking/internal/bootstrap"
	"github.com/Domenick1991/visitbooking/internal/logger"
	"github.com/Domenick1991/visitbooking/internal/repository"
	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configPath string

func loadConfig() (*config.Config, error) {
	_ = godotenv.Load()

	path := configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "config.yaml"
	}
	return config.LoadConfig(path)
}

// withApp builds the booking service, runs fn and releases every resource.
func withApp(ctx context.Context, fn func(app *bootstrap.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := logger.New("warn", "console")
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	app, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close() //nolint:errcheck
	return fn(app)
}

func printJSON(w io.Writer, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the bookings schema if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(app *bootstrap.App) error {
				if err := repository.Migrate(cmd.Context(), app.Pool); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
				return nil
			})
		},
	}
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [booking-id]",
		Short: "Print a booking with its institution details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(app *bootstrap.App) error {
				view, err := app.Service.GetBookingDetails(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), view)
			})
		},
	}
}

func listCmd() *cobra.Command {
	var visitorID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a visitor's bookings, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(app *bootstrap.App) error {
				views, err := app.Service.ListVisitorBookings(cmd.Context(), visitorID)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "BOOKING\tINSTITUTION\tDATE\tTIME\tAMOUNT\tSTATUS")
				for _, v := range views {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s %s\t%s\n",
						v.BookingID, v.InstitutionName, v.VisitDate, v.VisitTime,
						v.Currency, v.Amount.StringFixed(2), v.Status)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&visitorID, "visitor", "", "visitor id")
	_ = cmd.MarkFlagRequired("visitor")
	return cmd
}

func cancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel [booking-id]",
		Short: "Cancel a pending or confirmed booking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(app *bootstrap.App) error {
				b, err := app.Service.CancelBooking(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", b.BookingID, b.Status)
				return nil
			})
		},
	}
}

func retryOrderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry-order [booking-id]",
		Short: "Open a new payment order for a pending booking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(app *bootstrap.App) error {
				order, err := app.Service.RetryOrder(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), order)
			})
		},
	}
}

func tokenCmd() *cobra.Command {
	var (
		claims auth.Claims
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token signed with the configured secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("auth.jwt_secret is required")
			}
			token, err := auth.NewIssuer(cfg.Auth.JWTSecret).CreateAccessToken(claims, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&claims.Sub, "sub", "", "visitor id")
	cmd.Flags().StringVar(&claims.Role, "role", auth.RoleVisitor, "role (visitor or admin)")
	cmd.Flags().StringVar(&claims.Email, "email", "", "email")
	cmd.Flags().StringVar(&claims.Name, "name", "", "display name")
	cmd.Flags().StringVar(&claims.Phone, "phone", "", "phone")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("sub")
	return cmd
}
