package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinicbook/clinic/internal/config"
	"github.com/clinicbook/clinic/internal/platform/db"
	"github.com/clinicbook/clinic/migrations"
)

func main() {
	root := &cobra.Command{
		Use:          "clinic-server",
		Short:        "Clinic appointment booking API",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(), migrateCmd(), seedCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(*cobra.Command, []string) error {
			return runServer()
		},
	}
}

// withPool loads the config and runs fn against a fresh pool.
func withPool(fn func(ctx context.Context, pool *pgxpool.Pool) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := newLogger(cfg.Env).WithContext(context.Background())
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer pool.Close()
	return fn(ctx, pool)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withPool(func(ctx context.Context, pool *pgxpool.Pool) error {
				n, err := db.NewMigrator(pool, migrations.FS).Up(ctx)
				if err != nil {
					return fmt.Errorf("migrate up: %w", err)
				}
				cmd.Printf("%d migration(s) applied\n", n)
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withPool(func(ctx context.Context, pool *pgxpool.Pool) error {
				statuses, err := db.NewMigrator(pool, migrations.FS).Status(ctx)
				if err != nil {
					return fmt.Errorf("migrate status: %w", err)
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED AT")
				for _, st := range statuses {
					applied := "pending"
					if st.Applied && st.AppliedAt != nil {
						applied = st.AppliedAt.Format(time.RFC3339)
					}
					fmt.Fprintf(w, "%03d\t%s\t%s\n", st.Version, st.Name, applied)
				}
				return w.Flush()
			})
		},
	})
	return cmd
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert the default specialties and an admin account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			email, _ := cmd.Flags().GetString("admin-email")
			password, _ := cmd.Flags().GetString("admin-password")
			name, _ := cmd.Flags().GetString("admin-name")
			phone, _ := cmd.Flags().GetString("admin-phone")

			return withPool(func(ctx context.Context, pool *pgxpool.Pool) error {
				return seed(ctx, newSeeder(pool), seedAdmin{Email: email, Password: password, Name: name, Phone: phone})
			})
		},
	}
	cmd.Flags().String("admin-email", "admin@clinic.local", "Email of the seeded admin")
	cmd.Flags().String("admin-password", "", "Password of the seeded admin (required)")
	cmd.Flags().String("admin-name", "Clinic Admin", "Display name of the seeded admin")
	cmd.Flags().String("admin-phone", "+10000000000", "Phone number of the seeded admin")
	return cmd
}
