package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/labtrack/lims/internal/adapters/database"
	"github.com/labtrack/lims/internal/application/services"
	"github.com/labtrack/lims/internal/bootstrap"
	"github.com/labtrack/lims/internal/domain/entities"
	"github.com/labtrack/lims/internal/infrastructure/clients/postgres"
	"github.com/labtrack/lims/internal/infrastructure/observability"
	"github.com/labtrack/lims/pkg/config"
	apperrors "github.com/labtrack/lims/pkg/errors"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	observability.InitLoggerTo(os.Stderr, "labctl", cfg.Env)
	return cfg, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending PostgreSQL schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			client, err := postgres.NewClient(ctx, &cfg.Database)
			if err != nil {
				return err
			}
			defer client.Close()

			count, err := database.NewMigrator(client).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s).\n", count)
			return nil
		},
	}
}

// openServices connects the configured backends. Seeding an in-memory store is
// pointless, so commands that write require postgres.
func openServices(ctx context.Context, cmd *cobra.Command, requirePostgres bool) (*bootstrap.Services, *bootstrap.Infrastructure, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if requirePostgres && cfg.Store.Backend != config.StoreBackendPostgres {
		return nil, nil, fmt.Errorf("%s requires STORE_BACKEND=postgres", cmd.Name())
	}
	cat, err := loadCatalog(cmd)
	if err != nil {
		return nil, nil, err
	}

	infra, err := bootstrap.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	svc, err := bootstrap.NewServices(infra, cat, cfg.Auth, nil)
	if err != nil {
		_ = infra.Close()
		return nil, nil, err
	}
	return svc, infra, nil
}

type seedPatient struct {
	patient entities.Patient
	tests   []services.ResultInput
}

func seedPatients() []seedPatient {
	return []seedPatient{
		{
			patient: entities.Patient{FirstName: "Juan", LastName: "Dela Cruz", Age: 40, Sex: "M"},
			tests: []services.ResultInput{
				{Section: "CLINICAL CHEMISTRY", TestName: "Blood Glucose", ResultValue: "95"},
				{Section: "HEMATOLOGY", TestName: "ESR", ResultValue: "12"},
			},
		},
		{
			patient: entities.Patient{FirstName: "Maria", MiddleName: "Clara", LastName: "Reyes", Age: 33, Sex: "F"},
			tests: []services.ResultInput{
				{Section: "SEROLOGY", TestName: "Dengue Test", ResultValue: "Negative"},
			},
		},
		{
			patient: entities.Patient{FirstName: "Jose", LastName: "Mercado", Age: 58, Sex: "M"},
			tests: []services.ResultInput{
				{Section: "CLINICAL CHEMISTRY", TestName: "Creatinine", ResultValue: "1.6"},
				{Section: "CLINICAL CHEMISTRY", TestName: "Uric Acid", ResultValue: "8.1"},
			},
		},
	}
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create demo accounts, patients and results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, _ := cmd.Flags().GetString("password")
			ctx, cancel := signalContext()
			defer cancel()

			svc, infra, err := openServices(ctx, cmd, true)
			if err != nil {
				return err
			}
			defer infra.Close()
			out := cmd.OutOrStdout()

			for _, in := range []services.UserInput{
				{Name: "Dr. Maria Santos", Email: "director@labtrack.local", Role: entities.UserRoleFaculty, Department: "Laboratory", Password: password},
				{Name: "Ana Villanueva", Email: "medtech@labtrack.local", Role: entities.UserRoleMember, Department: "Hematology", Password: password},
			} {
				if _, err := infra.Users.GetByEmail(ctx, in.Email); err == nil {
					fmt.Fprintf(out, "user %s exists, skipped\n", in.Email)
					continue
				} else if !apperrors.IsNotFound(err) {
					return err
				}
				if _, err := svc.Users.Create(ctx, in, entities.SystemActor); err != nil {
					return fmt.Errorf("create user %s: %w", in.Email, err)
				}
				fmt.Fprintf(out, "created %s account %s\n", in.Role, in.Email)
			}

			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(4)
			for _, sp := range seedPatients() {
				g.Go(func() error {
					patient := sp.patient
					reg, err := svc.Patients.Register(gctx, &patient, entities.SystemActor)
					if err != nil {
						return fmt.Errorf("register %s: %w", patient.FullName(), err)
					}
					for _, test := range sp.tests {
						test.PatientID = reg.Patient.ID
						test.PatientName = reg.Patient.FullName()
						if _, err := svc.Results.Create(gctx, test, entities.SystemActor); err != nil {
							return fmt.Errorf("add %s for %s: %w", test.TestName, patient.FullName(), err)
						}
					}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			summary, err := svc.Billing.Aggregate(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "seeded %d patients; ledger unpaid ₱%.2f across %d entries\n",
				len(seedPatients()), summary.TotalUnpaid, summary.UnpaidCount)
			return nil
		},
	}
	cmd.Flags().String("password", "demo-password", "password for the seeded accounts")
	return cmd
}

func reindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Push every patient to the search index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			svc, infra, err := openServices(ctx, cmd, true)
			if err != nil {
				return err
			}
			defer infra.Close()

			n, err := svc.Patients.Reindex(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d patient(s)\n", n)
			return nil
		},
	}
}
