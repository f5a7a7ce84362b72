package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/netoho/hestia-app-staging-sub001/internal/actor"
	actorrepo "github.com/netoho/hestia-app-staging-sub001/internal/actor/repo"
	"github.com/netoho/hestia-app-staging-sub001/internal/address"
	"github.com/netoho/hestia-app-staging-sub001/internal/document"
	docrepo "github.com/netoho/hestia-app-staging-sub001/internal/document/repo"
	"github.com/netoho/hestia-app-staging-sub001/internal/notification"
	"github.com/netoho/hestia-app-staging-sub001/internal/policy"
	policyrepo "github.com/netoho/hestia-app-staging-sub001/internal/policy/repo"
	"github.com/netoho/hestia-app-staging-sub001/internal/router"
	"github.com/netoho/hestia-app-staging-sub001/internal/staff"
	staffrepo "github.com/netoho/hestia-app-staging-sub001/internal/staff/repo"
	"github.com/netoho/hestia-app-staging-sub001/pkg/database"
	"github.com/netoho/hestia-app-staging-sub001/pkg/utilities"
)

func main() {
	root := &cobra.Command{
		Use:           "hestia",
		Short:         "Rental guarantee policy platform",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), migrateCmd(), createStaffCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap loads env, the logger and the database connection shared by
// every subcommand.
func bootstrap() (*zap.SugaredLogger, *sqlx.DB, error) {
	// best-effort: if no .env exists, continue with real env
	_ = godotenv.Load()

	lg, err := utilities.InitLogger(utilities.LogConfigFromEnv())
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	sugar := lg.Sugar()

	sqlDB, err := database.Connect(database.ConfigFromEnv())
	if err != nil {
		return nil, nil, fmt.Errorf("db connect: %w", err)
	}
	return sugar, sqlx.NewDb(sqlDB, "postgres"), nil
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			sugar, db, err := bootstrap()
			if err != nil {
				return err
			}
			defer db.Close()
			defer sugar.Sync()

			sugar.Info("starting hestia api")

			actorRepo := actorrepo.NewActorRepo(db)
			actorSvc := actor.NewService(actorRepo, sugar,
				actor.ReferenceWriteMode(os.Getenv("REFERENCE_WRITE_MODE")))

			staffSvc := staff.NewService(db, staff.BcryptHasher{}, staff.SecretFromEnv())

			notifier := &notification.LogNotifier{Logger: sugar}
			policySvc := policy.NewService(policyrepo.NewPolicyRepo(db), actorRepo, notifier, sugar)

			docSvc := document.NewService(docrepo.NewDocumentRepo(db), document.PresignerFromEnv(), sugar)

			addrProvider := address.NewProvider(address.ConfigFromEnv())

			handler := router.RegisterRoutes(sugar, router.Handlers{
				Staff:     staff.NewHandler(staffSvc, sugar),
				Sessions:  staffSvc,
				Actors:    actor.NewHandler(actorSvc, sugar),
				Policies:  policy.NewHandler(policySvc, sugar),
				Documents: document.NewHandler(docSvc, actorSvc, sugar),
				Address:   address.NewHandler(addrProvider, sugar),
			})

			srv := &http.Server{Addr: addr, Handler: handler}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			go func() {
				sugar.Infow("listening", "addr", addr)
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					sugar.Fatalf("http server failed: %v", err)
				}
			}()

			<-ctx.Done()
			sugar.Info("shutting down")

			doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(doneCtx); err != nil {
				sugar.Warnf("http server shutdown failed: %v", err)
			}
			sugar.Info("goodbye")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "0.0.0.0:8431", "listen address")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			sugar, db, err := bootstrap()
			if err != nil {
				return err
			}
			defer db.Close()
			defer sugar.Sync()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			if err := actorrepo.NewActorRepo(db).EnsureTables(ctx); err != nil {
				return fmt.Errorf("actor tables: %w", err)
			}
			if err := docrepo.NewDocumentRepo(db).EnsureTable(ctx); err != nil {
				return fmt.Errorf("document table: %w", err)
			}
			if err := policyrepo.NewPolicyRepo(db).EnsureTable(ctx); err != nil {
				return fmt.Errorf("policy table: %w", err)
			}
			if err := staffrepo.NewStaffRepo(db).EnsureTable(ctx); err != nil {
				return fmt.Errorf("staff table: %w", err)
			}
			sugar.Info("schema up to date")
			return nil
		},
	}
}

func createStaffCmd() *cobra.Command {
	var email, password, name, role string
	cmd := &cobra.Command{
		Use:   "create-staff",
		Short: "Create a back-office account",
		RunE: func(cmd *cobra.Command, args []string) error {
			sugar, db, err := bootstrap()
			if err != nil {
				return err
			}
			defer db.Close()
			defer sugar.Sync()

			svc := staff.NewService(db, staff.BcryptHasher{}, staff.SecretFromEnv())
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			st, err := svc.CreateStaff(ctx, email, name, password, role)
			if err != nil {
				return err
			}
			sugar.Infow("staff created", "id", st.ID, "email", st.Email, "role", st.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&password, "password", "", "initial password")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&role, "role", "OPERATIONS", "ADMIN or OPERATIONS")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
