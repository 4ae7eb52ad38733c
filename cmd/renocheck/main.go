package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/vbonduro/renocheck/internal/blobstore"
	"github.com/vbonduro/renocheck/internal/blobstore/local"
	"github.com/vbonduro/renocheck/internal/blobstore/s3"
	"github.com/vbonduro/renocheck/internal/checklist"
	"github.com/vbonduro/renocheck/internal/config"
	"github.com/vbonduro/renocheck/internal/crm"
	"github.com/vbonduro/renocheck/internal/db"
	"github.com/vbonduro/renocheck/internal/domain"
	"github.com/vbonduro/renocheck/internal/inspection"
	"github.com/vbonduro/renocheck/internal/logging"
	"github.com/vbonduro/renocheck/internal/metrics"
	"github.com/vbonduro/renocheck/internal/retry"
	"github.com/vbonduro/renocheck/internal/store"
	"github.com/vbonduro/renocheck/internal/web"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "renocheck: %v\n", err)
		os.Exit(1)
	}
}

// app holds what every subcommand needs. It is filled in by the root
// command's PersistentPreRunE.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	cleanup func()
}

func newRootCommand() *cobra.Command {
	a := &app{cleanup: func() {}}
	var dbPath string
	cmd := &cobra.Command{
		Use:   "renocheck",
		Short: "Inspection checklist sync service",
		Long: `renocheck keeps renovation inspection checklists in sync with the relational store,
uploads their photos and videos, and reports finalized inspections to the CRM.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.cfg = config.Load()
			if dbPath != "" {
				a.cfg.DBPath = dbPath
			}
			logger, cleanup, err := logging.New(a.cfg.LogLevel, a.cfg.LogFormat, a.cfg.LogFile)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			a.logger, a.cleanup = logger, cleanup
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.cleanup()
		},
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (overrides DB_PATH)")
	cmd.AddCommand(
		newServeCmd(a),
		newMigrateCmd(a),
		newValidateCmd(a),
		newPropertyCmd(a),
	)
	return cmd
}

func (a *app) openDB() (*sql.DB, func(), error) {
	database, err := db.Open(a.cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	closeDB := func() {
		if err := database.Close(); err != nil {
			a.logger.Error("failed to close database", "error", err)
		}
	}
	return database, closeDB, nil
}

// newDeps builds the collaborators shared by every inspection session.
func (a *app) newDeps(ctx context.Context, database *sql.DB, m *metrics.Metrics) (inspection.Deps, error) {
	caps, err := store.ProbeSchema(ctx, database)
	if err != nil {
		return inspection.Deps{}, err
	}
	if !caps.InspectionType {
		a.logger.Warn("inspections table has no inspection_type column, falling back to the latest inspection per property")
	}

	blobs, err := a.newBlobStore(ctx)
	if err != nil {
		return inspection.Deps{}, err
	}

	deps := inspection.Deps{
		Properties:        store.NewPropertyStore(database),
		Inspections:       store.NewInspectionStore(database, caps),
		Zones:             store.NewZoneStore(database),
		Elements:          store.NewElementStore(database),
		Blobs:             blobs,
		Logger:            a.logger,
		Metrics:           m,
		UploadConcurrency: a.cfg.UploadConcurrency,
		AutosaveDelay:     a.cfg.AutosaveDelay,
	}
	if a.cfg.CRMEnabled() {
		policy := retry.Policy{
			MaxAttempts: a.cfg.CRMMaxAttempts,
			Backoff:     retry.Exponential(a.cfg.CRMBackoff, 10*time.Second),
		}
		fields := crm.Fields{
			VisitDate: a.cfg.CRMFieldVisitDate,
			Status:    a.cfg.CRMFieldStatus,
			Progress:  a.cfg.CRMFieldProgress,
		}
		deps.CRM = crm.NewFinalizer(crm.NewClient(a.cfg), fields, policy, a.logger, m)
		a.logger.Info("CRM sync enabled", "base_url", a.cfg.CRMBaseURL, "table", a.cfg.CRMTable)
	} else {
		a.logger.Info("CRM sync disabled")
	}
	return deps, nil
}

func (a *app) newBlobStore(ctx context.Context) (blobstore.Store, error) {
	switch a.cfg.BlobBackend {
	case "s3":
		st, err := s3.New(a.cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize s3 blob store: %w", err)
		}
		// A missing bucket is not fatal: attachments stay inline until it exists.
		if err := st.CheckBucket(ctx); err != nil {
			a.logger.Warn("blob bucket unavailable", "bucket", a.cfg.S3Bucket, "error", err)
		}
		a.logger.Info("using s3 blob store", "endpoint", a.cfg.S3Endpoint, "bucket", a.cfg.S3Bucket)
		return st, nil
	case "local":
		st, err := local.New(a.cfg.BlobPath, a.cfg.BlobURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize local blob store: %w", err)
		}
		a.logger.Info("using local blob store", "path", a.cfg.BlobPath)
		return st, nil
	default:
		return nil, fmt.Errorf("unknown BLOB_BACKEND %q", a.cfg.BlobBackend)
	}
}

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if addr != "" {
				a.cfg.ListenAddr = addr
			}

			database, closeDB, err := a.openDB()
			if err != nil {
				return err
			}
			defer closeDB()

			m := metrics.New(prometheus.DefaultRegisterer)
			deps, err := a.newDeps(ctx, database, m)
			if err != nil {
				return err
			}
			manager, err := inspection.NewManager(deps, a.cfg.SessionCacheSize)
			if err != nil {
				return err
			}
			defer manager.Close()

			var files web.FileOpener
			if st, ok := deps.Blobs.(*local.Store); ok {
				files = st
			}
			server := web.NewServer(manager, files, m, prometheus.DefaultGatherer, a.logger)
			return server.ListenAndServe(ctx, a.cfg.ListenAddr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides LISTEN_ADDR)")
	return cmd
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and print the schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			database, closeDB, err := a.openDB()
			if err != nil {
				return err
			}
			defer closeDB()

			version, dirty, err := db.Version(database)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty: %t)\n", version, dirty)
			return nil
		},
	}
}

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <propertyID> <initial|intermediate|final>",
		Short: "Print progress and the first incomplete section of an inspection",
		Long: `validate reports on an existing inspection and never creates one. Zones missing
from that inspection are still created, as they are when the inspection is opened.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			t, err := checklist.ParseType(args[1])
			if err != nil {
				return err
			}

			database, closeDB, err := a.openDB()
			if err != nil {
				return err
			}
			defer closeDB()

			key := inspection.Key{PropertyID: args[0], Type: t}
			if _, err := lookupInspection(ctx, database, key); err != nil {
				return err
			}
			deps, err := a.newDeps(ctx, database, nil)
			if err != nil {
				return err
			}
			sess := inspection.NewSession(deps, key)
			defer sess.Close()
			if err := sess.Initialize(ctx); err != nil {
				return err
			}

			doc := sess.Document()
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"inspectionId": sess.Inspection().ID,
				"progress":     checklist.Progress(doc),
				"incomplete":   checklist.FirstIncompleteSection(doc),
			})
		},
	}
}

// lookupInspection finds the inspection a read-only command reports on.
func lookupInspection(ctx context.Context, database *sql.DB, key inspection.Key) (*domain.Inspection, error) {
	caps, err := store.ProbeSchema(ctx, database)
	if err != nil {
		return nil, err
	}
	in, err := store.NewInspectionStore(database, caps).FindLatest(ctx, key.PropertyID, string(key.Type))
	if err != nil {
		return nil, err
	}
	if in == nil {
		return nil, fmt.Errorf("no %s inspection for property %q", key.Type, key.PropertyID)
	}
	return in, nil
}

func newPropertyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "property",
		Short: "Manage properties",
	}

	var p domain.Property
	add := &cobra.Command{
		Use:   "add",
		Short: "Register a property so inspections can be opened for it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			database, closeDB, err := a.openDB()
			if err != nil {
				return err
			}
			defer closeDB()

			created, err := store.NewPropertyStore(database).Create(cmd.Context(), &p)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), created.ID)
			return nil
		},
	}
	add.Flags().StringVar(&p.ID, "id", "", "Property id (generated when empty)")
	add.Flags().StringVar(&p.UniqueID, "unique-id", "", "Business key shared with the CRM")
	add.Flags().StringVar(&p.Address, "address", "", "Street address")
	add.Flags().IntVar(&p.Bedrooms, "bedrooms", 0, "Number of bedrooms")
	add.Flags().IntVar(&p.Bathrooms, "bathrooms", 0, "Number of bathrooms")
	add.Flags().BoolVar(&p.HasElevator, "elevator", false, "Building has an elevator")
	cmd.AddCommand(add)
	return cmd
}
