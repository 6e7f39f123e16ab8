package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/timmy/planscan/internal/config"
	"github.com/timmy/planscan/internal/document"
	"github.com/timmy/planscan/internal/logger"
	"github.com/timmy/planscan/internal/repository"
	"github.com/timmy/planscan/internal/service"
	"github.com/timmy/planscan/internal/storage"
)

type options struct {
	configPath string
	projectID  string
	estimateID string
	uploadID   string
	upload     bool
	output     string
}

func main() {
	appLogger := logger.New(&logger.Config{
		Level:       envOr("LOG_LEVEL", "warn"),
		Format:      envOr("LOG_FORMAT", "text"),
		Output:      os.Stderr,
		ServiceName: "planscan-cli",
	})
	logger.SetDefaultLogger(appLogger)

	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "parse [flags] FILE_REF...",
		Short: "Extract rooms and draft line items from blueprint files",
		Long: `Parse runs the plan understanding pipeline over one or more file references
and prints the resulting job as JSON. References may be local paths, file://,
http(s):// URLs, s3:// URIs or bare object storage keys.

The command exits non-zero when the parse job fails.`,
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, args)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "path to config file")
	f.StringVarP(&opts.projectID, "project", "p", "cli", "project ID recorded on the job")
	f.StringVar(&opts.estimateID, "estimate", "", "estimate ID recorded on the job")
	f.StringVar(&opts.uploadID, "upload-id", "", "reuse the uploaded job of this upload")
	f.BoolVar(&opts.upload, "upload", false, "upload local files to object storage first so the public URL strategy can use them")
	f.StringVarP(&opts.output, "output", "o", "", "write the JSON payload to this file instead of stdout")
	return cmd
}

func run(ctx context.Context, opts *options, refs []string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.SetComponent(ctx, "cli")

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	var objectStorage storage.ObjectStorage
	if cfg.Storage.Enabled() {
		if objectStorage, err = storage.NewStorage(cfg.Storage); err != nil {
			return fmt.Errorf("init storage: %w", err)
		}
	}

	if opts.upload {
		if objectStorage == nil {
			return fmt.Errorf("--upload requires object storage to be configured")
		}
		if refs, err = uploadLocal(ctx, objectStorage, refs); err != nil {
			return err
		}
	}

	inference, err := service.NewInferenceClient(cfg.Inference)
	if err != nil {
		return fmt.Errorf("init inference client: %w", err)
	}

	parseService := service.NewParseService(
		repository.NewParseJobRepository(db),
		service.NewPipeline(cfg, objectStorage, inference),
		cfg.Pipeline.JobTimeout,
	)

	job, parseErr := parseService.Parse(ctx, service.ParseRequest{
		ProjectID:  opts.projectID,
		EstimateID: opts.estimateID,
		UploadID:   opts.uploadID,
		FileRefs:   refs,
	})

	payload, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	payload = append(payload, '\n')
	if opts.output != "" {
		if err := os.WriteFile(opts.output, payload, 0644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	} else if _, err := os.Stdout.Write(payload); err != nil {
		return err
	}

	if parseErr != nil {
		return fmt.Errorf("parse job %s failed (%s): %w", job.ID, job.ErrorCode, parseErr)
	}
	return nil
}

// uploadLocal stores existing local files under a fresh upload prefix and
// returns object storage keys in their place. Other references pass through.
func uploadLocal(ctx context.Context, store storage.ObjectStorage, refs []string) ([]string, error) {
	prefix := "uploads/" + uuid.New().String()
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		path := strings.TrimPrefix(ref, "file://")
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			out = append(out, ref)
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		detected, err := document.DetectKind(path, "", data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}

		key := prefix + "/" + filepath.Base(path)
		if err := store.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), detected.MIMEType); err != nil {
			return nil, fmt.Errorf("upload %s: %w", path, err)
		}
		logger.FromContext(ctx).WithFields(logger.Fields{"file": path, "key": key}).Info("Uploaded file")
		out = append(out, key)
	}
	return out, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
