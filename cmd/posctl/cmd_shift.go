package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"posgo/backend/internal/domain"
	"posgo/backend/internal/ledger"
	"posgo/backend/internal/service"
	"posgo/backend/internal/store"
	"posgo/backend/internal/store/memory"
)

var (
	storeID   string
	shiftID   string
	fixDrift  bool
	outPath   string
	outFormat string
)

func init() {
	for _, c := range []*cobra.Command{reconcileCmd, exportShiftCmd} {
		c.Flags().StringVar(&storeID, "store", "", "store id (defaults to the demo store with --demo)")
		c.Flags().StringVar(&shiftID, "shift", "", "shift id")
		_ = c.MarkFlagRequired("shift")
	}
	reconcileCmd.Flags().BoolVar(&fixDrift, "fix", false, "rewrite drifted shift totals from the transaction log")
	exportShiftCmd.Flags().StringVar(&outPath, "out", "", "output file (defaults to the document file name)")
	exportShiftCmd.Flags().StringVar(&outFormat, "format", "xlsx", "text, html, escpos or xlsx")
}

// operatorContext carries a store-scoped admin actor for maintenance runs.
func operatorContext(ctx context.Context, id string) (context.Context, error) {
	if id == "" && demoMode {
		id = memory.DemoStoreID
	}
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("--store is required")
	}
	return service.WithActor(ctx, domain.Actor{
		UserID:  "posctl",
		Name:    "posctl",
		Role:    domain.RoleAdmin,
		StoreID: id,
	}), nil
}

func withService(cmd *cobra.Command, run func(ctx context.Context, svc *service.Service) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	data, closeFn, zl, err := bootStore(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, err = operatorContext(ctx, storeID)
	if err != nil {
		return err
	}
	return run(ctx, newService(data, zl))
}

func newService(data store.DataStore, zl *zap.Logger) *service.Service {
	return service.New(data, service.WithLogger(zl))
}

// posctl reconcile --store S --shift X [--fix]
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Compare a shift's running totals with its transactions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, svc *service.Service) error {
			return runReconcile(ctx, svc, shiftID, fixDrift, cmd.OutOrStdout())
		})
	},
}

func runReconcile(ctx context.Context, svc *service.Service, id string, fix bool, out io.Writer) error {
	drift, err := svc.ReconcileShift(ctx, id, fix)
	if err != nil {
		return err
	}
	balanced := ledger.Balanced(drift)
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"drift":    drift,
		"balanced": balanced,
		"fixed":    fix && !balanced,
	})
}

// posctl export-shift --store S --shift X --out report.xlsx
var exportShiftCmd = &cobra.Command{
	Use:   "export-shift",
	Short: "Write a shift report document to disk",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, svc *service.Service) error {
			path, err := runExportShift(ctx, svc, shiftID, outFormat, outPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		})
	},
}

func runExportShift(ctx context.Context, svc *service.Service, id, format, path string) (string, error) {
	doc, err := svc.RenderShiftReport(ctx, id, format)
	if err != nil {
		return "", err
	}
	if path == "" {
		path = doc.FileName
	}
	if err := os.WriteFile(path, doc.Body, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
