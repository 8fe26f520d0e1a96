// Package scheduler runs periodic background jobs
package scheduler

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/healthiphi/founder-pass/app/dto"
	businessflow "github.com/healthiphi/founder-pass/business_flow"
)

const reconcileRunTimeout = 30 * time.Second

// VaultReconciler periodically compares the vault aggregate with the active pledges
type VaultReconciler struct {
	flow     businessflow.VaultFlow
	interval time.Duration
	repair   bool
	logger   *log.Logger
}

func NewVaultReconciler(flow businessflow.VaultFlow, interval time.Duration, repair bool, logger *log.Logger) *VaultReconciler {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if logger == nil {
		logger = log.New(os.Stdout, "scheduler ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
	}
	return &VaultReconciler{
		flow:     flow,
		interval: interval,
		repair:   repair,
		logger:   logger,
	}
}

// Start launches the reconcile loop in a background goroutine and returns a stop function.
// The stop function blocks until the running pass has returned.
func (s *VaultReconciler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	go func() {
		defer close(done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func (s *VaultReconciler) runOnce(parent context.Context) *dto.ReconcileVaultResponse {
	ctx, cancel := context.WithTimeout(parent, reconcileRunTimeout)
	defer cancel()

	report, err := s.flow.Reconcile(ctx, s.repair, &businessflow.ClientMetadata{UserAgent: "vault-reconciler"})
	if err != nil {
		s.logger.Printf("vault reconcile failed: %v", err)
		return nil
	}
	if report.Drift {
		s.logger.Printf("vault drift detected: stored %d/%d actual %d/%d repaired=%t",
			report.StoredPledges, report.StoredSeats, report.ActualPledges, report.ActualSeats, report.Repaired)
	}
	return report
}
