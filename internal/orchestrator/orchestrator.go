// Package orchestrator implements the update/launch orchestrator (C7): the
// top-level state machine tying the slot store, version oracle, update
// fetcher, manifest verifier and process supervisor together, per the
// bootstrap / refresh / start-with-fallback / double-try sequence in
// SPEC_FULL §4.7. Errors never propagate out of the refresh phase; they are
// recorded as status and the orchestrator proceeds to the start phase,
// matching the propagation policy in §7/§12.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"

	"github.com/meinefirma/meineapp-launcher/internal/apperrors"
	"github.com/meinefirma/meineapp-launcher/internal/manifest"
	"github.com/meinefirma/meineapp-launcher/internal/slotstore"
	"github.com/meinefirma/meineapp-launcher/internal/supervisor"
	"github.com/meinefirma/meineapp-launcher/internal/updatefetcher"
	"github.com/meinefirma/meineapp-launcher/internal/versionoracle"
)

const manifestFileName = "manifest.json"

// Orchestrator runs a single launcher cycle: bootstrap, refresh the
// inactive slot, then start the active slot with fallback to the inactive
// one.
type Orchestrator struct {
	store    *slotstore.Store
	verifier *manifest.Verifier
	fetcher  *updatefetcher.Fetcher
	log      hclog.Logger

	status chan string
}

// New wires the slot store, manifest verifier and update fetcher into an
// Orchestrator.
// statusBufferSize sizes the StatusMessage channel described in SPEC_FULL
// §4.7/§9 — one send per phase transition, never a self-rescheduling poll.
func New(store *slotstore.Store, verifier *manifest.Verifier, fetcher *updatefetcher.Fetcher, log hclog.Logger, statusBufferSize int) *Orchestrator {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Orchestrator{
		store:    store,
		verifier: verifier,
		fetcher:  fetcher,
		log:      log.Named("orchestrator"),
		status:   make(chan string, statusBufferSize),
	}
}

// Status returns the read side of the StatusMessage channel. A single
// long-lived consumer (started by the CLI entry point) should drain this
// for the lifetime of the process.
func (o *Orchestrator) Status() <-chan string {
	return o.status
}

func (o *Orchestrator) setStatus(msg string) {
	o.log.Info("status", "message", msg)
	select {
	case o.status <- msg:
	default:
		// Buffer full: drop this message rather than block the state
		// machine on a slow consumer. The log line above is the durable
		// record either way.
	}
}

// RunFn spawns a slot's executable and returns its Supervisor; swapped out
// in tests so the orchestrator's fallback logic can be exercised without a
// real executable.
type RunFn func(ctx context.Context, slotDir string) (*supervisor.Supervisor, error)

// Result is the outcome of a single orchestrator run.
type Result struct {
	Started     bool
	StartedSlot slotstore.Slot
	Supervisor  *supervisor.Supervisor
	Wiped       bool
}

// Run executes the bootstrap + refresh + start-with-fallback sequence once.
// If start-with-fallback reports no slot startable, RunDoubleTry should be
// used instead to get the second-attempt policy from SPEC_FULL §4.7.
func (o *Orchestrator) Run(ctx context.Context, run RunFn) (Result, error) {
	active, err := o.store.ReadActive()
	if err != nil {
		return Result{}, fmt.Errorf("bootstrap failed: %w", err)
	}
	o.setStatus(fmt.Sprintf("bootstrap complete, active=%s", active))

	o.refreshInactive(active)

	return o.startWithFallback(ctx, run)
}

// RunDoubleTry implements the top-level double-try policy: start-with-fallback
// once; if nothing started, refresh the inactive slot again and retry once
// more before giving up and wiping all slot state.
func (o *Orchestrator) RunDoubleTry(ctx context.Context, run RunFn) (Result, error) {
	result, err := o.Run(ctx, run)
	if err != nil {
		return result, err
	}
	if result.Started {
		return result, nil
	}

	o.setStatus("first attempt produced no startable slot, retrying")
	active, err := o.store.ReadActive()
	if err != nil {
		return Result{}, fmt.Errorf("bootstrap failed on retry: %w", err)
	}
	o.refreshInactive(active)

	result, err = o.startWithFallback(ctx, run)
	if err != nil {
		return result, err
	}
	if result.Started {
		return result, nil
	}

	o.setStatus("both slots unverifiable after a fresh fetch attempt, wiping state")
	if err := o.store.WipeAll(); err != nil {
		return Result{Wiped: false}, fmt.Errorf("%w: %v", apperrors.ErrCatastrophicWipe, err)
	}
	return Result{Wiped: true}, nil
}

// refreshInactive implements §4.7 step 2, installing into the active slot
// instead on a cold start (see below). It never returns an error: every
// failure is recorded as status and the orchestrator proceeds to the start
// phase, per the propagation policy in §7.
func (o *Orchestrator) refreshInactive(active slotstore.Slot) {
	info, err := o.fetcher.FetchInfo()
	if err != nil {
		o.setStatus(fmt.Sprintf("update check failed: %v", err))
		return
	}

	inactive := active.Other()
	localActiveVersion := versionoracle.LocalVersion(o.store.PathOf(active))
	if versionoracle.IsUpToDate(localActiveVersion, info.Version) {
		o.setStatus("current")
		return
	}

	localInactiveVersion := versionoracle.LocalVersion(o.store.PathOf(inactive))
	if versionoracle.IsUpToDate(localInactiveVersion, info.Version) {
		o.setStatus("inactive already current")
		return
	}

	// A freshly bootstrapped active slot holds no manifest yet: on that cold
	// start the payload goes straight into it and the marker already names it.
	target := inactive
	if _, err := os.Stat(filepath.Join(o.store.PathOf(active), manifestFileName)); os.IsNotExist(err) {
		target = active
	}

	if err := o.fetcher.DownloadAndInstall(o.store.PathOf(target), info); err != nil {
		o.setStatus(fmt.Sprintf("install into %s failed: %v", target, err))
		return
	}
	if target == active {
		o.setStatus(fmt.Sprintf("installed %s into %s", info.Version, active))
		return
	}

	if err := o.store.WriteActive(inactive); err != nil {
		o.setStatus(fmt.Sprintf("committing new active slot failed: %v", err))
		return
	}
	o.setStatus(fmt.Sprintf("installed %s into %s and committed", info.Version, inactive))
}

// startWithFallback implements §4.7 step 3: try the active slot, falling
// back to the inactive slot on verification or launch failure.
func (o *Orchestrator) startWithFallback(ctx context.Context, run RunFn) (Result, error) {
	active, err := o.store.ReadActive()
	if err != nil {
		return Result{}, fmt.Errorf("re-reading active slot failed: %w", err)
	}
	inactive := active.Other()

	if sup, ok := o.tryStart(ctx, active, run); ok {
		o.setStatus(fmt.Sprintf("started %s", active))
		return Result{Started: true, StartedSlot: active, Supervisor: sup}, nil
	}

	if sup, ok := o.tryStart(ctx, inactive, run); ok {
		if err := o.store.WriteActive(inactive); err != nil {
			o.setStatus(fmt.Sprintf("fallback start succeeded but committing %s failed: %v", inactive, err))
			return Result{}, nil
		}
		o.setStatus(fmt.Sprintf("fell back to %s", inactive))
		return Result{Started: true, StartedSlot: inactive, Supervisor: sup}, nil
	}

	o.setStatus("no slot startable")
	return Result{}, nil
}

func (o *Orchestrator) tryStart(ctx context.Context, slot slotstore.Slot, run RunFn) (*supervisor.Supervisor, bool) {
	slotDir := o.store.PathOf(slot)
	manifestPath := filepath.Join(slotDir, manifestFileName)

	if err := o.verifier.Verify(manifestPath, slotDir); err != nil {
		o.setStatus(fmt.Sprintf("verify %s failed: %v", slot, err))
		return nil, false
	}

	sup, err := run(ctx, slotDir)
	if err != nil {
		o.setStatus(fmt.Sprintf("launch %s failed: %v", slot, err))
		return nil, false
	}
	return sup, true
}
