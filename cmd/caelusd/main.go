// Command caelusd is a thin demonstration entrypoint for the orchestrator
// core. It is not the HTTP/RPC entry surface spec.md places out of scope —
// it is just enough wiring to schedule missions from a file and observe
// the Process Manager run them to completion, grounded on the teacher's
// own main.go (flaggy flag parsing, go-errors at the top level) and
// pkg/app/app.go (constructor-injected capabilities, a single Close path).
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-errors/errors"
	"github.com/integrii/flaggy"
	"github.com/sirupsen/logrus"

	"github.com/caelus-sim/orchestrator/internal/config"
	"github.com/caelus-sim/orchestrator/internal/containerhost/dockerhost"
	applog "github.com/caelus-sim/orchestrator/internal/log"
	"github.com/caelus-sim/orchestrator/internal/manager"
	"github.com/caelus-sim/orchestrator/internal/mission"
	"github.com/caelus-sim/orchestrator/internal/store"
	"github.com/caelus-sim/orchestrator/internal/store/memstore"
	"github.com/caelus-sim/orchestrator/internal/store/sqlitestore"
)

const version = "unversioned"

var (
	configPath   string
	missionsPath string
	debugFlag    bool
	interactive  bool
)

// missionRequest is one entry in the --missions JSON file: an image plus
// the mission payload and submitter id that Manager.Schedule expects.
type missionRequest struct {
	Image    string         `json:"image"`
	IssuerID string         `json:"issuer_id"`
	Mission  map[string]any `json:"mission"`
}

func main() {
	flaggy.SetName("caelusd")
	flaggy.SetDescription("Caelus simulation orchestrator")

	flaggy.String(&configPath, "c", "config", "Path to a YAML config file")
	flaggy.String(&missionsPath, "m", "missions", "Path to a JSON file listing missions to schedule at startup")
	flaggy.Bool(&debugFlag, "d", "debug", "Enable debug logging")
	flaggy.Bool(&interactive, "i", "interactive", "Read schedule/halt/status/queue commands from stdin")

	flaggy.Parse()

	if err := run(); err != nil {
		newErr := errors.Wrap(err, 0)
		fmt.Fprintln(os.Stderr, newErr.ErrorStack())
		os.Exit(1)
	}
}

func run() error {
	if configPath == "" {
		configPath = os.Getenv("CAELUS_CONFIG")
	}

	appConfig, err := config.Load(configPath, debugFlag, version)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := applog.New(appConfig.Debug, ".", version)

	host, err := dockerhost.New(log)
	if err != nil {
		return fmt.Errorf("connecting to container host: %w", err)
	}

	var st store.Store
	if appConfig.StoreDSN != "" {
		sqliteStore, err := sqlitestore.Open(appConfig.StoreDSN)
		if err != nil {
			return fmt.Errorf("opening state store: %w", err)
		}
		defer sqliteStore.Close()
		st = sqliteStore
	} else {
		st = memstore.New()
	}

	opts := manager.Defaults()
	opts.MaxConcurrentProcesses = appConfig.MaxConcurrentProcesses
	opts.Process.NetworkName = appConfig.NetworkName
	opts.Process.DeleteOnExit = appConfig.DeleteContainers

	mgr, err := manager.New(host, st, log, opts)
	if err != nil {
		return fmt.Errorf("starting process manager: %w", err)
	}
	defer mgr.Close()

	if missionsPath != "" {
		if err := scheduleFromFile(mgr, log, missionsPath); err != nil {
			return fmt.Errorf("scheduling missions from %s: %w", missionsPath, err)
		}
	}

	if interactive {
		runCommandLoop(mgr, log)
	} else {
		waitForShutdown(log)
	}

	active, old := mgr.ProcessesInfo()
	log.WithFields(logrus.Fields{"active": active, "old": old}).Info("shutting down")
	return nil
}

func scheduleFromFile(mgr *manager.Manager, log *logrus.Entry, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var requests []missionRequest
	if err := json.Unmarshal(content, &requests); err != nil {
		return err
	}

	for _, req := range requests {
		if err := mission.Validate(req.Mission); err != nil {
			log.Warnf("skipping invalid mission: %v", err)
			continue
		}

		id, err := mgr.Schedule(context.Background(), req.Image, req.Mission, req.IssuerID)
		if err != nil {
			if manager.IsDuplicateOperation(err) {
				log.Warnf("duplicate operation: %v", err)
				continue
			}
			return err
		}
		if id == "" {
			log.Warnf("image %q is not available, skipping mission", req.Image)
			continue
		}
		log.WithField("process_id", id).Info("scheduled mission")
	}
	return nil
}

// runCommandLoop reads line-oriented commands from stdin, a stand-in for the
// out-of-scope HTTP/RPC entry surface (SPEC_FULL §1) that still exercises
// every public Manager operation end to end:
//
//	schedule <image> <issuer_id> <mission.json>
//	halt <process_id>
//	status
//	queue <issuer_id>
//	quit
func runCommandLoop(mgr *manager.Manager, log *logrus.Entry) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "schedule":
			if len(fields) != 4 {
				fmt.Println("usage: schedule <image> <issuer_id> <mission.json>")
				continue
			}
			handleSchedule(mgr, log, fields[1], fields[2], fields[3])
		case "halt":
			if len(fields) != 2 {
				fmt.Println("usage: halt <process_id>")
				continue
			}
			fmt.Println(mgr.Halt(fields[1]))
		case "status":
			active, old := mgr.ProcessesInfo()
			fmt.Printf("active: %v\nold: %v\n", active, old)
		case "queue":
			if len(fields) != 2 {
				fmt.Println("usage: queue <issuer_id>")
				continue
			}
			for _, item := range mgr.QueueFor(fields[1]) {
				fmt.Printf("%s\t%s\t%d\n", item.ID, item.Image, item.EffectiveStartTime)
			}
		case "quit":
			return
		default:
			fmt.Printf("unrecognised command %q\n", fields[0])
		}
	}
}

func handleSchedule(mgr *manager.Manager, log *logrus.Entry, image, issuerID, missionPath string) {
	content, err := os.ReadFile(missionPath)
	if err != nil {
		fmt.Println(err)
		return
	}

	var payload map[string]any
	if err := json.Unmarshal(content, &payload); err != nil {
		fmt.Println(err)
		return
	}
	if err := mission.Validate(payload); err != nil {
		fmt.Println(err)
		return
	}

	id, err := mgr.Schedule(context.Background(), image, payload, issuerID)
	if err != nil {
		if manager.IsDuplicateOperation(err) {
			fmt.Println(err)
			return
		}
		log.Errorf("schedule: %v", err)
		return
	}
	if id == "" {
		fmt.Printf("image %q is not available\n", image)
		return
	}
	fmt.Println(id)
}

func waitForShutdown(log *logrus.Entry) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-sig:
			log.Info("received shutdown signal")
			return
		case <-ticker.C:
			log.Debug("orchestrator running")
		}
	}
}
