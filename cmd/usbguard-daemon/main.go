package main

import (
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"k8s.io/klog/v2"

	"github.com/usbguard/usbguard/internal/manager"
	"github.com/usbguard/usbguard/internal/mux"
	"github.com/usbguard/usbguard/internal/rule"
	"github.com/usbguard/usbguard/internal/ruleparser"
	"github.com/usbguard/usbguard/internal/sysfs"
	"github.com/usbguard/usbguard/internal/udev"
)

func main() {
	appWaitGroup := &sync.WaitGroup{}
	defer appWaitGroup.Wait()

	flags := initFlags()

	rulesetText, err := os.ReadFile(flags.rulesetPath)
	if err != nil {
		klog.Fatalf("failed to read --ruleset %q: %v", flags.rulesetPath, err)
		os.Exit(1)
	}

	defaultTarget, err := rule.ParseTarget(flags.defaultTarget)
	if err != nil {
		klog.Fatalf("invalid --default-target %q: %v", flags.defaultTarget, err)
		os.Exit(1)
	}

	ruleset, err := ruleparser.ParseRuleset(string(rulesetText), defaultTarget)
	if err != nil {
		klog.Fatalf("failed to parse --ruleset %q: %v", flags.rulesetPath, err)
		os.Exit(1)
	}

	source := udev.NewSource(appWaitGroup)
	defer source.Close()

	mgr := manager.New(source, sysfs.New(), sysfs.NewDefaultController(), ruleset)

	notifications := make(chan manager.Notification, 16)
	cancel := mgr.Subscribe(mux.SinkFromChan(notifications))
	defer cancel()
	go logNotifications(notifications)

	if err := mgr.Start(); err != nil {
		klog.Fatalf("failed to start device manager: %v", err)
		os.Exit(1)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	for sig := range sigs {
		switch sig {
		case syscall.SIGINT, syscall.SIGTERM:
			klog.Infof("received signal %q, shutting down", sig.String())
			mgr.Stop()
			return
		}
	}
}

func logNotifications(notifications <-chan manager.Notification) {
	for n := range notifications {
		klog.Infof("%s: device %d (%s)", n.Kind, n.Device.ID, n.Device.Name())
	}
}

type flagValues struct {
	rulesetPath   string
	defaultTarget string
}

func initFlags() flagValues {
	values := flagValues{}
	flags := flag.NewFlagSet("usbguard-daemon", flag.ExitOnError)
	klog.InitFlags(flags)
	flags.StringVar(&values.rulesetPath, "ruleset", "", "path to the ruleset text file (required)")
	flags.StringVar(&values.defaultTarget, "default-target", "block", `implicit default target when no rule matches ("allow" or "block")`)
	flags.Parse(os.Args[1:])
	if values.rulesetPath == "" {
		flags.Output().Write([]byte("-ruleset flag is required\n"))
		flags.Usage()
		os.Exit(2)
	}
	return values
}
