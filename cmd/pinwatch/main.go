// pinwatch is a host-side daemon that infers which physical tool is
// mounted on a toolchanger machine from GPIO tool-presence pins and keeps
// the toolchanger in sync through the Moonraker API.
//
// Usage:
//
//	pinwatch -config /etc/pinwatch.cfg [options]
//
// Options:
//
//	-config string     Configuration file (required)
//	-log-level string  Log level: debug, info, warn, error (default "info")
//	-json-logs         Emit logs as JSON
//
// Example configuration:
//
//	[moonraker]
//	url: ws://localhost:7125/websocket
//
//	[pin_watch toolhead]
//	pin_e: ^gpio17
//	pin_t0: ^gpio22
//	pin_t1: ^gpio23
//	pin_t2: ^gpio24
//	assign_delay: 0.25
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"pinwatch-go/pkg/announce"
	"pinwatch-go/pkg/buttons"
	"pinwatch-go/pkg/config"
	"pinwatch-go/pkg/log"
	"pinwatch-go/pkg/metrics"
	"pinwatch-go/pkg/moonraker"
	"pinwatch-go/pkg/pinwatch"
	"pinwatch-go/pkg/reactor"
	"pinwatch-go/pkg/web"
)

func main() {
	configFile := flag.String("config", "", "Configuration file (required)")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	jsonLogs := flag.Bool("json-logs", false, "Emit logs as JSON")
	flag.Parse()

	if *configFile == "" {
		fmt.Fprintf(os.Stderr, "Error: -config is required\n")
		flag.Usage()
		os.Exit(1)
	}

	rootLog := log.New("pinwatch")
	rootLog.SetLevel(log.ParseLevel(*logLevel))
	if *jsonLogs {
		rootLog.SetFormat(log.FormatJSON)
	}

	if err := run(*configFile, rootLog); err != nil {
		rootLog.WithError(err).Error("startup failed")
		os.Exit(1)
	}
}

func run(configFile string, rootLog *log.Logger) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	sections := cfg.GetPrefixSections("pin_watch")
	if len(sections) == 0 {
		return config.NewConfigError("pin_watch", "", "no [pin_watch <name>] sections configured")
	}

	// The Moonraker client needs the full toolchanger list up front so it
	// can subscribe before the watchers start deciding.
	var toolchangers []string
	seen := make(map[string]bool)
	for _, sec := range sections {
		name, err := sec.Get("toolchanger", "toolchanger")
		if err != nil {
			return err
		}
		if !seen[name] {
			seen[name] = true
			toolchangers = append(toolchangers, name)
		}
	}

	moonrakerURL := "ws://localhost:7125/websocket"
	if sec := cfg.GetSectionOptional("moonraker"); sec != nil {
		if moonrakerURL, err = sec.Get("url", moonrakerURL); err != nil {
			return err
		}
	}

	debounce := 0.010
	if sec := cfg.GetSectionOptional("gpio"); sec != nil {
		if debounce, err = sec.GetFloatMin("debounce", 0.0, debounce); err != nil {
			return err
		}
	}

	r := reactor.New()
	client := moonraker.New(moonrakerURL, toolchangers, rootLog.Sub("moonraker"))
	watcher := buttons.NewRealWatcher(time.Duration(debounce*float64(time.Second)), r.Monotonic)
	registry := metrics.NewRegistry()
	pwMetrics := pinwatch.NewMetrics(registry)

	var publisher announce.Publisher
	if sec := cfg.GetSectionOptional("mqtt"); sec != nil {
		broker, err := sec.Get("broker")
		if err != nil {
			return err
		}
		topicPrefix, err := sec.Get("topic_prefix", announce.DefaultTopicPrefix)
		if err != nil {
			return err
		}
		publisher, err = announce.NewRealPublisher(broker, "pinwatch", topicPrefix)
		if err != nil {
			return err
		}
		rootLog.Info("announcing tool state to %s", broker)
	}

	var watchers []*pinwatch.PinWatch
	for _, sec := range sections {
		name := sec.GetName()
		if idx := strings.Index(name, " "); idx >= 0 {
			name = name[idx+1:]
		}
		w, err := pinwatch.New(name, sec, pinwatch.Deps{
			Reactor:     r,
			Buttons:     watcher,
			Commands:    client,
			Printing:    client,
			Toolchanger: client,
			Log:         rootLog.Sub(name),
			Metrics:     pwMetrics,
		})
		if err != nil {
			return err
		}
		if publisher != nil {
			w.SetApplyHook(announceOnTransition(publisher, rootLog))
		}
		watchers = append(watchers, w)
	}

	for _, name := range cfg.GetUnusedSections() {
		rootLog.Warn("unused config section [%s]", name)
	}
	for section, opts := range cfg.UnusedOptions() {
		rootLog.Warn("unused options in [%s]: %v", section, opts)
	}

	webListen := ":7180"
	if sec := cfg.GetSectionOptional("web"); sec != nil {
		if webListen, err = sec.Get("listen", webListen); err != nil {
			return err
		}
	}
	sources := make([]web.StatusSource, len(watchers))
	for i, w := range watchers {
		sources[i] = w
	}
	webServer := web.New(webListen, sources, registry, rootLog.Sub("web"))

	client.Start()
	r.Run()
	go func() {
		if err := webServer.Start(); err != nil {
			rootLog.WithError(err).Error("status server failed")
		}
	}()

	rootLog.Info("running with %d watcher(s), moonraker %s", len(watchers), moonrakerURL)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	rootLog.Info("shutting down")
	webServer.Stop()
	r.End()
	r.Wait()
	watcher.Close()
	client.Close()
	if publisher != nil {
		publisher.Close()
	}
	return nil
}

// announceOnTransition publishes only when the inferred tool actually
// changes, keyed per watcher.
func announceOnTransition(pub announce.Publisher, logger *log.Logger) pinwatch.ApplyFunc {
	last := make(map[string]int)
	return func(name string, tool int, _ pinwatch.Diagnostics) {
		if prev, ok := last[name]; ok && prev == tool {
			return
		}
		last[name] = tool
		if err := pub.PublishTool(name, tool); err != nil {
			logger.WithError(err).Warn("announce %s failed", name)
		}
	}
}
