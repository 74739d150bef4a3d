// Command dvrouted runs one node of a distance-vector routing mesh: it
// periodically announces its routing table to its configured neighbors over
// UDP, applies Bellman-Ford relaxation to announcements it receives, and
// accepts operator commands on stdin.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"net/http/pprof"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/r2northstar/dvrouted/internal/config"
	"github.com/r2northstar/dvrouted/internal/daemon"
	"github.com/r2northstar/dvrouted/internal/rttable"
	"github.com/r2northstar/dvrouted/internal/statelog"
	"github.com/r2northstar/dvrouted/internal/telemetry"
	"github.com/r2northstar/dvrouted/internal/topology"
)

var opt struct {
	Help        bool
	Topology    string
	Interval    int
	LogLevel    string
	LogFormat   string
	MetricsAddr string
	StateDB     string
	TTLDebug    bool
	EnvFile     string
}

func init() {
	pflag.BoolVarP(&opt.Help, "help", "h", false, "Show this help text")
	pflag.StringVarP(&opt.Topology, "topology", "t", "topology.txt", "Path to the topology file")
	pflag.IntVarP(&opt.Interval, "interval", "i", 30, "Announcement interval in seconds")
	pflag.StringVarP(&opt.LogLevel, "log-level", "l", "info", "Log level (trace, debug, info, warn, error)")
	pflag.StringVar(&opt.LogFormat, "log-format", "console", "Log format (console, json)")
	pflag.StringVarP(&opt.MetricsAddr, "metrics-addr", "m", "", "Address for the debug/metrics HTTP surface (disabled if empty)")
	pflag.StringVar(&opt.StateDB, "state-db", "", "Path to a sqlite route-change audit log (disabled if empty)")
	pflag.BoolVar(&opt.TTLDebug, "ttl-debug", false, "Log received datagrams' IP TTL at debug level")
	pflag.StringVarP(&opt.EnvFile, "env-file", "e", "", "Overlay config from an env file, as DVROUTED_* variables")
}

func main() {
	pflag.Parse()

	if opt.Help {
		fmt.Printf("usage: %s [options]\n\noptions:\n%s", os.Args[0], pflag.CommandLine.FlagUsages())
		os.Exit(2)
	}

	if opt.Interval <= 0 {
		fmt.Fprintln(os.Stderr, "error: -interval must be positive")
		os.Exit(1)
	}

	lvl, err := config.ParseLevel(opt.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: parse -log-level: %v\n", err)
		os.Exit(1)
	}

	c := config.Config{
		TopologyFile: opt.Topology,
		Interval:     opt.Interval,
		LogLevel:     lvl,
		LogFormat:    opt.LogFormat,
		MetricsAddr:  opt.MetricsAddr,
		StateDB:      opt.StateDB,
	}
	if opt.EnvFile != "" {
		if err := c.ApplyEnvFile(opt.EnvFile); err != nil {
			fmt.Fprintf(os.Stderr, "error: apply -env-file: %v\n", err)
			os.Exit(1)
		}
	}

	log := configureLogging(c)

	topo, err := topology.Load(c.TopologyFile)
	if err != nil {
		log.Error().Err(err).Str("path", c.TopologyFile).Msg("failed to load topology")
		os.Exit(1)
	}

	m := telemetry.New()

	var sl *statelog.Log
	if c.StateDB != "" {
		sl, err = statelog.Open(c.StateDB)
		if err != nil {
			log.Error().Err(err).Msg("failed to open state log")
			os.Exit(1)
		}
		defer sl.Close()
	}

	hooks := daemon.Hooks{}
	if sl != nil {
		hooks.OnRouteChange = func(e rttable.Entry) {
			if err := sl.Record(context.Background(), statelog.RouteChange{
				At:        e.LastUpdate,
				Dest:      e.Dest,
				NextHop:   e.NextHop,
				Cost:      e.Cost,
				Reachable: e.Reachable(),
			}); err != nil {
				log.Warn().Err(err).Msg("failed to record route change")
			}
		}
	}

	d := daemon.New(topo, time.Duration(c.Interval)*time.Second, log, m, os.Stdin, os.Stdout, hooks)
	d.TTLDebug = opt.TTLDebug

	m.RegisterGauge("dvrouted_routes_reachable", d.ReachableCount)

	if c.MetricsAddr != "" {
		go serveDebug(c.MetricsAddr, m, log)
	}

	if err := d.Bind(); err != nil {
		log.Error().Err(err).Msg("failed to bind socket")
		os.Exit(1)
	}
	log.Log().Str("addr", d.LocalAddr().String()).Int("self", topo.SelfID).Msg("dvrouted starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := d.Run(ctx); err != nil {
		log.Error().Err(err).Msg("daemon exited with error")
		os.Exit(1)
	}
	log.Log().Msg("dvrouted stopped")
}

func configureLogging(c config.Config) zerolog.Logger {
	if c.LogFormat == "json" {
		return zerolog.New(os.Stdout).Level(c.LogLevel).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).Level(c.LogLevel).With().Timestamp().Logger()
}

// serveDebug exposes Prometheus-format metrics and pprof endpoints, in the
// teacher's cmd/atlas insecure-debug-server style: operator opt-in via an
// address, never enabled by default.
func serveDebug(addr string, m *telemetry.Metrics, log zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		m.WritePrometheus(w)
	})
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	log.Warn().Str("addr", addr).Msg("running insecure debug/metrics server")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error().Err(err).Msg("debug/metrics server failed")
	}
}
