// Command tracegcbench drives a tracegc collector through its public API
// with configurable producer concurrency, chain length and an optional
// abort-construction fault-injection rate, then prints a snapshot
// of the Prometheus metrics it collected. Operator tooling around the
// library, not part of its contract.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	tracegc "github.com/threefd/tracegc"
	"github.com/threefd/tracegc/internal/gcconfig"
	"github.com/threefd/tracegc/internal/gcmetrics"
)

type node struct {
	next tracegc.Sptr[node]
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "tracegcbench",
		Short: "Benchmark and fault-injection harness for the tracegc collector",
	}
	root.AddCommand(newRunCommand())
	return root
}

func newRunCommand() *cobra.Command {
	v := viper.New()
	fs := pflag.NewFlagSet("run", pflag.ExitOnError)
	gcconfig.BindFlags(fs, v)

	var producers int
	var perProducer int
	var chainLen int
	var abortRate float64
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Allocate chains of managed objects across concurrent producers and report metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(cmd.Context(), v, producers, perProducer, chainLen, abortRate, metricsAddr)
		},
	}

	cmd.Flags().AddFlagSet(fs)
	cmd.Flags().IntVar(&producers, "producers", 8, "number of concurrent producer goroutines")
	cmd.Flags().IntVar(&perProducer, "per-producer", 1000, "chains allocated per producer")
	cmd.Flags().IntVar(&chainLen, "chain-len", 3, "length of each allocated chain")
	cmd.Flags().Float64Var(&abortRate, "abort-rate", 0.0, "fraction of chains whose root construction is aborted instead of released")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address while the benchmark runs")

	return cmd
}

func runBench(ctx context.Context, v *viper.Viper, producers, perProducer, chainLen int, abortRate float64, metricsAddr string) error {
	reg := prometheus.NewRegistry()
	metr := gcmetrics.New(reg)

	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if _, err := tracegc.Init(tracegc.Options{Viper: v, Logger: logger, Registry: metr}); err != nil {
		return err
	}
	defer tracegc.Shutdown(context.Background())

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: metricsAddr, Handler: mux}
		go srv.ListenAndServe()
		defer srv.Close()
	}

	var destructed int64
	var wg sync.WaitGroup
	wg.Add(producers)
	start := time.Now()

	for p := 0; p < producers; p++ {
		go func(seed int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(int64(seed)))
			for i := 0; i < perProducer; i++ {
				allocateChain(chainLen, abortRate, rng, &destructed)
			}
		}(p)
	}
	wg.Wait()

	elapsed := time.Since(start)

	fmt.Printf("allocated %d chains of length %d across %d producers in %s\n",
		producers*perProducer, chainLen, producers, elapsed)
	fmt.Printf("destructors observed: %d\n", atomic.LoadInt64(&destructed))

	printMetrics(reg)
	return nil
}

// allocateChain builds a chain of chainLen nodes, each holding the next in
// its own .next field, then releases the root — or, with probability
// abortRate, aborts the root's own construction instead, exercising the
// abort-construction path.
func allocateChain(chainLen int, abortRate float64, rng *rand.Rand, destructed *int64) {
	links := make([]tracegc.Sptr[node], chainLen)
	for i := chainLen - 1; i >= 0; i-- {
		if err := links[i].AllocAndRegister(func(n *node) {
			atomic.AddInt64(destructed, 1)
		}); err != nil {
			return
		}
		if i < chainLen-1 {
			if err := links[i].Get().next.Set(&links[i+1]); err != nil {
				return
			}
			links[i+1].Close()
		}
	}

	if rng.Float64() < abortRate {
		links[0].Abort()
		return
	}
	links[0].Reset()
}

func printMetrics(reg *prometheus.Registry) {
	families, err := reg.Gather()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to gather metrics:", err)
		return
	}
	for _, f := range families {
		fmt.Println(formatFamily(f))
	}
}

func formatFamily(f *dto.MetricFamily) string {
	out := f.GetName() + ":"
	for _, m := range f.GetMetric() {
		switch {
		case m.Counter != nil:
			out += fmt.Sprintf(" %v=%g", labelsOf(m), m.GetCounter().GetValue())
		case m.Gauge != nil:
			out += fmt.Sprintf(" %v=%g", labelsOf(m), m.GetGauge().GetValue())
		case m.Histogram != nil:
			out += fmt.Sprintf(" %v(count)=%d", labelsOf(m), m.GetHistogram().GetSampleCount())
		}
	}
	return out
}

func labelsOf(m *dto.Metric) string {
	if len(m.GetLabel()) == 0 {
		return ""
	}
	s := ""
	for _, lp := range m.GetLabel() {
		s += lp.GetName() + "=" + lp.GetValue() + ","
	}
	return s
}
