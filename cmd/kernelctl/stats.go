package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"

	kernel "github.com/corolib/taskkernel"
)

// serveMetrics exposes k's Prometheus registry over HTTP at addr for the
// duration of run, stopping the server once run returns. It is a no-op if
// metrics collection was not enabled on k.
func serveMetrics(addr string, k *kernel.Kernel, run func()) {
	reg := k.Metrics()
	if reg == nil || addr == "" {
		run()
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	run()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "shut down metrics server:", err)
	}
	if err := <-errCh; err != nil && err != http.ErrServerClosed {
		fmt.Fprintln(os.Stderr, "metrics server:", err)
	}
}

func printMetrics(k *kernel.Kernel) {
	reg := k.Metrics()
	if reg == nil {
		return
	}
	families, err := reg.Gather()
	if err != nil {
		fmt.Fprintln(os.Stderr, "gather metrics:", err)
		return
	}
	heading("metrics")
	enc := expfmt.NewEncoder(os.Stdout, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			fmt.Fprintln(os.Stderr, "encode metric family:", err)
			return
		}
	}
}

// heading prints a section header, underlined only when stdout is a real
// terminal (humanize.Time/humanize.Comma elsewhere in this package assume
// the same human-facing, not machine-parsed, output contract).
func heading(title string) {
	if isatty.IsTerminal(os.Stdout.Fd()) {
		fmt.Printf("\n\033[1m%s\033[0m\n", title)
		return
	}
	fmt.Printf("\n%s\n", title)
}

func humanCount(n uint64) string {
	return humanize.Comma(int64(n))
}
