package commands

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/bigcomputing/nws/internal/metrics"
	"github.com/bigcomputing/nws/internal/registry"
)

// webListener wraps the http.Server nwsd runs for /metrics, /healthz,
// /debug/log, and /debug/clients alongside the client listener.
type webListener struct {
	srv *http.Server
	ln  net.Listener
}

// clientStatsFormatter renders reg.ClientStats() as the plain-text table
// served at /debug/clients, adapted from nwss/web.py's per-connection
// status table (peer, op count, long-value count, last operation).
func clientStatsFormatter(reg *registry.Registry) func() string {
	return func() string {
		var b strings.Builder
		fmt.Fprintf(&b, "%-6s %-22s %8s %10s %s\n", "ID", "PEER", "OPS", "LONGVALS", "LAST OP")
		for _, stat := range reg.ClientStats() {
			lastOp := stat.LastOp
			if lastOp != "" {
				lastOp = fmt.Sprintf("%s @ %s", lastOp, stat.LastOpTime.Format(time.RFC3339))
			}
			fmt.Fprintf(&b, "%-6d %-22s %8d %10d %s\n", stat.ID, stat.Peer, stat.OpCount, stat.LongValueCount, lastOp)
		}
		return b.String()
	}
}

func startWebListener(bind string, port int, m *metrics.Metrics, clientStats func() string) (*webListener, error) {
	addr := fmt.Sprintf("%s:%d", bind, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	srv := &http.Server{Handler: metrics.NewHandler(m, clientStats)}
	go srv.Serve(ln)

	return &webListener{srv: srv, ln: ln}, nil
}

func (w *webListener) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	w.srv.Shutdown(ctx)
}
