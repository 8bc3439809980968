package reconcile

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"sort"
	"strings"
	"time"
)

// SyslogSender forwards one RFC5424 line to a collector. The runner uses it
// for the run heartbeat and per-exception lines; tests substitute a mock.
type SyslogSender interface {
	SendRFC5424Timeout(appName string, structuredData string, message string, timeout time.Duration) error
}

// SyslogClient sends over a fresh TCP connection per message. Runs are
// infrequent batches; holding a connection open buys nothing.
type SyslogClient struct {
	addr string
}

func NewSyslogClient(addr string) *SyslogClient {
	return &SyslogClient{addr: addr}
}

func (c *SyslogClient) SendRFC5424Timeout(appName string, structuredData string, message string, timeout time.Duration) error {
	var conn net.Conn
	var err error
	if timeout > 0 {
		conn, err = net.DialTimeout("tcp", c.addr, timeout)
	} else {
		conn, err = net.Dial("tcp", c.addr)
	}
	if err != nil {
		return err
	}
	defer conn.Close()
	if timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(timeout))
	}

	host, _ := os.Hostname()
	if host == "" {
		host = "-"
	}
	if appName == "" {
		appName = "fleet-reconciler"
	}

	pri := 134 // local0.info
	ts := time.Now().UTC().Format(time.RFC3339Nano)
	line := fmt.Sprintf("<%d>1 %s %s %s - - %s %s\n",
		pri, ts, sanitizeSyslogToken(host), sanitizeSyslogToken(appName), structuredData, strings.TrimSpace(message))

	w := bufio.NewWriter(conn)
	if _, err := w.WriteString(line); err != nil {
		return err
	}
	return w.Flush()
}

func sanitizeSyslogToken(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "-"
	}
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '\n' || r == '\r' {
			return '_'
		}
		return r
	}, s)
}

// buildStructuredData renders one RFC5424 structured-data element with a
// stable key order.
func buildStructuredData(sdID string, kv map[string]string) string {
	if sdID == "" {
		sdID = "fleet"
	}
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(sdID)
	preferredOrder := []string{"job", "service", "env", "site", "cluster", "run_id", "date", "status", "driver"}
	seen := make(map[string]struct{}, len(kv))
	for _, k := range preferredOrder {
		v, ok := kv[k]
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		seen[k] = struct{}{}
		writeSDParam(&b, k, v)
	}
	extraKeys := make([]string, 0, len(kv))
	for k, v := range kv {
		if _, ok := seen[k]; ok {
			continue
		}
		if strings.TrimSpace(v) == "" {
			continue
		}
		extraKeys = append(extraKeys, k)
	}
	sort.Strings(extraKeys)
	for _, k := range extraKeys {
		writeSDParam(&b, k, kv[k])
	}
	b.WriteString("]")
	return b.String()
}

func writeSDParam(b *strings.Builder, k, v string) {
	b.WriteString(" ")
	b.WriteString(k)
	b.WriteString("=\"")
	b.WriteString(escapeSDParam(v))
	b.WriteString("\"")
}

func escapeSDParam(v string) string {
	v = strings.ReplaceAll(v, "\\", "\\\\")
	v = strings.ReplaceAll(v, "\"", "\\\"")
	v = strings.ReplaceAll(v, "]", "\\]")
	v = strings.ReplaceAll(v, "\n", " ")
	v = strings.ReplaceAll(v, "\r", " ")
	return v
}
