package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	serverrun "github.com/Niyaz-313/trading-bot/internal/cmd/server"
	logpkg "github.com/Niyaz-313/trading-bot/pkg/log"
)

func main() {
	level := os.Getenv("BOTOPS_LOG_LEVEL")
	parsed, err := logpkg.ParseLevel(level)
	if err != nil || level == "" {
		parsed = logpkg.InfoLevel
	}
	logger := logpkg.NewLogger(
		logpkg.WithLevel(parsed),
		logpkg.WithFormatter(&logpkg.TextFormatter{}),
		logpkg.WithOutput(logpkg.NewConsoleOutput()),
	)
	logpkg.RedirectStdLog(logger)

	rootCmd := &cobra.Command{
		Use:   "botops",
		Short: "Trading service audit trail and health operations",
		Long:  "botops keeps the trading service's append-only audit trail, reconciles it with a replica, snapshots it, and watches the service's health.",
	}

	rootCmd.AddCommand(newServerCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newStoreCmd())
	rootCmd.AddCommand(newReconcileCmd())
	rootCmd.AddCommand(newSnapshotCmd())
	rootCmd.AddCommand(newOpsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newServerCmd() *cobra.Command {
	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	startCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start the botops server (HTTP API, gRPC health, monitor loop)",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			dataDir, _ := cmd.Flags().GetString("data-dir")
			httpAddr, _ := cmd.Flags().GetString("http")
			grpcAddr, _ := cmd.Flags().GetString("grpc")
			logLevel, _ := cmd.Flags().GetString("log-level")
			logFormat, _ := cmd.Flags().GetString("log-format")
			if logLevel != "" {
				_ = os.Setenv("BOTOPS_LOG_LEVEL", logLevel)
			}
			if logFormat != "" {
				_ = os.Setenv("BOTOPS_LOG_FORMAT", logFormat)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			if err := serverrun.Run(ctx, serverrun.Options{
				ConfigPath: configPath,
				DataDir:    dataDir,
				HTTPAddr:   httpAddr,
				GRPCAddr:   grpcAddr,
			}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			// brief delay to allow logs flush
			time.Sleep(100 * time.Millisecond)
			return nil
		},
	}
	startCmd.Flags().String("config", os.Getenv("BOTOPS_CONFIG"), "Config file (JSON or YAML)")
	startCmd.Flags().String("data-dir", "", "Data directory (default: OS-specific application data directory)")
	startCmd.Flags().String("http", "", "HTTP listen address (default :8787)")
	startCmd.Flags().String("grpc", "", "gRPC listen address (default :50052)")
	startCmd.Flags().String("log-level", os.Getenv("BOTOPS_LOG_LEVEL"), "Log level: debug|info|warn|error")
	startCmd.Flags().String("log-format", os.Getenv("BOTOPS_LOG_FORMAT"), "Log format: text|json (default text)")
	serverCmd.AddCommand(startCmd)
	return serverCmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show server and monitored-service state",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out struct {
				Status       string `json:"status"`
				ServiceState string `json:"service_state"`
			}
			if err := getJSON("/v1/healthz", &out); err != nil {
				return err
			}
			fmt.Println("server: ", out.Status)
			fmt.Println("service:", colorState(out.ServiceState))
			return nil
		},
	}
}

func newStoreCmd() *cobra.Command {
	storeCmd := &cobra.Command{Use: "store", Short: "Audit store operations"}

	appendCmd := &cobra.Command{
		Use:   "append",
		Short: "Append one event to the audit trail",
		RunE: func(cmd *cobra.Command, args []string) error {
			eventType, _ := cmd.Flags().GetString("type")
			payloadStr, _ := cmd.Flags().GetString("payload")
			var payload map[string]interface{}
			if payloadStr != "" {
				if err := json.Unmarshal([]byte(payloadStr), &payload); err != nil {
					return fmt.Errorf("invalid --payload: %w", err)
				}
			}
			body, _ := json.Marshal(map[string]interface{}{
				"event_type": eventType,
				"payload":    payload,
			})
			resp, err := http.Post(apiURL()+"/v1/store/append", "application/json", bytes.NewReader(body))
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusCreated {
				return httpError(resp)
			}
			var rec struct {
				SequenceID string `json:"sequence_id"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
				return err
			}
			fmt.Println("appended:", rec.SequenceID)
			return nil
		},
	}
	appendCmd.Flags().String("type", "cycle", "Event type (cycle|decision|trade|...)")
	appendCmd.Flags().String("payload", "", "Event payload as a JSON object")
	storeCmd.AddCommand(appendCmd)

	tailCmd := &cobra.Command{
		Use:   "tail",
		Short: "Show the newest records",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, _ := cmd.Flags().GetInt("n")
			var recs []struct {
				SequenceID   string                 `json:"sequence_id"`
				TimestampUTC time.Time              `json:"timestamp_utc"`
				EventType    string                 `json:"event_type"`
				Payload      map[string]interface{} `json:"payload"`
			}
			if err := getJSON("/v1/store/tail?n="+strconv.Itoa(n), &recs); err != nil {
				return err
			}
			for _, r := range recs {
				payload := ""
				if r.Payload != nil {
					b, _ := json.Marshal(r.Payload)
					payload = string(b)
				}
				fmt.Printf("%s  %s  %s  %s\n",
					r.TimestampUTC.Format(time.RFC3339),
					color.CyanString("%-10s", r.EventType),
					r.SequenceID, payload)
			}
			return nil
		},
	}
	tailCmd.Flags().Int("n", 10, "Number of records")
	storeCmd.AddCommand(tailCmd)

	queryCmd := &cobra.Command{
		Use:   "query",
		Short: "Query records with a CEL filter expression",
		Long:  `Query records with a CEL filter, e.g. --filter 'event_type == "trade" && json.symbol == "SBER"'.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, _ := cmd.Flags().GetString("filter")
			limit, _ := cmd.Flags().GetInt("limit")
			q := url.Values{}
			if filter != "" {
				q.Set("filter", filter)
			}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			resp, err := http.Get(apiURL() + "/v1/store/records?" + q.Encode())
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return httpError(resp)
			}
			_, err = io.Copy(os.Stdout, resp.Body)
			return err
		},
	}
	queryCmd.Flags().String("filter", "", "CEL filter expression")
	queryCmd.Flags().Int("limit", 0, "Maximum records (0 = unlimited)")
	storeCmd.AddCommand(queryCmd)

	return storeCmd
}

func newReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile the local store with the configured replica",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := http.Post(apiURL()+"/v1/reconcile", "application/json", nil)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return httpError(resp)
			}
			var rep struct {
				Shared     int `json:"shared"`
				LocalOnly  int `json:"local_only"`
				RemoteOnly int `json:"remote_only"`
				Conflicts  int `json:"conflicts"`
				Total      int `json:"total"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&rep); err != nil {
				return err
			}
			fmt.Printf("shared=%d local_only=%d remote_only=%d total=%d\n",
				rep.Shared, rep.LocalOnly, rep.RemoteOnly, rep.Total)
			if rep.Conflicts > 0 {
				fmt.Println(color.YellowString("conflicts=%d (both copies retained)", rep.Conflicts))
			}
			return nil
		},
	}
}

func newSnapshotCmd() *cobra.Command {
	snapCmd := &cobra.Command{Use: "snapshot", Short: "Snapshot archive operations"}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Archive the store to a timestamped snapshot pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			eventType, _ := cmd.Flags().GetString("event-type")
			q := ""
			if eventType != "" {
				q = "?event_type=" + url.QueryEscape(eventType)
			}
			resp, err := http.Post(apiURL()+"/v1/snapshot"+q, "application/json", nil)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusCreated {
				return httpError(resp)
			}
			var out struct {
				Archive string `json:"archive"`
				Records int    `json:"records"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				return err
			}
			fmt.Printf("archive: %s (%d records)\n", out.Archive, out.Records)
			return nil
		},
	}
	createCmd.Flags().String("event-type", "", "Archive only this event type (empty = full store)")
	snapCmd.AddCommand(createCmd)

	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete archives past the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := http.Post(apiURL()+"/v1/snapshot/prune", "application/json", nil)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return httpError(resp)
			}
			var out struct {
				Removed []string `json:"removed"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				return err
			}
			fmt.Printf("pruned %d archive(s)\n", len(out.Removed))
			for _, name := range out.Removed {
				fmt.Println("  ", name)
			}
			return nil
		},
	}
	snapCmd.AddCommand(pruneCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List archives, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out []struct {
				Name    string `json:"name"`
				TakenAt string `json:"taken_at"`
			}
			if err := getJSON("/v1/snapshot/list", &out); err != nil {
				return err
			}
			for _, a := range out {
				fmt.Printf("%s  %s\n", a.TakenAt, a.Name)
			}
			return nil
		},
	}
	snapCmd.AddCommand(listCmd)

	return snapCmd
}

func newOpsCmd() *cobra.Command {
	opsCmd := &cobra.Command{
		Use:   "ops",
		Short: "Show recent operational journal entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			var entries []struct {
				Seq    uint64          `json:"seq"`
				At     time.Time       `json:"at"`
				Kind   string          `json:"kind"`
				Detail json.RawMessage `json:"detail"`
			}
			if err := getJSON("/v1/ops?limit="+strconv.Itoa(limit), &entries); err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Printf("%6d  %s  %s  %s\n",
					e.Seq, e.At.Format(time.RFC3339),
					color.CyanString("%-10s", e.Kind), string(e.Detail))
			}
			return nil
		},
	}
	opsCmd.Flags().Int("limit", 20, "Maximum entries, newest first")
	return opsCmd
}

func colorState(state string) string {
	switch state {
	case "active":
		return color.GreenString(state)
	case "failed":
		return color.RedString(state)
	case "inactive":
		return color.YellowString(state)
	default:
		return state
	}
}

func getJSON(path string, v interface{}) error {
	resp, err := http.Get(apiURL() + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return httpError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func httpError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var out struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(b, &out) == nil && out.Error != "" {
		return fmt.Errorf("%s: %s", resp.Status, out.Error)
	}
	return fmt.Errorf("status %s", resp.Status)
}

func apiURL() string {
	if v := os.Getenv("BOTOPS_HTTP"); v != "" {
		return v
	}
	return "http://127.0.0.1:8787"
}
