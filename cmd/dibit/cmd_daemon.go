package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/arazimproject/dibit/internal/config"
)

// cmdStart starts the daemon in the background
func cmdStart() error {
	if isRunning() {
		fmt.Println("✓ Daemon is already running")
		return nil
	}

	dibitDir, err := config.EnsureDibitDir()
	if err != nil {
		return fmt.Errorf("setup dibit directory: %w", err)
	}

	dibitdPath, err := findDaemonBinary()
	if err != nil {
		return fmt.Errorf("find daemon binary: %w", err)
	}

	cmd := exec.Command(dibitdPath)
	cmd.Dir = dibitDir
	cmd.Stdout = nil
	cmd.Stderr = nil

	// Detach from parent process (platform-specific)
	configureDaemonProcess(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	fmt.Print("Starting daemon...")
	for i := 0; i < 30; i++ {
		time.Sleep(100 * time.Millisecond)
		if isRunning() {
			fmt.Println(" ✓")
			fmt.Printf("Daemon running at %s\n", daemonURL())
			return nil
		}
		fmt.Print(".")
	}

	fmt.Println(" ✗")
	return fmt.Errorf("daemon failed to start (check logs with 'dibit logs')")
}

// cmdStop stops the daemon
func cmdStop() error {
	if !isRunning() {
		fmt.Println("Daemon is not running")
		return nil
	}

	dibitDir, err := config.DibitDir()
	if err != nil {
		return err
	}
	pid, err := readPID(filepath.Join(dibitDir, pidFile))
	if err != nil {
		return err
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process %d: %w", pid, err)
	}

	fmt.Print("Stopping daemon...")
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal daemon: %w", err)
	}

	// dibitd allows itself 30s to drain; poll a little past that
	deadline := time.Now().Add(35 * time.Second)
	for time.Now().Before(deadline) {
		time.Sleep(200 * time.Millisecond)
		if !isRunning() {
			fmt.Println(" ✓")
			return nil
		}
	}

	fmt.Println(" ✗")
	return fmt.Errorf("daemon (pid %d) did not stop", pid)
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read PID file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("PID file %s is corrupt", path)
	}
	return pid, nil
}

// cmdStatus shows daemon status
func cmdStatus() error {
	if !isRunning() {
		fmt.Println("Status: stopped")
		return nil
	}

	resp, err := http.Get(daemonURL() + "/v1/status")
	if err != nil {
		return fmt.Errorf("get status: %w", err)
	}
	defer resp.Body.Close()

	var status struct {
		Status    string `json:"status"`
		Version   string `json:"version"`
		Uptime    string `json:"uptime"`
		Storage   string `json:"storage"`
		Semester  string `json:"semester"`
		Semesters int    `json:"semesters"`
		Queue     bool   `json:"queue"`
		Sync      bool   `json:"sync"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("parse status: %w", err)
	}

	fmt.Printf("Status:    %s\n", status.Status)
	fmt.Printf("Version:   %s\n", status.Version)
	fmt.Printf("Uptime:    %s\n", status.Uptime)
	fmt.Printf("Storage:   %s\n", status.Storage)
	fmt.Printf("Semester:  %s (%d with courses)\n", status.Semester, status.Semesters)
	fmt.Printf("Queue:     %s\n", onOff(status.Queue))
	fmt.Printf("Sync:      %s\n", onOff(status.Sync))
	fmt.Printf("Address:   %s\n", daemonURL())

	return nil
}

// cmdLogs prints the tail of the daemon log
func cmdLogs(args []string) error {
	fs := flag.NewFlagSet("logs", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	lines := fs.Int("n", 40, "number of lines")
	level := fs.String("level", "", "minimum level (debug, info, warn, error)")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	dibitDir, err := config.DibitDir()
	if err != nil {
		return err
	}
	file, err := os.Open(filepath.Join(dibitDir, "logs", "dibitd.log"))
	if os.IsNotExist(err) {
		fmt.Println("No log file found. Start the daemon first.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	tail, err := tailLines(file, *lines, minLevel(*level))
	if err != nil {
		return err
	}
	for _, line := range tail {
		fmt.Println(line)
	}
	return nil
}

// tailLines returns the last n log lines at or above min, rendered for a
// terminal. Only the last 256KB of the file are read.
func tailLines(f io.ReadSeeker, n int, min slog.Level) ([]string, error) {
	const window = 256 << 10

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("seek log: %w", err)
	}
	offset := max(size-window, 0)
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek log: %w", err)
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64<<10), 1<<20)
	if offset > 0 {
		// The first line is probably cut
		scanner.Scan()
	}

	var out []string
	for scanner.Scan() {
		line, lvl := renderLogLine(scanner.Text())
		if lvl < min {
			continue
		}
		out = append(out, line)
		if n > 0 && len(out) > n {
			out = out[1:]
		}
	}
	return out, scanner.Err()
}

// renderLogLine turns a JSON slog record into "15:04:05 INFO msg k=v".
// Anything else is returned unchanged at info level.
func renderLogLine(line string) (string, slog.Level) {
	var rec map[string]any
	if json.Unmarshal([]byte(line), &rec) != nil {
		return line, slog.LevelInfo
	}

	var lvl slog.Level
	levelName, _ := rec["level"].(string)
	if lvl.UnmarshalText([]byte(levelName)) != nil {
		lvl = slog.LevelInfo
	}
	stamp := ""
	if ts, ok := rec["time"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			stamp = t.Local().Format("2006-01-02 15:04:05")
		}
	}
	msg, _ := rec["msg"].(string)

	keys := make([]string, 0, len(rec))
	for k := range rec {
		if k != "time" && k != "level" && k != "msg" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "%s %-5s %s", stamp, lvl.String(), msg)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, rec[k])
	}
	return strings.TrimSpace(b.String()), lvl
}

func minLevel(name string) slog.Level {
	var lvl slog.Level
	if name == "" || lvl.UnmarshalText([]byte(name)) != nil {
		return slog.LevelDebug
	}
	return lvl
}

// daemonURL returns the daemon address from the config, falling back to
// the default port.
func daemonURL() string {
	cfg, err := config.LoadLocalConfig()
	if err != nil || cfg.Daemon.Port == 0 {
		return daemonAddr
	}
	return fmt.Sprintf("http://127.0.0.1:%d", cfg.Daemon.Port)
}

// isRunning checks if the daemon is running by calling the health endpoint
func isRunning() bool {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(daemonURL() + "/v1/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// findDaemonBinary locates the dibitd binary
func findDaemonBinary() (string, error) {
	if path, err := exec.LookPath("dibitd"); err == nil {
		return path, nil
	}

	// Check relative to this binary
	self, err := os.Executable()
	if err == nil {
		path := filepath.Join(filepath.Dir(self), "dibitd")
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	locations := []string{
		"/usr/local/bin/dibitd",
		"./dibitd",
		"./cmd/dibitd/dibitd",
	}
	for _, path := range locations {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("dibitd binary not found (build with 'go build ./cmd/dibitd')")
}

func onOff(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}
