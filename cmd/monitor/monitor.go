package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/pelletier/go-toml"
	"github.com/prometheus/common/expfmt"
	"github.com/rivo/tview"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

const serverProcessName = "fileshare-server"

// Thresholds for color coding.
const (
	highUsage   = 80.0
	mediumUsage = 50.0
)

var (
	prometheusURL  string
	logFilePath    string
	metricsEnabled bool
)

func init() {
	configPaths := []string{
		"/etc/fileshare-server/config.toml",
		"../config.toml",
		"./config.toml",
	}

	var config *toml.Tree
	var err error
	for _, path := range configPaths {
		config, err = toml.LoadFile(path)
		if err == nil {
			log.Printf("Using config file: %s", path)
			break
		}
	}
	if err != nil {
		log.Fatalf("Error loading config file: %v\nPlease create a config.toml in one of the following locations:\n%v", err, configPaths)
	}

	port := "9090"
	if v, ok := config.Get("server.metricsport").(string); ok && v != "" {
		port = v
	}
	if v, ok := config.Get("server.metricsenabled").(bool); ok {
		metricsEnabled = v
	}
	bindIP := "localhost"
	if v, ok := config.Get("server.bind_ip").(string); ok && v != "" {
		bindIP = v
	}
	prometheusURL = fmt.Sprintf("http://%s:%s/metrics", bindIP, port)
	log.Printf("Metrics URL set to: %s", prometheusURL)

	logFilePath = "/var/log/fileshare-server.log"
	if v, ok := config.Get("logging.file").(string); ok && v != "" {
		logFilePath = v
	}
}

// fetchMetrics scrapes and parses the server's Prometheus endpoint,
// keeping only the metric families the dashboard displays.
func fetchMetrics() (map[string]float64, error) {
	client := &http.Client{
		Timeout: 5 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:       10,
			IdleConnTimeout:    30 * time.Second,
			DisableCompression: true,
		},
	}

	resp, err := client.Get(prometheusURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch metrics: %w", err)
	}
	defer resp.Body.Close()

	limitedReader := io.LimitReader(resp.Body, 1024*1024)

	parser := &expfmt.TextParser{}
	metricFamilies, err := parser.TextToMetricFamilies(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("failed to parse metrics: %w", err)
	}

	relevantPrefixes := []string{
		"upload",
		"download",
		"auth_",
		"active_sessions",
		"realtime_connections",
		"notifications_",
		"connections_reaped",
		"shares_total",
		"deletions_total",
		"compression",
		"requests_total",
		"memory_usage_bytes",
		"cpu_usage_percent",
		"goroutines",
	}

	metrics := make(map[string]float64)
	for name, mf := range metricFamilies {
		relevant := false
		for _, prefix := range relevantPrefixes {
			if strings.HasPrefix(name, prefix) {
				relevant = true
				break
			}
		}
		if !relevant {
			continue
		}

		for _, m := range mf.GetMetric() {
			var value float64
			switch {
			case m.GetGauge() != nil:
				value = m.GetGauge().GetValue()
			case m.GetCounter() != nil:
				value = m.GetCounter().GetValue()
			case m.GetUntyped() != nil:
				value = m.GetUntyped().GetValue()
			default:
				continue
			}

			if len(m.GetLabel()) > 0 {
				labels := make([]string, 0, len(m.GetLabel()))
				for _, label := range m.GetLabel() {
					labels = append(labels, fmt.Sprintf("%s=\"%s\"", label.GetName(), label.GetValue()))
				}
				metrics[fmt.Sprintf("%s{%s}", name, strings.Join(labels, ","))] = value
			} else {
				metrics[name] = value
			}
		}
	}
	return metrics, nil
}

func fetchSystemData() (float64, float64, int, error) {
	v, err := mem.VirtualMemory()
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to fetch memory data: %w", err)
	}
	c, err := cpu.Percent(0, false)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to fetch CPU data: %w", err)
	}
	cores, err := cpu.Counts(true)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to fetch CPU cores: %w", err)
	}

	cpuUsage := 0.0
	if len(c) > 0 {
		cpuUsage = c[0]
	}
	return v.UsedPercent, cpuUsage, cores, nil
}

// serverInfo holds the dashboard's view of the server process.
type serverInfo struct {
	PID        int32
	CPUPercent float64
	MemPercent float32
	Uptime     string
	Status     string
}

// fetchServerInfo locates the server process by name.
func fetchServerInfo() (*serverInfo, error) {
	processes, err := process.Processes()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch processes: %w", err)
	}

	for _, p := range processes {
		name, err := p.Name()
		if err != nil || name != serverProcessName {
			continue
		}

		cpuPercent, _ := p.CPUPercent()
		memPercent, _ := p.MemoryPercent()

		uptime := ""
		if createTime, err := p.CreateTime(); err == nil {
			uptime = time.Since(time.Unix(0, createTime*int64(time.Millisecond))).Round(time.Second).String()
		}

		status := "Running"
		if running, err := p.IsRunning(); err != nil || !running {
			status = "Stopped"
		}

		return &serverInfo{
			PID:        p.Pid,
			CPUPercent: cpuPercent,
			MemPercent: memPercent,
			Uptime:     uptime,
			Status:     status,
		}, nil
	}
	return nil, fmt.Errorf("%s process not found", serverProcessName)
}

type systemData struct {
	memUsage float64
	cpuUsage float64
	cores    int
}

// dashboardState caches collected data between UI redraws so the redraw
// path never blocks on scraping.
type dashboardState struct {
	mu      sync.RWMutex
	system  systemData
	metrics map[string]float64
	server  *serverInfo
}

var state = &dashboardState{}

func collectData(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			memUsage, cpuUsage, cores, err := fetchSystemData()
			if err != nil {
				log.Printf("Error fetching system data: %v", err)
				continue
			}

			var metrics map[string]float64
			if metricsEnabled {
				if metrics, err = fetchMetrics(); err != nil {
					log.Printf("Error fetching metrics: %v", err)
					metrics = nil
				}
			}

			info, err := fetchServerInfo()
			if err != nil {
				info = nil
			}

			state.mu.Lock()
			state.system = systemData{memUsage, cpuUsage, cores}
			state.metrics = metrics
			state.server = info
			state.mu.Unlock()
		}
	}
}

func usageCell(value float64) *tview.TableCell {
	cell := tview.NewTableCell(fmt.Sprintf("%.2f%%", value))
	switch {
	case value > highUsage:
		cell.SetTextColor(tcell.ColorRed)
	case value > mediumUsage:
		cell.SetTextColor(tcell.ColorYellow)
	default:
		cell.SetTextColor(tcell.ColorGreen)
	}
	return cell
}

func updateSystemTable(table *tview.Table, data systemData) {
	table.Clear()
	table.SetCell(0, 0, tview.NewTableCell("Metric").SetAttributes(tcell.AttrBold))
	table.SetCell(0, 1, tview.NewTableCell("Value").SetAttributes(tcell.AttrBold))

	table.SetCell(1, 0, tview.NewTableCell("CPU Usage"))
	table.SetCell(1, 1, usageCell(data.cpuUsage))
	table.SetCell(2, 0, tview.NewTableCell("Memory Usage"))
	table.SetCell(2, 1, usageCell(data.memUsage))
	table.SetCell(3, 0, tview.NewTableCell("CPU Cores"))
	table.SetCell(3, 1, tview.NewTableCell(fmt.Sprintf("%d", data.cores)))
}

func updateMetricsTable(table *tview.Table, metrics map[string]float64) {
	table.Clear()
	table.SetCell(0, 0, tview.NewTableCell("Metric").SetAttributes(tcell.AttrBold))
	table.SetCell(0, 1, tview.NewTableCell("Value").SetAttributes(tcell.AttrBold))

	keys := make([]string, 0, len(metrics))
	for key := range metrics {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for i, key := range keys {
		table.SetCell(i+1, 0, tview.NewTableCell(key))
		table.SetCell(i+1, 1, tview.NewTableCell(fmt.Sprintf("%.2f", metrics[key])))
	}
}

func updateServerTable(table *tview.Table, info *serverInfo) {
	table.Clear()
	table.SetCell(0, 0, tview.NewTableCell("Property").SetAttributes(tcell.AttrBold))
	table.SetCell(0, 1, tview.NewTableCell("Value").SetAttributes(tcell.AttrBold))

	if info == nil {
		table.SetCell(1, 0, tview.NewTableCell("Status"))
		table.SetCell(1, 1, tview.NewTableCell("Not running").SetTextColor(tcell.ColorRed))
		return
	}

	table.SetCell(1, 0, tview.NewTableCell("PID"))
	table.SetCell(1, 1, tview.NewTableCell(fmt.Sprintf("%d", info.PID)))
	table.SetCell(2, 0, tview.NewTableCell("CPU%"))
	table.SetCell(2, 1, tview.NewTableCell(fmt.Sprintf("%.2f", info.CPUPercent)))
	table.SetCell(3, 0, tview.NewTableCell("Mem%"))
	table.SetCell(3, 1, tview.NewTableCell(fmt.Sprintf("%.2f", info.MemPercent)))
	table.SetCell(4, 0, tview.NewTableCell("Uptime"))
	table.SetCell(4, 1, tview.NewTableCell(info.Uptime))
	table.SetCell(5, 0, tview.NewTableCell("Status"))
	table.SetCell(5, 1, tview.NewTableCell(info.Status))
}

func updateLogsView(view *tview.TextView) {
	content, err := readLastNLines(logFilePath, 50)
	if err != nil {
		view.SetText(fmt.Sprintf("[red]Error reading log file: %v[white]", err))
		return
	}

	lines := strings.Split(content, "\n")
	colored := make([]string, 0, len(lines))
	for _, line := range lines {
		switch {
		case strings.Contains(line, "level=error"):
			colored = append(colored, "[red]"+line+"[white]")
		case strings.Contains(line, "level=warn"):
			colored = append(colored, "[yellow]"+line+"[white]")
		case strings.Contains(line, "level=info"):
			colored = append(colored, "[green]"+line+"[white]")
		default:
			colored = append(colored, line)
		}
	}
	view.SetText(strings.Join(colored, "\n"))
}

// readLastNLines reads the tail of a file without loading the whole
// thing, stepping backwards in fixed-size chunks.
func readLastNLines(filePath string, n int) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	const bufferSize = 1024
	buffer := make([]byte, bufferSize)
	var content []byte

	fileInfo, err := file.Stat()
	if err != nil {
		return "", err
	}
	fileSize := fileInfo.Size()

	var offset int64
	for {
		if fileSize-offset < bufferSize {
			offset = fileSize
		} else {
			offset += bufferSize
		}

		if _, err := file.Seek(-offset, io.SeekEnd); err != nil {
			return "", err
		}

		bytesRead, err := file.Read(buffer)
		if err != nil && err != io.EOF {
			return "", err
		}

		content = append(buffer[:bytesRead], content...)

		if bytesRead < bufferSize || len(strings.Split(string(content), "\n")) > n+1 {
			break
		}
		if offset >= fileSize {
			break
		}
	}

	lines := strings.Split(string(content), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n"), nil
}

func main() {
	app := tview.NewApplication()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sysTable := tview.NewTable().SetBorders(false)
	sysTable.SetTitle(" [::b]System Data ").SetBorder(true)
	metricsTable := tview.NewTable().SetBorders(false)
	metricsTable.SetTitle(" [::b]Prometheus Metrics ").SetBorder(true)
	sysFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(sysTable, 7, 0, false).
		AddItem(metricsTable, 0, 1, false)

	serverTable := tview.NewTable().SetBorders(false)
	serverTable.SetTitle(" [::b]fileshare-server Details ").SetBorder(true)

	logsView := tview.NewTextView().
		SetDynamicColors(true).
		SetWordWrap(true)
	logsView.SetTitle(" [::b]Logs ").SetBorder(true)

	pages := tview.NewPages()
	pages.AddPage("system", sysFlex, true, true)
	pages.AddPage("server", serverTable, true, false)
	pages.AddPage("logs", logsView, true, false)

	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyRune {
			switch event.Rune() {
			case 'q', 'Q':
				cancel()
				app.Stop()
				return nil
			case 's', 'S':
				pages.SwitchToPage("system")
			case 'd', 'D':
				pages.SwitchToPage("server")
			case 'l', 'L':
				pages.SwitchToPage("logs")
			}
		}
		return event
	})

	go collectData(ctx)

	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				app.QueueUpdateDraw(func() {
					state.mu.RLock()
					defer state.mu.RUnlock()

					switch page, _ := pages.GetFrontPage(); page {
					case "system":
						updateSystemTable(sysTable, state.system)
						updateMetricsTable(metricsTable, state.metrics)
					case "server":
						updateServerTable(serverTable, state.server)
					case "logs":
						updateLogsView(logsView)
					}
				})
			}
		}
	}()

	if err := app.SetRoot(pages, true).EnableMouse(true).Run(); err != nil {
		log.Fatalf("Error running application: %v", err)
	}
}
