// Command pool-monitor is a live terminal dashboard for a running poold
// daemon: it polls the status HTTP API and plots hashrate and miner count
// over time.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"time"

	ui "github.com/gizak/termui"

	"github.com/ironforge-pool/poolcoordinator/internal/coordinator"
)

const historyLen = 120

func main() {
	statusURL := flag.String("statusurl", "http://127.0.0.1:9035/status", "poold status API URL")
	interval := flag.Duration("interval", 2*time.Second, "poll interval")
	flag.Parse()

	if err := ui.Init(); err != nil {
		panic(fmt.Sprintf("pool-monitor: initializing terminal UI: %v", err))
	}
	defer ui.Close()

	hashrate := ui.NewLineChart()
	hashrate.BorderLabel = "hash rate"
	hashrate.Data["rate"] = make([]float64, 0, historyLen)
	hashrate.Height = 14
	hashrate.AxesColor = ui.ColorWhite
	hashrate.LineColor = ui.ColorGreen | ui.AttrBold

	miners := ui.NewGauge()
	miners.BorderLabel = "subscribed miners"
	miners.Height = 3
	miners.BarColor = ui.ColorCyan

	summary := ui.NewParagraph("")
	summary.BorderLabel = "pool"
	summary.Height = 6

	ui.Body.AddRows(
		ui.NewRow(ui.NewCol(12, 0, summary)),
		ui.NewRow(ui.NewCol(12, 0, hashrate)),
		ui.NewRow(ui.NewCol(12, 0, miners)),
	)
	ui.Body.Align()
	ui.Render(ui.Body)

	client := &http.Client{Timeout: 3 * time.Second}
	poll := func() {
		status, err := fetchStatus(client, *statusURL)
		if err != nil {
			summary.Text = fmt.Sprintf("error fetching status: %v", err)
			ui.Render(ui.Body)
			return
		}

		series := hashrate.Data["rate"]
		series = append(series, status.HashRate)
		if len(series) > historyLen {
			series = series[len(series)-historyLen:]
		}
		hashrate.Data["rate"] = series

		miners.Percent = 100
		miners.Label = fmt.Sprintf("%d miners", status.Miners)

		summary.Text = fmt.Sprintf("pool: %s\nhashRate: %.2f\nsharesPending: %d\nbanCount: %d",
			status.Name, status.HashRate, status.SharesPending, status.BanCount)

		ui.Body.Align()
		ui.Render(ui.Body)
	}

	poll()
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	ui.Handle("/sys/kbd/q", func(ui.Event) { ui.StopLoop() })
	ui.Handle("/sys/kbd/C-c", func(ui.Event) { ui.StopLoop() })

	go func() {
		for range ticker.C {
			poll()
		}
	}()

	ui.Loop()
}

func fetchStatus(client *http.Client, url string) (coordinator.StatusMessage, error) {
	resp, err := client.Get(url)
	if err != nil {
		return coordinator.StatusMessage{}, err
	}
	defer resp.Body.Close()

	var status coordinator.StatusMessage
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return coordinator.StatusMessage{}, err
	}
	return status, nil
}
