// Command poolctl is the operator CLI for a running poold daemon: it reads
// getStatus() over the status HTTP API and renders it as a table, and sends
// pause/resume commands over the admin IPC socket.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/ironforge-pool/poolcoordinator/internal/coordinator"
	"github.com/ironforge-pool/poolcoordinator/rpc"
)

var (
	statusURLFlag = cli.StringFlag{
		Name:  "statusurl",
		Usage: "poold status API base URL",
		Value: "http://127.0.0.1:9035",
	}
	ipcPathFlag = cli.StringFlag{
		Name:  "ipcpath",
		Usage: "poold admin IPC endpoint",
		Value: "poold.ipc",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "poolctl"
	app.Usage = "operator CLI for a running pool coordinator"
	app.Flags = []cli.Flag{statusURLFlag, ipcPathFlag}
	app.Commands = []cli.Command{
		{
			Name:      "status",
			Usage:     "print pool-wide (or address-scoped) status",
			ArgsUsage: "[address]",
			Action:    statusCmd,
		},
		{
			Name:   "pause",
			Usage:  "pause work distribution",
			Action: func(ctx *cli.Context) error { return sendAdminCommand(ctx, "pause") },
		},
		{
			Name:   "resume",
			Usage:  "resume work distribution",
			Action: func(ctx *cli.Context) error { return sendAdminCommand(ctx, "resume") },
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, color.Red.Sprint(err))
		os.Exit(1)
	}
}

func statusCmd(ctx *cli.Context) error {
	url := ctx.GlobalString(statusURLFlag.Name) + "/status"
	if addr := ctx.Args().First(); addr != "" {
		url += "/" + addr
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("poolctl: fetching status: %w", err)
	}
	defer resp.Body.Close()

	var status coordinator.StatusMessage
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("poolctl: decoding status: %w", err)
	}

	color.Cyan.Println("pool status")

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"field", "value"})
	table.Append([]string{"name", status.Name})
	table.Append([]string{"hashRate", fmt.Sprintf("%.2f", status.HashRate)})
	table.Append([]string{"miners", fmt.Sprintf("%d", status.Miners)})
	table.Append([]string{"sharesPending", fmt.Sprintf("%d", status.SharesPending)})
	table.Append([]string{"banCount", fmt.Sprintf("%d", status.BanCount)})
	if status.AddressMinerCount > 0 || status.AddressHashRate > 0 {
		table.Append([]string{"addressHashRate", fmt.Sprintf("%.2f", status.AddressHashRate)})
		table.Append([]string{"addressShares", fmt.Sprintf("%d", status.AddressShares)})
		table.Append([]string{"addressMinerCount", fmt.Sprintf("%d", status.AddressMinerCount)})
	}
	table.Render()
	return nil
}

func sendAdminCommand(ctx *cli.Context, command string) error {
	dialCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := rpc.DialIPC(dialCtx, ctx.GlobalString(ipcPathFlag.Name))
	if err != nil {
		return fmt.Errorf("poolctl: dialing admin IPC: %w", err)
	}
	defer conn.Close()

	if _, err := fmt.Fprintln(conn, command); err != nil {
		return fmt.Errorf("poolctl: sending command: %w", err)
	}
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return fmt.Errorf("poolctl: reading response: %w", err)
	}
	color.Green.Println(line)
	return nil
}
