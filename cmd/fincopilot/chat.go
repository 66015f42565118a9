package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fincopilot/fincopilot/internal/app"
	"github.com/fincopilot/fincopilot/internal/logger"
	"github.com/fincopilot/fincopilot/internal/metrics"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var chatOwner string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatOwner, "user", "u", "local", "user id for the session")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		cancel()
	}()

	reg := metrics.NewRegistry()
	stopMetrics := serveMetrics(cfg.Metrics, reg, log)
	defer stopMetrics()

	a, cleanup, err := buildApp(ctx, cfg, reg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	fmt.Println("FinCopilot ready. Type your question, or 'exit' to quit.")

	var sessionID string
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		resp, err := a.HandleTurn(ctx, app.TurnRequest{
			SessionID: sessionID,
			OwnerID:   chatOwner,
			Message:   line,
		})
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Error("turn failed", zap.Error(err))
			fmt.Printf("error: %v\n", err)
			continue
		}
		sessionID = resp.SessionID

		for _, call := range resp.ToolCalls {
			log.Debug("tool call", zap.String("tool", call.Tool))
		}
		fmt.Println(resp.Answer)
	}

	return scanner.Err()
}
