package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a single question against the ingested corpus",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	eng, closer, err := buildEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer closer()

	question := strings.Join(args, " ")
	answer, err := eng.Answer(ctx, question)
	if err != nil {
		return fmt.Errorf("answer query: %w", err)
	}

	fmt.Println(answer)
	return nil
}
