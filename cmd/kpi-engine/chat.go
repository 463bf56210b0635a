package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive question-and-answer session",
	Long: `Chat starts a request/response loop over the ingested corpus. Type a
question and get a grounded answer, a clarification list, or an apology.
The session itself is stateless: no turn depends on a previous one.
Type "exit" or "quit" to leave.`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	eng, closer, err := buildEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer closer()

	prompt := color.New(color.FgCyan, color.Bold)
	botLabel := color.New(color.FgGreen, color.Bold)

	fmt.Println("KPI engine ready. Ask a question, or type 'exit' to quit.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		prompt.Print("You: ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(input) {
		case "exit", "quit":
			fmt.Println("Goodbye!")
			return nil
		case "":
			continue
		}

		spin := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		spin.Suffix = " thinking..."
		spin.Start()

		turnCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		answer, err := eng.Answer(turnCtx, input)
		cancel()
		spin.Stop()

		if err != nil {
			color.Red("Something went wrong talking to the model: %v", err)
			continue
		}

		botLabel.Print("Bot: ")
		fmt.Printf("%s\n\n", answer)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}
