package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	solveLanguage string
	solveContext  string
	solveWatch    bool
)

// solveCmd submits a solve task.
var solveCmd = &cobra.Command{
	Use:   "solve [requirements]",
	Short: "Submit a solve task",
	Long: `Submit problem requirements to the solverd server and print the task id.

Requirements are read from the argument, or from stdin when the argument is "-".

Examples:
  # Submit a task
  solvectl solve "write a function that reverses a linked list" --language go

  # Submit from a file and stream progress until completion
  cat problem.txt | solvectl solve - --watch`,
	Args: cobra.ExactArgs(1),
	RunE: runSolve,
}

func init() {
	solveCmd.Flags().StringVarP(&solveLanguage, "language", "l", "python", "target language")
	solveCmd.Flags().StringVar(&solveContext, "context", "", "additional context for the task")
	solveCmd.Flags().BoolVarP(&solveWatch, "watch", "w", false, "stream progress events until the task finishes")
}

func runSolve(cmd *cobra.Command, args []string) error {
	requirements := args[0]
	if requirements == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		requirements = strings.TrimSpace(string(data))
	}
	if requirements == "" {
		return fmt.Errorf("requirements must not be empty")
	}

	body, err := json.Marshal(map[string]string{
		"requirements":       requirements,
		"language":           solveLanguage,
		"additional_context": solveContext,
	})
	if err != nil {
		return err
	}

	resp, err := http.Post(serverURL+"/api/v1/solve", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return serverError(resp)
	}

	var ack struct {
		TaskID string `json:"task_id"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("task %s (%s)\n", ack.TaskID, ack.Status)

	if solveWatch {
		return watchEvents(ack.TaskID)
	}
	return nil
}

// watchEvents follows the task's SSE stream until a terminal event.
func watchEvents(taskID string) error {
	client := &http.Client{Timeout: 0} // the stream is long-lived
	resp, err := client.Get(serverURL + "/api/v1/events/" + taskID)
	if err != nil {
		return fmt.Errorf("failed to open event stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return serverError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var ev struct {
			Type    string         `json:"type"`
			Phase   string         `json:"phase"`
			Percent int            `json:"percent"`
			Message string         `json:"message"`
			Reason  string         `json:"reason"`
			Payload map[string]any `json:"payload"`
		}
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			continue
		}

		switch ev.Type {
		case "completed":
			fmt.Printf("[%s] 100%% completed\n", timestamp())
			if code, ok := ev.Payload["code"].(string); ok && code != "" {
				fmt.Println(code)
			}
			return nil
		case "failed":
			return fmt.Errorf("task failed: %s", ev.Reason)
		case "cancelled":
			fmt.Printf("[%s] task cancelled\n", timestamp())
			return nil
		default:
			fmt.Printf("[%s] %3d%% %s %s\n", timestamp(), ev.Percent, ev.Phase, ev.Message)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("event stream interrupted: %w", err)
	}
	return nil
}

func timestamp() string {
	return time.Now().Format("15:04:05")
}

// serverError extracts the error message from a non-success response.
func serverError(resp *http.Response) error {
	data, _ := io.ReadAll(resp.Body)
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, body.Error)
	}
	return fmt.Errorf("server returned %d", resp.StatusCode)
}
