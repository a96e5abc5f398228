package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

var execLanguage string

var execCmd = &cobra.Command{
	Use:   "exec [code]",
	Short: "Compile and run code in a fresh sandbox slot",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		payload := map[string]string{"language": execLanguage, "code": args[0]}
		body, _ := json.Marshal(payload)

		req, _ := http.NewRequest(http.MethodPost, apiURL+"/execute", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		setAuthHeader(req)

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			fmt.Printf("Failed to connect: %v\nIs the server running?\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			fmt.Printf("Execute failed: %s\n", resp.Status)
			io.Copy(os.Stderr, resp.Body)
			os.Exit(1)
		}

		var result struct {
			Stdout   string `json:"stdout"`
			Stderr   string `json:"stderr"`
			BoxID    int    `json:"box_id"`
			Metadata struct {
				ExitCode int    `json:"exit_code"`
				Status   string `json:"status"`
			} `json:"metadata"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			fmt.Printf("Bad response: %v\n", err)
			os.Exit(1)
		}

		fmt.Print(result.Stdout)
		if result.Stderr != "" {
			fmt.Fprint(os.Stderr, result.Stderr)
		}
		fmt.Printf("\n[box %d] status=%s exit_code=%d\n", result.BoxID, result.Metadata.Status, result.Metadata.ExitCode)
	},
}

func init() {
	execCmd.Flags().StringVarP(&execLanguage, "language", "l", "python", "Language to run the code as")
	RootCmd.AddCommand(execCmd)
}

func setAuthHeader(req *http.Request) {
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
}
