package cli

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

var boxesCmd = &cobra.Command{
	Use:   "boxes",
	Short: "Inspect and release held sandbox slots",
}

var boxesLsCmd = &cobra.Command{
	Use:   "ls [box-id]",
	Short: "List files in a held sandbox slot",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		req, _ := http.NewRequest(http.MethodGet, apiURL+"/boxes/"+args[0]+"/files", nil)
		setAuthHeader(req)

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			fmt.Printf("Error connecting to server: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		var result struct {
			Files []string `json:"files"`
		}
		if err := decodeOrFail(resp, &result); err != nil {
			os.Exit(1)
		}
		for _, name := range result.Files {
			fmt.Println(name)
		}
	},
}

var boxesCatCmd = &cobra.Command{
	Use:   "cat [box-id] [name]",
	Short: "Print the decoded contents of a file in a held sandbox slot",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		req, _ := http.NewRequest(http.MethodGet, apiURL+"/boxes/"+args[0]+"/files/"+args[1], nil)
		setAuthHeader(req)

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			fmt.Printf("Error connecting to server: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		var result struct {
			Content string `json:"content"`
		}
		if err := decodeOrFail(resp, &result); err != nil {
			os.Exit(1)
		}

		data, err := base64.StdEncoding.DecodeString(result.Content)
		if err != nil {
			fmt.Printf("Failed to decode file contents: %v\n", err)
			os.Exit(1)
		}
		os.Stdout.Write(data)
	},
}

var boxesRmCmd = &cobra.Command{
	Use:   "rm [box-id]",
	Short: "Clean up and release a held sandbox slot",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		req, _ := http.NewRequest(http.MethodDelete, apiURL+"/boxes/"+args[0], nil)
		setAuthHeader(req)

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			fmt.Printf("Error connecting to server: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			fmt.Printf("Release failed: %s\n", resp.Status)
			os.Exit(1)
		}
		fmt.Printf("box %s released\n", args[0])
	},
}

func decodeOrFail(resp *http.Response, v any) error {
	if resp.StatusCode != http.StatusOK {
		var errBody struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&errBody)
		fmt.Printf("Server returned error: %s: %s\n", resp.Status, errBody.Error)
		return fmt.Errorf("%s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func init() {
	boxesCmd.AddCommand(boxesLsCmd, boxesCatCmd, boxesRmCmd)
	RootCmd.AddCommand(boxesCmd)
}
