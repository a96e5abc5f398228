package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List languages the server has set up",
	Run: func(cmd *cobra.Command, args []string) {
		req, _ := http.NewRequest(http.MethodGet, apiURL+"/languages", nil)
		setAuthHeader(req)

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			fmt.Printf("Error connecting to server: %v\nIs the server running?\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			fmt.Printf("Server returned error: %s\n", resp.Status)
			os.Exit(1)
		}

		var result struct {
			Languages []string `json:"languages"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			fmt.Printf("Error parsing response: %v\n", err)
			os.Exit(1)
		}

		for _, name := range result.Languages {
			fmt.Println(name)
		}
	},
}

func init() {
	RootCmd.AddCommand(languagesCmd)
}
