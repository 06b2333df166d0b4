package client

import (
	"github.com/spf13/cobra"
)

// BaseURLFunc provides the base HTTP API URL (e.g., from env or flag).
type BaseURLFunc func() string

// NewRoot constructs a root Cobra command for the ledger client.
// It registers the log and positions command groups.
func NewRoot(baseURL BaseURLFunc) *cobra.Command {
	root := &cobra.Command{
		Use:   "ledger",
		Short: "Ledger client commands",
	}
	root.AddCommand(NewLogCommand(baseURL))
	root.AddCommand(NewPositionsCommand(baseURL))
	return root
}
