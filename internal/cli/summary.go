package cli

import (
	"fmt"
	"io"

	"github.com/vietddude/guildctl/internal/core/domain"
)

// PrintSummary writes the per-server results, one line each, in request
// order. Nothing is printed when no server was provisioned.
func PrintSummary(out io.Writer, results []domain.ProvisionedServer) {
	if len(results) == 0 {
		return
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Summary:")
	for _, r := range results {
		fmt.Fprintf(out, "  - %s: %s\n", r.Name, r.InviteURL)
	}
}
