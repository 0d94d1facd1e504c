package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/smazurov/camerahost/internal/camera"
)

type deviceJSON struct {
	Name string `json:"name"`
	ID   string `json:"id"`
	Path string `json:"path,omitempty"`
}

// CreateDevicesCmd creates the devices command.
func CreateDevicesCmd(env func() Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List capture devices",
		Long: `Print the unique name of every capture device, one per line.
Pass a name to "camerahost snapshot" or to POST /api/cameras.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			return listDevices(cmd.Context(), env().Directory, cmd.OutOrStdout(), asJSON)
		},
	}
	cmd.Flags().Bool("json", false, "Print device records as JSON")
	return cmd
}

func listDevices(ctx context.Context, lister camera.DeviceLister, w io.Writer, asJSON bool) error {
	records, err := lister.ListDevices(ctx)
	if err != nil {
		return fmt.Errorf("failed to enumerate devices: %w", err)
	}

	if asJSON {
		out := make([]deviceJSON, len(records))
		for i, r := range records {
			out[i] = deviceJSON{Name: r.UniqueName(), ID: r.ID, Path: r.Path}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if len(records) == 0 {
		fmt.Fprintln(w, "No capture devices found")
		return nil
	}
	for _, r := range records {
		fmt.Fprintln(w, r.UniqueName())
	}
	return nil
}
