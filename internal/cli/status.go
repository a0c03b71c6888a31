package cli

import (
	"time"

	"github.com/spf13/cobra"

	errs "stockdeck/internal/errors"
)

func newStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check backend connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			started := time.Now()
			err := app.Client.Health(cmd.Context())
			elapsed := time.Since(started)

			if output.IsJSON() {
				result := map[string]interface{}{
					"backend":    app.Config.Backend.BaseURL,
					"healthy":    err == nil,
					"latency_ms": elapsed.Milliseconds(),
				}
				if err != nil {
					result["error"] = err.Error()
				}
				return output.JSON(result)
			}

			output.Printf("Backend: %s\n", app.Config.Backend.BaseURL)
			if err != nil {
				if errs.Is(err, errs.ErrSessionExpired) {
					output.Error("✗ Session expired")
				} else {
					output.Error("✗ Unreachable: %v", err)
				}
				return err
			}

			output.Success("✓ Healthy (%dms)", elapsed.Milliseconds())
			return nil
		},
	}
}
