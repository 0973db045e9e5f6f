package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func noShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mark-no-shows",
		Short: "Mark pending appointments past their grace period as no-shows",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap()
			if err != nil {
				return err
			}
			defer rt.close()

			events := openPublisher(rt.config.MQ, rt.logger)
			defer events.Close()

			service, err := buildServices(rt, events)
			if err != nil {
				return err
			}

			n, err := service.Appointment.MarkNoShows(context.Background(), time.Now())
			if err != nil {
				rt.logger.Error("No-show sweep failed", zap.Error(err))
				return err
			}

			fmt.Printf("Marked %d appointment(s) as no-show.\n", n)
			return nil
		},
	}
}
