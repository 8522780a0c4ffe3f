package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var backendFlag string
	var deviceFlag string
	var logLevelFlag string

	ctx := newCommandContext(&configFlag, &backendFlag, &deviceFlag, &logLevelFlag)

	rootCmd := &cobra.Command{
		Use:           "clip-recorder",
		Short:         "Record short voice clips from the menu bar or the terminal",
		Version:       Version + " (" + Commit + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTray(cmd.Context(), ctx)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "", "Audio backend (portaudio, malgo, pulse, fake)")
	rootCmd.PersistentFlags().StringVarP(&deviceFlag, "device", "d", "", "Input device ID")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newRecordCommand(ctx))
	rootCmd.AddCommand(newDevicesCommand(ctx))

	return rootCmd
}
