package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "slateview-service",
	Short: "Slateview session service",
	Long:  `Slateview session service - keeps one slateview-server running per graphical login session`,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the session service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runService()
	},
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List current login sessions as the service sees them",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listSessions()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Slateview Session Service v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/slateview/service.yaml)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
