package cmd

import (
	"fmt"
	"github.com/ValentinKolb/dBridge/cmd/renderer"
	"github.com/ValentinKolb/dBridge/cmd/sim"
	"github.com/ValentinKolb/dBridge/cmd/util"
	"github.com/spf13/cobra"
	"os"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dbridge",
		Short: "local message bridge between a simulation and a renderer",
		Long: fmt.Sprintf(`dBridge (v%s)

A message bridge between a replicated simulation and a rendering engine
running on the same machine. Object lifecycle, properties, geometry and
events travel as batched websocket messages over a local socket.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dBridge",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dBridge v%s\n", Version)
		},
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(renderer.RendererCmd)
	RootCmd.AddCommand(sim.SimCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "transport"
	RootCmd.PersistentFlags().String(key, "unix", util.WrapString("transport to use (unix, tcp)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
