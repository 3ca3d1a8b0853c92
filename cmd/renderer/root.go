package renderer

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dBridge/bridge/common"
	"github.com/ValentinKolb/dBridge/bridge/session"
	cmdUtil "github.com/ValentinKolb/dBridge/cmd/util"
	"github.com/ValentinKolb/dBridge/lib/scene"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

var Logger = logger.GetLogger("cmd")

var (
	rendererConfig *common.Config
	RendererCmd    = &cobra.Command{
		Use:     "renderer",
		Short:   "Run the renderer side of the bridge",
		Long:    `Listen on the bridge socket and wait for the simulation. On connect the renderer sends the handshake, applies all object commands to its scene registry and logs them. The configuration can be set via command line flags or environment variables. The format of the environment variables is DBRIDGE_<flag> (e.g. DBRIDGE_APP_ID=demo)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	cmdUtil.SetupBridgeFlags(RendererCmd)

	key := "api-key"
	RendererCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("API key sent to the simulation in the handshake"))

	key = "app-id"
	RendererCmd.PersistentFlags().String(key, "io.dbridge.demo", cmdUtil.WrapString("Application id sent to the simulation in the handshake"))

	key = "session-name"
	RendererCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Session name sent in the handshake, a random one is generated if empty"))

	key = "early-topics"
	RendererCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Comma-separated list of pub/sub topics the simulation should subscribe before the session runs"))

	key = "manifests"
	RendererCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Comma-separated list of TOML asset manifests mapping object types to behaviors"))

	key = "metrics-path"
	RendererCmd.PersistentFlags().String(key, "/metrics", cmdUtil.WrapString("HTTP path of the Prometheus metrics on the bridge listener, empty disables it"))
}

// processConfig reads the configuration from the command line flags and environment variables
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	rendererConfig = cmdUtil.GetConfig(common.RoleRenderer)
	rendererConfig.APIKey = viper.GetString("api-key")
	rendererConfig.AppID = viper.GetString("app-id")
	if name := viper.GetString("session-name"); name != "" {
		rendererConfig.SessionName = name
	}
	rendererConfig.EarlySubscriptionTopics = cmdUtil.SplitList(viper.GetString("early-topics"))
	rendererConfig.ManifestPaths = cmdUtil.SplitList(viper.GetString("manifests"))
	rendererConfig.MetricsPath = viper.GetString("metrics-path")

	return rendererConfig.Validate()
}

// run serves exactly one simulation connection
func run(_ *cobra.Command, _ []string) error {
	common.InitLoggers(rendererConfig)
	Logger.Infof(rendererConfig.String())

	catalog, err := scene.LoadCatalog(rendererConfig.ManifestPaths...)
	if err != nil {
		return err
	}

	t, err := cmdUtil.GetServerTransport(rendererConfig)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine := &logEngine{}
	var s *session.Session
	s = session.NewRenderer(rendererConfig, catalog, engine, session.Hooks{
		OnSessionRunning: func(viewID string) {
			Logger.Infof("simulation running, view %s", viewID)
			s.SetLogForwarding("warn", "error")
		},
		OnSessionDisconnected: func() {
			Logger.Warningf("simulation lost its session")
		},
		OnJoinProgress: func(ratio float64) {
			Logger.Infof("joining %.0f%%", ratio*100)
		},
		OnPublish: func(scope, event string, args []string) {
			Logger.Infof("croquetPub %s/%s %s", scope, event, strings.Join(args, " "))
		},
		OnTick: periodic(5*time.Second, func() {
			Logger.Infof("%d objects live, %d geometry updates applied", s.Registry().Len(), engine.geometryUpdates)
		}),
		OnClosed: func(err error) {
			Logger.Infof("bridge closed: %v", err)
		},
	})

	go func() {
		<-t.Ready()
		Logger.Infof("waiting for the simulation on %s://%s", rendererConfig.Transport, rendererConfig.Endpoint)
	}()

	err = s.Serve(ctx, t)
	if ctx.Err() != nil {
		// interrupted by the user
		return nil
	}
	if errors.Is(err, common.ErrConnectionLost) {
		return fmt.Errorf("simulation disconnected: %w", err)
	}
	return err
}

// periodic returns a tick hook that calls f at most once per interval
func periodic(interval time.Duration, f func()) func(now time.Time) {
	var last time.Time
	return func(now time.Time) {
		if now.Sub(last) < interval {
			return
		}
		last = now
		f()
	}
}
