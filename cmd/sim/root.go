package sim

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dBridge/bridge/codec"
	"github.com/ValentinKolb/dBridge/bridge/common"
	"github.com/ValentinKolb/dBridge/bridge/inbound"
	"github.com/ValentinKolb/dBridge/bridge/session"
	cmdUtil "github.com/ValentinKolb/dBridge/cmd/util"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/segmentio/ksuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

var Logger = logger.GetLogger("cmd")

var (
	simConfig *common.Config
	SimCmd    = &cobra.Command{
		Use:     "sim",
		Short:   "Run the simulation side of the bridge",
		Long:    `Dial the renderer and, once it sent the handshake, spawn a number of demo objects that circle around the origin. The configuration can be set via command line flags or environment variables. The format of the environment variables is DBRIDGE_<flag> (e.g. DBRIDGE_OBJECTS=32)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	cmdUtil.SetupBridgeFlags(SimCmd)

	key := "objects"
	SimCmd.PersistentFlags().Int(key, 8, cmdUtil.WrapString("Number of demo objects to spawn"))

	key = "object-type"
	SimCmd.PersistentFlags().String(key, "cube", cmdUtil.WrapString("Object type of the demo objects, resolved by the renderer manifests"))

	key = "radius"
	SimCmd.PersistentFlags().Float64(key, 5, cmdUtil.WrapString("Radius of the circle the objects move on"))

	key = "speed"
	SimCmd.PersistentFlags().Float64(key, 0.5, cmdUtil.WrapString("Angular speed of the objects in radians per second"))

	key = "clock-sync"
	SimCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Whether to estimate the clock offset to the renderer"))

	key = "connect-timeout"
	SimCmd.PersistentFlags().Duration(key, 5*time.Second, cmdUtil.WrapString("How long to wait for the renderer socket"))
}

// processConfig reads the configuration from the command line flags and environment variables
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}
	simConfig = cmdUtil.GetConfig(common.RoleSimulation)
	simConfig.ClockSync = viper.GetBool("clock-sync")

	if viper.GetInt("objects") < 0 {
		return fmt.Errorf("objects must not be negative")
	}
	return simConfig.Validate()
}

func run(_ *cobra.Command, _ []string) error {
	common.InitLoggers(simConfig)
	Logger.Infof(simConfig.String())

	t, err := cmdUtil.GetClientTransport(simConfig)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := &demo{
		count:  viper.GetInt("objects"),
		typ:    viper.GetString("object-type"),
		radius: viper.GetFloat64("radius"),
		speed:  viper.GetFloat64("speed"),
	}
	d.session = session.NewSimulation(simConfig, session.Hooks{
		OnHandshake: d.start,
		OnTick:      d.tick,
		OnClosed: func(err error) {
			Logger.Infof("bridge closed after %d objects: %v", len(d.handles), err)
		},
	})
	d.session.RegisterHandler(common.CmdPublish, logMessage)
	d.session.RegisterHandler(common.CmdEvent, logMessage)

	connectCtx, cancel := context.WithTimeout(ctx, viper.GetDuration("connect-timeout"))
	err = d.session.Connect(connectCtx, t)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to connect to the renderer: %w", err)
	}

	err = d.session.Run(ctx)
	if ctx.Err() != nil {
		// interrupted by the user
		return nil
	}
	if errors.Is(err, common.ErrConnectionLost) {
		return fmt.Errorf("renderer disconnected: %w", err)
	}
	return err
}

func logMessage(msg inbound.Message) error {
	Logger.Infof("%s %s", msg.Command, strings.Join(msg.Args, " "))
	return nil
}

// --------------------------------------------------------------------------
// Demo Scene
// --------------------------------------------------------------------------

// demo spawns objects after the handshake and moves them on a circle
type demo struct {
	session *session.Session
	count   int
	typ     string
	radius  float64
	speed   float64

	handles   []common.Handle
	started   time.Time
	lastStats time.Time
}

// start is called on the tick goroutine when the renderer sent readyForSession
func (d *demo) start(h common.Handshake) {
	if d.handles != nil {
		Logger.Warningf("second handshake ignored")
		return
	}
	Logger.Infof("renderer ready: app %s, session %s", h.AppID, h.SessionName)

	objects := d.session.Objects()
	d.handles = make([]common.Handle, 0, d.count)
	for i := 0; i < d.count; i++ {
		handle, err := objects.MakeObject(common.ObjectSpec{
			Name:            fmt.Sprintf("demo-%d", i),
			Type:            d.typ,
			ConfirmCreation: true,
			WaitToPresent:   true,
			Properties:      []string{"index", fmt.Sprint(i)},
		})
		if err != nil {
			Logger.Errorf("failed to create demo object %d: %v", i, err)
			return
		}
		hue := float64(i) / float64(max(d.count, 1))
		_ = objects.SetProperty(handle, "color", codec.Floats(hue, 1-hue, 0.5))
		d.handles = append(d.handles, handle)

		var g codec.Geometry
		g.SetScale(codec.Vec3{1, 1, 1}, true)
		_ = objects.UpdateSpatial(handle, g)
		d.session.JoinProgress(float64(i+1) / float64(d.count))
	}

	d.started = time.Now()
	d.session.SessionRunning("view-" + ksuid.New().String())
	objects.Publish("demo", "spawned", nil)
}

// tick moves all objects and logs the bridge state every few seconds
func (d *demo) tick(now time.Time) {
	if d.started.IsZero() {
		return
	}
	objects := d.session.Objects()
	elapsed := now.Sub(d.started).Seconds()
	for i, h := range d.handles {
		angle := d.speed*elapsed + 2*math.Pi*float64(i)/float64(len(d.handles))
		var g codec.Geometry
		g.SetTranslation(codec.Vec3{
			float32(d.radius * math.Cos(angle)),
			0,
			float32(d.radius * math.Sin(angle)),
		}, false)
		// rotation around the y axis, facing the direction of movement
		half := -angle / 2
		g.SetRotation(codec.Quat{0, float32(math.Sin(half)), 0, float32(math.Cos(half))}, false)
		_ = objects.UpdateSpatial(h, g)
	}

	if now.Sub(d.lastStats) >= 5*time.Second {
		d.lastStats = now
		d.logStats()
	}
}

func (d *demo) logStats() {
	confirmed := 0
	for _, h := range d.handles {
		if d.session.Objects().Confirmed(h) {
			confirmed++
		}
	}
	est := d.session.Clock()
	offset, ok := est.CurrentOffset()
	if ok {
		Logger.Infof("%d/%d objects confirmed, clock %s offset %s (min rtt %.2fms, %d resets)",
			confirmed, len(d.handles), est.State(), offset, est.MinRoundTrip(), est.Resets())
	} else {
		Logger.Infof("%d/%d objects confirmed, clock %s", confirmed, len(d.handles), est.State())
	}
	if err := d.session.Ping(); err != nil {
		Logger.Warningf("ping failed: %v", err)
	}
	d.session.Measure("stats", d.started, time.Since(d.started), "uptime")
}
