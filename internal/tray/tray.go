package tray

import (
	"context"
	"fmt"
	"sync"

	"github.com/getlantern/systray"
	"github.com/rs/zerolog"

	"github.com/petems/clip-recorder/internal/app"
	"github.com/petems/clip-recorder/internal/config"
	"github.com/petems/clip-recorder/internal/logging"
	"github.com/petems/clip-recorder/internal/recording"
)

type UI struct {
	app     *app.App
	version string
	commit  string
	log     zerolog.Logger
	onQuit  func()

	mu       sync.Mutex
	ready    bool
	status   string
	elapsed  int
	disabled bool

	// Menu items
	mStartStop *systray.MenuItem
	mMode      *systray.MenuItem
	mDevices   *systray.MenuItem
}

// Status update methods for the app to call
func (u *UI) SetIdle() {
	u.updateStatus("idle")
}

func (u *UI) SetRecording() {
	u.updateStatus("recording")
}

func (u *UI) SetProcessing() {
	u.updateStatus("processing")
}

func (u *UI) SetError() {
	u.updateStatus("error")
}

func (u *UI) SetElapsed(seconds int) {
	u.mu.Lock()
	u.elapsed = seconds
	u.mu.Unlock()
	u.render()
}

// SetDisabled greys out the start/stop item. Hotkey input is unaffected.
func (u *UI) SetDisabled(disabled bool) {
	u.mu.Lock()
	u.disabled = disabled
	u.mu.Unlock()
	u.render()
}

func New(log zerolog.Logger, version, commit string) *UI {
	return &UI{
		version: version,
		commit:  commit,
		log:     log.With().Str("component", "tray").Logger(),
		status:  "idle",
	}
}

// SetApp sets the app reference (for circular dependency resolution)
func (u *UI) SetApp(application *app.App) {
	u.app = application
}

// Run blocks on the tray event loop until Quit is chosen or ctx ends.
func (u *UI) Run(ctx context.Context, onQuit func()) error {
	u.onQuit = onQuit
	go func() {
		<-ctx.Done()
		systray.Quit()
	}()
	systray.Run(u.onReady, u.onExit)
	return nil
}

func (u *UI) onReady() {
	systray.SetTooltip("Record a voice clip")

	// Build menu
	u.mStartStop = systray.AddMenuItem(startStopLabel(false), "Start or stop a recording")
	systray.AddSeparator()

	u.mMode = systray.AddMenuItem(modeLabel(u.app.Mode()), "Toggle between modes")
	systray.AddSeparator()

	u.mDevices = systray.AddMenuItem("Microphone", "Select audio device")
	u.buildDeviceMenu()

	systray.AddSeparator()
	mLogs := systray.AddMenuItem("Open Logs", "View application logs")
	mAbout := systray.AddMenuItem("About", "About Clip Recorder")
	mQuit := systray.AddMenuItem("Quit", "Exit application")

	u.mu.Lock()
	u.ready = true
	u.mu.Unlock()
	u.render()

	// Event loop
	go u.handleEvents(mLogs, mAbout, mQuit)
}

func (u *UI) handleEvents(mLogs, mAbout, mQuit *systray.MenuItem) {
	for {
		select {
		case <-u.mStartStop.ClickedCh:
			// Start blocks while the device is granted.
			go u.app.Toggle(context.Background())
		case <-u.mMode.ClickedCh:
			u.toggleMode()
		case <-mLogs.ClickedCh:
			u.openLogs()
		case <-mAbout.ClickedCh:
			u.showAbout()
		case <-mQuit.ClickedCh:
			if u.onQuit != nil {
				u.onQuit()
			}
			systray.Quit()
			return
		}
	}
}

func (u *UI) buildDeviceMenu() {
	// Get devices from app
	devices, err := u.app.ListDevices()
	if err != nil {
		u.log.Error().Err(err).Msg("Failed to list audio devices")
		return
	}

	selected := u.app.DeviceID()
	deviceItems := make(map[string]*systray.MenuItem)

	for _, dev := range devices {
		item := u.mDevices.AddSubMenuItem(dev.Name, "")
		if dev.ID == selected || (selected == "" && dev.Default) {
			item.Check()
		}
		deviceItems[dev.ID] = item

		go func(deviceID, deviceName string, menuItem *systray.MenuItem) {
			for {
				<-menuItem.ClickedCh
				if err := u.app.SetDevice(deviceID); err != nil {
					u.log.Warn().Err(err).Str("device", deviceName).Msg("Device not changed")
					continue
				}
				// Uncheck all other items
				for id, itm := range deviceItems {
					if id != deviceID {
						itm.Uncheck()
					}
				}
				menuItem.Check()
				u.log.Info().Str("device", deviceName).Msg("Changed audio device")
			}
		}(dev.ID, dev.Name, item)
	}
}

func (u *UI) toggleMode() {
	oldMode := u.app.Mode()
	newMode := config.ModeToggle
	if oldMode == config.ModeToggle {
		newMode = config.ModePushToTalk
	}
	if err := u.app.SetMode(newMode); err != nil {
		u.log.Error().Err(err).Msg("Failed to save mode")
	}
	u.mMode.SetTitle(modeLabel(newMode))
	u.log.Info().Str("from", oldMode).Str("to", newMode).Msg("Changed mode")
}

func (u *UI) openLogs() {
	// TODO: Open log file with default app
	fmt.Println(logging.Path())
}

func (u *UI) showAbout() {
	// TODO: Show about dialog with native UI
	fmt.Printf("Clip Recorder %s (%s)\nVoice clip recorder\n", u.version, u.commit)
}

func (u *UI) onExit() {
	u.log.Debug().Msg("Tray exited")
}

func (u *UI) updateStatus(status string) {
	u.mu.Lock()
	u.status = status
	u.mu.Unlock()
	u.render()
}

// render pushes the current status to the tray title and start/stop item.
func (u *UI) render() {
	u.mu.Lock()
	ready, status, elapsed, disabled := u.ready, u.status, u.elapsed, u.disabled
	u.mu.Unlock()
	if !ready {
		return
	}

	systray.SetTitle(formatTitle(status, elapsed))
	u.mStartStop.SetTitle(startStopLabel(status == "recording"))
	if disabled || status == "processing" {
		u.mStartStop.Disable()
	} else {
		u.mStartStop.Enable()
	}
}

// formatTitle renders the tray title: microphone, status dot and, while
// recording, the elapsed time.
func formatTitle(status string, elapsed int) string {
	title := fmt.Sprintf("🎤 %s", emojiForStatus(status))
	if status == "recording" {
		title += " " + recording.FormatElapsed(elapsed)
	}
	return title
}

func startStopLabel(active bool) string {
	if active {
		return "Stop Recording"
	}
	return "Start Recording"
}

func modeLabel(mode string) string {
	if mode == config.ModeToggle {
		return "Mode: Toggle"
	}
	return "Mode: Push-to-Talk"
}

// emojiForStatus returns the appropriate status emoji
func emojiForStatus(status string) string {
	switch status {
	case "recording":
		return "🔴" // Red - recording
	case "processing":
		return "🟡" // Yellow - assembling the clip
	case "idle":
		return "🟢" // Green - ready/idle
	case "error":
		return "⚪️" // White - error
	default:
		return "🟢" // Green - default to ready
	}
}
