package daemon

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"github.com/abraxasd/abraxas/gamma"
	"github.com/abraxasd/abraxas/sigmoid"
	"github.com/abraxasd/abraxas/store"
	"github.com/abraxasd/abraxas/weather"
)

// tickPeriodSeconds is TEMP_UPDATE_SEC: how often the loop recomputes the
// target temperature even if nothing else woke it.
const tickPeriodSeconds = 60

// gammaInitMaxRetries and gammaInitRetryDelayMS bound the startup probe
// for a not-yet-ready display server: up to 30 seconds total.
const (
	gammaInitMaxRetries   = 60
	gammaInitRetryDelayMS = 500
)

// ErrInterrupted is returned by Run when a termination signal arrived
// during startup (gamma backend probing); it is not a failure, just an
// early clean exit.
var ErrInterrupted = errors.New("daemon: interrupted during startup")

// Run executes the full daemon lifecycle: the nine-step startup sequence
// in spec order, then the epoll event loop until a termination signal
// arrives, then a clean shutdown.
func Run(logger *slog.Logger, paths store.Paths, cardNum int) error {
	logger.Info("starting abraxas daemon")

	// Step 1: block SIGTERM/SIGINT and get a readable fd for them before
	// anything that can fail.
	signalFD, err := blockTerminationSignals()
	if err != nil {
		return err
	}
	defer unix.Close(signalFD)

	// Step 2: probe the gamma dispatcher with retry.
	backend, err := openBackendWithRetry(cardNum, signalFD, logger)
	if err != nil {
		return err
	}

	state := &State{Paths: paths}
	now := time.Now()
	state.Location = store.LoadLocation(paths.LocationFile)

	// Step 3: PID file.
	if err := store.WritePIDFile(paths.PIDFile); err != nil {
		logger.Warn("failed to write pid file", "error", err)
	}

	// Step 4: apply the correct temperature immediately at startup.
	state.Weather = store.LoadWeatherCache(paths.CacheFile)
	startupTemp := state.solarTemperature(now)
	if err := backend.SetTemperature(startupTemp, 1.0); err != nil {
		logger.Warn("failed to apply startup temperature", "error", err)
	}
	state.LastTemp, state.LastTempValid = startupTemp, true
	logger.Info("applied startup temperature", "kelvin", startupTemp, "backend", backend.Name())

	// Step 5: inotify watch on the config directory.
	inotifyFD, err := watchConfigDir(paths.ConfigDir)
	if err != nil {
		logger.Warn("inotify watch failed, config changes require a restart", "error", err)
		inotifyFD = -1
	}

	// Step 6: process hardening.
	_ = unix.Prctl(unix.PR_SET_TIMERSLACK, 1, 0, 0, 0)
	_ = unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0)
	_ = unix.Prctl(unix.PR_SET_DUMPABLE, 0, 0, 0, 0)

	// Step 7: filesystem sandbox.
	if installLandlockSandbox(paths.ConfigDir) {
		logger.Info("landlock sandbox installed")
	} else {
		logger.Warn("landlock sandbox unavailable (kernel too old or disabled)")
	}

	// Step 8: syscall filter.
	if installSeccompFilter() {
		logger.Info("seccomp filter installed")
	} else {
		logger.Warn("seccomp filter install failed")
	}

	// Step 9: recover a persisted override.
	recoverOverride(state, time.Now(), logger)

	err = runEventLoop(state, backend, signalFD, inotifyFD, logger)

	logger.Info("shutting down")
	_ = backend.Restore()
	_ = backend.Close()
	store.RemovePIDFile(paths.PIDFile)
	if inotifyFD >= 0 {
		unix.Close(inotifyFD)
	}
	return err
}

// openBackendWithRetry probes the gamma dispatcher every 500ms for up to
// 30 seconds, since at login time the display server may not yet be
// accepting connections; between attempts it checks the already-blocked
// termination signal non-blockingly so a kill during startup isn't stuck
// behind the retry budget.
func openBackendWithRetry(cardNum, signalFD int, logger *slog.Logger) (gamma.Backend, error) {
	for attempt := 0; attempt < gammaInitMaxRetries; attempt++ {
		backend, err := gamma.Open(cardNum)
		if err == nil {
			logger.Info("gamma backend ready", "backend", backend.Name(), "attempt", attempt+1)
			return backend, nil
		}
		if pollSignalReady(signalFD) {
			drainSignalfd(signalFD)
			return nil, ErrInterrupted
		}
		time.Sleep(gammaInitRetryDelayMS * time.Millisecond)
	}
	return nil, fmt.Errorf("daemon: no gamma backend available after %d retries", gammaInitMaxRetries)
}

// recoverOverride implements startup step 9: a persisted override that has
// already run its full duration is cleared; otherwise manual mode is
// rehydrated, backfilling start_temp the first time it's still the
// zero sentinel.
func recoverOverride(state *State, now time.Time, logger *slog.Logger) {
	ovr := store.LoadOverride(state.Paths.OverrideFile)
	if !ovr.Active {
		return
	}

	elapsedMin := now.Sub(ovr.IssuedAt).Minutes()
	if elapsedMin >= float64(ovr.DurationMinutes) {
		_ = store.ClearOverride(state.Paths.OverrideFile)
		logger.Info("cleared stale override", "elapsed_minutes_past", elapsedMin-float64(ovr.DurationMinutes))
		return
	}

	ovr = state.applyFillIn(ovr, state.solarTemperature(now))
	state.Manual = Manual{
		Active:          true,
		StartTemp:       ovr.StartTemp,
		TargetTemp:      ovr.TargetTemp,
		StartTime:       ovr.IssuedAt,
		DurationMinutes: ovr.DurationMinutes,
		IssuedAt:        ovr.IssuedAt,
		ResumeTime:      sigmoid.NextTransitionResume(now, state.Location.Lat, state.Location.Lon),
	}
	logger.Info("recovered manual override", "target_kelvin", ovr.TargetTemp, "duration_minutes", ovr.DurationMinutes)
}

// runEventLoop is the steady-state loop: one epoll wait per iteration,
// completions drained in fixed order (signal, inotify, tick, gamma backend,
// weather).
func runEventLoop(state *State, backend gamma.Backend, signalFD, inotifyFD int, logger *slog.Logger) error {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return fmt.Errorf("daemon: epoll_create1: %w", err)
	}
	defer unix.Close(epfd)

	if err := epollAdd(epfd, signalFD); err != nil {
		return fmt.Errorf("daemon: register signalfd: %w", err)
	}
	if inotifyFD >= 0 {
		epollAdd(epfd, inotifyFD)
	}
	timerFD, err := createTimer(tickPeriodSeconds)
	if err != nil {
		return fmt.Errorf("daemon: create timerfd: %w", err)
	}
	defer unix.Close(timerFD)
	epollAdd(epfd, timerFD)

	backendEvents, backendIsEventSource := backend.(gamma.EventSource)
	backendFD := -1
	if backendIsEventSource {
		backendFD = backendEvents.FD()
		if err := epollAdd(epfd, backendFD); err != nil {
			logger.Warn("failed to register gamma backend fd, hotplug won't be observed", "error", err)
			backendIsEventSource = false
			backendFD = -1
		}
	}

	var fetcher weather.AsyncFetcher
	registeredWeatherFD := -1

	overrideName := filepath.Base(state.Paths.OverrideFile)
	locationName := filepath.Base(state.Paths.LocationFile)

	events := make([]unix.EpollEvent, 8)
	for {
		n, err := unix.EpollWait(epfd, events, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("daemon: epoll_wait: %w", err)
		}

		var gotSignal, gotTick, gotInotify, gotWeather, gotBackend bool
		for _, ev := range events[:n] {
			switch int(ev.Fd) {
			case signalFD:
				gotSignal = true
			case inotifyFD:
				gotInotify = true
			case timerFD:
				gotTick = true
			case registeredWeatherFD:
				gotWeather = true
			case backendFD:
				gotBackend = true
			}
		}

		if gotSignal {
			drainSignalfd(signalFD)
			logger.Info("received shutdown signal")
			fetcher.Abort()
			return nil
		}

		configChanged, overrideChanged := false, false
		if gotInotify {
			configChanged, overrideChanged = drainInotify(inotifyFD, overrideName, locationName)
		}

		if gotTick {
			drainTimer(timerFD)
		}

		if gotBackend && backendIsEventSource {
			if err := backendEvents.Pump(); err != nil {
				logger.Warn("gamma backend connection lost", "error", err)
			}
		}

		now := time.Now()

		if configChanged {
			if loc := store.LoadLocation(state.Paths.LocationFile); loc.Valid {
				state.Location = loc
				logger.Info("location reloaded", "lat", loc.Lat, "lon", loc.Lon)
			}
			state.Weather = store.LoadWeatherCache(state.Paths.CacheFile)
		}

		if overrideChanged {
			applyOverrideChange(state, now, logger)
		}

		if gotWeather {
			if result, _ := fetcher.Pump(now); result != nil {
				state.Weather = *result
				_ = store.SaveWeatherCache(state.Paths.CacheFile, state.Weather)
				if result.HasError {
					logger.Warn("weather fetch failed")
				} else {
					logger.Info("weather updated", "cloud_cover", result.CloudCover, "forecast", result.Forecast)
				}
			}
		}

		if fetcher.FD() == -1 && state.Weather.Stale(now) {
			if err := fetcher.Start(state.Location.Lat, state.Location.Lon); err != nil {
				logger.Warn("failed to start weather fetch", "error", err)
			} else {
				logger.Info("weather fetch started")
			}
		}

		if want := fetcher.FD(); want != registeredWeatherFD {
			if registeredWeatherFD != -1 {
				_ = unix.EpollCtl(epfd, unix.EPOLL_CTL_DEL, registeredWeatherFD, nil)
			}
			if want != -1 {
				epollAdd(epfd, want)
			}
			registeredWeatherFD = want
		}

		applyTargetTemperature(state, backend, now, logger)
	}
}

func epollAdd(epfd, fd int) error {
	return unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)})
}

// drainInotify reads whatever is currently buffered on fd and classifies
// each event by filename: the override file's name means manual-mode
// bookkeeping should be reloaded, the location file's means the location
// and weather cache should be.
func drainInotify(fd int, overrideName, locationName string) (configChanged, overrideChanged bool) {
	var buf [4096]byte
	n, err := unix.Read(fd, buf[:])
	if err != nil || n <= 0 {
		return false, false
	}
	for _, name := range inotifyNames(buf[:n]) {
		switch name {
		case overrideName:
			overrideChanged = true
		case locationName:
			configChanged = true
		}
	}
	return configChanged, overrideChanged
}

// applyOverrideChange reloads override.json and enters or exits manual
// mode depending on whether it's newly active, still active with the same
// issued_at (no-op), or no longer active.
func applyOverrideChange(state *State, now time.Time, logger *slog.Logger) {
	ovr := store.LoadOverride(state.Paths.OverrideFile)

	if ovr.Active && !ovr.IssuedAt.Equal(state.Manual.IssuedAt) {
		startTemp := state.solarTemperature(now)
		if state.LastTempValid {
			startTemp = state.LastTemp
		}
		ovr = state.applyFillIn(ovr, startTemp)

		state.Manual = Manual{
			Active:          true,
			StartTemp:       ovr.StartTemp,
			TargetTemp:      ovr.TargetTemp,
			StartTime:       ovr.IssuedAt,
			DurationMinutes: ovr.DurationMinutes,
			IssuedAt:        ovr.IssuedAt,
			ResumeTime:      sigmoid.NextTransitionResume(now, state.Location.Lat, state.Location.Lon),
		}
		if ovr.DurationMinutes > 0 {
			logger.Info("override: entering manual mode", "start_kelvin", ovr.StartTemp,
				"target_kelvin", ovr.TargetTemp, "duration_minutes", ovr.DurationMinutes)
		} else {
			logger.Info("override: instant manual mode", "target_kelvin", ovr.TargetTemp)
		}
	} else if !ovr.Active && state.Manual.Active {
		state.Manual = Manual{}
		_ = store.ClearOverride(state.Paths.OverrideFile)
		logger.Info("override cleared, resuming solar control")
	}
}

// applyTargetTemperature computes the temperature for now (manual or
// solar, with auto-resume), and writes it to the backend only if it
// differs from the last applied value.
func applyTargetTemperature(state *State, backend gamma.Backend, now time.Time, logger *slog.Logger) {
	temp := state.solarTemperature(now)

	if state.Manual.Active {
		temp = computeManualTemp(state.Manual, now)

		elapsedMin := now.Sub(state.Manual.StartTime).Minutes()
		if elapsedMin >= float64(state.Manual.DurationMinutes) &&
			!state.Manual.ResumeTime.IsZero() && !now.Before(state.Manual.ResumeTime) {
			state.Manual = Manual{}
			_ = store.ClearOverride(state.Paths.OverrideFile)
			logger.Info("auto-resuming solar control")
			temp = state.solarTemperature(now)
		}
	}

	if !state.LastTempValid || temp != state.LastTemp {
		if err := backend.SetTemperature(temp, 1.0); err != nil {
			logger.Warn("failed to apply temperature", "kelvin", temp, "error", err)
		}
		if state.Manual.Active {
			logger.Info("manual", "kelvin", temp)
		} else {
			logger.Info("solar", "kelvin", temp, "cloud_cover", state.Weather.CloudCover)
		}
		state.LastTemp, state.LastTempValid = temp, true
	}
}
