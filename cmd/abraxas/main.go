// Command abraxas is the CLI front-end and the daemon entry point: with no
// flags (or --daemon) it runs the event loop in the foreground, otherwise it
// is a short-lived process that reads or writes the files under
// ${HOME}/.config/abraxas/ and, for --set/--resume, checks whether
// a daemon is actually alive to pick them up.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	flag "github.com/spf13/pflag"

	"github.com/abraxasd/abraxas/daemon"
	"github.com/abraxasd/abraxas/gamma"
	"github.com/abraxasd/abraxas/sigmoid"
	"github.com/abraxasd/abraxas/solar"
	"github.com/abraxasd/abraxas/store"
	"github.com/abraxasd/abraxas/weather"
	"github.com/abraxasd/abraxas/zipdb"
)

var (
	flagDaemon      = flag.Bool("daemon", false, "run the color temperature daemon in the foreground")
	flagStatus      = flag.Bool("status", false, "print the current location, sun position, weather, and mode")
	flagSet         = flag.Bool("set", false, "write a manual override: --set TEMP [MINUTES]")
	flagResume      = flag.Bool("resume", false, "clear any active manual override")
	flagSetLocation = flag.String("set-location", "", "set the location as \"lat,lon\" or a 5-digit US ZIP code")
	flagRefresh     = flag.Bool("refresh", false, "synchronously fetch weather and update the cache")
	flagReset       = flag.Bool("reset", false, "restore the display's saved gamma ramps and exit")
	flagCard        = flag.Int("card", 0, "DRM card number to probe (/dev/dri/cardN)")
	flagHelp        = flag.Bool("help", false, "show usage")
)

func main() {
	flag.Parse()

	if *flagHelp {
		printUsage()
		os.Exit(0)
	}

	paths, err := store.Init()
	if err != nil {
		fmt.Fprintln(os.Stderr, "abraxas:", err)
		os.Exit(1)
	}

	switch {
	case *flagStatus:
		os.Exit(runStatus(paths))
	case *flagSet:
		os.Exit(runSet(paths, flag.Args()))
	case *flagResume:
		os.Exit(runResume(paths))
	case *flagSetLocation != "":
		os.Exit(runSetLocation(paths, *flagSetLocation))
	case *flagRefresh:
		os.Exit(runRefresh(paths))
	case *flagReset:
		os.Exit(runReset(*flagCard))
	default:
		// No flags, or --daemon: run the event loop in the foreground.
		os.Exit(runDaemon(paths, *flagCard))
	}
}

func printUsage() {
	fmt.Println("usage: abraxas [--daemon | --status | --set TEMP [MINUTES] | --resume |")
	fmt.Println("                --set-location LOC | --refresh | --reset | --help]")
	fmt.Println()
	flag.PrintDefaults()
}

// cliLogger is deliberately quiet: CLI commands report their result on
// stdout/stderr directly, not through the log, so only warnings and above
// are worth a log line (matching the daemon's own distinction between its
// running log and the CLI's one-shot report).
func cliLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func runDaemon(paths store.Paths, cardNum int) int {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	if err := daemon.Run(logger, paths, cardNum); err != nil {
		if errors.Is(err, daemon.ErrInterrupted) {
			logger.Info("interrupted during startup")
			return 0
		}
		logger.Error("daemon exited", "error", err)
		return 1
	}
	return 0
}

func runStatus(paths store.Paths) int {
	loc := store.LoadLocation(paths.LocationFile)
	if !loc.Valid {
		fmt.Fprintln(os.Stderr, "abraxas: no location configured (run --set-location first)")
		return 1
	}

	now := time.Now()
	pos := solar.Elevation(now, loc.Lat, loc.Lon)
	times := solar.SunriseSunset(now, loc.Lat, loc.Lon)
	w := store.LoadWeatherCache(paths.CacheFile)
	ovr := store.LoadOverride(paths.OverrideFile)

	fmt.Printf("location: %.6f, %.6f\n", loc.Lat, loc.Lon)
	fmt.Printf("date: %s\n", now.Format("2006-01-02 15:04:05 MST"))
	if times.Valid {
		fmt.Printf("sunrise: %s\n", times.Sunrise.Format("15:04:05"))
		fmt.Printf("sunset: %s\n", times.Sunset.Format("15:04:05"))
	} else {
		fmt.Println("sunrise/sunset: polar region, no transition today")
	}
	fmt.Printf("sun elevation: %.2f deg\n", pos.ElevationDegrees)

	if w.HasError {
		fmt.Println("weather: not available")
	} else {
		fmt.Printf("weather: %s, %.0fF, %d%% cloud cover (%s)\n",
			w.Forecast, w.Temperature, w.CloudCover, humanize.Time(w.FetchedAt))
	}

	if ovr.Active {
		fmt.Printf("mode: manual override, target %d K over %d min, issued %s\n",
			ovr.TargetTemp, ovr.DurationMinutes, humanize.Time(ovr.IssuedAt))
	} else {
		darkMode := w.CloudCover >= sigmoid.CloudThreshold
		minutesSinceSunrise := now.Sub(times.Sunrise).Minutes()
		minutesUntilSunset := times.Sunset.Sub(now).Minutes()
		temp := sigmoid.SolarTemp(minutesSinceSunrise, minutesUntilSunset, darkMode)
		mode := "clear"
		if darkMode {
			mode = "dark"
		}
		fmt.Printf("mode: %s, target %d K\n", mode, temp)
	}
	return 0
}

func runSet(paths store.Paths, args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "abraxas: --set requires TEMP [MINUTES]")
		return 1
	}
	temp, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, "abraxas: invalid temperature:", args[0])
		return 1
	}
	if temp < sigmoid.TempMin || temp > sigmoid.TempMax {
		fmt.Fprintf(os.Stderr, "abraxas: temperature must be between %d and %d K\n", sigmoid.TempMin, sigmoid.TempMax)
		return 1
	}

	minutes := 3
	if len(args) >= 2 {
		minutes, err = strconv.Atoi(args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, "abraxas: invalid minutes:", args[1])
			return 1
		}
	}

	ovr := store.Override{
		Active:          true,
		TargetTemp:      temp,
		DurationMinutes: minutes,
		IssuedAt:        time.Now(),
		StartTemp:       0,
	}
	if err := store.SaveOverride(paths.OverrideFile, ovr); err != nil {
		fmt.Fprintln(os.Stderr, "abraxas:", err)
		return 1
	}

	fmt.Printf("set target temperature to %d K over %d minutes\n", temp, minutes)
	warnIfNotAlive(paths)
	return 0
}

func runResume(paths store.Paths) int {
	if err := store.ClearOverride(paths.OverrideFile); err != nil {
		fmt.Fprintln(os.Stderr, "abraxas:", err)
		return 1
	}
	fmt.Println("resumed automatic solar control")
	warnIfNotAlive(paths)
	return 0
}

// warnIfNotAlive checks daemon liveness before a --set/--resume reports
// success: the write still happens unconditionally, but the user is told
// the change is inert until a daemon starts.
func warnIfNotAlive(paths store.Paths) {
	if !store.DaemonAlive(paths.PIDFile) {
		fmt.Fprintln(os.Stderr, "abraxas: warning: daemon is not running, this will take effect once it starts")
	}
}

func runSetLocation(paths store.Paths, loc string) int {
	lat, lon, err := resolveLocation(paths, loc)
	if err != nil {
		fmt.Fprintln(os.Stderr, "abraxas:", err)
		return 1
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		fmt.Fprintln(os.Stderr, "abraxas: latitude/longitude out of range")
		return 1
	}
	if err := store.SaveLocation(paths.LocationFile, lat, lon); err != nil {
		fmt.Fprintln(os.Stderr, "abraxas:", err)
		return 1
	}
	fmt.Printf("location set to %.6f, %.6f\n", lat, lon)
	return 0
}

// resolveLocation accepts either a "lat,lon" pair or a 5-digit US ZIP,
// resolving the latter through the memory-mapped lookup table.
func resolveLocation(paths store.Paths, loc string) (lat, lon float64, err error) {
	if len(loc) == 5 && isAllDigits(loc) {
		db, err := zipdb.Open(paths.ZipDBFile)
		if err != nil {
			return 0, 0, fmt.Errorf("open zip code table: %w", err)
		}
		defer db.Close()

		flat, flon, err := db.Lookup(loc)
		if err != nil {
			return 0, 0, fmt.Errorf("zip code %s: %w", loc, err)
		}
		return float64(flat), float64(flon), nil
	}

	lat, lon, ok := strings.Cut(loc, ",")
	if !ok {
		return 0, 0, fmt.Errorf("location must be \"lat,lon\" or a 5-digit ZIP code, got %q", loc)
	}
	latVal, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid latitude: %w", err)
	}
	lonVal, err := strconv.ParseFloat(strings.TrimSpace(lon), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid longitude: %w", err)
	}
	return latVal, lonVal, nil
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func runRefresh(paths store.Paths) int {
	loc := store.LoadLocation(paths.LocationFile)
	if !loc.Valid {
		fmt.Fprintln(os.Stderr, "abraxas: no location configured (run --set-location first)")
		return 1
	}
	d := weather.Fetch(loc.Lat, loc.Lon)
	if err := store.SaveWeatherCache(paths.CacheFile, d); err != nil {
		fmt.Fprintln(os.Stderr, "abraxas:", err)
		return 1
	}
	if d.HasError {
		fmt.Println("weather refresh failed, cache marked erroneous")
		return 0
	}
	fmt.Printf("weather refreshed: %s, %.0fF, %d%% cloud cover\n", d.Forecast, d.Temperature, d.CloudCover)
	return 0
}

func runReset(cardNum int) int {
	logger := cliLogger()
	backend, err := gamma.Open(cardNum)
	if err != nil {
		fmt.Fprintln(os.Stderr, "abraxas: no gamma backend available:", err)
		return 1
	}
	if err := backend.Restore(); err != nil {
		logger.Warn("restore failed on at least one CRTC", "error", err)
	}
	if err := backend.Close(); err != nil {
		fmt.Fprintln(os.Stderr, "abraxas:", err)
		return 1
	}
	fmt.Println("gamma ramps restored")
	return 0
}
