package weather

import (
	"bytes"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sys/unix"
)

const (
	pointsURLFormat = "https://api.weather.gov/points/%.4f,%.4f"
	userAgent       = "abraxas/7.0 (weather color temp daemon)"
)

// Phase is the async fetcher's current step, mirroring the two-request NOAA
// flow: a points lookup followed by the hourly forecast it points to.
type Phase int

const (
	Idle Phase = iota
	ReadingPoints
	ReadingForecast
)

// AsyncFetcher drives one weather fetch across the daemon's event loop
// without blocking the tick/inotify/signal path: curl(1) is spawned with
// its stdout on a non-blocking pipe, and Pump is called whenever the
// epoll-registered fd becomes readable.
type AsyncFetcher struct {
	phase Phase
	cmd   *exec.Cmd
	pipe  io.ReadCloser
	fd    int
	buf   bytes.Buffer
	lat   float64
	lon   float64
}

// FD returns the pipe file descriptor the caller should register for
// readability, or -1 if no fetch is in progress.
func (f *AsyncFetcher) FD() int {
	if f.phase == Idle {
		return -1
	}
	return f.fd
}

// Start begins a new fetch cycle, spawning curl against the points
// endpoint. It returns an error if a fetch is already in progress.
func (f *AsyncFetcher) Start(lat, lon float64) error {
	if f.phase != Idle {
		return fmt.Errorf("weather: fetch already in progress")
	}
	f.lat, f.lon = lat, lon
	return f.spawn(fmt.Sprintf(pointsURLFormat, lat, lon), ReadingPoints)
}

func (f *AsyncFetcher) spawn(url string, phase Phase) error {
	cmd := exec.Command("curl", "-s", "-f", "-L", "--max-time", "5",
		"-H", "User-Agent: "+userAgent,
		"-H", "Accept: application/geo+json",
		url)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("weather: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("weather: spawn curl: %w", err)
	}

	file, ok := stdout.(interface{ Fd() uintptr })
	if !ok {
		_ = cmd.Process.Kill()
		return fmt.Errorf("weather: stdout pipe has no fd")
	}
	fd := int(file.Fd())
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = cmd.Process.Kill()
		return fmt.Errorf("weather: set nonblocking: %w", err)
	}

	f.cmd = cmd
	f.pipe = stdout
	f.fd = fd
	f.phase = phase
	f.buf.Reset()
	return nil
}

// Pump drains whatever is currently available on the pipe. It returns a
// non-nil result once the fetch has concluded (successfully or not); a
// caller should keep polling (after the fd reports readable again) while
// the result is nil.
func (f *AsyncFetcher) Pump(now time.Time) (result *Data, err error) {
	if f.phase == Idle {
		return nil, nil
	}

	chunk := make([]byte, 4096)
	for {
		n, readErr := unix.Read(f.fd, chunk)
		if n > 0 {
			f.buf.Write(chunk[:n])
			continue
		}
		if readErr == unix.EAGAIN {
			return nil, nil // more data coming, caller waits for next readiness
		}
		if n == 0 || readErr != nil {
			break // EOF or a hard read error, either way the child is done writing
		}
	}

	f.closePipe()
	waitErr := f.cmd.Wait()

	if waitErr != nil || f.buf.Len() == 0 {
		d := errorResult(now)
		f.reset()
		return &d, nil
	}

	body := f.buf.Bytes()
	switch f.phase {
	case ReadingPoints:
		forecastURL := gjson.GetBytes(body, "properties.forecastHourly").String()
		if forecastURL == "" {
			d := errorResult(now)
			f.reset()
			return &d, nil
		}
		if err := f.spawn(forecastURL, ReadingForecast); err != nil {
			d := errorResult(now)
			f.reset()
			return &d, nil
		}
		return nil, nil

	case ReadingForecast:
		period := gjson.GetBytes(body, "properties.periods.0")
		d := Data{FetchedAt: now}
		if !period.Exists() {
			d.HasError = true
			d.Forecast = "Unknown"
			d.IsDay = true
			f.reset()
			return &d, nil
		}
		d.Forecast = period.Get("shortForecast").String()
		d.Temperature = period.Get("temperature").Float()
		d.IsDay = period.Get("isDaytime").Bool()
		d.CloudCover = cloudCoverFromForecast(d.Forecast)
		f.reset()
		return &d, nil
	}

	d := errorResult(now)
	f.reset()
	return &d, nil
}

func (f *AsyncFetcher) closePipe() {
	if f.pipe != nil {
		_ = f.pipe.Close()
		f.pipe = nil
	}
}

func (f *AsyncFetcher) reset() {
	f.closePipe()
	if f.cmd != nil && f.cmd.Process != nil {
		_ = f.cmd.Process.Kill()
	}
	f.cmd = nil
	f.fd = -1
	f.phase = Idle
	f.buf.Reset()
}

// Abort kills any in-flight fetch and returns to Idle, used when the daemon
// is shutting down mid-fetch.
func (f *AsyncFetcher) Abort() {
	f.reset()
}

// Fetch performs a full synchronous fetch, used by the CLI's --refresh
// command, which has no event loop to pump.
func Fetch(lat, lon float64) Data {
	now := time.Now()

	points, err := runCurl(fmt.Sprintf(pointsURLFormat, lat, lon))
	if err != nil {
		return errorResult(now)
	}
	forecastURL := gjson.GetBytes(points, "properties.forecastHourly").String()
	if forecastURL == "" {
		return errorResult(now)
	}

	forecast, err := runCurl(forecastURL)
	if err != nil {
		return errorResult(now)
	}
	period := gjson.GetBytes(forecast, "properties.periods.0")
	if !period.Exists() {
		return errorResult(now)
	}

	d := Data{
		Forecast:    period.Get("shortForecast").String(),
		Temperature: period.Get("temperature").Float(),
		IsDay:       period.Get("isDaytime").Bool(),
		FetchedAt:   now,
	}
	d.CloudCover = cloudCoverFromForecast(d.Forecast)
	return d
}

func runCurl(url string) ([]byte, error) {
	cmd := exec.Command("curl", "-s", "-f", "-L", "--max-time", "5",
		"-H", "User-Agent: "+userAgent,
		"-H", "Accept: application/geo+json",
		url)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("weather: curl: %w", err)
	}
	return out, nil
}
